package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBox_Valid(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"normal", NewBoundingBox(72, 700, 300, 720), true},
		{"degenerate point", NewBoundingBox(10, 10, 10, 10), true},
		{"inverted x", NewBoundingBox(300, 700, 72, 720), false},
		{"inverted y", NewBoundingBox(72, 720, 300, 700), false},
		{"nan", NewBoundingBox(math.NaN(), 0, 1, 1), false},
		{"inf", NewBoundingBox(0, 0, math.Inf(1), 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Valid())
		})
	}
}

func TestBoundingBox_UnionIsExactMinMax(t *testing.T) {
	boxes := []BoundingBox{
		NewBoundingBox(72, 700, 300, 720),
		NewBoundingBox(80, 650, 310, 690),
		NewBoundingBox(60, 600, 200, 640),
	}

	got, ok := UnionAll(boxes...)
	require.True(t, ok)

	assert.Equal(t, NewBoundingBox(60, 600, 310, 720), got)
	for _, b := range boxes {
		assert.True(t, got.Contains(b))
	}
}

func TestUnionAll_Empty(t *testing.T) {
	_, ok := UnionAll()
	assert.False(t, ok)
}

func TestBoundingBox_UnionSingle(t *testing.T) {
	b := NewBoundingBox(72, 700, 300, 720)
	got, ok := UnionAll(b)
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestPixelToPoint_LetterPage(t *testing.T) {
	px := NewBoundingBox(100, 100, 200, 200)

	got, err := PixelToPoint(px, PixelSize{Width: 1700, Height: 2200}, PageSize{Width: 612, Height: 792})
	require.NoError(t, err)

	assert.InDelta(t, 36.0, got.X0, 1e-9)
	assert.InDelta(t, 36.0, got.Y0, 1e-9)
	assert.InDelta(t, 72.0, got.X1, 1e-9)
	assert.InDelta(t, 72.0, got.Y1, 1e-9)
}

func TestPixelToPoint_RejectsZeroSizes(t *testing.T) {
	_, err := PixelToPoint(NewBoundingBox(0, 0, 1, 1), PixelSize{}, PageSize{Width: 612, Height: 792})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = PixelToPoint(NewBoundingBox(0, 0, 1, 1), PixelSize{Width: 10, Height: 10}, PageSize{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCoordinateRoundTrip_PreservesScaledArea(t *testing.T) {
	raster := PixelSize{Width: 1700, Height: 2200}
	page := PageSize{Width: 612, Height: 792}
	sx := page.Width / raster.Width
	sy := page.Height / raster.Height

	pixelBoxes := []BoundingBox{
		NewBoundingBox(100, 100, 200, 200),
		NewBoundingBox(0, 0, 1700, 2200),
		NewBoundingBox(333.5, 1200.25, 901, 1999.75),
	}

	for _, px := range pixelBoxes {
		pt, err := PixelToPoint(px, raster, page)
		require.NoError(t, err)

		rect := MapToRender(pt, page.Height, 1)
		assert.InDelta(t, px.Area()*sx*sy, rect.Area(), 1e-6, "box %s", px)
	}
}

func TestMapToRender(t *testing.T) {
	tests := []struct {
		name   string
		box    BoundingBox
		height float64
		scale  float64
		want   RenderRect
	}{
		{
			name:   "unit scale flips y",
			box:    NewBoundingBox(72, 700, 300, 720),
			height: 792,
			scale:  1,
			want:   RenderRect{X: 72, Y: 72, Width: 228, Height: 20},
		},
		{
			name:   "zoomed",
			box:    NewBoundingBox(72, 700, 300, 720),
			height: 792,
			scale:  2,
			want:   RenderRect{X: 144, Y: 144, Width: 456, Height: 40},
		},
		{
			name:   "page bottom",
			box:    NewBoundingBox(0, 0, 612, 10),
			height: 792,
			scale:  1.5,
			want:   RenderRect{X: 0, Y: 1173, Width: 918, Height: 15},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapToRender(tt.box, tt.height, tt.scale)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
			assert.InDelta(t, tt.want.Width, got.Width, 1e-9)
			assert.InDelta(t, tt.want.Height, got.Height, 1e-9)
		})
	}
}

func TestFlipVertical_Involution(t *testing.T) {
	b := NewBoundingBox(10, 20, 110, 70)
	flipped := FlipVertical(b, 792)

	assert.Equal(t, NewBoundingBox(10, 722, 110, 772), flipped)
	assert.Equal(t, b, FlipVertical(flipped, 792))
	assert.InDelta(t, b.Area(), flipped.Area(), 1e-9)
}

func TestBoundingBox_JSON(t *testing.T) {
	b := NewBoundingBox(72, 700, 300, 720)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `[72,700,300,720]`, string(data))

	var decoded BoundingBox
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b, decoded)

	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &decoded))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestNormalizeRotation(t *testing.T) {
	for in, want := range map[int]int{0: 0, 90: 90, 180: 180, 270: 270, 360: 0, -90: 270, 450: 90} {
		assert.Equal(t, want, NormalizeRotation(in), "rotate %d", in)
	}
}

func TestPageSize_Displayed(t *testing.T) {
	letter := PageSize{Width: 612, Height: 792, OriginX: 10, OriginY: 20}
	assert.Equal(t, PageSize{Width: 612, Height: 792}, letter.Displayed())

	letter.Rotation = 90
	assert.Equal(t, PageSize{Width: 792, Height: 612, Rotation: 90}, letter.Displayed())

	letter.Rotation = 180
	assert.Equal(t, PageSize{Width: 612, Height: 792, Rotation: 180}, letter.Displayed())
}

// A line at x 72..127, y 698..708 on an unrotated Letter page shows up
// elsewhere on the rotated sheet; mapping it back must recover it.
func TestDisplayedToPage_RoundTripsEveryRotation(t *testing.T) {
	want := NewBoundingBox(72, 698, 127, 708)
	displayed := map[int]BoundingBox{
		0:   want,
		90:  NewBoundingBox(698, 612-127, 708, 612-72),
		180: NewBoundingBox(612-127, 792-708, 612-72, 792-698),
		270: NewBoundingBox(792-708, 72, 792-698, 127),
	}
	for rot, box := range displayed {
		page := PageSize{Width: 612, Height: 792, Rotation: rot}
		got := DisplayedToPage(box, page)
		assert.InDelta(t, want.X0, got.X0, 1e-9, "rotate %d", rot)
		assert.InDelta(t, want.Y0, got.Y0, 1e-9, "rotate %d", rot)
		assert.InDelta(t, want.X1, got.X1, 1e-9, "rotate %d", rot)
		assert.InDelta(t, want.Y1, got.Y1, 1e-9, "rotate %d", rot)
		assert.True(t, got.Valid())
	}
}

func TestMapToRender_RotatedPageStaysOnPage(t *testing.T) {
	page := PageSize{Width: 612, Height: 792, Rotation: 90}
	rect := MapToRender(NewBoundingBox(72, 698, 127, 708), page.Height, 1)
	assert.InDelta(t, 84.0, rect.Y, 1e-9)
	assert.GreaterOrEqual(t, rect.Y, 0.0)
}

func TestBoundingBox_Translate(t *testing.T) {
	assert.Equal(t, NewBoundingBox(62, 680, 117, 690), NewBoundingBox(72, 700, 127, 710).Translate(-10, -20))
}
