package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// BoundingBox locates content on a PDF page.
// Coordinates are in page points (1/72 inch) with the origin at the
// bottom-left corner of the unrotated MediaBox, matching the PDF's
// native space before /Rotate is applied.
// A BoundingBox is a value; operations return new boxes.
type BoundingBox struct {
	X0 float64
	Y0 float64
	X1 float64
	Y1 float64
}

// NewBoundingBox builds a box from its four corners without validating it.
// Callers check Valid so invalid geometry stays visible instead of corrected.
func NewBoundingBox(x0, y0, x1, y1 float64) BoundingBox {
	return BoundingBox{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// BoundingBoxFromSlice parses the persisted [x0,y0,x1,y1] form.
func BoundingBoxFromSlice(v []float64) (BoundingBox, error) {
	if len(v) != 4 {
		return BoundingBox{}, fmt.Errorf("%w: bbox needs 4 values, got %d", ErrInvalidInput, len(v))
	}
	return NewBoundingBox(v[0], v[1], v[2], v[3]), nil
}

// Valid reports whether x1 >= x0 and y1 >= y0 and all values are finite.
func (b BoundingBox) Valid() bool {
	for _, v := range b.Array() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 >= b.X0 && b.Y1 >= b.Y0
}

// Width returns x1 - x0.
func (b BoundingBox) Width() float64 { return b.X1 - b.X0 }

// Height returns y1 - y0.
func (b BoundingBox) Height() float64 { return b.Y1 - b.Y0 }

// Area returns the box area in square points.
func (b BoundingBox) Area() float64 { return b.Width() * b.Height() }

// IsZero reports whether the box is the zero value.
func (b BoundingBox) IsZero() bool { return b == BoundingBox{} }

// Union returns the smallest rectangle covering both boxes.
// The result is exactly (min x0, min y0, max x1, max y1).
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// UnionAll folds Union over boxes. It returns false when boxes is empty.
func UnionAll(boxes ...BoundingBox) (BoundingBox, bool) {
	if len(boxes) == 0 {
		return BoundingBox{}, false
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Union(b)
	}
	return out, true
}

// Contains reports whether o lies entirely within b.
func (b BoundingBox) Contains(o BoundingBox) bool {
	return o.X0 >= b.X0 && o.Y0 >= b.Y0 && o.X1 <= b.X1 && o.Y1 <= b.Y1
}

// Array returns the persisted [x0,y0,x1,y1] form.
func (b BoundingBox) Array() [4]float64 {
	return [4]float64{b.X0, b.Y0, b.X1, b.Y1}
}

// String formats the box as [x0,y0,x1,y1].
func (b BoundingBox) String() string {
	return fmt.Sprintf("[%.2f,%.2f,%.2f,%.2f]", b.X0, b.Y0, b.X1, b.Y1)
}

// MarshalJSON encodes the box as [x0,y0,x1,y1].
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Array())
}

// UnmarshalJSON decodes the [x0,y0,x1,y1] form.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := BoundingBoxFromSlice(v)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// PageSize is a page's unrotated MediaBox in points. Boxes on the page
// are stored relative to the MediaBox lower-left corner (OriginX,
// OriginY) and ignore Rotation, which is the clockwise /Rotate a viewer
// applies when displaying the page: 0, 90, 180 or 270.
type PageSize struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	OriginX  float64 `json:"origin_x,omitempty"`
	OriginY  float64 `json:"origin_y,omitempty"`
	Rotation int     `json:"rotation,omitempty"`
}

// NormalizeRotation maps any multiple of 90 onto 0, 90, 180 or 270.
func NormalizeRotation(deg int) int {
	r := ((deg % 360) + 360) % 360
	return r - r%90
}

// Displayed returns the page as a viewer shows it: width and height swap
// for quarter turns. The origin is not carried over.
func (p PageSize) Displayed() PageSize {
	if p.Rotation == 90 || p.Rotation == 270 {
		return PageSize{Width: p.Height, Height: p.Width, Rotation: p.Rotation}
	}
	return PageSize{Width: p.Width, Height: p.Height, Rotation: p.Rotation}
}

// DisplayedToPage maps a bottom-left box measured on the displayed
// (rotated) page back into unrotated page space.
func DisplayedToPage(b BoundingBox, p PageSize) BoundingBox {
	var x0, y0, x1, y1 float64
	switch p.Rotation {
	case 90:
		x0, y0, x1, y1 = p.Width-b.Y0, b.X0, p.Width-b.Y1, b.X1
	case 180:
		x0, y0, x1, y1 = p.Width-b.X0, p.Height-b.Y0, p.Width-b.X1, p.Height-b.Y1
	case 270:
		x0, y0, x1, y1 = b.Y0, p.Height-b.X0, b.Y1, p.Height-b.X1
	default:
		return b
	}
	return NewBoundingBox(math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1))
}

// Translate shifts a box by (dx, dy).
func (b BoundingBox) Translate(dx, dy float64) BoundingBox {
	return BoundingBox{X0: b.X0 + dx, Y0: b.Y0 + dy, X1: b.X1 + dx, Y1: b.Y1 + dy}
}

// PixelSize is a raster image's dimensions in pixels.
type PixelSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelToPoint rescales a pixel-space box onto the page's point space.
// scale_x = page.Width / raster.Width and scale_y = page.Height / raster.Height,
// applied to each coordinate. Axis orientation is left unchanged.
func PixelToPoint(px BoundingBox, raster PixelSize, page PageSize) (BoundingBox, error) {
	if raster.Width <= 0 || raster.Height <= 0 {
		return BoundingBox{}, fmt.Errorf("%w: raster size %vx%v", ErrInvalidInput, raster.Width, raster.Height)
	}
	if page.Width <= 0 || page.Height <= 0 {
		return BoundingBox{}, fmt.Errorf("%w: page size %vx%v", ErrInvalidInput, page.Width, page.Height)
	}
	sx := page.Width / raster.Width
	sy := page.Height / raster.Height
	return BoundingBox{
		X0: px.X0 * sx,
		Y0: px.Y0 * sy,
		X1: px.X1 * sx,
		Y1: px.Y1 * sy,
	}, nil
}

// FlipVertical converts a box between top-left and bottom-left origins
// for a page of the given height. Applying it twice returns the input.
func FlipVertical(b BoundingBox, pageHeight float64) BoundingBox {
	return BoundingBox{
		X0: b.X0,
		Y0: pageHeight - b.Y1,
		X1: b.X1,
		Y1: pageHeight - b.Y0,
	}
}

// RenderRect is a top-left origin rectangle in renderer units.
type RenderRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns width * height.
func (r RenderRect) Area() float64 { return r.Width * r.Height }

// MapToRender converts a stored bottom-left point box into a top-left,
// scaled rectangle ready for drawing over a rendered page.
func MapToRender(b BoundingBox, pageHeightPt, renderScale float64) RenderRect {
	return RenderRect{
		X:      b.X0 * renderScale,
		Y:      (pageHeightPt - b.Y1) * renderScale,
		Width:  (b.X1 - b.X0) * renderScale,
		Height: (b.Y1 - b.Y0) * renderScale,
	}
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1,1].
// It returns 0 when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
