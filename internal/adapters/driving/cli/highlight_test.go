package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

func TestHighlightCmd_DefaultScale(t *testing.T) {
	s := newTestServices()
	defer s.install()()

	out, err := execute(t, "highlight", "a-101#0001")

	require.NoError(t, err)
	assert.Equal(t, 1.0, s.highlight.scale)
	assert.Contains(t, out, "Page:     2 (height 792.0pt)")
	assert.Contains(t, out, "Rect:     x=72.0 y=72.0 w=228.0 h=20.0 @1.00x")
}

func TestHighlightCmd_Scale(t *testing.T) {
	s := newTestServices()
	defer s.install()()

	out, err := execute(t, "highlight", "--scale", "2", "a-101#0001")

	require.NoError(t, err)
	assert.Equal(t, 2.0, s.highlight.scale)
	assert.Contains(t, out, "x=144.0 y=144.0 w=456.0 h=40.0 @2.00x")
}

func TestHighlightCmd_NotFound(t *testing.T) {
	s := newTestServices()
	s.highlight.err = domain.ErrNotFound
	defer s.install()()

	_, err := execute(t, "highlight", "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
