package ssd

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSSD300Anchors verifies the prior layout of the VOC SSD300 head.
func TestSSD300Anchors(t *testing.T) {
	params := SSD300()
	require.Equal(t, 8732, params.NumAnchors(), "SSD300 should carry 8732 prior boxes")

	geom, err := params.Anchors(image.Pt(300, 300))
	require.NoError(t, err)
	require.Equal(t, 8732, geom.Len())

	layers := geom.Layers()
	require.Len(t, layers, 6)
	assert.Equal(t, 38*38*4, layers[0].Count())
	assert.Equal(t, 19*19*6, layers[1].Count())
	assert.Equal(t, 1, layers[5].Rows)

	// First anchor: cell (0,0) of the 38x38 map, min size 21px.
	first := geom.At(0)
	assert.InDelta(t, 0.5*8/300.0, first.CY, 1e-6)
	assert.InDelta(t, 0.5*8/300.0, first.CX, 1e-6)
	assert.InDelta(t, 21/300.0, first.H, 1e-6)
	assert.InDelta(t, 21/300.0, first.W, 1e-6)
	assert.Equal(t, 0, first.Layer)

	// Second anchor of the cell uses sqrt(min*max).
	second := geom.At(1)
	assert.InDelta(t, 30.7409/300.0, second.H, 1e-5)

	// Ratio 2 anchor is wider than tall.
	third := geom.At(2)
	assert.Greater(t, third.W, third.H)

	// The last anchor belongs to the single-cell layer centered in the image.
	last := geom.At(geom.Len() - 1)
	assert.Equal(t, 5, last.Layer)
	assert.InDelta(t, 0.5, last.CY, 1e-6)
	assert.InDelta(t, 0.5, last.CX, 1e-6)
}

// TestAnchorsInvalidShape rejects non-positive input shapes.
func TestAnchorsInvalidShape(t *testing.T) {
	_, err := SSD300().Anchors(image.Pt(0, 300))
	assert.Error(t, err)
}
