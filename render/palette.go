package render

import (
	"image/color"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette maps a class id to its drawing color. It is read-only once built.
type Palette []color.RGBA

// NewPalette generates n random, clearly saturated colors from seed.
//
// The same seed always yields the same palette.
func NewPalette(n int, seed int64) Palette {
	rng := rand.New(rand.NewSource(seed))
	p := make(Palette, n)
	for i := range p {
		c := colorful.Hsv(rng.Float64()*360, 0.5+rng.Float64()*0.5, 0.6+rng.Float64()*0.4)
		r, g, b := c.Clamped().RGB255()
		p[i] = color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return p
}

// Color returns the color of a class id.
func (p Palette) Color(class int) (color.RGBA, bool) {
	if class < 0 || class >= len(p) {
		return color.RGBA{}, false
	}
	return p[class], true
}
