package images

import (
	"math/rand"
	"testing"
)

// BenchmarkJaccard_Disjoint measures boxes that share no area.
// This returns on the empty intersection check.
func BenchmarkJaccard_Disjoint(b *testing.B) {
	a := Box{YMin: 0, XMin: 0, YMax: 0.2, XMax: 0.2}
	c := Box{YMin: 0.5, XMin: 0.5, YMax: 0.9, XMax: 0.9}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = Jaccard(a, c)
	}
}

// BenchmarkJaccard_PartialOverlap measures the typical NMS candidate pair.
func BenchmarkJaccard_PartialOverlap(b *testing.B) {
	a := Box{YMin: 0, XMin: 0, YMax: 0.5, XMax: 0.5}
	c := Box{YMin: 0.25, XMin: 0.25, YMax: 0.75, XMax: 0.75}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = Jaccard(a, c)
	}
}

// BenchmarkJaccard_RandomPairs simulates a decoded frame with varied overlap.
func BenchmarkJaccard_RandomPairs(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	random := func() Box {
		y, x := rng.Float32()*0.8, rng.Float32()*0.8
		h, w := 0.02+rng.Float32()*0.2, 0.02+rng.Float32()*0.2
		return Box{YMin: y, XMin: x, YMax: y + h, XMax: x + w}
	}
	pairs := make([][2]Box, 1024)
	for i := range pairs {
		pairs[i] = [2]Box{random(), random()}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		p := pairs[i%len(pairs)]
		_ = Jaccard(p[0], p[1])
	}
}

// BenchmarkClamp measures clipping a box that crosses every edge.
func BenchmarkClamp(b *testing.B) {
	box := Box{YMin: -0.1, XMin: -0.2, YMax: 1.1, XMax: 1.3}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = box.Clamp(UnitBox)
	}
}
