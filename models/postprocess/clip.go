package postprocess

import "github.com/nvr-ai/ssd-video/images"

// Clip clamps every box into the reference region.
//
// Detections are never dropped: a box that falls outside the reference collapses to a
// zero-area box on its edge and is passed downstream. The input slice is updated in place
// and returned.
func Clip(reference images.Box, detections []Result) []Result {
	for i := range detections {
		detections[i].Box = detections[i].Box.Clamp(reference)
	}
	return detections
}
