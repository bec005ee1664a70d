package postprocess

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/ssd-video/images"
)

// ErrDegenerateReference is returned when the reference region has no height or width.
var ErrDegenerateReference = errors.New("reference box has zero height or width")

// Remap maps boxes from the detector input space back onto the original frame.
//
// The reference box is the region of the detector input that holds the frame, as reported
// by preprocessing. Every coordinate is mapped linearly:
//
//	y' = (y - ref.YMin) / (ref.YMax - ref.YMin)
//	x' = (x - ref.XMin) / (ref.XMax - ref.XMin)
//
// With the unit box (plain stretch resize) this is the identity. The input slice is updated
// in place and returned.
func Remap(reference images.Box, detections []Result) ([]Result, error) {
	h := reference.YMax - reference.YMin
	w := reference.XMax - reference.XMin
	if h <= 0 || w <= 0 {
		return nil, errors.Wrapf(ErrDegenerateReference, "%s", reference)
	}
	if reference == images.UnitBox {
		return detections, nil
	}

	for i := range detections {
		b := detections[i].Box
		detections[i].Box = images.Box{
			YMin: (b.YMin - reference.YMin) / h,
			XMin: (b.XMin - reference.XMin) / w,
			YMax: (b.YMax - reference.YMin) / h,
			XMax: (b.XMax - reference.XMin) / w,
		}
	}
	return detections, nil
}
