package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/ssd-video/images"
	"github.com/nvr-ai/ssd-video/models/anchors"
)

// ErrShapeMismatch is returned when detector outputs disagree with the anchor geometry.
var ErrShapeMismatch = errors.New("tensor shape does not match anchor geometry")

// DefaultVariances are the SSD prior scaling factors for the (cx, cy, w, h) offsets.
var DefaultVariances = [4]float32{0.1, 0.1, 0.2, 0.2}

// Decode converts raw per-anchor predictions into candidate detections.
//
// For every anchor, in geometry order, and every non-background class whose score is strictly
// greater than cfg.SelectThreshold, one Result is emitted. The box is decoded from the anchor
// using the offsets laid out as (cx, cy, w, h):
//
//	cx = anchor.CX + o[0] * anchor.W * v[0]
//	cy = anchor.CY + o[1] * anchor.H * v[1]
//	w  = anchor.W * exp(o[2] * v[2])
//	h  = anchor.H * exp(o[3] * v[3])
//
// Decoded boxes are not clipped and may extend past the image.
//
// Arguments:
//   - scores: Class scores shaped [anchors, classes] (a leading batch dimension of 1 is allowed).
//   - offsets: Box offsets shaped [anchors, 4] (a leading batch dimension of 1 is allowed).
//   - geom: The anchor geometry the detector predicts against.
//   - cfg: The threshold and variances.
//
// Returns:
//   - []Result: The candidates in (anchor, class) order.
//   - error: ErrShapeMismatch when the tensors do not line up with the geometry.
func Decode(scores, offsets *tensor.Dense, geom *anchors.Geometry, cfg *Config) ([]Result, error) {
	if geom == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "nil anchor geometry")
	}

	n := geom.Len()
	scoreData, numClasses, err := matrix(scores, n)
	if err != nil {
		return nil, errors.Wrap(err, "scores")
	}
	offsetData, cols, err := matrix(offsets, n)
	if err != nil {
		return nil, errors.Wrap(err, "offsets")
	}
	if cols != 4 {
		return nil, errors.Wrapf(ErrShapeMismatch, "offsets have %d columns, want 4", cols)
	}

	v := cfg.Variances
	var results []Result
	for i := 0; i < n; i++ {
		row := scoreData[i*numClasses : (i+1)*numClasses]

		var box images.Box
		decoded := false
		for c := 1; c < numClasses; c++ {
			if row[c] <= cfg.SelectThreshold {
				continue
			}
			if !decoded {
				box = decodeBox(geom.At(i), offsetData[i*4:i*4+4], v)
				decoded = true
			}
			results = append(results, Result{Class: c, Score: row[c], Box: box})
		}
	}

	return results, nil
}

func decodeBox(a anchors.Anchor, o []float32, v [4]float32) images.Box {
	cx := a.CX + o[0]*a.W*v[0]
	cy := a.CY + o[1]*a.H*v[1]
	w := a.W * math32.Exp(o[2]*v[2])
	h := a.H * math32.Exp(o[3]*v[3])

	return images.Box{
		YMin: cy - h/2,
		XMin: cx - w/2,
		YMax: cy + h/2,
		XMax: cx + w/2,
	}
}

// matrix returns the float32 backing of t viewed as rows x cols.
func matrix(t *tensor.Dense, rows int) ([]float32, int, error) {
	if t == nil {
		return nil, 0, errors.Wrap(ErrShapeMismatch, "nil tensor")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "dtype %v, want float32", t.Dtype())
	}

	shape := t.Shape()
	if len(shape) == 3 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 2 {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "shape %v is not a matrix", t.Shape())
	}
	if shape[0] != rows {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "%d rows for %d anchors", shape[0], rows)
	}

	data := t.Float32s()
	if len(data) != shape[0]*shape[1] {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "backing of %d values for shape %v", len(data), t.Shape())
	}
	return data, shape[1], nil
}
