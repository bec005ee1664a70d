// Package postprocess - Postprocessing utilities for models.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/ssd-video/images"
)

// Result represents a single detection result.
type Result struct {
	// The predicted class index of the result. Class 0 is background.
	Class int `json:"class" yaml:"class"`
	// The confidence score of the result.
	Score float32 `json:"score" yaml:"score"`
	// The bounding box of the result in normalized coordinates.
	Box images.Box `json:"box" yaml:"box"`
}

func (r Result) String() string {
	return fmt.Sprintf("class=%d score=%.3f box=%s", r.Class, r.Score, r.Box)
}
