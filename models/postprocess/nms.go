// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/ssd-video/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap above which a candidate is suppressed.
	ClassAware   bool    `json:"class_aware" yaml:"class_aware"`     // If true, suppress only within same class.
}

// DefaultNMSConfig returns the per-class configuration used by the SSD pipeline.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		IoUThreshold: 0.45,
		ClassAware:   true,
	}
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// The detections are stably re-sorted by descending score. The best remaining candidate is
// kept and every later candidate (of the same class when ClassAware is set) whose Jaccard
// overlap with it is strictly greater than the IoU threshold is dropped. An overlap exactly at
// the threshold does not suppress. Zero-area boxes have overlap 0 and are never suppressed.
//
// The output is in descending score order, which preserves insertion order within each class.
// Running the function again on its own output returns the same set.
//
// Arguments:
//   - detections: Slice of detections. It is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func ApplyGreedyNMS(detections []Result, config NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := make([]Result, n)
	copy(sorted, detections)
	sortByScore(sorted)

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && sorted[j].Class != anchor.Class {
				continue
			}

			// Suppress if IoU exceeds threshold
			if images.Jaccard(anchor.Box, sorted[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}

// sortByScore orders detections by descending score, keeping the relative order of ties.
func sortByScore(detections []Result) {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})
}
