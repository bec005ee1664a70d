package postprocess

// TopK sorts detections by descending score and keeps the k best.
//
// The sort is stable so equal scores keep their relative order. A k of zero or less keeps
// every detection. The input slice is reordered in place.
func TopK(detections []Result, k int) []Result {
	sortByScore(detections)
	if k > 0 && len(detections) > k {
		detections = detections[:k]
	}
	return detections
}
