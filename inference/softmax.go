package inference

import "github.com/chewxy/math32"

// Softmax normalizes every row of a row-major [rows, cols] matrix in place.
//
// The row maximum is subtracted before exponentiation so large logits do not overflow.
func Softmax(data []float32, cols int) {
	if cols <= 0 {
		return
	}
	for start := 0; start+cols <= len(data); start += cols {
		row := data[start : start+cols]

		peak := row[0]
		for _, v := range row[1:] {
			peak = math32.Max(peak, v)
		}

		var sum float32
		for i, v := range row {
			row[i] = math32.Exp(v - peak)
			sum += row[i]
		}
		for i := range row {
			row[i] /= sum
		}
	}
}
