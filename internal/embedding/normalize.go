package embedding

import "math"

// unitLength rescales v in place so its L2 norm is 1 and returns it. Zero vectors come back unchanged
// so that cosine distance against them stays defined by the caller.
func unitLength(v []float32) []float32 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		return v
	}
	scale := 1 / math.Sqrt(sq)
	for i, x := range v {
		v[i] = float32(float64(x) * scale)
	}
	return v
}
