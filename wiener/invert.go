package wiener

// Mat2 is a 2x2 complex matrix indexed [row][column]. Rows and columns
// correspond to audio channels.
type Mat2 [2][2]complex128

// Invert returns the inverse of m computed with the closed-form 2x2 formula.
// The determinant denominator is regularized by eps, so the result is finite
// for singular input whenever eps > 0. This is the only inversion primitive in
// the pipeline, which is what pins the channel count to exactly two.
func Invert(m Mat2, eps float64) Mat2 {
	invDet := 1 / (complex(eps, 0) + (m[0][0]*m[1][1] - m[0][1]*m[1][0]))
	return Mat2{
		{invDet * m[1][1], -invDet * m[0][1]},
		{-invDet * m[1][0], invDet * m[0][0]},
	}
}

// invertBins inverts a [bin][frame] tensor of matrices
func invertBins(ms [][]Mat2, eps float64) [][]Mat2 {
	inv := make([][]Mat2, len(ms))
	for f := range ms {
		inv[f] = make([]Mat2, len(ms[f]))
		for t := range ms[f] {
			inv[f][t] = Invert(ms[f][t], eps)
		}
	}
	return inv
}
