package terrain

import "math"

// LeaveOneOutRMSE scores a kernel on a point set: each point is predicted
// from all the others and the root-mean-square height error is returned.
// Fewer than two points score zero.
func LeaveOneOutRMSE(points []Point, k Kernel) float64 {
	if len(points) < 2 {
		return 0
	}

	others := make([]Point, 0, len(points)-1)
	var sumSq float64
	for i, p := range points {
		others = others[:0]
		others = append(others, points[:i]...)
		others = append(others, points[i+1:]...)

		d := k.Height(p.X, p.Y, others) - p.Z
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(points)))
}
