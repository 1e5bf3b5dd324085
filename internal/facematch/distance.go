package facematch

import "github.com/kozaktomas/face-attendance/internal/database"

// Distance is the metric used by the matcher.
func Distance(a, b []float64) float64 {
	return database.EuclideanDistance(a, b)
}
