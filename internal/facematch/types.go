// Package facematch finds the enrolled identity closest to a query face embedding.
package facematch

// Sample is one stored embedding together with its owning identity.
type Sample struct {
	OwnerID   string
	Position  int // index of the sample in the owner's embedding history
	Embedding []float64
}

// Match is the outcome of matching one query embedding.
type Match struct {
	Matched    bool
	OwnerID    string
	Sample     int     // index into the flattened samples, -1 when there are none
	Distance   float64 // distance to the closest sample
	Confidence float64 // (1 - distance) * 100, one decimal, clamped to [0, 100]
}

// CandidateSource narrows the samples worth comparing against a query.
// Returned values are indices into the flattened sample list.
type CandidateSource interface {
	Candidates(query []float64, k int) ([]int, error)
}
