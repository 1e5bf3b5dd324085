package facematch

import (
	"fmt"
	"math"
)

// DefaultTolerance is the default maximum distance for a match.
// Lower values are stricter.
const DefaultTolerance = 0.5

// Matcher performs nearest-neighbor search over a fixed set of samples using
// Euclidean distance.
type Matcher struct {
	samples []Sample
	index   CandidateSource
	k       int
}

// NewMatcher creates an exact matcher over samples.
func NewMatcher(samples []Sample) *Matcher {
	return &Matcher{samples: samples}
}

// WithCandidates makes the matcher compare only the k candidates returned by
// src. Candidates are re-ranked with the exact metric.
func (m *Matcher) WithCandidates(src CandidateSource, k int) *Matcher {
	m.index = src
	m.k = k
	return m
}

// Best returns the closest sample to query and whether it is within tolerance.
// The boundary is inclusive. When several samples share the minimum distance
// the one that comes first in the flattened order wins.
func (m *Matcher) Best(query []float64, tolerance float64) (Match, error) {
	best := Match{Sample: -1, Distance: math.Inf(1)}
	if len(m.samples) == 0 {
		return best, nil
	}

	if m.index != nil {
		candidates, err := m.index.Candidates(query, m.k)
		if err != nil {
			return best, fmt.Errorf("candidate search: %w", err)
		}
		for _, i := range candidates {
			if i < 0 || i >= len(m.samples) {
				continue
			}
			best = m.consider(best, i, query)
		}
	} else {
		for i := range m.samples {
			best = m.consider(best, i, query)
		}
	}

	if best.Sample < 0 {
		return best, nil
	}
	best.OwnerID = m.samples[best.Sample].OwnerID
	if best.Distance <= tolerance {
		best.Matched = true
		best.Confidence = Confidence(best.Distance)
	}
	return best, nil
}

// consider keeps the current best unless sample i is strictly closer, or
// equally close but earlier in the flattened order.
func (m *Matcher) consider(best Match, i int, query []float64) Match {
	d := Distance(query, m.samples[i].Embedding)
	if math.IsInf(d, 1) || math.IsNaN(d) {
		return best
	}
	if d < best.Distance || (d == best.Distance && i < best.Sample) {
		best.Distance = d
		best.Sample = i
	}
	return best
}

// Confidence converts a distance to a percentage with one decimal.
// Distances outside [0, 1] are clamped to the [0, 100] range.
func Confidence(distance float64) float64 {
	c := math.Round((1-distance)*100*10) / 10
	return min(max(c, 0), 100)
}
