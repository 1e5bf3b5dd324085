package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

// Outcome is one identity recognized in a photo.
type Outcome struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Group             string  `json:"group"`
	Confidence        float64 `json:"confidence"`
	AlreadyRegistered bool    `json:"already_registered"`
	Time              string  `json:"time"`
}

// Result summarizes one recognition call.
type Result struct {
	Recognized   []Outcome `json:"recognized"`
	UnknownCount int       `json:"unknown"`
	TotalFaces   int       `json:"total_faces"`
	Group        string    `json:"group"`
	Date         string    `json:"date"`
	LedgerFile   string    `json:"attendance_file"`
}

// Today is the content of a group's ledger for the current day.
type Today struct {
	Group   string                      `json:"group"`
	Date    string                      `json:"date"`
	Records []database.AttendanceRecord `json:"students"`
	Total   int                         `json:"total"`
}

// Pipeline matches query faces against the enrolled identities and records
// attendance in the group's ledger for the current day.
type Pipeline struct {
	store    database.IdentityStore
	ledger   database.Ledger
	detector FaceDetector
	metrics  *metrics.Metrics
	now      func() time.Time
	index    string
	cache    facematch.IndexCache
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithMetrics records recognition results on m.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithMatcherIndex selects how candidate samples are found: config.MatcherExact
// compares every sample, config.MatcherHNSW uses an in-memory HNSW graph and
// config.MatcherPGVector asks the store. Approximate candidates are always
// re-ranked with the exact distance.
func WithMatcherIndex(mode string) PipelineOption {
	return func(p *Pipeline) { p.index = mode }
}

// NewPipeline creates a recognition pipeline. detector is only needed by Recognize.
func NewPipeline(store database.IdentityStore, ledger database.Ledger, detector FaceDetector, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:    store,
		ledger:   ledger,
		detector: detector,
		now:      time.Now,
		index:    config.MatcherExact,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeGroup(group string) string {
	group = strings.TrimSpace(group)
	if group == "" {
		return database.DefaultGroup
	}
	return group
}

// Recognize detects the faces in photo and processes them.
// Face detection runs before any store or ledger access.
func (p *Pipeline) Recognize(ctx context.Context, group string, tolerance float64, photo []byte) (*Result, error) {
	if len(photo) == 0 {
		return nil, &ValidationError{Field: "photo", Reason: "must not be empty"}
	}
	if p.detector == nil {
		return nil, fmt.Errorf("no face detector configured")
	}
	faces, err := p.detector.DetectFaces(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	queries := make([][]float64, len(faces))
	for i, f := range faces {
		queries[i] = f.Embedding
	}
	return p.Process(ctx, group, tolerance, queries)
}

// Process matches every query embedding in order and registers each
// recognized identity once. A face matches when its distance is at most
// tolerance, so a negative tolerance matches nothing.
func (p *Pipeline) Process(ctx context.Context, group string, tolerance float64, queries [][]float64) (*Result, error) {
	began := time.Now()
	res, err := p.process(ctx, normalizeGroup(group), tolerance, queries, p.now())
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	p.metrics.Recognition(result, time.Since(began))
	return res, err
}

func (p *Pipeline) process(ctx context.Context, group string, tolerance float64, queries [][]float64, start time.Time) (*Result, error) {
	identities, err := p.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(identities) == 0 {
		return nil, ErrNoIdentitiesRegistered
	}
	p.metrics.Identities(len(identities))

	info, err := p.ledger.GetOrCreate(ctx, group, start)
	if err != nil {
		return nil, err
	}

	matcher := p.matcher(ctx, facematch.Flatten(identities))
	clock := database.FormatClock(start)

	res := &Result{
		Recognized: []Outcome{},
		TotalFaces: len(queries),
		Group:      group,
		Date:       info.Date,
		LedgerFile: info.FileName,
	}
	seen := make(map[string]bool)

	for _, query := range queries {
		m, err := matcher.Best(query, tolerance)
		if err != nil {
			return nil, err
		}
		if !m.Matched {
			res.UnknownCount++
			p.metrics.Face(metrics.OutcomeUnknown, m.Distance)
			continue
		}
		if seen[m.OwnerID] {
			p.metrics.Face(metrics.OutcomeRepeated, m.Distance)
			continue
		}
		seen[m.OwnerID] = true

		ident := identities[m.OwnerID]
		inserted, err := p.ledger.InsertIfAbsent(ctx, group, start, database.AttendanceRecord{
			IdentityID: ident.ID,
			Name:       ident.Name,
			Group:      ident.Group,
			Time:       clock,
		})
		if err != nil {
			return nil, err
		}
		outcome := metrics.OutcomeRegistered
		if !inserted {
			outcome = metrics.OutcomeAlready
		}
		p.metrics.Face(outcome, m.Distance)

		res.Recognized = append(res.Recognized, Outcome{
			ID:                ident.ID,
			Name:              ident.Name,
			Group:             ident.Group,
			Confidence:        m.Confidence,
			AlreadyRegistered: !inserted,
			Time:              clock,
		})
	}
	return res, nil
}

// matcher builds the matcher for the configured index mode. Stores that
// cannot search on their side fall back to the exact scan.
func (p *Pipeline) matcher(ctx context.Context, samples []facematch.Sample) *facematch.Matcher {
	m := facematch.NewMatcher(samples)
	switch p.index {
	case config.MatcherHNSW:
		return m.WithCandidates(p.cache.Get(samples), database.HNSWCandidates)
	case config.MatcherPGVector:
		if searcher, ok := p.store.(database.NearestSearcher); ok {
			return m.WithCandidates(newStoreCandidates(ctx, searcher, samples), database.HNSWCandidates)
		}
	}
	return m
}

// storeCandidates adapts a database.NearestSearcher to facematch.CandidateSource.
type storeCandidates struct {
	ctx      context.Context
	searcher database.NearestSearcher
	index    map[database.SampleRef]int
}

func newStoreCandidates(ctx context.Context, searcher database.NearestSearcher, samples []facematch.Sample) *storeCandidates {
	index := make(map[database.SampleRef]int, len(samples))
	for i, s := range samples {
		index[database.SampleRef{IdentityID: s.OwnerID, Position: s.Position}] = i
	}
	return &storeCandidates{ctx: ctx, searcher: searcher, index: index}
}

func (c *storeCandidates) Candidates(query []float64, k int) ([]int, error) {
	refs, err := c.searcher.NearestSamples(c.ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(refs))
	for _, ref := range refs {
		if i, ok := c.index[ref]; ok {
			out = append(out, i)
		}
	}
	return out, nil
}

// Today returns the current day's ledger of group. A ledger that was never
// created reads as empty.
func (p *Pipeline) Today(ctx context.Context, group string) (*Today, error) {
	group = normalizeGroup(group)
	now := p.now()
	records, err := p.ledger.ReadAll(ctx, group, now)
	if err != nil {
		return nil, err
	}
	return &Today{
		Group:   group,
		Date:    database.FormatDate(now),
		Records: records,
		Total:   len(records),
	}, nil
}

// LedgerExists reports whether the current day's ledger of group was created.
func (p *Pipeline) LedgerExists(ctx context.Context, group string) (bool, error) {
	return p.ledger.Exists(ctx, normalizeGroup(group), p.now())
}

// Now returns the pipeline's current time.
func (p *Pipeline) Now() time.Time {
	return p.now()
}
