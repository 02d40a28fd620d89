package extract

import (
	"context"
	"errors"
	"sync"
	"time"

	"harvest-backend/lib/chrono"
)

var ErrRunFinalized = errors.New("extraction run already finalized")

// Run is one end-to-end extraction producing a single output document.
// It is filled by the extraction loop and frozen by Finalize.
type Run struct {
	Url       string
	StartedAt time.Time

	mu        sync.Mutex
	result    Result
	finalized bool
}

func NewRun(url string, clock chrono.API) *Run {
	return &Run{Url: url, StartedAt: clock.Now()}
}

// Collect runs the extraction loop against doc and stores its result in the
// run, a failed collection leaves the run untouched.
func (r *Run) Collect(ctx context.Context, doc Document, target Target, cfg LoopConfig) error {
	r.mu.Lock()
	finalized := r.finalized
	r.mu.Unlock()
	if finalized {
		return ErrRunFinalized
	}

	result, err := ExtractUntilStable(ctx, doc, target, cfg)
	if err != nil {
		return err
	}
	return r.Set(result)
}

// Set stores an already computed result.
func (r *Run) Set(result Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return ErrRunFinalized
	}
	r.result = result
	return nil
}

type Snapshot struct {
	Url       string
	StartedAt time.Time
	Result    Result
	Total     int
	// item count per section
	PerSection map[string]int
}

// Finalize freezes the run, it succeeds exactly once.
func (r *Run) Finalize() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return Snapshot{}, ErrRunFinalized
	}
	r.finalized = true

	perSection := map[string]int{}
	for _, s := range r.result.Sections() {
		perSection[s.Section] = len(s.Items)
	}
	return Snapshot{
		Url:        r.Url,
		StartedAt:  r.StartedAt,
		Result:     r.result,
		Total:      r.result.Len(),
		PerSection: perSection,
	}, nil
}
