package extract

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"harvest-backend/lib/browser"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("harvest.lib.extract")

var meter = otel.Meter("harvest.lib.extract")
var recordsCounter, _ = meter.Int64Counter("extract.records")
var iterationsCounter, _ = meter.Int64Counter("extract.iterations")

// Document is a live, queryable page.
type Document interface {
	Query(ctx context.Context, selector string) ([]*goquery.Selection, error)
	Reveal(ctx context.Context, action browser.RevealAction) error
}

const DefaultStabilityThreshold = 3

type LoopConfig struct {
	// used by scroll reveal actions that do not set their own step
	ScrollStepPx   int `json:"scroll_step_px"`
	PollIntervalMs int `json:"poll_interval_ms"`
	// defaults to DefaultStabilityThreshold
	StabilityThreshold int `json:"stability_threshold"`
	// 0 means no cap
	MaxItems int `json:"max_items"`
	// called with the accumulated count every time it grows
	OnProgress func(count int) `json:"-"`
}

func (c LoopConfig) threshold() int {
	if c.StabilityThreshold <= 0 {
		return DefaultStabilityThreshold
	}
	return c.StabilityThreshold
}

func (c LoopConfig) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// loopState is replaced, never mutated, on every iteration.
type loopState struct {
	items []Item
	seen  map[string]struct{}
	// section names in the order they were first encountered, including
	// headers that have no items
	sections   []string
	noGrowth   int
	iterations int
}

func (s loopState) merge(batch []Item, maxItems int) loopState {
	next := loopState{
		items:      s.items,
		seen:       s.seen,
		sections:   s.sections,
		noGrowth:   s.noGrowth + 1,
		iterations: s.iterations + 1,
	}

	cloned := false
	clone := func() {
		if cloned {
			return
		}
		next.items = slices.Clone(s.items)
		next.seen = maps.Clone(s.seen)
		next.sections = slices.Clone(s.sections)
		cloned = true
	}
	addSection := func(name string) {
		if slices.Contains(next.sections, name) {
			return
		}
		clone()
		next.sections = append(next.sections, name)
	}

	for _, item := range batch {
		if maxItems > 0 && len(next.items) >= maxItems {
			break
		}
		if item.header {
			addSection(item.Section)
			continue
		}
		if _, ok := next.seen[item.Key]; ok {
			continue
		}
		addSection(item.Section)
		clone()
		next.items = append(next.items, item)
		next.seen[item.Key] = struct{}{}
	}

	if len(next.items) > len(s.items) {
		next.noGrowth = 0
	}
	return next
}

func (s loopState) done(cfg LoopConfig) bool {
	if cfg.MaxItems > 0 && len(s.items) >= cfg.MaxItems {
		return true
	}
	return s.noGrowth >= cfg.threshold()
}

// ExtractUntilStable repeatedly queries doc for the target's items and
// reveals more content until the collection stops growing for
// StabilityThreshold consecutive iterations or MaxItems is reached.
// Items are deduplicated by key. The loop stops at the next iteration
// boundary once ctx is done, returning what was collected and ctx's error.
func ExtractUntilStable(ctx context.Context, doc Document, target Target, cfg LoopConfig) (Result, error) {
	ctx, span := tracer.Start(ctx, "ExtractUntilStable")
	defer span.End()
	span.SetAttributes(attribute.String("target", target.Name))

	err := target.Validate()
	if err != nil {
		return Result{}, err
	}

	attrs := metric.WithAttributes(attribute.String("target", target.Name))
	state := loopState{seen: map[string]struct{}{}}
	result := func() Result {
		return Result{
			items:          state.items,
			sections:       state.sections,
			defaultSection: target.DefaultSection,
		}
	}
	fail := func(err error) (Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result(), err
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		if target.Expand != nil {
			err := doc.Reveal(ctx, *target.Expand)
			if err != nil {
				slog.DebugContext(ctx, "expand failed", "target", target.Name, "err", err)
			}
		}

		nodes, err := doc.Query(ctx, target.querySelector())
		if err != nil {
			return fail(fmt.Errorf("query %s: %w", target.Name, err))
		}

		next := state.merge(target.collect(nodes), cfg.MaxItems)
		iterationsCounter.Add(ctx, 1, attrs)
		if grown := len(next.items) - len(state.items); grown > 0 {
			recordsCounter.Add(ctx, int64(grown), attrs)
			slog.InfoContext(
				ctx, "collected records",
				"target", target.Name,
				"count", len(next.items),
				"iteration", next.iterations,
			)
			if cfg.OnProgress != nil {
				cfg.OnProgress(len(next.items))
			}
		}
		state = next

		if state.done(cfg) {
			break
		}

		for _, action := range target.Reveal {
			if action.Kind == browser.RevealScroll && action.StepPx == 0 {
				action.StepPx = cfg.ScrollStepPx
			}
			err := doc.Reveal(ctx, action)
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			if err != nil {
				slog.DebugContext(ctx, "reveal failed", "target", target.Name, "kind", action.Kind, "err", err)
			}
		}

		err = wait(ctx, cfg.pollInterval())
		if err != nil {
			return fail(err)
		}
	}

	span.SetAttributes(
		attribute.Int("records", len(state.items)),
		attribute.Int("iterations", state.iterations),
	)
	return result(), nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Result is the deduplicated output of ExtractUntilStable in encounter order.
type Result struct {
	items []Item
	// section names in encounter order, may name sections without items
	sections       []string
	defaultSection string
}

// NewResult builds a Result out of already extracted items.
func NewResult(items []Item) Result {
	return Result{items: items}
}

func (r Result) Len() int {
	return len(r.items)
}

func (r Result) Items() []Item {
	return slices.Clone(r.items)
}

func (r Result) Records() []Record {
	records := make([]Record, 0, len(r.items))
	for _, item := range r.items {
		records = append(records, item.Record)
	}
	return records
}

// Sections groups records by section in the order sections were first
// seen. A section header without items is kept as an empty section.
func (r Result) Sections() []Section {
	sections := []Section{}
	index := map[string]int{}
	sectionIndex := func(name string) int {
		if name == "" {
			name = r.defaultSection
		}
		i, ok := index[name]
		if !ok {
			i = len(sections)
			index[name] = i
			sections = append(sections, Section{Section: name, Items: []Record{}})
		}
		return i
	}

	for _, name := range r.sections {
		sectionIndex(name)
	}
	for _, item := range r.items {
		i := sectionIndex(item.Section)
		sections[i].Items = append(sections[i].Items, item.Record)
	}
	return sections
}
