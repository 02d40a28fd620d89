package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"harvest-backend/lib/browser"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// pagedDocument shows one more page of items every time it is scrolled.
type pagedDocument struct {
	pages    []string
	revealed int
	queries  int
	reveals  int
}

func (d *pagedDocument) Query(ctx context.Context, selector string) ([]*goquery.Selection, error) {
	d.queries++
	idx := d.revealed
	if idx >= len(d.pages) {
		idx = len(d.pages) - 1
	}
	page, err := browser.NewStaticPageFromString(d.pages[idx])
	if err != nil {
		return nil, err
	}
	return page.Query(ctx, selector)
}

func (d *pagedDocument) Reveal(ctx context.Context, action browser.RevealAction) error {
	d.reveals++
	if action.Kind == browser.RevealScroll {
		d.revealed++
	}
	return nil
}

func postsHTML(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<article class="post" data-id="p%d"><h3>Post %d</h3></article>`, i, i)
	}
	return b.String()
}

var postsTarget = Target{
	Name:         "posts",
	ItemSelector: "article.post",
	KeyFields:    []string{"id"},
	Fields: []Field{
		{Name: "id", Attrs: []string{"data-id"}},
		{Name: "title", Selector: "h3"},
	},
	Reveal: []browser.RevealAction{{Kind: browser.RevealScroll}},
}

func titles(records []Record) []string {
	out := []string{}
	for _, r := range records {
		out = append(out, r.String("title"))
	}
	return out
}

func TestExtractUntilStableGrowingDocument(t *testing.T) {
	doc := &pagedDocument{pages: []string{postsHTML(2), postsHTML(4), postsHTML(5)}}

	var progress []int
	result, err := ExtractUntilStable(context.Background(), doc, postsTarget, LoopConfig{
		OnProgress: func(count int) { progress = append(progress, count) },
	})
	require.NoError(t, err)

	require.Equal(t, []string{"Post 1", "Post 2", "Post 3", "Post 4", "Post 5"}, titles(result.Records()))
	require.Equal(t, []int{2, 4, 5}, progress)
	// 3 growing iterations followed by 3 without growth
	require.Equal(t, 6, doc.queries)
	require.Equal(t, 5, doc.reveals)
}

func TestExtractUntilStableIsIdempotentOnStaticDocument(t *testing.T) {
	page, err := browser.NewStaticPageFromString(postsHTML(3) + postsHTML(3))
	require.NoError(t, err)

	first, err := ExtractUntilStable(context.Background(), page, postsTarget, LoopConfig{})
	require.NoError(t, err)
	second, err := ExtractUntilStable(context.Background(), page, postsTarget, LoopConfig{})
	require.NoError(t, err)

	require.Equal(t, 3, first.Len(), "duplicate nodes should collapse by key")
	if diff := cmp.Diff(first.Records(), second.Records()); diff != "" {
		t.Fatalf("records differ between runs (-first +second):\n%s", diff)
	}
}

func TestExtractUntilStableTerminatesAfterThreshold(t *testing.T) {
	for _, threshold := range []int{1, 3, 5} {
		t.Run(fmt.Sprint(threshold), func(t *testing.T) {
			doc := &pagedDocument{pages: []string{`<main></main>`}}
			result, err := ExtractUntilStable(context.Background(), doc, postsTarget, LoopConfig{
				StabilityThreshold: threshold,
			})
			require.NoError(t, err)
			require.Equal(t, threshold, doc.queries)
			require.Equal(t, threshold-1, doc.reveals)
			require.Equal(t, 0, result.Len())
			require.Empty(t, result.Sections())
			require.NotNil(t, result.Records())
		})
	}
}

func TestExtractUntilStableMaxItems(t *testing.T) {
	doc := &pagedDocument{pages: []string{postsHTML(2), postsHTML(4), postsHTML(8)}}
	result, err := ExtractUntilStable(context.Background(), doc, postsTarget, LoopConfig{MaxItems: 3})
	require.NoError(t, err)
	require.Equal(t, []string{"Post 1", "Post 2", "Post 3"}, titles(result.Records()))
	require.Equal(t, 2, doc.queries)
}

func TestExtractUntilStableCancellation(t *testing.T) {
	doc := &pagedDocument{pages: []string{postsHTML(1), postsHTML(2), postsHTML(3), postsHTML(4)}}

	ctx, cancel := context.WithCancel(context.Background())
	result, err := ExtractUntilStable(ctx, doc, postsTarget, LoopConfig{
		OnProgress: func(count int) {
			if count == 2 {
				cancel()
			}
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, result.Len())
}

func TestExtractUntilStableWaitsBetweenIterations(t *testing.T) {
	doc := &pagedDocument{pages: []string{postsHTML(1)}}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()

	_, err := ExtractUntilStable(ctx, doc, postsTarget, LoopConfig{PollIntervalMs: 10_000})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, doc.queries)
}

func TestExtractUntilStableSections(t *testing.T) {
	page, err := browser.NewStaticPageFromString(`
		<div class="card"><b>Bread</b></div>
		<h4>Starters</h4>
		<div class="card"><b>Soup</b></div>
		<div class="card"><b>Salad</b></div>
		<h4>Mains</h4>
		<div class="card"><b>Curry</b></div>
		<div class="card"><b>Soup</b></div>
	`)
	require.NoError(t, err)

	target := Target{
		Name:            "menu",
		ItemSelector:    "div.card",
		SectionSelector: "h4",
		DefaultSection:  "Other",
		KeyFields:       []string{"title"},
		Fields:          []Field{{Name: "title", Selector: "b"}},
	}
	result, err := ExtractUntilStable(context.Background(), page, target, LoopConfig{StabilityThreshold: 1})
	require.NoError(t, err)

	require.Equal(t, []Section{
		{Section: "Other", Items: []Record{{"title": "Bread"}}},
		{Section: "Starters", Items: []Record{{"title": "Soup"}, {"title": "Salad"}}},
		{Section: "Mains", Items: []Record{{"title": "Curry"}, {"title": "Soup"}}},
	}, result.Sections())
}

func TestExtractUntilStableKeepsEmptySections(t *testing.T) {
	page, err := browser.NewStaticPageFromString(`
		<h4>Specials</h4>
		<h4>Starters</h4>
		<div class="card"><b>Soup</b></div>
		<h4>Drinks</h4>
		<h4>Mains</h4>
		<div class="card"><b>Curry</b></div>
	`)
	require.NoError(t, err)

	target := Target{
		Name:            "menu",
		ItemSelector:    "div.card",
		SectionSelector: "h4",
		KeyFields:       []string{"title"},
		Fields:          []Field{{Name: "title", Selector: "b"}},
	}
	result, err := ExtractUntilStable(context.Background(), page, target, LoopConfig{StabilityThreshold: 1})
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())

	require.Equal(t, []Section{
		{Section: "Specials", Items: []Record{}},
		{Section: "Starters", Items: []Record{{"title": "Soup"}}},
		{Section: "Drinks", Items: []Record{}},
		{Section: "Mains", Items: []Record{{"title": "Curry"}}},
	}, result.Sections())
}

func TestExtractUntilStableDropsSectionsPastMaxItems(t *testing.T) {
	page, err := browser.NewStaticPageFromString(`
		<h4>Starters</h4>
		<div class="card"><b>Soup</b></div>
		<h4>Mains</h4>
		<div class="card"><b>Curry</b></div>
	`)
	require.NoError(t, err)

	target := Target{
		Name:            "menu",
		ItemSelector:    "div.card",
		SectionSelector: "h4",
		KeyFields:       []string{"title"},
		Fields:          []Field{{Name: "title", Selector: "b"}},
	}
	result, err := ExtractUntilStable(context.Background(), page, target, LoopConfig{MaxItems: 1})
	require.NoError(t, err)
	require.Equal(t, []Section{
		{Section: "Starters", Items: []Record{{"title": "Soup"}}},
	}, result.Sections())
}

func TestExtractUntilStableKeysByPositionWithoutKeyFields(t *testing.T) {
	doc := &pagedDocument{pages: []string{
		`<p class="r">same</p>`,
		`<p class="r">same</p><p class="r">same</p>`,
	}}
	target := Target{
		Name:         "reviews",
		ItemSelector: "p.r",
		Fields:       []Field{{Name: "text"}},
		Reveal:       []browser.RevealAction{{Kind: browser.RevealScroll}},
	}
	result, err := ExtractUntilStable(context.Background(), doc, target, LoopConfig{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())
}

func TestExtractUntilStableRejectsInvalidTarget(t *testing.T) {
	page, err := browser.NewStaticPageFromString(`<p></p>`)
	require.NoError(t, err)

	_, err = ExtractUntilStable(context.Background(), page, Target{Name: "x", KeyFields: []string{"id"}}, LoopConfig{})
	require.ErrorContains(t, err, "item selector is required")
	require.ErrorContains(t, err, `key field "id"`)
}

func TestLoopStateMergeDoesNotMutatePrevious(t *testing.T) {
	first := loopState{seen: map[string]struct{}{}}.merge([]Item{{Key: "a"}}, 0)
	second := first.merge([]Item{{Key: "a"}, {Key: "b"}}, 0)

	require.Len(t, first.items, 1)
	require.Len(t, first.seen, 1)
	require.Len(t, second.items, 2)
	require.Equal(t, 0, second.noGrowth)

	third := second.merge([]Item{{Key: "b"}}, 0)
	require.Equal(t, 1, third.noGrowth)
	require.Equal(t, 3, third.iterations)
}
