package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"harvest-backend/lib/browser"
	"harvest-backend/lib/chrono"

	"github.com/stretchr/testify/require"
)

func TestRunFinalizesOnce(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := NewRun("https://example.com/menu", chrono.FixedImpl{At: at})

	page, err := browser.NewStaticPageFromString(postsHTML(2))
	require.NoError(t, err)
	require.NoError(t, run.Collect(context.Background(), page, postsTarget, LoopConfig{StabilityThreshold: 1}))

	snapshot, err := run.Finalize()
	require.NoError(t, err)
	require.Equal(t, "https://example.com/menu", snapshot.Url)
	require.Equal(t, at, snapshot.StartedAt)
	require.Equal(t, 2, snapshot.Total)
	require.Equal(t, map[string]int{"": 2}, snapshot.PerSection)

	_, err = run.Finalize()
	require.ErrorIs(t, err, ErrRunFinalized)
	require.ErrorIs(t, run.Collect(context.Background(), page, postsTarget, LoopConfig{}), ErrRunFinalized)
	require.ErrorIs(t, run.Set(Result{}), ErrRunFinalized)
}

func TestLoadTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json5")
	err := os.WriteFile(path, []byte(`{
		targets: [
			{
				name: "reviews",
				item_selector: ".review",
				key_fields: ["author", "text"],
				fields: [
					{name: "author", selector: ".author"},
					{name: "rating", selector: ".stars", attrs: ["aria-label"], transform: "first_word|int"},
					{name: "text", selector: ".text", default: ""},
				],
				expand: {kind: "expand", selector: "button.more"},
				reveal: [{kind: "scroll", container: ".feed"}],
			},
		],
	}`), 0600)
	require.NoError(t, err)

	targets, err := LoadTargets(path)
	require.NoError(t, err)
	target, ok := targets["reviews"]
	require.True(t, ok)

	page, err := browser.NewStaticPageFromString(`
		<div class="review"><span class="author">Ana</span><span class="stars" aria-label="4 stars"></span></div>
		<div class="review"><span class="author">Bo</span><span class="stars" aria-label="five"></span><p class="text">Great</p></div>
	`)
	require.NoError(t, err)

	result, err := ExtractUntilStable(context.Background(), page, target, LoopConfig{StabilityThreshold: 1})
	require.NoError(t, err)
	require.Equal(t, []Record{
		{"author": "Ana", "rating": 4, "text": ""},
		{"author": "Bo", "rating": nil, "text": "Great"},
	}, result.Records())
}

func TestLoadTargetsAppliesFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json5")
	err := os.WriteFile(path, []byte(`{
		defaults: {
			default_section: "Other",
			reveal: [{kind: "scroll", step_px: 400}],
		},
		targets: [
			{name: "plain", item_selector: "li", fields: [{name: "text"}]},
			{name: "own", item_selector: "li", default_section: "Misc", reveal: [], fields: [{name: "text"}]},
		],
	}`), 0600)
	require.NoError(t, err)

	targets, err := LoadTargets(path)
	require.NoError(t, err)

	plain := targets["plain"]
	require.Equal(t, "Other", plain.DefaultSection)
	require.Equal(t, []browser.RevealAction{{Kind: browser.RevealScroll, StepPx: 400}}, plain.Reveal)

	own := targets["own"]
	require.Equal(t, "Misc", own.DefaultSection)
	require.Len(t, own.Fields, 1)
}

func TestLoadTargetsRejectsUnknownTransform(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json5")
	err := os.WriteFile(path, []byte(`{targets: [{name: "x", item_selector: "p", fields: [{name: "a", transform: "nope"}]}]}`), 0600)
	require.NoError(t, err)

	_, err = LoadTargets(path)
	require.ErrorContains(t, err, `unknown transform "nope"`)
}
