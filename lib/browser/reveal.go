package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrRevealUnavailable is returned when the element a reveal action targets
// is not on the page.
var ErrRevealUnavailable = errors.New("reveal action unavailable")

type RevealKind string

const (
	RevealScroll RevealKind = "scroll"
	RevealExpand RevealKind = "expand"
)

// RevealAction is a page mutation that surfaces more content.
type RevealAction struct {
	Kind RevealKind `json:"kind"`
	// scroll: the scrollable element, empty scrolls the window.
	Container string `json:"container"`
	// scroll: pixels per step, 0 jumps to the current bottom.
	StepPx int `json:"step_px"`
	// expand: the affordances to click.
	Selector string `json:"selector"`
	// expand: only click affordances whose text contains this (case-insensitive).
	Text string `json:"text"`
}

func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

// Script renders the action as a self-invoking script that returns false
// when the action had nothing to act on.
func (a RevealAction) Script() (string, error) {
	switch a.Kind {
	case RevealScroll:
		return a.scrollScript(), nil
	case RevealExpand:
		if a.Selector == "" {
			return "", fmt.Errorf("expand action requires a selector")
		}
		return a.expandScript(), nil
	default:
		return "", fmt.Errorf("unknown reveal kind %q", a.Kind)
	}
}

func (a RevealAction) scrollScript() string {
	target := "el.scrollHeight"
	if a.StepPx > 0 {
		target = fmt.Sprintf("el.scrollTop + %d", a.StepPx)
	}
	element := "document.scrollingElement || document.documentElement"
	if a.Container != "" {
		element = fmt.Sprintf("document.querySelector(%s)", jsString(a.Container))
	}
	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el) return false;
	el.scrollTop = %s;
	return true;
})()`, element, target)
}

func (a RevealAction) expandScript() string {
	return fmt.Sprintf(`(() => {
	const text = %s;
	let clicked = 0;
	document.querySelectorAll(%s).forEach((el) => {
		if (el.dataset.harvestExpanded) return;
		if (text && !el.textContent.toLowerCase().includes(text)) return;
		el.dataset.harvestExpanded = "1";
		el.click();
		clicked++;
	});
	return clicked > 0;
})()`, jsString(strings.ToLower(a.Text)), jsString(a.Selector))
}
