package extract

import (
	"strings"

	"harvest-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Extract reads a single field from node. It never panics: a missing node,
// attribute or text yields the field's default, a failing transform yields nil.
func Extract(node *goquery.Selection, f Field) (value any) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
		}
	}()

	raw, ok := read(node, f)
	if !ok {
		return f.Default
	}
	if f.Transform == nil {
		return raw
	}
	transformed, err := f.Transform(raw)
	if err != nil {
		return nil
	}
	return transformed
}

func read(node *goquery.Selection, f Field) (string, bool) {
	if node == nil || node.Length() == 0 {
		return "", false
	}
	target := node.First()
	if f.Selector != "" {
		target = node.Find(f.Selector).First()
		if target.Length() == 0 {
			return "", false
		}
	}

	if len(f.Attrs) == 0 {
		text := htmlutil.SelectionText(target)
		return text, text != ""
	}
	for _, attr := range f.Attrs {
		value, ok := target.Attr(attr)
		value = strings.TrimSpace(value)
		if ok && value != "" {
			return value, true
		}
	}
	return "", false
}
