package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"harvest-backend/lib/browser"
	"harvest-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Record maps a field name to its extracted value, a missing value is nil.
type Record map[string]any

// String returns the value of field as a string, "" when it is missing.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

type Section struct {
	Section string   `json:"section"`
	Items   []Record `json:"items"`
}

// Transform post-processes the raw string read by a Field.
type Transform func(raw string) (any, error)

// Field locates a value relative to an item node.
type Field struct {
	Name string
	// the first descendant matching Selector is read, empty reads the item node itself.
	Selector string
	// attributes tried in order, empty reads the normalized text content.
	Attrs     []string
	Transform Transform
	// used when the node, attribute or text is absent.
	Default any
}

// Target describes how records are pulled out of a document.
type Target struct {
	Name         string
	ItemSelector string
	// nodes matching SectionSelector start a new section named by their text.
	SectionSelector string
	// the section of items that appear before any section header.
	DefaultSection string
	Fields         []Field
	// the fields whose values identify an item, see Target.key.
	KeyFields []string
	// performed before every query, e.g. clicking "read more" buttons.
	Expand *browser.RevealAction
	// performed after every iteration that did not end the loop.
	Reveal []browser.RevealAction
}

func (t Target) Validate() error {
	var errs []error
	if t.ItemSelector == "" {
		errs = append(errs, fmt.Errorf("target %q: item selector is required", t.Name))
	}
	names := map[string]bool{}
	for _, f := range t.Fields {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("target %q: field without a name", t.Name))
		}
		if names[f.Name] {
			errs = append(errs, fmt.Errorf("target %q: duplicate field %q", t.Name, f.Name))
		}
		names[f.Name] = true
	}
	for _, k := range t.KeyFields {
		if !names[k] {
			errs = append(errs, fmt.Errorf("target %q: key field %q is not a field", t.Name, k))
		}
	}
	return errors.Join(errs...)
}

func (t Target) querySelector() string {
	if t.SectionSelector == "" {
		return t.ItemSelector
	}
	return t.SectionSelector + ", " + t.ItemSelector
}

// ExtractRecord extracts every field of the target from node.
func (t Target) ExtractRecord(node *goquery.Selection) Record {
	record := make(Record, len(t.Fields))
	for _, f := range t.Fields {
		record[f.Name] = Extract(node, f)
	}
	return record
}

// Item is a record together with its section and identity.
type Item struct {
	Section string
	Key     string
	Record  Record

	// a section header, it carries no record
	header bool
}

func (t Target) collect(nodes []*goquery.Selection) []Item {
	section := t.DefaultSection
	items := make([]Item, 0, len(nodes))
	position := 0
	for _, node := range nodes {
		if t.SectionSelector != "" && node.Is(t.SectionSelector) {
			section = htmlutil.SelectionText(node)
			items = append(items, Item{Section: section, header: true})
			continue
		}
		record := t.ExtractRecord(node)
		items = append(items, Item{
			Section: section,
			Key:     t.key(section, record, position),
			Record:  record,
		})
		position++
	}
	return items
}

// key identifies an item by its section and key field values, falling back
// to the item's position when none of the key fields have a value.
func (t Target) key(section string, record Record, position int) string {
	parts := []string{section}
	empty := true
	for _, name := range t.KeyFields {
		value := record.String(name)
		if value != "" {
			empty = false
		}
		parts = append(parts, value)
	}
	if empty {
		parts = append(parts, "#"+strconv.Itoa(position))
	}
	return strings.Join(parts, "\x1f")
}
