package browser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StaticPage is an already fetched document, reveal actions do nothing on it.
type StaticPage struct {
	doc *goquery.Document
}

func NewStaticPage(r io.Reader) (StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return StaticPage{}, fmt.Errorf("parse document: %w", err)
	}
	return StaticPage{doc: doc}, nil
}

func NewStaticPageFromString(html string) (StaticPage, error) {
	return NewStaticPage(strings.NewReader(html))
}

func (p StaticPage) Query(ctx context.Context, selector string) ([]*goquery.Selection, error) {
	return split(p.doc.Find(selector)), nil
}

func (p StaticPage) Reveal(ctx context.Context, action RevealAction) error {
	_, err := action.Script()
	return err
}

func (p StaticPage) Document() *goquery.Document {
	return p.doc
}
