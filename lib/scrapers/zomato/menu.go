package zomato

import (
	"context"
	"fmt"
	"maps"
	"time"

	"harvest-backend/lib/browser"
	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"
)

const (
	sectionHeaderSelector = "h4.sc-1hp8d8a-0"
	itemCardSelector      = ".sc-bsBFbB.iDOlyD"
	readMoreSelector      = "span.sc-eLpfTy.fDJZgR"
)

// price elements are numbered sc-17hyc2s-1 through sc-17hyc2s-10 depending
// on whether the item has a discount.
var priceSelector = func() string {
	sel := ""
	for i := 1; i <= 10; i++ {
		if i > 1 {
			sel += ", "
		}
		sel += fmt.Sprintf(".sc-17hyc2s-%d", i)
	}
	return sel
}()

// MenuTarget extracts menu items from a rendered ordering page, section
// headers are interleaved with the item cards they contain.
var MenuTarget = extract.Target{
	Name:            "zomato_menu",
	ItemSelector:    itemCardSelector,
	SectionSelector: sectionHeaderSelector,
	DefaultSection:  "Other",
	// "read more" rewrites the description, so it is not part of the key
	KeyFields: []string{"title", "category", "price"},
	Fields: []extract.Field{
		{Name: "category", Selector: ".sc-1hez2tp-0.sc-fguZLD.caWawD"},
		{Name: "title", Selector: ".sc-gsxalj"},
		{Name: "description", Selector: ".sc-bPzAnn.dRgPyk"},
		{Name: "price", Selector: priceSelector, Transform: extract.StripCurrency},
		{Name: "type", Selector: ".sc-jRTQlX", Attrs: []string{"type"}, Default: "veg"},
		{
			Name:      "imageUrl",
			Selector:  `.sc-s1isp7-1.kmRBaC img, img[class*="sc-s1isp7-5"]`,
			Attrs:     []string{"src", "data-src"},
			Transform: extract.CleanImageURL,
		},
	},
	Expand: &browser.RevealAction{
		Kind:     browser.RevealExpand,
		Selector: readMoreSelector,
		Text:     "read more",
	},
	Reveal: []browser.RevealAction{{Kind: browser.RevealScroll}},
}

type Stats struct {
	TotalItems      int `json:"totalItems"`
	VegItems        int `json:"vegItems"`
	NonVegItems     int `json:"nonVegItems"`
	ItemsWithImages int `json:"itemsWithImages"`
}

func Summarize(sections []extract.Section) Stats {
	var stats Stats
	for _, section := range sections {
		for _, item := range section.Items {
			stats.TotalItems++
			switch item.String("type") {
			case "veg":
				stats.VegItems++
			case "non-veg":
				stats.NonVegItems++
			}
			if item.String("imageUrl") != "" {
				stats.ItemsWithImages++
			}
		}
	}
	return stats
}

type MenuDocument struct {
	Timestamp time.Time         `json:"timestamp"`
	Url       string            `json:"url"`
	Menu      []extract.Section `json:"menu"`
	Stats     Stats             `json:"stats"`
}

func withNonVegFlag(sections []extract.Section) []extract.Section {
	out := make([]extract.Section, 0, len(sections))
	for _, section := range sections {
		items := make([]extract.Record, 0, len(section.Items))
		for _, item := range section.Items {
			record := maps.Clone(item)
			record["isNonVeg"] = item.String("type") == "non-veg"
			items = append(items, record)
		}
		out = append(out, extract.Section{Section: section.Section, Items: items})
	}
	return out
}

// ScrapeMenuPage navigates page to url and collects the menu until it stops
// growing.
func ScrapeMenuPage(ctx context.Context, page browser.Tab, url string, cfg extract.LoopConfig, clock chrono.API) (MenuDocument, error) {
	ctx, span := tracer.Start(ctx, "ScrapeMenuPage")
	defer span.End()

	run := extract.NewRun(url, clock)

	err := page.Navigate(ctx, url, browser.NavigateOptions{Timeout: time.Minute})
	if err != nil {
		return MenuDocument{}, err
	}
	err = run.Collect(ctx, page, MenuTarget, cfg)
	if err != nil {
		return MenuDocument{}, fmt.Errorf("collect menu: %w", err)
	}
	snapshot, err := run.Finalize()
	if err != nil {
		return MenuDocument{}, err
	}

	menu := withNonVegFlag(snapshot.Result.Sections())
	return MenuDocument{
		Timestamp: snapshot.StartedAt,
		Url:       snapshot.Url,
		Menu:      menu,
		Stats:     Summarize(menu),
	}, nil
}
