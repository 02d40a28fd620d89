package gmaps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"harvest-backend/lib/browser"
	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("harvest.lib.scrapers.gmaps")

const reviewSelector = ".jftiEf"

// ReviewsTarget extracts the reviews of a place from the reviews tab of
// google maps.
var ReviewsTarget = extract.Target{
	Name:         "gmaps_reviews",
	ItemSelector: reviewSelector,
	// the text is rewritten when "More" is clicked, so it is not part of the key
	KeyFields: []string{"reviewId", "author", "date"},
	Fields: []extract.Field{
		{Name: "reviewId", Attrs: []string{"data-review-id"}},
		{Name: "author", Selector: ".d4r55"},
		{
			Name:      "rating",
			Selector:  ".kvMYJc",
			Attrs:     []string{"aria-label"},
			Transform: extract.Chain(extract.FirstWord, extract.ParseInt),
		},
		{Name: "text", Selector: ".wiI7pd"},
		{Name: "date", Selector: ".rsqaWe"},
	},
	Expand: &browser.RevealAction{
		Kind:     browser.RevealExpand,
		Selector: ".w8nwRe.kyuRq",
		Text:     "more",
	},
	Reveal: []browser.RevealAction{{
		Kind:      browser.RevealScroll,
		Container: `div[role="main"]`,
	}},
}

type Review struct {
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Text   string `json:"text"`
	Date   string `json:"date"`
}

type ReviewsDocument struct {
	TotalReviews   int       `json:"total_reviews"`
	CollectionDate time.Time `json:"collection_date"`
	Reviews        []Review  `json:"reviews"`
}

// validReviews drops reviews that are missing an author, a text or a rating.
func validReviews(records []extract.Record) []Review {
	reviews := []Review{}
	for _, r := range records {
		rating, ok := r["rating"].(int)
		if !ok {
			continue
		}
		author := r.String("author")
		text := r.String("text")
		if author == "" || text == "" {
			continue
		}
		reviews = append(reviews, Review{
			Author: author,
			Rating: rating,
			Text:   text,
			Date:   r.String("date"),
		})
	}
	return reviews
}

// ScrapeReviews collects every review of the place at url, scrolling the
// reviews panel until no new reviews show up.
func ScrapeReviews(ctx context.Context, page browser.Tab, url string, cfg extract.LoopConfig, clock chrono.API) (ReviewsDocument, error) {
	ctx, span := tracer.Start(ctx, "ScrapeReviews")
	defer span.End()

	run := extract.NewRun(url, clock)

	err := page.Navigate(ctx, url, browser.NavigateOptions{
		WaitSelector: reviewSelector,
		Timeout:      time.Minute,
	})
	if err != nil {
		return ReviewsDocument{}, err
	}
	err = run.Collect(ctx, page, ReviewsTarget, cfg)
	if err != nil {
		return ReviewsDocument{}, fmt.Errorf("collect reviews: %w", err)
	}
	snapshot, err := run.Finalize()
	if err != nil {
		return ReviewsDocument{}, err
	}

	reviews := validReviews(snapshot.Result.Records())
	span.SetAttributes(
		attribute.Int("collected", snapshot.Total),
		attribute.Int("valid", len(reviews)),
	)
	slog.InfoContext(ctx, "collected reviews", "collected", snapshot.Total, "valid", len(reviews))

	return ReviewsDocument{
		TotalReviews:   len(reviews),
		CollectionDate: snapshot.StartedAt,
		Reviews:        reviews,
	}, nil
}
