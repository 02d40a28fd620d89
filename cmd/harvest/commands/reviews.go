package commands

import (
	"fmt"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/scrapers/gmaps"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reviewsCmd)
}

var reviewsCmd = &cobra.Command{
	Use:   "reviews <place url>",
	Short: "Scrapes every review of a place on google maps.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		chrome, err := openChrome(ctx)
		if err != nil {
			return err
		}
		defer chrome.Close()
		page, err := chrome.NewPage()
		if err != nil {
			return err
		}
		defer page.Close()

		doc, err := gmaps.ScrapeReviews(ctx, page, args[0], cfg.Loop, chrono.NewStandardImpl())
		if err != nil {
			return fmt.Errorf("scrape reviews: %w", err)
		}
		err = writeJSON("google_reviews.json", doc)
		if err != nil {
			return err
		}

		ratings := map[int]int{}
		for _, r := range doc.Reviews {
			ratings[r.Rating]++
		}
		t := newTable()
		t.AppendHeader(table.Row{"Rating", "Reviews"})
		for stars := 5; stars >= 1; stars-- {
			t.AppendRow(table.Row{stars, ratings[stars]})
		}
		t.AppendFooter(table.Row{"Total", doc.TotalReviews})
		t.Render()
		return nil
	},
}
