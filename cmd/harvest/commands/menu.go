package commands

import (
	"fmt"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/scrapers/zomato"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(menuCmd)
}

func printMenuStats(sections int, stats zomato.Stats) {
	t := newTable()
	t.AppendHeader(table.Row{"Sections", "Items", "Veg", "Non-veg", "With images"})
	t.AppendRow(table.Row{sections, stats.TotalItems, stats.VegItems, stats.NonVegItems, stats.ItemsWithImages})
	t.Render()
}

var menuCmd = &cobra.Command{
	Use:   "menu <url>",
	Short: "Scrapes the menu of a restaurant's ordering page with a headless browser.",
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

		doc, err := zomato.ScrapeMenuPage(ctx, page, args[0], cfg.Loop, chrono.NewStandardImpl())
		if err != nil {
			return fmt.Errorf("scrape menu: %w", err)
		}

		err = writeJSON("menu_data.json", doc)
		if err != nil {
			return err
		}
		printMenuStats(len(doc.Menu), doc.Stats)
		return nil
	},
}
