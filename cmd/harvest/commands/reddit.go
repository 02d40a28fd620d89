package commands

import (
	"fmt"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/scrapers/reddit"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var redditMaxPosts *int

func init() {
	redditMaxPosts = redditCmd.Flags().Int("max-posts", 0, "The maximum number of posts to collect, overrides the config.")
	rootCmd.AddCommand(redditCmd)
}

var redditCmd = &cobra.Command{
	Use:   "reddit <topic> [--max-posts <n>]",
	Short: "Scrapes the top posts about a topic and their comments.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		chrome, err := openChrome(ctx)
		if err != nil {
			return err
		}
		defer chrome.Close()

		maxPosts := cfg.Reddit.MaxPosts
		if *redditMaxPosts > 0 {
			maxPosts = *redditMaxPosts
		}
		clock := chrono.NewStandardImpl()
		doc, err := reddit.ScrapeTopic(ctx, chrome, args[0], reddit.TopicOptions{
			MaxPosts: maxPosts,
			Workers:  cfg.Reddit.Workers,
			Loop:     cfg.Loop,
			Clock:    clock,
		})
		if err != nil {
			return fmt.Errorf("scrape reddit: %w", err)
		}
		err = writeJSON(reddit.TopicFilename(args[0], doc.Timestamp), doc)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Title", "Author", "Score", "Comments"})
		for _, p := range doc.Posts {
			t.AppendRow(table.Row{p.Title, p.Author, p.Score, len(p.Comments)})
		}
		t.AppendFooter(table.Row{"Total", "", "", doc.TotalPosts})
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, WidthMax: 60}})
		t.Render()
		return nil
	},
}
