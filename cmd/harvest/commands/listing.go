package commands

import (
	"log/slog"

	"harvest-backend/lib/output"
	"harvest-backend/lib/scrapers/reddit"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	listingSort  *string
	listingLimit *int
)

func init() {
	listingSort = listingCmd.Flags().String("sort", "hot", "One of hot, new or top.")
	listingLimit = listingCmd.Flags().Int("limit", 10, "The number of posts to fetch.")
	rootCmd.AddCommand(listingCmd)
}

var listingCmd = &cobra.Command{
	Use:   "listing <subreddit> [--sort hot|new|top] [--limit <n>]",
	Short: "Exports the posts of a subreddit listing to csv.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		sort, err := reddit.ParseSort(*listingSort)
		if err != nil {
			return err
		}
		client := reddit.NewListingClient("", restyOutput)
		posts, err := reddit.Listing(ctx, client, args[0], sort, *listingLimit, cfg.Retry)
		if err != nil {
			return err
		}

		path := resultPath(reddit.ListingFilename(args[0], sort))
		err = output.WriteCSV(path, reddit.ListingHeader, reddit.ListingRows(posts))
		if err != nil {
			return err
		}
		slog.Info("results saved", "path", path, "posts", len(posts))

		t := newTable()
		t.AppendHeader(table.Row{"Title", "Score", "Comments", "Created"})
		for _, p := range posts {
			t.AppendRow(table.Row{p.Title, p.Score, p.Comments, p.CreatedAt().Format("2006-01-02 15:04")})
		}
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, WidthMax: 60}})
		t.Render()
		return nil
	},
}
