package commands

import (
	"fmt"
	"time"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/pagecache"
	"harvest-backend/lib/scrapers/sitecrawl"
	"harvest-backend/lib/sqliteutil"
	"harvest-backend/services/scrapestore"
	"harvest-backend/services/scrapestore/db"

	devenv "harvest-backend/dev/env"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	crawlOwner    *string
	crawlDb       *string
	crawlMaxPages *int
	crawlMaxDepth *int
)

func init() {
	crawlOwner = crawlCmd.Flags().String("owner", "", "The owner the crawled pages are stored under.")
	crawlDb = crawlCmd.Flags().String("db", "", "A sqlite database to store the crawled pages in.")
	crawlMaxPages = crawlCmd.Flags().Int("max-pages", sitecrawl.DefaultMaxPages, "The maximum number of pages to visit.")
	crawlMaxDepth = crawlCmd.Flags().Int("max-depth", sitecrawl.DefaultMaxDepth, "The maximum number of links to follow from the start page.")
	rootCmd.AddCommand(crawlCmd)
}

type crawlDocument struct {
	OwnerID       string           `json:"owner_id"`
	Url           string           `json:"url"`
	Timestamp     time.Time        `json:"timestamp"`
	ContentLength int              `json:"content_length"`
	Pages         []sitecrawl.Page `json:"pages"`
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <url> --owner <id> [--db <path/to/harvest.db>]",
	Short: "Crawls a website and extracts the readable content of every page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		if *crawlOwner == "" {
			return fmt.Errorf("--owner is required")
		}

		cacheDir, err := devenv.ResolvePath(cfg.Crawl.CacheDir)
		if err != nil {
			return err
		}
		cache, err := pagecache.Open(cacheDir, time.Duration(cfg.Crawl.CacheTtlHours)*time.Hour)
		if err != nil {
			return err
		}
		defer cache.Close()

		clock := chrono.NewStandardImpl()
		crawler := sitecrawl.NewCrawler(sitecrawl.Options{
			RateLimit:   cfg.Crawl.RateLimit,
			RetryPolicy: cfg.Retry,
			Cache:       &cache,
			Clock:       clock,
			Output:      restyOutput,
		})
		pages, err := crawler.Crawl(ctx, args[0], sitecrawl.CrawlOptions{
			MaxPages: *crawlMaxPages,
			MaxDepth: *crawlMaxDepth,
		})
		if err != nil {
			return fmt.Errorf("crawl: %w", err)
		}

		if *crawlDb != "" {
			database, err := sqliteutil.OpenDB(db.Schema, *crawlDb)
			if err != nil {
				return err
			}
			defer database.Close()

			content := make([]scrapestore.Content, 0, len(pages))
			for _, p := range pages {
				content = append(content, scrapestore.Content{
					ID:            p.ID,
					Url:           p.Url,
					Title:         p.Title,
					Content:       p.Content,
					ContentLength: p.ContentLength,
					Links:         p.Links,
				})
			}
			err = scrapestore.NewStore(database, clock).SaveContent(ctx, *crawlOwner, content)
			if err != nil {
				return err
			}
		}

		total := 0
		t := newTable()
		t.AppendHeader(table.Row{"Depth", "Url", "Title", "Length", "Links"})
		for _, p := range pages {
			total += p.ContentLength
			t.AppendRow(table.Row{p.Depth, p.Url, p.Title, p.ContentLength, len(p.Links)})
		}
		t.AppendFooter(table.Row{"", "Total", "", total, ""})

		err = writeJSON("crawl.json", crawlDocument{
			OwnerID:       *crawlOwner,
			Url:           args[0],
			Timestamp:     clock.Now(),
			ContentLength: total,
			Pages:         pages,
		})
		if err != nil {
			return err
		}
		t.Render()
		return nil
	},
}
