package commands

import (
	"fmt"
	"time"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"
	"harvest-backend/lib/scrapers/zomato"
	"harvest-backend/lib/sqliteutil"
	"harvest-backend/services/scrapestore"
	"harvest-backend/services/scrapestore/db"

	"github.com/spf13/cobra"
)

var menuApiDb *string

func init() {
	menuApiDb = menuApiCmd.Flags().String("db", "", "A sqlite database to also store the menu in.")
	rootCmd.AddCommand(menuApiCmd)
}

type apiMenuDocument struct {
	Timestamp time.Time         `json:"timestamp"`
	SubDomain string            `json:"subDomain"`
	Menu      []extract.Section `json:"menu"`
	Stats     zomato.Stats      `json:"stats"`
}

var menuApiCmd = &cobra.Command{
	Use:   "menu-api <subDomain> [--db <path/to/harvest.db>]",
	Short: "Fetches the menu of a restaurant from the ordering API.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		clock := chrono.NewStandardImpl()
		client := zomato.NewClient(zomato.ClientOptions{
			RetryPolicy: cfg.Retry,
			Output:      restyOutput,
		})
		sections, err := client.FetchMenu(ctx, args[0])
		if err != nil {
			return fmt.Errorf("fetch menu: %w", err)
		}

		if *menuApiDb != "" {
			database, err := sqliteutil.OpenDB(db.Schema, *menuApiDb)
			if err != nil {
				return err
			}
			defer database.Close()
			err = scrapestore.NewStore(database, clock).SaveMenu(ctx, args[0], sections)
			if err != nil {
				return err
			}
		}

		stats := zomato.Summarize(sections)
		err = writeJSON("menu_api.json", apiMenuDocument{
			Timestamp: clock.Now(),
			SubDomain: args[0],
			Menu:      sections,
			Stats:     stats,
		})
		if err != nil {
			return err
		}
		printMenuStats(len(sections), stats)
		return nil
	},
}
