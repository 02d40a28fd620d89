package commands

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"harvest-backend/lib/browser"
	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var extractWait *string

func init() {
	extractWait = extractCmd.Flags().String("wait", "", "A selector to wait for before extracting.")
	rootCmd.AddCommand(extractCmd)
}

type extractDocument struct {
	Timestamp  time.Time         `json:"timestamp"`
	Url        string            `json:"url"`
	Target     string            `json:"target"`
	Total      int               `json:"total"`
	PerSection map[string]int    `json:"per_section"`
	Sections   []extract.Section `json:"sections"`
}

var extractCmd = &cobra.Command{
	Use:   "extract <target> <url> [--wait <selector>]",
	Short: "Extracts records from a page with a target declared in the targets file.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		targets, err := extract.LoadTargets(cfg.Targets)
		if err != nil {
			return err
		}
		target, ok := targets[args[0]]
		if !ok {
			names := make([]string, 0, len(targets))
			for name := range targets {
				names = append(names, name)
			}
			slices.Sort(names)
			return fmt.Errorf("unknown target %q, known targets: %s", args[0], strings.Join(names, ", "))
		}

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

		err = page.Navigate(ctx, args[1], browser.NavigateOptions{WaitSelector: *extractWait})
		if err != nil {
			return err
		}

		run := extract.NewRun(args[1], chrono.NewStandardImpl())
		err = run.Collect(ctx, page, target, cfg.Loop)
		if err != nil {
			return err
		}
		snapshot, err := run.Finalize()
		if err != nil {
			return err
		}

		sections := snapshot.Result.Sections()
		err = writeJSON(fmt.Sprintf("%s.json", target.Name), extractDocument{
			Timestamp:  snapshot.StartedAt,
			Url:        snapshot.Url,
			Target:     target.Name,
			Total:      snapshot.Total,
			PerSection: snapshot.PerSection,
			Sections:   sections,
		})
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Section", "Records"})
		for _, s := range sections {
			t.AppendRow(table.Row{s.Section, len(s.Items)})
		}
		t.AppendFooter(table.Row{"Total", snapshot.Total})
		t.Render()
		return nil
	},
}
