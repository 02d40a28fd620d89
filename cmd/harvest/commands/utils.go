package commands

import (
	"context"
	"log/slog"
	"os"

	"harvest-backend/lib/browser"
	"harvest-backend/lib/output"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// openChrome launches the configured browser, the caller must close it.
func openChrome(ctx context.Context) (*browser.Chrome, error) {
	return browser.Open(ctx, cfg.Browser)
}

func resultPath(fallback string) string {
	if outPath != "" {
		return outPath
	}
	return fallback
}

func writeJSON(fallback string, v any) error {
	path := resultPath(fallback)
	err := output.WriteJSON(path, v)
	if err != nil {
		return err
	}
	slog.Info("results saved", "path", path)
	return nil
}
