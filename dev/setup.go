package main

import (
	"fmt"
	"log/slog"
	"os"

	devenv "harvest-backend/dev/env"
	"harvest-backend/lib/sqliteutil"
	"harvest-backend/services/scrapestore/db"
)

// CreateStore creates the sqlite store used by `harvest-server` and
// `harvest crawl --db` with their default config.
func CreateStore() error {
	path, err := devenv.ResolvePath("<dev_state>/harvest.db")
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	database, err := sqliteutil.OpenDB(db.Schema, path)
	if err != nil {
		return err
	}
	return database.Close()
}

func CreatePageCache() error {
	path, err := devenv.ResolvePath("<dev_state>/pagecache")
	if err != nil {
		return err
	}
	fmt.Println("page cache directory at", path)
	return os.MkdirAll(path, 0777)
}

func PrintConfigLocations() {
	slog.Info("harvest reads harvest.json5 (and harvest.local.json5) from the cwd, harvest-server reads config.json5, telemetry.json5 is searched for upwards from the cwd.")
}
