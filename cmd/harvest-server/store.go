package main

import (
	"context"
	"fmt"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/sqliteutil"
	"harvest-backend/services/menuapi"
	"harvest-backend/services/scrapestore"
	"harvest-backend/services/scrapestore/db"
)

// OpenStore opens the configured store, the "none" driver gives a nil store
// which disables persistence.
func OpenStore(ctx context.Context, cfg DatabaseConfig, clock chrono.API) (menuapi.Store, func(), error) {
	switch cfg.Driver {
	case "none":
		return nil, func() {}, nil
	case "sqlite":
		database, err := sqliteutil.OpenDB(db.Schema, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return scrapestore.NewStore(database, clock), func() { database.Close() }, nil
	case "libsql":
		database, err := sqliteutil.OpenLibsql(db.Schema, cfg.Libsql)
		if err != nil {
			return nil, nil, err
		}
		return scrapestore.NewStore(database, clock), func() { database.Close() }, nil
	case "postgres":
		store, err := scrapestore.OpenPgStore(ctx, cfg.Postgres, clock)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
