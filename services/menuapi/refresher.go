package menuapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"harvest-backend/lib/chrono"
)

// Refresher re-fetches every stored menu so stored menus track upstream
// changes.
type Refresher struct {
	menus MenuFetcher
	store Store
}

func NewRefresher(menus MenuFetcher, store Store) Refresher {
	return Refresher{menus: menus, store: store}
}

// RefreshAll refreshes every stored subdomain, a failing subdomain does not
// stop the others.
func (r Refresher) RefreshAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RefreshAll")
	defer span.End()

	subdomains, err := r.store.MenuSubdomains(ctx)
	if err != nil {
		return fmt.Errorf("list stored menus: %w", err)
	}

	var errs []error
	refreshed := 0
	for _, subdomain := range subdomains {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sections, err := r.menus.FetchMenu(ctx, subdomain)
		if err != nil {
			slog.WarnContext(ctx, "failed to refresh menu", "sub_domain", subdomain, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", subdomain, err))
			continue
		}
		err = r.store.SaveMenu(ctx, subdomain, sections)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", subdomain, err))
			continue
		}
		refreshed++
	}

	slog.InfoContext(ctx, "refreshed menus", "refreshed", refreshed, "total", len(subdomains))
	return errors.Join(errs...)
}

// Schedule runs RefreshAll on the given cron spec until ctx ends.
func (r Refresher) Schedule(ctx context.Context, cron chrono.CronAPI, spec string) error {
	return cron.Cron(spec, func() {
		if ctx.Err() != nil {
			return
		}
		err := r.RefreshAll(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "menu refresh finished with errors", "err", err)
		}
	})
}
