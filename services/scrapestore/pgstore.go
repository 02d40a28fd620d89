package scrapestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"
	"harvest-backend/services/scrapestore/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PgStore persists scrape results in a Postgres table store.
type PgStore struct {
	pool  *pgxpool.Pool
	clock chrono.API
}

// OpenPgStore connects to dsn and applies the Postgres schema.
func OpenPgStore(ctx context.Context, dsn string, clock chrono.API) (PgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return PgStore{}, fmt.Errorf("connect postgres: %w", err)
	}
	_, err = pool.Exec(ctx, db.PgSchema)
	if err != nil {
		pool.Close()
		return PgStore{}, fmt.Errorf("apply schema: %w", err)
	}
	return PgStore{pool: pool, clock: clock}, nil
}

func (s PgStore) Close() {
	s.pool.Close()
}

func (s PgStore) SaveMenu(ctx context.Context, subdomain string, menu []extract.Section) error {
	ctx, span := tracer.Start(ctx, "PgStore.SaveMenu")
	defer span.End()
	span.SetAttributes(attribute.String("subdomain", subdomain))

	encoded, err := json.Marshal(menu)
	if err != nil {
		return fmt.Errorf("encode menu: %w", err)
	}
	now := s.clock.Now()
	_, err = s.pool.Exec(ctx, `
		insert into menus (subdomain, menu_data, created_at, updated_at)
		values ($1, $2, $3, $3)
		on conflict (subdomain) do update set
			menu_data = excluded.menu_data,
			updated_at = excluded.updated_at`,
		subdomain, string(encoded), now,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert menu")
		return fmt.Errorf("save menu %s: %w", subdomain, err)
	}
	return nil
}

func (s PgStore) Menu(ctx context.Context, subdomain string) (StoredMenu, error) {
	var out StoredMenu
	var data []byte
	err := s.pool.QueryRow(ctx, `
		select subdomain, menu_data, created_at, updated_at from menus
		where subdomain = $1`,
		subdomain,
	).Scan(&out.Subdomain, &data, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredMenu{}, ErrNotFound
	}
	if err != nil {
		return StoredMenu{}, fmt.Errorf("get menu %s: %w", subdomain, err)
	}

	err = json.Unmarshal(data, &out.Menu)
	if err != nil {
		return StoredMenu{}, fmt.Errorf("decode menu %s: %w", subdomain, err)
	}
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

func (s PgStore) MenuSubdomains(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `select subdomain from menus order by subdomain`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s PgStore) SaveContent(ctx context.Context, ownerID string, pages []Content) error {
	ctx, span := tracer.Start(ctx, "PgStore.SaveContent")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner_id", ownerID),
		attribute.Int("pages", len(pages)),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := s.clock.Now()
	for _, page := range pages {
		links, err := encodeLinks(page.Links)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			insert into scraped_content (
				id, owner_id, url, title, content, content_length, links, created_at, updated_at
			) values ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			on conflict (owner_id, url) do update set
				title = excluded.title,
				content = excluded.content,
				content_length = excluded.content_length,
				links = excluded.links,
				updated_at = excluded.updated_at`,
			contentID(page), ownerID, page.Url, page.Title, page.Content,
			contentLength(page), links, now,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert content")
			return fmt.Errorf("save content %s: %w", page.Url, err)
		}
	}
	return tx.Commit(ctx)
}

func (s PgStore) Content(ctx context.Context, ownerID string) ([]Content, error) {
	rows, err := s.pool.Query(ctx, `
		select id, owner_id, url, title, content, content_length, links, created_at, updated_at
		from scraped_content
		where owner_id = $1
		order by created_at, url`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list content %s: %w", ownerID, err)
	}
	defer rows.Close()

	out := []Content{}
	for rows.Next() {
		var c Content
		var links []byte
		err := rows.Scan(
			&c.ID, &c.OwnerID, &c.Url, &c.Title, &c.Content,
			&c.ContentLength, &links, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		err = json.Unmarshal(links, &c.Links)
		if err != nil {
			return nil, fmt.Errorf("decode links of %s: %w", c.Url, err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
