package scrapestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"
	"harvest-backend/services/scrapestore/db"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("harvest.services.scrapestore")

var ErrNotFound = errors.New("not found")

type StoredMenu struct {
	Subdomain string            `json:"subdomain"`
	Menu      []extract.Section `json:"menu_data"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Content is one crawled page belonging to an owner.
type Content struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Url           string    `json:"url"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	ContentLength int       `json:"content_length"`
	Links         []string  `json:"links"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func contentID(c Content) string {
	if c.ID != "" {
		return c.ID
	}
	return uuid.NewString()
}

func contentLength(c Content) int {
	if c.ContentLength > 0 {
		return c.ContentLength
	}
	return utf8.RuneCountInString(c.Content)
}

func encodeLinks(links []string) (string, error) {
	if links == nil {
		links = []string{}
	}
	encoded, err := json.Marshal(links)
	return string(encoded), err
}

// Store persists scrape results in sqlite or libsql.
type Store struct {
	db    *sql.DB
	qry   *db.Queries
	clock chrono.API
}

func NewStore(database *sql.DB, clock chrono.API) Store {
	return Store{
		db:    database,
		qry:   db.New(database),
		clock: clock,
	}
}

func (s Store) SaveMenu(ctx context.Context, subdomain string, menu []extract.Section) error {
	ctx, span := tracer.Start(ctx, "SaveMenu")
	defer span.End()
	span.SetAttributes(attribute.String("subdomain", subdomain))

	encoded, err := json.Marshal(menu)
	if err != nil {
		return fmt.Errorf("encode menu: %w", err)
	}
	err = s.qry.UpsertMenu(ctx, db.UpsertMenuParams{
		Subdomain: subdomain,
		MenuData:  string(encoded),
		Now:       s.clock.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert menu")
		return fmt.Errorf("save menu %s: %w", subdomain, err)
	}
	return nil
}

func (s Store) Menu(ctx context.Context, subdomain string) (StoredMenu, error) {
	row, err := s.qry.GetMenu(ctx, subdomain)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredMenu{}, ErrNotFound
	}
	if err != nil {
		return StoredMenu{}, fmt.Errorf("get menu %s: %w", subdomain, err)
	}

	var menu []extract.Section
	err = json.Unmarshal([]byte(row.MenuData), &menu)
	if err != nil {
		return StoredMenu{}, fmt.Errorf("decode menu %s: %w", subdomain, err)
	}
	return StoredMenu{
		Subdomain: row.Subdomain,
		Menu:      menu,
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(row.UpdatedAt, 0).UTC(),
	}, nil
}

func (s Store) MenuSubdomains(ctx context.Context) ([]string, error) {
	return s.qry.ListMenuSubdomains(ctx)
}

// SaveContent upserts every page of a crawl in a single transaction, pages
// are identified by owner and url.
func (s Store) SaveContent(ctx context.Context, ownerID string, pages []Content) error {
	ctx, span := tracer.Start(ctx, "SaveContent")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner_id", ownerID),
		attribute.Int("pages", len(pages)),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	now := s.clock.Now().Unix()
	for _, page := range pages {
		links, err := encodeLinks(page.Links)
		if err != nil {
			return err
		}
		err = txqry.UpsertScrapedContent(ctx, db.UpsertScrapedContentParams{
			ID:            contentID(page),
			OwnerID:       ownerID,
			Url:           page.Url,
			Title:         page.Title,
			Content:       page.Content,
			ContentLength: int64(contentLength(page)),
			Links:         links,
			Now:           now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert content")
			return fmt.Errorf("save content %s: %w", page.Url, err)
		}
	}
	return tx.Commit()
}

func (s Store) Content(ctx context.Context, ownerID string) ([]Content, error) {
	rows, err := s.qry.ListScrapedContent(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list content %s: %w", ownerID, err)
	}

	out := make([]Content, 0, len(rows))
	for _, r := range rows {
		var links []string
		err := json.Unmarshal([]byte(r.Links), &links)
		if err != nil {
			return nil, fmt.Errorf("decode links of %s: %w", r.Url, err)
		}
		out = append(out, Content{
			ID:            r.ID,
			OwnerID:       r.OwnerID,
			Url:           r.Url,
			Title:         r.Title,
			Content:       r.Content,
			ContentLength: int(r.ContentLength),
			Links:         links,
			CreatedAt:     time.Unix(r.CreatedAt, 0).UTC(),
			UpdatedAt:     time.Unix(r.UpdatedAt, 0).UTC(),
		})
	}
	return out, nil
}
