package pagecache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("harvest.lib.pagecache")

var ErrPageNotFound = errors.New("page not in cache")

// Page is a fetched document.
type Page struct {
	Url         string
	ContentType string
	Contents    []byte
	FetchedAt   time.Time
}

// Cache stores fetched pages in badger, keyed by normalized URL.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens an on-disk cache at dir, an empty dir keeps the cache in memory.
func Open(dir string, ttl time.Duration) (Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return Cache{}, fmt.Errorf("open page cache: %w", err)
	}
	return New(db, ttl), nil
}

func New(db *badger.DB, ttl time.Duration) Cache {
	return Cache{db: db, ttl: ttl}
}

func (c Cache) Close() error {
	return c.db.Close()
}

// NormalizeURL is the canonical form of a URL used for cache keys and for
// deduplicating crawled links.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return purell.NormalizeURL(
		u,
		purell.FlagsSafe|
			purell.FlagRemoveTrailingSlash|
			purell.FlagRemoveDotSegments|
			purell.FlagRemoveDuplicateSlashes|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	), nil
}

func (c Cache) key(raw string) ([]byte, error) {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return nil, err
	}
	return []byte("page:" + normalized), nil
}

func (c Cache) Get(ctx context.Context, rawUrl string) (Page, error) {
	_, span := tracer.Start(ctx, "Get")
	defer span.End()

	key, err := c.key(rawUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return Page{}, err
	}
	span.SetAttributes(attribute.String("cache_key", string(key)))

	var serialized []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		serialized, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Page{}, ErrPageNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item from badger")
		return Page{}, err
	}

	var page Page
	err = gob.NewDecoder(bytes.NewReader(serialized)).Decode(&page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached page")
		return Page{}, err
	}
	span.SetAttributes(attribute.Int("content_length", len(page.Contents)))
	return page, nil
}

// Set stores page, it expires after the cache's ttl (never when ttl is 0).
func (c Cache) Set(ctx context.Context, page Page) error {
	_, span := tracer.Start(ctx, "Set")
	defer span.End()

	key, err := c.key(page.Url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return err
	}

	serialized := bytes.NewBuffer(nil)
	err = gob.NewEncoder(serialized).Encode(page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize page")
		return err
	}

	entry := badger.NewEntry(key, serialized.Bytes())
	if c.ttl > 0 {
		entry = entry.WithTTL(c.ttl)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set badger item")
		return err
	}
	return nil
}
