package scrapestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"
	"harvest-backend/lib/testutil"
	"harvest-backend/services/scrapestore/db"

	"github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// movableClock lets a test advance time between writes.
type movableClock struct {
	now time.Time
}

func (c *movableClock) Now() time.Time {
	return c.now
}

type storeAPI interface {
	SaveMenu(ctx context.Context, subdomain string, menu []extract.Section) error
	Menu(ctx context.Context, subdomain string) (StoredMenu, error)
	MenuSubdomains(ctx context.Context) ([]string, error)
	SaveContent(ctx context.Context, ownerID string, pages []Content) error
	Content(ctx context.Context, ownerID string) ([]Content, error)
}

func testStore(t *testing.T, store storeAPI, clock *movableClock) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	created := clock.now
	t.Run("Menu", func(t *testing.T) {
		_, err := store.Menu(ctx, "unknown")
		require.ErrorIs(t, err, ErrNotFound)

		menu := []extract.Section{{
			Section: "Starters",
			Items: []extract.Record{
				{"name": "Hummus", "price": "18", "type": "veg", "imageUrl": nil},
			},
		}}
		require.NoError(t, store.SaveMenu(ctx, "dubai/hummus-house", menu))

		clock.now = clock.now.Add(time.Hour)
		menu[0].Items = append(menu[0].Items, extract.Record{"name": "Falafel", "price": "12", "type": "veg", "imageUrl": nil})
		require.NoError(t, store.SaveMenu(ctx, "dubai/hummus-house", menu))
		require.NoError(t, store.SaveMenu(ctx, "dubai/another", []extract.Section{}))

		stored, err := store.Menu(ctx, "dubai/hummus-house")
		require.NoError(t, err)
		require.Equal(t, "dubai/hummus-house", stored.Subdomain)
		require.Len(t, stored.Menu, 1)
		require.Len(t, stored.Menu[0].Items, 2)
		require.Equal(t, "Falafel", stored.Menu[0].Items[1]["name"])
		require.Nil(t, stored.Menu[0].Items[1]["imageUrl"])
		require.True(t, created.Equal(stored.CreatedAt), "created_at must survive updates")
		require.True(t, clock.now.Equal(stored.UpdatedAt))

		subdomains, err := store.MenuSubdomains(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"dubai/another", "dubai/hummus-house"}, subdomains)
	})

	t.Run("Content", func(t *testing.T) {
		suffix, err := random.String(8)
		require.NoError(t, err)
		owner := fmt.Sprintf("bot-%s", suffix)

		pages, err := store.Content(ctx, owner)
		require.NoError(t, err)
		require.Len(t, pages, 0)

		err = store.SaveContent(ctx, owner, []Content{
			{Url: "https://example.com", Title: "Home", Content: "# Welcome", Links: []string{"https://example.com/about"}},
			{Url: "https://example.com/about", Title: "About", Content: "About ünïcode"},
		})
		require.NoError(t, err)
		err = store.SaveContent(ctx, owner, []Content{
			{Url: "https://example.com/about", Title: "About us", Content: "Updated"},
		})
		require.NoError(t, err)

		pages, err = store.Content(ctx, owner)
		require.NoError(t, err)
		require.Len(t, pages, 2)

		require.Equal(t, "https://example.com", pages[0].Url)
		require.Equal(t, []string{"https://example.com/about"}, pages[0].Links)
		require.Equal(t, 9, pages[0].ContentLength)
		require.NotEmpty(t, pages[0].ID)

		require.Equal(t, "About us", pages[1].Title)
		require.Equal(t, "Updated", pages[1].Content)
		require.Equal(t, []string{}, pages[1].Links)

		others, err := store.Content(ctx, "someone-else")
		require.NoError(t, err)
		require.Len(t, others, 0)
	})
}

func TestStore(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "scrapestore",
		DbSchema: db.Schema,
	})
	defer cleanup()

	clock := &movableClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	testStore(t, NewStore(res.DB, clock), clock)
}

func TestPgStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*2)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "harvest",
				"POSTGRES_PASSWORD": "harvest",
				"POSTGRES_DB":       "harvest",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(context.Background())

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	clock := &movableClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	store, err := OpenPgStore(
		ctx,
		fmt.Sprintf("postgres://harvest:harvest@%s:%s/harvest?sslmode=disable", host, port.Port()),
		clock,
	)
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store, clock)
}

var _ chrono.API = (*movableClock)(nil)
