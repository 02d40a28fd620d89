package menuapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"
	"harvest-backend/lib/scrapers/sitecrawl"
	"harvest-backend/lib/testutil"
	"harvest-backend/services/scrapestore"
	"harvest-backend/services/scrapestore/db"

	"github.com/stretchr/testify/require"
)

type fakeMenus struct {
	menus map[string][]extract.Section
	calls []string
}

func (f *fakeMenus) FetchMenu(ctx context.Context, subDomain string) ([]extract.Section, error) {
	f.calls = append(f.calls, subDomain)
	menu, ok := f.menus[subDomain]
	if !ok {
		return nil, &extract.ShapeMismatchError{Path: "page_data.order.menuList.menus"}
	}
	return menu, nil
}

type fakeCrawler struct {
	pages []sitecrawl.Page
	opts  sitecrawl.CrawlOptions
}

func (f *fakeCrawler) Crawl(ctx context.Context, start string, opts sitecrawl.CrawlOptions) ([]sitecrawl.Page, error) {
	f.opts = opts
	if start == "https://down.test" {
		return nil, errors.New("connection refused")
	}
	return f.pages, nil
}

var grillMenu = []extract.Section{{
	Section: "Mains",
	Items: []extract.Record{
		{"name": "Kebab", "price": "45", "type": "unknown"},
	},
}}

type decoded struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, handler http.Handler, method, path, body string) (int, decoded) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var res decoded
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return rec.Code, res
}

func setup(t *testing.T) (http.Handler, *fakeMenus, *fakeCrawler, scrapestore.Store) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "menuapi",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	store := scrapestore.NewStore(res.DB, chrono.FixedImpl{At: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	menus := &fakeMenus{menus: map[string][]extract.Section{"dubai/grill": grillMenu}}
	crawler := &fakeCrawler{pages: []sitecrawl.Page{
		{ID: "p1", Url: "https://bakery.test", Title: "Home", Content: "# Welcome", ContentLength: 9},
		{ID: "p2", Url: "https://bakery.test/about", Title: "About", Content: "Since 1999", ContentLength: 10},
	}}
	return NewService(menus, crawler, store).Handler(), menus, crawler, store
}

func TestPostMenu(t *testing.T) {
	handler, _, _, store := setup(t)

	status, res := do(t, handler, http.MethodPost, "/menu", `{"subDomain": "dubai/grill"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)

	var sections []extract.Section
	require.NoError(t, json.Unmarshal(res.Data, &sections))
	require.Equal(t, "Mains", sections[0].Section)
	require.Equal(t, "45", sections[0].Items[0]["price"])

	stored, err := store.Menu(context.Background(), "dubai/grill")
	require.NoError(t, err)
	require.Equal(t, "Kebab", stored.Menu[0].Items[0]["name"])

	status, res = do(t, handler, http.MethodGet, "/menu/dubai/grill", "")
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)
}

func TestPostMenuMissingSubDomain(t *testing.T) {
	handler, menus, _, _ := setup(t)

	for _, body := range []string{`{}`, `{"subDomain": "  "}`, `not json`, ``} {
		status, res := do(t, handler, http.MethodPost, "/menu", body)
		require.Equal(t, http.StatusBadRequest, status, body)
		require.False(t, res.Success)
		require.Equal(t, "URL is required in the request body.", res.Message)
	}
	require.Empty(t, menus.calls)
}

func TestPostMenuUpstreamFailure(t *testing.T) {
	handler, _, _, _ := setup(t)

	status, res := do(t, handler, http.MethodPost, "/menu", `{"subDomain": "unknown"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	require.False(t, res.Success)
	require.Equal(t, "Failed to fetch menu data.", res.Message)
}

func TestGetMenuNotFound(t *testing.T) {
	handler, _, _, _ := setup(t)

	status, res := do(t, handler, http.MethodGet, "/menu/nowhere", "")
	require.Equal(t, http.StatusNotFound, status)
	require.False(t, res.Success)
}

func TestCrawl(t *testing.T) {
	handler, _, crawler, _ := setup(t)

	status, res := do(t, handler, http.MethodPost, "/crawl", `{"ownerId": "bot-1", "url": "https://bakery.test", "maxPages": 5, "maxDepth": 2}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)
	require.Equal(t, sitecrawl.CrawlOptions{MaxPages: 5, MaxDepth: 2}, crawler.opts)

	var result crawlResult
	require.NoError(t, json.Unmarshal(res.Data, &result))
	require.Equal(t, "bot-1", result.OwnerID)
	require.Len(t, result.Pages, 2)

	status, res = do(t, handler, http.MethodGet, "/crawl/bot-1", "")
	require.Equal(t, http.StatusOK, status)

	var content []scrapestore.Content
	require.NoError(t, json.Unmarshal(res.Data, &content))
	require.Len(t, content, 2)
	require.Equal(t, "https://bakery.test", content[0].Url)

	status, _ = do(t, handler, http.MethodGet, "/crawl/bot-2", "")
	require.Equal(t, http.StatusNotFound, status)
}

func TestCrawlBadRequest(t *testing.T) {
	handler, _, _, _ := setup(t)

	status, res := do(t, handler, http.MethodPost, "/crawl", `{"url": "https://bakery.test"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.False(t, res.Success)

	status, res = do(t, handler, http.MethodPost, "/crawl", `{"ownerId": "x", "url": "https://down.test"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Failed to crawl the site.", res.Message)
}

func TestWithoutStore(t *testing.T) {
	menus := &fakeMenus{menus: map[string][]extract.Section{"dubai/grill": grillMenu}}
	handler := NewService(menus, &fakeCrawler{}, nil).Handler()

	status, res := do(t, handler, http.MethodPost, "/menu", `{"subDomain": "dubai/grill"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)

	status, _ = do(t, handler, http.MethodGet, "/menu/dubai/grill", "")
	require.Equal(t, http.StatusServiceUnavailable, status)

	status, res = do(t, handler, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)
}
