package menuapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"harvest-backend/lib/extract"
	"harvest-backend/lib/scrapers/sitecrawl"
	"harvest-backend/services/scrapestore"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("harvest.services.menuapi")

const (
	messageUrlRequired       = "URL is required in the request body."
	messageFetchFailed       = "Failed to fetch menu data."
	messageCrawlRequired     = "ownerId and url are required in the request body."
	messageCrawlFailed       = "Failed to crawl the site."
	messageNotFound          = "Not found."
	messageNoStore           = "Storage is not configured."
	messageStoreFailed       = "Failed to read stored data."
)

type MenuFetcher interface {
	FetchMenu(ctx context.Context, subDomain string) ([]extract.Section, error)
}

type SiteCrawler interface {
	Crawl(ctx context.Context, start string, opts sitecrawl.CrawlOptions) ([]sitecrawl.Page, error)
}

// Store is implemented by both scrapestore.Store and scrapestore.PgStore.
type Store interface {
	SaveMenu(ctx context.Context, subdomain string, menu []extract.Section) error
	Menu(ctx context.Context, subdomain string) (scrapestore.StoredMenu, error)
	MenuSubdomains(ctx context.Context) ([]string, error)
	SaveContent(ctx context.Context, ownerID string, pages []scrapestore.Content) error
	Content(ctx context.Context, ownerID string) ([]scrapestore.Content, error)
}

type Service struct {
	menus   MenuFetcher
	crawler SiteCrawler
	// nil when results are not persisted
	store Store
}

func NewService(menus MenuFetcher, crawler SiteCrawler, store Store) Service {
	return Service{menus: menus, crawler: crawler, store: store}
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(body)
	if err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Message: message})
}

// Handler routes every endpoint of the service, instrumented with otelhttp.
func (s Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /menu", s.postMenu)
	mux.HandleFunc("GET /menu/{subDomain...}", s.getMenu)
	mux.HandleFunc("POST /crawl", s.postCrawl)
	mux.HandleFunc("GET /crawl/{ownerId}", s.getCrawl)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{Success: true})
	})
	return otelhttp.NewHandler(mux, "menuapi")
}

type menuRequest struct {
	SubDomain string `json:"subDomain"`
}

func (s Service) postMenu(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "postMenu")
	defer span.End()

	var req menuRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	subDomain := strings.TrimSpace(req.SubDomain)
	if err != nil || subDomain == "" {
		writeError(w, http.StatusBadRequest, messageUrlRequired)
		return
	}

	sections, err := s.menus.FetchMenu(ctx, subDomain)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching menu data", "sub_domain", subDomain, "err", err)
		writeError(w, http.StatusInternalServerError, messageFetchFailed)
		return
	}

	if s.store != nil {
		err = s.store.SaveMenu(ctx, subDomain, sections)
		if err != nil {
			slog.WarnContext(ctx, "failed to store menu", "sub_domain", subDomain, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: sections})
}

func (s Service) getMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, messageNoStore)
		return
	}

	subDomain := r.PathValue("subDomain")
	menu, err := s.store.Menu(ctx, subDomain)
	if errors.Is(err, scrapestore.ErrNotFound) {
		writeError(w, http.StatusNotFound, messageNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to read menu", "sub_domain", subDomain, "err", err)
		writeError(w, http.StatusInternalServerError, messageStoreFailed)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: menu})
}

type crawlRequest struct {
	OwnerID  string `json:"ownerId"`
	Url      string `json:"url"`
	MaxPages int    `json:"maxPages"`
	MaxDepth int    `json:"maxDepth"`
}

type crawlResult struct {
	OwnerID string           `json:"owner_id"`
	Pages   []sitecrawl.Page `json:"pages"`
}

func toContent(ownerID string, pages []sitecrawl.Page) []scrapestore.Content {
	out := make([]scrapestore.Content, 0, len(pages))
	for _, p := range pages {
		out = append(out, scrapestore.Content{
			ID:            p.ID,
			OwnerID:       ownerID,
			Url:           p.Url,
			Title:         p.Title,
			Content:       p.Content,
			ContentLength: p.ContentLength,
			Links:         p.Links,
		})
	}
	return out
}

func (s Service) postCrawl(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "postCrawl")
	defer span.End()

	var req crawlRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || strings.TrimSpace(req.OwnerID) == "" || strings.TrimSpace(req.Url) == "" {
		writeError(w, http.StatusBadRequest, messageCrawlRequired)
		return
	}

	pages, err := s.crawler.Crawl(ctx, req.Url, sitecrawl.CrawlOptions{
		MaxPages: req.MaxPages,
		MaxDepth: req.MaxDepth,
	})
	if err != nil {
		slog.ErrorContext(ctx, "error crawling site", "url", req.Url, "err", err)
		writeError(w, http.StatusInternalServerError, messageCrawlFailed)
		return
	}

	if s.store != nil {
		err = s.store.SaveContent(ctx, req.OwnerID, toContent(req.OwnerID, pages))
		if err != nil {
			slog.ErrorContext(ctx, "failed to store crawl", "owner_id", req.OwnerID, "err", err)
			writeError(w, http.StatusInternalServerError, messageCrawlFailed)
			return
		}
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    crawlResult{OwnerID: req.OwnerID, Pages: pages},
	})
}

func (s Service) getCrawl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, messageNoStore)
		return
	}

	ownerID := r.PathValue("ownerId")
	content, err := s.store.Content(ctx, ownerID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read crawl", "owner_id", ownerID, "err", err)
		writeError(w, http.StatusInternalServerError, messageStoreFailed)
		return
	}
	if len(content) == 0 {
		writeError(w, http.StatusNotFound, messageNotFound)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: content})
}
