package sitecrawl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/htmlutil"
	"harvest-backend/lib/pagecache"
	"harvest-backend/lib/restyutil"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("harvest.lib.scrapers.sitecrawl")

const (
	DefaultMaxPages = 50
	DefaultMaxDepth = 3
)

// Page is the readable content of one crawled page.
type Page struct {
	ID            string   `json:"id"`
	Url           string   `json:"url"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	ContentLength int      `json:"content_length"`
	Links         []string `json:"links"`
	Depth         int      `json:"depth"`
}

type CrawlOptions struct {
	// defaults to DefaultMaxPages
	MaxPages int `json:"max_pages"`
	// the start page has depth 0, defaults to DefaultMaxDepth
	MaxDepth int `json:"max_depth"`
}

func (o CrawlOptions) withDefaults() CrawlOptions {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

type Options struct {
	// requests per second, 0 does not limit
	RateLimit   float64
	RetryPolicy restyutil.RetryPolicy
	// pages are read from and written to the cache when it is set
	Cache  *pagecache.Cache
	Clock  chrono.API
	Output restyutil.InstrumentOutput
}

// Crawler walks a site breadth first, staying on the host it started on.
type Crawler struct {
	http   *resty.Client
	policy restyutil.RetryPolicy
	cache  *pagecache.Cache
	clock  chrono.API
}

func NewCrawler(opts Options) Crawler {
	policy := opts.RetryPolicy
	if policy.MaxAttempts <= 0 {
		policy = restyutil.DefaultRetryPolicy()
	}
	clock := opts.Clock
	if clock == nil {
		clock = chrono.NewStandardImpl()
	}
	return Crawler{
		http: restyutil.NewClient(restyutil.ClientOptions{
			RateLimit:  opts.RateLimit,
			TracerName: "harvest.lib.scrapers.sitecrawl",
			Output:     opts.Output,
		}),
		policy: policy,
		cache:  opts.Cache,
		clock:  clock,
	}
}

type queued struct {
	url   string
	depth int
}

// Crawl visits at most MaxPages pages reachable from start within MaxDepth
// links. Pages that fail to load are logged and skipped, the crawl only
// fails when the start page cannot be loaded.
func (c Crawler) Crawl(ctx context.Context, start string, opts CrawlOptions) ([]Page, error) {
	ctx, span := tracer.Start(ctx, "Crawl")
	defer span.End()

	opts = opts.withDefaults()
	startUrl, err := pagecache.NormalizeURL(start)
	if err != nil {
		return nil, fmt.Errorf("invalid start url: %w", err)
	}
	base, err := url.Parse(startUrl)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid start url %q", start)
	}
	span.SetAttributes(attribute.String("start", startUrl))

	visited := map[string]bool{}
	queue := []queued{{url: startUrl, depth: 0}}
	pages := []Page{}

	for len(queue) > 0 && len(visited) < opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		next := queue[0]
		queue = queue[1:]
		if visited[next.url] || next.depth > opts.MaxDepth {
			continue
		}
		visited[next.url] = true

		page, err := c.visit(ctx, base, next)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			if next.depth == 0 {
				return nil, err
			}
			slog.WarnContext(ctx, "failed to crawl page", "url", next.url, "err", err)
			continue
		}
		pages = append(pages, page)

		for _, link := range page.Links {
			if !visited[link] {
				queue = append(queue, queued{url: link, depth: next.depth + 1})
			}
		}
	}

	span.SetAttributes(attribute.Int("pages", len(pages)))
	slog.InfoContext(ctx, "crawl finished", "start", startUrl, "pages", len(pages))
	return pages, nil
}

func (c Crawler) visit(ctx context.Context, base *url.URL, next queued) (Page, error) {
	contents, err := c.fetch(ctx, next.url)
	if err != nil {
		return Page{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(contents))
	if err != nil {
		return Page{}, fmt.Errorf("parse %s: %w", next.url, err)
	}

	pageUrl, _ := url.Parse(next.url)
	links := sameHostLinks(ctx, base, pageUrl, doc)
	content := readableContent(doc)

	return Page{
		ID:            uuid.NewString(),
		Url:           next.url,
		Title:         htmlutil.SelectionText(doc.Find("title").First()),
		Content:       content,
		ContentLength: utf8.RuneCountInString(content),
		Links:         links,
		Depth:         next.depth,
	}, nil
}

func (c Crawler) fetch(ctx context.Context, link string) ([]byte, error) {
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, link)
		if err == nil {
			slog.DebugContext(ctx, "page cache hit", "url", link)
			return cached.Contents, nil
		}
		if !errors.Is(err, pagecache.ErrPageNotFound) {
			slog.WarnContext(ctx, "failed to read page cache", "url", link, "err", err)
		}
	}

	res, err := restyutil.Get(ctx, c.http, link, c.policy, nil)
	if err != nil {
		return nil, err
	}
	contentType := res.Header().Get("content-type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("%s is not html: %s", link, contentType)
	}

	if c.cache != nil {
		err = c.cache.Set(ctx, pagecache.Page{
			Url:         link,
			ContentType: contentType,
			Contents:    res.Body(),
			FetchedAt:   c.clock.Now(),
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to write page cache", "url", link, "err", err)
		}
	}
	return res.Body(), nil
}

// sameHostLinks returns the normalized http(s) links of doc that point to
// base's host, in document order without duplicates.
func sameHostLinks(ctx context.Context, base, pageUrl *url.URL, doc *goquery.Document) []string {
	links := []string{}
	for _, anchor := range htmlutil.GetAnchors(ctx, pageUrl, doc.Find("a[href]")) {
		normalized, err := pagecache.NormalizeURL(anchor.Href)
		if err != nil {
			continue
		}
		link, err := url.Parse(normalized)
		if err != nil {
			continue
		}
		if link.Scheme != "http" && link.Scheme != "https" {
			continue
		}
		if link.Host != base.Host || slices.Contains(links, normalized) {
			continue
		}
		links = append(links, normalized)
	}
	return links
}

var converter = md.NewConverter("", true, nil)

// readableContent renders the main content of doc as markdown.
func readableContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, iframe, svg").Remove()

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	return strings.TrimSpace(converter.Convert(root))
}
