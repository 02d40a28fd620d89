package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("harvest.lib.browser")

var ErrAutomationTimeout = errors.New("browser automation timed out")

type Options struct {
	Headless     bool   `json:"headless"`
	UserAgent    string `json:"user_agent"`
	ExecPath     string `json:"exec_path"`
	WindowWidth  int    `json:"window_width"`
	WindowHeight int    `json:"window_height"`
}

// Chrome is a headless browser process, it must be closed by the caller
// that opened it.
type Chrome struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// Open launches a browser, the browser is torn down when ctx ends or when
// Close is called.
func Open(ctx context.Context, opts Options) (*Chrome, error) {
	width, height := opts.WindowWidth, opts.WindowHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(width, height),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...))
		}),
	)

	err := chromedp.Run(browserCtx)
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Chrome{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

func (c *Chrome) Close() error {
	c.cancelBrowser()
	c.cancelAlloc()
	return nil
}

// NewPage opens a new tab scoped to this browser.
func (c *Chrome) NewPage() (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &Page{ctx: tabCtx, cancel: cancel}, nil
}

// Tab is the part of a browser tab the scrapers drive, *Page is one.
type Tab interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	Query(ctx context.Context, selector string) ([]*goquery.Selection, error)
	Reveal(ctx context.Context, action RevealAction) error
}

// ScopedTab is a tab owned by whoever opened it.
type ScopedTab interface {
	Tab
	Close() error
}

// TabOpener opens fresh tabs, *Chrome is one.
type TabOpener interface {
	OpenTab() (ScopedTab, error)
}

func (c *Chrome) OpenTab() (ScopedTab, error) {
	page, err := c.NewPage()
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Page is a single browser tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *Page) Close() error {
	p.cancel()
	return nil
}

// run executes actions in the tab while honoring both the caller's ctx and
// an optional timeout.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	if timeout > 0 {
		cancel()
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrAutomationTimeout, err.Error())
	}
	return err
}

type NavigateOptions struct {
	// an element to wait for after the document is ready
	WaitSelector string
	// defaults to 60 seconds
	Timeout time.Duration
}

func (p *Page) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	ctx, span := tracer.Start(ctx, "Navigate")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if opts.WaitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery))
	}

	err := p.run(ctx, timeout, actions...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Query snapshots the current document and returns every node matching
// selector in document order.
func (p *Page) Query(ctx context.Context, selector string) ([]*goquery.Selection, error) {
	var outer string
	err := p.run(ctx, 0, chromedp.OuterHTML("html", &outer, chromedp.ByQuery))
	if err != nil {
		return nil, fmt.Errorf("snapshot document: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outer))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return split(doc.Find(selector)), nil
}

// Click clicks the first visible element matching selector.
func (p *Page) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Evaluate runs script in the page and decodes its result into out.
func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	return p.run(ctx, 0, chromedp.Evaluate(script, out))
}

func (p *Page) Reveal(ctx context.Context, action RevealAction) error {
	script, err := action.Script()
	if err != nil {
		return err
	}
	var acted bool
	err = p.Evaluate(ctx, script, &acted)
	if err != nil {
		return fmt.Errorf("%s: %w", action.Kind, err)
	}
	if !acted && action.Kind == RevealScroll {
		return ErrRevealUnavailable
	}
	return nil
}

func split(sel *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}
