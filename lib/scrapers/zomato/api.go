package zomato

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"harvest-backend/lib/extract"
	"harvest-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("harvest.lib.scrapers.zomato")

const DefaultBaseUrl = "https://www.zomato.com"

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl     string
	RetryPolicy restyutil.RetryPolicy
	Output      restyutil.InstrumentOutput
}

// Client fetches menus from the getPage API that backs the ordering page.
type Client struct {
	http   *resty.Client
	policy restyutil.RetryPolicy
}

func NewClient(opts ClientOptions) Client {
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	policy := opts.RetryPolicy
	if policy.MaxAttempts <= 0 {
		policy = restyutil.DefaultRetryPolicy()
	}
	http := restyutil.NewClient(restyutil.ClientOptions{
		BaseUrl:    baseUrl,
		TracerName: "harvest.lib.scrapers.zomato",
		Output:     opts.Output,
	})
	http.SetHeader("accept", "application/json")
	return Client{http: http, policy: policy}
}

func menuPath(subDomain string) string {
	query := url.Values{}
	query.Set("page_url", "/"+strings.Trim(subDomain, "/")+"/order")
	query.Set("location", "")
	query.Set("isMobile", "0")
	return "/webroutes/getPage?" + query.Encode()
}

// FetchMenu fetches the menu of a restaurant by its subdomain, which is the
// path segment in its zomato URL, e.g. "dubai/some-restaurant".
func (c Client) FetchMenu(ctx context.Context, subDomain string) ([]extract.Section, error) {
	ctx, span := tracer.Start(ctx, "FetchMenu")
	defer span.End()
	span.SetAttributes(attribute.String("sub_domain", subDomain))

	if strings.TrimSpace(subDomain) == "" {
		return nil, fmt.Errorf("sub domain is empty")
	}

	res, err := restyutil.Get(ctx, c.http, menuPath(subDomain), c.policy, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch menu")
		return nil, err
	}

	sections, err := TransformMenu(res.Body())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to transform menu")
		return nil, err
	}

	slog.DebugContext(ctx, "fetched menu", "sub_domain", subDomain, "sections", len(sections))
	return sections, nil
}
