package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"harvest-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"
)

type Sort string

const (
	SortHot Sort = "hot"
	SortNew Sort = "new"
	SortTop Sort = "top"
)

func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case SortHot, SortNew, SortTop:
		return Sort(s), nil
	default:
		return "", fmt.Errorf("invalid sort %q, use hot, new or top", s)
	}
}

type ListingPost struct {
	Title      string
	Score      int
	Url        string
	Comments   int
	Author     string
	CreatedUtc float64
}

type listingResponse struct {
	Data *struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Score       int     `json:"score"`
				Url         string  `json:"url"`
				NumComments int     `json:"num_comments"`
				Author      string  `json:"author"`
				CreatedUtc  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// NewListingClient creates a client for the public json listings, they
// are rate limited to a request per second.
func NewListingClient(baseUrl string, output restyutil.InstrumentOutput) *resty.Client {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	client := restyutil.NewClient(restyutil.ClientOptions{
		BaseUrl:    baseUrl,
		UserAgent:  "script:harvest:1.0",
		RateLimit:  1,
		TracerName: "harvest.lib.scrapers.reddit",
		Output:     output,
	})
	client.SetHeader("accept", "application/json")
	return client
}

// Listing fetches the first limit posts of a subreddit in the given order.
func Listing(ctx context.Context, client *resty.Client, subreddit string, sort Sort, limit int, policy restyutil.RetryPolicy) ([]ListingPost, error) {
	ctx, span := tracer.Start(ctx, "Listing")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}
	path := fmt.Sprintf("/r/%s/%s.json", subreddit, sort)
	res, err := restyutil.Get(ctx, client, path, policy, func(req *resty.Request) {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	})
	if err != nil {
		return nil, err
	}

	var listing listingResponse
	err = json.Unmarshal(res.Body(), &listing)
	if err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	if listing.Data == nil {
		return nil, fmt.Errorf("listing of r/%s has no data", subreddit)
	}

	posts := make([]ListingPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		author := child.Data.Author
		if author == "" || author == "[deleted]" {
			author = "N/A"
		}
		posts = append(posts, ListingPost{
			Title:      child.Data.Title,
			Score:      child.Data.Score,
			Url:        child.Data.Url,
			Comments:   child.Data.NumComments,
			Author:     author,
			CreatedUtc: child.Data.CreatedUtc,
		})
		if len(posts) >= limit {
			break
		}
	}
	return posts, nil
}

var ListingHeader = []string{"Title", "Score", "URL", "Comments", "Author", "Created_UTC"}

func ListingRows(posts []ListingPost) [][]string {
	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, []string{
			p.Title,
			strconv.Itoa(p.Score),
			p.Url,
			strconv.Itoa(p.Comments),
			p.Author,
			strconv.FormatFloat(p.CreatedUtc, 'f', -1, 64),
		})
	}
	return rows
}

func ListingFilename(subreddit string, sort Sort) string {
	return fmt.Sprintf("%s_%s_posts.csv", subreddit, sort)
}

// CreatedAt converts the listing's unix seconds to a time.
func (p ListingPost) CreatedAt() time.Time {
	return time.Unix(int64(p.CreatedUtc), 0).UTC()
}
