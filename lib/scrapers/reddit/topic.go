package reddit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"harvest-backend/lib/browser"
	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("harvest.lib.scrapers.reddit")

const (
	DefaultBaseUrl     = "https://www.reddit.com"
	DefaultMaxPosts    = 100
	DefaultMaxComments = 20
)

// PostsTarget reads search results, post details are attributes of the
// shreddit-post element itself.
var PostsTarget = extract.Target{
	Name:         "reddit_posts",
	ItemSelector: "shreddit-post",
	KeyFields:    []string{"postUrl"},
	Fields: []extract.Field{
		{Name: "title", Attrs: []string{"post-title"}, Default: ""},
		{Name: "content", Selector: `div[slot="text-body"]`, Default: ""},
		{Name: "score", Attrs: []string{"score"}, Transform: extract.ParseInt, Default: 0},
		{Name: "author", Attrs: []string{"author"}, Default: ""},
		{Name: "timestamp", Attrs: []string{"created-timestamp"}, Transform: extract.Timestamp, Default: ""},
		{Name: "postUrl", Attrs: []string{"permalink"}, Default: ""},
	},
	Reveal: []browser.RevealAction{{Kind: browser.RevealScroll}},
}

var CommentsTarget = extract.Target{
	Name:         "reddit_comments",
	ItemSelector: "shreddit-comment",
	Fields: []extract.Field{
		{Name: "author", Attrs: []string{"author"}, Default: ""},
		{Name: "content", Selector: `[slot="comment"], [slot="comment-body"]`, Default: ""},
		{Name: "score", Attrs: []string{"score"}, Transform: extract.ParseInt, Default: 0},
	},
}

type Comment struct {
	Author  string `json:"author"`
	Content string `json:"content"`
	Score   int    `json:"score"`
}

type Post struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Score     int       `json:"score"`
	Author    string    `json:"author"`
	Timestamp string    `json:"timestamp"`
	PostUrl   string    `json:"postUrl"`
	Comments  []Comment `json:"comments"`
}

type TopicDocument struct {
	Topic      string    `json:"topic"`
	Timestamp  time.Time `json:"timestamp"`
	TotalPosts int       `json:"total_posts"`
	Posts      []Post    `json:"posts"`
}

type TopicOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// defaults to DefaultMaxPosts
	MaxPosts int
	// defaults to DefaultMaxComments
	MaxComments int
	// the number of comment pages fetched at once, defaults to 1
	Workers int
	Loop    extract.LoopConfig
	Clock   chrono.API
}

func (o TopicOptions) withDefaults() TopicOptions {
	if o.BaseUrl == "" {
		o.BaseUrl = DefaultBaseUrl
	}
	o.BaseUrl = strings.TrimRight(o.BaseUrl, "/")
	if o.MaxPosts <= 0 {
		o.MaxPosts = DefaultMaxPosts
	}
	if o.MaxComments <= 0 {
		o.MaxComments = DefaultMaxComments
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Clock == nil {
		o.Clock = chrono.NewStandardImpl()
	}
	return o
}

func intField(r extract.Record, name string) int {
	n, _ := r[name].(int)
	return n
}

func toPost(r extract.Record) Post {
	return Post{
		Title:     r.String("title"),
		Content:   r.String("content"),
		Score:     intField(r, "score"),
		Author:    r.String("author"),
		Timestamp: r.String("timestamp"),
		PostUrl:   r.String("postUrl"),
		Comments:  []Comment{},
	}
}

func searchUrl(baseUrl, topic string) string {
	query := url.Values{}
	query.Set("q", topic)
	query.Set("sort", "top")
	return baseUrl + "/search/?" + query.Encode()
}

// ScrapeTopic collects up to MaxPosts top posts matching topic, then the
// first comments of every post. Each post's comments are fetched in their
// own tab, a post whose comments cannot be fetched keeps an empty list.
func ScrapeTopic(ctx context.Context, opener browser.TabOpener, topic string, opts TopicOptions) (TopicDocument, error) {
	ctx, span := tracer.Start(ctx, "ScrapeTopic")
	defer span.End()
	span.SetAttributes(attribute.String("topic", topic))

	opts = opts.withDefaults()
	link := searchUrl(opts.BaseUrl, topic)
	run := extract.NewRun(link, opts.Clock)

	posts, err := collectPosts(ctx, opener, run, link, opts)
	if err != nil {
		return TopicDocument{}, err
	}

	err = fetchAllComments(ctx, opener, posts, opts)
	if err != nil {
		return TopicDocument{}, err
	}

	return TopicDocument{
		Topic:      topic,
		Timestamp:  run.StartedAt,
		TotalPosts: len(posts),
		Posts:      posts,
	}, nil
}

func collectPosts(ctx context.Context, opener browser.TabOpener, run *extract.Run, link string, opts TopicOptions) ([]Post, error) {
	tab, err := opener.OpenTab()
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	err = tab.Navigate(ctx, link, browser.NavigateOptions{Timeout: time.Minute})
	if err != nil {
		return nil, err
	}

	cfg := opts.Loop
	cfg.MaxItems = opts.MaxPosts
	err = run.Collect(ctx, tab, PostsTarget, cfg)
	if err != nil {
		return nil, fmt.Errorf("collect posts: %w", err)
	}
	snapshot, err := run.Finalize()
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, snapshot.Total)
	for _, r := range snapshot.Result.Records() {
		posts = append(posts, toPost(r))
	}
	return posts, nil
}

// fetchAllComments fills in the comments of posts in place, results land at
// their post's index regardless of the order fetches complete in.
func fetchAllComments(ctx context.Context, opener browser.TabOpener, posts []Post, opts TopicOptions) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Workers)

	for i := range posts {
		if posts[i].PostUrl == "" {
			continue
		}
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			slog.DebugContext(groupCtx, "fetching comments", "post", i+1, "total", len(posts))
			comments, err := fetchComments(groupCtx, opener, opts.BaseUrl+posts[i].PostUrl, opts.MaxComments)
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			if err != nil {
				slog.WarnContext(groupCtx, "failed to get comments", "post_url", posts[i].PostUrl, "err", err)
				return nil
			}
			posts[i].Comments = comments
			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func fetchComments(ctx context.Context, opener browser.TabOpener, link string, limit int) ([]Comment, error) {
	ctx, span := tracer.Start(ctx, "fetchComments")
	defer span.End()
	span.SetAttributes(attribute.String("url", link))

	tab, err := opener.OpenTab()
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	err = tab.Navigate(ctx, link, browser.NavigateOptions{Timeout: 30 * time.Second})
	if err != nil {
		return nil, err
	}
	nodes, err := tab.Query(ctx, CommentsTarget.ItemSelector)
	if err != nil {
		return nil, err
	}

	comments := []Comment{}
	for _, node := range nodes {
		if len(comments) >= limit {
			break
		}
		r := CommentsTarget.ExtractRecord(node)
		comments = append(comments, Comment{
			Author:  r.String("author"),
			Content: r.String("content"),
			Score:   intField(r, "score"),
		})
	}
	return comments, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// TopicFilename is the name a topic document is written under.
func TopicFilename(topic string, at time.Time) string {
	return fmt.Sprintf("reddit_%s_%d.json", whitespace.ReplaceAllString(topic, "_"), at.UnixMilli())
}
