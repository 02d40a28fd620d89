package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"harvest-backend/lib/restyutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingBody = `{"data": {"children": [
	{"data": {"title": "Go 1.23 released", "score": 512, "url": "https://go.dev/blog/go1.23", "num_comments": 88, "author": "gopher", "created_utc": 1723500000}},
	{"data": {"title": "Deleted post", "score": 3, "url": "https://reddit.com/x", "num_comments": 0, "author": "[deleted]", "created_utc": 1723500100.5}}
]}}`

func TestListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/golang/hot.json", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(listingBody))
	}))
	defer server.Close()

	client := NewListingClient(server.URL, nil)
	posts, err := Listing(context.Background(), client, "golang", SortHot, 20, restyutil.DefaultRetryPolicy())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, "gopher", posts[0].Author)
	require.Equal(t, "N/A", posts[1].Author)
	require.Equal(t, int64(1723500000), posts[0].CreatedAt().Unix())

	rows := ListingRows(posts)
	require.Equal(t, []string{"Go 1.23 released", "512", "https://go.dev/blog/go1.23", "88", "gopher", "1723500000"}, rows[0])
	require.Equal(t, "1723500100.5", rows[1][5])
	require.Len(t, ListingHeader, len(rows[0]))
}

func TestListingNotFound(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewListingClient(server.URL, nil)
	_, err := Listing(context.Background(), client, "nope", SortNew, 5, restyutil.DefaultRetryPolicy())
	require.ErrorIs(t, err, restyutil.ErrTransientFetch)
	require.Equal(t, 1, calls)
}

func TestParseSort(t *testing.T) {
	sort, err := ParseSort("top")
	require.NoError(t, err)
	require.Equal(t, SortTop, sort)

	_, err = ParseSort("controversial")
	require.Error(t, err)
}

func TestListingFilename(t *testing.T) {
	require.Equal(t, "python_hot_posts.csv", ListingFilename("python", SortHot))
}
