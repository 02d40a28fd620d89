package pagecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	cache, err := Open("", time.Hour)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	_, err = cache.Get(ctx, "https://example.com/docs")
	require.ErrorIs(t, err, ErrPageNotFound)

	fetchedAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	err = cache.Set(ctx, Page{
		Url:         "https://example.com/docs/",
		ContentType: "text/html",
		Contents:    []byte("<html></html>"),
		FetchedAt:   fetchedAt,
	})
	require.NoError(t, err)

	page, err := cache.Get(ctx, "https://EXAMPLE.com/docs#intro")
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(page.Contents))
	require.True(t, fetchedAt.Equal(page.FetchedAt))
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"https://Example.com/a/":          "https://example.com/a",
		"https://example.com/a/../b#frag": "https://example.com/b",
		"https://example.com/x?b=2&a=1":   "https://example.com/x?a=1&b=2",
		"https://example.com:443/":        "https://example.com",
	}
	for in, expected := range cases {
		normalized, err := NormalizeURL(in)
		require.NoError(t, err)
		require.Equal(t, expected, normalized, in)
	}
}
