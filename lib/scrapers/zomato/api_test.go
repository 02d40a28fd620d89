package zomato

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"harvest-backend/lib/extract"
	"harvest-backend/lib/restyutil"
	"harvest-backend/lib/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const singleItemResponse = `{"page_data": {"order": {"menuList": {"menus": [
	{"menu": {"name": "Mains", "categories": [
		{"category": {"name": "Grill", "items": [{"item": {"name": "Kebab", "display_price": "AED 45"}}]}}
	]}}
]}}}}`

func TestFetchMenuRetriesTransientFailures(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:zomato")
	defer cleanup()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webroutes/getPage", r.URL.Path)
		assert.Equal(t, "/dubai/grill-house/order", r.URL.Query().Get("page_url"))
		assert.Equal(t, "0", r.URL.Query().Get("isMobile"))

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(singleItemResponse))
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseUrl: server.URL})
	sections, err := client.FetchMenu(context.Background(), "dubai/grill-house")
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
	require.Len(t, sections, 1)
	require.Equal(t, "45", sections[0].Items[0]["price"])
}

func TestFetchMenuGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseUrl: server.URL})
	_, err := client.FetchMenu(context.Background(), "somewhere")
	require.ErrorIs(t, err, restyutil.ErrTransientFetch)
	require.Equal(t, int32(3), calls.Load())

	var fetchErr *restyutil.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, 3, fetchErr.Attempts)
	require.Equal(t, http.StatusBadGateway, fetchErr.Status)
}

func TestFetchMenuShapeMismatchIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"page_data": {"sections": {}}}`))
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseUrl: server.URL})
	_, err := client.FetchMenu(context.Background(), "somewhere")
	require.ErrorIs(t, err, extract.ErrShapeMismatch)
	require.Equal(t, int32(1), calls.Load())
}
