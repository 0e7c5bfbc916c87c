package yelp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchBusinesses_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/businesses/search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "dentists", r.URL.Query().Get("term"))
		assert.Equal(t, "Pittsburgh, PA", r.URL.Query().Get("location"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Total: 1,
			Businesses: []Business{
				{
					ID:    "smile-dental-pittsburgh",
					Name:  "Smile Dental",
					Phone: "+14125550134",
					URL:   "https://www.yelp.com/biz/smile-dental-pittsburgh",
					Location: Location{
						DisplayAddress: []string{"123 Main St", "Pittsburgh, PA 15201"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.SearchBusinesses(context.Background(), "dentists", "Pittsburgh, PA", 20)

	require.NoError(t, err)
	require.Len(t, resp.Businesses, 1)
	assert.Equal(t, "Smile Dental", resp.Businesses[0].Name)
	assert.Equal(t, "123 Main St, Pittsburgh, PA 15201", resp.Businesses[0].Location.Address())
}

func TestSearchBusinesses_ClampsPageLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResponse{})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.SearchBusinesses(context.Background(), "dentists", "Pittsburgh, PA", 200)
	require.NoError(t, err)
}

func TestSearchBusinesses_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"code": "TOKEN_INVALID"}}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	resp, err := client.SearchBusinesses(context.Background(), "dentists", "Pittsburgh, PA", 20)

	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "401")
}

func TestSearchBusinesses_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.SearchBusinesses(ctx, "dentists", "Pittsburgh, PA", 20)
	assert.Error(t, err)
}
