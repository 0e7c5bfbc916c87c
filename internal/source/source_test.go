package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/pkg/nominatim"
	"github.com/sells-group/prospector/pkg/places"
	"github.com/sells-group/prospector/pkg/yelp"
)

type stubSource struct {
	name       string
	candidates []model.Candidate
	err        error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Discover(_ context.Context, _, _ string, _ int) ([]model.Candidate, error) {
	return s.candidates, s.err
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSource{name: "yelp"})
	r.Register(&stubSource{name: "google_places"})

	t.Run("named subset", func(t *testing.T) {
		sources, errs := r.Resolve([]string{"yelp"})
		require.Len(t, sources, 1)
		assert.Equal(t, "yelp", sources[0].Name())
		assert.Empty(t, errs)
	})

	t.Run("empty request resolves all", func(t *testing.T) {
		sources, errs := r.Resolve(nil)
		assert.Len(t, sources, 2)
		assert.Empty(t, errs)
	})

	t.Run("unknown name is a per-source error", func(t *testing.T) {
		sources, errs := r.Resolve([]string{"google_places", "linkedin"})
		require.Len(t, sources, 1)
		require.Len(t, errs, 1)
		assert.Equal(t, "linkedin", errs[0].Source)
		assert.Contains(t, errs[0].Error(), "unknown source")
	})
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSource{name: "yelp"})
	r.Register(&stubSource{name: "google_places"})
	r.Register(&stubSource{name: "openstreetmap"})

	assert.Equal(t, []string{"google_places", "openstreetmap", "yelp"}, r.Names())
}

func TestPlacesSource_Discover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dentists in Pittsburgh, PA", body["textQuery"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(places.TextSearchResponse{
			Places: []places.Place{
				{
					ID:                  "ChIJ-1",
					DisplayName:         places.DisplayName{Text: "Smile Dental"},
					FormattedAddress:    "123 Main St, Pittsburgh, PA 15201",
					NationalPhoneNumber: "(412) 555-0134",
					WebsiteURI:          "https://smiledental.com",
				},
				{ID: "ChIJ-noname"}, // nameless entries are dropped
			},
		})
	}))
	defer srv.Close()

	s := NewPlacesSource(places.NewClient("k", places.WithBaseURL(srv.URL)))
	got, err := s.Discover(context.Background(), "dentists", "Pittsburgh, PA", 20)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Smile Dental", got[0].Name)
	assert.Equal(t, "google_places", got[0].Source)
	assert.Equal(t, "ChIJ-1", got[0].SourceID)
	assert.Equal(t, "https://smiledental.com", got[0].Website)
}

func TestYelpSource_Discover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(yelp.SearchResponse{
			Businesses: []yelp.Business{
				{
					ID:    "smile-dental",
					Name:  "Smile Dental",
					Phone: "+14125550134",
					Location: yelp.Location{
						DisplayAddress: []string{"123 Main St", "Pittsburgh, PA 15201"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	s := NewYelpSource(yelp.NewClient("k", yelp.WithBaseURL(srv.URL)))
	got, err := s.Discover(context.Background(), "dentists", "Pittsburgh, PA", 20)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "yelp", got[0].Source)
	assert.Equal(t, "123 Main St, Pittsburgh, PA 15201", got[0].Address)
	assert.Empty(t, got[0].Website, "yelp listings do not carry the business website")
}

func TestOSMSource_Discover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"place_id": 99, "display_name": "Smile Dental, Main Street, Pittsburgh",
			 "extratags": {"website": "https://smiledental.com"},
			 "namedetails": {"name": "Smile Dental"}},
			{"place_id": 100, "display_name": "Unnamed node", "namedetails": {}}
		]`))
	}))
	defer srv.Close()

	s := NewOSMSource(nominatim.NewClient(nominatim.WithBaseURL(srv.URL)))
	got, err := s.Discover(context.Background(), "dentist", "Pittsburgh", 10)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "openstreetmap", got[0].Source)
	assert.Equal(t, "99", got[0].SourceID)
}

func TestSourceError_Unwrap(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &Error{Source: "yelp", Err: inner}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "yelp")
}
