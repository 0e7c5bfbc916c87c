package source

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/pkg/places"
)

// PlacesSource discovers candidates through the Google Places Text Search
// API.
type PlacesSource struct {
	client places.Client
}

// NewPlacesSource creates a Places-backed source.
func NewPlacesSource(client places.Client) *PlacesSource {
	return &PlacesSource{client: client}
}

func (s *PlacesSource) Name() string { return "google_places" }

func (s *PlacesSource) Discover(ctx context.Context, niche, location string, limit int) ([]model.Candidate, error) {
	resp, err := s.client.TextSearch(ctx, fmt.Sprintf("%s in %s", niche, location), limit)
	if err != nil {
		return nil, eris.Wrap(err, "source: places text search")
	}

	candidates := make([]model.Candidate, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.DisplayName.Text == "" {
			continue
		}
		phone := p.InternationalPhone
		if phone == "" {
			phone = p.NationalPhoneNumber
		}
		candidates = append(candidates, model.Candidate{
			Name:     p.DisplayName.Text,
			Address:  p.FormattedAddress,
			Phone:    phone,
			Website:  p.WebsiteURI,
			Source:   s.Name(),
			SourceID: p.ID,
		})
	}
	return candidates, nil
}
