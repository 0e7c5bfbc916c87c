package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/pkg/yelp"
)

// YelpSource discovers candidates through the Yelp Fusion business search.
// Yelp listings rarely carry the business's own website, so candidates from
// this source often arrive website-less and rely on dedup to merge with a
// richer record from another source.
type YelpSource struct {
	client yelp.Client
}

// NewYelpSource creates a Yelp-backed source.
func NewYelpSource(client yelp.Client) *YelpSource {
	return &YelpSource{client: client}
}

func (s *YelpSource) Name() string { return "yelp" }

func (s *YelpSource) Discover(ctx context.Context, niche, location string, limit int) ([]model.Candidate, error) {
	resp, err := s.client.SearchBusinesses(ctx, niche, location, limit)
	if err != nil {
		return nil, eris.Wrap(err, "source: yelp business search")
	}

	candidates := make([]model.Candidate, 0, len(resp.Businesses))
	for _, b := range resp.Businesses {
		if b.Name == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{
			Name:     b.Name,
			Address:  b.Location.Address(),
			Phone:    b.Phone,
			Source:   s.Name(),
			SourceID: b.ID,
		})
	}
	return candidates, nil
}
