package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/pkg/nominatim"
)

// OSMSource discovers candidates through the OpenStreetMap Nominatim
// search API. Coverage is sparse compared to the commercial directories
// but it is free and occasionally surfaces businesses the others miss.
type OSMSource struct {
	client nominatim.Client
}

// NewOSMSource creates a Nominatim-backed source.
func NewOSMSource(client nominatim.Client) *OSMSource {
	return &OSMSource{client: client}
}

func (s *OSMSource) Name() string { return "openstreetmap" }

func (s *OSMSource) Discover(ctx context.Context, niche, location string, limit int) ([]model.Candidate, error) {
	results, err := s.client.Search(ctx, fmt.Sprintf("%s %s", niche, location), limit)
	if err != nil {
		return nil, eris.Wrap(err, "source: nominatim search")
	}

	candidates := make([]model.Candidate, 0, len(results))
	for _, r := range results {
		name := r.Namedetails.Name
		if name == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{
			Name:     name,
			Address:  r.DisplayName,
			Phone:    r.Extratags.Phone,
			Website:  r.Extratags.Website,
			Source:   s.Name(),
			SourceID: strconv.FormatInt(r.PlaceID, 10),
		})
	}
	return candidates, nil
}
