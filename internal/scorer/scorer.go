// Package scorer computes the 0–100 quality score for a lead from its
// extracted signals. Scoring is a pure function: recomputing on identical
// signals always yields the identical score and label, so stored leads can
// be rescored when weights change without re-crawling.
package scorer

import (
	"time"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
)

// Weights holds the scoring weights, penalties, and label thresholds.
type Weights struct {
	Email          int
	Phone          int
	Reachable      int
	Address        int
	Social         int
	Freshness      int
	FreshnessAge   time.Duration
	InvalidEmail   int // penalty
	MissingWebsite int // penalty

	HighThreshold   int
	MediumThreshold int
}

// DefaultWeights returns the standard scoring configuration.
func DefaultWeights() Weights {
	return Weights{
		Email:           25,
		Phone:           20,
		Reachable:       15,
		Address:         15,
		Social:          10,
		Freshness:       15,
		FreshnessAge:    30 * 24 * time.Hour,
		InvalidEmail:    10,
		MissingWebsite:  10,
		HighThreshold:   80,
		MediumThreshold: 50,
	}
}

// FromConfig builds Weights from configuration, falling back to defaults
// for unset values.
func FromConfig(cfg config.ScoringConfig) Weights {
	w := DefaultWeights()
	if cfg.EmailWeight > 0 {
		w.Email = cfg.EmailWeight
	}
	if cfg.PhoneWeight > 0 {
		w.Phone = cfg.PhoneWeight
	}
	if cfg.ReachableWeight > 0 {
		w.Reachable = cfg.ReachableWeight
	}
	if cfg.AddressWeight > 0 {
		w.Address = cfg.AddressWeight
	}
	if cfg.SocialWeight > 0 {
		w.Social = cfg.SocialWeight
	}
	if cfg.FreshnessWeight > 0 {
		w.Freshness = cfg.FreshnessWeight
	}
	if cfg.FreshnessDays > 0 {
		w.FreshnessAge = time.Duration(cfg.FreshnessDays) * 24 * time.Hour
	}
	if cfg.InvalidEmailPen > 0 {
		w.InvalidEmail = cfg.InvalidEmailPen
	}
	if cfg.MissingWebsitePen > 0 {
		w.MissingWebsite = cfg.MissingWebsitePen
	}
	if cfg.HighThreshold > 0 {
		w.HighThreshold = cfg.HighThreshold
	}
	if cfg.MediumThreshold > 0 {
		w.MediumThreshold = cfg.MediumThreshold
	}
	return w
}

// Scorer computes quality scores. The clock is injectable so freshness is
// testable; zero value uses time.Now.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// New creates a Scorer with the given weights.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (s *Scorer) WithNow(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Score computes the weighted score and label for a set of signals,
// clamped to [0, 100].
func (s *Scorer) Score(sig model.Signals) (int, model.QualityLabel) {
	w := s.weights
	score := 0

	if sig.HasEmail {
		score += w.Email
	}
	if sig.HasPhone {
		score += w.Phone
	}
	if sig.WebsiteReachable {
		score += w.Reachable
	}
	if sig.HasAddress {
		score += w.Address
	}
	if sig.HasSocial {
		score += w.Social
	}
	if s.fresh(sig.LastSeen) {
		score += w.Freshness
	}

	if sig.InvalidEmailOnly {
		score -= w.InvalidEmail
	}
	if !sig.HasWebsite {
		score -= w.MissingWebsite
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, s.label(score)
}

func (s *Scorer) label(score int) model.QualityLabel {
	switch {
	case score >= s.weights.HighThreshold:
		return model.QualityHigh
	case score >= s.weights.MediumThreshold:
		return model.QualityMedium
	default:
		return model.QualityLow
	}
}

func (s *Scorer) fresh(lastSeen time.Time) bool {
	if lastSeen.IsZero() {
		return false
	}
	return s.now().Sub(lastSeen) <= s.weights.FreshnessAge
}
