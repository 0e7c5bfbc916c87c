package model

import (
	"time"
)

// QualityLabel buckets a quality score at fixed thresholds.
type QualityLabel string

const (
	QualityHigh   QualityLabel = "high"
	QualityMedium QualityLabel = "medium"
	QualityLow    QualityLabel = "low"
)

// CrawlStatus summarizes how a lead's website crawl went.
type CrawlStatus string

const (
	CrawlStatusOK      CrawlStatus = "ok"
	CrawlStatusFailed  CrawlStatus = "crawl_failed"
	CrawlStatusSkipped CrawlStatus = "skipped"
)

// Signals is the extracted evidence a quality score is computed from.
// It is persisted alongside the Lead so scores can be recomputed later
// without re-crawling.
type Signals struct {
	HasEmail         bool      `json:"has_email"`
	HasPhone         bool      `json:"has_phone"`
	HasAddress       bool      `json:"has_address"`
	HasSocial        bool      `json:"has_social"`
	WebsiteReachable bool      `json:"website_reachable"`
	HasWebsite       bool      `json:"has_website"`
	InvalidEmailOnly bool      `json:"invalid_email_only"`
	LastSeen         time.Time `json:"last_seen,omitzero"`
}

// Lead is the persisted, deduplicated, enriched business record — the
// system's primary output. Identity is the DedupKey; later jobs may update
// enrichment fields but never the key.
type Lead struct {
	ID           string            `json:"id"`
	JobID        string            `json:"job_id"`
	DedupKey     string            `json:"dedup_key"`
	Name         string            `json:"name"`
	Website      string            `json:"website,omitempty"`
	Domain       string            `json:"domain,omitempty"`
	Address      string            `json:"address,omitempty"`
	Emails       []string          `json:"emails,omitempty"`
	Phones       []string          `json:"phones,omitempty"`
	SocialLinks  map[string]string `json:"social_links,omitempty"`
	TechStack    []string          `json:"tech_stack,omitempty"`
	Content      string            `json:"content,omitempty"`
	QualityScore int               `json:"quality_score"`
	QualityLabel QualityLabel      `json:"quality_label"`
	Source       string            `json:"source"`
	CrawlStatus  CrawlStatus       `json:"crawl_status"`
	Signals      Signals           `json:"signals"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// HasEmail reports whether at least one email was extracted.
func (l *Lead) HasEmail() bool { return len(l.Emails) > 0 }

// HasPhone reports whether at least one phone was extracted.
func (l *Lead) HasPhone() bool { return len(l.Phones) > 0 }

// HasSocial reports whether at least one social profile was found.
func (l *Lead) HasSocial() bool { return len(l.SocialLinks) > 0 }
