// Package store persists jobs and leads. Two implementations exist: SQLite
// (modernc, pure Go, default) for single-node use and Postgres (pgx) for
// shared deployments. Leads are keyed by dedup key; re-discovering a known
// business updates its enrichment instead of inserting a duplicate.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// ErrNotFound is returned when a job or lead does not exist.
var ErrNotFound = eris.New("store: not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	JobID    string             `json:"job_id,omitempty"`
	Label    model.QualityLabel `json:"label,omitempty"`
	MinScore int                `json:"min_score,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the discovery pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, query model.JobQuery) (*model.Job, error)
	UpdateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// Leads
	UpsertLead(ctx context.Context, lead *model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	GetLeadByDedupKey(ctx context.Context, dedupKey string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadScore(ctx context.Context, leadID string, score int, label model.QualityLabel) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
