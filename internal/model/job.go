package model

import (
	"time"
)

// JobStatus represents the lifecycle state of a discovery job.
type JobStatus string

const (
	JobStatusQueued                JobStatus = "queued"
	JobStatusRunning               JobStatus = "running"
	JobStatusCompleted             JobStatus = "completed"
	JobStatusCompletedWithWarnings JobStatus = "completed_with_warnings"
	JobStatusFailed                JobStatus = "failed"
	JobStatusCancelled             JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithWarnings, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// ExtractOptions selects which signal families the extractor should emit.
// Explicit named fields rather than an option map so a typo cannot silently
// disable an extraction step.
type ExtractOptions struct {
	Emails      bool `json:"emails" yaml:"emails" mapstructure:"emails"`
	Phones      bool `json:"phones" yaml:"phones" mapstructure:"phones"`
	Social      bool `json:"social" yaml:"social" mapstructure:"social"`
	FullContent bool `json:"full_content" yaml:"full_content" mapstructure:"full_content"`
}

// DefaultExtractOptions enables everything except full-content capture.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{Emails: true, Phones: true, Social: true}
}

// JobQuery describes what a job should discover. Extract is a pointer so an
// omitted options block (take the defaults) is distinguishable from an
// explicit all-false one (extract nothing).
type JobQuery struct {
	Niche           string          `json:"niche"`
	Location        string          `json:"location,omitempty"`
	MaxResults      int             `json:"max_results"`
	MaxPagesPerSite int             `json:"max_pages_per_site"`
	Sources         []string        `json:"sources,omitempty"`
	Extract         *ExtractOptions `json:"extract,omitempty"`
}

// ExtractOptions returns the query's options, falling back to the defaults
// when none were submitted.
func (q JobQuery) ExtractOptions() ExtractOptions {
	if q.Extract != nil {
		return *q.Extract
	}
	return DefaultExtractOptions()
}

// SourceOutcome records the result of one discovery adapter invocation.
// Append-only on the job; never mutated after the adapter call returns.
type SourceOutcome struct {
	Source         string        `json:"source"`
	Success        bool          `json:"success"`
	CandidateCount int           `json:"candidate_count"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
}

// JobCounters aggregates per-candidate outcomes at the job level.
type JobCounters struct {
	CandidatesFound int `json:"candidates_found"`
	Processed       int `json:"processed"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
}

// Job is one discovery-and-enrichment run. Only the job controller mutates
// a Job after creation.
type Job struct {
	ID          string          `json:"id"`
	Query       JobQuery        `json:"query"`
	Status      JobStatus       `json:"status"`
	Counters    JobCounters     `json:"counters"`
	Warnings    []string        `json:"warnings,omitempty"`
	Sources     []SourceOutcome `json:"sources,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
