// Package job owns the discovery job lifecycle: discovery fan-out across
// sources, normalization and dedup, enrichment fan-out across candidates,
// and the single-writer state machine that aggregates their outcomes.
//
// Failure semantics are deliberately asymmetric: a failing source or
// candidate degrades the job (warnings, failed counters) while the job keeps
// running; the job itself fails only when it produced nothing at all — every
// source failed, or every candidate's enrichment did.
package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector/internal/dedupe"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/normalize"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/internal/store"
)

// Enricher processes one merged candidate into a persisted lead, honoring
// the job query's extraction options and per-site page cap.
type Enricher interface {
	Enrich(ctx context.Context, jobID string, query model.JobQuery, merged dedupe.Merged) (*model.Lead, error)
}

// Controller runs discovery jobs.
type Controller struct {
	registry       *source.Registry
	deduper        *dedupe.Deduper
	enricher       Enricher
	store          store.Store
	workers        int
	defaultSources []string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewController creates a Controller. workers bounds concurrent candidate
// pipelines.
func NewController(reg *source.Registry, ded *dedupe.Deduper, enr Enricher, st store.Store, workers int, defaultSources []string) *Controller {
	if workers <= 0 {
		workers = 8
	}
	return &Controller{
		registry:       reg,
		deduper:        ded,
		enricher:       enr,
		store:          st,
		workers:        workers,
		defaultSources: defaultSources,
		cancels:        make(map[string]context.CancelFunc),
	}
}

// Submit creates a job and returns immediately with it queued.
func (c *Controller) Submit(ctx context.Context, query model.JobQuery) (*model.Job, error) {
	if query.Niche == "" {
		return nil, fmt.Errorf("job: niche is required")
	}
	if len(query.Sources) == 0 {
		query.Sources = c.defaultSources
	}
	// A nil options block means "take the defaults"; an explicit all-false
	// block is preserved so callers can disable every extraction step.
	if query.Extract == nil {
		opts := model.DefaultExtractOptions()
		query.Extract = &opts
	}
	return c.store.CreateJob(ctx, query)
}

// Start submits the job and runs it in the background. The run detaches
// from the caller's context; use Cancel to stop it.
func (c *Controller) Start(ctx context.Context, query model.JobQuery) (*model.Job, error) {
	job, err := c.Submit(ctx, query)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancels[job.ID] = cancel
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.cancels, job.ID)
			c.mu.Unlock()
			cancel()
		}()
		if err := c.Run(runCtx, job.ID); err != nil {
			zap.L().Error("job: run failed",
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
		}
	}()

	return job, nil
}

// Cancel stops a running job. Returns false when the job is not running
// under this controller.
func (c *Controller) Cancel(jobID string) bool {
	c.mu.Lock()
	cancel, ok := c.cancels[jobID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Run executes a queued job to completion. The returned error covers
// infrastructure problems only (store unavailable, unknown job); discovery
// and enrichment failures are captured in the job record instead.
func (c *Controller) Run(ctx context.Context, jobID string) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job: %s already %s", jobID, job.Status)
	}

	job.Status = model.JobStatusRunning
	if err := c.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	zap.L().Info("job: started",
		zap.String("job_id", job.ID),
		zap.String("niche", job.Query.Niche),
		zap.String("location", job.Query.Location),
		zap.Strings("sources", job.Query.Sources),
	)

	candidates := c.discover(ctx, job)

	allFailed := len(job.Sources) > 0
	for _, outcome := range job.Sources {
		if outcome.Success {
			allFailed = false
			break
		}
	}
	if allFailed {
		job.Status = model.JobStatusFailed
		job.Error = "all sources failed"
		return c.finish(ctx, job)
	}

	merged := c.prepare(job, candidates)
	job.Counters.CandidatesFound = len(merged)
	if err := c.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	c.enrichAll(ctx, job, merged)

	switch {
	case ctx.Err() != nil:
		job.Status = model.JobStatusCancelled
	case job.Counters.Processed > 0 && job.Counters.Succeeded == 0:
		// Candidates existed but none produced a lead.
		job.Status = model.JobStatusFailed
		job.Error = "all candidates failed"
	case len(job.Warnings) > 0:
		job.Status = model.JobStatusCompletedWithWarnings
	default:
		job.Status = model.JobStatusCompleted
	}
	return c.finish(ctx, job)
}

// discover fans out across the job's sources concurrently and records a
// SourceOutcome for each. Source failures are non-fatal.
func (c *Controller) discover(ctx context.Context, job *model.Job) []model.Candidate {
	sources, resolveErrs := c.registry.Resolve(job.Query.Sources)
	for _, re := range resolveErrs {
		job.Sources = append(job.Sources, model.SourceOutcome{
			Source: re.Source,
			Error:  re.Err.Error(),
		})
		job.Warnings = append(job.Warnings, re.Error())
	}

	type discovery struct {
		outcome    model.SourceOutcome
		candidates []model.Candidate
	}

	results := make([]discovery, len(sources))
	var wg sync.WaitGroup
	for i, s := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			found, err := s.Discover(ctx, job.Query.Niche, job.Query.Location, job.Query.MaxResults)
			outcome := model.SourceOutcome{
				Source:         s.Name(),
				Success:        err == nil,
				CandidateCount: len(found),
				Duration:       time.Since(start),
			}
			if err != nil {
				outcome.Error = err.Error()
				zap.L().Warn("job: source failed",
					zap.String("job_id", job.ID),
					zap.String("source", s.Name()),
					zap.Error(err),
				)
			}
			results[i] = discovery{outcome: outcome, candidates: found}
		}()
	}
	wg.Wait()

	var candidates []model.Candidate
	for _, r := range results {
		job.Sources = append(job.Sources, r.outcome)
		if r.outcome.Error != "" {
			job.Warnings = append(job.Warnings,
				fmt.Sprintf("source %s: %s", r.outcome.Source, r.outcome.Error))
			continue
		}
		candidates = append(candidates, r.candidates...)
	}
	return candidates
}

// prepare normalizes raw candidates and collapses duplicates.
func (c *Controller) prepare(job *model.Job, candidates []model.Candidate) []dedupe.Merged {
	for i := range candidates {
		normalize.Candidate(&candidates[i])
	}

	merged := c.deduper.Dedupe(candidates)
	if job.Query.MaxResults > 0 && len(merged) > job.Query.MaxResults {
		merged = merged[:job.Query.MaxResults]
	}

	zap.L().Info("job: candidates prepared",
		zap.String("job_id", job.ID),
		zap.Int("raw", len(candidates)),
		zap.Int("unique", len(merged)),
	)
	return merged
}

// candidateOutcome is one worker's report to the counter writer.
type candidateOutcome struct {
	key string
	err error
}

// enrichAll fans enrichment out across a bounded worker pool. Job counters
// are mutated only by the collector loop below — workers report outcomes
// over a channel and never touch the job.
func (c *Controller) enrichAll(ctx context.Context, job *model.Job, merged []dedupe.Merged) {
	if len(merged) == 0 {
		return
	}

	outcomes := make(chan candidateOutcome)
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		for oc := range outcomes {
			job.Counters.Processed++
			if oc.err != nil {
				job.Counters.Failed++
				job.Warnings = append(job.Warnings, fmt.Sprintf("candidate %s: %v", oc.key, oc.err))
			} else {
				job.Counters.Succeeded++
			}
			if err := c.store.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
				zap.L().Warn("job: progress update failed",
					zap.String("job_id", job.ID),
					zap.Error(err),
				)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, m := range merged {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			_, err := c.enricher.Enrich(gctx, job.ID, job.Query, m)
			select {
			case outcomes <- candidateOutcome{key: m.Key, err: err}:
			case <-collectorDone:
			}
			// Candidate failures never abort the group.
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	<-collectorDone
}

// finish stamps the terminal state and persists it.
func (c *Controller) finish(ctx context.Context, job *model.Job) error {
	now := time.Now().UTC()
	job.CompletedAt = &now

	// Persist even when the run context was cancelled.
	if err := c.store.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		return err
	}

	zap.L().Info("job: finished",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("candidates", job.Counters.CandidatesFound),
		zap.Int("succeeded", job.Counters.Succeeded),
		zap.Int("failed", job.Counters.Failed),
		zap.Int("warnings", len(job.Warnings)),
	)
	return nil
}
