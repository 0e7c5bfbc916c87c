package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_CreateJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job, err := s.CreateJob(context.Background(), testQuery())
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET`).
		WithArgs("running", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateJob(context.Background(), &model.Job{ID: "job-1", Status: model.JobStatusRunning})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateJobNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateJob(context.Background(), &model.Job{ID: "missing", Status: model.JobStatusRunning})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_GetJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "query", "status", "counters", "warnings", "sources", "error",
		"created_at", "updated_at", "completed_at",
	}).AddRow(
		"job-1", []byte(`{"niche":"dentists","max_results":50,"max_pages_per_site":0,"extract":{"emails":true,"phones":true,"social":true,"full_content":false}}`),
		model.JobStatus("running"), []byte(`{"candidates_found":5,"processed":2,"succeeded":2,"failed":0}`),
		[]byte(`["source yelp failed"]`), []byte(`null`), (*string)(nil),
		now, now, (*time.Time)(nil),
	)

	mock.ExpectQuery(`SELECT .+ FROM jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "dentists", job.Query.Niche)
	assert.Equal(t, 5, job.Counters.CandidatesFound)
	assert.Equal(t, []string{"source yelp failed"}, job.Warnings)
	assert.Nil(t, job.CompletedAt)
}

func TestPostgres_UpdateLeadScore(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET quality_score`).
		WithArgs(42, "low", pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateLeadScore(context.Background(), "lead-1", 42, model.QualityLow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertLeadReturnsStoredRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rows := pgxmock.NewRows([]string{
		"id", "job_id", "dedup_key", "name", "website", "domain", "address",
		"emails", "phones", "social_links", "tech_stack", "content",
		"quality_score", "quality_label", "source", "crawl_status", "signals",
		"created_at", "updated_at",
	}).AddRow(
		"lead-1", "job-1", "domain:smiledental.com", "Smile Dental",
		strPtr("https://smiledental.com"), strPtr("smiledental.com"), strPtr("123 Main St"),
		[]byte(`["office@smiledental.com"]`), []byte(`["+14125550134"]`),
		[]byte(`{"facebook":"https://facebook.com/smiledental"}`), []byte(`["WordPress"]`),
		(*string)(nil),
		85, model.QualityLabel("high"), "google_places", model.CrawlStatus("ok"),
		[]byte(`{"has_email":true}`), now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE dedup_key = \$1`).
		WithArgs("domain:smiledental.com").
		WillReturnRows(rows)

	lead, err := s.UpsertLead(context.Background(), testLead("domain:smiledental.com"))
	require.NoError(t, err)
	assert.Equal(t, "lead-1", lead.ID)
	assert.Equal(t, []string{"office@smiledental.com"}, lead.Emails)
	assert.True(t, lead.Signals.HasEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
