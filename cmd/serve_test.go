package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/dedupe"
	"github.com/sells-group/prospector/internal/job"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/internal/store"
)

type fixedSource struct {
	candidates []model.Candidate
}

func (s *fixedSource) Name() string { return "google_places" }

func (s *fixedSource) Discover(_ context.Context, _, _ string, _ int) ([]model.Candidate, error) {
	return s.candidates, nil
}

type passthroughEnricher struct {
	store store.Store
}

func (e *passthroughEnricher) Enrich(ctx context.Context, jobID string, _ model.JobQuery, merged dedupe.Merged) (*model.Lead, error) {
	return e.store.UpsertLead(ctx, &model.Lead{
		JobID:       jobID,
		DedupKey:    merged.Key,
		Name:        merged.Candidate.Name,
		Source:      merged.Sources[0],
		CrawlStatus: model.CrawlStatusSkipped,
	})
}

func newTestAPI(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	reg := source.NewRegistry()
	reg.Register(&fixedSource{candidates: []model.Candidate{
		{Name: "Smile Dental", Website: "https://smiledental.com", Source: "google_places", SourceID: "g1"},
	}})

	ctrl := job.NewController(reg, dedupe.New(0, nil), &passthroughEnricher{store: st}, st, 2, []string{"google_places"})
	return newAPIRouter(ctrl, st), st
}

func TestAPI_Health(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_SubmitAndFetchJob(t *testing.T) {
	api, st := newTestAPI(t)

	body := `{"niche": "dentists", "location": "Pittsburgh, PA", "max_results": 10}`
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	// The job runs in the background; wait for it to finish.
	require.Eventually(t, func() bool {
		j, err := st.GetJob(context.Background(), created.ID)
		return err == nil && j.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, model.JobStatusCompleted, fetched.Status)
	assert.Equal(t, 1, fetched.Counters.Succeeded)

	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+created.ID+"/leads", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var leads []model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leads))
	require.Len(t, leads, 1)
	assert.Equal(t, "Smile Dental", leads[0].Name)
}

func TestAPI_SubmitRejectsMissingNiche(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_JobNotFound(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope/leads", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CancelTerminalJobConflicts(t *testing.T) {
	api, st := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"niche":"dentists"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	require.Eventually(t, func() bool {
		j, err := st.GetJob(context.Background(), created.ID)
		return err == nil && j.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/"+created.ID, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
