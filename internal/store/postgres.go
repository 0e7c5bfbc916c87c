package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock implements it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, for testing.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	query        JSONB NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	counters     JSONB NOT NULL DEFAULT '{}',
	warnings     JSONB,
	sources      JSONB,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id        TEXT NOT NULL REFERENCES jobs(id),
	dedup_key     TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	website       TEXT,
	domain        TEXT,
	address       TEXT,
	emails        JSONB,
	phones        JSONB,
	social_links  JSONB,
	tech_stack    JSONB,
	content       TEXT,
	quality_score INTEGER NOT NULL DEFAULT 0,
	quality_label TEXT NOT NULL DEFAULT 'low',
	source        TEXT NOT NULL,
	crawl_status  TEXT NOT NULL,
	signals       JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_leads_job_id ON leads(job_id);
CREATE INDEX IF NOT EXISTS idx_leads_quality_score ON leads(quality_score DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, query model.JobQuery) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal job query")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, query, status, counters, created_at, updated_at) VALUES ($1, $2, $3, '{}', $4, $5)`,
		id, queryJSON, string(model.JobStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.Job{
		ID:        id,
		Query:     query,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.Job) error {
	countersJSON, err := json.Marshal(job.Counters)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal counters")
	}
	warningsJSON, err := json.Marshal(job.Warnings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal warnings")
	}
	sourcesJSON, err := json.Marshal(job.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}

	now := time.Now().UTC()
	job.UpdatedAt = now

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, counters = $2, warnings = $3, sources = $4, error = $5, updated_at = $6, completed_at = $7 WHERE id = $8`,
		string(job.Status), countersJSON, warningsJSON, sourcesJSON,
		nullString(job.Error), now, job.CompletedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", job.ID)
	}
	return nil
}

const pgSelectJob = `SELECT id, query, status, counters, warnings, sources, error, created_at, updated_at, completed_at FROM jobs`

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, pgSelectJob+` WHERE id = $1`, jobID)
	return scanPgJob(row)
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := pgSelectJob + ` WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanPgJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

func (s *PostgresStore) UpsertLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	now := time.Now().UTC()
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}

	emailsJSON, phonesJSON, socialJSON, techJSON, signalsJSON, err := marshalLeadFields(lead)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, job_id, dedup_key, name, website, domain, address, emails, phones,
			social_links, tech_stack, content, quality_score, quality_label, source, crawl_status,
			signals, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (dedup_key) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			name = EXCLUDED.name,
			website = EXCLUDED.website,
			domain = EXCLUDED.domain,
			address = EXCLUDED.address,
			emails = EXCLUDED.emails,
			phones = EXCLUDED.phones,
			social_links = EXCLUDED.social_links,
			tech_stack = EXCLUDED.tech_stack,
			content = EXCLUDED.content,
			quality_score = EXCLUDED.quality_score,
			quality_label = EXCLUDED.quality_label,
			source = EXCLUDED.source,
			crawl_status = EXCLUDED.crawl_status,
			signals = EXCLUDED.signals,
			updated_at = EXCLUDED.updated_at`,
		lead.ID, lead.JobID, lead.DedupKey, lead.Name, lead.Website, lead.Domain, lead.Address,
		[]byte(emailsJSON), []byte(phonesJSON), []byte(socialJSON), []byte(techJSON),
		nullString(lead.Content),
		lead.QualityScore, string(lead.QualityLabel), lead.Source, string(lead.CrawlStatus),
		[]byte(signalsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert lead %s", lead.DedupKey)
	}

	return s.GetLeadByDedupKey(ctx, lead.DedupKey)
}

const pgSelectLead = `SELECT id, job_id, dedup_key, name, website, domain, address, emails, phones,
	social_links, tech_stack, content, quality_score, quality_label, source, crawl_status, signals,
	created_at, updated_at FROM leads`

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, pgSelectLead+` WHERE id = $1`, leadID)
	return scanPgLead(row)
}

func (s *PostgresStore) GetLeadByDedupKey(ctx context.Context, dedupKey string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, pgSelectLead+` WHERE dedup_key = $1`, dedupKey)
	return scanPgLead(row)
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := pgSelectLead + ` WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.JobID != "" {
		query += ` AND job_id = ` + arg(filter.JobID)
	}
	if filter.Label != "" {
		query += ` AND quality_label = ` + arg(string(filter.Label))
	}
	if filter.MinScore > 0 {
		query += ` AND quality_score >= ` + arg(filter.MinScore)
	}
	query += ` ORDER BY quality_score DESC, name ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanPgLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

func (s *PostgresStore) UpdateLeadScore(ctx context.Context, leadID string, score int, label model.QualityLabel) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET quality_score = $1, quality_label = $2, updated_at = $3 WHERE id = $4`,
		score, string(label), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead score %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	return nil
}

// helpers

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func scanPgJob(row pgx.Row) (*model.Job, error) {
	var (
		j            model.Job
		queryJSON    []byte
		countersJSON []byte
		warningsJSON []byte
		sourcesJSON  []byte
		errMsg       *string
		completedAt  *time.Time
	)

	err := row.Scan(&j.ID, &queryJSON, &j.Status, &countersJSON, &warningsJSON, &sourcesJSON,
		&errMsg, &j.CreatedAt, &j.UpdatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "job")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}

	if err := json.Unmarshal(queryJSON, &j.Query); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal job query")
	}
	if err := json.Unmarshal(countersJSON, &j.Counters); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal counters")
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &j.Warnings); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal warnings")
		}
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &j.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sources")
		}
	}
	if errMsg != nil {
		j.Error = *errMsg
	}
	j.CompletedAt = completedAt
	return &j, nil
}

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var (
		l          model.Lead
		website    *string
		domain     *string
		address    *string
		content    *string
		emailsJSON []byte
		phonesJSON []byte
		socialJSON []byte
		techJSON   []byte
		signals    []byte
	)

	err := row.Scan(&l.ID, &l.JobID, &l.DedupKey, &l.Name, &website, &domain, &address,
		&emailsJSON, &phonesJSON, &socialJSON, &techJSON, &content,
		&l.QualityScore, &l.QualityLabel, &l.Source, &l.CrawlStatus, &signals,
		&l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "lead")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	if website != nil {
		l.Website = *website
	}
	if domain != nil {
		l.Domain = *domain
	}
	if address != nil {
		l.Address = *address
	}
	if content != nil {
		l.Content = *content
	}

	for _, f := range []struct {
		raw  []byte
		dest any
		name string
	}{
		{emailsJSON, &l.Emails, "emails"},
		{phonesJSON, &l.Phones, "phones"},
		{socialJSON, &l.SocialLinks, "social links"},
		{techJSON, &l.TechStack, "tech stack"},
	} {
		if len(f.raw) > 0 && string(f.raw) != "null" {
			if err := json.Unmarshal(f.raw, f.dest); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal %s", f.name)
			}
		}
	}
	if err := json.Unmarshal(signals, &l.Signals); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal signals")
	}
	return &l, nil
}
