package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospector/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	counters     TEXT NOT NULL DEFAULT '{}',
	warnings     TEXT,
	sources      TEXT,
	error        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY,
	job_id        TEXT NOT NULL REFERENCES jobs(id),
	dedup_key     TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	website       TEXT,
	domain        TEXT,
	address       TEXT,
	emails        TEXT,
	phones        TEXT,
	social_links  TEXT,
	tech_stack    TEXT,
	content       TEXT,
	quality_score INTEGER NOT NULL DEFAULT 0,
	quality_label TEXT NOT NULL DEFAULT 'low',
	source        TEXT NOT NULL,
	crawl_status  TEXT NOT NULL,
	signals       TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_leads_job_id ON leads(job_id);
CREATE INDEX IF NOT EXISTS idx_leads_dedup_key ON leads(dedup_key);
CREATE INDEX IF NOT EXISTS idx_leads_quality_score ON leads(quality_score);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, query model.JobQuery) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal job query")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, query, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(queryJSON), string(model.JobStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	return &model.Job{
		ID:        id,
		Query:     query,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.Job) error {
	countersJSON, err := json.Marshal(job.Counters)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal counters")
	}
	warningsJSON, err := json.Marshal(job.Warnings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal warnings")
	}
	sourcesJSON, err := json.Marshal(job.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}

	now := time.Now().UTC()
	job.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, counters = ?, warnings = ?, sources = ?, error = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		string(job.Status), string(countersJSON), string(warningsJSON), string(sourcesJSON),
		nullString(job.Error), now, job.CompletedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, status, counters, warnings, sources, error, created_at, updated_at, completed_at
		 FROM jobs WHERE id = ?`,
		jobID,
	)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, query, status, counters, warnings, sources, error, created_at, updated_at, completed_at
		FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close() //nolint:errcheck

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

// UpsertLead inserts the lead or, when its dedup key already exists, merges
// enrichment into the stored record. The stored lead's identity (id,
// dedup_key, created_at) is preserved across upserts.
func (s *SQLiteStore) UpsertLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	now := time.Now().UTC()

	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	lead.CreatedAt = now
	lead.UpdatedAt = now

	emailsJSON, phonesJSON, socialJSON, techJSON, signalsJSON, err := marshalLeadFields(lead)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, job_id, dedup_key, name, website, domain, address, emails, phones,
			social_links, tech_stack, content, quality_score, quality_label, source, crawl_status,
			signals, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dedup_key) DO UPDATE SET
			job_id = excluded.job_id,
			name = excluded.name,
			website = excluded.website,
			domain = excluded.domain,
			address = excluded.address,
			emails = excluded.emails,
			phones = excluded.phones,
			social_links = excluded.social_links,
			tech_stack = excluded.tech_stack,
			content = excluded.content,
			quality_score = excluded.quality_score,
			quality_label = excluded.quality_label,
			source = excluded.source,
			crawl_status = excluded.crawl_status,
			signals = excluded.signals,
			updated_at = excluded.updated_at`,
		lead.ID, lead.JobID, lead.DedupKey, lead.Name, lead.Website, lead.Domain, lead.Address,
		emailsJSON, phonesJSON, socialJSON, techJSON, nullString(lead.Content),
		lead.QualityScore, string(lead.QualityLabel), lead.Source, string(lead.CrawlStatus),
		signalsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert lead %s", lead.DedupKey)
	}

	return s.GetLeadByDedupKey(ctx, lead.DedupKey)
}

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, selectLead+` WHERE id = ?`, leadID)
	return scanLead(row)
}

func (s *SQLiteStore) GetLeadByDedupKey(ctx context.Context, dedupKey string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, selectLead+` WHERE dedup_key = ?`, dedupKey)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := selectLead + ` WHERE 1=1`
	var args []any

	if filter.JobID != "" {
		query += ` AND job_id = ?`
		args = append(args, filter.JobID)
	}
	if filter.Label != "" {
		query += ` AND quality_label = ?`
		args = append(args, string(filter.Label))
	}
	if filter.MinScore > 0 {
		query += ` AND quality_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY quality_score DESC, name ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

func (s *SQLiteStore) UpdateLeadScore(ctx context.Context, leadID string, score int, label model.QualityLabel) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET quality_score = ?, quality_label = ?, updated_at = ? WHERE id = ?`,
		score, string(label), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead score %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

const selectLead = `SELECT id, job_id, dedup_key, name, website, domain, address, emails, phones,
	social_links, tech_stack, content, quality_score, quality_label, source, crawl_status, signals,
	created_at, updated_at FROM leads`

// helpers

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var (
		j            model.Job
		queryJSON    string
		countersJSON string
		warningsJSON sql.NullString
		sourcesJSON  sql.NullString
		errMsg       sql.NullString
		completedAt  sql.NullTime
	)

	err := row.Scan(&j.ID, &queryJSON, &j.Status, &countersJSON, &warningsJSON, &sourcesJSON,
		&errMsg, &j.CreatedAt, &j.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "job")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	if err := json.Unmarshal([]byte(queryJSON), &j.Query); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal job query")
	}
	if err := json.Unmarshal([]byte(countersJSON), &j.Counters); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal counters")
	}
	if warningsJSON.Valid && warningsJSON.String != "null" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &j.Warnings); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal warnings")
		}
	}
	if sourcesJSON.Valid && sourcesJSON.String != "null" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &j.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sources")
		}
	}
	if errMsg.Valid {
		j.Error = errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

func marshalLeadFields(lead *model.Lead) (emails, phones, social, tech, signals string, err error) {
	b, err := json.Marshal(lead.Emails)
	if err != nil {
		return "", "", "", "", "", eris.Wrap(err, "marshal emails")
	}
	emails = string(b)

	b, err = json.Marshal(lead.Phones)
	if err != nil {
		return "", "", "", "", "", eris.Wrap(err, "marshal phones")
	}
	phones = string(b)

	b, err = json.Marshal(lead.SocialLinks)
	if err != nil {
		return "", "", "", "", "", eris.Wrap(err, "marshal social links")
	}
	social = string(b)

	b, err = json.Marshal(lead.TechStack)
	if err != nil {
		return "", "", "", "", "", eris.Wrap(err, "marshal tech stack")
	}
	tech = string(b)

	b, err = json.Marshal(lead.Signals)
	if err != nil {
		return "", "", "", "", "", eris.Wrap(err, "marshal signals")
	}
	signals = string(b)
	return emails, phones, social, tech, signals, nil
}

func scanLead(row scannable) (*model.Lead, error) {
	var (
		l          model.Lead
		emailsJSON sql.NullString
		phonesJSON sql.NullString
		socialJSON sql.NullString
		techJSON   sql.NullString
		signals    string
		website    sql.NullString
		domain     sql.NullString
		address    sql.NullString
		content    sql.NullString
	)

	err := row.Scan(&l.ID, &l.JobID, &l.DedupKey, &l.Name, &website, &domain, &address,
		&emailsJSON, &phonesJSON, &socialJSON, &techJSON, &content,
		&l.QualityScore, &l.QualityLabel, &l.Source, &l.CrawlStatus, &signals,
		&l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "lead")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}

	l.Website = website.String
	l.Domain = domain.String
	l.Address = address.String
	l.Content = content.String

	for _, f := range []struct {
		raw  sql.NullString
		dest any
		name string
	}{
		{emailsJSON, &l.Emails, "emails"},
		{phonesJSON, &l.Phones, "phones"},
		{socialJSON, &l.SocialLinks, "social links"},
		{techJSON, &l.TechStack, "tech stack"},
	} {
		if f.raw.Valid && f.raw.String != "null" {
			if err := json.Unmarshal([]byte(f.raw.String), f.dest); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal %s", f.name)
			}
		}
	}
	if err := json.Unmarshal([]byte(signals), &l.Signals); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal signals")
	}
	return &l, nil
}
