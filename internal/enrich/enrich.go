// Package enrich runs the per-candidate pipeline: crawl the website,
// extract contacts and signals, optionally augment with the LLM, score, and
// persist the lead. Every stage degrades instead of failing: a dead website
// still yields a (low-scoring) lead from directory data, and an unavailable
// LLM leaves the regex extraction untouched.
package enrich

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/dedupe"
	"github.com/sells-group/prospector/internal/extract"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/normalize"
	"github.com/sells-group/prospector/internal/scorer"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/pkg/claude"
)

// Crawler fetches a candidate's website. maxPages <= 0 means the crawler's
// configured default.
type Crawler interface {
	Crawl(ctx context.Context, site string, maxPages int) (*model.CrawlResult, error)
}

// Enricher orchestrates the per-candidate pipeline.
type Enricher struct {
	crawler Crawler
	llm     claude.Extractor // nil disables LLM augmentation
	scorer  *scorer.Scorer
	store   store.Store
	budget  time.Duration
	now     func() time.Time
}

// New creates an Enricher. Pass a nil Extractor to run regex-only.
func New(crawler Crawler, llm claude.Extractor, sc *scorer.Scorer, st store.Store, budget time.Duration) *Enricher {
	return &Enricher{
		crawler: crawler,
		llm:     llm,
		scorer:  sc,
		store:   st,
		budget:  budget,
		now:     time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (e *Enricher) WithNow(now func() time.Time) *Enricher {
	e.now = now
	return e
}

// Enrich processes one merged candidate into a persisted lead under the
// job query's extraction options and per-site page cap.
func (e *Enricher) Enrich(ctx context.Context, jobID string, query model.JobQuery, merged dedupe.Merged) (*model.Lead, error) {
	if e.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.budget)
		defer cancel()
	}

	cand := merged.Candidate
	lead := &model.Lead{
		JobID:    jobID,
		DedupKey: merged.Key,
		Name:     cand.Name,
		Website:  normalize.URL(cand.Website),
		Domain:   cand.Domain,
		Address:  normalize.Address(cand.Address),
		Source:   strings.Join(merged.Sources, ","),
	}
	if cand.NormalizedPhone != "" {
		lead.Phones = []string{cand.NormalizedPhone}
	}

	signals := model.Signals{
		HasWebsite: lead.Website != "",
		HasAddress: lead.Address != "",
		LastSeen:   e.now().UTC(),
	}

	opts := query.ExtractOptions()

	switch {
	case lead.Website == "":
		lead.CrawlStatus = model.CrawlStatusSkipped
	default:
		crawl, err := e.crawler.Crawl(ctx, lead.Website, query.MaxPagesPerSite)
		if err != nil || crawl == nil || !crawl.HomepageReachable {
			lead.CrawlStatus = model.CrawlStatusFailed
			if err != nil {
				zap.L().Warn("enrich: crawl failed",
					zap.String("domain", lead.Domain),
					zap.Error(err),
				)
			}
		} else {
			lead.CrawlStatus = model.CrawlStatusOK
			signals.WebsiteReachable = true
			if lead.Domain == "" {
				lead.Domain = crawl.Domain
			}
			e.extractFrom(ctx, crawl, opts, lead, &signals)
		}
	}

	signals.HasEmail = lead.HasEmail()
	signals.HasPhone = lead.HasPhone()
	signals.HasSocial = lead.HasSocial()

	lead.Signals = signals
	lead.QualityScore, lead.QualityLabel = e.scorer.Score(signals)

	return e.store.UpsertLead(ctx, lead)
}

// maxContentBytes bounds the persisted full-content snapshot.
const maxContentBytes = 256 * 1024

// extractFrom applies regex extraction across the crawled pages and, when
// available, merges in LLM-extracted contacts.
func (e *Enricher) extractFrom(ctx context.Context, crawl *model.CrawlResult, opts model.ExtractOptions, lead *model.Lead, signals *model.Signals) {
	result := extract.Pages(crawl, opts, extract.Options{})

	if e.llm != nil {
		if aug := e.augment(ctx, crawl, opts); aug != nil {
			result.Merge(*aug)
		}
	}

	lead.Emails = mergeUnique(result.Emails, nil)
	lead.Phones = mergeUnique(result.Phones, lead.Phones)
	if len(result.SocialLinks) > 0 {
		lead.SocialLinks = result.SocialLinks
	}
	lead.TechStack = result.TechStack
	if opts.FullContent {
		lead.Content = pagesText(crawl, maxContentBytes)
	}
	signals.InvalidEmailOnly = result.InvalidEmailSeen && len(result.Emails) == 0
}

// pagesText concatenates the visible text of successfully fetched pages,
// capped at limit bytes on a rune boundary.
func pagesText(crawl *model.CrawlResult, limit int) string {
	var text strings.Builder
	for _, p := range crawl.OKPages() {
		if p.Text == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(p.Text)
		if text.Len() >= limit {
			break
		}
	}

	out := text.String()
	if len(out) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}

// augment runs the LLM extractor over the crawled page text. Any failure is
// logged and swallowed; regex results stand on their own. Fields disabled by
// the job's extract options are dropped from the model's output too.
func (e *Enricher) augment(ctx context.Context, crawl *model.CrawlResult, opts model.ExtractOptions) *extract.Result {
	var text strings.Builder
	for _, p := range crawl.OKPages() {
		text.WriteString(p.Text)
		text.WriteString("\n\n")
	}
	if text.Len() == 0 {
		return nil
	}

	ex, err := e.llm.ExtractContacts(ctx, text.String())
	if err != nil {
		zap.L().Warn("enrich: llm augmentation unavailable, using regex extraction only",
			zap.String("domain", crawl.Domain),
			zap.Error(err),
		)
		return nil
	}
	if ex.Empty() {
		return nil
	}

	out := &extract.Result{}
	if opts.Social {
		out.SocialLinks = ex.SocialLinks
	}
	if opts.Emails {
		for _, email := range ex.Emails {
			email = strings.ToLower(strings.TrimSpace(email))
			if email != "" && strings.Contains(email, "@") {
				out.Emails = append(out.Emails, email)
			}
		}
	}
	if opts.Phones {
		for _, phone := range ex.Phones {
			if p := normalize.Phone(phone); p != "" {
				out.Phones = append(out.Phones, p)
			}
		}
	}
	return out
}

// mergeUnique appends extras to base, preserving order and dropping
// duplicates.
func mergeUnique(base, extras []string) []string {
	seen := make(map[string]bool, len(base)+len(extras))
	var out []string
	for _, v := range append(base, extras...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
