// Package crawler fetches a candidate's website under politeness and
// robots.txt constraints. Each crawl is homepage-first: internal links are
// collected from the homepage and fetched in preferred-path order up to the
// per-site page cap. Page failures are isolated; a site is abandoned only
// after consecutive failures trip the failure breaker or the site budget
// expires.
package crawler

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/normalize"
	"github.com/sells-group/prospector/internal/politeness"
	"github.com/sells-group/prospector/internal/resilience"
)

const maxBodyBytes = 512 * 1024

// Crawler fetches pages for candidate websites.
type Crawler struct {
	client       *http.Client
	limiter      *politeness.Limiter
	robots       *robotsCache
	matcher      *PathMatcher
	preferred    []string
	userAgent    string
	maxPages     int
	pageTimeout  time.Duration
	siteBudget   time.Duration
	failureLimit int
	retry        resilience.RetryConfig
}

// New creates a Crawler from configuration. The politeness limiter is
// shared across all concurrent crawls of a job.
func New(cfg config.CrawlConfig, limiter *politeness.Limiter) *Crawler {
	client := &http.Client{
		// Redirects and per-request deadlines are handled per fetch; the
		// client timeout is a backstop.
		Timeout: cfg.PageTimeout() + 5*time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 4,
		},
	}

	maxPages := cfg.MaxPagesPerSite
	if maxPages <= 0 {
		maxPages = 5
	}

	return &Crawler{
		client:       client,
		limiter:      limiter,
		robots:       newRobotsCache(client, cfg.UserAgent),
		matcher:      NewPathMatcher(cfg.ExcludePaths),
		preferred:    cfg.PreferredPaths,
		userAgent:    cfg.UserAgent,
		maxPages:     maxPages,
		pageTimeout:  cfg.PageTimeout(),
		siteBudget:   cfg.SiteBudget(),
		failureLimit: cfg.SiteFailureLimit,
		retry:        retryConfig(),
	}
}

// Crawl fetches up to maxPages from the candidate's website; maxPages <= 0
// means the configured per-site cap. It returns an error only when the site
// URL is unusable; fetch failures are recorded on the result's pages instead.
func (c *Crawler) Crawl(ctx context.Context, site string, maxPages int) (*model.CrawlResult, error) {
	if maxPages <= 0 {
		maxPages = c.maxPages
	}
	normalized := normalize.URL(site)
	if normalized == "" {
		return nil, eris.Errorf("crawler: unusable site url %q", site)
	}
	base, err := url.Parse(normalized)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: parse site url %q", site)
	}

	if c.siteBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.siteBudget)
		defer cancel()
	}

	result := &model.CrawlResult{Domain: normalize.Domain(base.Host)}
	breaker := resilience.NewFailureBreaker(c.failureLimit)

	// Homepage first. Robots exclusion of the homepage means the site is
	// off-limits entirely.
	if !c.robots.Allowed(ctx, base) {
		result.Pages = append(result.Pages, model.FetchedPage{
			URL:    base.String(),
			Status: model.PageStatusRobotsExcluded,
		})
		return result, nil
	}

	home := c.fetchPage(ctx, base.String())
	result.Pages = append(result.Pages, home)
	result.HomepageReachable = home.Status == model.PageStatusOK
	breaker.Record(pageErr(home))

	if !result.HomepageReachable {
		zap.L().Debug("crawler: homepage unreachable",
			zap.String("domain", result.Domain),
			zap.String("status", string(home.Status)),
		)
		return result, nil
	}

	links := collectLinks(base, home.HTML, c.matcher, c.preferred)
	for _, link := range links {
		if len(result.Pages) >= maxPages {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if !breaker.Allow() {
			zap.L().Warn("crawler: abandoning site after repeated failures",
				zap.String("domain", result.Domain),
			)
			break
		}

		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if !c.robots.Allowed(ctx, u) {
			result.Pages = append(result.Pages, model.FetchedPage{
				URL:    link,
				Status: model.PageStatusRobotsExcluded,
			})
			continue
		}

		page := c.fetchPage(ctx, link)
		result.Pages = append(result.Pages, page)
		breaker.Record(pageErr(page))
	}

	return result, nil
}

// fetchPage fetches one URL under the politeness limiter and per-page
// timeout, classifying failures into page statuses.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) model.FetchedPage {
	page := model.FetchedPage{URL: pageURL}

	domain := normalize.Domain(hostOf(pageURL))
	release, err := c.limiter.Acquire(ctx, domain)
	if err != nil {
		page.Status = classifyErr(err)
		page.Error = err.Error()
		return page
	}
	defer release()

	// The page timeout applies per attempt, not across the retry loop, so a
	// timed-out fetch still gets its one retry.
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*fetchResult, error) {
		if c.pageTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.pageTimeout)
			defer cancel()
		}
		return c.doFetch(ctx, pageURL)
	})
	if err != nil {
		page.Status = classifyErr(err)
		page.Error = err.Error()
		return page
	}

	page.StatusCode = resp.statusCode
	page.HTML = resp.body
	page.Title = extractTitle(resp.body)
	page.Text = stripHTML(resp.body)
	page.Status = model.PageStatusOK
	return page
}

func retryConfig() resilience.RetryConfig {
	cfg := resilience.FetchRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("crawler", "fetch")
	return cfg
}

type fetchResult struct {
	statusCode int
	body       string
}

func (c *Crawler) doFetch(ctx context.Context, pageURL string) (*fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "crawler: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "crawler: fetch"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "crawler: read body"), 0)
	}

	if resp.StatusCode >= 400 {
		err := eris.Errorf("crawler: status %d fetching %s", resp.StatusCode, pageURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, &blockedError{status: resp.StatusCode, err: err}
	}

	return &fetchResult{statusCode: resp.StatusCode, body: string(body)}, nil
}

// blockedError marks a non-transient 4xx refusal, typically a bot wall.
type blockedError struct {
	status int
	err    error
}

func (e *blockedError) Error() string { return e.err.Error() }
func (e *blockedError) Unwrap() error { return e.err }

func classifyErr(err error) model.PageStatus {
	var blocked *blockedError
	switch {
	case errors.As(err, &blocked):
		return model.PageStatusBlocked
	case errors.Is(err, context.DeadlineExceeded):
		return model.PageStatusTimeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return model.PageStatusTimeout
		}
		return model.PageStatusError
	}
}

func pageErr(p model.FetchedPage) error {
	if p.Status == model.PageStatusOK || p.Status == model.PageStatusRobotsExcluded {
		return nil
	}
	return errors.New(p.Error)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Host != "" {
		return u.Host
	}
	return strings.SplitN(rawURL, "/", 2)[0]
}
