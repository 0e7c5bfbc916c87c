package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// robotsCache fetches and caches robots.txt groups per host. The file is
// fetched at most once per host per crawl session; a missing or unreadable
// robots.txt permits everything.
type robotsCache struct {
	client    *http.Client
	userAgent string

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func newRobotsCache(client *http.Client, userAgent string) *robotsCache {
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether the crawler may fetch the given URL under the
// host's robots.txt rules.
func (r *robotsCache) Allowed(ctx context.Context, u *url.URL) bool {
	group := r.group(ctx, u)
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (r *robotsCache) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	r.mu.Lock()
	group, ok := r.groups[u.Host]
	r.mu.Unlock()
	if ok {
		return group
	}

	group = r.fetch(ctx, u)

	r.mu.Lock()
	r.groups[u.Host] = group
	r.mu.Unlock()
	return group
}

func (r *robotsCache) fetch(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		// Unreachable robots.txt does not block the crawl.
		zap.L().Debug("crawler: robots.txt fetch failed",
			zap.String("host", u.Host),
			zap.Error(err),
		)
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 128*1024))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data.FindGroup(r.userAgent)
}
