package model

// PageStatus records the fetch outcome for a single page.
type PageStatus string

const (
	PageStatusOK             PageStatus = "ok"
	PageStatusTimeout        PageStatus = "timeout"
	PageStatusBlocked        PageStatus = "blocked"
	PageStatusRobotsExcluded PageStatus = "robots_excluded"
	PageStatusError          PageStatus = "error"
)

// FetchedPage is one page snapshot within a site crawl.
type FetchedPage struct {
	URL        string     `json:"url"`
	Title      string     `json:"title,omitempty"`
	HTML       string     `json:"html,omitempty"`
	Text       string     `json:"text,omitempty"`
	StatusCode int        `json:"status_code,omitempty"`
	Status     PageStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// CrawlResult holds the bounded set of pages fetched for one candidate's
// website. It lives only for the duration of that candidate's enrichment;
// after extraction only derived fields persist on the Lead.
type CrawlResult struct {
	Domain            string        `json:"domain"`
	HomepageReachable bool          `json:"homepage_reachable"`
	Pages             []FetchedPage `json:"pages"`
}

// OKPages returns only the pages that fetched successfully.
func (c *CrawlResult) OKPages() []FetchedPage {
	var ok []FetchedPage
	for _, p := range c.Pages {
		if p.Status == PageStatusOK {
			ok = append(ok, p)
		}
	}
	return ok
}
