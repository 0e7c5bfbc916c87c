package crawler

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// defaultPreferredPaths are crawled first; contact details cluster on these
// pages.
var defaultPreferredPaths = []string{
	"/contact",
	"/contact-us",
	"/about",
	"/about-us",
	"/team",
	"/impressum",
}

var skipExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".svg": true, ".webp": true, ".zip": true, ".mp4": true, ".mp3": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ics": true,
}

// collectLinks parses same-host links out of a page, filters excluded and
// non-HTML targets, and returns them ranked: preferred contact-ish paths
// first, then the rest in document order. Duplicates are removed.
func collectLinks(base *url.URL, html string, matcher *PathMatcher, preferred []string) []string {
	if len(preferred) == 0 {
		preferred = defaultPreferredPaths
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	type ranked struct {
		url   string
		rank  int
		order int
	}

	seen := make(map[string]bool)
	var links []ranked

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}

		u, err := base.Parse(href)
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		if !strings.EqualFold(u.Host, base.Host) {
			return
		}
		u.Fragment = ""
		u.RawQuery = ""

		lowPath := strings.ToLower(strings.TrimSuffix(u.Path, "/"))
		if lowPath == "" {
			return // homepage is fetched separately
		}
		if dot := strings.LastIndex(lowPath, "."); dot >= 0 && skipExtensions[lowPath[dot:]] {
			return
		}

		full := u.String()
		if seen[full] {
			return
		}
		if matcher != nil && matcher.IsExcluded(full) {
			return
		}
		seen[full] = true

		rank := len(preferred)
		for p, pref := range preferred {
			if lowPath == pref || strings.HasSuffix(lowPath, pref) {
				rank = p
				break
			}
		}
		links = append(links, ranked{url: full, rank: rank, order: i})
	})

	sort.SliceStable(links, func(a, b int) bool {
		if links[a].rank != links[b].rank {
			return links[a].rank < links[b].rank
		}
		return links[a].order < links[b].order
	})

	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.url
	}
	return out
}
