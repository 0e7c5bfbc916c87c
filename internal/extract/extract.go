// Package extract pulls contact and company signals out of fetched page
// content. Everything here is a pure function over page text/HTML: no
// network, no state, deterministic given identical input.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/normalize"
)

var (
	emailRe  = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	mailtoRe = regexp.MustCompile(`(?i)mailto:([a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,})`)
	telRe    = regexp.MustCompile(`(?i)tel:(\+?[\d\-().\s]{7,})`)
	phoneRe  = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
)

// placeholderDomains are example/sink domains that never belong to a lead.
var placeholderDomains = map[string]bool{
	"example.com":    true,
	"example.org":    true,
	"example.net":    true,
	"email.com":      true,
	"domain.com":     true,
	"yourdomain.com": true,
	"sentry.io":      true,
	"sentry.wixpress.com": true,
}

// roleMailboxes are generic role accounts, rejected only when the caller
// opts in.
var roleMailboxes = map[string]bool{
	"noreply":    true,
	"no-reply":   true,
	"donotreply": true,
	"postmaster": true,
	"webmaster":  true,
	"abuse":      true,
	"mailer-daemon": true,
}

// imageExtensions guard against image filenames that look like emails
// ("logo@2x.png").
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

// socialPlatforms maps a known host to its platform tag.
var socialPlatforms = map[string]string{
	"facebook.com":  "facebook",
	"fb.com":        "facebook",
	"instagram.com": "instagram",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"linkedin.com":  "linkedin",
	"youtube.com":   "youtube",
	"tiktok.com":    "tiktok",
	"pinterest.com": "pinterest",
}

var hrefRe = regexp.MustCompile(`(?i)href=["']([^"']+)["']`)

const (
	maxEmails = 5
	maxPhones = 3
)

// Options tunes extraction behavior beyond the per-job ExtractOptions.
type Options struct {
	// RejectRoleBased drops generic role mailboxes (noreply@, webmaster@).
	RejectRoleBased bool
}

// Result holds the signals extracted from one candidate's crawled pages.
type Result struct {
	Emails      []string          `json:"emails,omitempty"`
	Phones      []string          `json:"phones,omitempty"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
	TechStack   []string          `json:"tech_stack,omitempty"`
	// InvalidEmailSeen is set when every email candidate was rejected by
	// validation; the scorer penalizes this distinctly from "none found".
	InvalidEmailSeen bool `json:"invalid_email_seen,omitempty"`
}

// Merge folds another result into this one, preserving first-seen order.
func (r *Result) Merge(other Result) {
	r.Emails = appendUnique(r.Emails, other.Emails, maxEmails)
	r.Phones = appendUnique(r.Phones, other.Phones, maxPhones)
	if len(other.SocialLinks) > 0 {
		if r.SocialLinks == nil {
			r.SocialLinks = make(map[string]string)
		}
		for platform, link := range other.SocialLinks {
			if _, ok := r.SocialLinks[platform]; !ok {
				r.SocialLinks[platform] = link
			}
		}
	}
	r.TechStack = appendUnique(r.TechStack, other.TechStack, 0)
	if len(r.Emails) > 0 {
		r.InvalidEmailSeen = false
	} else {
		r.InvalidEmailSeen = r.InvalidEmailSeen || other.InvalidEmailSeen
	}
}

// Empty reports whether nothing was extracted.
func (r *Result) Empty() bool {
	return len(r.Emails) == 0 && len(r.Phones) == 0 && len(r.SocialLinks) == 0 && len(r.TechStack) == 0
}

// Pages extracts signals from all successfully fetched pages of a crawl,
// honoring the job's extract options.
func Pages(crawl *model.CrawlResult, jobOpts model.ExtractOptions, opts Options) Result {
	var out Result
	if crawl == nil {
		return out
	}
	for _, page := range crawl.OKPages() {
		out.Merge(Page(page, jobOpts, opts))
	}
	return out
}

// Page extracts signals from a single fetched page.
func Page(page model.FetchedPage, jobOpts model.ExtractOptions, opts Options) Result {
	var out Result
	content := page.HTML
	if content == "" {
		content = page.Text
	}
	if content == "" {
		return out
	}

	if jobOpts.Emails {
		out.Emails, out.InvalidEmailSeen = emails(content, opts)
	}
	if jobOpts.Phones {
		out.Phones = phones(content)
	}
	if jobOpts.Social {
		out.SocialLinks = socialLinks(content)
	}
	out.TechStack = TechStack(content)
	return out
}

// emails returns validated addresses plus a flag indicating that candidates
// existed but all failed validation.
func emails(content string, opts Options) ([]string, bool) {
	seen := make(map[string]bool)
	var out []string
	sawAny := false

	consider := func(raw string) {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if addr == "" {
			return
		}
		sawAny = true
		if !validEmail(addr, opts) || seen[addr] {
			return
		}
		seen[addr] = true
		if len(out) < maxEmails {
			out = append(out, addr)
		}
	}

	for _, m := range mailtoRe.FindAllStringSubmatch(content, -1) {
		consider(m[1])
	}
	for _, m := range emailRe.FindAllString(content, -1) {
		consider(m)
	}

	return out, sawAny && len(out) == 0
}

func validEmail(addr string, opts Options) bool {
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return false
	}
	local, domain := addr[:at], addr[at+1:]

	for _, ext := range imageExtensions {
		if strings.HasSuffix(domain, ext) {
			return false
		}
	}
	if placeholderDomains[domain] {
		return false
	}
	if local == "test" || local == "example" || local == "email" {
		return false
	}
	// TLD must be alphabetic, 2+ chars.
	dot := strings.LastIndex(domain, ".")
	if dot < 0 || dot == len(domain)-1 {
		return false
	}
	tld := domain[dot+1:]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	if opts.RejectRoleBased && roleMailboxes[local] {
		return false
	}
	return true
}

// phones extracts and normalizes phone numbers. tel: links are preferred
// over inline text patterns since they are unambiguous.
func phones(content string) []string {
	seen := make(map[string]bool)
	var out []string

	consider := func(raw string) {
		p := normalize.Phone(raw)
		if p == "" || len(p) < 11 || seen[p] {
			return
		}
		seen[p] = true
		if len(out) < maxPhones {
			out = append(out, p)
		}
	}

	for _, m := range telRe.FindAllStringSubmatch(content, -1) {
		consider(m[1])
	}
	for _, m := range phoneRe.FindAllString(content, -1) {
		consider(m)
	}

	return out
}

// socialLinks matches hrefs (and bare URLs) against known social hosts.
// First link per platform wins; profile links beat bare platform roots.
func socialLinks(content string) map[string]string {
	var out map[string]string

	consider := func(link string) {
		host, ok := socialHost(link)
		if !ok {
			return
		}
		platform := socialPlatforms[host]
		if out == nil {
			out = make(map[string]string)
		}
		existing, seen := out[platform]
		if !seen || (isPlatformRoot(existing) && !isPlatformRoot(link)) {
			out[platform] = link
		}
	}

	for _, m := range hrefRe.FindAllStringSubmatch(content, -1) {
		consider(m[1])
	}
	return out
}

func socialHost(link string) (string, bool) {
	lower := strings.ToLower(link)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", false
	}
	rest := lower[strings.Index(lower, "://")+3:]
	slash := strings.IndexByte(rest, '/')
	host := rest
	if slash >= 0 {
		host = rest[:slash]
	}
	host = strings.TrimPrefix(host, "www.")
	if _, ok := socialPlatforms[host]; !ok {
		return "", false
	}
	// Share/intent widgets are not the business's own profile.
	if strings.Contains(lower, "/share") || strings.Contains(lower, "/intent") || strings.Contains(lower, "sharer") {
		return "", false
	}
	return host, true
}

func isPlatformRoot(link string) bool {
	trimmed := strings.TrimSuffix(link, "/")
	return strings.Count(trimmed, "/") <= 2
}

func appendUnique(dst, src []string, limit int) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if seen[s] {
			continue
		}
		if limit > 0 && len(dst) >= limit {
			break
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}

// SortedTech returns the tech stack in stable alphabetical order; used by
// callers that persist it.
func SortedTech(tech []string) []string {
	out := make([]string, len(tech))
	copy(out, tech)
	sort.Strings(out)
	return out
}
