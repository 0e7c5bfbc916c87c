// Package normalize canonicalizes raw candidate fields so deduplication
// compares like with like. All functions are pure.
package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/prospector/internal/model"
)

var entitySuffixes = regexp.MustCompile(
	`(?i)\s*,?\s*(LLC|L\.?L\.?C\.?|INC\.?|INCORPORATED|CORP\.?|CORPORATION|` +
		`CO\.?|COMPANY|LTD\.?|LIMITED|L\.?P\.?|LLP|L\.?L\.?P\.?|` +
		`PLLC|P\.?L\.?L\.?C\.?|P\.?C\.?|DBA|D/B/A)\s*\.?\s*$`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

var nonDigits = regexp.MustCompile(`\D`)

// trackingParams are query parameters stripped from websites before
// domain comparison; they vary per visit and would defeat dedup.
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"msclkid":  true,
	"mc_cid":   true,
	"mc_eid":   true,
	"ref":      true,
	"referrer": true,
}

var titleCaser = cases.Title(language.English)

// Name trims, collapses whitespace, and title-cases a business name for
// display. "JOE'S   PIZZA llc" becomes "Joe's Pizza Llc".
func Name(s string) string {
	s = multiSpace.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}

// MatchName produces the canonical form used for fuzzy comparison: upper
// case, entity suffixes stripped, whitespace collapsed.
func MatchName(s string) string {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = entitySuffixes.ReplaceAllString(n, "")
	n = multiSpace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// Phone strips formatting and infers the country code when absent.
// Bare 10-digit numbers are assumed NANP and prefixed with 1. Returns
// digits with a leading "+", or "" when the input has too few digits.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	hasPlus := strings.HasPrefix(s, "+")
	digits := nonDigits.ReplaceAllString(s, "")
	if len(digits) < 7 {
		return ""
	}
	if !hasPlus {
		switch {
		case len(digits) == 10:
			digits = "1" + digits
		case len(digits) == 11 && strings.HasPrefix(digits, "1"):
			// Already carries the NANP country code.
		}
	}
	return "+" + digits
}

// URL canonicalizes a website URL: ensures a scheme, lower-cases the host,
// strips tracking parameters and the fragment.
func URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[param] || strings.HasPrefix(strings.ToLower(param), "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}

// Domain extracts the registrable host from a URL, minus any "www." prefix.
func Domain(raw string) string {
	normalized := URL(raw)
	if normalized == "" {
		return ""
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Address collapses whitespace and trims. Postal parsing is out of scope;
// the fuzzy dedup key only needs a stable byte form.
func Address(s string) string {
	return multiSpace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Candidate fills the normalized fields on a candidate in place.
func Candidate(c *model.Candidate) {
	c.Name = Name(c.Name)
	c.Address = Address(c.Address)
	c.Website = URL(c.Website)
	c.Domain = Domain(c.Website)
	c.NormalizedPhone = Phone(c.Phone)
	c.NormalizedName = MatchName(c.Name)
}
