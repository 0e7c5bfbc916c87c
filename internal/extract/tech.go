package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// scriptSignatures map a script-src substring to a technology tag.
var scriptSignatures = map[string]string{
	"googletagmanager.com": "Google Tag Manager",
	"google-analytics.com": "Google Analytics",
	"gtag/js":              "Google Analytics",
	"connect.facebook.net": "Facebook Pixel",
	"js.stripe.com":        "Stripe",
	"paypal.com/sdk":       "PayPal",
	"static.hotjar.com":    "Hotjar",
	"cdn.shopify.com":      "Shopify",
	"js.hs-scripts.com":    "HubSpot",
	"intercom.io":          "Intercom",
	"widget.intercom.io":   "Intercom",
	"js.squarespace.com":   "Squarespace",
	"static.parastorage.com": "Wix",
	"calendly.com":         "Calendly",
	"maps.googleapis.com":  "Google Maps",
	"recaptcha":            "reCAPTCHA",
}

// generatorSignatures map a <meta name=generator> substring to a tag.
var generatorSignatures = map[string]string{
	"wordpress":   "WordPress",
	"wix":         "Wix",
	"squarespace": "Squarespace",
	"joomla":      "Joomla",
	"drupal":      "Drupal",
	"shopify":     "Shopify",
	"webflow":     "Webflow",
	"hugo":        "Hugo",
	"ghost":       "Ghost",
}

// bodySignatures are raw-content markers checked when DOM parsing finds
// nothing better. Cheap substring checks, same spirit as block detection.
var bodySignatures = map[string]string{
	"wp-content/":       "WordPress",
	"wp-includes/":      "WordPress",
	"cdn.shopify.com":   "Shopify",
	"data-reactroot":    "React",
	"__NEXT_DATA__":     "Next.js",
	"ng-version":        "Angular",
	"data-v-app":        "Vue",
	"woocommerce":       "WooCommerce",
}

// TechStack fingerprints the technologies visible in page HTML: CMS meta
// generators, analytics/payment script tags, and framework DOM markers.
// Returns tags in stable sorted order.
func TechStack(html string) []string {
	found := make(map[string]bool)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		doc.Find("meta[name='generator']").Each(func(_ int, s *goquery.Selection) {
			content := strings.ToLower(s.AttrOr("content", ""))
			for marker, tag := range generatorSignatures {
				if strings.Contains(content, marker) {
					found[tag] = true
				}
			}
		})
		doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
			src := strings.ToLower(s.AttrOr("src", ""))
			for marker, tag := range scriptSignatures {
				if strings.Contains(src, marker) {
					found[tag] = true
				}
			}
		})
	}

	lower := strings.ToLower(html)
	for marker, tag := range bodySignatures {
		if strings.Contains(lower, strings.ToLower(marker)) {
			found[tag] = true
		}
	}

	if len(found) == 0 {
		return nil
	}
	tags := make([]string, 0, len(found))
	for tag := range found {
		tags = append(tags, tag)
	}
	return SortedTech(tags)
}
