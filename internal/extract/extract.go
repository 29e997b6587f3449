// Package extract turns fetched HTML into plain article text and rejects
// paywalled or near-empty pages.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Reason explains why a page produced no text
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonParse    Reason = "parse_error"
	ReasonPaywall  Reason = "paywall"
	ReasonTooShort Reason = "too_short"
)

// noise is removed before text extraction
const noise = "script, style, nav, footer, iframe, img"

// Options tune the heuristics
type Options struct {
	// MinChars rejects extracted text shorter than this
	MinChars int
	// PaywallMaxChars is the body length under which markers count as a paywall
	PaywallMaxChars int
	// PaywallMarkers are matched case-insensitively against the body text
	PaywallMarkers []string
}

// DefaultOptions returns the standard thresholds
func DefaultOptions() Options {
	return Options{
		MinChars:        200,
		PaywallMaxChars: 500,
		PaywallMarkers:  []string{"paywall", "subscribe now", "sign in to continue", "login to view"},
	}
}

// Page is the outcome of extracting one document
type Page struct {
	// Text is the usable article text, empty when Reason is set
	Text string
	// BodyChars is the length of the raw body text the paywall rule saw
	BodyChars int
	Reason    Reason
}

// Text extracts readable text from html. The paywall rule runs on the raw
// body text; the article is read from an article or main container, then all
// paragraphs, then the whole body.
func Text(html string, opts Options) Page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{Reason: ReasonParse}
	}

	body := collapse(doc.Find("body").Text())
	page := Page{BodyChars: utf8.RuneCountInString(body)}
	if IsPaywalled(body, opts) {
		page.Reason = ReasonPaywall
		return page
	}

	doc.Find(noise).Remove()

	text := ""
	container := doc.Find("article").First()
	if container.Length() == 0 {
		container = doc.Find("main").First()
	}
	if container.Length() > 0 {
		text = joinText(container.Find("p, h1, h2, h3"))
	}
	if text == "" {
		text = joinText(doc.Find("p"))
	}
	if text == "" {
		text = collapse(doc.Find("body").Text())
	}

	if text == "" || utf8.RuneCountInString(text) < opts.MinChars {
		page.Reason = ReasonTooShort
		return page
	}
	page.Text = text
	return page
}

// IsPaywalled reports whether bodyText is short and carries a paywall marker
func IsPaywalled(bodyText string, opts Options) bool {
	if utf8.RuneCountInString(bodyText) >= opts.PaywallMaxChars {
		return false
	}
	lower := strings.ToLower(bodyText)
	for _, marker := range opts.PaywallMarkers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker != "" && strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func joinText(sel *goquery.Selection) string {
	parts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

// collapse squeezes whitespace and replaces invalid UTF-8 sequences
func collapse(s string) string {
	return strings.Join(strings.Fields(strings.ToValidUTF8(s, "\uFFFD")), " ")
}
