// Package extract enumerates the anchors of an HTML page and classifies their targets.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mfenderov/hvlinks/pkg/models"
)

// documentSuffixes mark links to downloadable documents rather than web pages.
var documentSuffixes = []string{".pdf", ".xls", ".xlsx", ".doc", ".docx"}

// Anchor is one resolved <a href> of a page.
type Anchor struct {
	Href string // attribute value as written in the page
	URL  string // absolute URL resolved against the page URL
	Type models.LinkType
}

// Links returns one Anchor per <a> element with an href attribute, in document order.
// Anchors without an href, or whose href is not a valid URL reference, are skipped.
// Duplicates are kept.
func Links(htmlText string, base *url.URL) ([]Anchor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var anchors []Anchor
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}

		absolute := base.ResolveReference(ref).String()
		anchors = append(anchors, Anchor{
			Href: href,
			URL:  absolute,
			Type: Classify(absolute),
		})
	})

	return anchors, nil
}

// Classify derives the link type from the suffix of the URL path.
// The test is case-sensitive; query and fragment are ignored.
func Classify(absoluteURL string) models.LinkType {
	u, err := url.Parse(absoluteURL)
	if err != nil {
		return models.LinkTypeWebpage
	}

	for _, suffix := range documentSuffixes {
		if strings.HasSuffix(u.Path, suffix) {
			return models.LinkTypeDocument
		}
	}
	return models.LinkTypeWebpage
}
