// Package relevance scores links against caller keywords, either lexically
// from the href alone or by asking a language model about the linked page.
package relevance

import "strings"

// Lexical scores.
const (
	MatchScore = 1.0 // at least one keyword occurs in the href
	BaseScore  = 0.3 // no keyword occurs; also the degraded estimate
)

// ScoreLexical reports which keywords occur in href, ignoring case, and the
// resulting score. Matched keywords keep their input order. Blank keywords
// never match.
func ScoreLexical(href string, keywords []string) ([]string, float64) {
	lowerHref := strings.ToLower(href)

	var matched []string
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		if strings.Contains(lowerHref, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}

	if len(matched) > 0 {
		return matched, MatchScore
	}
	return matched, BaseScore
}
