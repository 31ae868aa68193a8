package processor

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	mdHeading = regexp.MustCompile(`^#{1,6}\s+\S`)
	mdList    = regexp.MustCompile(`(?m)^[\-\*]\s+\S`)
	mdLink    = regexp.MustCompile(`\[.+?\]\(.+?\)`)
)

// isMarkdown reports content that is already Markdown and should be passed
// through unchanged. A declared HTML content type always wins.
func isMarkdown(pageURL, contentType, body string) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "html"):
		return false
	case strings.HasPrefix(ct, "text/markdown"), strings.HasPrefix(ct, "text/x-markdown"):
		return true
	}

	if u, err := url.Parse(pageURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".md", ".markdown":
			return true
		}
	}

	return looksLikeMarkdown(body)
}

// looksLikeMarkdown applies syntax heuristics to content with no telling type.
func looksLikeMarkdown(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.HasPrefix(trimmed, "<") {
		return false
	}
	return mdHeading.MatchString(trimmed) || mdList.MatchString(trimmed) || mdLink.MatchString(trimmed)
}
