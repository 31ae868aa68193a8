package processor

import (
	"fmt"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Mode selects how page HTML is reduced to readable content.
type Mode string

const (
	ModeText        Mode = "text"        // visible text, whitespace collapsed
	ModeMarkdown    Mode = "markdown"    // HTML converted to Markdown
	ModeReadability Mode = "readability" // main article text
)

// ParseMode validates a configured mode name. Empty means ModeText.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeText:
		return ModeText, nil
	case ModeMarkdown:
		return ModeMarkdown, nil
	case ModeReadability:
		return ModeReadability, nil
	default:
		return "", fmt.Errorf("unknown content mode %q (want text, markdown or readability)", s)
	}
}

// Processor turns fetched pages into readable content for prompting.
type Processor struct {
	mode Mode
}

// New creates a Processor for the given mode.
func New(mode Mode) *Processor {
	if mode == "" {
		mode = ModeText
	}
	return &Processor{mode: mode}
}

// Mode returns the configured mode.
func (p *Processor) Mode() Mode {
	return p.mode
}

// Readable reduces a page to readable content and truncates it to maxChars runes.
// Content that is already Markdown is kept as-is. maxChars <= 0 disables truncation.
func (p *Processor) Readable(pageURL, contentType, body string, maxChars int) (string, error) {
	var (
		content string
		err     error
	)

	switch {
	case isMarkdown(pageURL, contentType, body):
		content = strings.TrimSpace(body)
	case p.mode == ModeMarkdown:
		content, err = p.Convert(body)
	case p.mode == ModeReadability:
		content, err = p.Article(pageURL, body)
	default:
		content, err = p.Text(body)
	}
	if err != nil {
		return "", err
	}

	return Truncate(content, maxChars), nil
}

// Text extracts the visible text of an HTML document.
// Script, style and noscript elements are dropped and whitespace is collapsed.
func (p *Processor) Text(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// Convert transforms HTML content into Markdown.
func (p *Processor) Convert(htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", nil
	}

	md, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(md), nil
}

// Article extracts the main article text using readability heuristics.
// Falls back to Text when no article can be identified.
func (p *Processor) Article(pageURL, htmlContent string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse page URL: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), u)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return p.Text(htmlContent)
	}

	return strings.Join(strings.Fields(article.TextContent), " "), nil
}

// ExtractTitle extracts the <title> content from HTML.
func ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node)
	findTitle = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTitle(c)
		}
	}
	findTitle(doc)

	return strings.TrimSpace(title)
}

// Truncate cuts s to at most maxChars runes.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
