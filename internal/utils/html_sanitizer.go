package utils

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLSanitizer provides HTML sanitization for content leaving the service.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer creates a sanitizer that keeps common formatting and
// safe links but nothing executable.
func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("b", "strong", "i", "em", "u", "s", "del")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowElements("p", "br", "hr")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("blockquote", "code", "pre")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	p.AllowElements("a")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &HTMLSanitizer{policy: p}
}

// Sanitize cleans HTML content to prevent XSS attacks.
func (s *HTMLSanitizer) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Table))

// RenderMarkdown converts comment text to sanitized HTML. Plain email text
// renders as paragraphs.
func (s *HTMLSanitizer) RenderMarkdown(src string) string {
	var buf strings.Builder
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return s.policy.Sanitize(html.EscapeString(src))
	}
	return s.policy.Sanitize(buf.String())
}

// IsHTML checks if the content appears to be HTML.
func IsHTML(content string) bool {
	htmlTags := []string{"<p>", "<br", "<div", "<span", "<b>", "<i>", "<strong>", "<em>", "<h1>", "<h2>", "<h3>", "<ul>", "<ol>", "<li>", "<table", "<a ", "<blockquote>", "<img ", "<html", "<body"}

	contentLower := strings.ToLower(content)
	for _, tag := range htmlTags {
		if strings.Contains(contentLower, tag) {
			return true
		}
	}
	return false
}

var (
	lineBreakTags = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/tr|/h[1-6]|/blockquote|hr)\s*/?\s*>`)
	dropBlocks    = regexp.MustCompile(`(?is)<\s*(style|script|head)[^>]*>.*?<\s*/\s*(style|script|head)\s*>`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

var textPolicy = bluemonday.StrictPolicy()

// HTMLToText strips markup from an HTML email body, keeping line structure.
func HTMLToText(content string) string {
	content = dropBlocks.ReplaceAllString(content, "")
	content = lineBreakTags.ReplaceAllString(content, "\n")
	text := html.UnescapeString(textPolicy.Sanitize(content))
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
