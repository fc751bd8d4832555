// Package markdown normalizes fetched HTML into markdown and plain text.
// Conversion failure is non-fatal: callers get "" and treat it as no usable
// content.
package markdown

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"go.uber.org/zap"
)

type Converter struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Converter {
	return &Converter{logger: logger.Named("markdown")}
}

// ToMarkdown converts raw HTML to markdown. Returns "" on failure.
func (c *Converter) ToMarkdown(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		c.logger.Warn("html to markdown conversion failed", zap.Error(err))
		return ""
	}
	return md
}

// ToText converts HTML to plain text via the markdown intermediate.
func (c *Converter) ToText(html string) string {
	return StripMarkdown(c.ToMarkdown(html))
}

var (
	imageRe   = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRe = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	blankRe   = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown reduces markdown to plain text: links and images collapse to
// their label, structural markers are dropped, runs of blank lines squeeze
// to one.
func StripMarkdown(md string) string {
	if md == "" {
		return ""
	}
	s := imageRe.ReplaceAllString(md, "$1")
	s = linkRe.ReplaceAllString(s, "$1")
	s = headingRe.ReplaceAllString(s, "")

	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		trimmed = strings.TrimPrefix(trimmed, "> ")
		trimmed = strings.TrimPrefix(trimmed, "- ")
		trimmed = strings.TrimPrefix(trimmed, "* ")
		b.WriteString(trimmed)
		b.WriteByte('\n')
	}

	s = b.String()
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "`", "")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
