package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestToMarkdownEmptyInput(t *testing.T) {
	t.Parallel()

	c := New(zap.NewNop())
	assert.Empty(t, c.ToMarkdown(""))
	assert.Empty(t, c.ToMarkdown("   \n  "))
}

func TestToTextBasicDocument(t *testing.T) {
	t.Parallel()

	c := New(zap.NewNop())
	html := `<html><body>
		<h1>Wage Notice</h1>
		<p>The <strong>minimum wage</strong> increases on <a href="/dates">July 1</a>.</p>
	</body></html>`

	text := c.ToText(html)
	assert.Contains(t, text, "Wage Notice")
	assert.Contains(t, text, "minimum wage increases on July 1")
	assert.NotContains(t, text, "<p>")
	assert.NotContains(t, text, "](")
	assert.NotContains(t, text, "**")
}

func TestStripMarkdown(t *testing.T) {
	t.Parallel()

	md := strings.Join([]string{
		"# Heading",
		"",
		"Some **bold** text with a [link](https://example.com) and ![img](pic.png).",
		"",
		"- item one",
		"> quoted line",
	}, "\n")

	text := StripMarkdown(md)
	assert.Contains(t, text, "Heading")
	assert.Contains(t, text, "Some bold text with a link and img.")
	assert.Contains(t, text, "item one")
	assert.Contains(t, text, "quoted line")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "](")
}

func TestStripMarkdownEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, StripMarkdown(""))
}
