package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAnchorsResolvesRelative(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="/about">about</a>
		<a href="contact">contact</a>
		<a href="https://example.com/abs">abs</a>
	</body></html>`

	links, err := ExtractAnchors(html, "https://example.com/dir/page")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/about",
		"https://example.com/dir/contact",
		"https://example.com/abs",
	}, links)
}

func TestExtractAnchorsDropsNonHTTP(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="mailto:hr@example.com">mail</a>
		<a href="javascript:void(0)">js</a>
		<a href="#section">fragment</a>
		<a href="https://example.com/real">real</a>
	</body></html>`

	links, err := ExtractAnchors(html, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/real"}, links)
}

func TestExtractAnchorsDeduplicatesAndStripsFragments(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="/page#a">one</a>
		<a href="/page#b">two</a>
	</body></html>`

	links, err := ExtractAnchors(html, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/page"}, links)
}

func TestSameDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"https://example.com/x", "https://example.com/y", true},
		{"http://example.com", "https://example.com", true},
		{"https://sub.example.com", "https://example.com", false},
		{"https://example.com:8443", "https://example.com", false},
		{"https://other.net", "https://example.com", false},
		{"::bad::", "https://example.com", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SameDomain(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
	}
}
