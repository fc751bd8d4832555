package crawl

import (
	"net/url"
	"path"
	"strings"
)

// defaultSkipExtensions lists path extensions the frontier never enqueues:
// binary assets carry no extractable text and waste fetch budget.
var defaultSkipExtensions = []string{
	".pdf", ".zip", ".gz", ".tar", ".rar",
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
	".mp3", ".mp4", ".avi", ".mov", ".webm",
	".css", ".js", ".woff", ".woff2", ".ttf",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
}

// skipList filters frontier candidates by path extension and by raw
// substring patterns from configuration.
type skipList struct {
	extensions map[string]struct{}
	patterns   []string
}

func newSkipList(patterns []string) *skipList {
	s := &skipList{extensions: make(map[string]struct{})}
	for _, ext := range defaultSkipExtensions {
		s.extensions[ext] = struct{}{}
	}
	for _, raw := range patterns {
		p := strings.TrimSpace(strings.ToLower(raw))
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, ".") && !strings.Contains(p, "/") {
			s.extensions[p] = struct{}{}
			continue
		}
		s.patterns = append(s.patterns, p)
	}
	return s
}

// Skip reports whether the URL should be excluded from the frontier.
func (s *skipList) Skip(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
		if _, ok := s.extensions[ext]; ok {
			return true
		}
	}
	lower := strings.ToLower(rawURL)
	for _, p := range s.patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
