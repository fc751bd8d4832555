package fetch

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ExtractAnchors parses htmlStr and returns every anchor href resolved to an
// absolute URL against base. Fragments are stripped; mailto/javascript and
// unresolvable hrefs are dropped. Order follows document order with
// duplicates removed.
func ExtractAnchors(htmlStr, base string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if abs, ok := resolveHref(baseURL, attr.Val); ok {
					if _, dup := seen[abs]; !dup {
						seen[abs] = struct{}{}
						links = append(links, abs)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return links, nil
}

func resolveHref(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// SameDomain reports whether two URLs share an exact network location
// (host and port).
func SameDomain(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Host != "" && ua.Host == ub.Host
}
