package crawl

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type ParsedPage struct {
	Title string
	// Links are absolute http(s) URLs without fragment, in document order.
	Links []string
	// Text is the concatenated text of every text node.
	Text string
	// Pretty is the document re-rendered one node per line.
	Pretty string
}

func ParsePage(pageURL string, body []byte) (*ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	page := &ParsedPage{
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Links:  ExtractLinks(base, doc.Selection),
		Text:   doc.Text(),
		Pretty: Prettify(doc.Nodes[0]),
	}
	return page, nil
}

// ExtractLinks resolves every a[href] against base, keeping http and https
// targets only.
func ExtractLinks(base *url.URL, sel *goquery.Selection) []string {
	var links []string
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		absolute := base.ResolveReference(ref)
		absolute.Fragment = ""
		absolute.RawFragment = ""

		if absolute.Scheme == "http" || absolute.Scheme == "https" {
			links = append(links, absolute.String())
		}
	})
	return links
}

// SameOrigin reports whether u shares scheme, host and port with origin.
// Default ports compare equal to an absent port.
func SameOrigin(origin, u *url.URL) bool {
	if !strings.EqualFold(origin.Scheme, u.Scheme) {
		return false
	}
	if !strings.EqualFold(origin.Hostname(), u.Hostname()) {
		return false
	}
	return effectivePort(origin) == effectivePort(u)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
