package crawl

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

// IsPDF reports whether a URL points at a PDF, judged by its suffix.
func IsPDF(rawURL string) bool {
	return strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
}

// SafeName derives an artifact base name from a page URL: every
// non-alphanumeric character of the decoded path becomes "_", and an empty
// or root path is "index".
func SafeName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "index"
	}
	p := u.Path
	if p == "" || p == "/" {
		return "index"
	}

	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, p)
	if name == "" {
		return "index"
	}
	return name
}

// PDFName is the base name of a PDF artifact: the last URL segment without
// its extension, or "file" when there is none.
func PDFName(rawURL string) string {
	seg := rawURL[strings.LastIndex(rawURL, "/")+1:]
	if seg == "" {
		seg = "file.pdf"
	}
	base := strings.TrimSuffix(seg, path.Ext(seg))
	if base == "" {
		return "file"
	}
	return base
}
