package crawl

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html><head><title> Campus Home </title><style>p{color:red}</style></head>
<body>
<h1>Welcome</h1>
<p>Admissions are <b>open</b>.</p>
<a href="/about">About</a>
<a href="courses/cs.html#syllabus">CS</a>
<a href="https://other.example.org/x">Elsewhere</a>
<a href="mailto:office@site.example">Mail</a>
<a href="  ">blank</a>
<a href="/files/Brochure.PDF">Brochure</a>
<img src="/logo.png">
</body></html>`

func TestParsePage(t *testing.T) {
	page, err := ParsePage("https://site.example/dept/", []byte(samplePage))
	require.NoError(t, err)

	assert.Equal(t, "Campus Home", page.Title)
	assert.Equal(t, []string{
		"https://site.example/about",
		"https://site.example/dept/courses/cs.html",
		"https://other.example.org/x",
		"https://site.example/files/Brochure.PDF",
	}, page.Links)

	assert.Contains(t, page.Text, "Welcome")
	assert.Contains(t, page.Text, "Admissions are open.")
}

func TestParsePage_Pretty(t *testing.T) {
	page, err := ParsePage("https://site.example/", []byte(samplePage))
	require.NoError(t, err)

	lines := strings.Split(page.Pretty, "\n")
	assert.Equal(t, "<!DOCTYPE html>", lines[0])
	assert.Equal(t, "<html>", lines[1])
	assert.Equal(t, " <head>", lines[2])
	assert.Equal(t, "  <title>", lines[3])
	assert.Equal(t, "   Campus Home", lines[4])
	assert.Contains(t, page.Pretty, "  <img src=\"/logo.png\">\n")
	assert.NotContains(t, page.Pretty, "</img>")
	assert.Contains(t, page.Pretty, "   p{color:red}\n", "style content is not escaped")
	assert.True(t, strings.HasSuffix(page.Pretty, "</html>\n"))
}

func TestSameOrigin(t *testing.T) {
	origin, _ := url.Parse("https://site.example/")
	tests := []struct {
		url  string
		want bool
	}{
		{"https://site.example/y", true},
		{"https://SITE.example:443/y", true},
		{"https://other.example.org/x", false},
		{"http://site.example/y", false},
		{"https://site.example:8443/y", false},
		{"https://sub.site.example/y", false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.url)
		require.NoError(t, err)
		assert.Equal(t, tt.want, SameOrigin(origin, u), tt.url)
	}
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("https://site.example/a/b.pdf"))
	assert.True(t, IsPDF("https://site.example/a/B.PDF"))
	assert.False(t, IsPDF("https://site.example/a/pdf"))
	assert.False(t, IsPDF("https://site.example/a.pdf?x=1"))
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"https://site.example":                  "index",
		"https://site.example/":                 "index",
		"https://site.example/about":            "_about",
		"https://site.example/dept/cs-101.html": "_dept_cs_101_html",
		"https://site.example/a%20b?q=1":        "_a_b",
		"https://site.example/caf%C3%A9/":       "_café_",
		"https://site.example/café":             "_café",
		"https://site.example/a b":              "_a_b",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeName(in), in)
	}
}

func TestPDFName(t *testing.T) {
	assert.Equal(t, "Brochure", PDFName("https://site.example/files/Brochure.PDF"))
	assert.Equal(t, "report.v2", PDFName("https://site.example/report.v2.pdf"))
	assert.Equal(t, "file", PDFName("https://site.example/files/.pdf"))
}
