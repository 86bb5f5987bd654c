package extract

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/deadletter"
)

type fakeExtractor map[string]*Document

func (f fakeExtractor) Extract(_ context.Context, path string) (*Document, error) {
	doc, ok := f[filepath.Base(path)]
	if !ok {
		return nil, errors.New("corrupt pdf")
	}
	return doc, nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestExtractDir(t *testing.T) {
	pdfDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	writeFile(t, pdfDir, "fees.pdf", "%PDF")
	writeFile(t, pdfDir, "Broken.PDF", "%PDF")
	writeFile(t, pdfDir, "notes.txt", "ignored")

	dlPath := filepath.Join(t.TempDir(), "dl.jsonl")
	dl, err := deadletter.Open(dlPath)
	require.NoError(t, err)

	ex := fakeExtractor{
		"fees.pdf": {
			Paragraphs: []string{"Fee structure 2024"},
			Tables:     [][][]string{{{"Programme", "Fee"}, {"B.Tech", "1,50,000 <INR>"}}},
		},
	}
	report, err := ExtractDir(context.Background(), ex, pdfDir, outDir, Options{DeadLetter: dl})
	require.NoError(t, err)
	assert.Equal(t, &Report{Converted: 1, Failed: 1}, report)

	data, err := os.ReadFile(filepath.Join(outDir, "fees.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"paragraphs\": [")
	assert.Contains(t, string(data), "1,50,000 <INR>", "HTML characters are not escaped")

	var got Document
	require.NoError(t, json.Unmarshal(data, &got))
	if diff := cmp.Diff(*ex["fees.pdf"], got); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}

	entries, err := deadletter.Read(dlPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, deadletter.KindPDFExtract, entries[0].Kind)
	assert.Equal(t, filepath.Join(pdfDir, "Broken.PDF"), entries[0].Subject)
}

func TestExtractDir_MissingInput(t *testing.T) {
	_, err := ExtractDir(context.Background(), fakeExtractor{}, filepath.Join(t.TempDir(), "none"), t.TempDir(), Options{})
	require.Error(t, err)
}

func TestCommandExtractor(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ex, err := NewCommandExtractor([]string{
		"sh", "-c", `printf '{"paragraphs":["  page one  "],"tables":[[["a","b"]]],"source":"%s"}' "$1"`, "extractor",
	}, 0)
	require.NoError(t, err)

	doc, err := ex.Extract(context.Background(), "/tmp/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"page one"}, doc.Paragraphs)
	assert.Equal(t, [][][]string{{{"a", "b"}}}, doc.Tables)

	failing, err := NewCommandExtractor([]string{"sh", "-c", "echo boom >&2; exit 3", "extractor"}, 0)
	require.NoError(t, err)
	_, err = failing.Extract(context.Background(), "/tmp/x.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = NewCommandExtractor(nil, 0)
	require.Error(t, err)
}

func TestTextToJSON(t *testing.T) {
	textDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "text_json")
	writeFile(t, textDir, "_about.txt", "\n  About the institute  \n")
	writeFile(t, textDir, "index.txt", "   \n")
	writeFile(t, textDir, "page.html", "<p>skip</p>")

	report, err := TextToJSON(textDir, outDir, Options{})
	require.NoError(t, err)
	assert.Equal(t, &Report{Converted: 1, Skipped: 1}, report)

	data, err := os.ReadFile(filepath.Join(outDir, "_about.json"))
	require.NoError(t, err)
	var got TextDocument
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TextDocument{
		Text:     "About the institute",
		Metadata: TextMetadata{DocName: "_about", DocType: "web_extracted"},
	}, got)

	_, err = os.Stat(filepath.Join(outDir, "index.json"))
	assert.True(t, os.IsNotExist(err))
}
