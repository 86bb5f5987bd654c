package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/vectorstore"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(root, "harvester.yaml")
	content := fmt.Sprintf(`
ingest:
  sources:
    - path: %[1]s/text_json_folder
      strategy: default
  persist_dir: %[1]s/db
  dump: false
extract:
  text_dir: %[1]s/cleanedText2
  text_out_dir: %[1]s/text_json_folder
`, root)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "dedupe", "--log-level", "loud")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestSearch_MissingStore(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, "search", "--config", writeConfig(t, root), "--log-level", "error", "fees")
	assert.ErrorIs(t, err, vectorstore.ErrStoreNotFound)
}

func TestTextJSONIngestSearch(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeConfig(t, root)
	textDir := filepath.Join(root, "cleanedText2")
	require.NoError(t, os.MkdirAll(textDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(textDir, "hostel.txt"), []byte("hostel fees are due in july"), 0o644))

	out, err := execute(t, "textjson", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, `"converted": 1`)

	out, err = execute(t, "ingest", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, `"indexed": 1`)

	out, err = execute(t, "search", "--config", cfgPath, "--log-level", "error", "hostel", "fees")
	require.NoError(t, err)
	assert.Contains(t, out, "1. [")
	assert.Contains(t, out, "hostel fees are due in july")
}

func TestExtract_FailuresGoToExtractDeadLetter(t *testing.T) {
	root := t.TempDir()
	pdfDir := filepath.Join(root, "mergedPDF")
	require.NoError(t, os.MkdirAll(pdfDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "brochure.pdf"), []byte("%PDF"), 0o644))

	cfgPath := filepath.Join(root, "harvester.yaml")
	content := fmt.Sprintf(`
ingest:
  dead_letter: %[1]s/ingest_deadletter.jsonl
extract:
  pdf_dir: %[1]s/mergedPDF
  out_dir: %[1]s/PDF_jsonl_folder2
  command: ["sh", "-c", "exit 3"]
  dead_letter: %[1]s/extract_deadletter.jsonl
`, root)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	out, err := execute(t, "extract", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, `"failed": 1`)

	data, err := os.ReadFile(filepath.Join(root, "extract_deadletter.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "brochure.pdf")
	assert.NoFileExists(t, filepath.Join(root, "ingest_deadletter.jsonl"))
}
