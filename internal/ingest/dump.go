package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"harvester/internal/model"
)

var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// DumpPath is where the chunks of one file are written.
func DumpPath(dir, fileID string) string {
	return filepath.Join(dir, fileID+"_chunks.json")
}

// writeDump writes the chunks of one file as an indented JSON array,
// replacing any earlier dump of the same file.
func writeDump(dir, fileID string, chunks []model.Chunk) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunks of %s: %w", fileID, err)
	}
	if err := os.WriteFile(DumpPath(dir, fileID), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write chunks of %s: %w", fileID, err)
	}
	return nil
}

// ReadDump loads a chunk dump written by a pipeline run.
func ReadDump(dir, fileID string) ([]model.Chunk, error) {
	data, err := os.ReadFile(DumpPath(dir, fileID))
	if err != nil {
		return nil, err
	}
	var chunks []model.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks of %s: %w", fileID, err)
	}
	return chunks, nil
}
