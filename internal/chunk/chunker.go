// Package chunk turns parsed JSON records into indexable chunks.
package chunk

import (
	"errors"
	"fmt"
	"strings"

	"harvester/internal/jsonval"
	"harvester/internal/model"
)

// ErrUnexpectedShape is returned when a document's top level does not fit
// the strategy.
var ErrUnexpectedShape = errors.New("unexpected JSON structure")

// recordStride separates the positions of consecutive records in a file.
const recordStride = 1000

// Chunker splits one parsed source file into chunks.
type Chunker interface {
	Chunk(fileID string, doc jsonval.Value) ([]model.Chunk, error)
}

// Config holds sliding-window settings.
type Config struct {
	// Size is the window length in characters.
	Size int
	// Overlap is the number of characters shared by consecutive windows.
	Overlap int
	// MetadataMaxLen caps the string form of copied metadata values.
	MetadataMaxLen int
}

// DefaultConfig returns the stock window settings.
func DefaultConfig() Config {
	return Config{Size: 1024, Overlap: 100, MetadataMaxLen: 200}
}

func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap (%d) must be in [0, %d)", c.Overlap, c.Size)
	}
	if c.MetadataMaxLen <= 0 {
		return fmt.Errorf("metadata max length must be positive, got %d", c.MetadataMaxLen)
	}
	return nil
}

// Window is the default strategy: every object record becomes one or more
// fixed-size overlapping windows of its concatenated text.
type Window struct {
	config Config
}

func NewWindow(cfg Config) (*Window, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Window{config: cfg}, nil
}

// Records normalises a document to its list of records. An object is a
// single record; a list is taken as-is.
func Records(doc jsonval.Value) ([]jsonval.Value, error) {
	switch doc.Kind() {
	case jsonval.Object:
		return []jsonval.Value{doc}, nil
	case jsonval.Array:
		return doc.Items(), nil
	}
	return nil, fmt.Errorf("%w: top level is %s", ErrUnexpectedShape, doc.Kind())
}

func (w *Window) Chunk(fileID string, doc jsonval.Value) ([]model.Chunk, error) {
	records, err := Records(doc)
	if err != nil {
		return nil, err
	}

	var chunks []model.Chunk
	for objIndex, record := range records {
		if !record.IsObject() {
			continue
		}
		safe := jsonval.SafeMetadata(jsonval.Flatten(record), w.config.MetadataMaxLen)

		text := strings.Join(jsonval.Texts(record), "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		for i, window := range Split(text, w.config.Size, w.config.Overlap) {
			meta := make(map[string]any, len(safe)+4)
			for k, v := range safe {
				meta[k] = v
			}
			meta["file_id"] = fileID
			meta["obj_index"] = objIndex
			meta["chunk_id"] = i
			meta["source"] = fileID

			chunks = append(chunks, model.Chunk{
				ID:       ID(fileID, objIndex*recordStride+i, window),
				Content:  window,
				Metadata: meta,
			})
		}
	}
	return chunks, nil
}

// Split cuts text into windows of size characters, each starting
// size-overlap characters after the previous one. The final window ends at
// the end of the text.
func Split(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var out []string
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// Sections is the structured strategy for documents shaped as a mapping
// from section name to a list of entries: one chunk per top-level key.
type Sections struct{}

func NewSections() *Sections { return &Sections{} }

func (Sections) Chunk(fileID string, doc jsonval.Value) ([]model.Chunk, error) {
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: sectioned document must be an object, got %s", ErrUnexpectedShape, doc.Kind())
	}

	chunks := make([]model.Chunk, 0, len(doc.Members()))
	for idx, m := range doc.Members() {
		content := SectionContent(m.Key, m.Value)
		chunks = append(chunks, model.Chunk{
			ID:      ID(fileID, idx, content),
			Content: content,
			Metadata: map[string]any{
				"file_id":  fileID,
				"section":  m.Key,
				"chunk_id": idx,
				"source":   fileID,
			},
		})
	}
	return chunks, nil
}

// SectionContent renders a list of entries as "key:\n" followed by one entry
// per line, and any other value as its plain string form.
func SectionContent(key string, v jsonval.Value) string {
	if !v.IsArray() {
		return v.String()
	}
	entries := make([]string, len(v.Items()))
	for i, item := range v.Items() {
		entries[i] = item.String()
	}
	return key + ":\n" + strings.Join(entries, "\n")
}
