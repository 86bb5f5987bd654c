// Package deadletter records crawl tasks and input files that could not be
// processed, so they are not silently lost.
package deadletter

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	KindCrawlTask  = "crawl_task"
	KindInputFile  = "input_file"
	KindPDFExtract = "pdf_extract"
)

// Entry is one dead-lettered item.
type Entry struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Subject string    `json:"subject"`
	Reason  string    `json:"reason"`
	Time    time.Time `json:"time"`
}

// Queue appends entries to a JSONL file. A nil *Queue drops everything.
type Queue struct {
	mu   sync.Mutex
	path string
}

// Open returns a queue writing to path, or nil when path is empty.
func Open(path string) (*Queue, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dead-letter dir: %w", err)
	}
	return &Queue{path: path}, nil
}

// Put appends one entry.
func (q *Queue) Put(kind, subject string, reason error) error {
	if q == nil {
		return nil
	}
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	line, err := json.Marshal(Entry{
		ID:      uuid.NewString(),
		Kind:    kind,
		Subject: subject,
		Reason:  msg,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode dead-letter entry: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open dead-letter file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write dead-letter entry: %w", err)
	}
	return nil
}

// Read loads every entry of a dead-letter file. A missing file is empty.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("decode dead-letter entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}
