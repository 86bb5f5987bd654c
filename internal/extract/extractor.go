// Package extract turns crawled PDFs and text artifacts into the JSON
// documents the ingestion pipeline reads.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the extracted content of one PDF: one paragraph per page and
// every table found, each table a list of rows.
type Document struct {
	Paragraphs []string     `json:"paragraphs"`
	Tables     [][][]string `json:"tables"`
}

// Extractor reads a PDF and returns its content.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// CommandExtractor runs an external program with the PDF path appended to
// Args and decodes its standard output as a Document.
type CommandExtractor struct {
	Args    []string
	Timeout time.Duration
}

func NewCommandExtractor(args []string, timeout time.Duration) (*CommandExtractor, error) {
	if len(args) == 0 {
		return nil, errors.New("extractor command is empty")
	}
	return &CommandExtractor{Args: args, Timeout: timeout}, nil
}

func (c *CommandExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), c.Args[1:]...), path)
	cmd := exec.CommandContext(ctx, c.Args[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", c.Args[0], err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", c.Args[0], err)
	}

	var doc Document
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("decode extractor output: %w", err)
	}
	for i, p := range doc.Paragraphs {
		doc.Paragraphs[i] = strings.TrimSpace(p)
	}
	if doc.Paragraphs == nil {
		doc.Paragraphs = []string{}
	}
	if doc.Tables == nil {
		doc.Tables = [][][]string{}
	}
	return &doc, nil
}
