// Package storage handles persistence of papers and users in SQLite, with
// JSONL files as the import/export format for the corpus.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/matsen/papersim/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ReadPapers reads all papers from a JSONL file.
// Papers without an ID are assigned a random UUID.
func ReadPapers(path string) ([]reference.Paper, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Missing file reads as an empty corpus
		}
		return nil, fmt.Errorf("opening papers file: %w", err)
	}
	defer f.Close()

	var papers []reference.Paper
	scanner := bufio.NewScanner(f)

	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var p reference.Paper
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		papers = append(papers, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading papers file: %w", err)
	}

	return papers, nil
}

// WritePapers writes all papers to a JSONL file, replacing existing content.
func WritePapers(path string, papers []reference.Paper) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating papers file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, p := range papers {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding paper %d: %w", i, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing paper %d: %w", i, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}

	return w.Flush()
}

// ImportJSONL loads papers from a JSONL file into the database.
// Existing papers with the same ID are updated in place.
func (d *DB) ImportJSONL(ctx context.Context, path string) (int, error) {
	papers, err := ReadPapers(path)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}
	return d.AddPapers(ctx, papers)
}

// ExportJSONL writes the whole corpus, in corpus order, to a JSONL file.
func (d *DB) ExportJSONL(ctx context.Context, path string) (int, error) {
	papers, err := d.ListPapers(ctx)
	if err != nil {
		return 0, err
	}
	if err := WritePapers(path, papers); err != nil {
		return 0, err
	}
	return len(papers), nil
}
