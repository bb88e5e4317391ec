// Package tabular reads and writes the plain row tables exchanged with
// spreadsheets, CSV files and object storage.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Table is a header plus data rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Values returns the header followed by the rows.
func (t Table) Values() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Header)
	return append(out, t.Rows...)
}

// ReadCSV reads every record from r. Records may have differing lengths.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// ReadCSVFile reads a CSV file from disk.
func ReadCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadCSVFile: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV writes the table header and rows to w.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(t.Values()); err != nil {
		return fmt.Errorf("WriteCSV: %s: %w", t.Name, err)
	}
	return nil
}

// WriteCSVFile writes the table to path, creating parent directories.
func WriteCSVFile(path string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("WriteCSVFile: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("WriteCSVFile: %w", err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FileName turns a partition or table name into a safe file base name.
func FileName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ErrPartitionNotFound is returned when a partition has no backing file.
var ErrPartitionNotFound = errors.New("partition not found")

// DirSource serves partitions from <Dir>/<partition>.csv.
type DirSource struct {
	Dir string
}

// FetchRows reads the CSV file backing the partition.
func (s DirSource) FetchRows(ctx context.Context, partition string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, FileName(partition)+".csv")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("DirSource.FetchRows: %s: %w", path, ErrPartitionNotFound)
	}
	return ReadCSVFile(path)
}
