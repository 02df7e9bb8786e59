package merger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"leadgen/repository"
)

var ErrNoRecords = errors.New("no records to export")

// Columns returns the union of the fields present on records: canonical
// columns first in their fixed order, unknown ones after in sorted order.
func Columns(records []repository.ResultRecord) []string {
	seen := make(map[string]struct{})
	for i := range records {
		for col := range records[i].Fields() {
			seen[col] = struct{}{}
		}
	}

	columns := make([]string, 0, len(seen))
	for _, col := range repository.CanonicalColumns {
		if _, ok := seen[col]; ok {
			columns = append(columns, col)
			delete(seen, col)
		}
	}

	extras := make([]string, 0, len(seen))
	for col := range seen {
		extras = append(extras, col)
	}
	sort.Strings(extras)
	return append(columns, extras...)
}

// WriteCSV writes records as CSV with a header row
func WriteCSV(w io.Writer, records []repository.ResultRecord) error {
	columns := Columns(records)
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(columns))
	for i := range records {
		fields := records[i].Fields()
		for j, col := range columns {
			row[j] = fields[col]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSV writes records to path, creating parent directories
func ExportCSV(records []repository.ResultRecord, path string) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, records); err != nil {
		return "", fmt.Errorf("failed to export %s: %w", path, err)
	}
	return path, nil
}

// ReadCSV loads records previously written by ExportCSV or a checkpoint
func ReadCSV(path string) ([]repository.ResultRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	var records []repository.ResultRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				fields[col] = row[i]
			}
		}
		records = append(records, repository.RecordFromFields(fields))
	}
	return records, nil
}

// MergeFiles merges previously exported files in order and writes the
// result to out
func MergeFiles(paths []string, key Key, out string) (MergeResult, error) {
	sets := make([][]repository.ResultRecord, 0, len(paths))
	for _, p := range paths {
		records, err := ReadCSV(p)
		if err != nil {
			return MergeResult{}, err
		}
		sets = append(sets, records)
	}

	res := Merge(sets, key)
	if _, err := ExportCSV(res.Records, out); err != nil {
		return res, err
	}
	return res, nil
}
