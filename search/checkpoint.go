package search

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"leadgen/repository"
)

// Checkpoint appends accepted records to a CSV log so a crash only loses
// the records accepted since the last append. The file is created on the
// first write.
type Checkpoint struct {
	dir     string
	prefix  string
	columns []string
	path    string
	now     func() time.Time
}

func NewCheckpoint(dir, prefix string, columns []string) *Checkpoint {
	return &Checkpoint{
		dir:     dir,
		prefix:  prefix,
		columns: columns,
		now:     time.Now,
	}
}

// Path returns the checkpoint file, or "" when nothing was written yet
func (c *Checkpoint) Path() string {
	return c.path
}

// Append writes records to the end of the checkpoint file
func (c *Checkpoint) Append(records []repository.ResultRecord) error {
	if len(records) == 0 {
		return nil
	}

	if c.path == "" {
		if err := os.MkdirAll(c.dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
		name := fmt.Sprintf("checkpoint_%s_%s.csv", c.prefix, c.now().Format("20060102_150405"))
		c.path = filepath.Join(c.dir, name)
	}

	_, statErr := os.Stat(c.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(c.columns); err != nil {
			return fmt.Errorf("failed to write checkpoint header: %w", err)
		}
	}

	row := make([]string, len(c.columns))
	for _, rec := range records {
		fields := rec.Fields()
		for i, col := range c.columns {
			row[i] = fields[col]
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write checkpoint row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush checkpoint: %w", err)
	}
	return nil
}
