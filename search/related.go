package search

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// ExportRelatedSearches writes one row per (query, related search) pair
func ExportRelatedSearches(groups []RelatedSearchGroup, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create related searches file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"original_query", "related_search"}); err != nil {
		return err
	}
	for _, g := range groups {
		for _, related := range g.Related {
			if err := w.Write([]string{g.Query, related}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}
