package minio

import (
	"context"
	"errors"
	"testing"
)

func TestObjectKey(t *testing.T) {
	testCases := []struct {
		name   string
		prefix string
		path   string
		want   string
	}{
		{"NoPrefix", "", "results/final_merged_20260101_120000.csv", "final_merged_20260101_120000.csv"},
		{"Prefix", "exports", "results/final.csv", "exports/final.csv"},
		{"SlashedPrefix", "/exports/2026/", "final.csv", "exports/2026/final.csv"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ObjectKey(tc.prefix, tc.path); got != tc.want {
				t.Errorf("ObjectKey(%q, %q) = %q, want %q", tc.prefix, tc.path, got, tc.want)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("a/b.CSV"); got != "text/csv" {
		t.Errorf("unexpected content type %q", got)
	}
	if got := contentType("a/b"); got != "application/octet-stream" {
		t.Errorf("unexpected content type %q", got)
	}
}

func TestNewUploader_MissingBucket(t *testing.T) {
	if _, err := NewUploader(context.Background(), Options{Endpoint: "localhost:9000"}); !errors.Is(err, ErrMissingBucket) {
		t.Errorf("expected ErrMissingBucket, got %v", err)
	}
}
