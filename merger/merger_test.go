package merger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"leadgen/repository"

	"go.uber.org/zap"
)

func webRecord(url, domain string) repository.ResultRecord {
	return repository.ResultRecord{
		Source:     repository.SourceSearch,
		SourceType: repository.SourceTypeOrganic,
		URL:        url,
		Domain:     domain,
		Query:      "q",
		City:       "Lyon, FR",
	}
}

func placeRecord(website, placeID, domain string) repository.ResultRecord {
	return repository.ResultRecord{
		Source:     repository.SourceMaps,
		SourceType: repository.SourceTypePlace,
		Website:    website,
		PlaceID:    placeID,
		Domain:     domain,
		Title:      "Biz",
		Query:      "q",
		City:       "Lyon, FR",
	}
}

func TestMerge_TwoTierDedup(t *testing.T) {
	web := []repository.ResultRecord{webRecord("https://a.com/products", "a.com")}
	maps := []repository.ResultRecord{placeRecord("https://a.com/contact", "p1", "a.com")}

	byURL := Merge([][]repository.ResultRecord{web, maps}, KeyURL)
	if byURL.Unique != 2 {
		t.Errorf("expected 2 rows with url key, got %d", byURL.Unique)
	}

	byDomain := Merge([][]repository.ResultRecord{web, maps}, KeyDomain)
	if byDomain.Unique != 1 || byDomain.Duplicates != 1 {
		t.Fatalf("expected 1 unique and 1 duplicate, got %+v", byDomain)
	}
	if byDomain.Records[0].Source != repository.SourceSearch {
		t.Errorf("expected first occurrence to win")
	}
}

func TestMerge_Conservation(t *testing.T) {
	sets := [][]repository.ResultRecord{
		{webRecord("https://a.com/x", "a.com"), webRecord("https://a.com/x/", "a.com"), webRecord("", "")},
		{placeRecord("", "p1", ""), placeRecord("", "p1", ""), placeRecord("", "", "")},
		{},
		{webRecord("https://b.com", "b.com")},
	}

	for _, key := range []Key{KeyURL, KeyDomain} {
		t.Run(string(key), func(t *testing.T) {
			res := Merge(sets, key)
			if res.Total != 7 {
				t.Errorf("expected total 7, got %d", res.Total)
			}
			if res.Total != res.Unique+res.Duplicates {
				t.Errorf("total %d != unique %d + duplicates %d", res.Total, res.Unique, res.Duplicates)
			}
			if len(res.Records) != res.Unique {
				t.Errorf("expected %d records, got %d", res.Unique, len(res.Records))
			}
			if res.Unique != 3 {
				t.Errorf("expected 3 unique records, got %d", res.Unique)
			}
		})
	}
}

func TestMerge_URLKeyAcrossSources(t *testing.T) {
	sets := [][]repository.ResultRecord{
		{webRecord("https://a.com/x", "a.com")},
		{
			placeRecord("https://www.a.com/x/", "p1", "a.com"),
			placeRecord("", "p2", ""),
			placeRecord("", "p2", ""),
		},
	}

	res := Merge(sets, KeyURL)
	if res.Total != 4 || res.Unique != 2 || res.Duplicates != 2 {
		t.Fatalf("expected 4 total, 2 unique, 2 duplicates, got %d/%d/%d", res.Total, res.Unique, res.Duplicates)
	}
	if res.Records[0].Source != repository.SourceSearch || res.Records[1].PlaceID != "p2" {
		t.Errorf("unexpected records: %+v", res.Records)
	}
}

func TestCoverageFromCounts(t *testing.T) {
	cov := CoverageFromCounts(map[string]int{"A": 100, "B": 40, "C": 10})

	if cov.Mean != 50 || cov.Threshold != 25 {
		t.Errorf("expected mean 50 threshold 25, got %v %v", cov.Mean, cov.Threshold)
	}
	flagged := cov.Underrepresented()
	if len(flagged) != 1 || flagged[0] != "C" {
		t.Errorf("expected only C flagged, got %v", flagged)
	}
	if !cov.IsUnderrepresented("C") || cov.IsUnderrepresented("B") {
		t.Errorf("unexpected flags: %+v", cov.Groups)
	}
}

func TestCoverageFromCounts_Edges(t *testing.T) {
	if cov := CoverageFromCounts(nil); len(cov.Underrepresented()) != 0 {
		t.Errorf("expected nothing flagged for no groups")
	}
	if cov := CoverageFromCounts(map[string]int{"A": 0, "B": 0}); len(cov.Underrepresented()) != 0 {
		t.Errorf("expected nothing flagged for all-empty groups")
	}

	cov := CoverageFromCounts(map[string]int{"A": 10, "B": 10, "C": 0})
	if flagged := cov.Underrepresented(); len(flagged) != 1 || flagged[0] != "C" {
		t.Errorf("expected the zero-count group flagged, got %v", flagged)
	}
}

func TestAnalyzeCoverage(t *testing.T) {
	var records []repository.ResultRecord
	for i := 0; i < 8; i++ {
		r := webRecord("https://a.com", "a.com")
		r.City = "Big"
		records = append(records, r)
	}
	small := webRecord("https://b.com", "b.com")
	small.City = "Small"
	records = append(records, small)

	flagged := AnalyzeCoverage(records, repository.ColCity).Underrepresented()
	if len(flagged) != 1 || flagged[0] != "Small" {
		t.Errorf("expected Small flagged, got %v", flagged)
	}
}

func TestExportAndReadCSV(t *testing.T) {
	rating := 4.2
	place := placeRecord("https://c.com", "pc", "c.com")
	place.Rating = &rating
	records := []repository.ResultRecord{
		webRecord("https://a.com/x", "a.com"),
		place,
	}

	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	got, err := ExportCSV(records, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path {
		t.Errorf("expected path %q, got %q", path, got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	header := strings.SplitN(string(data), "\n", 2)[0]
	if !strings.HasPrefix(header, "domain,url,website,title,business_name") {
		t.Errorf("unexpected header %q", header)
	}

	back, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("expected 2 records, got %d", len(back))
	}
	if back[0].URL != "https://a.com/x" || back[0].Source != repository.SourceSearch {
		t.Errorf("unexpected web record: %+v", back[0])
	}
	if back[1].PlaceID != "pc" || back[1].Rating == nil || *back[1].Rating != 4.2 {
		t.Errorf("unexpected place record: %+v", back[1])
	}

	if _, err := ExportCSV(nil, path); !errors.Is(err, ErrNoRecords) {
		t.Errorf("expected ErrNoRecords, got %v", err)
	}
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	phase1 := filepath.Join(dir, "phase1.csv")
	phase2 := filepath.Join(dir, "phase2.csv")
	if _, err := ExportCSV([]repository.ResultRecord{webRecord("https://a.com/x", "a.com")}, phase1); err != nil {
		t.Fatal(err)
	}
	if _, err := ExportCSV([]repository.ResultRecord{
		placeRecord("https://a.com/y", "p1", "a.com"),
		placeRecord("", "p2", ""),
	}, phase2); err != nil {
		t.Fatal(err)
	}

	res, err := MergeFiles([]string{phase1, phase2}, KeyDomain, filepath.Join(dir, "merged.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 3 || res.Unique != 2 || res.Duplicates != 1 {
		t.Errorf("unexpected merge result: %+v", res)
	}

	if _, err := MergeFiles([]string{filepath.Join(dir, "missing.csv")}, KeyDomain, filepath.Join(dir, "x.csv")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

type fakeSink struct {
	received [][]repository.ResultRecord
	failAt   int
}

func (f *fakeSink) InsertResults(_ context.Context, _ string, records []repository.ResultRecord) (int, error) {
	if f.failAt > 0 && len(f.received)+1 == f.failAt {
		return 0, errors.New("connection lost")
	}
	batch := make([]repository.ResultRecord, len(records))
	copy(batch, records)
	f.received = append(f.received, batch)
	return len(records), nil
}

func fillBuffer(n int) *repository.Buffer {
	buf := repository.NewBuffer()
	for i := 0; i < n; i++ {
		buf.Append(webRecord("https://a.com/"+strings.Repeat("x", i+1), "a.com"))
	}
	return buf
}

func TestFlusher_FlushClear(t *testing.T) {
	sink := &fakeSink{}
	f := NewFlusher(sink, "c1", zap.NewNop())
	buf := fillBuffer(1200)
	before := buf.Items()

	n, err := f.Flush(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1200 || buf.Len() != 0 || f.Flushed() != 1200 {
		t.Errorf("expected 1200 flushed and an empty buffer, got %d, len %d", n, buf.Len())
	}
	if len(sink.received) != 3 || len(sink.received[0]) != DefaultChunkSize || len(sink.received[2]) != 200 {
		t.Errorf("unexpected chunking: %d chunks", len(sink.received))
	}

	var all []repository.ResultRecord
	for _, chunk := range sink.received {
		all = append(all, chunk...)
	}
	for i := range before {
		if all[i].URL != before[i].URL {
			t.Fatalf("record %d differs: %q vs %q", i, all[i].URL, before[i].URL)
		}
	}

	n, err = f.Flush(context.Background(), buf)
	if n != 0 || err != nil || len(sink.received) != 3 {
		t.Errorf("expected empty flush to be a no-op, got %d, %v", n, err)
	}
}

func TestFlusher_PartialFailure(t *testing.T) {
	sink := &fakeSink{failAt: 2}
	f := NewFlusher(sink, "c1", zap.NewNop())
	buf := fillBuffer(700)

	n, err := f.Flush(context.Background(), buf)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if n != DefaultChunkSize || buf.Len() != 200 || f.Flushed() != DefaultChunkSize {
		t.Errorf("expected 500 saved and 200 left, got %d saved and %d left", n, buf.Len())
	}

	sink.failAt = 0
	n, err = f.Flush(context.Background(), buf)
	if err != nil || n != 200 || buf.Len() != 0 || f.Flushed() != 700 {
		t.Errorf("expected the remaining 200 flushed, got %d, %v", n, err)
	}
}
