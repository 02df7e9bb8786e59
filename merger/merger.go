package merger

import (
	"strings"

	"leadgen/dedup"
	"leadgen/repository"
)

// Key selects the field two records are compared on when merging
type Key string

const (
	KeyURL    Key = "url"
	KeyDomain Key = "domain"
)

type MergeResult struct {
	Records    []repository.ResultRecord
	Total      int
	Unique     int
	Duplicates int
}

// Merge concatenates the sets in order and keeps the first record seen for
// every key. A record without a usable key is counted as a duplicate.
func Merge(sets [][]repository.ResultRecord, key Key) MergeResult {
	d := dedup.NewDeduplicator()
	var res MergeResult

	for _, set := range sets {
		for _, rec := range set {
			res.Total++
			if accept(d, rec, key) {
				res.Records = append(res.Records, rec)
				res.Unique++
			} else {
				res.Duplicates++
			}
		}
	}
	return res
}

func accept(d *dedup.Deduplicator, rec repository.ResultRecord, key Key) bool {
	if key == KeyDomain {
		domain := strings.TrimSpace(rec.Domain)
		if domain == "" {
			if link := rec.Link(); link != "" {
				domain = dedup.ExtractDomain(link)
			}
		}
		if domain != "" {
			return d.AcceptDomain(domain)
		}
	}

	identity := rec.IdentityKey()
	if key == KeyURL {
		// web urls and place websites share one key space
		if link := rec.Link(); link != "" {
			identity = dedup.Normalize(link)
		}
	}
	if identity == "" {
		return false
	}
	return d.Accept(identity)
}
