package merger

import (
	"sort"

	"leadgen/repository"
)

const UnderrepresentedRatio = 0.5

type GroupCount struct {
	Group            string
	Count            int
	Underrepresented bool
}

type Coverage struct {
	Groups    []GroupCount
	Mean      float64
	Threshold float64
}

// Underrepresented lists the flagged groups in descending count order
func (c Coverage) Underrepresented() []string {
	var out []string
	for _, g := range c.Groups {
		if g.Underrepresented {
			out = append(out, g.Group)
		}
	}
	return out
}

// IsUnderrepresented reports whether group was flagged
func (c Coverage) IsUnderrepresented(group string) bool {
	for _, g := range c.Groups {
		if g.Group == group {
			return g.Underrepresented
		}
	}
	return false
}

// AnalyzeCoverage counts records per value of the groupBy column
func AnalyzeCoverage(records []repository.ResultRecord, groupBy string) Coverage {
	counts := make(map[string]int)
	for i := range records {
		if v := records[i].Fields()[groupBy]; v != "" {
			counts[v]++
		}
	}
	return CoverageFromCounts(counts)
}

// CoverageFromCounts flags groups whose count is below half the mean of the
// non-empty groups. Zero-count groups are flagged once any group has data.
func CoverageFromCounts(counts map[string]int) Coverage {
	total, nonEmpty := 0, 0
	for _, n := range counts {
		if n > 0 {
			total += n
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return Coverage{}
	}

	mean := float64(total) / float64(nonEmpty)
	cov := Coverage{
		Mean:      mean,
		Threshold: mean * UnderrepresentedRatio,
		Groups:    make([]GroupCount, 0, len(counts)),
	}
	for group, n := range counts {
		cov.Groups = append(cov.Groups, GroupCount{
			Group:            group,
			Count:            n,
			Underrepresented: float64(n) < cov.Threshold,
		})
	}
	sort.Slice(cov.Groups, func(i, j int) bool {
		if cov.Groups[i].Count != cov.Groups[j].Count {
			return cov.Groups[i].Count > cov.Groups[j].Count
		}
		return cov.Groups[i].Group < cov.Groups[j].Group
	})
	return cov
}
