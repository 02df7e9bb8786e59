package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"leadgen/dedup"
	"leadgen/repository"

	"go.uber.org/zap"
)

const (
	DefaultRequestTimeout     = 30 * time.Second
	DefaultCheckpointInterval = 50
)

type SearcherConfig struct {
	RequestTimeout     time.Duration
	CheckpointInterval int
	// CheckpointDir disables checkpointing when empty
	CheckpointDir string
}

func (c SearcherConfig) withDefaults() SearcherConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	return c
}

type MultiLocationOptions struct {
	Country         string
	Language        string
	ResultsPerQuery int
	Exclusions      string
}

type CityCount struct {
	City  string
	Count int
}

type SearchStats struct {
	TotalResults  int
	Organic       int
	Ads           int
	Shopping      int
	WithWebsite   int
	WithPhone     int
	UniqueURLs    int
	UniqueDomains int
	APICalls      int
	TopCities     []CityCount
}

type WebSearcher struct {
	backend      WebBackend
	deduplicator *dedup.Deduplicator
	results      *repository.Buffer
	checkpoint   *Checkpoint
	config       SearcherConfig
	logger       *zap.Logger

	apiCalls        int
	related         map[string][]string
	relatedOrder    []string
	typeCounts      map[repository.SourceType]int
	cityCounts      map[string]int
	acceptedOverall int
}

// NewWebSearcher creates a web searcher with its own deduplicator
func NewWebSearcher(backend WebBackend, logger *zap.Logger, config SearcherConfig) *WebSearcher {
	config = config.withDefaults()
	s := &WebSearcher{
		backend:      backend,
		deduplicator: dedup.NewDeduplicator(),
		results:      repository.NewBuffer(),
		config:       config,
		logger:       logger.With(zap.String("source", string(repository.SourceSearch))),
		related:      make(map[string][]string),
		typeCounts:   make(map[repository.SourceType]int),
		cityCounts:   make(map[string]int),
	}
	if config.CheckpointDir != "" {
		s.checkpoint = NewCheckpoint(config.CheckpointDir, "search", repository.WebColumns)
	}
	return s
}

// SearchSingleQuery runs one query with pagination and returns the number of
// newly accepted records. target is advisory: ceil(target/10) pages are
// requested, never more than MaxPages.
func (s *WebSearcher) SearchSingleQuery(ctx context.Context, query, country, language string, target int, location string) int {
	totalPages := PagesFor(target)
	newRecords := 0

	for page := 1; page <= totalPages; page++ {
		if ctx.Err() != nil {
			break
		}

		resp, ok := s.search(ctx, &WebRequest{
			Query:    query,
			Country:  strings.ToLower(country),
			Language: language,
			Num:      ResultsPerPage,
			Page:     page,
		})
		if !ok {
			continue
		}

		newRecords += s.collect(resp.Organic, query, repository.SourceTypeOrganic, country, location)
		if page == 1 {
			newRecords += s.collect(resp.Ads, query, repository.SourceTypeAds, country, location)
			newRecords += s.collect(resp.Shopping, query, repository.SourceTypeShopping, country, location)
		}

		if len(resp.Organic) < ResultsPerPage {
			break
		}
	}

	s.logger.Debug("Query finished",
		zap.String("query", query),
		zap.String("location", location),
		zap.Int("new_results", newRecords))

	s.CheckAndSaveCheckpoint()
	return newRecords
}

// PagesFor returns how many pages are requested for a target result count
func PagesFor(target int) int {
	pages := (target + ResultsPerPage - 1) / ResultsPerPage
	if pages < 1 {
		pages = 1
	}
	if pages > MaxPages {
		pages = MaxPages
	}
	return pages
}

func (s *WebSearcher) search(ctx context.Context, req *WebRequest) (*WebResponse, bool) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	resp, err := s.backend.Search(callCtx, req)
	if CountsAsCall(err) {
		s.apiCalls++
	}
	if err != nil {
		s.logger.Warn("Search request failed",
			zap.String("query", req.Query),
			zap.Int("page", req.Page),
			zap.Error(err))
		return nil, false
	}
	if resp == nil {
		return &WebResponse{}, true
	}

	if len(resp.RelatedSearches) > 0 {
		if _, seen := s.related[req.Query]; !seen {
			s.relatedOrder = append(s.relatedOrder, req.Query)
		}
		related := make([]string, 0, len(resp.RelatedSearches))
		for _, r := range resp.RelatedSearches {
			if r.Query != "" {
				related = append(related, r.Query)
			}
		}
		s.related[req.Query] = related
	}
	return resp, true
}

// ExtractResults turns backend items into deduplicated records
func (s *WebSearcher) ExtractResults(items []WebItem, query string, sourceType repository.SourceType, country, location string) []repository.ResultRecord {
	var records []repository.ResultRecord
	for _, item := range items {
		if item.Link == "" || !s.deduplicator.AcceptURL(item.Link) {
			continue
		}
		domain := dedup.ExtractDomain(item.Link)
		if domain != "" {
			s.deduplicator.AcceptDomain(domain)
		}
		records = append(records, repository.ResultRecord{
			Source:      repository.SourceSearch,
			SourceType:  sourceType,
			Domain:      domain,
			URL:         item.Link,
			Title:       item.Title,
			Description: item.Snippet,
			Query:       query,
			City:        location,
			Country:     strings.ToUpper(country),
			Position:    item.Position,
		})
	}
	return records
}

func (s *WebSearcher) collect(items []WebItem, query string, sourceType repository.SourceType, country, location string) int {
	if len(items) == 0 {
		return 0
	}
	records := s.ExtractResults(items, query, sourceType, country, location)
	s.results.Append(records...)
	s.typeCounts[sourceType] += len(records)
	s.cityCounts[location] += len(records)
	s.acceptedOverall += len(records)
	return len(records)
}

// SearchKeywordMultiLocation searches every template for keyword in every
// city, city-outer and template-inner.
func (s *WebSearcher) SearchKeywordMultiLocation(ctx context.Context, keyword string, templates, cities []string, opts MultiLocationOptions) int {
	if opts.ResultsPerQuery <= 0 {
		opts.ResultsPerQuery = 100
	}
	initial := s.acceptedOverall

	s.logger.Info("Keyword search started",
		zap.String("keyword", keyword),
		zap.Int("cities", len(cities)),
		zap.Int("query_variations", len(templates)),
		zap.Int("combinations", len(cities)*len(templates)))

	for cityIdx, city := range cities {
		location := LocationLabel(city, strings.ToUpper(opts.Country))
		s.logger.Info("City started",
			zap.Int("city_index", cityIdx+1),
			zap.Int("total_cities", len(cities)),
			zap.String("city", location))

		for _, template := range templates {
			if ctx.Err() != nil {
				return s.acceptedOverall - initial
			}
			query := BuildQuery(ExpandTemplate(template, keyword), city, opts.Exclusions)
			s.SearchSingleQuery(ctx, query, opts.Country, opts.Language, opts.ResultsPerQuery, location)
		}
	}

	newResults := s.acceptedOverall - initial
	s.logger.Info("Keyword search finished",
		zap.String("keyword", keyword),
		zap.Int("new_results", newResults),
		zap.Int("total_results", s.acceptedOverall),
		zap.Int("api_calls", s.apiCalls))
	return newResults
}

// ExpandTemplate fills the {keyword} placeholder of a query template
func ExpandTemplate(template, keyword string) string {
	if !strings.Contains(template, "{keyword}") {
		return template
	}
	return strings.ReplaceAll(template, "{keyword}", keyword)
}

// BuildQuery joins the query text, the city and the exclusion string
func BuildQuery(text, city, exclusions string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{text, city, exclusions} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// AutocompleteSuggestions returns the backend's suggestions for a partial
// query. Backends without autocomplete support return nothing.
func (s *WebSearcher) AutocompleteSuggestions(ctx context.Context, partial, country string) []string {
	ac, ok := s.backend.(AutocompleteBackend)
	if !ok {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	suggestions, err := ac.Autocomplete(callCtx, &AutocompleteRequest{Query: partial, Country: strings.ToLower(country)})
	if CountsAsCall(err) {
		s.apiCalls++
	}
	if err != nil {
		s.logger.Warn("Autocomplete request failed", zap.String("query", partial), zap.Error(err))
		return nil
	}
	return suggestions
}

// CheckAndSaveCheckpoint saves a checkpoint once enough records are pending
func (s *WebSearcher) CheckAndSaveCheckpoint() {
	if s.checkpoint == nil {
		return
	}
	if s.results.PendingCount() >= s.config.CheckpointInterval {
		s.SaveCheckpoint()
	}
}

// SaveCheckpoint appends the records accepted since the last checkpoint
func (s *WebSearcher) SaveCheckpoint() {
	saveCheckpoint(s.checkpoint, s.results, s.logger)
}

func saveCheckpoint(cp *Checkpoint, buf *repository.Buffer, logger *zap.Logger) {
	if cp == nil {
		return
	}
	pending := buf.Pending()
	if len(pending) == 0 {
		return
	}
	if err := cp.Append(pending); err != nil {
		logger.Warn("Checkpoint save failed", zap.Error(err))
		return
	}
	buf.MarkCheckpointed(len(pending))
	logger.Info("Checkpoint saved",
		zap.String("file", cp.Path()),
		zap.Int("new_results", len(pending)))
}

// Results returns the accumulation buffer
func (s *WebSearcher) Results() *repository.Buffer {
	return s.results
}

// CheckpointPath returns the checkpoint file, "" if none was written
func (s *WebSearcher) CheckpointPath() string {
	if s.checkpoint == nil {
		return ""
	}
	return s.checkpoint.Path()
}

func (s *WebSearcher) APICalls() int {
	return s.apiCalls
}

// Accepted returns how many records were accepted over the searcher's life
func (s *WebSearcher) Accepted() int {
	return s.acceptedOverall
}

// RelatedSearches returns captured related searches in first-seen order
func (s *WebSearcher) RelatedSearches() []RelatedSearchGroup {
	groups := make([]RelatedSearchGroup, 0, len(s.relatedOrder))
	for _, q := range s.relatedOrder {
		groups = append(groups, RelatedSearchGroup{Query: q, Related: s.related[q]})
	}
	return groups
}

type RelatedSearchGroup struct {
	Query   string
	Related []string
}

func (s *WebSearcher) Stats() SearchStats {
	return SearchStats{
		TotalResults:  s.acceptedOverall,
		Organic:       s.typeCounts[repository.SourceTypeOrganic],
		Ads:           s.typeCounts[repository.SourceTypeAds],
		Shopping:      s.typeCounts[repository.SourceTypeShopping],
		UniqueURLs:    s.deduplicator.UniqueCount(),
		UniqueDomains: s.deduplicator.UniqueDomainCount(),
		APICalls:      s.apiCalls,
		TopCities:     topCities(s.cityCounts, 10),
	}
}

func topCities(counts map[string]int, n int) []CityCount {
	out := make([]CityCount, 0, len(counts))
	for city, count := range counts {
		out = append(out, CityCount{City: city, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].City < out[j].City
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
