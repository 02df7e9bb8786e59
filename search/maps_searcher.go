package search

import (
	"context"
	"strings"

	"leadgen/dedup"
	"leadgen/repository"

	"go.uber.org/zap"
)

// MapsSearcher queries the maps backend for local businesses. Unlike the web
// searcher it does not paginate on its own; callers drive it page by page.
type MapsSearcher struct {
	backend      MapsBackend
	deduplicator *dedup.Deduplicator
	results      *repository.Buffer
	checkpoint   *Checkpoint
	config       SearcherConfig
	logger       *zap.Logger

	apiCalls        int
	cityCounts      map[string]int
	withWebsite     int
	withPhone       int
	acceptedOverall int
}

func NewMapsSearcher(backend MapsBackend, logger *zap.Logger, config SearcherConfig) *MapsSearcher {
	config = config.withDefaults()
	s := &MapsSearcher{
		backend:      backend,
		deduplicator: dedup.NewDeduplicator(),
		results:      repository.NewBuffer(),
		config:       config,
		logger:       logger.With(zap.String("source", string(repository.SourceMaps))),
		cityCounts:   make(map[string]int),
	}
	if config.CheckpointDir != "" {
		s.checkpoint = NewCheckpoint(config.CheckpointDir, "maps", repository.MapsColumns)
	}
	return s
}

// MapsQuery builds the query text sent to the maps backend
func MapsQuery(query, location string) string {
	if location == "" {
		return query
	}
	return query + " in " + location
}

// SearchMaps performs one maps call. Failures are logged and yield an empty
// response; every attempt is counted.
func (s *MapsSearcher) SearchMaps(ctx context.Context, query, location, country, language string, page int) *MapsResponse {
	if page < 1 {
		page = 1
	}
	s.apiCalls++

	callCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	resp, err := s.backend.Maps(callCtx, &MapsRequest{
		Query:    MapsQuery(query, location),
		Country:  strings.ToLower(country),
		Language: language,
		Page:     page,
	})
	if err != nil {
		s.logger.Warn("Maps request failed",
			zap.String("query", query),
			zap.String("location", location),
			zap.Int("page", page),
			zap.Error(err))
		return &MapsResponse{}
	}
	if resp == nil {
		return &MapsResponse{}
	}
	return resp
}

// ExtractMapsResults turns places into deduplicated records. Places with
// neither a website nor a place id have no identity and are skipped.
func (s *MapsSearcher) ExtractMapsResults(places []Place, query, location, country string) []repository.ResultRecord {
	var records []repository.ResultRecord
	for _, p := range places {
		identity := repository.MapsIdentity(p.Website, p.PlaceID)
		if identity == "" || !s.deduplicator.Accept(identity) {
			continue
		}

		var domain string
		if p.Website != "" {
			domain = dedup.ExtractDomain(p.Website)
			s.deduplicator.AcceptDomain(domain)
		}

		records = append(records, repository.ResultRecord{
			Source:      repository.SourceMaps,
			SourceType:  repository.SourceTypePlace,
			Domain:      domain,
			Website:     p.Website,
			Title:       p.Title,
			Address:     p.Address,
			Phone:       p.PhoneNumber,
			Rating:      p.Rating,
			ReviewCount: p.Reviews,
			Category:    p.Category,
			PlaceID:     p.PlaceID,
			Query:       query,
			City:        location,
			Country:     strings.ToUpper(country),
		})
	}
	return records
}

// SearchPage runs one externally driven maps page and buffers new records
func (s *MapsSearcher) SearchPage(ctx context.Context, task Task) int {
	location := task.Location()
	resp := s.SearchMaps(ctx, task.Query, location, task.Country, task.Language, task.Page)
	records := s.ExtractMapsResults(resp.Places, task.Query, location, task.Country)
	s.add(records, location)
	return len(records)
}

func (s *MapsSearcher) add(records []repository.ResultRecord, location string) {
	if len(records) == 0 {
		return
	}
	s.results.Append(records...)
	s.cityCounts[location] += len(records)
	s.acceptedOverall += len(records)
	for _, r := range records {
		if r.Website != "" {
			s.withWebsite++
		}
		if r.Phone != "" {
			s.withPhone++
		}
	}
}

// SearchLocation searches page 1 of every template for keyword in one city
func (s *MapsSearcher) SearchLocation(ctx context.Context, keyword string, templates []string, city string, opts MultiLocationOptions) int {
	total := 0
	for _, template := range templates {
		if ctx.Err() != nil {
			break
		}
		total += s.SearchPage(ctx, Task{
			Query:    ExpandTemplate(template, keyword),
			City:     city,
			Country:  strings.ToUpper(opts.Country),
			Language: opts.Language,
			Source:   repository.SourceMaps,
			Page:     1,
		})
	}
	s.CheckAndSaveCheckpoint()
	return total
}

// SearchKeywordMultiLocation runs SearchLocation for every city in order
func (s *MapsSearcher) SearchKeywordMultiLocation(ctx context.Context, keyword string, templates, cities []string, opts MultiLocationOptions) int {
	initial := s.acceptedOverall

	s.logger.Info("Maps keyword search started",
		zap.String("keyword", keyword),
		zap.Int("cities", len(cities)),
		zap.Int("query_variations", len(templates)))

	for cityIdx, city := range cities {
		if ctx.Err() != nil {
			break
		}
		n := s.SearchLocation(ctx, keyword, templates, city, opts)
		s.logger.Info("City finished",
			zap.Int("city_index", cityIdx+1),
			zap.Int("total_cities", len(cities)),
			zap.String("city", city),
			zap.Int("new_results", n))
	}

	newResults := s.acceptedOverall - initial
	s.logger.Info("Maps keyword search finished",
		zap.String("keyword", keyword),
		zap.Int("new_results", newResults),
		zap.Int("api_calls", s.apiCalls))
	return newResults
}

func (s *MapsSearcher) CheckAndSaveCheckpoint() {
	if s.checkpoint == nil {
		return
	}
	if s.results.PendingCount() >= s.config.CheckpointInterval {
		s.SaveCheckpoint()
	}
}

func (s *MapsSearcher) SaveCheckpoint() {
	saveCheckpoint(s.checkpoint, s.results, s.logger)
}

func (s *MapsSearcher) Results() *repository.Buffer {
	return s.results
}

func (s *MapsSearcher) CheckpointPath() string {
	if s.checkpoint == nil {
		return ""
	}
	return s.checkpoint.Path()
}

func (s *MapsSearcher) APICalls() int {
	return s.apiCalls
}

func (s *MapsSearcher) Accepted() int {
	return s.acceptedOverall
}

func (s *MapsSearcher) Stats() SearchStats {
	return SearchStats{
		TotalResults:  s.acceptedOverall,
		WithWebsite:   s.withWebsite,
		WithPhone:     s.withPhone,
		UniqueURLs:    s.deduplicator.UniqueCount(),
		UniqueDomains: s.deduplicator.UniqueDomainCount(),
		APICalls:      s.apiCalls,
		TopCities:     topCities(s.cityCounts, 10),
	}
}
