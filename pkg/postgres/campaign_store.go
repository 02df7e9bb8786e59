package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadgen/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id UUID PRIMARY KEY,
	sector TEXT NOT NULL DEFAULT '',
	countries TEXT[] NOT NULL DEFAULT '{}',
	queries TEXT[] NOT NULL DEFAULT '{}',
	search_type TEXT NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	total_results INTEGER NOT NULL DEFAULT 0,
	api_calls_used INTEGER NOT NULL DEFAULT 0,
	csv_filename TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS results (
	id BIGSERIAL PRIMARY KEY,
	campaign_id UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	source_type TEXT NOT NULL DEFAULT '',
	domain TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	rating DOUBLE PRECISION,
	review_count INTEGER,
	category TEXT NOT NULL DEFAULT '',
	place_id TEXT NOT NULL DEFAULT '',
	query TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS results_campaign_id_idx ON results (campaign_id);
`

var resultColumns = []string{
	"campaign_id", "source", "source_type", "domain", "url", "website", "title",
	"description", "address", "phone", "rating", "review_count", "category",
	"place_id", "query", "city", "country", "position",
}

type CampaignStore struct {
	pool *pgxpool.Pool
}

// NewClient connects to PostgreSQL and creates the schema when missing
func NewClient(ctx context.Context, dbURL string) (*CampaignStore, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to create schema: %w", err)
	}

	return &CampaignStore{pool: pool}, nil
}

func (s *CampaignStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *CampaignStore) CreateCampaign(ctx context.Context, c *repository.Campaign) (string, error) {
	query := `
		INSERT INTO campaigns (id, sector, countries, queries, search_type, status, notes, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := c.Status
	if status == "" {
		status = repository.StatusRunning
	}

	startedAt := c.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	err := s.pool.QueryRow(ctx, query, id, c.Sector, nonNil(c.Countries), nonNil(c.Queries),
		c.SearchType, string(status), c.Notes, startedAt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("unable to insert campaign: %w", err)
	}
	return id, nil
}

// InsertResults copies records in one statement, so a batch is stored
// completely or not at all
func (s *CampaignStore) InsertResults(ctx context.Context, campaignID string, records []repository.ResultRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		r := records[i]
		return []any{
			campaignID, string(r.Source), string(r.SourceType), r.Domain, r.URL,
			r.Website, r.Title, r.Description, r.Address, r.Phone, r.Rating,
			r.ReviewCount, r.Category, r.PlaceID, r.Query, r.City, r.Country,
			r.Position,
		}, nil
	})

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"results"}, resultColumns, rows)
	if err != nil {
		return 0, fmt.Errorf("unable to insert results: %w", err)
	}
	return int(n), nil
}

func (s *CampaignStore) UpdateCampaign(ctx context.Context, campaignID string, summary repository.CampaignSummary) error {
	query := `
		UPDATE campaigns
		SET status = $1, total_results = $2, api_calls_used = $3, csv_filename = $4,
			completed_at = CASE WHEN $1 = 'running' THEN NULL ELSE now() END
		WHERE id = $5
	`

	tag, err := s.pool.Exec(ctx, query, string(summary.Status), summary.TotalResults,
		summary.APICallsUsed, summary.CSVFilename, campaignID)
	if err != nil {
		return fmt.Errorf("unable to update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrCampaignNotFound
	}
	return nil
}

func (s *CampaignStore) UpdateResultCount(ctx context.Context, campaignID string, total int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE campaigns SET total_results = $1 WHERE id = $2`, total, campaignID)
	if err != nil {
		return fmt.Errorf("unable to update result count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrCampaignNotFound
	}
	return nil
}

func (s *CampaignStore) ListCampaigns(ctx context.Context, limit int) ([]repository.Campaign, error) {
	query := `
		SELECT id, sector, countries, queries, search_type, status, notes,
			total_results, api_calls_used, csv_filename, started_at, completed_at
		FROM campaigns
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("unable to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []repository.Campaign
	for rows.Next() {
		var c repository.Campaign
		var status string
		err := rows.Scan(&c.ID, &c.Sector, &c.Countries, &c.Queries, &c.SearchType,
			&status, &c.Notes, &c.TotalResults, &c.APICallsUsed, &c.CSVFilename,
			&c.StartedAt, &c.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan campaign: %w", err)
		}
		c.Status = repository.CampaignStatus(status)
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *CampaignStore) GetResults(ctx context.Context, campaignID string, limit int) ([]repository.ResultRecord, error) {
	if _, err := uuid.Parse(campaignID); err != nil {
		return nil, repository.ErrCampaignNotFound
	}

	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, campaignID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("unable to look up campaign: %w", err)
	}
	if !exists {
		return nil, repository.ErrCampaignNotFound
	}

	query := `
		SELECT source, source_type, domain, url, website, title, description, address,
			phone, rating, review_count, category, place_id, query, city, country, position
		FROM results
		WHERE campaign_id = $1
		ORDER BY id
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, campaignID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("unable to get results: %w", err)
	}
	defer rows.Close()

	var records []repository.ResultRecord
	for rows.Next() {
		var r repository.ResultRecord
		var source, sourceType string
		err := rows.Scan(&source, &sourceType, &r.Domain, &r.URL, &r.Website, &r.Title,
			&r.Description, &r.Address, &r.Phone, &r.Rating, &r.ReviewCount, &r.Category,
			&r.PlaceID, &r.Query, &r.City, &r.Country, &r.Position)
		if err != nil {
			return nil, fmt.Errorf("unable to scan result: %w", err)
		}
		r.Source = repository.Source(source)
		r.SourceType = repository.SourceType(sourceType)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *CampaignStore) Stats(ctx context.Context) (repository.StoreStats, error) {
	query := `
		SELECT
			(SELECT count(*) FROM campaigns),
			(SELECT count(*) FROM results),
			(SELECT count(*) FROM campaigns WHERE status = 'completed')
	`

	var stats repository.StoreStats
	err := s.pool.QueryRow(ctx, query).Scan(&stats.TotalCampaigns, &stats.TotalResults, &stats.CompletedCampaigns)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return stats, fmt.Errorf("unable to get stats: %w", err)
	}
	return stats, nil
}

func (s *CampaignStore) Close() error {
	s.pool.Close()
	return nil
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no limit
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ repository.CampaignStore = (*CampaignStore)(nil)
