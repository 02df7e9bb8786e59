package repository

import (
	"context"
	"errors"
	"time"
)

var (
	ErrStoreOffline     = errors.New("campaign store offline")
	ErrCampaignNotFound = errors.New("campaign not found")
)

type CampaignStatus string

const (
	StatusRunning     CampaignStatus = "running"
	StatusCompleted   CampaignStatus = "completed"
	StatusInterrupted CampaignStatus = "interrupted"
	StatusFailed      CampaignStatus = "failed"
)

type Campaign struct {
	ID           string         `json:"id"`
	Sector       string         `json:"sector"`
	Countries    []string       `json:"countries"`
	Queries      []string       `json:"queries"`
	SearchType   string         `json:"search_type"`
	Status       CampaignStatus `json:"status"`
	Notes        string         `json:"notes,omitempty"`
	TotalResults int            `json:"total_results"`
	APICallsUsed int            `json:"api_calls_used"`
	CSVFilename  string         `json:"csv_filename,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

type CampaignSummary struct {
	Status       CampaignStatus
	TotalResults int
	APICallsUsed int
	CSVFilename  string
}

type StoreStats struct {
	TotalCampaigns     int `json:"total_searches"`
	TotalResults       int `json:"total_results"`
	CompletedCampaigns int `json:"completed_searches"`
}

// CampaignStore is the durable sink for campaigns and their result rows
type CampaignStore interface {
	Ping(ctx context.Context) error
	CreateCampaign(ctx context.Context, c *Campaign) (string, error)
	InsertResults(ctx context.Context, campaignID string, records []ResultRecord) (int, error)
	UpdateCampaign(ctx context.Context, campaignID string, summary CampaignSummary) error
	UpdateResultCount(ctx context.Context, campaignID string, total int) error
	ListCampaigns(ctx context.Context, limit int) ([]Campaign, error)
	GetResults(ctx context.Context, campaignID string, limit int) ([]ResultRecord, error)
	Stats(ctx context.Context) (StoreStats, error)
	Close() error
}
