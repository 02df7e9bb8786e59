package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"leadgen/repository"
)

// Runs against a real database when TEST_DATABASE_URL is set
func newTestStore(t *testing.T) *CampaignStore {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := NewClient(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCampaignStore_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateCampaign(ctx, &repository.Campaign{
		Sector:     "dentists",
		Countries:  []string{"PT"},
		Queries:    []string{"dentist"},
		SearchType: "both",
		StartedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}

	rating := 4.8
	records := []repository.ResultRecord{
		{Source: repository.SourceSearch, SourceType: repository.SourceTypeOrganic, URL: "https://a.pt", Domain: "a.pt", Query: "dentist", City: "Porto, PT"},
		{Source: repository.SourceMaps, SourceType: repository.SourceTypePlace, PlaceID: "p1", Rating: &rating, Query: "dentist", City: "Porto, PT"},
	}
	n, err := store.InsertResults(ctx, id, records)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 inserted, got %d, %v", n, err)
	}

	if err := store.UpdateCampaign(ctx, id, repository.CampaignSummary{Status: repository.StatusCompleted, TotalResults: 2}); err != nil {
		t.Fatalf("failed to update campaign: %v", err)
	}

	got, err := store.GetResults(ctx, id, 10)
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 results, got %d, %v", len(got), err)
	}
	if got[1].Rating == nil || *got[1].Rating != rating || got[1].ReviewCount != nil {
		t.Errorf("unexpected place record: %+v", got[1])
	}

	if _, err := store.GetResults(ctx, "00000000-0000-0000-0000-000000000000", 10); !errors.Is(err, repository.ErrCampaignNotFound) {
		t.Errorf("expected ErrCampaignNotFound, got %v", err)
	}
}
