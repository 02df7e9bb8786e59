package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := New(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("campaign started", zap.String("campaign_id", "c1"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"campaign_id":"c1"`) {
		t.Errorf("expected the field in the log file, got %s", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Errorf("expected debug entries to be filtered")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Errorf("expected an error for an invalid level")
	}
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := WithRequestID(WithCampaignID(context.Background(), "c42"), "r1")
	FromContext(ctx, base).Info("hello")
	FromContext(context.Background(), base).Info("bare")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["campaign_id"] != "c42" || fields["request_id"] != "r1" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if len(entries[1].ContextMap()) != 0 {
		t.Errorf("expected no fields without ids, got %v", entries[1].ContextMap())
	}
}
