package logging

import (
	"context"

	"go.uber.org/zap"
)

type ContextKey string

const (
	CampaignIDKey ContextKey = "campaign_id"
	RequestIDKey  ContextKey = "request_id"
)

// FromContext returns baseLogger with the campaign and request ids of ctx
func FromContext(ctx context.Context, baseLogger *zap.Logger) *zap.Logger {
	logger := baseLogger

	if id := CampaignID(ctx); id != "" {
		logger = logger.With(zap.String("campaign_id", id))
	}
	if id := RequestID(ctx); id != "" {
		logger = logger.With(zap.String("request_id", id))
	}

	return logger
}

func WithCampaignID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CampaignIDKey, id)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func CampaignID(ctx context.Context) string {
	id, _ := ctx.Value(CampaignIDKey).(string)
	return id
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
