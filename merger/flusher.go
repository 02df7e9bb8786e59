package merger

import (
	"context"
	"fmt"

	"leadgen/repository"

	"go.uber.org/zap"
)

const DefaultChunkSize = 500

// Sink receives flushed records
type Sink interface {
	InsertResults(ctx context.Context, campaignID string, records []repository.ResultRecord) (int, error)
}

// Flusher persists buffered records for one campaign and clears the buffer
type Flusher struct {
	sink       Sink
	campaignID string
	chunkSize  int
	flushed    int
	logger     *zap.Logger
}

func NewFlusher(sink Sink, campaignID string, logger *zap.Logger) *Flusher {
	return &Flusher{
		sink:       sink,
		campaignID: campaignID,
		chunkSize:  DefaultChunkSize,
		logger:     logger,
	}
}

// Flush persists every buffered record in chunks, then empties the buffer.
// When a chunk fails, the chunks already persisted are dropped from the
// buffer and the rest stays for a later attempt.
func (f *Flusher) Flush(ctx context.Context, buf *repository.Buffer) (int, error) {
	records := buf.Items()
	if len(records) == 0 {
		return 0, nil
	}

	saved := 0
	for start := 0; start < len(records); start += f.chunkSize {
		end := min(start+f.chunkSize, len(records))
		n, err := f.sink.InsertResults(ctx, f.campaignID, records[start:end])
		if err != nil {
			buf.Drop(saved)
			f.flushed += saved
			return saved, fmt.Errorf("failed to flush results: %w", err)
		}
		saved += end - start
		f.logger.Debug("Chunk flushed",
			zap.String("campaign_id", f.campaignID),
			zap.Int("inserted", n),
			zap.Int("progress", saved),
			zap.Int("total", len(records)))
	}

	buf.Drop(len(records))
	f.flushed += saved
	f.logger.Info("Results flushed",
		zap.String("campaign_id", f.campaignID),
		zap.Int("count", saved),
		zap.Int("flushed_total", f.flushed))
	return saved, nil
}

// Flushed returns the number of records persisted over the flusher's life
func (f *Flusher) Flushed() int {
	return f.flushed
}
