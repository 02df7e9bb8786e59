package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"leadgen/repository"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	campaignsBucket = []byte("campaigns")
	resultsBucket   = []byte("results")
)

// CampaignStore keeps campaigns and results in a local bbolt file. Results
// live in one nested bucket per campaign, keyed by insertion sequence.
type CampaignStore struct {
	path string
	db   *bolt.DB
	mu   sync.RWMutex
	now  func() time.Time
}

func Open(path string) (*CampaignStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{campaignsBucket, resultsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &CampaignStore{path: path, db: db, now: time.Now}, nil
}

func (s *CampaignStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return repository.ErrStoreOffline
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(campaignsBucket) == nil {
			return repository.ErrStoreOffline
		}
		return nil
	})
}

func (s *CampaignStore) CreateCampaign(ctx context.Context, c *repository.Campaign) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return "", repository.ErrStoreOffline
	}
	stored := *c
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Status == "" {
		stored.Status = repository.StatusRunning
	}
	if stored.StartedAt.IsZero() {
		stored.StartedAt = s.now()
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.Bucket(resultsBucket).CreateBucketIfNotExists([]byte(stored.ID)); err != nil {
			return err
		}
		return putCampaign(tx, &stored)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create campaign: %w", err)
	}
	return stored.ID, nil
}

func (s *CampaignStore) InsertResults(ctx context.Context, campaignID string, records []repository.ResultRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, repository.ErrStoreOffline
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(resultsBucket).Bucket([]byte(campaignID))
		if b == nil {
			return repository.ErrCampaignNotFound
		}
		for i := range records {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(&records[i])
			if err != nil {
				return err
			}
			if err := b.Put(seqKey(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert results: %w", err)
	}
	return len(records), nil
}

func (s *CampaignStore) UpdateCampaign(ctx context.Context, campaignID string, summary repository.CampaignSummary) error {
	return s.updateCampaign(campaignID, func(c *repository.Campaign) {
		c.Status = summary.Status
		c.TotalResults = summary.TotalResults
		c.APICallsUsed = summary.APICallsUsed
		c.CSVFilename = summary.CSVFilename
		if summary.Status != repository.StatusRunning {
			done := s.now()
			c.CompletedAt = &done
		}
	})
}

func (s *CampaignStore) UpdateResultCount(ctx context.Context, campaignID string, total int) error {
	return s.updateCampaign(campaignID, func(c *repository.Campaign) {
		c.TotalResults = total
	})
}

func (s *CampaignStore) updateCampaign(campaignID string, fn func(c *repository.Campaign)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return repository.ErrStoreOffline
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		c, err := getCampaign(tx, campaignID)
		if err != nil {
			return err
		}
		fn(c)
		return putCampaign(tx, c)
	})
}

func (s *CampaignStore) ListCampaigns(ctx context.Context, limit int) ([]repository.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, repository.ErrStoreOffline
	}
	var campaigns []repository.Campaign
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(campaignsBucket).ForEach(func(_, v []byte) error {
			var c repository.Campaign
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			campaigns = append(campaigns, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].StartedAt.After(campaigns[j].StartedAt)
	})
	if limit > 0 && len(campaigns) > limit {
		campaigns = campaigns[:limit]
	}
	return campaigns, nil
}

func (s *CampaignStore) GetResults(ctx context.Context, campaignID string, limit int) ([]repository.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, repository.ErrStoreOffline
	}
	var records []repository.ResultRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(resultsBucket).Bucket([]byte(campaignID))
		if b == nil {
			return repository.ErrCampaignNotFound
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var r repository.ResultRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *CampaignStore) Stats(ctx context.Context) (repository.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats repository.StoreStats
	if s.db == nil {
		return stats, repository.ErrStoreOffline
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		results := tx.Bucket(resultsBucket)
		return tx.Bucket(campaignsBucket).ForEach(func(k, v []byte) error {
			var c repository.Campaign
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			stats.TotalCampaigns++
			if c.Status == repository.StatusCompleted {
				stats.CompletedCampaigns++
			}
			if b := results.Bucket(k); b != nil {
				stats.TotalResults += b.Stats().KeyN
			}
			return nil
		})
	})
	if err != nil {
		return stats, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}

func (s *CampaignStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func getCampaign(tx *bolt.Tx, id string) (*repository.Campaign, error) {
	v := tx.Bucket(campaignsBucket).Get([]byte(id))
	if v == nil {
		return nil, repository.ErrCampaignNotFound
	}
	var c repository.Campaign
	if err := json.Unmarshal(v, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func putCampaign(tx *bolt.Tx, c *repository.Campaign) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return tx.Bucket(campaignsBucket).Put([]byte(c.ID), data)
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

var _ repository.CampaignStore = (*CampaignStore)(nil)
