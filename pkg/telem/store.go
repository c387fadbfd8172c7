// Package telem keeps a history of decision cycles in a small bbolt file.
// The controller only ever writes here; history never feeds decisions, so
// the controller stays stateless across invocations.
package telem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/logx"
)

var bucketCycles = []byte("cycles")

// Store is an append-only cycle history with time-based retention.
type Store struct {
	db        *bolt.DB
	retention time.Duration
	logger    *logx.Logger
}

// NewStore opens (or creates) the history database at path.
func NewStore(path string, retentionHours int, logger *logx.Logger) (*Store, error) {
	if retentionHours < 1 {
		return nil, fmt.Errorf("retention must be at least 1 hour, got %d", retentionHours)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCycles)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	return &Store{
		db:        db,
		retention: time.Duration(retentionHours) * time.Hour,
		logger:    logger,
	}, nil
}

// Append records one cycle and prunes entries older than the retention
// window. Keys are RFC3339Nano timestamps, so the bucket iterates in time
// order.
func (s *Store) Append(rec *pkg.CycleRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode cycle record: %w", err)
	}
	cutoff := []byte(rec.Timestamp.Add(-s.retention).UTC().Format(time.RFC3339Nano))

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCycles)
		key := []byte(rec.Timestamp.UTC().Format(time.RFC3339Nano))
		if err := b.Put(key, data); err != nil {
			return err
		}

		c := b.Cursor()
		for k, _ := c.First(); k != nil && string(k) < string(cutoff); k, _ = c.First() {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to n most recent cycle records, newest first.
func (s *Store) Recent(n int) ([]*pkg.CycleRecord, error) {
	var records []*pkg.CycleRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCycles).Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			var rec pkg.CycleRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				s.logger.Warn("Skipping corrupt history record", "key", string(k), "error", err)
				continue
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cycle history: %w", err)
	}
	return records, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
