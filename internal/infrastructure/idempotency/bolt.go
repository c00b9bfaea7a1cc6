package idempotency

import (
	"fmt"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"
	json "github.com/goccy/go-json"

	"refund-automation/internal/domain"
	"refund-automation/pkg/logger"
)

const boltBucket = "operations"

// BoltStore persists entries in an embedded BoltDB file. Every check and
// write runs inside a database transaction, which also gives safe
// check-and-set semantics when more than one process shares the file.
type BoltStore struct {
	db     *bolt.DB
	ttl    time.Duration
	dryRun bool
}

func NewBoltStore(dir string, ttl time.Duration, dryRun bool) (*BoltStore, error) {
	name := "idempotency.db"
	if dryRun {
		name = "dry_run." + name
	}
	db, err := bolt.Open(filepath.Join(dir, name), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open idempotency db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db, ttl: ttl, dryRun: dryRun}
	if err := s.purgeExpired(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// purgeExpired removes stale entries on startup, mirroring the file
// backend's lazy expiry.
func (s *BoltStore) purgeExpired() error {
	now := time.Now().UTC()
	purged := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil || entry.expired(s.ttl, now) {
				if err := c.Delete(); err != nil {
					return err
				}
				purged++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("purge expired entries: %w", err)
	}
	if purged > 0 {
		logger.Info().Int("purged", purged).Msg("Purged expired idempotency entries")
	}
	return nil
}

func (s *BoltStore) Check(key string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(boltBucket)).Get([]byte(key))
		if v == nil {
			return nil
		}
		var entry Entry
		if err := json.Unmarshal(v, &entry); err != nil {
			return err
		}
		found = !entry.expired(s.ttl, time.Now().UTC())
		return nil
	})
	return found, err
}

func (s *BoltStore) MarkCompleted(key, orderID, operation, result string) error {
	entry := Entry{
		Key:       key,
		OrderID:   orderID,
		Operation: operation,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DryRun:    s.dryRun,
		Result:    result,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), data)
	})
}

func (s *BoltStore) Invalidate(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete([]byte(key))
	})
}

func (s *BoltStore) Stats() (domain.StoreStats, error) {
	var stats domain.StoreStats
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).ForEach(func(_, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return nil
			}
			stats.Total++
			if entry.DryRun {
				stats.DryRun++
			} else {
				stats.Live++
			}
			return nil
		})
	})
	return stats, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
