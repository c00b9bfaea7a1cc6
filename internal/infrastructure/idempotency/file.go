package idempotency

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	gocache "github.com/patrickmn/go-cache"

	"refund-automation/internal/domain"
	"refund-automation/pkg/logger"
)

const fileName = "idempotency_cache.json"

// FileStore keeps entries in a TTL cache and persists the whole set to a
// JSON file on every mutation. Dry-run stores use a prefixed filename so
// rehearsal keys never suppress live refunds. Single-process only: the
// load-then-save cycle is not safe across concurrent runs (use the bolt
// backend for that).
type FileStore struct {
	mu     sync.Mutex
	cache  *gocache.Cache
	path   string
	ttl    time.Duration
	dryRun bool
	save   bool
}

func NewFileStore(dir string, ttl time.Duration, dryRun, saveEnabled bool) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create idempotency dir: %w", err)
	}
	name := fileName
	if dryRun {
		name = "dry_run." + name
	}
	s := &FileStore{
		cache:  gocache.New(ttl, 10*time.Minute),
		path:   filepath.Join(dir, name),
		ttl:    ttl,
		dryRun: dryRun,
		save:   saveEnabled,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the persisted entries, purging anything expired.
func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read idempotency file: %w", err)
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode idempotency file: %w", err)
	}

	now := time.Now().UTC()
	purged := 0
	for key, entry := range entries {
		if entry.expired(s.ttl, now) {
			purged++
			continue
		}
		ts, _ := time.Parse(time.RFC3339, entry.Timestamp)
		s.cache.Set(key, entry, s.ttl-now.Sub(ts))
	}
	if purged > 0 {
		logger.Info().Int("purged", purged).Msg("Purged expired idempotency entries")
	}
	return nil
}

// persist writes every live entry back to disk wholesale.
func (s *FileStore) persist() error {
	if !s.save {
		return nil
	}
	entries := make(map[string]Entry)
	for key, item := range s.cache.Items() {
		if entry, ok := item.Object.(Entry); ok {
			entries[key] = entry
		}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode idempotency entries: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write idempotency file: %w", err)
	}
	return nil
}

func (s *FileStore) Check(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.cache.Get(key)
	return found, nil
}

func (s *FileStore) MarkCompleted(key, orderID, operation, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, Entry{
		Key:       key,
		OrderID:   orderID,
		Operation: operation,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DryRun:    s.dryRun,
		Result:    result,
	}, s.ttl)
	return s.persist()
}

func (s *FileStore) Invalidate(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
	return s.persist()
}

func (s *FileStore) Stats() (domain.StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats domain.StoreStats
	for _, item := range s.cache.Items() {
		entry, ok := item.Object.(Entry)
		if !ok {
			continue
		}
		stats.Total++
		if entry.DryRun {
			stats.DryRun++
		} else {
			stats.Live++
		}
	}
	return stats, nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}
