package idempotency

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestFileStoreCheckMarkInvalidate(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), time.Hour, false, true)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	key := Key("order-1", "refund", map[string]string{"return_id": "R1"})

	if done, _ := store.Check(key); done {
		t.Fatal("fresh store reported key as completed")
	}
	if err := store.MarkCompleted(key, "order-1", "refund", "gid://shopify/Refund/1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if done, _ := store.Check(key); !done {
		t.Fatal("marked key not reported as completed")
	}
	if err := store.Invalidate(key); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if done, _ := store.Check(key); done {
		t.Fatal("invalidated key still reported as completed")
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key := Key("order-1", "refund", nil)

	store, err := NewFileStore(dir, time.Hour, false, true)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.MarkCompleted(key, "order-1", "refund", "r1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewFileStore(dir, time.Hour, false, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if done, _ := reopened.Check(key); !done {
		t.Fatal("entry lost across reopen")
	}
}

func TestFileStorePurgesExpiredOnLoad(t *testing.T) {
	dir := t.TempDir()
	stale := map[string]Entry{
		"oldkey": {
			Key:       "oldkey",
			OrderID:   "order-1",
			Operation: "refund",
			Timestamp: time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339),
		},
		"freshkey": {
			Key:       "freshkey",
			OrderID:   "order-2",
			Operation: "refund",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "idempotency_cache.json"), data, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	store, err := NewFileStore(dir, 24*time.Hour, false, true)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	if done, _ := store.Check("oldkey"); done {
		t.Error("expired entry survived the load purge")
	}
	if done, _ := store.Check("freshkey"); !done {
		t.Error("fresh entry dropped during load")
	}
}

func TestFileStoreDryRunIsolation(t *testing.T) {
	dir := t.TempDir()
	key := Key("order-1", "refund", nil)

	dry, err := NewFileStore(dir, time.Hour, true, true)
	if err != nil {
		t.Fatalf("dry store: %v", err)
	}
	if err := dry.MarkCompleted(key, "order-1", "refund", "dry"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	dry.Close()

	live, err := NewFileStore(dir, time.Hour, false, true)
	if err != nil {
		t.Fatalf("live store: %v", err)
	}
	defer live.Close()
	if done, _ := live.Check(key); done {
		t.Fatal("dry-run entry visible to the live store")
	}
}

func TestFileStoreStats(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), time.Hour, true, false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	store.MarkCompleted("k1", "o1", "refund", "")
	store.MarkCompleted("k2", "o2", "refund", "")

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.DryRun != 2 || stats.Live != 0 {
		t.Errorf("stats = %+v, want total 2, dry-run 2, live 0", stats)
	}
}
