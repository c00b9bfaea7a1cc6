package idempotency

import "time"

// Entry is one completed-operation record.
type Entry struct {
	Key       string `json:"key"`
	OrderID   string `json:"order_id"`
	Operation string `json:"operation"`
	Timestamp string `json:"timestamp"`
	DryRun    bool   `json:"dry_run"`
	Result    string `json:"result,omitempty"`
}

// expired reports whether the entry is older than ttl. Entries with
// unparsable timestamps count as expired so they get purged.
func (e Entry) expired(ttl time.Duration, now time.Time) bool {
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return true
	}
	return now.Sub(ts) >= ttl
}
