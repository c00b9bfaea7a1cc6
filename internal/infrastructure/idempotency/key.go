package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	json "github.com/goccy/go-json"
)

// Key derives the deterministic fingerprint of an operation: a stable
// hash over the canonical serialization of order id, operation name and
// the sorted discriminator pairs. Identical inputs always produce the
// same key; any differing discriminator changes it.
func Key(orderID, operation string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([][2]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, [2]string{name, params[name]})
	}

	canonical, _ := json.Marshal(struct {
		OrderID   string      `json:"order_id"`
		Operation string      `json:"operation"`
		Params    [][2]string `json:"params"`
	}{orderID, operation, pairs})

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16]
}
