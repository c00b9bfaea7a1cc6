package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"refund-automation/pkg/logger"
)

// Event types recorded in the audit trail.
const (
	EventRefundInitiated   = "refund_initiated"
	EventRefundCompleted   = "refund_completed"
	EventRefundFailed      = "refund_failed"
	EventOrderSkipped      = "order_skipped"
	EventDuplicateDetected = "duplicate_detected"
	EventAPIRequest        = "api_request"
	EventErrorEscalated    = "error_escalated"
)

// Entry is one audit record, serialized as a single JSON line.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	RequestID string         `json:"request_id"`
	Event     string         `json:"event"`
	OrderID   string         `json:"order_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Trail appends JSONL entries to a daily file. Dry-run trails get a
// filename prefix so rehearsal records never mix with live ones.
type Trail struct {
	mu        sync.Mutex
	dir       string
	requestID string
	dryRun    bool
	enabled   bool
}

func NewTrail(dir, requestID string, dryRun, enabled bool) (*Trail, error) {
	t := &Trail{
		dir:       dir,
		requestID: requestID,
		dryRun:    dryRun,
		enabled:   enabled,
	}
	if !enabled {
		return t, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return t, nil
}

func (t *Trail) filename() string {
	name := fmt.Sprintf("audit_%s.jsonl", time.Now().UTC().Format("2006-01-02"))
	if t.dryRun {
		name = "dry_run." + name
	}
	return filepath.Join(t.dir, name)
}

// Record appends one entry. Audit failures are logged, never fatal.
func (t *Trail) Record(event, orderID string, details map[string]any) {
	if t == nil || !t.enabled {
		return
	}
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: t.requestID,
		Event:     event,
		OrderID:   orderID,
		Details:   details,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		logger.Error().Err(err).Str("event", event).Msg("Audit entry marshal failed")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.filename(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Error().Err(err).Msg("Audit file open failed")
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		logger.Error().Err(err).Msg("Audit entry write failed")
	}
}

// RefundInitiated records the start of a refund attempt.
func (t *Trail) RefundInitiated(orderID, shipmentID, refundType, amount string) {
	t.Record(EventRefundInitiated, orderID, map[string]any{
		"return_shipment_id": shipmentID,
		"refund_type":        refundType,
		"amount":             amount,
	})
}

// RefundCompleted records a successful refund with the created refund ID.
func (t *Trail) RefundCompleted(orderID, shipmentID, refundID, amount string) {
	t.Record(EventRefundCompleted, orderID, map[string]any{
		"return_shipment_id": shipmentID,
		"refund_id":          refundID,
		"amount":             amount,
	})
}

// RefundFailed records a terminal refund failure.
func (t *Trail) RefundFailed(orderID, shipmentID, reason string) {
	t.Record(EventRefundFailed, orderID, map[string]any{
		"return_shipment_id": shipmentID,
		"reason":             reason,
	})
}

// OrderSkipped records a rejection with the validator's reason and details.
func (t *Trail) OrderSkipped(orderID, shipmentID, reason string, details map[string]any) {
	merged := map[string]any{
		"return_shipment_id": shipmentID,
		"reason":             reason,
	}
	for k, v := range details {
		merged[k] = v
	}
	t.Record(EventOrderSkipped, orderID, merged)
}

// DuplicateDetected records an idempotency hit.
func (t *Trail) DuplicateDetected(orderID, key string) {
	t.Record(EventDuplicateDetected, orderID, map[string]any{
		"idempotency_key": key,
	})
}

// APIInteraction records an outbound mutation against a remote service.
func (t *Trail) APIInteraction(orderID, service, operation string, success bool) {
	t.Record(EventAPIRequest, orderID, map[string]any{
		"service":   service,
		"operation": operation,
		"success":   success,
	})
}

// ErrorEscalated records an error requiring operator attention.
func (t *Trail) ErrorEscalated(orderID, message string) {
	t.Record(EventErrorEscalated, orderID, map[string]any{
		"message": message,
	})
}
