package domain

import "context"

// OrderSource supplies the eligible orders and their correlated tracking
// records, fully populated. The core performs no further enrichment.
type OrderSource interface {
	Retrieve(ctx context.Context) ([]Order, map[string]*TrackingRecord, error)
}

// RefundExecutor issues the refund mutation against the remote platform.
type RefundExecutor interface {
	ExecuteRefund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// RefundRequest carries everything the mutation needs.
type RefundRequest struct {
	OrderID      string
	OrderName    string
	Note         string
	Currency     string
	FullShipping bool
	Shipping     Money
	LineItems    []RefundLineItem
	Transactions []RefundTransaction
}

// ReturnCloser closes a return shipment after its refund succeeds.
type ReturnCloser interface {
	CloseReturn(ctx context.Context, returnID string) error
}

// Notifier delivers operator-facing messages. Fire-and-forget: failures
// must never abort refund processing.
type Notifier interface {
	Info(msg string, details map[string]string)
	Success(msg string, details map[string]string)
	Warn(msg string, details map[string]string)
	Error(msg string, details map[string]string, requestID string)
}

// IdempotencyStore records completed operations so they never run twice
// while unexpired.
type IdempotencyStore interface {
	Check(key string) (bool, error)
	MarkCompleted(key, orderID, operation, result string) error
	Invalidate(key string) error
	Stats() (StoreStats, error)
	Close() error
}

// StoreStats summarizes the idempotency store for the startup log.
type StoreStats struct {
	Total  int `json:"total"`
	DryRun int `json:"dry_run"`
	Live   int `json:"live"`
}
