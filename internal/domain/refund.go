package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundType classifies a calculation as full or partial.
type RefundType string

const (
	RefundTypeFull    RefundType = "FULL"
	RefundTypePartial RefundType = "PARTIAL"
)

// RefundLineItem is one {line item, quantity} refund target.
type RefundLineItem struct {
	LineItemID string `json:"lineItemId"`
	Quantity   int    `json:"quantity"`
}

// RefundTransaction is one per-tender allocation of the refund total.
type RefundTransaction struct {
	ParentTransactionID string          `json:"parentTransactionId"`
	Gateway             string          `json:"gateway"`
	Kind                string          `json:"kind"`
	Amount              decimal.Decimal `json:"amount"`
}

// RefundCalculation is the ephemeral result of the calculator, consumed
// immediately by the mutation step and never persisted.
type RefundCalculation struct {
	Type          RefundType
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	Tax           decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	Currency      string
	IsLastPartial bool
	LineItems     []RefundLineItem
	Transactions  []RefundTransaction
}

// HasTransactions reports whether any tender qualified for allocation.
// An empty list signals the orchestrator to skip the shipment.
func (c *RefundCalculation) HasTransactions() bool {
	return len(c.Transactions) > 0
}

// RefundResult is the outcome of an executed (or dry-run) refund mutation.
type RefundResult struct {
	ID            string    `json:"id"`
	OrderName     string    `json:"orderName"`
	TotalRefunded Money     `json:"totalRefunded"`
	CreatedAt     time.Time `json:"createdAt"`
	DryRun        bool      `json:"dryRun"`
}
