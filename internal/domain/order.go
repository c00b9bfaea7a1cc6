package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Return shipment statuses (reverse fulfillment lifecycle).
const (
	ReturnStatusOpen     = "OPEN"
	ReturnStatusClosed   = "CLOSED"
	ReturnStatusRefunded = "REFUNDED"
)

// Suggested-transaction kinds accepted as refund sources, and the kind
// every issued refund transaction carries.
const (
	TransactionKindSale            = "SALE"
	TransactionKindSuggestedRefund = "SUGGESTED_REFUND"
	TransactionKindRefund          = "REFUND"
)

// Dispute initiation type and status that place a refund hold. A
// resolved dispute, whatever its outcome, no longer blocks refunds.
const (
	DisputeTypeChargeback = "chargeback"
	DisputeStatusOpen     = "open"
)

type Order struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	TotalPrice            Money            `json:"totalPrice"`
	TotalShipping         Money            `json:"totalShipping"`
	TotalRefundedShipping Money            `json:"totalRefundedShipping"`
	Tags                  []string         `json:"tags"`
	LineItems             []LineItem       `json:"lineItems"`
	Refunds               []RefundRecord   `json:"refunds"`
	Returns               []ReturnShipment `json:"returns"`
	Disputes              []Dispute        `json:"disputes"`
	SuggestedRefund       SuggestedRefund  `json:"suggestedRefund"`
}

type LineItem struct {
	ID                  string            `json:"id"`
	Quantity            int               `json:"quantity"`
	RefundableQuantity  int               `json:"refundableQuantity"`
	OriginalTotal       decimal.Decimal   `json:"originalTotal"`
	DiscountAllocations []decimal.Decimal `json:"discountAllocations"`
	TaxLines            []TaxLine         `json:"taxLines"`
}

type TaxLine struct {
	Title  string          `json:"title"`
	Amount decimal.Decimal `json:"amount"`
}

// RefundRecord is a prior refund on the order. A nil CreatedAt marks a
// pending record that has not been executed yet.
type RefundRecord struct {
	ID            string          `json:"id"`
	CreatedAt     *time.Time      `json:"createdAt"`
	TotalRefunded decimal.Decimal `json:"totalRefunded"`
}

type ReturnShipment struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Status            string            `json:"status"`
	ReturnLineItems   []ReturnLineItem  `json:"returnLineItems"`
	ReverseDeliveries []ReverseDelivery `json:"reverseDeliveries"`
}

type ReturnLineItem struct {
	LineItemID         string `json:"lineItemId"`
	Quantity           int    `json:"quantity"`
	RefundableQuantity int    `json:"refundableQuantity"`
}

type ReverseDelivery struct {
	ID       string      `json:"id"`
	Tracking TrackingRef `json:"tracking"`
}

type TrackingRef struct {
	Carrier string `json:"carrierName"`
	Number  string `json:"number"`
}

type Dispute struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	InitiatedAs string `json:"initiatedAs"`
}

// SuggestedRefund is the platform-precomputed full-refund snapshot. Its
// transactions are the source of truth for which tenders can be refunded.
type SuggestedRefund struct {
	Amount       decimal.Decimal        `json:"amount"`
	Shipping     decimal.Decimal        `json:"shipping"`
	Transactions []SuggestedTransaction `json:"suggestedTransactions"`
}

type SuggestedTransaction struct {
	ParentTransactionID string          `json:"parentTransactionId"`
	Gateway             string          `json:"gateway"`
	Kind                string          `json:"kind"`
	Amount              decimal.Decimal `json:"amount"`
}

// TrackingNumber returns the shipment's first non-empty tracking number.
func (rs *ReturnShipment) TrackingNumber() string {
	for _, rd := range rs.ReverseDeliveries {
		if rd.Tracking.Number != "" {
			return rd.Tracking.Number
		}
	}
	return ""
}

// IsChargeback reports whether the dispute is a still-open chargeback.
func (d Dispute) IsChargeback() bool {
	return d.InitiatedAs == DisputeTypeChargeback && strings.EqualFold(d.Status, DisputeStatusOpen)
}

// ValidReturns returns the OPEN return shipments that expose a tracking
// number, in listed order.
func (o *Order) ValidReturns() []*ReturnShipment {
	var out []*ReturnShipment
	for i := range o.Returns {
		rs := &o.Returns[i]
		if rs.Status != ReturnStatusOpen {
			continue
		}
		if rs.TrackingNumber() == "" {
			continue
		}
		out = append(out, rs)
	}
	return out
}

// PriorRefundTotal sums executed refunds only. Pending records (nil
// CreatedAt) do not count against the remaining balance.
func (o *Order) PriorRefundTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range o.Refunds {
		if r.CreatedAt == nil {
			continue
		}
		total = total.Add(r.TotalRefunded)
	}
	return total
}

// HasChargeback reports whether any dispute on the order is a chargeback.
func (o *Order) HasChargeback() bool {
	for _, d := range o.Disputes {
		if d.IsChargeback() {
			return true
		}
	}
	return false
}

// LineItem returns the order line item with the given id, or nil.
func (o *Order) LineItem(id string) *LineItem {
	for i := range o.LineItems {
		if o.LineItems[i].ID == id {
			return &o.LineItems[i]
		}
	}
	return nil
}
