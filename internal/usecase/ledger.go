package usecase

import (
	"github.com/shopspring/decimal"

	"refund-automation/internal/domain"
)

// Ledger tracks refunds issued during the current run. Retrieved order
// snapshots stay read-only; the ledger supplies the delta so later
// shipments on the same order see a correct remaining balance.
type Ledger struct {
	refundedTotal    map[string]decimal.Decimal
	refundedShipping map[string]decimal.Decimal
	refundedQty      map[string]map[string]int
	refundedReturns  map[string]bool
}

func NewLedger() *Ledger {
	return &Ledger{
		refundedTotal:    make(map[string]decimal.Decimal),
		refundedShipping: make(map[string]decimal.Decimal),
		refundedQty:      make(map[string]map[string]int),
		refundedReturns:  make(map[string]bool),
	}
}

// Record books a completed refund against the order.
func (l *Ledger) Record(orderID, returnID string, calc *domain.RefundCalculation) {
	l.refundedTotal[orderID] = l.RefundedTotal(orderID).Add(calc.Total)
	l.refundedShipping[orderID] = l.RefundedShipping(orderID).Add(calc.Shipping)
	l.refundedReturns[returnID] = true

	qty := l.refundedQty[orderID]
	if qty == nil {
		qty = make(map[string]int)
		l.refundedQty[orderID] = qty
	}
	for _, li := range calc.LineItems {
		qty[li.LineItemID] += li.Quantity
	}
}

// RefundedTotal returns the amount refunded to the order this run.
func (l *Ledger) RefundedTotal(orderID string) decimal.Decimal {
	if d, ok := l.refundedTotal[orderID]; ok {
		return d
	}
	return decimal.Zero
}

// RefundedShipping returns the shipping refunded to the order this run.
func (l *Ledger) RefundedShipping(orderID string) decimal.Decimal {
	if d, ok := l.refundedShipping[orderID]; ok {
		return d
	}
	return decimal.Zero
}

// RefundedQty returns units refunded this run for one order line item.
func (l *Ledger) RefundedQty(orderID, lineItemID string) int {
	return l.refundedQty[orderID][lineItemID]
}

// ReturnRefunded reports whether the return shipment was refunded this run.
func (l *Ledger) ReturnRefunded(returnID string) bool {
	return l.refundedReturns[returnID]
}

// RefundedReturns lists the return shipment ids refunded this run.
func (l *Ledger) RefundedReturns() []string {
	out := make([]string, 0, len(l.refundedReturns))
	for id := range l.refundedReturns {
		out = append(out, id)
	}
	return out
}
