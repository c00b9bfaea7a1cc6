package usecase

import (
	"github.com/shopspring/decimal"

	"refund-automation/internal/domain"
	"refund-automation/pkg/logger"
)

// Policy holds the shipping-refund toggles applied by the calculator.
type Policy struct {
	RefundFullShipping    bool
	RefundPartialShipping bool
}

// Deduction is an optional post-calculation deduction applied after tax
// and shipping, e.g. a restocking fee. A nil Deduction deducts nothing.
type Deduction func(order *domain.Order, calc *domain.RefundCalculation) decimal.Decimal

// Calculator computes refund amounts and tender allocations for one
// return shipment. Pure: it never mutates the order and performs no I/O.
type Calculator struct {
	policy    Policy
	deduction Deduction
}

func NewCalculator(policy Policy, deduction Deduction) *Calculator {
	return &Calculator{policy: policy, deduction: deduction}
}

// Calculate produces the refund breakdown for the shipment, using the
// ledger for balances consumed earlier in the same run. An empty
// transaction list on the result signals the caller to skip.
func (c *Calculator) Calculate(order *domain.Order, shipment *domain.ReturnShipment, ledger *Ledger) *domain.RefundCalculation {
	returned := c.returnedQuantities(order, shipment)

	calc := &domain.RefundCalculation{Currency: order.TotalPrice.Currency}
	if len(returned) == 0 || c.isFullReturn(order, returned) {
		calc.Type = domain.RefundTypeFull
	} else {
		calc.Type = domain.RefundTypePartial
	}

	c.buildLineItems(order, returned, ledger, calc)

	subtotal := decimal.Zero
	tax := decimal.Zero
	discount := decimal.Zero
	for _, target := range calc.LineItems {
		line := order.LineItem(target.LineItemID)
		if line == nil || line.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(target.Quantity))
		subtotal = subtotal.Add(netPerUnit(line).Mul(qty))
		discount = discount.Add(discountPerUnit(line).Mul(qty))
		tax = tax.Add(c.taxPerUnit(order, line).Mul(qty))
	}

	shipping := c.shippingRefund(order, calc, ledger)

	total := subtotal.Add(shipping).Add(tax)

	if calc.Type == domain.RefundTypePartial {
		calc.IsLastPartial = c.isLastPartial(order, shipment, ledger, calc)
		if calc.IsLastPartial {
			total, shipping = c.capLastPartial(order, ledger, total, shipping)
		}
	}

	calc.Subtotal = domain.Normalize(subtotal)
	calc.Tax = domain.Normalize(tax)
	calc.Discount = domain.Normalize(discount)
	calc.Shipping = domain.Normalize(shipping)

	if c.deduction != nil {
		total = total.Sub(c.deduction(order, calc))
	}
	calc.Total = domain.Normalize(total)

	if calc.Total.Sign() <= 0 {
		logger.Warn().
			Str("order_id", order.ID).
			Str("return_shipment_id", shipment.ID).
			Str("total", calc.Total.String()).
			Msg("Non-positive refund total, no transactions allocated")
		return calc
	}

	calc.Transactions = c.allocateTransactions(order, calc)
	return calc
}

// returnedQuantities sums the shipment's return line items per order
// line item, keeping only sane quantities.
func (c *Calculator) returnedQuantities(order *domain.Order, shipment *domain.ReturnShipment) map[string]int {
	returned := make(map[string]int)
	for _, rli := range shipment.ReturnLineItems {
		line := order.LineItem(rli.LineItemID)
		if line == nil {
			logger.Warn().
				Str("order_id", order.ID).
				Str("line_item_id", rli.LineItemID).
				Msg("Return line item references unknown order line item")
			continue
		}
		if rli.RefundableQuantity <= 0 || rli.RefundableQuantity > line.Quantity {
			continue
		}
		returned[rli.LineItemID] += rli.RefundableQuantity
	}
	return returned
}

// isFullReturn reports whether every order line item is covered in full
// by this return.
func (c *Calculator) isFullReturn(order *domain.Order, returned map[string]int) bool {
	for _, line := range order.LineItems {
		if returned[line.ID] < line.Quantity {
			return false
		}
	}
	return true
}

// buildLineItems fills calc.LineItems with the refund targets. FULL
// refunds every line at its remaining refundable quantity; PARTIAL only
// the returned lines, capped at what is still refundable.
func (c *Calculator) buildLineItems(order *domain.Order, returned map[string]int, ledger *Ledger, calc *domain.RefundCalculation) {
	for _, line := range order.LineItems {
		available := line.RefundableQuantity - ledger.RefundedQty(order.ID, line.ID)
		if available <= 0 {
			continue
		}
		qty := available
		if calc.Type == domain.RefundTypePartial {
			qty = returned[line.ID]
			if qty > available {
				qty = available
			}
		}
		if qty <= 0 {
			continue
		}
		calc.LineItems = append(calc.LineItems, domain.RefundLineItem{
			LineItemID: line.ID,
			Quantity:   qty,
		})
	}
}

func discountPerUnit(line *domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, d := range line.DiscountAllocations {
		total = total.Add(d)
	}
	return total.Div(decimal.NewFromInt(int64(line.Quantity)))
}

// netPerUnit is the per-unit value after discounts, floored at zero.
func netPerUnit(line *domain.LineItem) decimal.Decimal {
	qty := decimal.NewFromInt(int64(line.Quantity))
	net := line.OriginalTotal.Div(qty).Sub(discountPerUnit(line))
	if net.Sign() < 0 {
		logger.Warn().
			Str("line_item_id", line.ID).
			Str("net_per_unit", net.String()).
			Msg("Negative net unit value, using zero")
		return decimal.Zero
	}
	return net
}

// taxPerUnit sums the line's tax lines per unit. Negative tax amounts
// are anomalies: logged and skipped, never propagated.
func (c *Calculator) taxPerUnit(order *domain.Order, line *domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, tl := range line.TaxLines {
		if tl.Amount.Sign() < 0 {
			logger.Warn().
				Str("order_id", order.ID).
				Str("line_item_id", line.ID).
				Str("tax_title", tl.Title).
				Str("amount", tl.Amount.String()).
				Msg("Negative tax amount skipped")
			continue
		}
		total = total.Add(tl.Amount)
	}
	return total.Div(decimal.NewFromInt(int64(line.Quantity)))
}

// shippingRefund applies the shipping policy. FULL refunds the order's
// shipping when the full-shipping flag is on. PARTIAL prorates the
// not-yet-refunded shipping by the returned share of the order's net
// item value, capped at 100%.
func (c *Calculator) shippingRefund(order *domain.Order, calc *domain.RefundCalculation, ledger *Ledger) decimal.Decimal {
	if calc.Type == domain.RefundTypeFull {
		if !c.policy.RefundFullShipping {
			return decimal.Zero
		}
		return order.TotalShipping.Amount
	}

	if !c.policy.RefundPartialShipping {
		return decimal.Zero
	}
	shipping := order.TotalShipping.Amount
	if shipping.Sign() <= 0 {
		return decimal.Zero
	}
	prior := order.TotalRefundedShipping.Amount.Add(ledger.RefundedShipping(order.ID))
	if prior.Cmp(shipping) >= 0 {
		logger.Debug().Str("order_id", order.ID).Msg("Shipping already fully refunded")
		return decimal.Zero
	}
	remaining := shipping.Sub(prior)

	totalNet := decimal.Zero
	for i := range order.LineItems {
		line := &order.LineItems[i]
		if line.Quantity <= 0 {
			continue
		}
		totalNet = totalNet.Add(netPerUnit(line).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if totalNet.Sign() <= 0 {
		logger.Warn().Str("order_id", order.ID).Msg("Zero net order value, skipping proportional shipping")
		return decimal.Zero
	}

	returnedNet := decimal.Zero
	for _, target := range calc.LineItems {
		line := order.LineItem(target.LineItemID)
		if line == nil || line.Quantity <= 0 {
			continue
		}
		returnedNet = returnedNet.Add(netPerUnit(line).Mul(decimal.NewFromInt(int64(target.Quantity))))
	}
	if returnedNet.Sign() <= 0 {
		return decimal.Zero
	}

	proportion := returnedNet.Div(totalNet)
	if proportion.Cmp(decimal.NewFromInt(1)) > 0 {
		logger.Warn().
			Str("order_id", order.ID).
			Str("proportion", proportion.String()).
			Msg("Shipping proportion above 100%, capping")
		proportion = decimal.NewFromInt(1)
	}
	return remaining.Mul(proportion)
}

// isLastPartial reports whether, once this refund lands, no order line
// item has any un-refunded quantity left. Any other open, un-refunded
// return still holding pending units disqualifies: its refund comes
// later and must not be swallowed by capping this one.
func (c *Calculator) isLastPartial(order *domain.Order, shipment *domain.ReturnShipment, ledger *Ledger, calc *domain.RefundCalculation) bool {
	for i := range order.Returns {
		rs := &order.Returns[i]
		if rs.ID == shipment.ID || rs.Status != domain.ReturnStatusOpen || ledger.ReturnRefunded(rs.ID) {
			continue
		}
		for _, rli := range rs.ReturnLineItems {
			if rli.RefundableQuantity > 0 {
				return false
			}
		}
	}

	thisQty := make(map[string]int, len(calc.LineItems))
	for _, li := range calc.LineItems {
		thisQty[li.LineItemID] = li.Quantity
	}
	for _, line := range order.LineItems {
		alreadyRefunded := line.Quantity - line.RefundableQuantity + ledger.RefundedQty(order.ID, line.ID)
		if line.Quantity-alreadyRefunded-thisQty[line.ID] != 0 {
			return false
		}
	}
	return true
}

// capLastPartial overrides the computed total and shipping with the
// order's exact remaining refundable balances so the final partial
// leaves the order fully refunded, never over-refunded.
func (c *Calculator) capLastPartial(order *domain.Order, ledger *Ledger, total, shipping decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	priorTotal := order.PriorRefundTotal().Add(ledger.RefundedTotal(order.ID))
	remainingTotal := order.TotalPrice.Amount.Sub(priorTotal)

	priorShipping := order.TotalRefundedShipping.Amount.Add(ledger.RefundedShipping(order.ID))
	remainingShipping := order.TotalShipping.Amount.Sub(priorShipping)
	if remainingShipping.Sign() < 0 {
		remainingShipping = decimal.Zero
	}

	if !domain.Normalize(total).Equal(domain.Normalize(remainingTotal)) {
		logger.Info().
			Str("order_id", order.ID).
			Str("computed_total", total.String()).
			Str("capped_total", remainingTotal.String()).
			Msg("Last partial refund capped to remaining order balance")
		total = remainingTotal
	}
	if shipping.Cmp(remainingShipping) > 0 {
		logger.Info().
			Str("order_id", order.ID).
			Str("computed_shipping", shipping.String()).
			Str("capped_shipping", remainingShipping.String()).
			Msg("Last partial shipping capped to remaining refundable shipping")
		shipping = remainingShipping
	}
	return total, shipping
}

// allocateTransactions splits the refund total across the order's
// qualifying tenders. FULL refunds each tender at its original amount;
// PARTIAL prorates each tender by this refund's share of the order
// total, so the allocations across successive partials never exceed
// the tender's original amount.
func (c *Calculator) allocateTransactions(order *domain.Order, calc *domain.RefundCalculation) []domain.RefundTransaction {
	orderTotal := order.TotalPrice.Amount
	var out []domain.RefundTransaction

	for _, st := range order.SuggestedRefund.Transactions {
		if st.Kind != domain.TransactionKindSale && st.Kind != domain.TransactionKindSuggestedRefund {
			continue
		}

		var amount decimal.Decimal
		if calc.Type == domain.RefundTypeFull {
			amount = st.Amount
			if !c.policy.RefundFullShipping {
				amount = amount.Sub(order.TotalShipping.Amount)
			}
		} else {
			if orderTotal.Sign() <= 0 {
				logger.Warn().Str("order_id", order.ID).Msg("Zero order total, cannot prorate transactions")
				return nil
			}
			amount = st.Amount.Mul(calc.Total).Div(orderTotal)
		}
		if amount.Sign() < 0 {
			amount = decimal.Zero
		}

		amount = domain.Normalize(amount)
		if amount.Sign() <= 0 {
			continue
		}
		out = append(out, domain.RefundTransaction{
			ParentTransactionID: st.ParentTransactionID,
			Gateway:             st.Gateway,
			Kind:                domain.TransactionKindRefund,
			Amount:              amount,
		})
	}
	return out
}
