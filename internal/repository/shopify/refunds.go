package shopify

import (
	"context"
	"fmt"
	"time"

	"refund-automation/internal/domain"
	"refund-automation/pkg/logger"
)

// RefundRepository issues refundCreate mutations.
type RefundRepository struct {
	client *Client
}

func NewRefundRepository(client *Client) *RefundRepository {
	return &RefundRepository{client: client}
}

type refundCreateResponse struct {
	RefundCreate struct {
		Refund *struct {
			ID               string   `json:"id"`
			CreatedAt        string   `json:"createdAt"`
			TotalRefundedSet moneyBag `json:"totalRefundedSet"`
		} `json:"refund"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"refundCreate"`
}

// ExecuteRefund sends the refund mutation. Transport failures retry
// inside the client; user errors surface as *UserErrorsError and are
// terminal for the shipment.
func (r *RefundRepository) ExecuteRefund(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	lineItems := make([]map[string]any, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		lineItems = append(lineItems, map[string]any{
			"lineItemId": li.LineItemID,
			"quantity":   li.Quantity,
		})
	}

	transactions := make([]map[string]any, 0, len(req.Transactions))
	for _, tx := range req.Transactions {
		transactions = append(transactions, map[string]any{
			"orderId":  req.OrderID,
			"parentId": tx.ParentTransactionID,
			"kind":     tx.Kind,
			"gateway":  tx.Gateway,
			"amount":   tx.Amount.StringFixed(2),
		})
	}

	shipping := map[string]any{}
	if req.FullShipping {
		shipping["fullRefund"] = true
	} else if !req.Shipping.IsZero() {
		shipping["amount"] = req.Shipping.Amount.StringFixed(2)
	}

	variables := map[string]any{
		"input": map[string]any{
			"notify":          true,
			"orderId":         req.OrderID,
			"note":            req.Note,
			"refundLineItems": lineItems,
			"transactions":    transactions,
			"shipping":        shipping,
		},
	}

	var resp refundCreateResponse
	if err := r.client.execute(ctx, "refund_create", refundCreateMutation, variables, &resp); err != nil {
		return nil, err
	}
	if len(resp.RefundCreate.UserErrors) > 0 {
		return nil, &UserErrorsError{Operation: "refund_create", Errors: resp.RefundCreate.UserErrors}
	}
	refund := resp.RefundCreate.Refund
	if refund == nil {
		return nil, fmt.Errorf("refund_create: empty refund in response for order %s", req.OrderID)
	}

	createdAt, err := time.Parse(time.RFC3339, refund.CreatedAt)
	if err != nil {
		logger.Warn().Str("refund_id", refund.ID).Str("created_at", refund.CreatedAt).Msg("Unparsable refund creation time")
		createdAt = time.Now()
	}

	return &domain.RefundResult{
		ID:        refund.ID,
		OrderName: req.OrderName,
		TotalRefunded: domain.MoneyFromDecimal(
			refund.TotalRefundedSet.PresentmentMoney.Amount,
			req.Currency,
		),
		CreatedAt: createdAt,
	}, nil
}
