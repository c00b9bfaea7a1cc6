package shopify

import (
	"bytes"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"refund-automation/internal/domain"
	"refund-automation/pkg/logger"
)

// connection absorbs the API's inconsistent list shapes: some fields
// arrive as {"nodes": [...]}, others as bare arrays. Nothing past this
// file sees the wire shape.
type connection[T any] struct {
	Nodes []T
}

func (c *connection[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &c.Nodes)
	}
	var wrapper struct {
		Nodes []T `json:"nodes"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}
	c.Nodes = wrapper.Nodes
	return nil
}

type moneyV2 struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

type moneyBag struct {
	PresentmentMoney moneyV2 `json:"presentmentMoney"`
}

type orderNode struct {
	ID                       string                   `json:"id"`
	Name                     string                   `json:"name"`
	Tags                     []string                 `json:"tags"`
	TotalPriceSet            moneyBag                 `json:"totalPriceSet"`
	TotalShippingPriceSet    moneyBag                 `json:"totalShippingPriceSet"`
	TotalRefundedShippingSet moneyBag                 `json:"totalRefundedShippingSet"`
	LineItems                connection[lineItemNode] `json:"lineItems"`
	Refunds                  connection[refundNode]   `json:"refunds"`
	Disputes                 connection[disputeNode]  `json:"disputes"`
	Returns                  connection[returnNode]   `json:"returns"`
	SuggestedRefund          suggestedRefundNode      `json:"suggestedRefund"`
}

type lineItemNode struct {
	ID                  string         `json:"id"`
	Quantity            int            `json:"quantity"`
	RefundableQuantity  int            `json:"refundableQuantity"`
	OriginalTotalSet    moneyBag       `json:"originalTotalSet"`
	DiscountAllocations []discountNode `json:"discountAllocations"`
	TaxLines            []taxLineNode  `json:"taxLines"`
}

type discountNode struct {
	AllocatedAmountSet moneyBag `json:"allocatedAmountSet"`
}

type taxLineNode struct {
	Title    string   `json:"title"`
	PriceSet moneyBag `json:"priceSet"`
}

type refundNode struct {
	ID               string   `json:"id"`
	CreatedAt        *string  `json:"createdAt"`
	TotalRefundedSet moneyBag `json:"totalRefundedSet"`
}

type disputeNode struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	InitiatedAs string `json:"initiatedAs"`
}

type returnNode struct {
	ID                       string                         `json:"id"`
	Name                     string                         `json:"name"`
	Status                   string                         `json:"status"`
	ReturnLineItems          connection[returnLineItemNode] `json:"returnLineItems"`
	ReverseFulfillmentOrders connection[rfoNode]            `json:"reverseFulfillmentOrders"`
}

type returnLineItemNode struct {
	Quantity            int `json:"quantity"`
	RefundableQuantity  int `json:"refundableQuantity"`
	FulfillmentLineItem struct {
		LineItem struct {
			ID string `json:"id"`
		} `json:"lineItem"`
	} `json:"fulfillmentLineItem"`
}

type rfoNode struct {
	ReverseDeliveries connection[reverseDeliveryNode] `json:"reverseDeliveries"`
}

type reverseDeliveryNode struct {
	ID          string `json:"id"`
	Deliverable struct {
		Tracking struct {
			CarrierName string `json:"carrierName"`
			Number      string `json:"number"`
		} `json:"tracking"`
	} `json:"deliverable"`
}

type suggestedRefundNode struct {
	AmountSet moneyBag `json:"amountSet"`
	Shipping  struct {
		AmountSet moneyBag `json:"amountSet"`
	} `json:"shipping"`
	SuggestedTransactions []suggestedTransactionNode `json:"suggestedTransactions"`
}

type suggestedTransactionNode struct {
	Gateway           string   `json:"gateway"`
	Kind              string   `json:"kind"`
	AmountSet         moneyBag `json:"amountSet"`
	ParentTransaction struct {
		ID string `json:"id"`
	} `json:"parentTransaction"`
}

// toDomain maps one order node into the typed model.
func (n *orderNode) toDomain() domain.Order {
	currency := n.TotalPriceSet.PresentmentMoney.CurrencyCode
	if currency == "" {
		currency = "USD"
	}

	order := domain.Order{
		ID:                    n.ID,
		Name:                  n.Name,
		Tags:                  n.Tags,
		TotalPrice:            domain.MoneyFromDecimal(n.TotalPriceSet.PresentmentMoney.Amount, currency),
		TotalShipping:         domain.MoneyFromDecimal(n.TotalShippingPriceSet.PresentmentMoney.Amount, currency),
		TotalRefundedShipping: domain.MoneyFromDecimal(n.TotalRefundedShippingSet.PresentmentMoney.Amount, currency),
		SuggestedRefund: domain.SuggestedRefund{
			Amount:   n.SuggestedRefund.AmountSet.PresentmentMoney.Amount,
			Shipping: n.SuggestedRefund.Shipping.AmountSet.PresentmentMoney.Amount,
		},
	}

	for _, li := range n.LineItems.Nodes {
		item := domain.LineItem{
			ID:                 li.ID,
			Quantity:           li.Quantity,
			RefundableQuantity: li.RefundableQuantity,
			OriginalTotal:      li.OriginalTotalSet.PresentmentMoney.Amount,
		}
		for _, d := range li.DiscountAllocations {
			item.DiscountAllocations = append(item.DiscountAllocations, d.AllocatedAmountSet.PresentmentMoney.Amount)
		}
		for _, tl := range li.TaxLines {
			item.TaxLines = append(item.TaxLines, domain.TaxLine{
				Title:  tl.Title,
				Amount: tl.PriceSet.PresentmentMoney.Amount,
			})
		}
		order.LineItems = append(order.LineItems, item)
	}

	for _, r := range n.Refunds.Nodes {
		record := domain.RefundRecord{
			ID:            r.ID,
			TotalRefunded: r.TotalRefundedSet.PresentmentMoney.Amount,
		}
		if r.CreatedAt != nil && *r.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, *r.CreatedAt); err == nil {
				record.CreatedAt = &ts
			} else {
				logger.Warn().
					Str("order_id", n.ID).
					Str("refund_id", r.ID).
					Str("created_at", *r.CreatedAt).
					Msg("Unparsable refund timestamp, treating as pending")
			}
		}
		order.Refunds = append(order.Refunds, record)
	}

	for _, d := range n.Disputes.Nodes {
		order.Disputes = append(order.Disputes, domain.Dispute{
			ID:          d.ID,
			Status:      d.Status,
			InitiatedAs: d.InitiatedAs,
		})
	}

	for _, ret := range n.Returns.Nodes {
		shipment := domain.ReturnShipment{
			ID:     ret.ID,
			Name:   ret.Name,
			Status: ret.Status,
		}
		for _, rli := range ret.ReturnLineItems.Nodes {
			shipment.ReturnLineItems = append(shipment.ReturnLineItems, domain.ReturnLineItem{
				LineItemID:         rli.FulfillmentLineItem.LineItem.ID,
				Quantity:           rli.Quantity,
				RefundableQuantity: rli.RefundableQuantity,
			})
		}
		for _, rfo := range ret.ReverseFulfillmentOrders.Nodes {
			for _, rd := range rfo.ReverseDeliveries.Nodes {
				shipment.ReverseDeliveries = append(shipment.ReverseDeliveries, domain.ReverseDelivery{
					ID: rd.ID,
					Tracking: domain.TrackingRef{
						Carrier: rd.Deliverable.Tracking.CarrierName,
						Number:  rd.Deliverable.Tracking.Number,
					},
				})
			}
		}
		order.Returns = append(order.Returns, shipment)
	}

	for _, st := range n.SuggestedRefund.SuggestedTransactions {
		order.SuggestedRefund.Transactions = append(order.SuggestedRefund.Transactions, domain.SuggestedTransaction{
			ParentTransactionID: st.ParentTransaction.ID,
			Gateway:             st.Gateway,
			Kind:                st.Kind,
			Amount:              st.AmountSet.PresentmentMoney.Amount,
		})
	}

	return order
}
