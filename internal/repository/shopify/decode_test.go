package shopify

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestConnectionAbsorbsBothShapes(t *testing.T) {
	type item struct {
		ID string `json:"id"`
	}

	var wrapped connection[item]
	if err := json.Unmarshal([]byte(`{"nodes":[{"id":"a"},{"id":"b"}]}`), &wrapped); err != nil {
		t.Fatalf("wrapped: %v", err)
	}
	if len(wrapped.Nodes) != 2 || wrapped.Nodes[0].ID != "a" {
		t.Errorf("wrapped nodes = %+v", wrapped.Nodes)
	}

	var bare connection[item]
	if err := json.Unmarshal([]byte(`[{"id":"c"}]`), &bare); err != nil {
		t.Fatalf("bare: %v", err)
	}
	if len(bare.Nodes) != 1 || bare.Nodes[0].ID != "c" {
		t.Errorf("bare nodes = %+v", bare.Nodes)
	}

	var empty connection[item]
	if err := json.Unmarshal([]byte(`{"nodes":[]}`), &empty); err != nil {
		t.Fatalf("empty: %v", err)
	}
	if len(empty.Nodes) != 0 {
		t.Errorf("empty nodes = %+v", empty.Nodes)
	}
}

const sampleOrderJSON = `{
  "id": "gid://shopify/Order/1",
  "name": "#1001",
  "tags": ["vip"],
  "totalPriceSet": {"presentmentMoney": {"amount": "110.00", "currencyCode": "USD"}},
  "totalShippingPriceSet": {"presentmentMoney": {"amount": "10.00", "currencyCode": "USD"}},
  "totalRefundedShippingSet": {"presentmentMoney": {"amount": "0.00", "currencyCode": "USD"}},
  "lineItems": {"nodes": [
    {
      "id": "gid://shopify/LineItem/1",
      "quantity": 2,
      "refundableQuantity": 2,
      "originalTotalSet": {"presentmentMoney": {"amount": "100.00", "currencyCode": "USD"}},
      "discountAllocations": [
        {"allocatedAmountSet": {"presentmentMoney": {"amount": "5.00", "currencyCode": "USD"}}}
      ],
      "taxLines": [
        {"title": "VAT", "priceSet": {"presentmentMoney": {"amount": "7.50", "currencyCode": "USD"}}}
      ]
    }
  ]},
  "refunds": [
    {"id": "gid://shopify/Refund/1", "createdAt": "2026-07-01T10:00:00Z",
     "totalRefundedSet": {"presentmentMoney": {"amount": "20.00", "currencyCode": "USD"}}},
    {"id": "gid://shopify/Refund/2", "createdAt": null,
     "totalRefundedSet": {"presentmentMoney": {"amount": "30.00", "currencyCode": "USD"}}}
  ],
  "disputes": [
    {"id": "gid://shopify/Dispute/1", "status": "OPEN", "initiatedAs": "chargeback"}
  ],
  "returns": {"nodes": [
    {
      "id": "gid://shopify/Return/1",
      "name": "#1001-R1",
      "status": "OPEN",
      "returnLineItems": {"nodes": [
        {"quantity": 1, "refundableQuantity": 1,
         "fulfillmentLineItem": {"lineItem": {"id": "gid://shopify/LineItem/1"}}}
      ]},
      "reverseFulfillmentOrders": {"nodes": [
        {"reverseDeliveries": {"nodes": [
          {"id": "gid://shopify/ReverseDelivery/1",
           "deliverable": {"tracking": {"carrierName": "USPS", "number": "TN-1"}}}
        ]}}
      ]}
    }
  ]},
  "suggestedRefund": {
    "amountSet": {"presentmentMoney": {"amount": "90.00", "currencyCode": "USD"}},
    "shipping": {"amountSet": {"presentmentMoney": {"amount": "10.00", "currencyCode": "USD"}}},
    "suggestedTransactions": [
      {"gateway": "shopify_payments", "kind": "SALE",
       "amountSet": {"presentmentMoney": {"amount": "110.00", "currencyCode": "USD"}},
       "parentTransaction": {"id": "gid://shopify/OrderTransaction/1"}}
    ]
  }
}`

func TestOrderNodeToDomain(t *testing.T) {
	var node orderNode
	if err := json.Unmarshal([]byte(sampleOrderJSON), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	order := node.toDomain()

	if order.ID != "gid://shopify/Order/1" || order.Name != "#1001" {
		t.Errorf("identity = %s %s", order.ID, order.Name)
	}
	if got := order.TotalPrice.Amount.StringFixed(2); got != "110.00" {
		t.Errorf("total price = %s, want 110.00", got)
	}
	if order.TotalPrice.Currency != "USD" {
		t.Errorf("currency = %s, want USD", order.TotalPrice.Currency)
	}

	if len(order.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(order.LineItems))
	}
	li := order.LineItems[0]
	if li.Quantity != 2 || li.RefundableQuantity != 2 {
		t.Errorf("quantities = %d/%d, want 2/2", li.Quantity, li.RefundableQuantity)
	}
	if len(li.DiscountAllocations) != 1 || li.DiscountAllocations[0].StringFixed(2) != "5.00" {
		t.Errorf("discounts = %v, want [5.00]", li.DiscountAllocations)
	}
	if len(li.TaxLines) != 1 || li.TaxLines[0].Title != "VAT" {
		t.Errorf("tax lines = %+v", li.TaxLines)
	}

	// Refunds arrived as a bare array; the null createdAt stays pending.
	if len(order.Refunds) != 2 {
		t.Fatalf("refunds = %d, want 2", len(order.Refunds))
	}
	if order.Refunds[0].CreatedAt == nil {
		t.Error("executed refund lost its timestamp")
	}
	if order.Refunds[1].CreatedAt != nil {
		t.Error("pending refund gained a timestamp")
	}
	if got := order.PriorRefundTotal().StringFixed(2); got != "20.00" {
		t.Errorf("prior refund total = %s, want 20.00 (pending excluded)", got)
	}

	if !order.HasChargeback() {
		t.Error("chargeback dispute not detected")
	}

	if len(order.Returns) != 1 {
		t.Fatalf("returns = %d, want 1", len(order.Returns))
	}
	ret := order.Returns[0]
	if got := ret.TrackingNumber(); got != "TN-1" {
		t.Errorf("tracking number = %s, want TN-1", got)
	}
	if len(ret.ReturnLineItems) != 1 || ret.ReturnLineItems[0].LineItemID != "gid://shopify/LineItem/1" {
		t.Errorf("return line items = %+v", ret.ReturnLineItems)
	}

	if len(order.SuggestedRefund.Transactions) != 1 {
		t.Fatalf("suggested transactions = %d, want 1", len(order.SuggestedRefund.Transactions))
	}
	st := order.SuggestedRefund.Transactions[0]
	if st.ParentTransactionID != "gid://shopify/OrderTransaction/1" || st.Kind != "SALE" {
		t.Errorf("suggested transaction = %+v", st)
	}
}

func TestOrderNodeCurrencyFallback(t *testing.T) {
	var node orderNode
	if err := json.Unmarshal([]byte(`{"id":"gid://shopify/Order/2","name":"#2"}`), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	order := node.toDomain()
	if order.TotalPrice.Currency != "USD" {
		t.Errorf("currency = %s, want USD fallback", order.TotalPrice.Currency)
	}
}
