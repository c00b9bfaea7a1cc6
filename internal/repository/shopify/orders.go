package shopify

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"refund-automation/internal/domain"
	"refund-automation/pkg/logger"
)

// OrderRepository fetches refund-eligible orders through the Admin API.
type OrderRepository struct {
	client    *Client
	pageSize  int
	maxOrders int
}

func NewOrderRepository(client *Client, pageSize, maxOrders int) *OrderRepository {
	return &OrderRepository{client: client, pageSize: pageSize, maxOrders: maxOrders}
}

type ordersPage struct {
	Orders struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Edges []struct {
			Node json.RawMessage `json:"node"`
		} `json:"edges"`
	} `json:"orders"`
}

// FetchOrders pages through every eligible order, bounded by maxOrders
// to keep memory in check. A node that fails to decode is logged and
// skipped, never fatal for the page.
func (r *OrderRepository) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	cursor := ""

	for {
		if len(orders) >= r.maxOrders {
			logger.Warn().Int("max_orders", r.maxOrders).Msg("Reached order retrieval limit, stopping pagination")
			break
		}

		variables := map[string]any{
			"first": r.pageSize,
			"query": eligibleOrdersQuery,
		}
		if cursor != "" {
			variables["after"] = cursor
		}

		var page ordersPage
		if err := r.client.execute(ctx, "orders_query", returnOrdersQuery, variables, &page); err != nil {
			return nil, fmt.Errorf("fetch orders page: %w", err)
		}

		logger.Debug().Int("count", len(page.Orders.Edges)).Str("cursor", cursor).Msg("Fetched orders page")

		for _, edge := range page.Orders.Edges {
			var node orderNode
			if err := json.Unmarshal(edge.Node, &node); err != nil {
				logger.Error().Err(err).Msg("Failed to decode order node, skipping")
				continue
			}
			orders = append(orders, node.toDomain())
		}

		if !page.Orders.PageInfo.HasNextPage {
			break
		}
		cursor = page.Orders.PageInfo.EndCursor
	}

	logger.Info().Int("orders", len(orders)).Msg("Order retrieval complete")
	return orders, nil
}
