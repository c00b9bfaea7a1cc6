package shopify

import (
	"context"
	"fmt"

	"refund-automation/pkg/logger"
)

// ReturnRepository closes refunded return shipments.
type ReturnRepository struct {
	client *Client
}

func NewReturnRepository(client *Client) *ReturnRepository {
	return &ReturnRepository{client: client}
}

type returnCloseResponse struct {
	ReturnClose struct {
		Return *struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"return"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"returnClose"`
}

func (r *ReturnRepository) CloseReturn(ctx context.Context, returnID string) error {
	variables := map[string]any{"returnId": returnID}

	var resp returnCloseResponse
	if err := r.client.execute(ctx, "return_close", returnCloseMutation, variables, &resp); err != nil {
		return err
	}
	if len(resp.ReturnClose.UserErrors) > 0 {
		return &UserErrorsError{Operation: "return_close", Errors: resp.ReturnClose.UserErrors}
	}
	if resp.ReturnClose.Return == nil {
		return fmt.Errorf("return_close: empty return in response for %s", returnID)
	}

	logger.Debug().
		Str("return_id", resp.ReturnClose.Return.ID).
		Str("status", resp.ReturnClose.Return.Status).
		Msg("Return close confirmed")
	return nil
}
