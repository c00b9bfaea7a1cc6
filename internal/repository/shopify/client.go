package shopify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"refund-automation/pkg/logger"
	"refund-automation/pkg/retry"
)

// UserError is a structured error reported by the Admin API for an
// otherwise successful request, e.g. a rejected refund input.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserErrorsError distinguishes platform-side validation failures from
// transport errors. Never retried.
type UserErrorsError struct {
	Operation string
	Errors    []UserError
}

func (e *UserErrorsError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		msgs = append(msgs, ue.Message)
	}
	return fmt.Sprintf("%s rejected: %s", e.Operation, strings.Join(msgs, "; "))
}

// ClientConfig configures the Admin API client.
type ClientConfig struct {
	StoreURL    string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	RateLimit   float64
	Burst       int
	Retry       retry.Config
}

// Client is a minimal Shopify Admin GraphQL client with client-side
// request pacing and bounded retries on transient failures.
type Client struct {
	client   *http.Client
	limiter  *rate.Limiter
	endpoint string
	token    string
	retryCfg retry.Config
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		endpoint: fmt.Sprintf("https://%s.myshopify.com/admin/api/%s/graphql.json", cfg.StoreURL, cfg.APIVersion),
		token:    cfg.AccessToken,
		retryCfg: cfg.Retry,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

// execute posts one GraphQL operation and decodes the data payload into
// out. 429/5xx responses and THROTTLED GraphQL errors are retried;
// other client errors fail immediately.
func (c *Client) execute(ctx context.Context, op, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	return retry.Do(ctx, c.retryCfg, op, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Shopify-Access-Token", c.token)

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			logger.APIRequest("shopify", op, 0, time.Since(start), err)
			return fmt.Errorf("%s: %w", op, err)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		logger.APIRequest("shopify", op, resp.StatusCode, time.Since(start), err)
		if err != nil {
			return fmt.Errorf("%s: read response: %w", op, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("%s: status %d", op, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, payload))
		}

		var gql graphQLResponse
		if err := json.Unmarshal(payload, &gql); err != nil {
			return retry.Permanent(fmt.Errorf("%s: decode response: %w", op, err))
		}
		if len(gql.Errors) > 0 {
			msgs := make([]string, 0, len(gql.Errors))
			throttled := false
			for _, e := range gql.Errors {
				msgs = append(msgs, e.Message)
				if e.Extensions.Code == "THROTTLED" {
					throttled = true
				}
			}
			err := fmt.Errorf("%s: graphql errors: %s", op, strings.Join(msgs, "; "))
			if throttled {
				return err
			}
			return retry.Permanent(err)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return retry.Permanent(fmt.Errorf("%s: decode data: %w", op, err))
		}
		return nil
	})
}
