package tracking

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"refund-automation/internal/domain"
	"refund-automation/pkg/logger"
	"refund-automation/pkg/retry"
)

const tokenHeader = "17token"

// Client talks to the 17track-style tracking REST API.
type Client struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	retryCfg retry.Config
}

func NewClient(baseURL, apiKey string, timeout time.Duration, retryCfg retry.Config) *Client {
	return &Client{
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		apiKey:   apiKey,
		retryCfg: retryCfg,
	}
}

type apiResponse struct {
	Data struct {
		Accepted []json.RawMessage `json:"accepted"`
		Rejected []struct {
			Number string `json:"number"`
			Error  struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		} `json:"rejected"`
	} `json:"data"`
}

type trackInfoEntry struct {
	Number    string `json:"number"`
	Carrier   int    `json:"carrier"`
	TrackInfo *struct {
		LatestStatus struct {
			Status    string `json:"status"`
			SubStatus string `json:"sub_status"`
		} `json:"latest_status"`
		LatestEvent *struct {
			TimeISO     string `json:"time_iso"`
			TimeUTC     string `json:"time_utc"`
			Description string `json:"description"`
			SubStatus   string `json:"sub_status"`
		} `json:"latest_event"`
	} `json:"track_info"`
}

// post sends one payload with bounded retries on transport failures.
func (c *Client) post(ctx context.Context, path string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tracking payload: %w", err)
	}

	var out apiResponse
	err = retry.Do(ctx, c.retryCfg, "tracking"+path, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(tokenHeader, c.apiKey)

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			logger.APIRequest("tracking", path, 0, time.Since(start), err)
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		logger.APIRequest("tracking", path, resp.StatusCode, time.Since(start), err)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("tracking%s: status %d", path, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(fmt.Errorf("tracking%s: status %d: %s", path, resp.StatusCode, data))
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return retry.Permanent(fmt.Errorf("tracking%s: decode response: %w", path, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register submits one segment of tracking numbers for monitoring.
// Returns the accepted and rejected counts.
func (c *Client) Register(ctx context.Context, entries []domain.TrackingRegistration) (int, int, error) {
	resp, err := c.post(ctx, "/register", entries)
	if err != nil {
		return 0, 0, err
	}
	if len(resp.Data.Rejected) > 0 {
		for _, rej := range resp.Data.Rejected {
			logger.Warn().
				Str("tracking_number", rej.Number).
				Int("code", rej.Error.Code).
				Str("message", rej.Error.Message).
				Msg("Tracking registration rejected")
		}
	}
	return len(resp.Data.Accepted), len(resp.Data.Rejected), nil
}

// TrackInfo fetches the latest state for the given numbers. The second
// return value counts entries that failed to decode.
func (c *Client) TrackInfo(ctx context.Context, entries []domain.TrackingRegistration) ([]domain.TrackingRecord, int, error) {
	resp, err := c.post(ctx, "/gettrackinfo", entries)
	if err != nil {
		return nil, 0, err
	}

	requested := make(map[string]string, len(entries))
	for _, e := range entries {
		requested[e.Number] = e.Carrier
	}

	var records []domain.TrackingRecord
	parseErrors := 0
	for _, raw := range resp.Data.Accepted {
		var entry trackInfoEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Number == "" {
			parseErrors++
			logger.Error().Err(err).Msg("Unparsable tracking entry")
			continue
		}

		record := domain.TrackingRecord{
			Number:      entry.Number,
			CarrierCode: strconv.Itoa(entry.Carrier),
		}
		if entry.TrackInfo != nil {
			record.LatestStatus = entry.TrackInfo.LatestStatus.Status
			record.LatestSubStatus = entry.TrackInfo.LatestStatus.SubStatus
			if ev := entry.TrackInfo.LatestEvent; ev != nil {
				occurred := ev.TimeISO
				if occurred == "" {
					occurred = ev.TimeUTC
				}
				record.LatestEvent = &domain.TrackingEvent{
					Status:      entry.TrackInfo.LatestStatus.Status,
					SubStatus:   ev.SubStatus,
					Description: ev.Description,
					OccurredAt:  occurred,
				}
			}
		}
		// The provider re-detecting a different carrier than the one we
		// registered indicates conflicting source data; held for review.
		if want, ok := requested[entry.Number]; ok && want != "" && want != record.CarrierCode {
			record.CarrierConflict = true
		}
		records = append(records, record)
	}

	return records, parseErrors, nil
}
