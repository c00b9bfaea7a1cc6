package notify

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"refund-automation/pkg/logger"
)

const (
	colorInfo    = "#439FE0"
	colorSuccess = "good"
	colorWarn    = "warning"
	colorError   = "danger"
)

// SlackNotifier posts run events to a Slack incoming webhook. A nil
// notifier is valid and drops every message, so callers never guard.
type SlackNotifier struct {
	webhookURL   string
	channel      string
	automationID string
	dryRun       bool
	httpClient   *http.Client
}

// NewSlackNotifier returns nil when the webhook is missing or
// notifications are disabled.
func NewSlackNotifier(webhookURL, channel, automationID string, dryRun, enabled bool) *SlackNotifier {
	if webhookURL == "" || !enabled {
		logger.Info().Msg("Slack notifications disabled")
		return nil
	}
	return &SlackNotifier{
		webhookURL:   webhookURL,
		channel:      channel,
		automationID: automationID,
		dryRun:       dryRun,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type attachmentField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type attachment struct {
	Color  string            `json:"color"`
	Title  string            `json:"title"`
	Text   string            `json:"text,omitempty"`
	Fields []attachmentField `json:"fields,omitempty"`
	Ts     int64             `json:"ts"`
}

type message struct {
	Channel     string       `json:"channel,omitempty"`
	Attachments []attachment `json:"attachments"`
}

func (n *SlackNotifier) Info(msg string, details map[string]string) {
	n.send(colorInfo, msg, details)
}

func (n *SlackNotifier) Success(msg string, details map[string]string) {
	n.send(colorSuccess, msg, details)
}

func (n *SlackNotifier) Warn(msg string, details map[string]string) {
	n.send(colorWarn, msg, details)
}

func (n *SlackNotifier) Error(msg string, details map[string]string, requestID string) {
	if requestID != "" {
		merged := make(map[string]string, len(details)+1)
		for k, v := range details {
			merged[k] = v
		}
		merged["request_id"] = requestID
		details = merged
	}
	n.send(colorError, msg, details)
}

func (n *SlackNotifier) send(color, msg string, details map[string]string) {
	if n == nil {
		return
	}

	mode := "LIVE"
	if n.dryRun {
		mode = "DRY-RUN"
	}
	att := attachment{
		Color: color,
		Title: fmt.Sprintf("%s (%s)", n.automationID, mode),
		Text:  msg,
		Ts:    time.Now().Unix(),
	}

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		att.Fields = append(att.Fields, attachmentField{
			Title: k,
			Value: details[k],
			Short: len(details[k]) < 40,
		})
	}

	payload := message{Channel: n.channel, Attachments: []attachment{att}}

	// Notifications never block or fail the run.
	go func() {
		if err := n.post(payload); err != nil {
			logger.Error().Err(err).Str("message", msg).Msg("Failed to send Slack notification")
		}
	}()
}

func (n *SlackNotifier) post(payload message) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("slack request failed: %w", err)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return nil
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("slack error (status %d): %s", resp.StatusCode, string(respBody))

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return lastErr
}
