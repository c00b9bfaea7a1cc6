package timeutil

import (
	"fmt"
	"strings"
	"time"

	"refund-automation/pkg/logger"
)

// Handler converts between UTC API timestamps and the store's local zone.
type Handler struct {
	loc *time.Location
}

// NewHandler loads the store timezone by IANA name. An unknown name falls
// back to UTC so a misconfigured zone degrades instead of aborting the run.
func NewHandler(tz string) *Handler {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logger.Warn().Str("timezone", tz).Err(err).Msg("Unknown store timezone, falling back to UTC")
		loc = time.UTC
	}
	return &Handler{loc: loc}
}

// Location returns the store's time.Location.
func (h *Handler) Location() *time.Location {
	return h.loc
}

// NowStore returns the current time in the store zone.
func (h *Handler) NowStore() time.Time {
	return time.Now().In(h.loc)
}

// ToStore converts t into the store zone.
func (h *Handler) ToStore(t time.Time) time.Time {
	return t.In(h.loc)
}

// FormatISO8601 renders t in the store zone with offset, e.g.
// 2025-03-14T09:30:00-04:00.
func (h *Handler) FormatISO8601(t time.Time) string {
	return t.In(h.loc).Format("2006-01-02T15:04:05-07:00")
}

// ParseAPITime parses timestamps as Shopify and the tracking provider emit
// them: RFC 3339 with offset or Z suffix, or a naive local stamp which is
// taken to be in the store zone.
func (h *Handler) ParseAPITime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, h.loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, h.loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
