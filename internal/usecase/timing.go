package usecase

import (
	"time"

	"refund-automation/internal/domain"
	"refund-automation/pkg/logger"
	"refund-automation/pkg/timeutil"
)

// TimingStatus is the outcome of the delivery-delay check.
type TimingStatus int

const (
	TimingEligible TimingStatus = iota
	TimingTooEarly
	TimingNoDeliveryTime
	TimingInvalidDeliveryTime
)

func (s TimingStatus) String() string {
	switch s {
	case TimingEligible:
		return "eligible"
	case TimingTooEarly:
		return "too_early"
	case TimingNoDeliveryTime:
		return "no_delivery_time"
	case TimingInvalidDeliveryTime:
		return "invalid_delivery_time"
	default:
		return "unknown"
	}
}

// TimingDetails is attached to every timing outcome for logging and
// notifications, whatever the status.
type TimingDetails struct {
	TrackingNumber string
	DeliveredAt    time.Time
	HoursElapsed   float64
	HoursRemaining float64
}

// TimingValidator decides whether enough time has elapsed since confirmed
// delivery. All comparisons happen in the store timezone.
type TimingValidator struct {
	tz    *timeutil.Handler
	delay time.Duration
	now   func() time.Time
}

func NewTimingValidator(tz *timeutil.Handler, requiredDelayHours int) *TimingValidator {
	return &TimingValidator{
		tz:    tz,
		delay: time.Duration(requiredDelayHours) * time.Hour,
		now:   tz.NowStore,
	}
}

// Validate extracts the delivery time from the tracking record and checks
// the configured delay. The exact boundary is eligible: a delivery
// precisely delay-hours ago passes.
func (v *TimingValidator) Validate(tracking *domain.TrackingRecord) (TimingStatus, TimingDetails) {
	details := TimingDetails{TrackingNumber: tracking.Number}

	if !tracking.IsDelivered() || tracking.LatestEvent == nil || tracking.LatestEvent.OccurredAt == "" {
		return TimingNoDeliveryTime, details
	}

	delivered, err := v.tz.ParseAPITime(tracking.LatestEvent.OccurredAt)
	if err != nil {
		logger.Warn().
			Str("tracking_number", tracking.Number).
			Str("raw_timestamp", tracking.LatestEvent.OccurredAt).
			Err(err).
			Msg("Unparsable delivery timestamp")
		return TimingInvalidDeliveryTime, details
	}

	deliveredStore := v.tz.ToStore(delivered)
	nowStore := v.tz.ToStore(v.now())

	elapsed := nowStore.Sub(deliveredStore)
	details.DeliveredAt = deliveredStore
	details.HoursElapsed = elapsed.Hours()
	details.HoursRemaining = (v.delay - elapsed).Hours()
	if details.HoursRemaining < 0 {
		details.HoursRemaining = 0
	}

	if nowStore.Before(deliveredStore.Add(v.delay)) {
		logger.Debug().
			Str("tracking_number", tracking.Number).
			Str("delivered_at", v.tz.FormatISO8601(delivered)).
			Float64("hours_remaining", details.HoursRemaining).
			Msg("Delivery delay not yet satisfied")
		return TimingTooEarly, details
	}
	return TimingEligible, details
}
