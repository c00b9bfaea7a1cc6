package usecase

import (
	"fmt"
	"strings"

	"refund-automation/internal/domain"
	"refund-automation/pkg/audit"
	"refund-automation/pkg/logger"
)

// TagClass is the policy classification of an order's tag set.
type TagClass int

const (
	TagNormal TagClass = iota
	TagForceNow
	TagChargeback
	TagAutoOff
)

var forceNowTags = map[string]bool{
	"refund:auto:now": true,
}

var chargebackTags = map[string]bool{
	"chargeback": true,
}

var autoOffTags = map[string]bool{
	"refund:auto:off":    true,
	"refund-auto-off":    true,
	"no-auto-refund":     true,
	"manual-refund-only": true,
}

// ClassifyTags reduces an order's tag set to one policy class. Force-now
// outranks everything; a chargeback tag outranks auto-off, matching the
// rejection precedence.
func ClassifyTags(tags []string) TagClass {
	class := TagNormal
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if forceNowTags[t] {
			return TagForceNow
		}
		if chargebackTags[t] {
			class = TagChargeback
		}
		if autoOffTags[t] && class == TagNormal {
			class = TagAutoOff
		}
	}
	return class
}

// Validator gates a candidate refund against tag policy, chargeback
// holds, tracking matching, delivery status and timing.
type Validator struct {
	timing   *TimingValidator
	trail    *audit.Trail
	notifier domain.Notifier
}

func NewValidator(timing *TimingValidator, trail *audit.Trail, notifier domain.Notifier) *Validator {
	return &Validator{timing: timing, trail: trail, notifier: notifier}
}

// Validate applies the rejection rules in precedence order. Each
// rejection emits exactly one audit entry and one notification.
func (v *Validator) Validate(order *domain.Order, shipment *domain.ReturnShipment, tracking *domain.TrackingRecord) bool {
	class := ClassifyTags(order.Tags)

	// Force-now bypasses every remaining check, a deliberate operator
	// override. A coexisting chargeback is logged, not honored.
	if class == TagForceNow {
		logger.Info().
			Str("order_id", order.ID).
			Str("order_name", order.Name).
			Bool("chargeback_present", order.HasChargeback()).
			Msg("Force-now tag override, bypassing eligibility checks")
		return true
	}

	if class == TagChargeback || order.HasChargeback() {
		v.reject(order, shipment, "chargeback_hold",
			"Refund held: chargeback flagged on order", map[string]any{
				"tagged":       class == TagChargeback,
				"open_dispute": order.HasChargeback(),
			}, true)
		return false
	}

	if class == TagAutoOff {
		v.reject(order, shipment, "auto_refund_disabled",
			"Skipped: automatic refunds disabled by tag", map[string]any{
				"tags": strings.Join(order.Tags, ", "),
			}, false)
		return false
	}

	if shipment.TrackingNumber() != tracking.Number {
		v.reject(order, shipment, "tracking_mismatch",
			"Skipped: tracking number mismatch", map[string]any{
				"shipment_tracking": shipment.TrackingNumber(),
				"record_tracking":   tracking.Number,
			}, true)
		return false
	}

	if tracking.LatestEvent == nil {
		v.reject(order, shipment, "no_tracking_event",
			"Skipped: tracking record has no event data", map[string]any{
				"tracking_number": tracking.Number,
			}, false)
		return false
	}

	if tracking.CarrierConflict {
		v.reject(order, shipment, "carrier_conflict",
			"Refund held: carrier sources disagree on shipment state", map[string]any{
				"tracking_number": tracking.Number,
				"carrier_code":    tracking.CarrierCode,
				"latest_status":   tracking.LatestStatus,
			}, true)
		return false
	}

	if !tracking.IsDelivered() {
		v.reject(order, shipment, "invalid_delivery_status",
			"Skipped: tracking status is not a confirmed delivery", map[string]any{
				"tracking_number": tracking.Number,
				"status":          tracking.LatestStatus,
				"sub_status":      tracking.LatestSubStatus,
			}, false)
		return false
	}

	if status, details := v.timing.Validate(tracking); status != TimingEligible {
		v.reject(order, shipment, "timing_"+status.String(),
			"Skipped: delivery delay not satisfied", map[string]any{
				"tracking_number": details.TrackingNumber,
				"hours_elapsed":   fmt.Sprintf("%.2f", details.HoursElapsed),
				"hours_remaining": fmt.Sprintf("%.2f", details.HoursRemaining),
			}, false)
		return false
	}

	return true
}

// reject records the single audit entry + notification for a failed
// check. warning selects the notification severity.
func (v *Validator) reject(order *domain.Order, shipment *domain.ReturnShipment, reason, msg string, details map[string]any, warning bool) {
	logger.RefundDecision(order.ID, shipment.ID, "skipped", reason)
	v.trail.OrderSkipped(order.ID, shipment.ID, reason, details)

	fields := map[string]string{
		"order":  order.Name,
		"return": shipment.Name,
		"reason": reason,
	}
	for k, val := range details {
		fields[k] = fmt.Sprint(val)
	}
	if warning {
		v.notifier.Warn(msg, fields)
	} else {
		v.notifier.Info(msg, fields)
	}
}
