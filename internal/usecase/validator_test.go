package usecase

import (
	"testing"

	"refund-automation/internal/domain"
	"refund-automation/pkg/audit"
)

type notifierCall struct {
	level   string
	msg     string
	details map[string]string
}

type fakeNotifier struct {
	calls []notifierCall
}

func (f *fakeNotifier) Info(msg string, details map[string]string) {
	f.calls = append(f.calls, notifierCall{"info", msg, details})
}

func (f *fakeNotifier) Success(msg string, details map[string]string) {
	f.calls = append(f.calls, notifierCall{"success", msg, details})
}

func (f *fakeNotifier) Warn(msg string, details map[string]string) {
	f.calls = append(f.calls, notifierCall{"warn", msg, details})
}

func (f *fakeNotifier) Error(msg string, details map[string]string, requestID string) {
	f.calls = append(f.calls, notifierCall{"error", msg, details})
}

func (f *fakeNotifier) last(t *testing.T) notifierCall {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("no notifications sent")
	}
	return f.calls[len(f.calls)-1]
}

func testTrail(t *testing.T) *audit.Trail {
	t.Helper()
	trail, err := audit.NewTrail(t.TempDir(), "test-req", true, true)
	if err != nil {
		t.Fatalf("new trail: %v", err)
	}
	return trail
}

func validatorAt(t *testing.T, now string) (*Validator, *fakeNotifier) {
	t.Helper()
	notifier := &fakeNotifier{}
	return NewValidator(timingAt(t, now), testTrail(t), notifier), notifier
}

func eligibleOrder(t *testing.T, tags ...string) *domain.Order {
	t.Helper()
	lines := []domain.LineItem{
		{ID: "li-1", Quantity: 1, RefundableQuantity: 1, OriginalTotal: dec(t, "50")},
	}
	ret := openReturn("r1", domain.ReturnLineItem{LineItemID: "li-1", Quantity: 1, RefundableQuantity: 1})
	order := singleTenderOrder(t, "50", "0", lines, []domain.ReturnShipment{ret})
	order.Tags = tags
	return order
}

func TestClassifyTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want TagClass
	}{
		{"no tags", nil, TagNormal},
		{"unrelated tags", []string{"vip", "wholesale"}, TagNormal},
		{"auto off", []string{"refund:auto:off"}, TagAutoOff},
		{"manual only", []string{"manual-refund-only"}, TagAutoOff},
		{"case and whitespace", []string{"  No-Auto-Refund "}, TagAutoOff},
		{"force now", []string{"refund:auto:now"}, TagForceNow},
		{"force now outranks auto off", []string{"refund:auto:off", "refund:auto:now"}, TagForceNow},
		{"chargeback", []string{"chargeback"}, TagChargeback},
		{"chargeback outranks auto off", []string{"no-auto-refund", "Chargeback"}, TagChargeback},
		{"force now outranks chargeback", []string{"chargeback", "refund:auto:now"}, TagForceNow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTags(tt.tags); got != tt.want {
				t.Errorf("ClassifyTags(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestValidateEligible(t *testing.T) {
	v, notifier := validatorAt(t, "2026-08-10T00:00:00Z")
	order := eligibleOrder(t)
	tracking := deliveredRecord("2026-08-01T00:00:00Z")
	tracking.Number = order.Returns[0].TrackingNumber()

	if !v.Validate(order, &order.Returns[0], tracking) {
		t.Fatal("expected eligible")
	}
	if len(notifier.calls) != 0 {
		t.Errorf("eligible order sent %d notifications, want 0", len(notifier.calls))
	}
}

func TestValidateForceNowBypassesChargeback(t *testing.T) {
	v, _ := validatorAt(t, "2026-08-10T00:00:00Z")
	order := eligibleOrder(t, "refund:auto:now")
	order.Disputes = []domain.Dispute{{ID: "d1", Status: "open", InitiatedAs: domain.DisputeTypeChargeback}}

	// Force-now wins even with everything else broken.
	tracking := &domain.TrackingRecord{Number: "WRONG"}
	if !v.Validate(order, &order.Returns[0], tracking) {
		t.Fatal("force-now tag should bypass all checks")
	}
}

func TestValidateChargebackHold(t *testing.T) {
	v, notifier := validatorAt(t, "2026-08-10T00:00:00Z")
	order := eligibleOrder(t)
	order.Disputes = []domain.Dispute{{ID: "d1", Status: "open", InitiatedAs: domain.DisputeTypeChargeback}}
	tracking := deliveredRecord("2026-08-01T00:00:00Z")
	tracking.Number = order.Returns[0].TrackingNumber()

	if v.Validate(order, &order.Returns[0], tracking) {
		t.Fatal("chargeback order must be held")
	}
	call := notifier.last(t)
	if call.level != "warn" {
		t.Errorf("notification level = %s, want warn", call.level)
	}
	if call.details["reason"] != "chargeback_hold" {
		t.Errorf("reason = %s, want chargeback_hold", call.details["reason"])
	}
}

func TestValidateChargebackTagHeld(t *testing.T) {
	v, notifier := validatorAt(t, "2026-08-10T00:00:00Z")
	order := eligibleOrder(t, "chargeback")
	tracking := deliveredRecord("2026-08-01T00:00:00Z")
	tracking.Number = order.Returns[0].TrackingNumber()

	// The tag alone holds the refund, no dispute record required.
	if v.Validate(order, &order.Returns[0], tracking) {
		t.Fatal("chargeback-tagged order must be held")
	}
	if got := notifier.last(t).details["reason"]; got != "chargeback_hold" {
		t.Errorf("reason = %s, want chargeback_hold", got)
	}
}

func TestValidateResolvedDisputeNotHeld(t *testing.T) {
	v, notifier := validatorAt(t, "2026-08-10T00:00:00Z")
	order := eligibleOrder(t)
	order.Disputes = []domain.Dispute{{ID: "d1", Status: "won", InitiatedAs: domain.DisputeTypeChargeback}}
	tracking := deliveredRecord("2026-08-01T00:00:00Z")
	tracking.Number = order.Returns[0].TrackingNumber()

	if !v.Validate(order, &order.Returns[0], tracking) {
		t.Fatal("resolved dispute must not block the refund")
	}
	if len(notifier.calls) != 0 {
		t.Errorf("eligible order sent %d notifications, want 0", len(notifier.calls))
	}
}

func TestValidateRejectionPrecedence(t *testing.T) {
	validTracking := func(t *testing.T, order *domain.Order) *domain.TrackingRecord {
		tr := deliveredRecord("2026-08-01T00:00:00Z")
		tr.Number = order.Returns[0].TrackingNumber()
		return tr
	}

	tests := []struct {
		name       string
		mutate     func(t *testing.T, order *domain.Order, tracking *domain.TrackingRecord)
		wantReason string
		wantLevel  string
	}{
		{
			name: "auto off tag",
			mutate: func(t *testing.T, o *domain.Order, tr *domain.TrackingRecord) {
				o.Tags = []string{"no-auto-refund"}
			},
			wantReason: "auto_refund_disabled",
			wantLevel:  "info",
		},
		{
			name: "tracking mismatch",
			mutate: func(t *testing.T, o *domain.Order, tr *domain.TrackingRecord) {
				tr.Number = "OTHER"
			},
			wantReason: "tracking_mismatch",
			wantLevel:  "warn",
		},
		{
			name: "no tracking event",
			mutate: func(t *testing.T, o *domain.Order, tr *domain.TrackingRecord) {
				tr.LatestEvent = nil
			},
			wantReason: "no_tracking_event",
			wantLevel:  "info",
		},
		{
			name: "carrier conflict",
			mutate: func(t *testing.T, o *domain.Order, tr *domain.TrackingRecord) {
				tr.CarrierConflict = true
			},
			wantReason: "carrier_conflict",
			wantLevel:  "warn",
		},
		{
			name: "invalid delivery status",
			mutate: func(t *testing.T, o *domain.Order, tr *domain.TrackingRecord) {
				tr.LatestStatus = "InTransit"
			},
			wantReason: "invalid_delivery_status",
			wantLevel:  "info",
		},
		{
			name: "disallowed sub status",
			mutate: func(t *testing.T, o *domain.Order, tr *domain.TrackingRecord) {
				tr.LatestSubStatus = "delivered-to-neighbor"
			},
			wantReason: "invalid_delivery_status",
			wantLevel:  "info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, notifier := validatorAt(t, "2026-08-10T00:00:00Z")
			order := eligibleOrder(t)
			tracking := validTracking(t, order)
			tt.mutate(t, order, tracking)

			if v.Validate(order, &order.Returns[0], tracking) {
				t.Fatal("expected rejection")
			}
			if len(notifier.calls) != 1 {
				t.Fatalf("rejection sent %d notifications, want exactly 1", len(notifier.calls))
			}
			call := notifier.calls[0]
			if call.details["reason"] != tt.wantReason {
				t.Errorf("reason = %s, want %s", call.details["reason"], tt.wantReason)
			}
			if call.level != tt.wantLevel {
				t.Errorf("level = %s, want %s", call.level, tt.wantLevel)
			}
		})
	}
}

func TestValidateTooEarly(t *testing.T) {
	v, notifier := validatorAt(t, "2026-08-02T00:00:00Z")
	order := eligibleOrder(t)
	tracking := deliveredRecord("2026-08-01T00:00:00Z")
	tracking.Number = order.Returns[0].TrackingNumber()

	if v.Validate(order, &order.Returns[0], tracking) {
		t.Fatal("expected rejection inside the delay window")
	}
	if got := notifier.last(t).details["reason"]; got != "timing_too_early" {
		t.Errorf("reason = %s, want timing_too_early", got)
	}
}
