package domain

// Tracking provider statuses and sub-statuses.
const (
	TrackingStatusDelivered = "Delivered"

	SubStatusDeliveredOther  = "Delivered_Other"
	SubStatusDeliveredSigned = "delivered-signed"
	SubStatusDeliveredLocker = "delivered-at-locker"
)

// deliveredSubStatuses is the allow-list of sub-statuses accepted as a
// confirmed delivery. An empty sub-status counts as plain delivered.
var deliveredSubStatuses = map[string]bool{
	"":                       true,
	SubStatusDeliveredOther:  true,
	SubStatusDeliveredSigned: true,
	SubStatusDeliveredLocker: true,
}

// TrackingRegistration is one {number, carrier} pair submitted to the
// tracking provider.
type TrackingRegistration struct {
	Number  string `json:"number"`
	Carrier string `json:"carrier"`
}

// TrackingEvent is the provider's latest milestone for a shipment.
type TrackingEvent struct {
	Status      string `json:"status"`
	SubStatus   string `json:"subStatus"`
	Description string `json:"description"`
	OccurredAt  string `json:"occurredAt"` // provider timestamp, parsed by the timing validator
}

// TrackingRecord is the provider's view of one tracking number. Read-only
// to the refund core.
type TrackingRecord struct {
	Number          string         `json:"number"`
	CarrierCode     string         `json:"carrierCode"`
	LatestStatus    string         `json:"latestStatus"`
	LatestSubStatus string         `json:"latestSubStatus"`
	LatestEvent     *TrackingEvent `json:"latestEvent"`
	CarrierConflict bool           `json:"carrierConflict"`
}

// IsDelivered reports whether the record shows a confirmed delivery:
// status exactly Delivered with an allow-listed sub-status.
func (t *TrackingRecord) IsDelivered() bool {
	return t.LatestStatus == TrackingStatusDelivered && deliveredSubStatuses[t.LatestSubStatus]
}
