package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"refund-automation/internal/domain"
	"refund-automation/pkg/logger"
)

// OrderFetcher pages eligible orders out of the commerce platform.
type OrderFetcher interface {
	FetchOrders(ctx context.Context) ([]domain.Order, error)
}

// TrackingProvider registers tracking numbers and reports their state.
type TrackingProvider interface {
	Register(ctx context.Context, entries []domain.TrackingRegistration) (accepted, rejected int, err error)
	TrackInfo(ctx context.Context, entries []domain.TrackingRegistration) ([]domain.TrackingRecord, int, error)
}

// RetrieverOptions bound the tracking registration flow.
type RetrieverOptions struct {
	DefaultCarrierCode string
	SegmentSize        int
	SyncDelay          time.Duration
}

// Retriever implements domain.OrderSource: fetch orders, drop those
// without an actionable return, register their tracking numbers and
// correlate the provider's records back by number.
type Retriever struct {
	opts     RetrieverOptions
	fetcher  OrderFetcher
	provider TrackingProvider
	notifier domain.Notifier
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRetriever(opts RetrieverOptions, fetcher OrderFetcher, provider TrackingProvider, notifier domain.Notifier) *Retriever {
	return &Retriever{
		opts:     opts,
		fetcher:  fetcher,
		provider: provider,
		notifier: notifier,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (r *Retriever) Retrieve(ctx context.Context) ([]domain.Order, map[string]*domain.TrackingRecord, error) {
	orders, err := r.fetcher.FetchOrders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch orders: %w", err)
	}
	if len(orders) == 0 {
		logger.Info().Msg("No eligible orders fetched")
		return nil, map[string]*domain.TrackingRecord{}, nil
	}

	eligible := r.cleanup(orders)
	if len(eligible) == 0 {
		logger.Info().Msg("No orders remain after return-shipment filtering")
		r.notifier.Info("No eligible orders found after filtering", nil)
		return nil, map[string]*domain.TrackingRecord{}, nil
	}
	r.notifier.Info("Order filtering complete", map[string]string{
		"eligible": strconv.Itoa(len(eligible)),
		"total":    strconv.Itoa(len(orders)),
	})

	payload := r.trackingPayload(eligible)
	if len(payload) == 0 {
		logger.Warn().Msg("No tracking payload generated")
		return eligible, map[string]*domain.TrackingRecord{}, nil
	}

	r.registerTrackings(ctx, payload)

	logger.Info().Dur("delay", r.opts.SyncDelay).Msg("Waiting for tracking registration to sync")
	if err := r.sleep(ctx, r.opts.SyncDelay); err != nil {
		return nil, nil, err
	}

	records, parseErrors, err := r.provider.TrackInfo(ctx, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch tracking info: %w", err)
	}

	trackings := r.correlate(eligible, records)

	logger.Info().
		Int("orders", len(eligible)).
		Int("trackings", len(records)).
		Int("parse_errors", parseErrors).
		Msg("Retrieval complete")
	if parseErrors > 0 {
		r.notifier.Warn("Tracking parsing completed with errors", map[string]string{
			"errors":  strconv.Itoa(parseErrors),
			"total":   strconv.Itoa(len(payload)),
			"matched": strconv.Itoa(len(trackings)),
		})
	}

	return eligible, trackings, nil
}

// cleanup keeps only orders exposing at least one OPEN, tracking-bearing
// return shipment.
func (r *Retriever) cleanup(orders []domain.Order) []domain.Order {
	var eligible []domain.Order
	for i := range orders {
		if len(orders[i].ValidReturns()) > 0 {
			eligible = append(eligible, orders[i])
		}
	}
	logger.Info().Int("eligible", len(eligible)).Int("total", len(orders)).Msg("Filtered orders by return shipments")
	return eligible
}

// trackingPayload collects {number, carrier} pairs for every valid
// return shipment. Non-numeric carrier names fall back to the default
// carrier code.
func (r *Retriever) trackingPayload(orders []domain.Order) []domain.TrackingRegistration {
	var payload []domain.TrackingRegistration
	seen := make(map[string]bool)

	for i := range orders {
		for _, rs := range orders[i].ValidReturns() {
			for _, rd := range rs.ReverseDeliveries {
				number := rd.Tracking.Number
				if number == "" || seen[number] {
					continue
				}
				carrier := rd.Tracking.Carrier
				if _, err := strconv.Atoi(carrier); err != nil {
					logger.Debug().
						Str("carrier", carrier).
						Str("tracking_number", number).
						Msg("Non-numeric carrier, using default carrier code")
					carrier = r.opts.DefaultCarrierCode
				}
				seen[number] = true
				payload = append(payload, domain.TrackingRegistration{Number: number, Carrier: carrier})
			}
		}
	}

	logger.Info().Int("entries", len(payload)).Msg("Generated tracking payload")
	return payload
}

// registerTrackings submits the payload in segments. A failed segment is
// logged and notified, then skipped; later segments still register.
func (r *Retriever) registerTrackings(ctx context.Context, payload []domain.TrackingRegistration) {
	segments := 0
	registered, rejected := 0, 0

	size := r.opts.SegmentSize
	if size <= 0 {
		size = 1
	}
	for start := 0; start < len(payload); start += size {
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		segments++

		acc, rej, err := r.provider.Register(ctx, payload[start:end])
		if err != nil {
			logger.Error().Err(err).Int("segment", segments).Msg("Failed to register tracking segment")
			r.notifier.Error("Failed to register tracking segment", map[string]string{
				"segment":      strconv.Itoa(segments),
				"segment_size": strconv.Itoa(end - start),
				"error":        err.Error(),
			}, "")
			continue
		}
		registered += acc
		rejected += rej
	}

	logger.Info().
		Int("registered", registered).
		Int("rejected", rejected).
		Int("segments", segments).
		Msg("Tracking registration complete")
}

// correlate indexes the records by number and emits the matched and
// unmatched notification batches.
func (r *Retriever) correlate(orders []domain.Order, records []domain.TrackingRecord) map[string]*domain.TrackingRecord {
	orderByNumber := make(map[string]string)
	for i := range orders {
		for _, rs := range orders[i].ValidReturns() {
			orderByNumber[rs.TrackingNumber()] = orders[i].Name
		}
	}

	trackings := make(map[string]*domain.TrackingRecord, len(records))
	matched := make(map[string]string)
	unmatched := make(map[string]string)

	for i := range records {
		record := &records[i]
		trackings[record.Number] = record

		orderName, ok := orderByNumber[record.Number]
		if !ok {
			continue
		}
		if record.IsDelivered() {
			matched[orderName] = "Tracking(" + record.Number + ")"
		} else {
			unmatched[orderName] = "Tracking(" + record.Number + ")"
		}
	}

	if len(matched) > 0 {
		r.notifier.Info("Tracking numbers matching return criteria", matched)
	}
	if len(unmatched) > 0 {
		r.notifier.Warn("Tracking numbers failing return criteria", unmatched)
	}
	return trackings
}
