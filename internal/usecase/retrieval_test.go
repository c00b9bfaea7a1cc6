package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"refund-automation/internal/domain"
)

type fakeFetcher struct {
	orders []domain.Order
	err    error
}

func (f *fakeFetcher) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	return f.orders, f.err
}

type fakeProvider struct {
	segments    [][]domain.TrackingRegistration
	registerErr map[int]error // segment index -> error
	records     []domain.TrackingRecord
	parseErrors int
	infoErr     error
}

func (f *fakeProvider) Register(ctx context.Context, entries []domain.TrackingRegistration) (int, int, error) {
	idx := len(f.segments)
	f.segments = append(f.segments, entries)
	if err := f.registerErr[idx]; err != nil {
		return 0, 0, err
	}
	return len(entries), 0, nil
}

func (f *fakeProvider) TrackInfo(ctx context.Context, entries []domain.TrackingRegistration) ([]domain.TrackingRecord, int, error) {
	return f.records, f.parseErrors, f.infoErr
}

func testRetriever(t *testing.T, fetcher *fakeFetcher, provider *fakeProvider) *Retriever {
	t.Helper()
	r := NewRetriever(RetrieverOptions{
		DefaultCarrierCode: "21051",
		SegmentSize:        2,
		SyncDelay:          time.Millisecond,
	}, fetcher, provider, &fakeNotifier{})
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return r
}

func trackedOrder(t *testing.T, id, trackingNumber, carrier string) domain.Order {
	t.Helper()
	lines := []domain.LineItem{
		{ID: "li-" + id, Quantity: 1, RefundableQuantity: 1, OriginalTotal: dec(t, "50")},
	}
	ret := domain.ReturnShipment{
		ID:     "ret-" + id,
		Name:   "#R-" + id,
		Status: domain.ReturnStatusOpen,
		ReturnLineItems: []domain.ReturnLineItem{
			{LineItemID: "li-" + id, Quantity: 1, RefundableQuantity: 1},
		},
		ReverseDeliveries: []domain.ReverseDelivery{
			{Tracking: domain.TrackingRef{Carrier: carrier, Number: trackingNumber}},
		},
	}
	order := singleTenderOrder(t, "50", "0", lines, []domain.ReturnShipment{ret})
	order.ID = "order-" + id
	return *order
}

func TestRetrieveFiltersOrdersWithoutValidReturns(t *testing.T) {
	withReturn := trackedOrder(t, "a", "TN-1", "4")
	noTracking := trackedOrder(t, "b", "", "4")
	closed := trackedOrder(t, "c", "TN-3", "4")
	closed.Returns[0].Status = domain.ReturnStatusClosed

	provider := &fakeProvider{}
	retriever := testRetriever(t, &fakeFetcher{orders: []domain.Order{withReturn, noTracking, closed}}, provider)

	orders, _, err := retriever.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "order-a" {
		t.Fatalf("orders = %v, want only order-a", orders)
	}
}

func TestRetrieveCarrierFallbackAndSegmentation(t *testing.T) {
	orders := []domain.Order{
		trackedOrder(t, "a", "TN-1", "190271"),
		trackedOrder(t, "b", "TN-2", "USPS"), // non-numeric, falls back
		trackedOrder(t, "c", "TN-3", "4"),
	}
	provider := &fakeProvider{}
	retriever := testRetriever(t, &fakeFetcher{orders: orders}, provider)

	if _, _, err := retriever.Retrieve(context.Background()); err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	// Segment size 2 over 3 entries.
	if len(provider.segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(provider.segments))
	}
	carriers := make(map[string]string)
	for _, seg := range provider.segments {
		for _, e := range seg {
			carriers[e.Number] = e.Carrier
		}
	}
	if carriers["TN-1"] != "190271" {
		t.Errorf("TN-1 carrier = %s, want 190271", carriers["TN-1"])
	}
	if carriers["TN-2"] != "21051" {
		t.Errorf("TN-2 carrier = %s, want default 21051", carriers["TN-2"])
	}
}

func TestRetrieveZeroSegmentSizeStillRegisters(t *testing.T) {
	orders := []domain.Order{
		trackedOrder(t, "a", "TN-1", "4"),
		trackedOrder(t, "b", "TN-2", "4"),
	}
	provider := &fakeProvider{}
	retriever := NewRetriever(RetrieverOptions{
		DefaultCarrierCode: "21051",
		SegmentSize:        0,
	}, &fakeFetcher{orders: orders}, provider, &fakeNotifier{})
	retriever.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	if _, _, err := retriever.Retrieve(context.Background()); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	// A missing segment size floors to one entry per segment.
	if len(provider.segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(provider.segments))
	}
	for i, seg := range provider.segments {
		if len(seg) != 1 {
			t.Errorf("segment %d size = %d, want 1", i, len(seg))
		}
	}
}

func TestRetrieveRegisterFailureSkipsSegmentOnly(t *testing.T) {
	orders := []domain.Order{
		trackedOrder(t, "a", "TN-1", "4"),
		trackedOrder(t, "b", "TN-2", "4"),
		trackedOrder(t, "c", "TN-3", "4"),
	}
	provider := &fakeProvider{
		registerErr: map[int]error{0: errors.New("rate limited")},
		records: []domain.TrackingRecord{
			{Number: "TN-3", LatestStatus: domain.TrackingStatusDelivered},
		},
	}
	retriever := testRetriever(t, &fakeFetcher{orders: orders}, provider)

	_, trackings, err := retriever.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(provider.segments) != 2 {
		t.Errorf("segments attempted = %d, want 2", len(provider.segments))
	}
	if trackings["TN-3"] == nil {
		t.Error("expected tracking record for TN-3 despite first segment failing")
	}
}

func TestRetrieveCorrelatesByNumber(t *testing.T) {
	orders := []domain.Order{trackedOrder(t, "a", "TN-1", "4")}
	provider := &fakeProvider{
		records: []domain.TrackingRecord{
			{Number: "TN-1", LatestStatus: domain.TrackingStatusDelivered,
				LatestEvent: &domain.TrackingEvent{OccurredAt: "2026-08-01T00:00:00Z"}},
			{Number: "TN-unrelated", LatestStatus: "InTransit"},
		},
	}
	retriever := testRetriever(t, &fakeFetcher{orders: orders}, provider)

	_, trackings, err := retriever.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	record := trackings["TN-1"]
	if record == nil {
		t.Fatal("no record for TN-1")
	}
	if !record.IsDelivered() {
		t.Error("TN-1 should report delivered")
	}
}

func TestRetrieveFetchErrorPropagates(t *testing.T) {
	retriever := testRetriever(t, &fakeFetcher{err: errors.New("boom")}, &fakeProvider{})
	if _, _, err := retriever.Retrieve(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}
