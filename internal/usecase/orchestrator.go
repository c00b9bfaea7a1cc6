package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"refund-automation/internal/domain"
	"refund-automation/internal/infrastructure/idempotency"
	"refund-automation/pkg/audit"
	"refund-automation/pkg/logger"
)

// OperationRefund is the idempotency operation name for refund issuance.
const OperationRefund = "refund"

// shipmentOutcome is the terminal state of one return shipment.
type shipmentOutcome int

const (
	outcomeRefunded shipmentOutcome = iota
	outcomeSkipped
	outcomeDuplicate
	outcomeFailed
)

// Summary is the run result, emitted exactly once per invocation.
type Summary struct {
	Refunded      int
	Skipped       int
	Failed        int
	Duplicates    int
	Attempts      int
	TotalRefunded decimal.Decimal
	Currency      string
}

// OrchestratorOptions are the run-level knobs.
type OrchestratorOptions struct {
	DryRun          bool
	MaxBatchRetries int
	CloseWorkers    int
}

// Orchestrator drives the refund pipeline: retrieve, validate, check
// idempotency, calculate, execute, book-keep. Shipments are processed
// sequentially; a failure on one never aborts the rest.
type Orchestrator struct {
	opts       OrchestratorOptions
	source     domain.OrderSource
	validator  *Validator
	calculator *Calculator
	store      domain.IdempotencyStore
	executor   domain.RefundExecutor
	closer     domain.ReturnCloser
	notifier   domain.Notifier
	trail      *audit.Trail
	now        func() time.Time
}

func NewOrchestrator(
	opts OrchestratorOptions,
	source domain.OrderSource,
	validator *Validator,
	calculator *Calculator,
	store domain.IdempotencyStore,
	executor domain.RefundExecutor,
	closer domain.ReturnCloser,
	notifier domain.Notifier,
	trail *audit.Trail,
) *Orchestrator {
	return &Orchestrator{
		opts:       opts,
		source:     source,
		validator:  validator,
		calculator: calculator,
		store:      store,
		executor:   executor,
		closer:     closer,
		notifier:   notifier,
		trail:      trail,
		now:        time.Now,
	}
}

// Run processes the batch, retrying the whole batch while unresolved
// shipments remain and the retry budget allows. The summary is emitted
// exactly once, including on cancellation.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{TotalRefunded: decimal.Zero}
	defer o.emitSummary(summary)

	var refundedReturns []string
	var runErr error

	for attempt := 0; attempt <= o.opts.MaxBatchRetries; attempt++ {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		summary.Attempts = attempt + 1

		orders, trackings, err := o.source.Retrieve(ctx)
		if err != nil {
			if attempt == 0 {
				o.notifier.Error("Order retrieval failed, aborting run",
					map[string]string{"error": err.Error()}, "")
				o.trail.ErrorEscalated("", fmt.Sprintf("batch retrieval failed: %v", err))
				return summary, fmt.Errorf("retrieve orders: %w", err)
			}
			logger.Error().Err(err).Int("attempt", attempt).Msg("Retrieval failed on retry pass, stopping")
			break
		}

		// Fresh ledger per attempt: re-retrieved snapshots already
		// include refunds executed in earlier passes.
		ledger := NewLedger()
		unresolved := o.processBatch(ctx, orders, trackings, ledger, summary)
		refundedReturns = append(refundedReturns, ledger.RefundedReturns()...)

		if unresolved == 0 {
			break
		}
		if attempt < o.opts.MaxBatchRetries {
			logger.Info().
				Int("unresolved", unresolved).
				Int("attempt", attempt+1).
				Msg("Unresolved shipments remain, retrying full batch")
		}
	}

	o.closeRefundedReturns(ctx, refundedReturns)
	return summary, runErr
}

// processBatch runs one pass over every order and valid return shipment.
// Returns the number of shipments left unresolved (skipped + failed).
func (o *Orchestrator) processBatch(ctx context.Context, orders []domain.Order, trackings map[string]*domain.TrackingRecord, ledger *Ledger, summary *Summary) int {
	skipped, failed := 0, 0

	for i := range orders {
		order := &orders[i]
		if summary.Currency == "" {
			summary.Currency = order.TotalPrice.Currency
		}
		for _, shipment := range order.ValidReturns() {
			if ctx.Err() != nil {
				return skipped + failed
			}
			outcome, amount := o.processShipment(ctx, order, shipment, trackings, ledger)
			switch outcome {
			case outcomeRefunded:
				summary.Refunded++
				summary.TotalRefunded = summary.TotalRefunded.Add(amount)
			case outcomeDuplicate:
				summary.Duplicates++
			case outcomeSkipped:
				skipped++
			case outcomeFailed:
				failed++
			}
		}
	}

	summary.Skipped = skipped
	summary.Failed = failed
	return skipped + failed
}

// processShipment walks one return shipment to a terminal state. Any
// panic-free error path converts to SKIPPED or FAILED without affecting
// sibling shipments.
func (o *Orchestrator) processShipment(ctx context.Context, order *domain.Order, shipment *domain.ReturnShipment, trackings map[string]*domain.TrackingRecord, ledger *Ledger) (shipmentOutcome, decimal.Decimal) {
	tracking := trackings[shipment.TrackingNumber()]
	if tracking == nil {
		logger.RefundDecision(order.ID, shipment.ID, "skipped", "no_tracking_data")
		o.trail.OrderSkipped(order.ID, shipment.ID, "no_tracking_data", map[string]any{
			"tracking_number": shipment.TrackingNumber(),
		})
		o.notifier.Info("Skipped: no tracking data for return shipment", map[string]string{
			"order":           order.Name,
			"tracking_number": shipment.TrackingNumber(),
		})
		return outcomeSkipped, decimal.Zero
	}

	key := idempotency.Key(order.ID, OperationRefund, map[string]string{
		"return_id":       shipment.ID,
		"tracking_number": tracking.Number,
	})
	done, err := o.store.Check(key)
	if err != nil {
		logger.Error().Err(err).Str("order_id", order.ID).Msg("Idempotency check failed")
		o.trail.RefundFailed(order.ID, shipment.ID, fmt.Sprintf("idempotency check: %v", err))
		return outcomeFailed, decimal.Zero
	}
	if done {
		logger.RefundDecision(order.ID, shipment.ID, "duplicate", "already_processed")
		o.trail.DuplicateDetected(order.ID, key)
		o.notifier.Info("Duplicate suppressed: refund already processed", map[string]string{
			"order":           order.Name,
			"idempotency_key": key,
		})
		return outcomeDuplicate, decimal.Zero
	}

	if !o.validator.Validate(order, shipment, tracking) {
		// The validator already logged, audited and notified.
		return outcomeSkipped, decimal.Zero
	}

	calc := o.calculator.Calculate(order, shipment, ledger)
	if !calc.HasTransactions() {
		logger.RefundDecision(order.ID, shipment.ID, "skipped", "no_valid_transactions")
		o.trail.OrderSkipped(order.ID, shipment.ID, "no_valid_transactions", map[string]any{
			"refund_type": string(calc.Type),
			"total":       calc.Total.StringFixed(2),
		})
		o.notifier.Warn("Skipped: no qualifying payment transactions", map[string]string{
			"order":       order.Name,
			"refund_type": string(calc.Type),
		})
		return outcomeSkipped, decimal.Zero
	}

	return o.executeRefund(ctx, order, shipment, tracking, calc, ledger, key)
}

func (o *Orchestrator) executeRefund(ctx context.Context, order *domain.Order, shipment *domain.ReturnShipment, tracking *domain.TrackingRecord, calc *domain.RefundCalculation, ledger *Ledger, key string) (shipmentOutcome, decimal.Decimal) {
	requestID := uuid.NewString()[:8]
	amountStr := calc.Total.StringFixed(2)

	note := fmt.Sprintf("%s refund - return to original payment methods", calc.Type)
	if calc.Type == domain.RefundTypePartial {
		note += fmt.Sprintf(" ($%s of $%s)", amountStr, order.TotalPrice.Amount.StringFixed(2))
	}

	olog := logger.WithOrder(*logger.Get(), order.ID, order.Name)
	olog.Info().
		Str("refund_type", string(calc.Type)).
		Str("amount", amountStr).
		Str("request_id", requestID).
		Str("tracking_number", tracking.Number).
		Bool("dry_run", o.opts.DryRun).
		Msg("Initiating refund")
	o.trail.RefundInitiated(order.ID, shipment.ID, string(calc.Type), amountStr)

	var result *domain.RefundResult
	var err error
	if o.opts.DryRun {
		result = o.dryRunResult(order, calc)
	} else {
		result, err = o.executor.ExecuteRefund(ctx, domain.RefundRequest{
			OrderID:      order.ID,
			OrderName:    order.Name,
			Note:         note,
			Currency:     calc.Currency,
			FullShipping: calc.Type == domain.RefundTypeFull && calc.Shipping.Sign() > 0,
			Shipping:     domain.MoneyFromDecimal(calc.Shipping, calc.Currency),
			LineItems:    calc.LineItems,
			Transactions: calc.Transactions,
		})
		o.trail.APIInteraction(order.ID, "shopify", "refund_create", err == nil)
	}
	if err != nil {
		olog.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("Refund execution failed")
		o.trail.RefundFailed(order.ID, shipment.ID, err.Error())
		o.notifier.Error("Refund failed for "+order.Name, map[string]string{
			"order":  order.Name,
			"amount": amountStr,
			"error":  err.Error(),
		}, requestID)
		return outcomeFailed, decimal.Zero
	}

	ledger.Record(order.ID, shipment.ID, calc)
	if err := o.store.MarkCompleted(key, order.ID, OperationRefund, result.ID); err != nil {
		logger.Error().Err(err).Str("idempotency_key", key).Msg("Failed to mark idempotency entry")
	}

	logger.RefundDecision(order.ID, shipment.ID, "refunded", string(calc.Type))
	o.trail.RefundCompleted(order.ID, shipment.ID, result.ID, amountStr)
	o.notifier.Success("Refund processed for "+order.Name, map[string]string{
		"order":       order.Name,
		"refund_id":   result.ID,
		"refund_type": string(calc.Type),
		"amount":      amountStr + " " + calc.Currency,
		"request_id":  requestID,
	})
	return outcomeRefunded, calc.Total
}

// dryRunResult mirrors the live result shape so audit, idempotency and
// notifications exercise the identical pipeline.
func (o *Orchestrator) dryRunResult(order *domain.Order, calc *domain.RefundCalculation) *domain.RefundResult {
	return &domain.RefundResult{
		ID:            fmt.Sprintf("gid://shopify/Refund/%s-%d-dry-run-%s", order.ID, o.now().Unix(), calc.Type),
		OrderName:     fmt.Sprintf("%s | DRY_RUN | %s", order.Name, calc.Type),
		TotalRefunded: domain.MoneyFromDecimal(calc.Total, calc.Currency),
		CreatedAt:     o.now(),
		DryRun:        true,
	}
}

// closeRefundedReturns closes the refunded return shipments through a
// bounded worker pool. LIVE mode only; close failures are logged and
// notified but never fail the run.
func (o *Orchestrator) closeRefundedReturns(ctx context.Context, returnIDs []string) {
	if o.opts.DryRun || len(returnIDs) == 0 {
		return
	}

	workers := o.opts.CloseWorkers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range returnIDs {
		id := id
		g.Go(func() error {
			if err := o.closer.CloseReturn(gctx, id); err != nil {
				logger.Error().Err(err).Str("return_id", id).Msg("Failed to close return")
				o.notifier.Warn("Failed to close refunded return", map[string]string{
					"return_id": id,
					"error":     err.Error(),
				})
				return nil
			}
			logger.Info().Str("return_id", id).Msg("Return closed")
			return nil
		})
	}
	g.Wait()
}

func (o *Orchestrator) emitSummary(s *Summary) {
	mode := "LIVE"
	if o.opts.DryRun {
		mode = "DRY_RUN"
	}
	logger.Info().
		Str("mode", mode).
		Int("refunded", s.Refunded).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("duplicates", s.Duplicates).
		Int("attempts", s.Attempts).
		Str("total_refunded", s.TotalRefunded.StringFixed(2)).
		Msg("Run summary")

	o.notifier.Info("Refund run complete", map[string]string{
		"mode":           mode,
		"refunded":       fmt.Sprint(s.Refunded),
		"skipped":        fmt.Sprint(s.Skipped),
		"failed":         fmt.Sprint(s.Failed),
		"duplicates":     fmt.Sprint(s.Duplicates),
		"attempts":       fmt.Sprint(s.Attempts),
		"total_refunded": s.TotalRefunded.StringFixed(2) + " " + s.Currency,
	})
}
