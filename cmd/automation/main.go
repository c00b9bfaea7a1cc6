package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"refund-automation/config"
	"refund-automation/internal/domain"
	"refund-automation/internal/infrastructure/idempotency"
	"refund-automation/internal/infrastructure/notify"
	"refund-automation/internal/repository/shopify"
	"refund-automation/internal/repository/tracking"
	"refund-automation/internal/usecase"
	"refund-automation/pkg/audit"
	"refund-automation/pkg/logger"
	"refund-automation/pkg/retry"
	"refund-automation/pkg/timeutil"

	"github.com/google/uuid"
)

func main() {
	cfg := config.LoadConfig()

	// Initialize Logger
	logger.Init(cfg.Env, cfg.LogLevel)

	requestID := uuid.NewString()
	log := logger.WithRequestID(requestID)
	logger.RunStart(cfg.AutomationID, cfg.Mode, requestID)

	tz := timeutil.NewHandler(cfg.StoreTimezone)

	trail, err := audit.NewTrail(cfg.AuditLogDir, requestID, cfg.DryRun(), cfg.AuditLogEnabled)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audit trail")
	}

	notifier := notify.NewSlackNotifier(cfg.SlackWebhookURL, cfg.SlackChannel, cfg.AutomationID, cfg.DryRun(), cfg.SlackEnabled)
	notifier.Info("Refund automation starting", map[string]string{
		"mode":     cfg.Mode,
		"timezone": cfg.StoreTimezone,
	})

	retryCfg := retry.Config{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseRetryDelay,
		MaxDelay:   cfg.MaxRetryDelay,
	}

	// Idempotency store
	var store domain.IdempotencyStore
	switch cfg.IdempotencyBackend {
	case config.IdempotencyBackendBolt:
		store, err = idempotency.NewBoltStore(cfg.IdempotencyDir, cfg.IdempotencyTTL, cfg.DryRun())
	default:
		store, err = idempotency.NewFileStore(cfg.IdempotencyDir, cfg.IdempotencyTTL, cfg.DryRun(), cfg.IdempotencySaveEnabled)
	}
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.IdempotencyBackend).Msg("Failed to open idempotency store")
	}
	if stats, err := store.Stats(); err != nil {
		log.Warn().Err(err).Msg("Failed to read idempotency store stats")
	} else {
		log.Info().
			Str("backend", cfg.IdempotencyBackend).
			Int("total", stats.Total).
			Int("dry_run", stats.DryRun).
			Int("live", stats.Live).
			Msg("Idempotency store loaded")
	}

	// Shopify Admin API
	shopifyClient := shopify.NewClient(shopify.ClientConfig{
		StoreURL:    cfg.ShopifyStoreURL,
		AccessToken: cfg.ShopifyAccessToken,
		APIVersion:  cfg.ShopifyAPIVersion,
		Timeout:     cfg.RequestTimeout,
		RateLimit:   cfg.APIRateLimit,
		Burst:       cfg.APIBurst,
		Retry:       retryCfg,
	})
	orderRepo := shopify.NewOrderRepository(shopifyClient, cfg.PageSize, cfg.MaxOrders)
	refundRepo := shopify.NewRefundRepository(shopifyClient)
	returnRepo := shopify.NewReturnRepository(shopifyClient)

	// Tracking provider
	trackingClient := tracking.NewClient(cfg.TrackingAPIURL, cfg.TrackingAPIKey, cfg.RequestTimeout, retryCfg)

	// Retrieval Module
	retriever := usecase.NewRetriever(usecase.RetrieverOptions{
		DefaultCarrierCode: cfg.DefaultCarrierCode,
		SegmentSize:        cfg.TrackingSegmentSize,
		SyncDelay:          cfg.TrackingSyncDelay,
	}, orderRepo, trackingClient, notifier)

	// Decision Module
	timing := usecase.NewTimingValidator(tz, cfg.RequiredDelayHours)
	validator := usecase.NewValidator(timing, trail, notifier)
	calculator := usecase.NewCalculator(usecase.Policy{
		RefundFullShipping:    cfg.RefundFullShipping,
		RefundPartialShipping: cfg.RefundPartialShipping,
	}, nil)

	orchestrator := usecase.NewOrchestrator(
		usecase.OrchestratorOptions{
			DryRun:          cfg.DryRun(),
			MaxBatchRetries: cfg.MaxBatchRetries,
			CloseWorkers:    cfg.CloseWorkers,
		},
		retriever,
		validator,
		calculator,
		store,
		refundRepo,
		returnRepo,
		notifier,
		trail,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := orchestrator.Run(ctx)

	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close idempotency store")
	}
	logger.RunStop(cfg.AutomationID)
	stop()

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn().Msg("Run interrupted")
			os.Exit(130)
		}
		log.Error().Err(runErr).Msg("Run finished with error")
		os.Exit(1)
	}

	log.Info().
		Int("refunded", summary.Refunded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("duplicates", summary.Duplicates).
		Msg("Run finished")
}
