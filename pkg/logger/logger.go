package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance
var log zerolog.Logger

// Init initializes the global logger
func Init(env string, logLevel string) {
	// Set time format
	zerolog.TimeFieldFormat = time.RFC3339

	// Default output
	var output io.Writer = os.Stdout

	// Pretty console output for development
	if env == "development" || env == "dev" || env == "" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	// Parse log level
	var level zerolog.Level
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Get returns the global logger
func Get() *zerolog.Logger {
	return &log
}

// WithRequestID adds a run-scoped request ID to the logger
func WithRequestID(requestID string) zerolog.Logger {
	return log.With().Str("request_id", requestID).Logger()
}

// WithOrder adds order identifiers to the logger
func WithOrder(l zerolog.Logger, orderID, orderName string) zerolog.Logger {
	return l.With().Str("order_id", orderID).Str("order_name", orderName).Logger()
}

// --- Convenience Methods ---

// Debug logs a debug message
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info logs an info message
func Info() *zerolog.Event {
	return log.Info()
}

// Warn logs a warning message
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error logs an error message
func Error() *zerolog.Event {
	return log.Error()
}

// Fatal logs a fatal message and exits
func Fatal() *zerolog.Event {
	return log.Fatal()
}

// --- Structured Logging Helpers ---

// APIRequest logs an outbound API call
func APIRequest(service, operation string, statusCode int, duration time.Duration, err error) {
	event := log.Debug().
		Str("service", service).
		Str("operation", operation).
		Int("status", statusCode).
		Dur("duration_ms", duration)

	if err != nil {
		event.Err(err).Msg("API Request Failed")
	} else {
		event.Msg("API Request")
	}
}

// RefundDecision logs a terminal per-shipment decision
func RefundDecision(orderID, shipmentID, decision, reason string) {
	log.Info().
		Str("order_id", orderID).
		Str("return_shipment_id", shipmentID).
		Str("decision", decision).
		Str("reason", reason).
		Msg("Refund Decision")
}

// RunStart logs automation startup
func RunStart(name, mode, requestID string) {
	log.Info().
		Str("automation", name).
		Str("mode", mode).
		Str("request_id", requestID).
		Msg("Run Started")
}

// RunStop logs automation shutdown
func RunStop(name string) {
	log.Info().
		Str("automation", name).
		Msg("Run Stopped")
}
