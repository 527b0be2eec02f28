// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ProspectIDKey is the context key for the prospect being operated on
	ProspectIDKey contextKey = "prospect_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and prospect_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if prospectID, ok := ctx.Value(ProspectIDKey).(string); ok && prospectID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("prospect_id", prospectID))}
	}

	return newLogger
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// StageTransition logs a pipeline stage change applied by the automation engine.
func (l *Logger) StageTransition(prospectID, fromStage, toStage, rule string) {
	l.Info("stage_transition",
		slog.String("prospect_id", prospectID),
		slog.String("from_stage", fromStage),
		slog.String("to_stage", toStage),
		slog.String("rule", rule),
	)
}

// PaymentEvent logs payment reconciliation outcomes.
func (l *Logger) PaymentEvent(event, externalID, status string) {
	l.Info("payment_event",
		slog.String("event", event),
		slog.String("external_id", externalID),
		slog.String("status", status),
	)
}

// CampaignRun logs the outcome of one campaign run.
func (l *Logger) CampaignRun(runID string, processed, sent, errors int) {
	l.Info("campaign_run",
		slog.String("run_id", runID),
		slog.Int("processed", processed),
		slog.Int("sent", sent),
		slog.Int("errors", errors),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
