package service

import (
	"context"

	"github.com/platformplatform/identity-service/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// TelemetryPublisher publishes domain events as structured log entries and
// OpenTelemetry counters so the auth funnel can be reconstructed without
// storing any secret material.
type TelemetryPublisher struct {
	logger        *zap.Logger
	eventCounter  metric.Int64Counter
	flowHistogram metric.Float64Histogram
}

// NewTelemetryPublisher creates a telemetry-backed event publisher.
func NewTelemetryPublisher(logger *zap.Logger) (*TelemetryPublisher, error) {
	meter := otel.Meter("identity-service/auth")

	eventCounter, err := meter.Int64Counter("auth_events_total",
		metric.WithDescription("Authentication domain events by name"))
	if err != nil {
		return nil, err
	}

	flowHistogram, err := meter.Float64Histogram("external_login_duration_seconds",
		metric.WithDescription("Elapsed time from external login start to terminal outcome"))
	if err != nil {
		return nil, err
	}

	return &TelemetryPublisher{
		logger:        logger,
		eventCounter:  eventCounter,
		flowHistogram: flowHistogram,
	}, nil
}

// Publish records each event. Events arrive only after the transaction that
// produced them has committed.
func (p *TelemetryPublisher) Publish(ctx context.Context, events ...domain.Event) {
	for _, event := range events {
		fields := []zap.Field{zap.String("event", event.EventName())}
		attrs := []attribute.KeyValue{attribute.String("event", event.EventName())}

		switch e := event.(type) {
		case domain.EmailLoginStarted:
			fields = append(fields, zap.String("email_login_id", e.EmailLoginID), zap.String("type", string(e.Type)))
		case domain.EmailLoginCodeResent:
			fields = append(fields, zap.String("email_login_id", e.EmailLoginID), zap.Int("resend_count", e.ResendCount))
		case domain.EmailLoginCodeFailed:
			fields = append(fields, zap.String("email_login_id", e.EmailLoginID), zap.Int("retry_count", e.RetryCount))
		case domain.EmailLoginBlocked:
			fields = append(fields, zap.String("email_login_id", e.EmailLoginID), zap.Int("retry_count", e.RetryCount))
		case domain.EmailLoginCompleted:
			fields = append(fields, zap.String("email_login_id", e.EmailLoginID), zap.String("tenant_id", e.TenantID), zap.String("user_id", e.UserID))
		case domain.InviteAccepted:
			fields = append(fields, zap.String("tenant_id", e.TenantID), zap.String("user_id", e.UserID))
		case domain.ExternalLoginStarted:
			fields = append(fields, zap.String("external_login_id", e.ExternalLoginID), zap.String("provider", string(e.Provider)), zap.String("type", string(e.Type)))
		case domain.ExternalLoginCompleted:
			fields = append(fields, zap.String("external_login_id", e.ExternalLoginID), zap.String("provider", string(e.Provider)), zap.Duration("elapsed", e.Elapsed))
			attrs = append(attrs, attribute.String("provider", string(e.Provider)), attribute.String("result", "Completed"))
			p.flowHistogram.Record(ctx, e.Elapsed.Seconds(), metric.WithAttributes(attrs...))
		case domain.ExternalLoginFailed:
			fields = append(fields, zap.String("external_login_id", e.ExternalLoginID), zap.String("provider", string(e.Provider)), zap.String("result", string(e.Result)), zap.Duration("elapsed", e.Elapsed))
			attrs = append(attrs, attribute.String("provider", string(e.Provider)), attribute.String("result", string(e.Result)))
			p.flowHistogram.Record(ctx, e.Elapsed.Seconds(), metric.WithAttributes(attrs...))
		case domain.SessionCreated:
			fields = append(fields, zap.String("tenant_id", e.TenantID), zap.String("session_id", e.SessionID), zap.String("user_id", e.UserID), zap.String("login_method", string(e.LoginMethod)))
			attrs = append(attrs, attribute.String("login_method", string(e.LoginMethod)))
		case domain.SessionRevoked:
			fields = append(fields, zap.String("tenant_id", e.TenantID), zap.String("session_id", e.SessionID), zap.String("reason", string(e.Reason)))
			attrs = append(attrs, attribute.String("reason", string(e.Reason)))
		case domain.RefreshTokenRotated:
			fields = append(fields, zap.String("tenant_id", e.TenantID), zap.String("session_id", e.SessionID), zap.Int("version", e.Version))
		}

		p.logger.Info("Domain event", fields...)
		p.eventCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
