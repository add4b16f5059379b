package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security enforcement event
type AuditEvent struct {
	EventType   string
	AccountID   string
	ActorID     string
	Outcome     string
	LockedUntil *time.Time
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogEnforcement logs a policy enforcement decision. Lockouts and
// rejections log at warn level; everything else at info.
func (al *AuditLogger) LogEnforcement(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account_security"),
		slog.String("event_type", event.EventType),
		slog.String("outcome", event.Outcome),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", event.AccountID))
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	if event.LockedUntil != nil {
		attrs = append(attrs, slog.Time("locked_until", *event.LockedUntil))
	}

	level := slog.LevelInfo
	switch event.Outcome {
	case "locked", "rejected", "rejected_reuse", "rejected_too_soon":
		level = slog.LevelWarn
	}

	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
