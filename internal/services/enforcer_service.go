package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
)

// AttemptTracker defines the interface for the lockout state machine's
// persistence primitives. All read-modify-write cycles are atomic per
// account.
type AttemptTracker interface {
	RecordFailure(ctx context.Context, accountID string, at time.Time, threshold int, lockout time.Duration) (models.LockState, *time.Time, error)
	RecordSuccess(ctx context.Context, accountID string) error
	CheckState(ctx context.Context, accountID string, at time.Time) (models.LockState, *time.Time, error)
	Unlock(ctx context.Context, accountID string) error
}

// HistoryLedger defines the interface for the password history store.
// ChangePassword holds its check-then-insert as one atomic unit.
type HistoryLedger interface {
	ChangePassword(ctx context.Context, change models.PasswordChange, depth int, minimumAge time.Duration, equal models.HashEqualFunc) (models.ChangeOutcome, error)
	RecentHashes(ctx context.Context, accountID string, limit int) ([]string, error)
}

// PolicyConfig holds the enforcement thresholds and the hash-equality
// predicate supplied by the credential-verification collaborator.
type PolicyConfig struct {
	HistoryDepth       int
	FailureThreshold   int
	LockoutDuration    time.Duration
	MinimumPasswordAge time.Duration
	HashEqual          models.HashEqualFunc
}

// EnforcementService orchestrates the attempt tracker and the history
// ledger against the configured policy. It is the decision API the
// authentication flow consumes; credential verification happens outside
// and its result is passed in.
type EnforcementService struct {
	tracker     AttemptTracker
	ledger      HistoryLedger
	config      PolicyConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewEnforcementService validates the policy and wires the service.
// Any non-positive threshold fails construction: the service never runs
// with protection disabled.
func NewEnforcementService(tracker AttemptTracker, ledger HistoryLedger, config PolicyConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) (*EnforcementService, error) {
	if config.HistoryDepth <= 0 {
		return nil, &models.ConfigError{Field: "HistoryDepth", Reason: "must be strictly positive"}
	}
	if config.FailureThreshold <= 0 {
		return nil, &models.ConfigError{Field: "FailureThreshold", Reason: "must be strictly positive"}
	}
	if config.LockoutDuration <= 0 {
		return nil, &models.ConfigError{Field: "LockoutDuration", Reason: "must be strictly positive"}
	}
	if config.MinimumPasswordAge <= 0 {
		return nil, &models.ConfigError{Field: "MinimumPasswordAge", Reason: "must be strictly positive"}
	}
	if config.HashEqual == nil {
		config.HashEqual = models.ConstantTimeHashEqual
	}

	return &EnforcementService{
		tracker:     tracker,
		ledger:      ledger,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
	}, nil
}

// EvaluateLoginAttempt decides a login attempt. A locked account
// short-circuits before the credential result is consulted, so the
// response does not leak whether the credentials were valid while
// locked. Otherwise an invalid result counts a failure (possibly
// transitioning to locked) and a valid result clears all prior failure
// state.
func (s *EnforcementService) EvaluateLoginAttempt(ctx context.Context, accountID string, credentialsValid bool, at time.Time) (models.LoginOutcome, error) {
	state, until, err := s.tracker.CheckState(ctx, accountID, at)
	if err != nil {
		return models.LoginOutcome{}, err
	}

	if state == models.StateLocked {
		s.auditLogger.LogEnforcement(pkglogger.AuditEvent{
			EventType:   "login_attempt",
			AccountID:   accountID,
			Outcome:     "locked",
			LockedUntil: until,
		})
		return models.LoginOutcome{Decision: models.LoginLocked, LockedUntil: until}, nil
	}

	if !credentialsValid {
		state, until, err := s.tracker.RecordFailure(ctx, accountID, at, s.config.FailureThreshold, s.config.LockoutDuration)
		if err != nil {
			return models.LoginOutcome{}, err
		}

		if state == models.StateLocked {
			s.logger.Warn("account locked after repeated failures",
				slog.String("account_id", accountID),
				slog.Int("threshold", s.config.FailureThreshold),
			)
			s.auditLogger.LogEnforcement(pkglogger.AuditEvent{
				EventType:   "lockout_transition",
				AccountID:   accountID,
				Outcome:     "locked",
				LockedUntil: until,
			})
			return models.LoginOutcome{Decision: models.LoginLocked, LockedUntil: until}, nil
		}

		s.auditLogger.LogEnforcement(pkglogger.AuditEvent{
			EventType: "login_attempt",
			AccountID: accountID,
			Outcome:   "rejected",
		})
		return models.LoginOutcome{Decision: models.LoginRejected}, nil
	}

	if err := s.tracker.RecordSuccess(ctx, accountID); err != nil {
		return models.LoginOutcome{}, err
	}

	s.auditLogger.LogEnforcement(pkglogger.AuditEvent{
		EventType: "login_attempt",
		AccountID: accountID,
		Outcome:   "allowed",
	})
	return models.LoginOutcome{Decision: models.LoginAllowed}, nil
}

// EvaluatePasswordChange applies the reuse and minimum-age policy to a
// proposed change and records it when accepted. The check and the
// insert commit as one atomic unit in the ledger.
func (s *EnforcementService) EvaluatePasswordChange(ctx context.Context, accountID, newPasswordHash string, actorID *string, at time.Time) (models.ChangeOutcome, error) {
	change := models.PasswordChange{
		AccountID: accountID,
		NewHash:   newPasswordHash,
		ActorID:   actorID,
		At:        at,
	}

	outcome, err := s.ledger.ChangePassword(ctx, change, s.config.HistoryDepth, s.config.MinimumPasswordAge, s.config.HashEqual)
	if err != nil {
		return outcome, err
	}

	// The hash itself is never logged, only a short fingerprint.
	s.logger.Debug("password change evaluated",
		slog.String("account_id", accountID),
		slog.String("hash_fingerprint", pkglogger.HashFingerprint(newPasswordHash)),
		slog.String("outcome", outcome.String()),
	)

	event := pkglogger.AuditEvent{
		EventType: "password_change",
		AccountID: accountID,
		Outcome:   outcome.String(),
	}
	if actorID != nil {
		event.ActorID = *actorID
	}
	s.auditLogger.LogEnforcement(event)

	return outcome, nil
}

// CheckState exposes the tracker's lazy lockout evaluation to callers.
func (s *EnforcementService) CheckState(ctx context.Context, accountID string, at time.Time) (models.LockState, *time.Time, error) {
	return s.tracker.CheckState(ctx, accountID, at)
}

// Unlock clears a lockout before its natural expiry, on behalf of an
// administrator.
func (s *EnforcementService) Unlock(ctx context.Context, accountID, actorID string) error {
	if err := s.tracker.Unlock(ctx, accountID); err != nil {
		return err
	}

	s.auditLogger.LogEnforcement(pkglogger.AuditEvent{
		EventType: "administrative_unlock",
		AccountID: accountID,
		ActorID:   actorID,
		Outcome:   "unlocked",
	})
	return nil
}
