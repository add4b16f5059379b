package integration

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/schema"
	"github.com/BradenHooton/bastion/internal/services"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
)

func TestAccountSecurity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	trackerRepo, historyRepo := InitializeRepositories(testDB.DB)

	sqlDB := stdlib.OpenDB(*testDB.Pool.Config().ConnConfig)
	defer sqlDB.Close()
	manager := schema.NewManager(sqlDB, logger)

	t.Run("ApplyIsIdempotent", func(t *testing.T) {
		// The goose run already applied the schema; applying again must
		// be a no-op, not an error.
		require.NoError(t, manager.Apply(ctx))
		require.NoError(t, manager.Apply(ctx))

		var hasColumns bool
		err := testDB.Pool.QueryRow(ctx, `
			SELECT COUNT(*) = 3 FROM information_schema.columns
			WHERE table_name = 'accounts'
			AND column_name IN ('password_updated_at', 'failed_login_attempts', 'locked_until')
		`).Scan(&hasColumns)
		require.NoError(t, err)
		assert.True(t, hasColumns)
	})

	t.Run("RevertAndReapply", func(t *testing.T) {
		require.NoError(t, manager.Revert(ctx))
		// Reverting an already-reverted store is a no-op.
		require.NoError(t, manager.Revert(ctx))

		var historyExists bool
		err := testDB.Pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables WHERE table_name = 'password_history'
			)
		`).Scan(&historyExists)
		require.NoError(t, err)
		assert.False(t, historyExists)

		require.NoError(t, manager.Apply(ctx))
	})

	t.Run("ApplyBackfillsPasswordUpdatedAt", func(t *testing.T) {
		require.NoError(t, manager.Revert(ctx))

		accountID, err := SeedAccount(ctx, testDB.Pool, "backfill@example.com")
		require.NoError(t, err)

		require.NoError(t, manager.Apply(ctx))

		var updatedAt *time.Time
		err = testDB.Pool.QueryRow(ctx,
			`SELECT password_updated_at FROM accounts WHERE id = $1`, accountID).Scan(&updatedAt)
		require.NoError(t, err)
		assert.NotNil(t, updatedAt, "pre-existing account should be backfilled")
	})

	t.Run("RecordFailureLocksAtThreshold", func(t *testing.T) {
		accountID, err := SeedAccount(ctx, testDB.Pool, "lockout@example.com")
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Microsecond)

		for i := 1; i <= 4; i++ {
			state, until, err := trackerRepo.RecordFailure(ctx, accountID, now, 5, 15*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, models.StateOpen, state, "attempt %d", i)
			assert.Nil(t, until)
		}

		state, until, err := trackerRepo.RecordFailure(ctx, accountID, now, 5, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, models.StateLocked, state)
		require.NotNil(t, until)
		assert.True(t, until.Equal(now.Add(15*time.Minute)))
	})

	t.Run("ConcurrentFailuresSingleLockout", func(t *testing.T) {
		accountID, err := SeedAccount(ctx, testDB.Pool, "concurrent@example.com")
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Microsecond)
		const attempts = 5

		var wg sync.WaitGroup
		untils := make([]*time.Time, attempts)
		errs := make([]error, attempts)

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, until, err := trackerRepo.RecordFailure(ctx, accountID, now, 5, 15*time.Minute)
				untils[i] = until
				errs[i] = err
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}

		// Exactly one lockout transition: every observed expiry is the
		// same instant, and the counter holds at the threshold.
		want := now.Add(15 * time.Minute)
		locked := 0
		for _, until := range untils {
			if until != nil {
				locked++
				assert.True(t, until.Equal(want), "got %v, want %v", until, want)
			}
		}
		assert.GreaterOrEqual(t, locked, 1)

		sec, err := trackerRepo.GetSecurity(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, 5, sec.FailedLoginAttempts)
		require.NotNil(t, sec.LockedUntil)
		assert.True(t, sec.LockedUntil.Equal(want))
	})

	t.Run("CheckStateClearsLapsedLockout", func(t *testing.T) {
		accountID, err := SeedAccount(ctx, testDB.Pool, "expiry@example.com")
		require.NoError(t, err)

		past := time.Now().UTC().Add(-time.Minute)
		_, err = testDB.Pool.Exec(ctx,
			`UPDATE accounts SET failed_login_attempts = 5, locked_until = $2 WHERE id = $1`,
			accountID, past)
		require.NoError(t, err)

		state, until, err := trackerRepo.CheckState(ctx, accountID, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, models.StateOpen, state)
		assert.Nil(t, until)

		var count int
		var lockedUntil *time.Time
		err = testDB.Pool.QueryRow(ctx,
			`SELECT failed_login_attempts, locked_until FROM accounts WHERE id = $1`,
			accountID).Scan(&count, &lockedUntil)
		require.NoError(t, err)
		assert.Equal(t, 0, count, "counter resets when lapse is observed")
		assert.Nil(t, lockedUntil)
	})

	t.Run("RecordSuccessResetsState", func(t *testing.T) {
		accountID, err := SeedAccount(ctx, testDB.Pool, "success@example.com")
		require.NoError(t, err)

		now := time.Now().UTC()
		for i := 0; i < 3; i++ {
			_, _, err := trackerRepo.RecordFailure(ctx, accountID, now, 5, 15*time.Minute)
			require.NoError(t, err)
		}

		require.NoError(t, trackerRepo.RecordSuccess(ctx, accountID))

		var count int
		err = testDB.Pool.QueryRow(ctx,
			`SELECT failed_login_attempts FROM accounts WHERE id = $1`, accountID).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("TrackerRejectsUnknownAccount", func(t *testing.T) {
		missing := "00000000-0000-0000-0000-000000000000"

		_, _, err := trackerRepo.RecordFailure(ctx, missing, time.Now(), 5, 15*time.Minute)
		assert.ErrorIs(t, err, models.ErrAccountNotFound)

		err = trackerRepo.RecordSuccess(ctx, missing)
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})

	t.Run("HistoryLedger", func(t *testing.T) {
		accountID, err := SeedAccount(ctx, testDB.Pool, "ledger@example.com")
		require.NoError(t, err)

		// Empty history is an empty slice, not an error.
		hashes, err := historyRepo.RecentHashes(ctx, accountID, 5)
		require.NoError(t, err)
		assert.Empty(t, hashes)

		base := time.Now().UTC().Add(-time.Hour)
		for i, h := range []string{"H1", "H2", "H3"} {
			at := base.Add(time.Duration(i) * time.Minute)
			_, err := testDB.Pool.Exec(ctx,
				`INSERT INTO password_history (id, account_id, password_hash, created_at)
				 VALUES (gen_random_uuid(), $1, $2, $3)`, accountID, h, at)
			require.NoError(t, err)
		}

		hashes, err = historyRepo.RecentHashes(ctx, accountID, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"H3", "H2"}, hashes)

		// Referential check: recording against a missing account fails.
		_, err = historyRepo.Record(ctx, "00000000-0000-0000-0000-000000000000", "H9", nil)
		assert.ErrorIs(t, err, models.ErrAccountNotFound)

		actor := "admin-42"
		id, err := historyRepo.Record(ctx, accountID, "H4", &actor)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		entries, err := historyRepo.RecentEntries(ctx, accountID, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, id, entries[0].ID)
		assert.Equal(t, "H4", entries[0].PasswordHash)
		require.NotNil(t, entries[0].CreatedBy)
		assert.Equal(t, actor, *entries[0].CreatedBy)

		// Purge empties an account's ledger without touching others.
		otherID, err := SeedAccount(ctx, testDB.Pool, "ledger-other@example.com")
		require.NoError(t, err)
		_, err = historyRepo.Record(ctx, otherID, "H5", nil)
		require.NoError(t, err)

		require.NoError(t, historyRepo.Purge(ctx, accountID))

		hashes, err = historyRepo.RecentHashes(ctx, accountID, 5)
		require.NoError(t, err)
		assert.Empty(t, hashes)

		kept, err := historyRepo.RecentHashes(ctx, otherID, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"H5"}, kept)

		// Deleting an account cascades to its history.
		_, err = testDB.Pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, otherID)
		require.NoError(t, err)

		var remaining int
		err = testDB.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM password_history WHERE account_id = $1`, otherID).Scan(&remaining)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
	})

	t.Run("EnforcerEndToEnd", func(t *testing.T) {
		accountID, err := SeedAccount(ctx, testDB.Pool, "enforcer@example.com")
		require.NoError(t, err)

		service, err := services.NewEnforcementService(trackerRepo, historyRepo, services.PolicyConfig{
			HistoryDepth:       2,
			FailureThreshold:   3,
			LockoutDuration:    15 * time.Minute,
			MinimumPasswordAge: time.Minute,
		}, logger, pkglogger.NewAuditLogger(logger))
		require.NoError(t, err)

		at := time.Now().UTC().Truncate(time.Microsecond)

		outcome, err := service.EvaluatePasswordChange(ctx, accountID, "H1", nil, at)
		require.NoError(t, err)
		assert.Equal(t, models.ChangeAccepted, outcome)

		outcome, err = service.EvaluatePasswordChange(ctx, accountID, "H2", nil, at.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.ChangeAccepted, outcome)

		// 30s after the H2 change: below the one-minute minimum age.
		outcome, err = service.EvaluatePasswordChange(ctx, accountID, "H9", nil, at.Add(time.Hour).Add(30*time.Second))
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRejectedTooSoon, outcome)

		outcome, err = service.EvaluatePasswordChange(ctx, accountID, "H1", nil, at.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRejectedReuse, outcome)

		outcome, err = service.EvaluatePasswordChange(ctx, accountID, "H3", nil, at.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.ChangeAccepted, outcome)

		// H1 has fallen outside the depth-2 window.
		outcome, err = service.EvaluatePasswordChange(ctx, accountID, "H1", nil, at.Add(4*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.ChangeAccepted, outcome)

		// Lockout path through the service.
		loginAt := at.Add(5 * time.Hour)
		for i := 0; i < 2; i++ {
			out, err := service.EvaluateLoginAttempt(ctx, accountID, false, loginAt)
			require.NoError(t, err)
			assert.Equal(t, models.LoginRejected, out.Decision)
		}

		out, err := service.EvaluateLoginAttempt(ctx, accountID, false, loginAt)
		require.NoError(t, err)
		assert.Equal(t, models.LoginLocked, out.Decision)
		require.NotNil(t, out.LockedUntil)

		// Administrative unlock reopens the account immediately.
		require.NoError(t, service.Unlock(ctx, accountID, "admin-1"))
		out, err = service.EvaluateLoginAttempt(ctx, accountID, true, loginAt.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, models.LoginAllowed, out.Decision)
	})

	t.Run("CanceledContextSurfacesStorageError", func(t *testing.T) {
		accountID, err := SeedAccount(ctx, testDB.Pool, "timeout@example.com")
		require.NoError(t, err)

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, _, err = trackerRepo.RecordFailure(canceled, accountID, time.Now(), 5, 15*time.Minute)
		require.Error(t, err)

		var storageErr *models.StorageError
		if !errors.As(err, &storageErr) {
			assert.ErrorIs(t, err, context.Canceled)
		}
	})
}
