package revocation

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*PostgresLedger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresLedger(mock, slog.Default()), mock
}

func TestPostgresLedger_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		ledger, mock := newLedger(t)
		jti, userID := uuid.New(), uuid.New()
		exp := time.Now().Add(time.Hour)

		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (jti) DO NOTHING")).
			WithArgs(jti, userID, exp).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		first, err := ledger.Revoke(ctx, jti, userID, exp)
		require.NoError(t, err)
		assert.True(t, first)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DoubleRevokeIsHarmless", func(t *testing.T) {
		ledger, mock := newLedger(t)
		jti, userID := uuid.New(), uuid.New()
		exp := time.Now().Add(time.Hour)

		mock.ExpectExec("INSERT INTO revoked_tokens").WithArgs(jti, userID, exp).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("INSERT INTO revoked_tokens").WithArgs(jti, userID, exp).WillReturnResult(pgxmock.NewResult("INSERT", 0))

		first, err := ledger.Revoke(ctx, jti, userID, exp)
		require.NoError(t, err)
		assert.True(t, first)
		again, err := ledger.Revoke(ctx, jti, userID, exp)
		require.NoError(t, err)
		assert.False(t, again)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StoreError", func(t *testing.T) {
		ledger, mock := newLedger(t)
		mock.ExpectExec("INSERT INTO revoked_tokens").WillReturnError(errors.New("connection reset"))

		_, err := ledger.Revoke(ctx, uuid.New(), uuid.New(), time.Now())
		assert.Error(t, err)
	})
}

func TestPostgresLedger_IsRevoked(t *testing.T) {
	ctx := context.Background()
	ledger, mock := newLedger(t)
	jti := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE jti = $1 AND expire_at > now()")).
		WithArgs(jti).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := ledger.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_PurgeExpired(t *testing.T) {
	ledger, mock := newLedger(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM revoked_tokens WHERE expire_at <= now()")).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := ledger.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type countingLedger struct {
	Ledger
	purges atomic.Int32
}

func (c *countingLedger) PurgeExpired(context.Context) (int64, error) {
	c.purges.Add(1)
	return 1, nil
}

func TestReaperRunsUntilCancelled(t *testing.T) {
	ledger := &countingLedger{}
	reaper := NewReaper(ledger, 5*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reaper.Run(ctx) }()

	assert.Eventually(t, func() bool { return ledger.purges.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
