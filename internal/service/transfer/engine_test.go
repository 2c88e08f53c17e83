package transfer_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/repository"
	"github.com/josh-kwaku/bankcards-api/internal/service/transfer"
	"github.com/josh-kwaku/bankcards-api/internal/testutil"
)

func setupEngine(t *testing.T, db *sql.DB) *transfer.Engine {
	t.Helper()
	return transfer.NewEngine(
		db,
		repository.NewCardRepository(db),
		repository.NewTransferRepository(db),
		nil,
		2*time.Second,
	)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransfer_ExampleScenario(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := setupEngine(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "u@test.com", domain.RoleUser)
	x := testutil.SeedCard(t, db, user.ID, "100.00")
	y := testutil.SeedCard(t, db, user.ID, "50.00")

	rec, err := engine.Transfer(ctx, transfer.Request{
		ActingUserID: user.ID,
		FromCardID:   x.ID,
		ToCardID:     y.ID,
		Amount:       dec("30.00"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, x.ID, rec.SenderCardID)
	assert.Equal(t, y.ID, rec.ReceiverCardID)
	testutil.RequireDecimal(t, "30.00", rec.Amount)
	assert.WithinDuration(t, time.Now(), rec.TransferredAt, time.Minute)

	testutil.RequireDecimal(t, "70.00", testutil.GetCardBalance(t, db, x.ID))
	testutil.RequireDecimal(t, "80.00", testutil.GetCardBalance(t, db, y.ID))
	assert.Equal(t, 1, testutil.CountTransfers(t, db, x.ID))

	_, err = engine.Transfer(ctx, transfer.Request{
		ActingUserID: user.ID,
		FromCardID:   x.ID,
		ToCardID:     y.ID,
		Amount:       dec("1000.00"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	testutil.RequireDecimal(t, "70.00", testutil.GetCardBalance(t, db, x.ID))
	testutil.RequireDecimal(t, "80.00", testutil.GetCardBalance(t, db, y.ID))
	assert.Equal(t, 1, testutil.CountTransfers(t, db, x.ID))
}

func TestTransfer_HistoryRecordMatchesRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := setupEngine(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "u@test.com", domain.RoleUser)
	x := testutil.SeedCard(t, db, user.ID, "10.00")
	y := testutil.SeedCard(t, db, user.ID, "0")

	rec, err := engine.Transfer(ctx, transfer.Request{
		ActingUserID: user.ID, FromCardID: x.ID, ToCardID: y.ID, Amount: dec("0.01"),
	})
	require.NoError(t, err)

	history, total, err := repository.NewTransferRepository(db).ListByUser(ctx, user.ID, domain.Page{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, history, 1)
	assert.Equal(t, rec.ID, history[0].ID)
	assert.Equal(t, x.ID, history[0].SenderCardID)
	assert.Equal(t, y.ID, history[0].ReceiverCardID)
	testutil.RequireDecimal(t, "0.01", history[0].Amount)
}

func TestTransfer_Rejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := setupEngine(t, db)
	ctx := context.Background()

	owner := testutil.SeedUser(t, db, "owner@test.com", domain.RoleUser)
	other := testutil.SeedUser(t, db, "other@test.com", domain.RoleUser)

	from := testutil.SeedCard(t, db, owner.ID, "100.00")
	to := testutil.SeedCard(t, db, owner.ID, "50.00")
	foreign := testutil.SeedCard(t, db, other.ID, "500.00")
	blocked := testutil.SeedCardWith(t, db, owner.ID, "100.00", domain.CardStatusBlocked, time.Now().AddDate(1, 0, 0))
	expired := testutil.SeedCardWith(t, db, owner.ID, "100.00", domain.CardStatusActive, time.Now().AddDate(0, 0, -3))

	tests := []struct {
		name     string
		actor    uuid.UUID
		from, to uuid.UUID
		wantErr  error
		wantKind error
	}{
		{"unknown sender", owner.ID, uuid.New(), to.ID, domain.ErrCardNotFound, domain.ErrNotFound},
		{"unknown receiver", owner.ID, from.ID, uuid.New(), domain.ErrCardNotFound, domain.ErrNotFound},
		{"foreign sender", owner.ID, foreign.ID, to.ID, domain.ErrNotCardOwner, domain.ErrForbidden},
		{"foreign receiver", owner.ID, from.ID, foreign.ID, domain.ErrNotCardOwner, domain.ErrForbidden},
		{"acting user owns neither", other.ID, from.ID, to.ID, domain.ErrNotCardOwner, domain.ErrForbidden},
		{"blocked sender", owner.ID, blocked.ID, to.ID, domain.ErrCardNotActive, domain.ErrInvalidState},
		{"blocked receiver", owner.ID, from.ID, blocked.ID, domain.ErrCardNotActive, domain.ErrInvalidState},
		{"expired receiver", owner.ID, from.ID, expired.ID, domain.ErrCardExpired, domain.ErrInvalidState},
		{"same card", owner.ID, from.ID, from.ID, domain.ErrSameCard, domain.ErrInvalidState},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Transfer(ctx, transfer.Request{
				ActingUserID: tc.actor,
				FromCardID:   tc.from,
				ToCardID:     tc.to,
				Amount:       dec("10.00"),
			})
			require.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, tc.wantKind)
		})
	}

	testutil.RequireDecimal(t, "100.00", testutil.GetCardBalance(t, db, from.ID))
	testutil.RequireDecimal(t, "50.00", testutil.GetCardBalance(t, db, to.ID))
	testutil.RequireDecimal(t, "500.00", testutil.GetCardBalance(t, db, foreign.ID))
	testutil.RequireDecimal(t, "100.00", testutil.GetCardBalance(t, db, blocked.ID))
	assert.Equal(t, 0, testutil.CountTransfers(t, db, from.ID))
	assert.Equal(t, 0, testutil.CountTransfers(t, db, foreign.ID))
}

func TestTransfer_ConcurrentOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := setupEngine(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "u@test.com", domain.RoleUser)
	source := testutil.SeedCard(t, db, user.ID, "100.00")

	const n = 8
	receivers := make([]*domain.Card, n)
	for i := range receivers {
		receivers[i] = testutil.SeedCard(t, db, user.ID, "0")
	}

	errs := make([]error, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			_, errs[i] = engine.Transfer(ctx, transfer.Request{
				ActingUserID: user.ID,
				FromCardID:   source.ID,
				ToCardID:     receivers[i].ID,
				Amount:       dec("30.00"),
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var successes, failures int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		failures++
	}

	assert.Equal(t, 3, successes, "floor(100/30) transfers must succeed")
	assert.Equal(t, n-3, failures)
	testutil.RequireDecimal(t, "10.00", testutil.GetCardBalance(t, db, source.ID))
	assert.Equal(t, 3, testutil.CountTransfers(t, db, source.ID))

	credited := decimal.Zero
	for _, r := range receivers {
		credited = credited.Add(testutil.GetCardBalance(t, db, r.ID))
	}
	testutil.RequireDecimal(t, "90.00", credited)
}

func TestTransfer_OppositeDirectionsDoNotDeadlock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := setupEngine(t, db)

	user := testutil.SeedUser(t, db, "u@test.com", domain.RoleUser)
	a := testutil.SeedCard(t, db, user.ID, "1000.00")
	b := testutil.SeedCard(t, db, user.ID, "1000.00")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const rounds = 20
	g, gctx := errgroup.WithContext(ctx)
	for range rounds {
		g.Go(func() error {
			_, err := engine.Transfer(gctx, transfer.Request{
				ActingUserID: user.ID, FromCardID: a.ID, ToCardID: b.ID, Amount: dec("10"),
			})
			return err
		})
		g.Go(func() error {
			_, err := engine.Transfer(gctx, transfer.Request{
				ActingUserID: user.ID, FromCardID: b.ID, ToCardID: a.ID, Amount: dec("5"),
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	testutil.RequireDecimal(t, "900.00", testutil.GetCardBalance(t, db, a.ID))
	testutil.RequireDecimal(t, "1100.00", testutil.GetCardBalance(t, db, b.ID))
	assert.Equal(t, 2*rounds, testutil.CountTransfers(t, db, a.ID))
}

type failingHistory struct {
	err error
}

func (f failingHistory) Create(context.Context, *sql.Tx, *domain.Transfer) error {
	return f.err
}

// creditFailingCards lets the debit through and fails the credit.
type creditFailingCards struct {
	*repository.CardRepository
	creditCardID uuid.UUID
}

func (c creditFailingCards) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error {
	if id == c.creditCardID {
		return errors.New("injected credit failure")
	}
	return c.CardRepository.UpdateBalance(ctx, tx, id, balance)
}

func TestTransfer_AbortRollsBackEverything(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "u@test.com", domain.RoleUser)
	x := testutil.SeedCard(t, db, user.ID, "100.00")
	y := testutil.SeedCard(t, db, user.ID, "50.00")

	engines := map[string]*transfer.Engine{
		"history append fails": transfer.NewEngine(db,
			repository.NewCardRepository(db),
			failingHistory{err: errors.New("injected history failure")},
			nil, time.Second),
		"credit fails after debit": transfer.NewEngine(db,
			creditFailingCards{CardRepository: repository.NewCardRepository(db), creditCardID: y.ID},
			repository.NewTransferRepository(db),
			nil, time.Second),
	}

	for name, engine := range engines {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Transfer(ctx, transfer.Request{
				ActingUserID: user.ID, FromCardID: x.ID, ToCardID: y.ID, Amount: dec("30.00"),
			})
			require.ErrorIs(t, err, domain.ErrTransferAborted)
			assert.ErrorIs(t, err, domain.ErrTransient)

			var ae *domain.AbortError
			require.ErrorAs(t, err, &ae)
			assert.False(t, ae.Retryable)

			testutil.RequireDecimal(t, "100.00", testutil.GetCardBalance(t, db, x.ID))
			testutil.RequireDecimal(t, "50.00", testutil.GetCardBalance(t, db, y.ID))
			assert.Equal(t, 0, testutil.CountTransfers(t, db, x.ID))
		})
	}
}

func holdCardLock(t *testing.T, db *sql.DB, cardID uuid.UUID) *sql.Tx {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec(`SELECT id FROM cards WHERE id = $1 FOR UPDATE`, cardID)
	require.NoError(t, err)
	return tx
}

func TestTransfer_LockTimeoutIsRetryable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := transfer.NewEngine(db,
		repository.NewCardRepository(db),
		repository.NewTransferRepository(db),
		nil, 200*time.Millisecond)

	user := testutil.SeedUser(t, db, "u@test.com", domain.RoleUser)
	x := testutil.SeedCard(t, db, user.ID, "100.00")
	y := testutil.SeedCard(t, db, user.ID, "50.00")

	holder := holdCardLock(t, db, y.ID)
	defer holder.Rollback()

	_, err := engine.Transfer(context.Background(), transfer.Request{
		ActingUserID: user.ID, FromCardID: x.ID, ToCardID: y.ID, Amount: dec("30.00"),
	})

	var ae *domain.AbortError
	require.ErrorAs(t, err, &ae)
	assert.True(t, ae.Retryable)
	assert.Equal(t, "locking", ae.Step)

	require.NoError(t, holder.Rollback())
	testutil.RequireDecimal(t, "100.00", testutil.GetCardBalance(t, db, x.ID))
	testutil.RequireDecimal(t, "50.00", testutil.GetCardBalance(t, db, y.ID))
}

func TestTransfer_CallerDeadlineCancelsLockWait(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := transfer.NewEngine(db,
		repository.NewCardRepository(db),
		repository.NewTransferRepository(db),
		nil, time.Minute)

	user := testutil.SeedUser(t, db, "u@test.com", domain.RoleUser)
	x := testutil.SeedCard(t, db, user.ID, "100.00")
	y := testutil.SeedCard(t, db, user.ID, "50.00")

	holder := holdCardLock(t, db, x.ID)
	defer holder.Rollback()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := engine.Transfer(ctx, transfer.Request{
		ActingUserID: user.ID, FromCardID: x.ID, ToCardID: y.ID, Amount: dec("30.00"),
	})

	var ae *domain.AbortError
	require.ErrorAs(t, err, &ae)
	assert.True(t, ae.Retryable)

	require.NoError(t, holder.Rollback())
	testutil.RequireDecimal(t, "100.00", testutil.GetCardBalance(t, db, x.ID))
	assert.Equal(t, 0, testutil.CountTransfers(t, db, x.ID))
}

// cancellingCards cancels the caller's context on the first balance write,
// after both rows are locked and validated.
type cancellingCards struct {
	*repository.CardRepository
	cancel context.CancelFunc
}

func (c cancellingCards) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error {
	c.cancel()
	return c.CardRepository.UpdateBalance(ctx, tx, id, balance)
}

func TestTransfer_CancelAfterLocksStillCommits(t *testing.T) {
	db := testutil.SetupTestDB(t)

	user := testutil.SeedUser(t, db, "u@test.com", domain.RoleUser)
	x := testutil.SeedCard(t, db, user.ID, "100.00")
	y := testutil.SeedCard(t, db, user.ID, "50.00")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := transfer.NewEngine(db,
		cancellingCards{CardRepository: repository.NewCardRepository(db), cancel: cancel},
		repository.NewTransferRepository(db),
		nil, time.Second)

	rec, err := engine.Transfer(ctx, transfer.Request{
		ActingUserID: user.ID, FromCardID: x.ID, ToCardID: y.ID, Amount: dec("30.00"),
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, x.ID, rec.SenderCardID)
	testutil.RequireDecimal(t, "70.00", testutil.GetCardBalance(t, db, x.ID))
	testutil.RequireDecimal(t, "80.00", testutil.GetCardBalance(t, db, y.ID))
	assert.Equal(t, 1, testutil.CountTransfers(t, db, x.ID))
}

// overdrawingCards writes a negative sender balance so the column CHECK
// rejects the debit.
type overdrawingCards struct {
	*repository.CardRepository
	senderID uuid.UUID
}

func (c overdrawingCards) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error {
	if id == c.senderID {
		balance = dec("-0.01")
	}
	return c.CardRepository.UpdateBalance(ctx, tx, id, balance)
}

func TestTransfer_BalanceCheckRejectsDebit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "u@test.com", domain.RoleUser)
	x := testutil.SeedCard(t, db, user.ID, "100.00")
	y := testutil.SeedCard(t, db, user.ID, "50.00")

	engine := transfer.NewEngine(db,
		overdrawingCards{CardRepository: repository.NewCardRepository(db), senderID: x.ID},
		repository.NewTransferRepository(db),
		nil, time.Second)

	_, err := engine.Transfer(ctx, transfer.Request{
		ActingUserID: user.ID, FromCardID: x.ID, ToCardID: y.ID, Amount: dec("30.00"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.NotErrorIs(t, err, domain.ErrTransferAborted)

	testutil.RequireDecimal(t, "100.00", testutil.GetCardBalance(t, db, x.ID))
	testutil.RequireDecimal(t, "50.00", testutil.GetCardBalance(t, db, y.ID))
	assert.Equal(t, 0, testutil.CountTransfers(t, db, x.ID))
}
