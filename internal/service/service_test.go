package service_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/bankcards-api/internal/auth"
	"github.com/josh-kwaku/bankcards-api/internal/cardnumber"
	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/notify"
	"github.com/josh-kwaku/bankcards-api/internal/repository"
	"github.com/josh-kwaku/bankcards-api/internal/service"
	"github.com/josh-kwaku/bankcards-api/internal/testutil"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.CardBlocked
	err     error
}

func (n *recordingNotifier) CardBlocked(_ context.Context, notice notify.CardBlocked) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func newCardService(t *testing.T, db *sql.DB) (*service.CardService, *cardnumber.Sealer) {
	t.Helper()
	sealer, err := cardnumber.NewSealer("test-card-key")
	require.NoError(t, err)
	return service.NewCardService(db,
		repository.NewCardRepository(db),
		repository.NewUserRepository(db),
		sealer,
	), sealer
}

func TestCardService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, sealer := newCardService(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "user@test.com", domain.RoleUser)

	card, err := svc.Create(ctx, service.CreateCardInput{
		UserID:         user.ID,
		ExpirationDate: time.Now().AddDate(3, 0, 0),
		InitialBalance: decimal.RequireFromString("250.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CardStatusActive, card.Status)
	assert.Regexp(t, `^\*{4} \*{4} \*{4} \d{4}$`, card.MaskedNumber())

	number, err := sealer.Open(card.EncryptedNumber)
	require.NoError(t, err)
	assert.Len(t, number, cardnumber.Length)
	assert.Equal(t, card.LastFour, number[12:])

	stored, err := repository.NewCardRepository(db).GetByID(ctx, card.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "250.50", stored.Balance)
	assert.Equal(t, card.EncryptedNumber, stored.EncryptedNumber)
}

func TestCardService_Create_Rejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newCardService(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "user@test.com", domain.RoleUser)
	admin := testutil.SeedUser(t, db, "admin@test.com", domain.RoleAdmin)
	future := time.Now().AddDate(1, 0, 0)

	tests := []struct {
		name    string
		in      service.CreateCardInput
		wantErr error
	}{
		{
			name:    "unknown user",
			in:      service.CreateCardInput{UserID: uuid.New(), ExpirationDate: future},
			wantErr: domain.ErrUserNotFound,
		},
		{
			name:    "admin owner",
			in:      service.CreateCardInput{UserID: admin.ID, ExpirationDate: future},
			wantErr: domain.ErrAdminCard,
		},
		{
			name:    "expires today",
			in:      service.CreateCardInput{UserID: user.ID, ExpirationDate: time.Now()},
			wantErr: domain.ErrInvalidExpiration,
		},
		{
			name:    "negative balance",
			in:      service.CreateCardInput{UserID: user.ID, ExpirationDate: future, InitialBalance: decimal.NewFromInt(-1)},
			wantErr: domain.ErrNegativeBalance,
		},
		{
			name:    "balance beyond column range",
			in:      service.CreateCardInput{UserID: user.ID, ExpirationDate: future, InitialBalance: decimal.RequireFromString("100000000000000000")},
			wantErr: domain.ErrBalanceLimit,
		},
		{
			name:    "fractional cents",
			in:      service.CreateCardInput{UserID: user.ID, ExpirationDate: future, InitialBalance: decimal.RequireFromString("1.005")},
			wantErr: domain.ErrAmountPrecision,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCardService_ChangeStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newCardService(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "user@test.com", domain.RoleUser)
	future := time.Now().AddDate(1, 0, 0)

	t.Run("block then reactivate", func(t *testing.T) {
		card := testutil.SeedCard(t, db, user.ID, "10.00")

		got, err := svc.ChangeStatus(ctx, card.ID, domain.CardStatusBlocked)
		require.NoError(t, err)
		assert.Equal(t, domain.CardStatusBlocked, got.Status)
		assert.Equal(t, domain.CardStatusBlocked, testutil.GetCardStatus(t, db, card.ID))

		_, err = svc.ChangeStatus(ctx, card.ID, domain.CardStatusActive)
		require.NoError(t, err)
		assert.Equal(t, domain.CardStatusActive, testutil.GetCardStatus(t, db, card.ID))
	})

	t.Run("expired cannot be reactivated", func(t *testing.T) {
		card := testutil.SeedCardWith(t, db, user.ID, "10.00", domain.CardStatusExpired, future)

		_, err := svc.ChangeStatus(ctx, card.ID, domain.CardStatusActive)
		assert.ErrorIs(t, err, domain.ErrInvalidStatusChange)
		assert.Equal(t, domain.CardStatusExpired, testutil.GetCardStatus(t, db, card.ID))
	})

	t.Run("past expiration date cannot be activated", func(t *testing.T) {
		card := testutil.SeedCardWith(t, db, user.ID, "10.00", domain.CardStatusBlocked, time.Now().AddDate(0, -1, 0))

		_, err := svc.ChangeStatus(ctx, card.ID, domain.CardStatusActive)
		assert.ErrorIs(t, err, domain.ErrCardExpired)
	})

	t.Run("unknown card", func(t *testing.T) {
		_, err := svc.ChangeStatus(ctx, uuid.New(), domain.CardStatusBlocked)
		assert.ErrorIs(t, err, domain.ErrCardNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		card := testutil.SeedCard(t, db, user.ID, "10.00")
		_, err := svc.ChangeStatus(ctx, card.ID, domain.CardStatus("LOST"))
		assert.ErrorIs(t, err, domain.ErrInvalidCardStatus)
	})
}

func TestCardService_OwnershipAndListing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newCardService(t, db)
	ctx := context.Background()

	owner := testutil.SeedUser(t, db, "owner@test.com", domain.RoleUser)
	other := testutil.SeedUser(t, db, "other@test.com", domain.RoleUser)
	active := testutil.SeedCard(t, db, owner.ID, "42.10")
	testutil.SeedCardWith(t, db, owner.ID, "0", domain.CardStatusBlocked, time.Now().AddDate(1, 0, 0))
	testutil.SeedCard(t, db, other.ID, "1.00")

	balance, err := svc.Balance(ctx, owner.ID, active.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, "42.10", balance)

	_, err = svc.Balance(ctx, other.ID, active.ID)
	assert.ErrorIs(t, err, domain.ErrNotCardOwner)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.GetOwned(ctx, owner.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrCardNotFound)

	cards, total, err := svc.ListByUser(ctx, owner.ID, nil, domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, cards, 2)

	status := domain.CardStatusBlocked
	cards, total, err = svc.ListByUser(ctx, owner.ID, &status, domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, cards, 1)
	assert.Equal(t, domain.CardStatusBlocked, cards[0].Status)

	cards, total, err = svc.List(ctx, domain.Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, cards, 2)
}

func TestCardService_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newCardService(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "user@test.com", domain.RoleUser)
	plain := testutil.SeedCard(t, db, user.ID, "0")
	require.NoError(t, svc.Delete(ctx, plain.ID))

	err := svc.Delete(ctx, plain.ID)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)

	a := testutil.SeedCard(t, db, user.ID, "10.00")
	b := testutil.SeedCard(t, db, user.ID, "0")
	_, err = db.Exec(
		`INSERT INTO transfer_history (id, sender_card_id, receiver_card_id, amount, transferred_at)
		VALUES ($1, $2, $3, 1, now())`, uuid.New(), a.ID, b.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrCardHasHistory)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func newBlockService(t *testing.T, db *sql.DB, n *recordingNotifier) *service.BlockRequestService {
	t.Helper()
	return service.NewBlockRequestService(db,
		repository.NewBlockRequestRepository(db),
		repository.NewCardRepository(db),
		repository.NewUserRepository(db),
		n,
		nil,
	)
}

func TestBlockRequestService_RequestAndProcess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	notifier := &recordingNotifier{}
	svc := newBlockService(t, db, notifier)
	ctx := context.Background()

	owner := testutil.SeedUser(t, db, "owner@test.com", domain.RoleUser)
	card := testutil.SeedCard(t, db, owner.ID, "5.00")

	req, err := svc.Request(ctx, owner.ID, card.ID)
	require.NoError(t, err)
	assert.False(t, req.Processed)

	_, err = svc.Request(ctx, owner.ID, card.ID)
	assert.ErrorIs(t, err, domain.ErrBlockRequestExists)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)

	done, err := svc.Process(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, done.Processed)
	require.NotNil(t, done.ProcessedAt)
	assert.Equal(t, domain.CardStatusBlocked, testutil.GetCardStatus(t, db, card.ID))

	require.Len(t, notifier.notices, 1)
	assert.Equal(t, "owner@test.com", notifier.notices[0].To)
	assert.Equal(t, "**** **** **** 0000", notifier.notices[0].Masked)

	_, err = svc.Process(ctx, req.ID)
	assert.ErrorIs(t, err, domain.ErrBlockRequestDone)

	pending, err = svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = svc.Request(ctx, owner.ID, card.ID)
	assert.ErrorIs(t, err, domain.ErrCardBlocked)
}

func TestBlockRequestService_RequestRejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newBlockService(t, db, &recordingNotifier{})
	ctx := context.Background()

	owner := testutil.SeedUser(t, db, "owner@test.com", domain.RoleUser)
	other := testutil.SeedUser(t, db, "other@test.com", domain.RoleUser)
	card := testutil.SeedCard(t, db, owner.ID, "5.00")
	expired := testutil.SeedCardWith(t, db, owner.ID, "5.00", domain.CardStatusExpired, time.Now().AddDate(-1, 0, 0))
	lapsed := testutil.SeedCardWith(t, db, owner.ID, "5.00", domain.CardStatusActive, time.Now().AddDate(0, 0, -2))

	tests := []struct {
		name    string
		user    uuid.UUID
		card    uuid.UUID
		wantErr error
	}{
		{"not owner", other.ID, card.ID, domain.ErrNotCardOwner},
		{"unknown card", owner.ID, uuid.New(), domain.ErrCardNotFound},
		{"expired status", owner.ID, expired.ID, domain.ErrCardAlreadyExpired},
		{"past expiration date", owner.ID, lapsed.ID, domain.ErrCardAlreadyExpired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Request(ctx, tc.user, tc.card)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	_, err := svc.Process(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrBlockRequestNotFound)
}

func TestBlockRequestService_NoticeFailureKeepsBlock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	svc := newBlockService(t, db, notifier)
	ctx := context.Background()

	owner := testutil.SeedUser(t, db, "owner@test.com", domain.RoleUser)
	card := testutil.SeedCard(t, db, owner.ID, "5.00")

	req, err := svc.Request(ctx, owner.ID, card.ID)
	require.NoError(t, err)

	_, err = svc.Process(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CardStatusBlocked, testutil.GetCardStatus(t, db, card.ID))
	assert.Len(t, notifier.notices, 1)
}

func TestUserService_CRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	phone := "+79991234567"
	u, err := svc.Create(ctx, service.CreateUserInput{
		FullName:    " Anna Smirnova ",
		Email:       "Anna@Test.com",
		PhoneNumber: &phone,
		Password:    "secret-pass",
		Role:        domain.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "anna@test.com", u.Email)
	assert.Equal(t, "Anna Smirnova", u.FullName)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	_, err = svc.Create(ctx, service.CreateUserInput{FullName: "Dup", Email: "anna@test.com", Password: "secret-pass"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	newName := "Anna S."
	updated, err := svc.Update(ctx, u.ID, service.UpdateUserInput{FullName: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Anna S.", updated.FullName)
	require.NotNil(t, updated.PhoneNumber)
	assert.Equal(t, phone, *updated.PhoneNumber)
	assert.Equal(t, u.PasswordHash, updated.PasswordHash)

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, svc.Delete(ctx, u.ID))
	_, err = svc.Get(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserService_Delete_CascadesUnlessHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	quiet := testutil.SeedUser(t, db, "quiet@test.com", domain.RoleUser)
	quietCard := testutil.SeedCard(t, db, quiet.ID, "1.00")
	require.NoError(t, svc.Delete(ctx, quiet.ID))

	_, err := repository.NewCardRepository(db).GetByID(ctx, quietCard.ID)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)

	busy := testutil.SeedUser(t, db, "busy@test.com", domain.RoleUser)
	a := testutil.SeedCard(t, db, busy.ID, "10.00")
	b := testutil.SeedCard(t, db, busy.ID, "0")
	_, err = db.Exec(
		`INSERT INTO transfer_history (id, sender_card_id, receiver_card_id, amount, transferred_at)
		VALUES ($1, $2, $3, 1, now())`, uuid.New(), a.ID, b.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, busy.ID)
	assert.ErrorIs(t, err, domain.ErrUserHasHistory)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	users := repository.NewUserRepository(db)
	issuer := auth.NewIssuer("test-secret", time.Hour)
	svc := service.NewAuthService(users, issuer)
	ctx := context.Background()

	u, err := svc.Register(ctx, service.CreateUserInput{
		FullName: "Petr Ivanov",
		Email:    "petr@test.com",
		Password: "long-enough",
		Role:     domain.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, u.Role, "registration never grants admin")

	token, got, err := svc.Login(ctx, "PETR@test.com", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)

	_, _, err = svc.Login(ctx, "petr@test.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@test.com", "long-enough")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Register(ctx, service.CreateUserInput{FullName: "Again", Email: "petr@test.com", Password: "long-enough"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestHistoryService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewHistoryService(repository.NewTransferRepository(db), repository.NewUserRepository(db))
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice@test.com", domain.RoleUser)
	bob := testutil.SeedUser(t, db, "bob@test.com", domain.RoleUser)
	a1 := testutil.SeedCard(t, db, alice.ID, "10.00")
	a2 := testutil.SeedCard(t, db, alice.ID, "0")
	b1 := testutil.SeedCard(t, db, bob.ID, "10.00")
	b2 := testutil.SeedCard(t, db, bob.ID, "0")

	for _, pair := range [][2]uuid.UUID{{a1.ID, a2.ID}, {a2.ID, a1.ID}, {b1.ID, b2.ID}} {
		_, err := db.Exec(
			`INSERT INTO transfer_history (id, sender_card_id, receiver_card_id, amount, transferred_at)
			VALUES ($1, $2, $3, 1, now())`, uuid.New(), pair[0], pair[1])
		require.NoError(t, err)
	}

	all, total, err := svc.All(ctx, domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	mine, total, err := svc.ByUser(ctx, alice.ID, domain.Page{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, mine, 1)

	_, _, err = svc.ByUser(ctx, uuid.New(), domain.Page{})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
