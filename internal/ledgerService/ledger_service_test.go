package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"auction-market/internal/locker"
	"auction-market/internal/marketerrors"
	"auction-market/internal/models"
	"auction-market/internal/repository"
	"auction-market/internal/retry"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newLedger(t *testing.T) (*LedgerService, *repository.MemoryRepo) {
	t.Helper()
	repo := repository.NewMemoryRepo()
	return NewLedgerService(repo, locker.NewLocal(), Options{}), repo
}

func openFunded(t *testing.T, svc *LedgerService, username string, funds string) models.Account {
	t.Helper()
	acc, err := svc.OpenAccount(context.Background(), username, username+"@example.com")
	require.NoError(t, err)
	if funds != "" {
		_, err = svc.Deposit(context.Background(), acc.AccountID, dec(funds))
		require.NoError(t, err)
	}
	return acc
}

func TestLedgerService_OpenAccount(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t)
	ctx := context.Background()

	acc, err := svc.OpenAccount(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, acc.AccountID)
	require.True(t, acc.Wallet.Available.IsZero())
	require.True(t, acc.Wallet.Held.IsZero())

	tests := []struct {
		name          string
		username      string
		email         string
		expectedError error
	}{
		{name: "duplicate_username", username: "alice", email: "other@example.com", expectedError: marketerrors.ErrAlreadyExists},
		{name: "duplicate_email", username: "alice2", email: "alice@example.com", expectedError: marketerrors.ErrAlreadyExists},
		{name: "missing_username", username: " ", email: "x@example.com", expectedError: marketerrors.ErrInvalidInput},
		{name: "bad_email", username: "bob", email: "not-an-email", expectedError: marketerrors.ErrInvalidInput},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.OpenAccount(ctx, tc.username, tc.email)
			require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
		})
	}
}

func TestLedgerService_Operations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		start         string
		run           func(svc *LedgerService, id string) (models.Wallet, error)
		expectedError error
		available     string
		held          string
	}{
		{
			name:      "deposit",
			start:     "10",
			run:       func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Deposit(context.Background(), id, dec("0.10")) },
			available: "10.10", held: "0",
		},
		{
			name:          "deposit_exponent_out_of_range",
			start:         "10",
			run:           func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Deposit(context.Background(), id, dec("1e400000000")) },
			expectedError: marketerrors.ErrInvalidInput,
			available:     "10", held: "0",
		},
		{
			name:          "hold_exponent_out_of_range",
			start:         "10",
			run:           func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Hold(context.Background(), id, dec("1e-400000000")) },
			expectedError: marketerrors.ErrInvalidInput,
			available:     "10", held: "0",
		},
		{
			name:          "withdraw_more_than_available",
			start:         "30",
			run:           func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Withdraw(context.Background(), id, dec("50")) },
			expectedError: marketerrors.ErrInsufficientFunds,
			available:     "30", held: "0",
		},
		{
			name:      "withdraw_all",
			start:     "30",
			run:       func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Withdraw(context.Background(), id, dec("30")) },
			available: "0", held: "0",
		},
		{
			name:      "hold",
			start:     "100",
			run:       func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Hold(context.Background(), id, dec("40")) },
			available: "60", held: "40",
		},
		{
			name:          "hold_more_than_available",
			start:         "10",
			run:           func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Hold(context.Background(), id, dec("11")) },
			expectedError: marketerrors.ErrInsufficientFunds,
			available:     "10", held: "0",
		},
		{
			name:          "release_without_hold",
			start:         "10",
			run:           func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Release(context.Background(), id, dec("1")) },
			expectedError: marketerrors.ErrInsufficientHeld,
			available:     "10", held: "0",
		},
		{
			name:          "zero_amount",
			start:         "10",
			run:           func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Deposit(context.Background(), id, decimal.Zero) },
			expectedError: marketerrors.ErrInvalidInput,
			available:     "10", held: "0",
		},
		{
			name:          "negative_amount",
			start:         "10",
			run:           func(svc *LedgerService, id string) (models.Wallet, error) { return svc.Withdraw(context.Background(), id, dec("-5")) },
			expectedError: marketerrors.ErrInvalidInput,
			available:     "10", held: "0",
		},
		{
			name:          "no_actor",
			start:         "10",
			run:           func(svc *LedgerService, _ string) (models.Wallet, error) { return svc.Deposit(context.Background(), "", dec("1")) },
			expectedError: marketerrors.ErrUnauthenticated,
			available:     "10", held: "0",
		},
		{
			name:          "unknown_account",
			start:         "10",
			run:           func(svc *LedgerService, _ string) (models.Wallet, error) { return svc.Deposit(context.Background(), "ghost", dec("1")) },
			expectedError: marketerrors.ErrNotFound,
			available:     "10", held: "0",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := newLedger(t)
			acc := openFunded(t, svc, tc.name, tc.start)

			_, err := tc.run(svc, acc.AccountID)
			if tc.expectedError != nil {
				require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
			} else {
				require.NoError(t, err)
			}

			w, err := svc.GetWallet(context.Background(), acc.AccountID, acc.AccountID)
			require.NoError(t, err)
			require.True(t, w.Available.Equal(dec(tc.available)), "available %s, want %s", w.Available, tc.available)
			require.True(t, w.Held.Equal(dec(tc.held)), "held %s, want %s", w.Held, tc.held)
		})
	}
}

func TestLedgerService_HoldReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t)
	ctx := context.Background()
	acc := openFunded(t, svc, "carol", "123.45")

	before, err := svc.GetWallet(ctx, acc.AccountID, acc.AccountID)
	require.NoError(t, err)

	_, err = svc.Hold(ctx, acc.AccountID, dec("23.40"))
	require.NoError(t, err)
	after, err := svc.Release(ctx, acc.AccountID, dec("23.40"))
	require.NoError(t, err)

	require.True(t, before.Available.Equal(after.Available))
	require.True(t, before.Held.Equal(after.Held))
}

func TestLedgerService_GetWallet_Access(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t)
	ctx := context.Background()
	acc := openFunded(t, svc, "dave", "")

	_, err := svc.GetWallet(ctx, "", acc.AccountID)
	require.ErrorIs(t, err, marketerrors.ErrUnauthenticated)

	_, err = svc.GetWallet(ctx, "someone-else", acc.AccountID)
	require.ErrorIs(t, err, marketerrors.ErrUnauthorized)
}

// Concurrent withdraws that each fit the balance must not overdraw it together.
func TestLedgerService_ConcurrentWithdraws(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t)
	ctx := context.Background()
	acc := openFunded(t, svc, "erin", "100")

	const workers = 40
	var ok, insufficient int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(ctx, acc.AccountID, dec("7.5"))
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, marketerrors.ErrInsufficientFunds):
				atomic.AddInt64(&insufficient, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(13), ok)
	require.Equal(t, int64(workers-13), insufficient)

	w, err := svc.GetWallet(ctx, acc.AccountID, acc.AccountID)
	require.NoError(t, err)
	require.True(t, w.Available.Equal(dec("2.5")), "got %s", w.Available)
}

// Independent accounts progress while another account's lock is held.
func TestLedgerService_AccountsDoNotContend(t *testing.T) {
	t.Parallel()

	locks := locker.NewLocal()
	svc := NewLedgerService(repository.NewMemoryRepo(), locks, Options{})
	ctx := context.Background()
	a := openFunded(t, svc, "frank", "10")
	b := openFunded(t, svc, "grace", "10")

	unlock, err := locks.Lock(ctx, locker.AccountKey(a.AccountID))
	require.NoError(t, err)
	defer unlock()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Deposit(ctx, b.AccountID, dec("1"))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("deposit on an unrelated account blocked")
	}
}

func TestLedgerService_RepositoryFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := repository.NewMockWalletDB(ctrl)
	svc := NewLedgerService(mockRepo, locker.NewLocal(), Options{
		Retry: retry.Policy{Attempts: 3, Start: time.Microsecond},
	})
	ctx := context.Background()
	account := models.Account{AccountID: "acc1", Wallet: models.Wallet{Available: dec("50"), Held: decimal.Zero}, Version: 4}
	conflict := fmt.Errorf("update wallet: %w", marketerrors.ErrConflict)

	tests := []struct {
		name          string
		mockSetup     func()
		expectedError error
	}{
		{
			name: "conflict_then_success",
			mockSetup: func() {
				gomock.InOrder(
					mockRepo.EXPECT().GetAccount(gomock.Any(), "acc1").Return(account, nil),
					mockRepo.EXPECT().UpdateWallet(gomock.Any(), "acc1", gomock.Any(), int64(4)).Return(models.Account{}, conflict),
					mockRepo.EXPECT().GetAccount(gomock.Any(), "acc1").Return(models.Account{AccountID: "acc1", Wallet: account.Wallet, Version: 5}, nil),
					mockRepo.EXPECT().UpdateWallet(gomock.Any(), "acc1", gomock.Any(), int64(5)).Return(models.Account{Wallet: models.Wallet{Available: dec("40"), Held: decimal.Zero}}, nil),
				)
			},
		},
		{
			name: "conflict_exhausted",
			mockSetup: func() {
				mockRepo.EXPECT().GetAccount(gomock.Any(), "acc1").Return(account, nil).Times(3)
				mockRepo.EXPECT().UpdateWallet(gomock.Any(), "acc1", gomock.Any(), int64(4)).Return(models.Account{}, conflict).Times(3)
			},
			expectedError: marketerrors.ErrConflict,
		},
		{
			name: "store_error_not_retried",
			mockSetup: func() {
				mockRepo.EXPECT().GetAccount(gomock.Any(), "acc1").Return(models.Account{}, errors.New("connection reset")).Times(1)
			},
			expectedError: errors.New("connection reset"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()
			_, err := svc.Withdraw(ctx, "acc1", dec("10"))
			switch {
			case tc.expectedError == nil:
				require.NoError(t, err)
			case errors.Is(tc.expectedError, marketerrors.ErrConflict):
				require.ErrorIs(t, err, marketerrors.ErrConflict)
			default:
				require.ErrorContains(t, err, tc.expectedError.Error())
			}
		})
	}
}
