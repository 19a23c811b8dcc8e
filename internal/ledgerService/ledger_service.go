package ledger

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"auction-market/internal/locker"
	"auction-market/internal/marketerrors"
	"auction-market/internal/metrics"
	"auction-market/internal/models"
	"auction-market/internal/repository"
	"auction-market/internal/retry"
	"auction-market/utils"

	"github.com/shopspring/decimal"
)

// Options tunes the ledger; the zero value is usable.
type Options struct {
	Retry   retry.Policy
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// LedgerService owns the available and held balances of every wallet.
// Mutations on one account are serialized by the account lock and committed
// with a version-conditioned write.
type LedgerService struct {
	repo    repository.WalletDB
	locks   locker.Locker
	policy  retry.Policy
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLedgerService creates a new LedgerService instance
func NewLedgerService(repo repository.WalletDB, locks locker.Locker, opts Options) *LedgerService {
	if locks == nil {
		locks = locker.NewLocal()
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LedgerService{
		repo:    repo,
		locks:   locks,
		policy:  opts.Retry,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
}

// OpenAccount registers an account with an empty wallet
func (s *LedgerService) OpenAccount(ctx context.Context, username, email string) (models.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return models.Account{}, fmt.Errorf("ledger: %w - missing username", marketerrors.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.Account{}, fmt.Errorf("ledger: %w - invalid email %q", marketerrors.ErrInvalidInput, email)
	}

	account := models.Account{
		AccountID: utils.GenerateID(),
		Username:  username,
		Email:     email,
		Wallet:    models.Wallet{Available: decimal.Zero, Held: decimal.Zero},
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return models.Account{}, fmt.Errorf("ledger: failed to open account %q: %w", username, err)
	}

	utils.Info("Account opened", map[string]any{"account_id": account.AccountID, "username": username})
	return account, nil
}

// GetAccount returns an account without its version being meaningful to callers
func (s *LedgerService) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	if accountID == "" {
		return models.Account{}, fmt.Errorf("ledger: %w - empty account ID", marketerrors.ErrInvalidInput)
	}
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return models.Account{}, fmt.Errorf("ledger: failed to get account %s: %w", accountID, err)
	}
	return account, nil
}

// GetWallet returns both balances of accountID. Only the owner may read them.
func (s *LedgerService) GetWallet(ctx context.Context, actor, accountID string) (models.Wallet, error) {
	if actor == "" {
		return models.Wallet{}, fmt.Errorf("ledger: %w", marketerrors.ErrUnauthenticated)
	}
	if actor != accountID {
		return models.Wallet{}, fmt.Errorf("ledger: %w - wallet of %s", marketerrors.ErrUnauthorized, accountID)
	}
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return models.Wallet{}, err
	}
	return account.Wallet, nil
}

// Deposit adds amount to the actor's available balance
func (s *LedgerService) Deposit(ctx context.Context, actor string, amount decimal.Decimal) (models.Wallet, error) {
	return s.apply(ctx, "deposit", actor, amount, models.Wallet.Deposit)
}

// Withdraw removes amount from the actor's available balance
func (s *LedgerService) Withdraw(ctx context.Context, actor string, amount decimal.Decimal) (models.Wallet, error) {
	return s.apply(ctx, "withdraw", actor, amount, models.Wallet.Withdraw)
}

// Hold moves amount from available to held
func (s *LedgerService) Hold(ctx context.Context, actor string, amount decimal.Decimal) (models.Wallet, error) {
	return s.apply(ctx, "hold", actor, amount, models.Wallet.Hold)
}

// Release moves amount from held back to available
func (s *LedgerService) Release(ctx context.Context, actor string, amount decimal.Decimal) (models.Wallet, error) {
	return s.apply(ctx, "release", actor, amount, models.Wallet.Release)
}

type transition func(models.Wallet, decimal.Decimal) (models.Wallet, error)

func (s *LedgerService) apply(ctx context.Context, op, accountID string, amount decimal.Decimal, fn transition) (wallet models.Wallet, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = marketerrors.Code(err)
		}
		s.metrics.WalletOp(op, outcome)
	}()

	if accountID == "" {
		return models.Wallet{}, fmt.Errorf("ledger: %s: %w", op, marketerrors.ErrUnauthenticated)
	}
	if err := models.CheckAmount(amount); err != nil {
		return models.Wallet{}, fmt.Errorf("ledger: %s: %w", op, err)
	}
	if !amount.IsPositive() {
		return models.Wallet{}, fmt.Errorf("ledger: %s: %w - amount %s must be positive", op, marketerrors.ErrInvalidInput, amount)
	}

	unlock, err := s.locks.Lock(ctx, locker.AccountKey(accountID))
	if err != nil {
		return models.Wallet{}, fmt.Errorf("ledger: %s on %s: %w", op, accountID, err)
	}
	defer unlock()

	onConflict := func(attempt int) {
		s.metrics.ConflictRetry("account")
		utils.Warn("Wallet write conflict, retrying", map[string]any{"account_id": accountID, "op": op, "attempt": attempt})
	}

	err = retry.Do(ctx, s.policy, onConflict, func(ctx context.Context) error {
		account, err := s.repo.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		next, err := fn(account.Wallet, amount)
		if err != nil {
			return err
		}
		updated, err := s.repo.UpdateWallet(ctx, accountID, next, account.Version)
		if err != nil {
			return err
		}
		wallet = updated.Wallet
		return nil
	})
	if err != nil {
		return models.Wallet{}, fmt.Errorf("ledger: %s %s on %s: %w", op, amount, accountID, err)
	}

	utils.Debug("Wallet updated", map[string]any{
		"account_id": accountID,
		"op":         op,
		"amount":     amount.String(),
		"available":  wallet.Available.String(),
		"held":       wallet.Held.String(),
	})
	return wallet, nil
}
