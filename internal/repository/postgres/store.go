package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-market/internal/marketerrors"
	"auction-market/internal/models"
	"auction-market/internal/repository"
)

// Store is the PostgreSQL implementation of the repository interfaces.
// Conditional writes compare the row's version column; the partial unique
// index on bids keeps at most one active bid per auction even if two
// writers slip past the version check.
type Store struct {
	db *sql.DB
}

var (
	_ repository.AuctionDB = (*Store)(nil)
	_ repository.WalletDB  = (*Store)(nil)
	_ repository.SaleDB    = (*Store)(nil)
)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const auctionColumns = `id, product_id, seller_id, initial_price, current_price, min_increment, reserve_price,
	start_time, end_time, state, COALESCE(winner_id, ''), bid_count, version, created_at`

const bidColumns = `id, auction_id, bidder_id, amount, state, created_at`

const accountColumns = `id, username, email, available, held, version, created_at`

const saleColumns = `id, auction_id, product_id, seller_id, winner_id, amount, state, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(row scanner) (models.Auction, error) {
	var a models.Auction
	err := row.Scan(&a.AuctionID, &a.ProductID, &a.SellerID, &a.InitialPrice, &a.CurrentPrice, &a.MinIncrement,
		&a.ReservePrice, &a.StartTime, &a.EndTime, &a.State, &a.WinnerID, &a.BidCount, &a.Version, &a.CreatedAt)
	return a, err
}

func scanBid(row scanner) (models.Bid, error) {
	var b models.Bid
	err := row.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &b.State, &b.CreatedAt)
	return b, err
}

func scanAccount(row scanner) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.AccountID, &a.Username, &a.Email, &a.Wallet.Available, &a.Wallet.Held, &a.Version, &a.CreatedAt)
	return a, err
}

func scanSale(row scanner) (models.Sale, error) {
	var s models.Sale
	err := row.Scan(&s.SaleID, &s.AuctionID, &s.ProductID, &s.SellerID, &s.WinnerID, &s.Amount, &s.State, &s.Timestamp)
	return s, err
}

// CreateAuction stores a new auction
func (s *Store) CreateAuction(ctx context.Context, a models.Auction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auctions (id, product_id, seller_id, initial_price, current_price, min_increment, reserve_price,
			start_time, end_time, state, winner_id, bid_count, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14)
	`, a.AuctionID, a.ProductID, a.SellerID, a.InitialPrice, a.CurrentPrice, a.MinIncrement, a.ReservePrice,
		a.StartTime, a.EndTime, string(a.State), a.WinnerID, a.BidCount, a.Version, a.CreatedAt)
	return translate(err, "create auction "+a.AuctionID)
}

// GetAuction returns the auction with the given id
func (s *Store) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, auctionID)
	a, err := scanAuction(row)
	if err != nil {
		return models.Auction{}, translate(err, "get auction "+auctionID)
	}
	return a, nil
}

// ListAuctions returns the auctions matching filter, oldest first
func (s *Store) ListAuctions(ctx context.Context, f models.AuctionFilter) ([]models.Auction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auctionColumns+` FROM auctions
		WHERE ($1 = '' OR state = $1) AND ($2 = '' OR seller_id = $2) AND ($3 = '' OR winner_id = $3)
		ORDER BY created_at, id
	`, string(f.State), f.SellerID, f.WinnerID)
	if err != nil {
		return nil, translate(err, "list auctions")
	}
	defer rows.Close()

	auctions := make([]models.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, translate(err, "scan auction")
		}
		auctions = append(auctions, a)
	}
	return auctions, translate(rows.Err(), "list auctions")
}

// UpdateAuction replaces the editable and lifecycle fields if the version
// is still expectedVersion. Bid count is left to AdmitBid.
func (s *Store) UpdateAuction(ctx context.Context, a models.Auction, expectedVersion int64) (models.Auction, error) {
	op := fmt.Sprintf("update auction %s at version %d", a.AuctionID, expectedVersion)
	row := s.db.QueryRowContext(ctx, `
		UPDATE auctions
		SET initial_price = $2, current_price = $3, min_increment = $4, reserve_price = $5,
			start_time = $6, end_time = $7, state = $8, winner_id = NULLIF($9, ''), version = version + 1
		WHERE id = $1 AND version = $10
		RETURNING `+auctionColumns,
		a.AuctionID, a.InitialPrice, a.CurrentPrice, a.MinIncrement, a.ReservePrice,
		a.StartTime, a.EndTime, string(a.State), a.WinnerID, expectedVersion)

	updated, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Auction{}, missingOrConflict(ctx, s.db, "auctions", a.AuctionID, op)
	}
	if err != nil {
		return models.Auction{}, translate(err, op)
	}
	return updated, nil
}

// AdmitBid raises the auction to the bid, supersedes the previous leader and
// inserts the bid, in one transaction.
func (s *Store) AdmitBid(ctx context.Context, bid models.Bid, expectedVersion int64) (models.Auction, error) {
	op := fmt.Sprintf("admit bid %s on auction %s at version %d", bid.BidID, bid.AuctionID, expectedVersion)

	var updated models.Auction
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE auctions
			SET current_price = $2, bid_count = bid_count + 1, version = version + 1
			WHERE id = $1 AND version = $3
			RETURNING `+auctionColumns,
			bid.AuctionID, bid.Amount, expectedVersion)

		var err error
		updated, err = scanAuction(row)
		if errors.Is(err, sql.ErrNoRows) {
			return missingOrConflict(ctx, tx, "auctions", bid.AuctionID, op)
		}
		if err != nil {
			return translate(err, op)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE bids SET state = 'superseded'
			WHERE auction_id = $1 AND state = 'active'
		`, bid.AuctionID); err != nil {
			return translate(err, op+": supersede")
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bids (id, auction_id, bidder_id, amount, state, created_at)
			VALUES ($1, $2, $3, $4, 'active', $5)
		`, bid.BidID, bid.AuctionID, bid.BidderID, bid.Amount, bid.CreatedAt); err != nil {
			return translate(err, op+": insert")
		}
		return nil
	})
	if err != nil {
		return models.Auction{}, err
	}
	return updated, nil
}

// FinalizeAuction stores the terminal state, marks the winning bid and
// records the sale, in one transaction.
func (s *Store) FinalizeAuction(ctx context.Context, a models.Auction, expectedVersion int64, winningBidID string, sale *models.Sale) (models.Auction, error) {
	op := fmt.Sprintf("finalize auction %s at version %d", a.AuctionID, expectedVersion)

	var updated models.Auction
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE auctions
			SET state = $2, winner_id = NULLIF($3, ''), version = version + 1
			WHERE id = $1 AND version = $4
			RETURNING `+auctionColumns,
			a.AuctionID, string(a.State), a.WinnerID, expectedVersion)

		var err error
		updated, err = scanAuction(row)
		if errors.Is(err, sql.ErrNoRows) {
			return missingOrConflict(ctx, tx, "auctions", a.AuctionID, op)
		}
		if err != nil {
			return translate(err, op)
		}

		if winningBidID != "" {
			res, err := tx.ExecContext(ctx, `
				UPDATE bids SET state = 'winning' WHERE id = $1 AND auction_id = $2
			`, winningBidID, a.AuctionID)
			if pgCode(err) == uniqueViolation {
				return fmt.Errorf("%s: another bid is already winning: %w", op, marketerrors.ErrInvalidState)
			}
			if err != nil {
				return translate(err, op+": mark winner")
			}
			if n, err := res.RowsAffected(); err != nil {
				return fmt.Errorf("%s: rows affected: %w", op, err)
			} else if n == 0 {
				return fmt.Errorf("%s: winning bid %s: %w", op, winningBidID, marketerrors.ErrNotFound)
			}
		}

		if sale != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sales (id, auction_id, product_id, seller_id, winner_id, amount, state, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, sale.SaleID, sale.AuctionID, sale.ProductID, sale.SellerID, sale.WinnerID, sale.Amount, string(sale.State), sale.Timestamp); err != nil {
				return translate(err, op+": record sale")
			}
		}
		return nil
	})
	if err != nil {
		return models.Auction{}, err
	}
	return updated, nil
}

// GetBid returns the bid with the given id
func (s *Store) GetBid(ctx context.Context, bidID string) (models.Bid, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, bidID)
	b, err := scanBid(row)
	if err != nil {
		return models.Bid{}, translate(err, "get bid "+bidID)
	}
	return b, nil
}

// ListBids returns the bids matching filter in placement order. Filtering by
// an unknown auction is NotFound rather than an empty list.
func (s *Store) ListBids(ctx context.Context, f models.BidFilter) ([]models.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE ($1 = '' OR auction_id = $1) AND ($2 = '' OR bidder_id = $2) AND ($3 = '' OR state = $3)
		ORDER BY created_at, seq
	`, f.AuctionID, f.BidderID, string(f.State))
	if err != nil {
		return nil, translate(err, "list bids")
	}
	defer rows.Close()

	bids := make([]models.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, translate(err, "scan bid")
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list bids")
	}

	if len(bids) == 0 && f.AuctionID != "" {
		if _, err := s.GetAuction(ctx, f.AuctionID); err != nil {
			return nil, fmt.Errorf("list bids: %w", err)
		}
	}
	return bids, nil
}

// SetBidState forces the state of a bid
func (s *Store) SetBidState(ctx context.Context, bidID string, state models.BidState) (models.Bid, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE bids SET state = $2 WHERE id = $1
		RETURNING `+bidColumns, bidID, string(state))
	b, err := scanBid(row)
	if pgCode(err) == uniqueViolation {
		return models.Bid{}, fmt.Errorf("set bid %s %s while another bid is %s: %w", bidID, state, state, marketerrors.ErrInvalidState)
	}
	if err != nil {
		return models.Bid{}, translate(err, "set bid state "+bidID)
	}
	return b, nil
}

// CreateAccount stores a new account; username and email are unique
func (s *Store) CreateAccount(ctx context.Context, a models.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, email, available, held, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.AccountID, a.Username, a.Email, a.Wallet.Available, a.Wallet.Held, a.Version, a.CreatedAt)
	return translate(err, "create account "+a.AccountID)
}

// GetAccount returns the account with the given id
func (s *Store) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	a, err := scanAccount(row)
	if err != nil {
		return models.Account{}, translate(err, "get account "+accountID)
	}
	return a, nil
}

// UpdateWallet replaces both balances if the account version is still expectedVersion
func (s *Store) UpdateWallet(ctx context.Context, accountID string, w models.Wallet, expectedVersion int64) (models.Account, error) {
	op := fmt.Sprintf("update wallet %s at version %d", accountID, expectedVersion)
	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET available = $2, held = $3, version = version + 1
		WHERE id = $1 AND version = $4
		RETURNING `+accountColumns, accountID, w.Available, w.Held, expectedVersion)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, missingOrConflict(ctx, s.db, "accounts", accountID, op)
	}
	if err != nil {
		return models.Account{}, translate(err, op)
	}
	return a, nil
}

// ListSales returns the recorded sales matching filter in settlement order
func (s *Store) ListSales(ctx context.Context, f models.SaleFilter) ([]models.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+` FROM sales
		WHERE ($1 = '' OR auction_id = $1) AND ($2 = '' OR seller_id = $2) AND ($3 = '' OR winner_id = $3)
		ORDER BY created_at, seq
	`, f.AuctionID, f.SellerID, f.WinnerID)
	if err != nil {
		return nil, translate(err, "list sales")
	}
	defer rows.Close()

	sales := make([]models.Sale, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, translate(err, "scan sale")
		}
		sales = append(sales, sale)
	}
	return sales, translate(rows.Err(), "list sales")
}
