package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	auction "auction-market/internal/auctionService"
	bidding "auction-market/internal/biddingService"
	ledger "auction-market/internal/ledgerService"
	"auction-market/internal/locker"
	model "auction-market/internal/models"
	repository "auction-market/internal/repository"
	"auction-market/utils"

	"github.com/shopspring/decimal"
)

func init() {
	utils.SetLevel("panic")
}

type market struct {
	repo     *repository.MemoryRepo
	auctions *auction.AuctionService
	bidding  *bidding.BiddingService
	ledger   *ledger.LedgerService
}

func newMarket() *market {
	repo := repository.NewMemoryRepo()
	locks := locker.NewLocal()
	return &market{
		repo:     repo,
		auctions: auction.NewAuctionService(repo, repo, locks, auction.Options{}),
		bidding:  bidding.NewBiddingService(repo, locks, bidding.Options{}),
		ledger:   ledger.NewLedgerService(repo, locks, ledger.Options{}),
	}
}

// openAuctions creates n auctions that are open for the next hour.
func (m *market) openAuctions(tb testing.TB, n int) []string {
	tb.Helper()
	now := time.Now()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		a, err := m.auctions.CreateAuction(context.Background(), "seller", model.NewAuction{
			ProductID:    fmt.Sprintf("product_%d", i),
			InitialPrice: decimal.NewFromInt(50),
			MinIncrement: decimal.NewFromInt(1),
			StartTime:    now.Add(-time.Minute),
			EndTime:      now.Add(time.Hour),
		})
		if err != nil {
			tb.Fatalf("failed to create auction: %v", err)
		}
		ids = append(ids, a.AuctionID)
	}
	return ids
}

// Benchmark 1: PlaceBid - Isolated Auctions (Low Contention - Micro Benchmark)
func Benchmark_PlaceBid_Isolated(b *testing.B) {
	m := newMarket()
	ids := m.openAuctions(b, b.N)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		bidderID := fmt.Sprintf("user_%d", i)
		amount := decimal.NewFromInt(int64(51 + rand.Intn(100)))
		if _, err := m.bidding.PlaceBid(ctx, ids[i], bidderID, amount); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// Benchmark 2: PlaceBid - Shared Auction (High Contention - Concurrency Benchmark)
func Benchmark_PlaceBid_ConcurrentSharedAuction(b *testing.B) {
	m := newMarket()
	auctionID := m.openAuctions(b, 1)[0]
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 50
	var admitted, rejected int64

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			bidderID := fmt.Sprintf("user_parallel_%d", rnd.Int())
			nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
			if _, err := m.bidding.PlaceBid(ctx, auctionID, bidderID, decimal.NewFromInt(nextBid)); err != nil {
				atomic.AddInt64(&rejected, 1)
				continue
			}
			atomic.AddInt64(&admitted, 1)
		}
	})

	b.ReportMetric(float64(admitted), "admitted")
	b.ReportMetric(float64(rejected), "rejected")
}

// Benchmark 3: ListBidsForAuction - Concurrent readers on one auction
func Benchmark_ListBids_ConcurrentSharedAuction(b *testing.B) {
	m := newMarket()
	auctionID := m.openAuctions(b, 1)[0]
	ctx := context.Background()

	for j := 0; j < 100; j++ {
		_, _ = m.bidding.PlaceBid(ctx, auctionID, fmt.Sprintf("user_%d", j), decimal.NewFromInt(int64(51+j)))
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := m.bidding.ListBidsForAuction(ctx, auctionID); err != nil {
				b.Errorf("failed to list bids: %v", err)
				return
			}
		}
	})
}

// Benchmark 4: Wallet operations spread over a small set of accounts
func Benchmark_Wallet_ConcurrentAccounts(b *testing.B) {
	m := newMarket()
	ctx := context.Background()

	const numAccounts = 8
	accounts := make([]string, numAccounts)
	for i := range accounts {
		acc, err := m.ledger.OpenAccount(ctx, fmt.Sprintf("user_%d", i), fmt.Sprintf("user_%d@example.com", i))
		if err != nil {
			b.Fatalf("failed to open account: %v", err)
		}
		accounts[i] = acc.AccountID
		if _, err := m.ledger.Deposit(ctx, acc.AccountID, decimal.NewFromInt(1_000_000)); err != nil {
			b.Fatalf("failed to fund account: %v", err)
		}
	}

	one := decimal.NewFromInt(1)

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			acc := accounts[rnd.Intn(numAccounts)]
			switch rnd.Intn(4) {
			case 0:
				_, _ = m.ledger.Deposit(ctx, acc, one)
			case 1:
				_, _ = m.ledger.Withdraw(ctx, acc, one)
			case 2:
				_, _ = m.ledger.Hold(ctx, acc, one)
			default:
				_, _ = m.ledger.Release(ctx, acc, one)
			}
		}
	})
}

// Benchmark 5: Mixed Workload (Readers + Writers concurrently)
func Benchmark_MixedWorkload_SharedAuction(b *testing.B) {
	m := newMarket()
	auctionID := m.openAuctions(b, 1)[0]
	ctx := context.Background()

	for j := 0; j < 50; j++ {
		_, _ = m.bidding.PlaceBid(ctx, auctionID, fmt.Sprintf("user_seed_%d", j), decimal.NewFromInt(int64(51+j*2)))
	}

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 150

	// Ratio: 70% readers, 30% writers
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			if rnd.Intn(10) < 3 {
				bidderID := fmt.Sprintf("user_writer_%d", rnd.Int())
				nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
				_, _ = m.bidding.PlaceBid(ctx, auctionID, bidderID, decimal.NewFromInt(nextBid))
				continue
			}
			_, _ = m.auctions.GetAuction(ctx, auctionID)
		}
	})
}
