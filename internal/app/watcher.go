/**
 * @description
 * Escrow account watcher: a cron-driven sweep over the escrow wallet's recent
 * transactions that feeds every candidate hash through the regular
 * confirmation flow. Sponsors who paid on-chain but never submitted their
 * transaction hash still get settled; nothing here bypasses the verification
 * pipeline or its capacity guarantees.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TomikeDS/lumentix-backend/internal/store"
)

const escrowSweepTimeout = 2 * time.Minute

// EscrowWatcher schedules periodic escrow sweeps.
type EscrowWatcher struct {
	service   *Service
	cron      *cron.Cron
	schedule  string
	pageLimit int
}

// NewEscrowWatcher creates a new watcher instance. An empty schedule disables it.
func NewEscrowWatcher(service *Service, schedule string, pageLimit int) *EscrowWatcher {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))))
	return &EscrowWatcher{
		service:   service,
		cron:      c,
		schedule:  schedule,
		pageLimit: pageLimit,
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (w *EscrowWatcher) Start() {
	if w.schedule == "" {
		log.Printf("level=info component=escrow_watcher msg=\"no schedule configured; watcher disabled\"")
		return
	}
	if _, err := w.cron.AddFunc(w.schedule, w.run); err != nil {
		log.Printf("level=error component=escrow_watcher msg=\"failed to schedule escrow sweep\" schedule=%q err=%v", w.schedule, err)
		return
	}
	log.Printf("level=info component=escrow_watcher msg=\"escrow sweep scheduled\" schedule=%q page_limit=%d", w.schedule, w.pageLimit)
	w.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (w *EscrowWatcher) Stop() context.Context {
	return w.cron.Stop()
}

func (w *EscrowWatcher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), escrowSweepTimeout)
	defer cancel()

	if _, err := w.service.SweepEscrowSettlements(ctx, w.pageLimit); err != nil {
		log.Printf("level=warn component=escrow_watcher msg=\"escrow sweep failed\" err=%v", err)
	}
}

// SweepEscrowSettlements lists the escrow account's most recent transactions
// and runs each one through ConfirmContribution. Most outcomes are expected
// noise: transactions without a matching pending contribution land on
// not-found, previously settled ones too. Only the number of newly settled
// contributions is reported.
func (s *Service) SweepEscrowSettlements(ctx context.Context, pageLimit int) (int, error) {
	if s.escrowWallet == "" {
		return 0, nil
	}

	txs, err := s.horizonClient.AccountTransactions(ctx, s.escrowWallet, pageLimit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range txs {
		tx := &txs[i]
		// Memo-less transactions can never correlate; skip the round-trips.
		if !tx.HasTextMemo() {
			continue
		}

		if _, err := s.ConfirmContribution(ctx, tx.Hash); err != nil {
			switch {
			case errors.Is(err, store.ErrContributionNotFound):
				// No pending contribution references this payment. Normal for
				// old, foreign or already-settled transactions.
			case errors.Is(err, ErrBadEvidence), errors.Is(err, store.ErrTierFull):
				log.Printf("SweepEscrowSettlements: transaction %s not settled: %v", tx.Hash, err)
			default:
				log.Printf("WARN: SweepEscrowSettlements: transaction %s: %v", tx.Hash, err)
			}
			continue
		}
		settled++
	}

	if settled > 0 {
		log.Printf("SweepEscrowSettlements: settled %d contribution(s) from escrow history", settled)
	}
	return settled, nil
}
