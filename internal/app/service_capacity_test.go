package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TomikeDS/lumentix-backend/internal/domain"
	"github.com/TomikeDS/lumentix-backend/internal/store"
	"github.com/TomikeDS/lumentix-backend/pkg/horizon"
)

// capacityRepoStub holds many contributions for one tier and serializes the
// confirmation commit behind a mutex, the way the Postgres implementation
// serializes it behind the tier's row lock.
type capacityRepoStub struct {
	store.Repository

	mu            sync.Mutex
	maxSponsors   int
	contributions map[string]*domain.Contribution
}

func (s *capacityRepoStub) FindPendingContributionByID(ctx context.Context, contributionID string) (*domain.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contributions[contributionID]
	if !ok || c.Status != domain.ContributionPending {
		return nil, store.ErrContributionNotFound
	}
	found := *c
	return &found, nil
}

func (s *capacityRepoStub) MarkContributionFailed(ctx context.Context, contributionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contributions[contributionID]
	if !ok || c.Status != domain.ContributionPending {
		return store.ErrContributionNotFound
	}
	c.Status = domain.ContributionFailed
	return nil
}

func (s *capacityRepoStub) ConfirmContributionAtomic(ctx context.Context, contributionID string, tierID uuid.UUID, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var confirmed int
	for id, c := range s.contributions {
		if id != contributionID && c.TierID == tierID && c.Status == domain.ContributionConfirmed {
			confirmed++
		}
	}
	if confirmed >= s.maxSponsors {
		return store.ErrTierFull
	}

	c, ok := s.contributions[contributionID]
	if !ok || c.Status != domain.ContributionPending {
		return store.ErrContributionNotFound
	}
	c.Status = domain.ContributionConfirmed
	hash := txHash
	c.TxHash = &hash
	return nil
}

// Eight sponsors race full confirmation pipelines at a tier with three slots.
// Exactly three may settle; the rest must see the capacity conflict and keep
// their contributions pending.
func TestConfirmContribution_ConcurrentCommitsNeverOversellTier(t *testing.T) {
	const maxSponsors = 3
	const attempts = 8

	tierID := uuid.New()
	repo := &capacityRepoStub{
		maxSponsors:   maxSponsors,
		contributions: make(map[string]*domain.Contribution, attempts),
	}

	memoByHash := make(map[string]string, attempts)
	hashes := make([]string, attempts)
	for i := 0; i < attempts; i++ {
		contribution := &domain.Contribution{
			ID:        domain.NewContributionID(),
			SponsorID: uuid.New(),
			TierID:    tierID,
			Amount:    decimal.RequireFromString("100"),
			Status:    domain.ContributionPending,
		}
		repo.contributions[contribution.ID] = contribution
		hash := fmt.Sprintf("race_hash_%d", i)
		hashes[i] = hash
		memoByHash[hash] = contribution.ID
	}

	opsBody := `{"_embedded":{"records":[{"id":"1","type":"payment","from":"` + testSponsorWallet + `","to":"` + testEscrowWallet + `","amount":"100.0000000","asset_type":"native"}]}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/operations") {
			_, _ = io.WriteString(w, opsBody)
			return
		}
		hash := strings.TrimPrefix(r.URL.Path, "/transactions/")
		fmt.Fprintf(w, `{"hash":%q,"memo_type":"text","memo":%q,"_links":{"operations":{"href":"http://%s/transactions/%s/operations{?cursor,limit,order}","templated":true}}}`,
			hash, memoByHash[hash], r.Host, hash)
	}))
	defer server.Close()

	svc := &Service{
		repo:          repo,
		horizonClient: horizon.NewClient(server.URL),
		escrowWallet:  testEscrowWallet,
	}

	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ConfirmContribution(context.Background(), hashes[i])
		}(i)
	}
	wg.Wait()

	settled, conflicts := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
			settled++
		case errors.Is(err, store.ErrTierFull):
			conflicts++
		default:
			t.Errorf("attempt %d: expected success or ErrTierFull, got %v", i, err)
		}
	}
	if settled != maxSponsors {
		t.Fatalf("expected exactly %d settled confirmations, got %d", maxSponsors, settled)
	}
	if conflicts != attempts-maxSponsors {
		t.Fatalf("expected %d capacity conflicts, got %d", attempts-maxSponsors, conflicts)
	}

	confirmed, pending := 0, 0
	for _, c := range repo.contributions {
		switch c.Status {
		case domain.ContributionConfirmed:
			confirmed++
		case domain.ContributionPending:
			pending++
		default:
			t.Errorf("contribution %s: a capacity conflict must not fail it, got %s", c.ID, c.Status)
		}
	}
	if confirmed != maxSponsors {
		t.Fatalf("expected %d confirmed rows, got %d", maxSponsors, confirmed)
	}
	if pending != attempts-maxSponsors {
		t.Fatalf("expected %d contributions left pending, got %d", attempts-maxSponsors, pending)
	}
}
