/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the lumentix backend. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/TomikeDS/lumentix-backend/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Sponsor tier methods
	CreateTier(ctx context.Context, tier *domain.SponsorTier) error
	UpdateTier(ctx context.Context, tier *domain.SponsorTier) error
	FindTierByID(ctx context.Context, tierID uuid.UUID) (*domain.SponsorTier, error)
	ListTiers(ctx context.Context) ([]domain.TierAvailability, error)
	// CountConfirmedByTier counts confirmed contributions for a tier. An empty
	// excludeContributionID excludes nothing.
	CountConfirmedByTier(ctx context.Context, tierID uuid.UUID, excludeContributionID string) (int64, error)

	// Contribution methods
	CreateContribution(ctx context.Context, contribution *domain.Contribution) error
	// FindPendingContributionByID resolves a contribution by its ID (the on-chain
	// memo) with its tier joined. Confirmed and failed rows are invisible here,
	// which is what makes replaying an already-settled transaction a not-found.
	FindPendingContributionByID(ctx context.Context, contributionID string) (*domain.Contribution, error)
	FindContributionsBySponsorID(ctx context.Context, sponsorID uuid.UUID) ([]domain.Contribution, error)
	MarkContributionFailed(ctx context.Context, contributionID string) error
	// ConfirmContributionAtomic promotes a pending contribution to confirmed while
	// holding a row lock on its tier, re-counting confirmed contributions under the
	// lock so tier capacity can never be exceeded by concurrent confirmations.
	// Returns ErrTierFull without touching the contribution when the tier filled up
	// after the intent was created.
	ConfirmContributionAtomic(ctx context.Context, contributionID string, tierID uuid.UUID, txHash string) error
}

// AuditRecorder persists append-only audit trail entries. It is split from
// Repository because audit writes are best-effort: a failed audit insert must
// never roll back or veto the settlement state change it describes.
type AuditRecorder interface {
	RecordAuditEntry(ctx context.Context, entry domain.AuditEntry) error
}
