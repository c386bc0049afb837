/**
 * @description
 * This file defines the core domain models for the lumentix backend.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `decimal.Decimal` (Postgres NUMERIC) because Stellar
 *   assets carry up to 7 fractional digits; float64 would corrupt comparisons.
 * - Contribution IDs are 24-char hex strings rather than UUIDs: the ID travels
 *   on-chain as a Stellar text memo, which is capped at 28 bytes, and a UUID's
 *   36-char canonical form does not fit.
 */

package domain

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContributionStatus defines the lifecycle state of a sponsorship contribution.
type ContributionStatus string

const (
	ContributionPending   ContributionStatus = "pending"
	ContributionConfirmed ContributionStatus = "confirmed"
	ContributionFailed    ContributionStatus = "failed"
)

// Asset codes accepted for escrow payments. Horizon reports the native asset
// with asset_type "native" and no code; we normalize it to XLM.
const (
	NativeAssetCode = "XLM"
	StableAssetCode = "USDC"
)

// SponsorTier represents a sponsorship package an organizer offers for an event.
// This struct maps directly to the `sponsor_tiers` table in the database.
type SponsorTier struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"` // in the tier's settlement asset, 7 dp
	MaxSponsors int             `json:"max_sponsors"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TierAvailability is the display view of a tier including how many of its
// slots are already taken by confirmed contributions.
type TierAvailability struct {
	SponsorTier
	ConfirmedCount int64 `json:"confirmed_count"`
	SpotsLeft      int64 `json:"spots_left"`
}

// Contribution represents a sponsor's pledge against a tier and its settlement state.
// This struct maps directly to the `contributions` table in the database.
type Contribution struct {
	ID        string             `json:"id"` // doubles as the on-chain memo
	SponsorID uuid.UUID          `json:"sponsor_id"`
	TierID    uuid.UUID          `json:"tier_id"`
	Tier      *SponsorTier       `json:"tier,omitempty"`
	Amount    decimal.Decimal    `json:"amount"` // frozen from the tier price at intent time
	TxHash    *string            `json:"tx_hash,omitempty"`
	Status    ContributionStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewContributionID returns a fresh 24-char lowercase hex contribution ID.
// 12 random bytes keeps the string inside Stellar's 28-byte MEMO_TEXT limit.
func NewContributionID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failures mean the host entropy source is broken; a
		// time-derived fallback would silently weaken memo uniqueness.
		panic(err)
	}
	return hex.EncodeToString(b)
}

// PaymentIntent is everything a sponsor needs to settle a contribution on-chain.
// The Memo MUST be attached to the payment verbatim; confirmation correlates
// transactions to contributions by exact memo match.
type PaymentIntent struct {
	ContributionID string          `json:"contribution_id"`
	EscrowWallet   string          `json:"escrow_wallet"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Memo           string          `json:"memo"`
}

// CreateTierRequest is the DTO for organizer tier creation API requests.
type CreateTierRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	MaxSponsors int             `json:"max_sponsors"`
}

// UpdateTierRequest is the DTO for organizer tier update API requests.
type UpdateTierRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	MaxSponsors int             `json:"max_sponsors"`
}

// CreateIntentRequest is the DTO for a sponsor reserving a tier slot.
type CreateIntentRequest struct {
	TierID uuid.UUID `json:"tier_id"`
}

// ConfirmContributionRequest is the DTO for submitting settlement evidence.
type ConfirmContributionRequest struct {
	TransactionHash string `json:"transaction_hash"`
}

// AuditEntry is one append-only audit trail record.
// This struct maps directly to the `audit_logs` table in the database.
type AuditEntry struct {
	ID         uuid.UUID              `json:"id"`
	Action     string                 `json:"action"` // e.g., 'payment_intent_created', 'payment_confirmed', 'payment_failed'
	UserID     uuid.UUID              `json:"user_id"`
	ResourceID string                 `json:"resource_id"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ContributionEvent is the message payload published to RabbitMQ for
// contribution lifecycle updates.
type ContributionEvent struct {
	EventType      string    `json:"event_type"`
	ContributionID string    `json:"contribution_id"`
	SponsorID      string    `json:"sponsor_id"`
	TierID         string    `json:"tier_id"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	TxHash         string    `json:"tx_hash,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
