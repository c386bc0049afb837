/**
 * @description
 * This file contains the core business logic for the lumentix backend. The `Service`
 * struct orchestrates the contribution settlement protocol, coordinating between the
 * database repository, the Horizon ledger API client, and the message broker.
 *
 * Key features:
 * - Implements the two-phase settlement flow: payment intents and on-chain confirmation.
 * - Verifies submitted transactions against the escrow wallet: memo correlation,
 *   destination, asset and amount checks.
 * - Re-checks tier capacity inside the store's confirmation transaction so a tier
 *   can never be oversubscribed by concurrent confirmations.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, fmt, log, strings, time: Standard Go libraries.
 * - github.com/shopspring/decimal: Exact decimal math for on-chain amounts.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/horizon, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TomikeDS/lumentix-backend/internal/domain"
	"github.com/TomikeDS/lumentix-backend/internal/store"
	"github.com/TomikeDS/lumentix-backend/pkg/horizon"
	"github.com/TomikeDS/lumentix-backend/pkg/rabbitmq"
)

var (
	// ErrBadEvidence marks every rejection of submitted settlement evidence:
	// unknown transactions, missing memos, wrong destinations, unsupported
	// assets and amount mismatches. The wrapped message carries the concrete
	// reason, including the offending values.
	ErrBadEvidence = errors.New("settlement verification failed")

	// ErrInvalidTier marks rejected tier definitions.
	ErrInvalidTier = errors.New("invalid tier definition")
)

// amountEpsilon is the tolerance for comparing an on-chain amount against the
// contribution's frozen amount. Stellar amounts carry 7 fractional digits, so
// anything below one stroop is representation noise, anything at or above a
// microunit is a real mismatch.
var amountEpsilon = decimal.New(1, -7)

// supportedAssets is the set of asset codes the escrow accepts.
var supportedAssets = map[string]bool{
	domain.NativeAssetCode: true,
	domain.StableAssetCode: true,
}

// Service provides the core business logic for sponsorship settlement.
type Service struct {
	repo          store.Repository
	audit         store.AuditRecorder
	horizonClient *horizon.Client
	eventProducer rabbitmq.Publisher
	escrowWallet  string
	eventExchange string
}

// NewService creates a new settlement service instance.
func NewService(repo store.Repository, audit store.AuditRecorder, horizonClient *horizon.Client, producer rabbitmq.Publisher, escrowWallet, eventExchange string) *Service {
	return &Service{
		repo:          repo,
		audit:         audit,
		horizonClient: horizonClient,
		eventProducer: producer,
		escrowWallet:  strings.TrimSpace(escrowWallet),
		eventExchange: eventExchange,
	}
}

// CreateIntent reserves a pending contribution against a tier and returns the
// payment instructions for the sponsor. The contribution ID doubles as the
// payment memo; confirmation later correlates the on-chain transaction back to
// the contribution by exact memo match.
func (s *Service) CreateIntent(ctx context.Context, sponsorID uuid.UUID, tierID uuid.UUID) (*domain.PaymentIntent, error) {
	// 1. The tier must exist.
	tier, err := s.repo.FindTierByID(ctx, tierID)
	if err != nil {
		return nil, err
	}

	// 2. Admission check against current confirmed count. Best effort only: the
	//    authoritative capacity decision happens inside the confirmation
	//    transaction, this one just rejects obviously hopeless intents early.
	confirmed, err := s.repo.CountConfirmedByTier(ctx, tierID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to count confirmed contributions: %w", err)
	}
	if confirmed >= int64(tier.MaxSponsors) {
		return nil, store.ErrTierFull
	}

	// 3. Create the pending contribution with the amount frozen from the
	//    current tier price. Later price updates never touch it.
	contribution := &domain.Contribution{
		ID:        domain.NewContributionID(),
		SponsorID: sponsorID,
		TierID:    tier.ID,
		Amount:    tier.Price,
		Status:    domain.ContributionPending,
	}
	if err := s.repo.CreateContribution(ctx, contribution); err != nil {
		return nil, fmt.Errorf("failed to create contribution: %w", err)
	}

	log.Printf("CreateIntent: contribution %s created for tier %s (sponsor %s, amount %s)", contribution.ID, tier.ID, sponsorID, tier.Price.StringFixed(7))

	// 4. Best-effort audit and event fan-out.
	s.recordAudit(ctx, sponsorID, "payment_intent_created", contribution.ID, map[string]interface{}{
		"tier_id":  tier.ID.String(),
		"amount":   tier.Price.StringFixed(7),
		"currency": domain.NativeAssetCode,
	})
	s.publishEvent(ctx, "contribution.intent.created", domain.ContributionEvent{
		EventType:      "intent_created",
		ContributionID: contribution.ID,
		SponsorID:      sponsorID.String(),
		TierID:         tier.ID.String(),
		Amount:         tier.Price.StringFixed(7),
		Currency:       domain.NativeAssetCode,
	})

	// 5. Hand the sponsor everything needed to settle on-chain.
	return &domain.PaymentIntent{
		ContributionID: contribution.ID,
		EscrowWallet:   s.escrowWallet,
		Amount:         tier.Price,
		Currency:       domain.NativeAssetCode,
		Memo:           contribution.ID,
	}, nil
}

// ConfirmContribution verifies a submitted transaction hash against the ledger
// and settles the matching pending contribution. Verification failures after
// the contribution has been identified move it to the terminal failed state;
// only a capacity conflict leaves it pending.
func (s *Service) ConfirmContribution(ctx context.Context, txHash string) (*domain.Contribution, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, fmt.Errorf("%w: transaction hash is required", ErrBadEvidence)
	}

	// 1. Look the transaction up on the network.
	tx, err := s.horizonClient.Transaction(ctx, txHash)
	if err != nil {
		log.Printf("ConfirmContribution: ledger lookup failed for hash %s: %v", txHash, err)
		return nil, fmt.Errorf("%w: transaction not found on network", ErrBadEvidence)
	}

	// 2. The memo carries the contribution ID; without it the payment cannot
	//    be correlated to anything.
	if !tx.HasTextMemo() {
		return nil, fmt.Errorf("%w: transaction has no memo", ErrBadEvidence)
	}

	// 3. Correlate the memo to a pending contribution. Confirmed and failed
	//    rows are invisible here, so replaying a settled hash lands on
	//    ErrContributionNotFound.
	contribution, err := s.repo.FindPendingContributionByID(ctx, tx.Memo)
	if err != nil {
		return nil, err
	}

	// 4. Fetch the transaction's payment operations. A fetch failure degrades
	//    to an empty list so verification fails closed.
	ops, fetchErr := s.fetchPaymentOperations(ctx, tx)

	// 5. A transaction with no payment operations cannot have paid the escrow.
	if len(ops) == 0 {
		meta := map[string]interface{}{"tx_hash": txHash}
		if fetchErr != nil {
			meta["operations_fetch_error"] = fetchErr.Error()
		}
		return s.rejectEvidence(ctx, contribution, "no payment operations found in transaction", meta)
	}

	// 6. Find the first payment into the escrow wallet. Only that operation is
	//    inspected further.
	var escrowOp *horizon.Operation
	for i := range ops {
		if ops[i].Destination() == s.escrowWallet {
			escrowOp = &ops[i]
			break
		}
	}
	if escrowOp == nil {
		reason := fmt.Sprintf("no payment to escrow wallet %s", s.escrowWallet)
		return s.rejectEvidence(ctx, contribution, reason, map[string]interface{}{"tx_hash": txHash})
	}

	// 7. The payment must use a supported asset.
	assetCode := domain.NativeAssetCode
	if !escrowOp.IsNativeAsset() {
		assetCode = strings.ToUpper(escrowOp.AssetCode)
	}
	if !supportedAssets[assetCode] {
		reason := fmt.Sprintf("unsupported asset %s", assetCode)
		return s.rejectEvidence(ctx, contribution, reason, map[string]interface{}{"tx_hash": txHash, "asset": assetCode})
	}

	// 8. The paid amount must match the frozen contribution amount exactly,
	//    within one-stroop tolerance. "Paid more" is as wrong as "paid less":
	//    overpayments need a human, not a silent confirm.
	paid, parseErr := decimal.NewFromString(escrowOp.PaymentAmount())
	if parseErr != nil {
		reason := fmt.Sprintf("amount mismatch: expected %s, got %s", contribution.Amount.StringFixed(7), escrowOp.PaymentAmount())
		return s.rejectEvidence(ctx, contribution, reason, map[string]interface{}{"tx_hash": txHash})
	}
	if paid.Sub(contribution.Amount).Abs().GreaterThan(amountEpsilon) {
		reason := fmt.Sprintf("amount mismatch: expected %s, got %s", contribution.Amount.StringFixed(7), paid.StringFixed(7))
		return s.rejectEvidence(ctx, contribution, reason, map[string]interface{}{"tx_hash": txHash})
	}

	// 9. Promote the contribution under the tier's row lock. The store
	//    re-counts confirmed contributions inside the transaction, closing the
	//    window between the intent-time admission check and now. On a capacity
	//    conflict the contribution stays pending: the sponsor paid, so a human
	//    needs to resolve it rather than an automatic failure.
	if err := s.repo.ConfirmContributionAtomic(ctx, contribution.ID, contribution.TierID, txHash); err != nil {
		if errors.Is(err, store.ErrTierFull) {
			log.Printf("ConfirmContribution: tier %s filled up before contribution %s could settle", contribution.TierID, contribution.ID)
			return nil, err
		}
		return nil, fmt.Errorf("failed to confirm contribution: %w", err)
	}
	contribution.Status = domain.ContributionConfirmed
	contribution.TxHash = &txHash

	log.Printf("ConfirmContribution: contribution %s confirmed with transaction %s", contribution.ID, txHash)

	// 10. Best-effort audit and event fan-out. Failures here never unwind the
	//     settlement that already committed.
	s.recordAudit(ctx, contribution.SponsorID, "payment_confirmed", contribution.ID, map[string]interface{}{
		"tx_hash": txHash,
		"tier_id": contribution.TierID.String(),
		"amount":  contribution.Amount.StringFixed(7),
	})
	s.publishEvent(ctx, "contribution.confirmed", domain.ContributionEvent{
		EventType:      "confirmed",
		ContributionID: contribution.ID,
		SponsorID:      contribution.SponsorID.String(),
		TierID:         contribution.TierID.String(),
		Amount:         contribution.Amount.StringFixed(7),
		Currency:       assetCode,
		TxHash:         txHash,
	})

	return contribution, nil
}

// rejectEvidence marks the contribution failed with the given reason and
// returns the rejection as an ErrBadEvidence.
func (s *Service) rejectEvidence(ctx context.Context, contribution *domain.Contribution, reason string, meta map[string]interface{}) (*domain.Contribution, error) {
	s.markContributionFailed(ctx, contribution, reason, meta)
	return nil, fmt.Errorf("%w: %s", ErrBadEvidence, reason)
}

// markContributionFailed moves a contribution to its terminal failed state and
// records why. The store write is the only part that matters for settlement
// semantics; audit and event fan-out stay best-effort.
func (s *Service) markContributionFailed(ctx context.Context, contribution *domain.Contribution, reason string, meta map[string]interface{}) {
	if err := s.repo.MarkContributionFailed(ctx, contribution.ID); err != nil {
		log.Printf("WARN: failed to mark contribution %s as failed: %v", contribution.ID, err)
	} else {
		contribution.Status = domain.ContributionFailed
	}

	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["reason"] = reason
	meta["tier_id"] = contribution.TierID.String()
	s.recordAudit(ctx, contribution.SponsorID, "payment_failed", contribution.ID, meta)

	s.publishEvent(ctx, "contribution.failed", domain.ContributionEvent{
		EventType:      "failed",
		ContributionID: contribution.ID,
		SponsorID:      contribution.SponsorID.String(),
		TierID:         contribution.TierID.String(),
		Amount:         contribution.Amount.StringFixed(7),
		Reason:         reason,
	})

	log.Printf("ConfirmContribution: contribution %s failed verification: %s", contribution.ID, reason)
}

// fetchPaymentOperations follows the transaction's operations link and keeps
// only payment-type operations (regular payments plus account-creating
// payments). The returned error is informational; callers treat a failed fetch
// like an empty result.
func (s *Service) fetchPaymentOperations(ctx context.Context, tx *horizon.Transaction) ([]horizon.Operation, error) {
	records, err := s.horizonClient.OperationsByLink(ctx, tx.Links.Operations.Href)
	if err != nil {
		log.Printf("WARN: failed to fetch operations for transaction %s: %v", tx.Hash, err)
		return nil, err
	}

	payments := make([]horizon.Operation, 0, len(records))
	for _, op := range records {
		if op.IsPayment() {
			payments = append(payments, op)
		}
	}
	return payments, nil
}

// recordAudit appends an audit trail entry, logging instead of failing when the
// audit store is unavailable.
func (s *Service) recordAudit(ctx context.Context, userID uuid.UUID, action, resourceID string, meta map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		Action:     action,
		UserID:     userID,
		ResourceID: resourceID,
		Meta:       meta,
	}
	if err := s.audit.RecordAuditEntry(ctx, entry); err != nil {
		log.Printf("WARN: failed to record audit entry action=%s resource=%s: %v", action, resourceID, err)
	}
}

// publishEvent publishes a contribution lifecycle event, logging instead of
// failing when the broker is unavailable.
func (s *Service) publishEvent(ctx context.Context, routingKey string, event domain.ContributionEvent) {
	if s.eventProducer == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.eventProducer.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("WARN: failed to publish %s event for contribution %s: %v", routingKey, event.ContributionID, err)
	}
}
