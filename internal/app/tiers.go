/**
 * @description
 * Tier management for the lumentix backend: organizers define sponsorship
 * tiers with a price and a capacity, sponsors browse them with live
 * availability. These methods share the `Service` struct with the settlement
 * flow in service.go.
 */

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TomikeDS/lumentix-backend/internal/domain"
)

// CreateTier validates and persists a new sponsorship tier.
func (s *Service) CreateTier(ctx context.Context, organizerID uuid.UUID, req domain.CreateTierRequest) (*domain.SponsorTier, error) {
	if err := validateTierDefinition(req.Name, req.Price, req.MaxSponsors); err != nil {
		return nil, err
	}

	tier := &domain.SponsorTier{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price,
		MaxSponsors: req.MaxSponsors,
	}
	if err := s.repo.CreateTier(ctx, tier); err != nil {
		return nil, fmt.Errorf("failed to create sponsor tier: %w", err)
	}

	s.recordAudit(ctx, organizerID, "tier_created", tier.ID.String(), map[string]interface{}{
		"name":         tier.Name,
		"price":        tier.Price.StringFixed(7),
		"max_sponsors": tier.MaxSponsors,
	})

	return tier, nil
}

// UpdateTier validates and applies a tier update. Pending and confirmed
// contributions keep the amount frozen at their intent time, so a price change
// only affects intents created after it.
func (s *Service) UpdateTier(ctx context.Context, organizerID uuid.UUID, tierID uuid.UUID, req domain.UpdateTierRequest) (*domain.SponsorTier, error) {
	if err := validateTierDefinition(req.Name, req.Price, req.MaxSponsors); err != nil {
		return nil, err
	}

	tier := &domain.SponsorTier{
		ID:          tierID,
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price,
		MaxSponsors: req.MaxSponsors,
	}
	if err := s.repo.UpdateTier(ctx, tier); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, organizerID, "tier_updated", tier.ID.String(), map[string]interface{}{
		"name":         tier.Name,
		"price":        tier.Price.StringFixed(7),
		"max_sponsors": tier.MaxSponsors,
	})

	return tier, nil
}

// GetTier returns a single tier with its current availability.
func (s *Service) GetTier(ctx context.Context, tierID uuid.UUID) (*domain.TierAvailability, error) {
	tier, err := s.repo.FindTierByID(ctx, tierID)
	if err != nil {
		return nil, err
	}
	confirmed, err := s.repo.CountConfirmedByTier(ctx, tierID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to count confirmed contributions: %w", err)
	}

	availability := &domain.TierAvailability{
		SponsorTier:    *tier,
		ConfirmedCount: confirmed,
		SpotsLeft:      int64(tier.MaxSponsors) - confirmed,
	}
	if availability.SpotsLeft < 0 {
		availability.SpotsLeft = 0
	}
	return availability, nil
}

// ListTiers returns all tiers with their current availability.
func (s *Service) ListTiers(ctx context.Context) ([]domain.TierAvailability, error) {
	return s.repo.ListTiers(ctx)
}

// ListSponsorContributions returns all contributions made by a sponsor, newest first.
func (s *Service) ListSponsorContributions(ctx context.Context, sponsorID uuid.UUID) ([]domain.Contribution, error) {
	return s.repo.FindContributionsBySponsorID(ctx, sponsorID)
}

// validateTierDefinition enforces the invariants every tier must satisfy.
func validateTierDefinition(name string, price decimal.Decimal, maxSponsors int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTier)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidTier)
	}
	// Stellar amounts carry at most 7 fractional digits; a finer-grained price
	// could never be settled exactly.
	if price.Exponent() < -7 {
		return fmt.Errorf("%w: price precision exceeds 7 decimal places", ErrInvalidTier)
	}
	if maxSponsors < 1 {
		return fmt.Errorf("%w: max_sponsors must be at least 1", ErrInvalidTier)
	}
	return nil
}
