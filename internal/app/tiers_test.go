package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TomikeDS/lumentix-backend/internal/domain"
	"github.com/TomikeDS/lumentix-backend/internal/store"
)

type tierWriteRepoStub struct {
	store.Repository

	createdTier *domain.SponsorTier
	createErr   error
	updatedTier *domain.SponsorTier
	updateErr   error
}

func (s *tierWriteRepoStub) CreateTier(ctx context.Context, tier *domain.SponsorTier) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdTier = tier
	return nil
}

func (s *tierWriteRepoStub) UpdateTier(ctx context.Context, tier *domain.SponsorTier) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedTier = tier
	return nil
}

func TestValidateTierDefinition(t *testing.T) {
	tests := []struct {
		name        string
		tierName    string
		price       string
		maxSponsors int
		wantErr     string
	}{
		{
			name:        "valid definition",
			tierName:    "Gold",
			price:       "100",
			maxSponsors: 10,
		},
		{
			name:        "zero price is allowed",
			tierName:    "Community",
			price:       "0",
			maxSponsors: 100,
		},
		{
			name:        "blank name",
			tierName:    "   ",
			price:       "100",
			maxSponsors: 10,
			wantErr:     "name is required",
		},
		{
			name:        "negative price",
			tierName:    "Gold",
			price:       "-1",
			maxSponsors: 10,
			wantErr:     "price must not be negative",
		},
		{
			name:        "price finer than one stroop",
			tierName:    "Gold",
			price:       "99.99999999",
			maxSponsors: 10,
			wantErr:     "price precision exceeds 7 decimal places",
		},
		{
			name:        "seven decimal places is allowed",
			tierName:    "Gold",
			price:       "99.9999999",
			maxSponsors: 10,
		},
		{
			name:        "zero capacity",
			tierName:    "Gold",
			price:       "100",
			maxSponsors: 0,
			wantErr:     "max_sponsors must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTierDefinition(tt.tierName, decimal.RequireFromString(tt.price), tt.maxSponsors)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid definition, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidTier) {
				t.Fatalf("expected ErrInvalidTier, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected reason %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateTier_PersistsTrimmedDefinition(t *testing.T) {
	repo := &tierWriteRepoStub{}
	audit := &auditRecorderStub{}
	svc := &Service{repo: repo, audit: audit}

	organizerID := uuid.New()
	tier, err := svc.CreateTier(context.Background(), organizerID, domain.CreateTierRequest{
		Name:        "  Platinum  ",
		Price:       decimal.RequireFromString("500"),
		MaxSponsors: 3,
	})
	if err != nil {
		t.Fatalf("expected tier creation to succeed, got %v", err)
	}
	if tier.Name != "Platinum" {
		t.Fatalf("expected the tier name to be trimmed, got %q", tier.Name)
	}
	if tier.ID == uuid.Nil {
		t.Fatal("expected a generated tier ID")
	}
	if repo.createdTier == nil {
		t.Fatal("expected the tier to be persisted")
	}
	if entry := findAudit(audit.entries, "tier_created"); entry == nil {
		t.Fatal("expected tier_created audit entry")
	} else if entry.UserID != organizerID {
		t.Fatalf("expected the audit entry to name the organizer, got %s", entry.UserID)
	}
}

func TestUpdateTier_RejectsInvalidDefinitionBeforePersisting(t *testing.T) {
	repo := &tierWriteRepoStub{}
	svc := &Service{repo: repo, audit: &auditRecorderStub{}}

	_, err := svc.UpdateTier(context.Background(), uuid.New(), uuid.New(), domain.UpdateTierRequest{
		Name:        "Gold",
		Price:       decimal.RequireFromString("-5"),
		MaxSponsors: 10,
	})
	if !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
	if repo.updatedTier != nil {
		t.Fatal("an invalid definition must not reach the store")
	}
}

func TestGetTier_ComputesSpotsLeft(t *testing.T) {
	tier := &domain.SponsorTier{
		ID:          uuid.New(),
		Name:        "Gold",
		Price:       decimal.RequireFromString("100"),
		MaxSponsors: 5,
	}

	t.Run("partially filled tier", func(t *testing.T) {
		repo := &intentRepoStub{tier: tier, confirmedCount: 3}
		svc := &Service{repo: repo}

		availability, err := svc.GetTier(context.Background(), tier.ID)
		if err != nil {
			t.Fatalf("expected availability lookup to succeed, got %v", err)
		}
		if availability.ConfirmedCount != 3 {
			t.Fatalf("expected 3 confirmed, got %d", availability.ConfirmedCount)
		}
		if availability.SpotsLeft != 2 {
			t.Fatalf("expected 2 spots left, got %d", availability.SpotsLeft)
		}
	})

	t.Run("overbooked tier clamps to zero", func(t *testing.T) {
		repo := &intentRepoStub{tier: tier, confirmedCount: 6}
		svc := &Service{repo: repo}

		availability, err := svc.GetTier(context.Background(), tier.ID)
		if err != nil {
			t.Fatalf("expected availability lookup to succeed, got %v", err)
		}
		if availability.SpotsLeft != 0 {
			t.Fatalf("expected 0 spots left, got %d", availability.SpotsLeft)
		}
	})
}
