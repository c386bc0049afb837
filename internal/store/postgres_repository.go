/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` and
 * `AuditRecorder` interfaces. It contains all the necessary SQL queries to
 * interact with the database tables for sponsor tiers, contributions, and the
 * audit trail.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: NUMERIC amounts scan into decimal.Decimal.
 * - internal/domain: Contains the domain models used for data transfer.
 *
 * @notes
 * - The pool runs pgx's simple protocol (see cmd/main.go), so NUMERIC values
 *   travel as text and scan directly into decimal.Decimal.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TomikeDS/lumentix-backend/internal/domain"
)

var (
	ErrTierNotFound         = errors.New("sponsor tier not found")
	ErrContributionNotFound = errors.New("contribution not found")
	ErrTierFull             = errors.New("sponsor tier is fully subscribed")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateTier inserts a new sponsor tier and fills the generated timestamps.
func (r *PostgresRepository) CreateTier(ctx context.Context, tier *domain.SponsorTier) error {
	query := `
		INSERT INTO sponsor_tiers (id, name, price, max_sponsors)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, tier.ID, tier.Name, tier.Price, tier.MaxSponsors).
		Scan(&tier.CreatedAt, &tier.UpdatedAt)
}

// UpdateTier updates a tier's name, price and capacity. Existing contributions
// keep the amount frozen at intent time, so a price change never touches them.
func (r *PostgresRepository) UpdateTier(ctx context.Context, tier *domain.SponsorTier) error {
	query := `
		UPDATE sponsor_tiers
		SET name = $1, price = $2, max_sponsors = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, tier.Name, tier.Price, tier.MaxSponsors, tier.ID).
		Scan(&tier.CreatedAt, &tier.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrTierNotFound
		}
		return err
	}
	return nil
}

// FindTierByID retrieves a sponsor tier from the database by its ID.
func (r *PostgresRepository) FindTierByID(ctx context.Context, tierID uuid.UUID) (*domain.SponsorTier, error) {
	var tier domain.SponsorTier
	query := `
		SELECT id, name, price, max_sponsors, created_at, updated_at
		FROM sponsor_tiers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, tierID).Scan(
		&tier.ID, &tier.Name, &tier.Price, &tier.MaxSponsors, &tier.CreatedAt, &tier.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTierNotFound
		}
		return nil, err
	}
	return &tier, nil
}

// ListTiers retrieves all sponsor tiers together with their confirmed
// contribution counts for capacity display.
func (r *PostgresRepository) ListTiers(ctx context.Context) ([]domain.TierAvailability, error) {
	var tiers []domain.TierAvailability
	query := `
		SELECT t.id, t.name, t.price, t.max_sponsors, t.created_at, t.updated_at,
		       COUNT(c.id) AS confirmed_count
		FROM sponsor_tiers t
		LEFT JOIN contributions c ON c.tier_id = t.id AND c.status = 'confirmed'
		GROUP BY t.id, t.name, t.price, t.max_sponsors, t.created_at, t.updated_at
		ORDER BY t.created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tier domain.TierAvailability
		err := rows.Scan(
			&tier.ID, &tier.Name, &tier.Price, &tier.MaxSponsors,
			&tier.CreatedAt, &tier.UpdatedAt, &tier.ConfirmedCount,
		)
		if err != nil {
			return nil, err
		}
		tier.SpotsLeft = int64(tier.MaxSponsors) - tier.ConfirmedCount
		if tier.SpotsLeft < 0 {
			tier.SpotsLeft = 0
		}
		tiers = append(tiers, tier)
	}

	return tiers, nil
}

// CountConfirmedByTier counts confirmed contributions for a tier. Contribution
// IDs are never empty, so passing "" as the exclusion matches every row and
// effectively disables it.
func (r *PostgresRepository) CountConfirmedByTier(ctx context.Context, tierID uuid.UUID, excludeContributionID string) (int64, error) {
	var count int64
	query := `
		SELECT COUNT(*)
		FROM contributions
		WHERE tier_id = $1 AND status = 'confirmed' AND id <> $2
	`
	if err := r.db.QueryRow(ctx, query, tierID, excludeContributionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateContribution inserts a new pending contribution and fills the generated timestamps.
func (r *PostgresRepository) CreateContribution(ctx context.Context, contribution *domain.Contribution) error {
	query := `
		INSERT INTO contributions (id, sponsor_id, tier_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		contribution.ID,
		contribution.SponsorID,
		contribution.TierID,
		contribution.Amount,
		contribution.Status,
	).Scan(&contribution.CreatedAt, &contribution.UpdatedAt)
}

// FindPendingContributionByID retrieves a pending contribution with its tier joined.
// Rows in any other status are not visible through this query.
func (r *PostgresRepository) FindPendingContributionByID(ctx context.Context, contributionID string) (*domain.Contribution, error) {
	var contribution domain.Contribution
	var tier domain.SponsorTier
	query := `
		SELECT c.id, c.sponsor_id, c.tier_id, c.amount, c.tx_hash, c.status, c.created_at, c.updated_at,
		       t.id, t.name, t.price, t.max_sponsors, t.created_at, t.updated_at
		FROM contributions c
		INNER JOIN sponsor_tiers t ON t.id = c.tier_id
		WHERE c.id = $1 AND c.status = 'pending'
	`
	err := r.db.QueryRow(ctx, query, contributionID).Scan(
		&contribution.ID, &contribution.SponsorID, &contribution.TierID, &contribution.Amount,
		&contribution.TxHash, &contribution.Status, &contribution.CreatedAt, &contribution.UpdatedAt,
		&tier.ID, &tier.Name, &tier.Price, &tier.MaxSponsors, &tier.CreatedAt, &tier.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrContributionNotFound
		}
		return nil, err
	}
	contribution.Tier = &tier
	return &contribution, nil
}

// FindContributionsBySponsorID retrieves all of a sponsor's contributions, newest first.
func (r *PostgresRepository) FindContributionsBySponsorID(ctx context.Context, sponsorID uuid.UUID) ([]domain.Contribution, error) {
	var contributions []domain.Contribution
	query := `
		SELECT c.id, c.sponsor_id, c.tier_id, c.amount, c.tx_hash, c.status, c.created_at, c.updated_at,
		       t.id, t.name, t.price, t.max_sponsors, t.created_at, t.updated_at
		FROM contributions c
		INNER JOIN sponsor_tiers t ON t.id = c.tier_id
		WHERE c.sponsor_id = $1
		ORDER BY c.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, sponsorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var contribution domain.Contribution
		var tier domain.SponsorTier
		err := rows.Scan(
			&contribution.ID, &contribution.SponsorID, &contribution.TierID, &contribution.Amount,
			&contribution.TxHash, &contribution.Status, &contribution.CreatedAt, &contribution.UpdatedAt,
			&tier.ID, &tier.Name, &tier.Price, &tier.MaxSponsors, &tier.CreatedAt, &tier.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		contribution.Tier = &tier
		contributions = append(contributions, contribution)
	}

	return contributions, nil
}

// MarkContributionFailed moves a pending contribution to the terminal failed
// state. The status guard keeps already-settled rows immutable.
func (r *PostgresRepository) MarkContributionFailed(ctx context.Context, contributionID string) error {
	query := `
		UPDATE contributions
		SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, contributionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContributionNotFound
	}
	return nil
}

// ConfirmContributionAtomic performs the capacity-guarded promotion of a pending
// contribution to confirmed.
func (r *PostgresRepository) ConfirmContributionAtomic(ctx context.Context, contributionID string, tierID uuid.UUID, txHash string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the tier row and re-read its capacity. Concurrent confirmations
	//    for the same tier serialize on this lock.
	var maxSponsors int
	lockQuery := `
		SELECT max_sponsors
		FROM sponsor_tiers
		WHERE id = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, lockQuery, tierID).Scan(&maxSponsors)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrTierNotFound
		}
		return fmt.Errorf("failed to get and lock sponsor tier: %w", err)
	}

	// 2. Re-count confirmed contributions under the lock, excluding this one.
	var confirmed int64
	countQuery := `
		SELECT COUNT(*)
		FROM contributions
		WHERE tier_id = $1 AND status = 'confirmed' AND id <> $2
	`
	err = tx.QueryRow(ctx, countQuery, tierID, contributionID).Scan(&confirmed)
	if err != nil {
		return fmt.Errorf("failed to count confirmed contributions: %w", err)
	}
	if confirmed >= int64(maxSponsors) {
		// Rolling back leaves the contribution pending; the caller surfaces a
		// conflict rather than marking it failed.
		return ErrTierFull
	}

	// 3. Promote the pending contribution and attach the settlement hash.
	updateQuery := `
		UPDATE contributions
		SET status = 'confirmed', tx_hash = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`
	tag, err := tx.Exec(ctx, updateQuery, txHash, contributionID)
	if err != nil {
		return fmt.Errorf("failed to confirm contribution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContributionNotFound
	}

	return tx.Commit(ctx)
}

// RecordAuditEntry appends one audit trail record. Callers treat failures as
// non-fatal; nothing here is read back on the hot path.
func (r *PostgresRepository) RecordAuditEntry(ctx context.Context, entry domain.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal audit meta: %w", err)
	}
	query := `
		INSERT INTO audit_logs (id, action, user_id, resource_id, meta)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.Exec(ctx, query, entry.ID, entry.Action, entry.UserID, entry.ResourceID, metaJSON)
	return err
}
