package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/persistence"
)

// OptOutRepository handles opt-out rows. The primary key on
// (phone_number, business_id) enforces the at-most-one-row invariant.
type OptOutRepository struct {
	db *sql.DB
}

func (r *OptOutRepository) RecordOptOut(ctx context.Context, optOut *models.OptOut) error {
	query := `
		INSERT INTO opt_outs (phone_number, business_id, opted_out_at, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone_number, business_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		optOut.PhoneNumber,
		optOut.BusinessID,
		optOut.OptedOutAt,
		nullString(optOut.Reason),
	)
	if err != nil {
		return fmt.Errorf("failed to record opt-out: %w", err)
	}

	return nil
}

func (r *OptOutRepository) RemoveOptOut(ctx context.Context, businessID, phoneNumber string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM opt_outs WHERE business_id = $1 AND phone_number = $2",
		businessID, phoneNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to remove opt-out: %w", err)
	}

	return nil
}

func (r *OptOutRepository) OptOutByContact(ctx context.Context, businessID, phoneNumber string) (*models.OptOut, error) {
	query := `
		SELECT phone_number, business_id, opted_out_at, reason
		FROM opt_outs
		WHERE business_id = $1 AND phone_number = $2
	`

	var (
		optOut models.OptOut
		reason sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, businessID, phoneNumber).Scan(
		&optOut.PhoneNumber,
		&optOut.BusinessID,
		&optOut.OptedOutAt,
		&reason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrOptOutNotFound
		}

		return nil, fmt.Errorf("failed to query opt-out: %w", err)
	}

	optOut.Reason = reason.String

	return &optOut, nil
}

// ConsentRepository handles opt-in history rows.
type ConsentRepository struct {
	db *sql.DB
}

func (r *ConsentRepository) SaveConsent(ctx context.Context, consent *models.Consent) error {
	query := `
		INSERT INTO consents (phone_number, business_id, opted_in_at, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone_number, business_id) DO UPDATE SET
			opted_in_at = EXCLUDED.opted_in_at,
			source = EXCLUDED.source
	`

	_, err := r.db.ExecContext(ctx, query,
		consent.PhoneNumber,
		consent.BusinessID,
		consent.OptedInAt,
		nullString(consent.Source),
	)
	if err != nil {
		return fmt.Errorf("failed to save consent: %w", err)
	}

	return nil
}

func (r *ConsentRepository) ConsentByContact(ctx context.Context, businessID, phoneNumber string) (*models.Consent, error) {
	query := `
		SELECT phone_number, business_id, opted_in_at, source
		FROM consents
		WHERE business_id = $1 AND phone_number = $2
	`

	var (
		consent models.Consent
		source  sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, businessID, phoneNumber).Scan(
		&consent.PhoneNumber,
		&consent.BusinessID,
		&consent.OptedInAt,
		&source,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrConsentNotFound
		}

		return nil, fmt.Errorf("failed to query consent: %w", err)
	}

	consent.Source = source.String

	return &consent, nil
}
