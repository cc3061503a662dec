// Package postgres implements repository.PaymentRefStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/pkg/database"
	apperrors "github.com/c50bossio/6fb-booking-sub001/pkg/errors"
)

const (
	upsertRefQuery = `
		INSERT INTO payment_gateway_refs (provider_id, gateway_type, amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		ON CONFLICT (provider_id) DO UPDATE
		SET gateway_type = EXCLUDED.gateway_type,
		    amount = EXCLUDED.amount,
		    currency = EXCLUDED.currency,
		    updated_at = EXCLUDED.updated_at`

	getRefQuery = `
		SELECT gateway_type, amount::text, currency, created_at
		FROM payment_gateway_refs
		WHERE provider_id = $1`
)

// PaymentRefStore persists payment refs in the payment_gateway_refs table.
type PaymentRefStore struct {
	db  database.DBTX
	now func() time.Time
}

// NewPaymentRefStore creates a store over db.
func NewPaymentRefStore(db database.DBTX) *PaymentRefStore {
	return &PaymentRefStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Save upserts ref keyed by its provider id.
func (s *PaymentRefStore) Save(ctx context.Context, ref *domain.PaymentRef) (err error) {
	ctx, end := database.TraceQuery(ctx, "SavePaymentRef", upsertRefQuery)
	defer func() { end(err) }()

	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = s.now()
	}
	_, err = s.db.Exec(ctx, upsertRefQuery,
		ref.ProviderID,
		ref.Gateway.String(),
		ref.Amount.String(),
		ref.Currency,
		ref.CreatedAt,
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("upsert payment ref %s: %w", ref.ProviderID, err)
	}
	return nil
}

// GetByProviderID loads the ref for providerID.
func (s *PaymentRefStore) GetByProviderID(ctx context.Context, providerID string) (_ *domain.PaymentRef, err error) {
	ctx, end := database.TraceQuery(ctx, "GetPaymentRef", getRefQuery)
	defer func() { end(err) }()

	var (
		gw     string
		amount string
		ref    = domain.PaymentRef{ProviderID: providerID}
	)
	err = s.db.QueryRow(ctx, getRefQuery, providerID).Scan(&gw, &amount, &ref.Currency, &ref.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("payment_ref", providerID)
		}
		return nil, fmt.Errorf("get payment ref %s: %w", providerID, err)
	}

	ref.Gateway, err = domain.ParseGatewayType(gw)
	if err != nil {
		return nil, fmt.Errorf("payment ref %s: %w", providerID, err)
	}
	ref.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("payment ref %s amount: %w", providerID, err)
	}
	return &ref, nil
}
