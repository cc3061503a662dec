// Package repository defines the persistence contracts of the payment gateway
// subsystem.
package repository

import (
	"context"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
)

// PaymentRefStore records which gateway owns a provider payment id.
type PaymentRefStore interface {
	// Save inserts or replaces the ref for ref.ProviderID.
	Save(ctx context.Context, ref *domain.PaymentRef) error

	// GetByProviderID returns the ref for a provider id, or an error wrapping
	// apperrors.ErrNotFound.
	GetByProviderID(ctx context.Context, providerID string) (*domain.PaymentRef, error)
}

// IdempotencyStore remembers processed webhook event ids.
type IdempotencyStore interface {
	// MarkIfAbsent records key and reports whether this call added it. The
	// check and the write are one atomic step, so of several concurrent calls
	// with the same unexpired key exactly one gets true.
	MarkIfAbsent(ctx context.Context, key string) (added bool, err error)
}

// WebhookKey namespaces a webhook event id by gateway.
func WebhookKey(gateway domain.GatewayType, eventID string) string {
	return "webhook:" + gateway.String() + ":" + eventID
}
