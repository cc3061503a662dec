// Package memory provides in-process repository implementations for
// development, single-instance deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	apperrors "github.com/c50bossio/6fb-booking-sub001/pkg/errors"
)

// IdempotencyStore keeps processed keys in a map. Expired entries are
// dropped lazily on access.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	clock   clockz.Clock
}

// NewIdempotencyStore creates a store whose entries expire after ttl.
func NewIdempotencyStore(ttl time.Duration, clock clockz.Clock) *IdempotencyStore {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &IdempotencyStore{entries: make(map[string]time.Time), ttl: ttl, clock: clock}
}

// MarkIfAbsent records key unless an unexpired entry exists. An existing
// entry keeps its original timestamp.
func (s *IdempotencyStore) MarkIfAbsent(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if added, ok := s.entries[key]; ok && now.Sub(added) <= s.ttl {
		return false, nil
	}
	s.entries[key] = now
	return true, nil
}

// Len returns the number of entries, including expired ones not yet dropped.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// PaymentRefStore keeps payment refs in a map.
type PaymentRefStore struct {
	mu   sync.RWMutex
	refs map[string]domain.PaymentRef
}

// NewPaymentRefStore creates an empty store.
func NewPaymentRefStore() *PaymentRefStore {
	return &PaymentRefStore{refs: make(map[string]domain.PaymentRef)}
}

// Save stores a copy of ref.
func (s *PaymentRefStore) Save(_ context.Context, ref *domain.PaymentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[ref.ProviderID] = *ref
	return nil
}

// GetByProviderID returns a copy of the stored ref.
func (s *PaymentRefStore) GetByProviderID(_ context.Context, providerID string) (*domain.PaymentRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[providerID]
	if !ok {
		return nil, apperrors.NotFound("payment_ref", providerID)
	}
	return &ref, nil
}
