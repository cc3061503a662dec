package gateway

import "strings"

// StatusMap translates a provider's status vocabulary into a canonical status.
// Lookups are case-insensitive and unknown statuses map to Fallback.
type StatusMap[T ~string] struct {
	entries  map[string]T
	Fallback T
}

// NewStatusMap builds a StatusMap from provider status to canonical status.
func NewStatusMap[T ~string](fallback T, entries map[string]T) StatusMap[T] {
	m := make(map[string]T, len(entries))
	for k, v := range entries {
		m[strings.ToLower(k)] = v
	}
	return StatusMap[T]{entries: m, Fallback: fallback}
}

// Lookup returns the canonical status for a provider status.
func (s StatusMap[T]) Lookup(providerStatus string) T {
	if v, ok := s.entries[strings.ToLower(providerStatus)]; ok {
		return v
	}
	return s.Fallback
}
