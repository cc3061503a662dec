package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	apperrors "github.com/c50bossio/6fb-booking-sub001/pkg/errors"
)

// legacyPrefixes maps provider id prefixes to their gateway. Only consulted
// when LegacyIDInference is enabled.
var legacyPrefixes = []struct {
	prefix  string
	gateway domain.GatewayType
}{
	{"pi_", domain.GatewayStripe},
	{"tld_", domain.GatewayTilled},
}

// resolve finds the adapter owning id and returns the provider id to send it.
// The owner is taken, in order, from: the explicit gateway, a
// "{gateway}:{id}" reference, the payment ref store, and finally the id
// prefix when legacy inference is enabled.
func (m *Manager) resolve(ctx context.Context, id string, gw domain.GatewayType) (gateway.Adapter, string, error) {
	if id == "" {
		return nil, "", domain.NewGatewayError(domain.CodePaymentNotFound, "id is required", gw)
	}

	if gw != "" {
		if g, providerID, ok := domain.ParseReference(id); ok && g == gw {
			id = providerID
		}
		a, err := m.adapterFor(gw)
		return a, id, err
	}

	if g, providerID, ok := domain.ParseReference(id); ok {
		a, err := m.adapterFor(g)
		return a, providerID, err
	}

	if m.refs != nil {
		ref, err := m.refs.GetByProviderID(ctx, id)
		switch {
		case err == nil:
			a, err := m.adapterFor(ref.Gateway)
			return a, id, err
		case errors.Is(err, apperrors.ErrNotFound):
		default:
			m.logger.WarnContext(ctx, "payment ref lookup failed",
				slog.String("provider_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	if m.store.Snapshot().LegacyIDInference {
		t := m.inferFromPrefix(id)
		if t != "" {
			m.logger.WarnContext(ctx, "gateway inferred from id prefix",
				slog.String("gateway", t.String()),
				slog.String("provider_id", id),
			)
			a, err := m.adapterFor(t)
			return a, id, err
		}
	}

	return nil, "", domain.NewGatewayError(domain.CodeGatewayUnresolved,
		fmt.Sprintf("cannot determine which gateway owns %q; pass the gateway or a gateway-tagged reference", id), "")
}

// inferFromPrefix guesses the gateway from the id shape, falling back to the
// highest-priority adapter.
func (m *Manager) inferFromPrefix(id string) domain.GatewayType {
	for _, p := range legacyPrefixes {
		if strings.HasPrefix(id, p.prefix) {
			if _, ok := m.Adapter(p.gateway); ok {
				return p.gateway
			}
		}
	}
	if all := m.Gateways(); len(all) > 0 {
		return all[0]
	}
	return ""
}
