package manager

import (
	"context"
	"log/slog"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/event"
	"github.com/c50bossio/6fb-booking-sub001/internal/repository"
)

// WebhookResult is the outcome of HandleWebhook.
type WebhookResult struct {
	Event *domain.WebhookEvent `json:"event"`
	// Duplicate is true when the event id was already processed.
	Duplicate bool `json:"duplicate"`
}

// HandleWebhook verifies and parses a webhook sent by gw. An empty secret is
// looked up from the gateway config. Events already seen are reported as
// duplicates and not re-published.
func (m *Manager) HandleWebhook(ctx context.Context, gw domain.GatewayType, payload []byte, signature, secret string) (res *WebhookResult, err error) {
	ctx, end := m.startSpan(ctx, "HandleWebhook")
	defer func() { end(err) }()

	a, err := m.adapterFor(gw)
	if err != nil {
		return nil, err
	}
	if secret == "" {
		secret = m.store.WebhookSecret(gw)
	}
	if secret == "" {
		return nil, domain.NewGatewayError(domain.CodeGatewayNotConfigured,
			"no webhook secret configured", gw)
	}

	ev, err := callAdapter(gw, func() (*domain.WebhookEvent, error) {
		return a.ParseWebhookEvent(payload, signature, secret)
	})
	if err != nil {
		webhooksTotal.WithLabelValues(gw.String(), outcomeRejected).Inc()
		m.logFailure(ctx, "webhook rejected", gw, err)
		return nil, err
	}

	if m.seen != nil && ev.ID != "" {
		added, err := m.seen.MarkIfAbsent(ctx, repository.WebhookKey(gw, ev.ID))
		switch {
		case err != nil:
			// An unreachable store must not drop events; accept and publish.
			m.logger.WarnContext(ctx, "webhook dedup unavailable",
				slog.String("gateway", gw.String()),
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
		case !added:
			webhooksTotal.WithLabelValues(gw.String(), outcomeDuplicate).Inc()
			m.logger.InfoContext(ctx, "duplicate webhook ignored",
				slog.String("gateway", gw.String()),
				slog.String("event_id", ev.ID),
			)
			return &WebhookResult{Event: ev, Duplicate: true}, nil
		}
	}

	webhooksTotal.WithLabelValues(gw.String(), outcomeAccepted).Inc()
	m.publish(ctx, "webhook_received", m.events.PublishWebhookReceived(ctx, event.WebhookReceivedData{
		EventID:  ev.ID,
		Gateway:  gw,
		Type:     ev.Type,
		ObjectID: ev.ObjectID,
	}))
	m.logger.InfoContext(ctx, "webhook processed",
		slog.String("gateway", gw.String()),
		slog.String("event_id", ev.ID),
		slog.String("event_type", ev.Type),
	)
	return &WebhookResult{Event: ev}, nil
}
