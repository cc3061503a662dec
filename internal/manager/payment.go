package manager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/event"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
)

// StrategyPreferredGateway is stamped when the caller named the gateway.
const StrategyPreferredGateway = "preferred_gateway"

// IntentRequest holds the parameters of CreatePaymentIntent.
type IntentRequest struct {
	Amount             decimal.Decimal
	Currency           string
	Metadata           map[string]string
	CustomerID         string
	PaymentMethodID    string
	PaymentMethodTypes []string
	// Selection overrides the context built from the fields above.
	Selection *domain.SelectionContext
	// PreferredGateway bypasses the selector when it names an enabled adapter.
	PreferredGateway domain.GatewayType
	// Strategy overrides the configured default strategy.
	Strategy string
}

func (r IntentRequest) selectionContext() domain.SelectionContext {
	if r.Selection != nil {
		return *r.Selection
	}
	return domain.NewSelectionContext(r.Amount, r.Currency,
		domain.WithCustomerID(r.CustomerID),
		domain.WithMetadata(r.Metadata),
	)
}

func (r IntentRequest) input() gateway.CreateIntentInput {
	return gateway.CreateIntentInput{
		Amount:             r.Amount,
		Currency:           r.Currency,
		Metadata:           domain.CopyMetadata(r.Metadata),
		CustomerID:         r.CustomerID,
		PaymentMethodTypes: r.PaymentMethodTypes,
		PaymentMethodID:    r.PaymentMethodID,
	}
}

// CreatePaymentIntent creates a payment intent on a selected gateway. When the
// chosen gateway fails and failover is enabled, every other enabled gateway is
// tried once in priority order and the first success is returned.
func (m *Manager) CreatePaymentIntent(ctx context.Context, req IntentRequest) (pi *domain.PaymentIntent, err error) {
	ctx, end := m.startSpan(ctx, "CreatePaymentIntent")
	defer func() { end(err) }()

	if !req.Amount.IsPositive() {
		return nil, domain.NewGatewayError(domain.CodeInvalidAmount, "amount must be greater than zero", "")
	}
	if len(req.Currency) != 3 {
		return nil, domain.NewGatewayError(domain.CodeInvalidCurrency, "currency must be a 3-letter ISO code", "")
	}
	sc := req.selectionContext()
	if err := sc.Validate(); err != nil {
		return nil, domain.WrapGatewayError(err, domain.CodeInvalidSelectionContext, "invalid selection context", "")
	}

	chosen, strategyName, err := m.choose(req, sc)
	if err != nil {
		return nil, err
	}

	in := req.input()
	pi, firstErr := m.tryCreate(ctx, chosen, in)
	if firstErr == nil {
		return m.finishIntent(ctx, pi, strategyName, req, false), nil
	}

	mc := m.store.Snapshot()
	others := without(m.available(), chosen)
	if !mc.FailoverEnabled || len(others) == 0 {
		m.logger.ErrorContext(ctx, "payment intent failed",
			slog.String("gateway", chosen.String()),
			slog.String("strategy", strategyName),
			slog.String("error_code", domain.ErrorCode(firstErr)),
		)
		return nil, domain.WrapGatewayError(firstErr, domain.CodePaymentIntentFailed,
			fmt.Sprintf("payment intent failed on %s", chosen), chosen)
	}

	failed := chosen
	lastErr := firstErr
	for i, next := range others {
		m.logger.WarnContext(ctx, "gateway failed, failing over",
			slog.String("gateway", failed.String()),
			slog.String("next_gateway", next.String()),
			slog.String("error_code", domain.ErrorCode(lastErr)),
			slog.Int("attempt", i+1),
		)
		failoversTotal.WithLabelValues(failed.String(), next.String()).Inc()
		m.publish(ctx, "failover", m.events.PublishFailover(ctx, event.FailoverData{
			FailedGateway: failed,
			NextGateway:   next,
			ErrorCode:     domain.ErrorCode(lastErr),
			Attempt:       i + 1,
			Amount:        req.Amount.String(),
			Currency:      domain.NormalizeCurrency(req.Currency),
		}))

		pi, err := m.tryCreate(ctx, next, in)
		if err == nil {
			return m.finishIntent(ctx, pi, strategyName, req, true), nil
		}
		failed, lastErr = next, err
	}

	m.logger.ErrorContext(ctx, "all gateways failed to create payment intent",
		slog.String("gateway", chosen.String()),
		slog.String("strategy", strategyName),
		slog.Int("attempts", len(others)+1),
		slog.String("error_code", domain.ErrorCode(lastErr)),
	)
	return nil, domain.WrapGatewayError(firstErr, domain.CodeAllFailoversFailed,
		fmt.Sprintf("all %d gateways failed to create the payment intent", len(others)+1), chosen)
}

// choose returns the gateway for a new intent and the strategy label to stamp.
func (m *Manager) choose(req IntentRequest, sc domain.SelectionContext) (domain.GatewayType, string, error) {
	available := m.available()
	if req.PreferredGateway != "" {
		for _, g := range available {
			if g == req.PreferredGateway {
				return g, StrategyPreferredGateway, nil
			}
		}
		m.logger.Debug("preferred gateway unavailable, using selector",
			slog.String("gateway", req.PreferredGateway.String()),
		)
	}

	name := req.Strategy
	if name == "" {
		name = m.store.Snapshot().DefaultStrategy
	}
	if name == "" {
		name = selector.NameLowestCost
	}
	strategy, err := selector.ParseStrategy(name)
	if err != nil {
		return "", "", err
	}
	chosen, err := m.selector.Select(available, sc, strategy)
	if err != nil {
		return "", "", err
	}
	return chosen, strategy.Name(), nil
}

// tryCreate calls one adapter and records the outcome in the selector metrics.
func (m *Manager) tryCreate(ctx context.Context, t domain.GatewayType, in gateway.CreateIntentInput) (*domain.PaymentIntent, error) {
	a, err := m.adapterFor(t)
	if err != nil {
		return nil, err
	}
	start := m.clock.Now()
	pi, err := callAdapter(t, func() (*domain.PaymentIntent, error) {
		return a.CreatePaymentIntent(ctx, in)
	})
	elapsed := m.clock.Now().Sub(start)
	if err != nil {
		m.selector.Metrics().RecordFailure(t, elapsed)
		return nil, err
	}
	m.selector.Metrics().RecordSuccess(t, elapsed)
	return pi, nil
}

// finishIntent stamps routing metadata, persists the gateway ref and emits
// the intent_created event. Persistence and publish failures are logged only.
func (m *Manager) finishIntent(ctx context.Context, pi *domain.PaymentIntent, strategy string, req IntentRequest, failedOver bool) *domain.PaymentIntent {
	if pi.Metadata == nil {
		pi.Metadata = make(map[string]string, 3)
	}
	pi.Metadata[domain.MetadataGatewayType] = pi.Gateway.String()
	pi.Metadata[domain.MetadataSelectionStrategy] = strategy
	pi.Metadata[domain.MetadataGatewayRef] = pi.Reference()

	if m.refs != nil {
		ref := &domain.PaymentRef{
			Gateway:    pi.Gateway,
			ProviderID: pi.ID,
			Amount:     pi.Amount,
			Currency:   pi.Currency,
			CreatedAt:  m.clock.Now().UTC(),
		}
		if err := m.refs.Save(ctx, ref); err != nil {
			m.logger.ErrorContext(ctx, "failed to persist payment ref",
				slog.String("gateway", pi.Gateway.String()),
				slog.String("provider_id", pi.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	m.publish(ctx, "intent_created", m.events.PublishIntentCreated(ctx, event.IntentCreatedData{
		IntentID:   pi.ID,
		Reference:  pi.Reference(),
		Gateway:    pi.Gateway,
		Strategy:   strategy,
		Amount:     pi.Amount.String(),
		Currency:   pi.Currency,
		CustomerID: req.CustomerID,
		FailedOver: failedOver,
	}))

	m.logger.InfoContext(ctx, "payment intent created",
		slog.String("gateway", pi.Gateway.String()),
		slog.String("strategy", strategy),
		slog.String("intent_id", pi.ID),
		slog.Bool("failed_over", failedOver),
	)
	return pi
}

// ConfirmPayment confirms a payment on the gateway that owns it. gw may be
// empty; see resolve for how the owner is found.
func (m *Manager) ConfirmPayment(ctx context.Context, paymentID string, gw domain.GatewayType, paymentMethod string, metadata map[string]string) (res *domain.PaymentResult, err error) {
	ctx, end := m.startSpan(ctx, "ConfirmPayment")
	defer func() { end(err) }()

	a, id, err := m.resolve(ctx, paymentID, gw)
	if err != nil {
		return nil, err
	}
	res, err = timed(m, a.Type(), func() (*domain.PaymentResult, error) {
		return a.ConfirmPayment(ctx, id, paymentMethod, metadata)
	})
	if err != nil {
		m.logFailure(ctx, "payment confirmation failed", a.Type(), err)
		return nil, err
	}
	m.logger.InfoContext(ctx, "payment confirmed",
		slog.String("gateway", a.Type().String()),
		slog.String("payment_id", id),
		slog.String("status", string(res.Status)),
	)
	return res, nil
}

// GetPayment fetches a payment from the gateway that owns it.
func (m *Manager) GetPayment(ctx context.Context, paymentID string, gw domain.GatewayType) (res *domain.PaymentResult, err error) {
	ctx, end := m.startSpan(ctx, "GetPayment")
	defer func() { end(err) }()

	a, id, err := m.resolve(ctx, paymentID, gw)
	if err != nil {
		return nil, err
	}
	return callAdapter(a.Type(), func() (*domain.PaymentResult, error) {
		return a.GetPayment(ctx, id)
	})
}

// CreateRefund refunds a payment on the gateway that owns it. A nil amount
// refunds the full charge.
func (m *Manager) CreateRefund(ctx context.Context, paymentID string, gw domain.GatewayType, amount *decimal.Decimal, reason string) (res *domain.RefundResult, err error) {
	ctx, end := m.startSpan(ctx, "CreateRefund")
	defer func() { end(err) }()

	a, id, err := m.resolve(ctx, paymentID, gw)
	if err != nil {
		return nil, err
	}
	res, err = timed(m, a.Type(), func() (*domain.RefundResult, error) {
		return a.CreateRefund(ctx, id, amount, reason)
	})
	if err != nil {
		m.logFailure(ctx, "refund failed", a.Type(), err)
		return nil, err
	}
	m.logger.InfoContext(ctx, "refund created",
		slog.String("gateway", a.Type().String()),
		slog.String("payment_id", id),
		slog.String("refund_id", res.ID),
		slog.String("amount", res.Amount.String()),
	)
	return res, nil
}

// GetRefund fetches a refund. Refund ids are not persisted, so the gateway
// must be explicit, tagged in the id, or inferable.
func (m *Manager) GetRefund(ctx context.Context, refundID string, gw domain.GatewayType) (res *domain.RefundResult, err error) {
	ctx, end := m.startSpan(ctx, "GetRefund")
	defer func() { end(err) }()

	a, id, err := m.resolve(ctx, refundID, gw)
	if err != nil {
		return nil, err
	}
	return callAdapter(a.Type(), func() (*domain.RefundResult, error) {
		return a.GetRefund(ctx, id)
	})
}

// CreateCustomer creates a customer on gw, or on the highest-priority enabled
// gateway when gw is empty.
func (m *Manager) CreateCustomer(ctx context.Context, in gateway.CustomerInput, gw domain.GatewayType) (res *domain.CustomerResult, err error) {
	ctx, end := m.startSpan(ctx, "CreateCustomer")
	defer func() { end(err) }()

	a, err := m.explicitOrPrimary(gw)
	if err != nil {
		return nil, err
	}
	res, err = callAdapter(a.Type(), func() (*domain.CustomerResult, error) {
		return a.CreateCustomer(ctx, in)
	})
	if err != nil {
		m.logFailure(ctx, "customer creation failed", a.Type(), err)
		return nil, err
	}
	m.logger.InfoContext(ctx, "customer created",
		slog.String("gateway", a.Type().String()),
		slog.String("customer_id", res.ID),
	)
	return res, nil
}

// GetCustomer fetches a customer from gw, or from the primary gateway.
func (m *Manager) GetCustomer(ctx context.Context, customerID string, gw domain.GatewayType) (res *domain.CustomerResult, err error) {
	ctx, end := m.startSpan(ctx, "GetCustomer")
	defer func() { end(err) }()

	if g, id, ok := domain.ParseReference(customerID); ok && gw == "" {
		gw, customerID = g, id
	}
	a, err := m.explicitOrPrimary(gw)
	if err != nil {
		return nil, err
	}
	return callAdapter(a.Type(), func() (*domain.CustomerResult, error) {
		return a.GetCustomer(ctx, customerID)
	})
}

// CreatePayout sends funds to a destination account through gw, or through
// the primary gateway.
func (m *Manager) CreatePayout(ctx context.Context, amount decimal.Decimal, destinationAccount, currency string, gw domain.GatewayType) (res *domain.PayoutResult, err error) {
	ctx, end := m.startSpan(ctx, "CreatePayout")
	defer func() { end(err) }()

	a, err := m.explicitOrPrimary(gw)
	if err != nil {
		return nil, err
	}
	res, err = callAdapter(a.Type(), func() (*domain.PayoutResult, error) {
		return a.CreatePayout(ctx, amount, destinationAccount, currency)
	})
	if err != nil {
		m.logFailure(ctx, "payout failed", a.Type(), err)
		return nil, err
	}
	m.logger.InfoContext(ctx, "payout created",
		slog.String("gateway", a.Type().String()),
		slog.String("payout_id", res.ID),
		slog.String("status", string(res.Status)),
	)
	return res, nil
}

func (m *Manager) explicitOrPrimary(gw domain.GatewayType) (gateway.Adapter, error) {
	if gw != "" {
		return m.adapterFor(gw)
	}
	available := m.available()
	if len(available) == 0 {
		return nil, domain.NewGatewayError(domain.CodeNoGatewaysAvailable, "no payment gateways available", "")
	}
	return m.adapterFor(available[0])
}

func (m *Manager) logFailure(ctx context.Context, msg string, gw domain.GatewayType, err error) {
	m.logger.WarnContext(ctx, msg,
		slog.String("gateway", gw.String()),
		slog.String("error_code", domain.ErrorCode(err)),
		slog.String("error", err.Error()),
	)
}

func (m *Manager) publish(ctx context.Context, eventType string, err error) {
	if err != nil {
		m.logger.WarnContext(ctx, "failed to publish gateway event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// timed runs fn and folds the outcome into the gateway's selector metrics.
func timed[T any](m *Manager, gw domain.GatewayType, fn func() (T, error)) (T, error) {
	start := m.clock.Now()
	out, err := callAdapter(gw, fn)
	elapsed := m.clock.Now().Sub(start)
	if err != nil {
		m.selector.Metrics().RecordFailure(gw, elapsed)
	} else {
		m.selector.Metrics().RecordSuccess(gw, elapsed)
	}
	return out, err
}

// callAdapter runs fn, converting panics and non-gateway errors into
// GatewayErrors attributed to gw.
func callAdapter[T any](gw domain.GatewayType, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewGatewayError(domain.CodeUnexpectedError,
				fmt.Sprintf("adapter panicked: %v", r), gw)
		}
	}()
	out, err = fn()
	if err != nil {
		return out, domain.AsGatewayError(err, gw)
	}
	return out, nil
}

func without(list []domain.GatewayType, t domain.GatewayType) []domain.GatewayType {
	out := make([]domain.GatewayType, 0, len(list))
	for _, g := range list {
		if g != t {
			out = append(out, g)
		}
	}
	return out
}
