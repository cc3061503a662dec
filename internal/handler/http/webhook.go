package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	apperrors "github.com/c50bossio/6fb-booking-sub001/pkg/errors"
	"github.com/c50bossio/6fb-booking-sub001/pkg/httputil"
)

// maxWebhookBytes bounds provider notification bodies.
const maxWebhookBytes = 512 << 10

// signatureHeaders names the header each provider signs its notifications in.
var signatureHeaders = map[domain.GatewayType]string{
	domain.GatewayStripe: "Stripe-Signature",
	domain.GatewaySquare: "X-Square-Signature",
	domain.GatewayTilled: "Tilled-Signature",
}

// WebhookHandler receives provider webhook notifications.
type WebhookHandler struct {
	service GatewayService
	logger  *slog.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(svc GatewayService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{service: svc, logger: logger}
}

// WebhookResponse acknowledges a processed notification.
type WebhookResponse struct {
	EventID   string             `json:"event_id"`
	EventType string             `json:"event_type"`
	Gateway   domain.GatewayType `json:"gateway"`
	Duplicate bool               `json:"duplicate"`
}

// Receive handles POST /webhooks/{gateway}. The raw body is verified against
// the provider signature header before it is decoded. Duplicates are
// acknowledged with 200 so providers stop retrying.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	gw, err := domain.ParseGatewayType(chi.URLParam(r, "gateway"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.NotFound("gateway", chi.URLParam(r, "gateway")), h.logger)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "PAYLOAD_TOO_LARGE", Message: "webhook body exceeds limit"},
			})
			return
		}
		httputil.WriteError(w, r, apperrors.InvalidInput("unreadable webhook body"), h.logger)
		return
	}

	signature := r.Header.Get(signatureHeaders[gw])
	if signature == "" {
		httputil.WriteError(w, r, domain.NewGatewayError(domain.CodeInvalidWebhookSignature,
			"missing "+signatureHeaders[gw]+" header", gw), h.logger)
		return
	}

	res, err := h.service.HandleWebhook(r.Context(), gw, payload, signature, "")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, WebhookResponse{
		EventID:   res.Event.ID,
		EventType: res.Event.Type,
		Gateway:   gw,
		Duplicate: res.Duplicate,
	})
}
