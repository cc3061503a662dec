package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/manager"
	apperrors "github.com/c50bossio/6fb-booking-sub001/pkg/errors"
	"github.com/c50bossio/6fb-booking-sub001/pkg/httputil"
	"github.com/c50bossio/6fb-booking-sub001/pkg/logger"
	"github.com/c50bossio/6fb-booking-sub001/pkg/middleware"
	"github.com/c50bossio/6fb-booking-sub001/pkg/pagination"
	"github.com/c50bossio/6fb-booking-sub001/pkg/validator"
)

// GatewayHandler serves gateway status and admin endpoints.
type GatewayHandler struct {
	service GatewayService
	logger  *slog.Logger
}

// NewGatewayHandler creates a gateway handler.
func NewGatewayHandler(svc GatewayService, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{service: svc, logger: logger}
}

// --- Request / response DTOs ---

// SetPriorityRequest is the JSON body of PUT /{gateway}/priority.
type SetPriorityRequest struct {
	Priority int `json:"priority" validate:"gte=1,lte=100"`
}

// HealthResponse is the body of GET /api/v1/gateways/health.
type HealthResponse struct {
	Healthy  int                                         `json:"healthy"`
	Total    int                                         `json:"total"`
	Gateways map[domain.GatewayType]gateway.HealthStatus `json:"gateways"`
}

// ValidationResponse is the body of GET /api/v1/gateways/config/validation.
type ValidationResponse struct {
	Valid       bool   `json:"valid"`
	Environment string `json:"environment"`
	config.Report
}

// --- Read-only handlers ---

// List handles GET /api/v1/gateways
// @Summary List gateways with rolling metrics and capabilities
// @Tags gateways
// @Produce json
// @Router /api/v1/gateways [get]
func (h *GatewayHandler) List(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.service.GatewayStatuses())
}

// Health handles GET /api/v1/gateways/health. It probes every adapter now
// rather than reporting the last scheduled round.
func (h *GatewayHandler) Health(w http.ResponseWriter, r *http.Request) {
	results := h.service.HealthCheckAll(r.Context())

	resp := HealthResponse{Total: len(results), Gateways: results}
	for _, st := range results {
		if st.Healthy {
			resp.Healthy++
		}
	}

	status := http.StatusOK
	if resp.Total > 0 && resp.Healthy == 0 {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteData(w, status, resp)
}

// Selections handles GET /api/v1/gateways/selections. Recent selections are
// listed newest first, paged by page and per_page.
func (h *GatewayHandler) Selections(w http.ResponseWriter, r *http.Request) {
	history := pagination.Reverse(h.service.SelectionHistory())
	httputil.WriteData(w, http.StatusOK, pagination.Slice(history, pagination.FromRequest(r)))
}

// ValidateConfig handles GET /api/v1/gateways/config/validation.
func (h *GatewayHandler) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	mc := h.service.Config().Snapshot()
	report := config.ValidateConfig(mc)
	httputil.WriteData(w, http.StatusOK, ValidationResponse{
		Valid:       report.Valid(),
		Environment: mc.Environment.String(),
		Report:      report,
	})
}

// --- Admin handlers ---

// Enable handles POST /api/v1/gateways/{gateway}/enable.
func (h *GatewayHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, "enable", h.service.EnableGateway)
}

// Disable handles POST /api/v1/gateways/{gateway}/disable.
func (h *GatewayHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, "disable", h.service.DisableGateway)
}

// ForceOffline handles POST /api/v1/gateways/{gateway}/offline.
func (h *GatewayHandler) ForceOffline(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, "offline", h.service.ForceOffline)
}

// Restore handles POST /api/v1/gateways/{gateway}/restore.
func (h *GatewayHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, "restore", h.service.RestoreGateway)
}

// SetPriority handles PUT /api/v1/gateways/{gateway}/priority
// @Summary Change a gateway's selection priority
// @Tags admin
// @Accept json
// @Produce json
// @Param gateway path string true "stripe, square or tilled"
// @Param body body SetPriorityRequest true "New priority (1 is highest)"
// @Router /api/v1/gateways/{gateway}/priority [put]
func (h *GatewayHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	gw, ok := h.gatewayParam(w, r)
	if !ok {
		return
	}

	var req SetPriorityRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	h.apply(w, r, gw, "set_priority", func(ctx context.Context, t domain.GatewayType) error {
		return h.service.SetPriority(ctx, t, req.Priority)
	})
}

func (h *GatewayHandler) adminAction(w http.ResponseWriter, r *http.Request, action string,
	op func(context.Context, domain.GatewayType) error,
) {
	gw, ok := h.gatewayParam(w, r)
	if !ok {
		return
	}
	h.apply(w, r, gw, action, op)
}

// apply runs op and answers with the gateway's updated status.
func (h *GatewayHandler) apply(w http.ResponseWriter, r *http.Request, gw domain.GatewayType, action string,
	op func(context.Context, domain.GatewayType) error,
) {
	ctx := r.Context()
	if err := op(ctx, gw); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	logger.FromContext(ctx).InfoContext(ctx, "gateway admin action",
		slog.String("action", action),
		slog.String("gateway", gw.String()),
		slog.String("operator", middleware.UserIDFromContext(ctx)),
	)

	for _, st := range h.service.GatewayStatuses() {
		if st.Gateway == gw {
			httputil.WriteData(w, http.StatusOK, st)
			return
		}
	}
	httputil.WriteData(w, http.StatusOK, manager.GatewayStatus{Gateway: gw})
}

func (h *GatewayHandler) gatewayParam(w http.ResponseWriter, r *http.Request) (domain.GatewayType, bool) {
	raw := chi.URLParam(r, "gateway")
	gw, err := domain.ParseGatewayType(raw)
	if err != nil {
		httputil.WriteError(w, r, apperrors.NotFound("gateway", raw), h.logger)
		return "", false
	}
	return gw, true
}
