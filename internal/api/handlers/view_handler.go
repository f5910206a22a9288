package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/api/jsonrpcx"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/tracker"
	"github.com/danghamo/groupwatch/pkg/logger"
)

// Controller is the session as the view server drives it
type Controller interface {
	View() *tracker.View
	SetSharing(ctx context.Context, on bool) error
	SetRangeRadius(ctx context.Context, meters int) error
	SetRefreshInterval(ctx context.Context, seconds int) error
	DismissAlert(ctx context.Context, key string) error
	RetryPosition(ctx context.Context) error
	Delete(ctx context.Context) error
}

// SharingRequest is the body of POST /sharing
type SharingRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// RadiusRequest is the body of POST /radius
type RadiusRequest struct {
	Meters int `json:"meters" validate:"required,gt=0"`
}

// IntervalRequest is the body of POST /interval
type IntervalRequest struct {
	Seconds int `json:"seconds" validate:"required,gt=0"`
}

// DismissRequest is the body of POST /alerts/dismiss
type DismissRequest struct {
	Key string `json:"key" validate:"required"`
}

// ViewHandler serves the session view and its actions
type ViewHandler struct {
	logger     *logger.Logger
	controller Controller
	validate   *validator.Validate
}

// NewViewHandler creates a view handler
func NewViewHandler(log *logger.Logger, controller Controller) *ViewHandler {
	return &ViewHandler{
		logger:     log.WithComponent("view-handler"),
		controller: controller,
		validate:   validator.New(),
	}
}

// HandleState handles GET /state
func (h *ViewHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	jsonrpcx.Success(w, h.controller.View())
}

// HandleSharing handles POST /sharing
func (h *ViewHandler) HandleSharing(w http.ResponseWriter, r *http.Request) {
	var req SharingRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, h.controller.SetSharing(r.Context(), *req.Enabled))
}

// HandleRadius handles POST /radius
func (h *ViewHandler) HandleRadius(w http.ResponseWriter, r *http.Request) {
	var req RadiusRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, h.controller.SetRangeRadius(r.Context(), req.Meters))
}

// HandleInterval handles POST /interval
func (h *ViewHandler) HandleInterval(w http.ResponseWriter, r *http.Request) {
	var req IntervalRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, h.controller.SetRefreshInterval(r.Context(), req.Seconds))
}

// HandleDismiss handles POST /alerts/dismiss
func (h *ViewHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	var req DismissRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, h.controller.DismissAlert(r.Context(), req.Key))
}

// HandleRetry handles POST /position/retry
func (h *ViewHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.controller.RetryPosition(r.Context()))
}

// HandleDelete handles DELETE /group
func (h *ViewHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.controller.Delete(r.Context())
	if err != nil {
		h.logger.Warn("Group deletion failed", zap.Error(err))
		h.fail(w, err)
		return
	}
	jsonrpcx.Success(w, map[string]bool{"deleted": true})
}

func (h *ViewHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		jsonrpcx.Fail(w, http.StatusBadRequest, jsonrpcx.ParseError, "Invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		jsonrpcx.Fail(w, http.StatusBadRequest, jsonrpcx.InvalidParams, err.Error())
		return false
	}
	return true
}

// respond writes the current view on success
func (h *ViewHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonrpcx.Success(w, h.controller.View())
}

func (h *ViewHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case shared.HasCode(err, shared.ErrCodeInvalidInput):
		jsonrpcx.Fail(w, http.StatusBadRequest, jsonrpcx.InvalidParams, err.Error())
	case shared.HasCode(err, shared.ErrCodeDeleteFailed):
		jsonrpcx.Fail(w, http.StatusBadGateway, jsonrpcx.ActionFailed, shared.UserMessage(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		jsonrpcx.Fail(w, http.StatusServiceUnavailable, jsonrpcx.ActionFailed, "Session is not running")
	default:
		h.logger.Error("Action failed", zap.Error(err))
		jsonrpcx.Fail(w, http.StatusInternalServerError, jsonrpcx.InternalError, "Internal server error")
	}
}
