package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"esgledger/internal/gapstatus"
	"esgledger/internal/platform/metrics"
	"esgledger/internal/platform/middleware"
	"esgledger/internal/reporting/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/httputil"
)

// Service defines the gap-status operations exposed over HTTP.
type Service interface {
	Transition(ctx context.Context, req gapstatus.TransitionRequest) (*models.DataPoint, error)
	History(ctx context.Context, dataPointID id.DataPointID) ([]*models.GapStatusHistoryEntry, error)
}

// Handler serves the gap-status endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	metrics *metrics.Metrics
	timeout time.Duration
}

// New creates a gap-status Handler.
func New(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		metrics: m,
		timeout: 30 * time.Second,
	}
}

// Register adds the gap-status routes to r in their own middleware group.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Recovery(h.logger))
		gr.Use(middleware.RequestID)
		gr.Use(middleware.RequestTime)
		gr.Use(middleware.Logger(h.logger))
		gr.Use(middleware.Timeout(h.timeout))
		gr.Use(middleware.ContentTypeJSON)
		gr.Use(middleware.LatencyMiddleware(h.metrics))
		gr.Use(middleware.RequireActor(h.logger))
		gr.Post("/data-points/{dataPointID}/gap-status", h.handleTransition)
		gr.Get("/data-points/{dataPointID}/gap-status/history", h.handleHistory)
	})
}

type estimateRequest struct {
	EstimateType    string `json:"estimate_type" validate:"required,oneof=point range proxy extrapolated"`
	EstimateMethod  string `json:"estimate_method" validate:"required,max=500"`
	ConfidenceLevel string `json:"confidence_level" validate:"required,oneof=low medium high"`
}

// TransitionRequest is the body of POST /data-points/{id}/gap-status.
type TransitionRequest struct {
	ExpectedFrom string           `json:"expected_from" validate:"required,oneof=missing estimated provided"`
	Target       string           `json:"target_status" validate:"required,oneof=missing estimated provided"`
	Note         string           `json:"note" validate:"max=2000"`
	Value        string           `json:"value" validate:"max=10000"`
	EvidenceID   string           `json:"evidence_id,omitempty" validate:"omitempty,uuid"`
	Estimate     *estimateRequest `json:"estimate,omitempty" validate:"omitempty"`
}

func (req TransitionRequest) toDomain(dataPointID id.DataPointID, actor id.UserID) (gapstatus.TransitionRequest, error) {
	out := gapstatus.TransitionRequest{
		DataPointID:  dataPointID,
		ExpectedFrom: models.GapStatus(req.ExpectedFrom),
		Change: gapstatus.Change{
			Target: models.GapStatus(req.Target),
			Actor:  actor,
			Note:   req.Note,
			Value:  req.Value,
		},
	}
	if req.EvidenceID != "" {
		evidenceID, err := id.ParseEvidenceID(req.EvidenceID)
		if err != nil {
			return out, err
		}
		out.EvidenceID = &evidenceID
	}
	if req.Estimate != nil {
		out.Estimate = &gapstatus.EstimateFields{
			EstimateType:    models.EstimateType(req.Estimate.EstimateType),
			EstimateMethod:  req.Estimate.EstimateMethod,
			ConfidenceLevel: models.ConfidenceLevel(req.Estimate.ConfidenceLevel),
		}
	}
	return out, nil
}

// HistoryResponse lists transitions oldest first.
type HistoryResponse struct {
	DataPointID id.DataPointID                  `json:"data_point_id"`
	Entries     []*models.GapStatusHistoryEntry `json:"entries"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	dataPointID, err := id.ParseDataPointID(chi.URLParam(r, "dataPointID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var body TransitionRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.logger.WarnContext(ctx, "invalid gap status transition request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	req, err := body.toDomain(dataPointID, middleware.GetActor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	dp, err := h.service.Transition(ctx, req)
	if err != nil {
		h.logError(ctx, "gap status transition failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	dataPointID, err := id.ParseDataPointID(chi.URLParam(r, "dataPointID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.History(ctx, dataPointID)
	if err != nil {
		h.logError(ctx, "failed to list gap status history", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.GapStatusHistoryEntry{}
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{DataPointID: dataPointID, Entries: entries})
}

func (h *Handler) logError(ctx context.Context, msg, requestID string, err error) {
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
}
