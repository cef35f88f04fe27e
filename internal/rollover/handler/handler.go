package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"esgledger/internal/platform/metrics"
	"esgledger/internal/platform/middleware"
	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/httputil"
)

const dateLayout = "2006-01-02"

// Service defines the rollover operations exposed over HTTP.
type Service interface {
	Execute(ctx context.Context, req models.RolloverRequest) (*models.RolloverResult, error)
	Preview(ctx context.Context, req models.RolloverRequest) (*models.PreviewResult, error)
}

// Handler serves the rollover endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	metrics *metrics.Metrics
	timeout time.Duration
}

// New creates a rollover Handler. timeout bounds each request and should
// exceed the service's own rollover timeout.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Handler{
		logger:  logger,
		service: service,
		metrics: m,
		timeout: timeout,
	}
}

// Register adds the rollover routes to r in their own middleware group.
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
		gr.Post("/periods/{periodID}/rollover", h.handleRollover)
		gr.Post("/periods/{periodID}/rollover/preview", h.handlePreview)
	})
}

type targetRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=simplified extended"`
	Scope     string `json:"scope,omitempty" validate:"max=500"`
}

type optionsRequest struct {
	CopyStructure                  bool `json:"copy_structure"`
	CopyDisclosures                bool `json:"copy_disclosures"`
	CopyDataValues                 bool `json:"copy_data_values"`
	CopyAttachments                bool `json:"copy_attachments"`
	CarryForwardGapsAndAssumptions bool `json:"carry_forward_gaps_and_assumptions"`
	DueDateAdjustmentDays          int  `json:"due_date_adjustment_days" validate:"min=0,max=3650"`
}

type overrideRequest struct {
	DataType string `json:"data_type" validate:"required,max=100"`
	RuleType string `json:"rule_type" validate:"required,oneof=copy reset copy_as_draft"`
}

type mappingRequest struct {
	SourceCatalogCode string `json:"source_catalog_code" validate:"required,max=100"`
	TargetCatalogCode string `json:"target_catalog_code" validate:"required,max=100"`
}

// RolloverRequest is the body of both rollover endpoints. Omitted options
// fall back to structure, disclosures and data values.
type RolloverRequest struct {
	Target         targetRequest     `json:"target"`
	Options        *optionsRequest   `json:"options,omitempty"`
	RuleOverrides  []overrideRequest `json:"rule_overrides,omitempty" validate:"omitempty,dive"`
	ManualMappings []mappingRequest  `json:"manual_mappings,omitempty" validate:"omitempty,dive"`
}

func (req RolloverRequest) toDomain(sourceID id.PeriodID, actor id.UserID) (models.RolloverRequest, error) {
	start, err := time.Parse(dateLayout, req.Target.StartDate)
	if err != nil {
		return models.RolloverRequest{}, dErrors.New(dErrors.CodeBadRequest, "invalid start_date")
	}
	end, err := time.Parse(dateLayout, req.Target.EndDate)
	if err != nil {
		return models.RolloverRequest{}, dErrors.New(dErrors.CodeBadRequest, "invalid end_date")
	}

	out := models.RolloverRequest{
		SourcePeriodID: sourceID,
		Target: models.TargetPeriodSpec{
			Name:      req.Target.Name,
			StartDate: start,
			EndDate:   end,
			Mode:      req.Target.Mode,
			Scope:     req.Target.Scope,
		},
		Options:     models.DefaultOptions(),
		PerformedBy: actor,
	}
	if o := req.Options; o != nil {
		out.Options = models.RolloverOptions{
			CopyStructure:                  o.CopyStructure,
			CopyDisclosures:                o.CopyDisclosures,
			CopyDataValues:                 o.CopyDataValues,
			CopyAttachments:                o.CopyAttachments,
			CarryForwardGapsAndAssumptions: o.CarryForwardGapsAndAssumptions,
			DueDateAdjustmentDays:          o.DueDateAdjustmentDays,
		}
	}
	for _, o := range req.RuleOverrides {
		out.RuleOverrides = append(out.RuleOverrides, models.RolloverRuleOverride{
			DataType: o.DataType,
			RuleType: models.RuleType(o.RuleType),
		})
	}
	for _, m := range req.ManualMappings {
		out.ManualMappings = append(out.ManualMappings, models.ManualSectionMapping{
			SourceCatalogCode: m.SourceCatalogCode,
			TargetCatalogCode: m.TargetCatalogCode,
		})
	}
	return out, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (models.RolloverRequest, bool) {
	ctx := r.Context()
	sourceID, err := id.ParsePeriodID(chi.URLParam(r, "periodID"))
	if err != nil {
		httputil.WriteError(w, err)
		return models.RolloverRequest{}, false
	}
	var body RolloverRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.logger.WarnContext(ctx, "invalid rollover request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return models.RolloverRequest{}, false
	}
	req, err := body.toDomain(sourceID, middleware.GetActor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return models.RolloverRequest{}, false
	}
	return req, true
}

func (h *Handler) handleRollover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	result, err := h.service.Execute(ctx, req)
	if err != nil {
		h.logError(ctx, "rollover failed", err)
		httputil.WriteError(w, err)
		return
	}
	if result.InactiveOwnerWarnings == nil {
		result.InactiveOwnerWarnings = []models.InactiveOwnerWarning{}
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	preview, err := h.service.Preview(ctx, req)
	if err != nil {
		h.logError(ctx, "rollover preview failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, preview)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
}
