package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	reporting "esgledger/internal/reporting/models"
	"esgledger/internal/rollover/handler/mocks"
	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/rollover-mocks.go -package=mocks Service
type RolloverHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestRolloverHandlerSuite(t *testing.T) {
	suite.Run(t, new(RolloverHandlerSuite))
}

func (s *RolloverHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger, nil, 0).Register(s.router)
}

func (s *RolloverHandlerSuite) post(path string, body any, actor string) *httptest.ResponseRecorder {
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, path, body), actor)
	return testutil.DoRequest(s.router, req)
}

func validBody() map[string]any {
	return map[string]any{
		"target": map[string]any{
			"name":       "FY2025",
			"start_date": "2025-01-01",
			"end_date":   "2025-12-31",
		},
	}
}

func (s *RolloverHandlerSuite) TestRolloverDefaultsOptions() {
	sourceID := id.NewPeriodID()
	targetID := id.NewPeriodID()
	s.service.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req models.RolloverRequest) (*models.RolloverResult, error) {
			assert.Equal(s.T(), sourceID, req.SourcePeriodID)
			assert.Equal(s.T(), id.UserID("admin-1"), req.PerformedBy)
			assert.Equal(s.T(), models.DefaultOptions(), req.Options)
			assert.Equal(s.T(), "FY2025", req.Target.Name)
			assert.Equal(s.T(), "2025-12-31", req.Target.EndDate.Format(dateLayout))
			return &models.RolloverResult{
				Success:        true,
				TargetPeriod:   &reporting.ReportingPeriod{ID: targetID, Name: "FY2025"},
				AuditLog:       &models.RolloverAuditLog{TargetPeriodID: targetID},
				Reconciliation: &models.RolloverReconciliation{MappedItems: []models.MappedItem{}, UnmappedItems: []models.UnmappedItem{}},
			}, nil
		})

	w := s.post("/periods/"+sourceID.String()+"/rollover", validBody(), "admin-1")
	s.Equal(http.StatusCreated, w.Code)

	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(true, resp["success"])
	s.Equal([]any{}, resp["inactive_owner_warnings"])
}

func (s *RolloverHandlerSuite) TestRolloverPassesOptionsOverridesAndMappings() {
	body := validBody()
	body["options"] = map[string]any{
		"copy_structure":           true,
		"copy_disclosures":         true,
		"due_date_adjustment_days": 30,
	}
	body["rule_overrides"] = []map[string]string{{"data_type": "kpi", "rule_type": "reset"}}
	body["manual_mappings"] = []map[string]string{{"source_catalog_code": "OLD-1", "target_catalog_code": "NEW-1"}}

	s.service.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req models.RolloverRequest) (*models.RolloverResult, error) {
			assert.Equal(s.T(), models.RolloverOptions{CopyStructure: true, CopyDisclosures: true, DueDateAdjustmentDays: 30}, req.Options)
			assert.Equal(s.T(), []models.RolloverRuleOverride{{DataType: "kpi", RuleType: models.RuleReset}}, req.RuleOverrides)
			assert.Equal(s.T(), []models.ManualSectionMapping{{SourceCatalogCode: "OLD-1", TargetCatalogCode: "NEW-1"}}, req.ManualMappings)
			return &models.RolloverResult{Success: true}, nil
		})

	w := s.post("/periods/"+id.NewPeriodID().String()+"/rollover", body, "admin-1")
	s.Equal(http.StatusCreated, w.Code)
}

func (s *RolloverHandlerSuite) TestRolloverRejectsInvalidBody() {
	path := "/periods/" + id.NewPeriodID().String() + "/rollover"

	bad := validBody()
	bad["target"].(map[string]any)["start_date"] = "01/01/2025"
	w := s.post(path, bad, "admin-1")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "start_date")

	bad = validBody()
	bad["rule_overrides"] = []map[string]string{{"data_type": "kpi", "rule_type": "clone"}}
	w = s.post(path, bad, "admin-1")
	s.Equal(http.StatusBadRequest, w.Code)

	bad = validBody()
	bad["options"] = map[string]any{"due_date_adjustment_days": -3}
	w = s.post(path, bad, "admin-1")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.post("/periods/not-a-uuid/rollover", validBody(), "admin-1")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RolloverHandlerSuite) TestRolloverRequiresActor() {
	w := s.post("/periods/"+id.NewPeriodID().String()+"/rollover", validBody(), "")
	testutil.AssertStatusAndError(s.T(), w, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

func (s *RolloverHandlerSuite) TestRolloverMapsDomainErrors() {
	cases := map[dErrors.Code]int{
		dErrors.CodeValidation: http.StatusUnprocessableEntity,
		dErrors.CodeNotFound:   http.StatusNotFound,
		dErrors.CodeConflict:   http.StatusConflict,
		dErrors.CodeTimeout:    http.StatusGatewayTimeout,
		dErrors.CodeInternal:   http.StatusInternalServerError,
	}
	for code, status := range cases {
		s.service.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(code, "nope"))
		w := s.post("/periods/"+id.NewPeriodID().String()+"/rollover", validBody(), "admin-1")
		s.Equal(status, w.Code, string(code))
	}
}

func (s *RolloverHandlerSuite) TestPreview() {
	sourceID := id.NewPeriodID()
	s.service.EXPECT().Preview(gomock.Any(), gomock.Any()).Return(&models.PreviewResult{
		SourcePeriodID: sourceID,
		Reconciliation: &models.RolloverReconciliation{MappedCount: 2, UnmappedCount: 1},
		Rules:          []models.ResolvedRule{{DataType: "kpi", RuleType: models.RuleCopy, Source: models.RuleSourceDefault}},
	}, nil)

	w := s.post("/periods/"+sourceID.String()+"/rollover/preview", validBody(), "admin-1")
	s.Equal(http.StatusOK, w.Code)

	resp := testutil.UnmarshalResponse[models.PreviewResult](s.T(), w)
	s.Equal(sourceID, resp.SourcePeriodID)
	s.Equal(2, resp.Reconciliation.MappedCount)
	s.Require().Len(resp.Rules, 1)
}
