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
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"esgledger/internal/gapstatus"
	"esgledger/internal/gapstatus/handler/mocks"
	"esgledger/internal/platform/middleware"
	"esgledger/internal/reporting/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/gapstatus-mocks.go -package=mocks Service
type GapStatusHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestGapStatusHandlerSuite(t *testing.T) {
	suite.Run(t, new(GapStatusHandlerSuite))
}

func (s *GapStatusHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger, nil).Register(s.router)
}

func (s *GapStatusHandlerSuite) do(method, path string, body any, actor string) *httptest.ResponseRecorder {
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), method, path, body), actor)
	return testutil.DoRequest(s.router, req)
}

func (s *GapStatusHandlerSuite) TestTransition() {
	dpID := id.NewDataPointID()
	s.service.EXPECT().Transition(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req gapstatus.TransitionRequest) (*models.DataPoint, error) {
			assert.Equal(s.T(), dpID, req.DataPointID)
			assert.Equal(s.T(), models.GapStatusMissing, req.ExpectedFrom)
			assert.Equal(s.T(), models.GapStatusEstimated, req.Target)
			assert.Equal(s.T(), id.UserID("analyst-7"), req.Actor)
			require.NotNil(s.T(), req.Estimate)
			assert.Equal(s.T(), models.ConfidenceLow, req.Estimate.ConfidenceLevel)
			return &models.DataPoint{ID: dpID, GapStatus: models.GapStatusEstimated}, nil
		})

	w := s.do(http.MethodPost, "/data-points/"+dpID.String()+"/gap-status", map[string]any{
		"expected_from": "missing",
		"target_status": "estimated",
		"estimate": map[string]string{
			"estimate_type":    "proxy",
			"estimate_method":  "sector benchmark",
			"confidence_level": "low",
		},
	}, "analyst-7")

	s.Equal(http.StatusOK, w.Code)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(dpID.String(), resp["id"])
	s.Equal("estimated", resp["gap_status"])
	s.NotEmpty(w.Header().Get(middleware.RequestIDHeader))
}

func (s *GapStatusHandlerSuite) TestTransitionRequiresActor() {
	w := s.do(http.MethodPost, "/data-points/"+id.NewDataPointID().String()+"/gap-status", map[string]any{
		"expected_from": "missing",
		"target_status": "provided",
		"value":         "12",
	}, "")
	testutil.AssertStatusAndError(s.T(), w, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

func (s *GapStatusHandlerSuite) TestTransitionRejectsInvalidBody() {
	path := "/data-points/" + id.NewDataPointID().String() + "/gap-status"

	w := s.do(http.MethodPost, path, map[string]any{"expected_from": "missing", "target_status": "done"}, "u-1")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "target_status")

	w = s.do(http.MethodPost, path, map[string]any{"expected_from": "missing", "target_status": "provided", "color": "red"}, "u-1")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/data-points/not-a-uuid/gap-status", map[string]any{"expected_from": "missing", "target_status": "provided"}, "u-1")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *GapStatusHandlerSuite) TestTransitionMapsDomainErrors() {
	cases := map[dErrors.Code]int{
		dErrors.CodeInvalidTransition: http.StatusUnprocessableEntity,
		dErrors.CodeValidation:        http.StatusUnprocessableEntity,
		dErrors.CodeConflict:          http.StatusConflict,
		dErrors.CodeNotFound:          http.StatusNotFound,
		dErrors.CodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		s.service.EXPECT().Transition(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(code, "nope"))
		w := s.do(http.MethodPost, "/data-points/"+id.NewDataPointID().String()+"/gap-status", map[string]any{
			"expected_from": "provided",
			"target_status": "missing",
			"note":          "restated",
		}, "u-1")
		s.Equal(status, w.Code, string(code))
	}
}

func (s *GapStatusHandlerSuite) TestHistory() {
	dpID := id.NewDataPointID()
	s.service.EXPECT().History(gomock.Any(), dpID).Return([]*models.GapStatusHistoryEntry{
		{DataPointID: dpID, From: models.GapStatusMissing, To: models.GapStatusProvided, ChangedBy: "u-1"},
	}, nil)

	w := s.do(http.MethodGet, "/data-points/"+dpID.String()+"/gap-status/history", nil, "u-1")
	s.Equal(http.StatusOK, w.Code)

	resp := testutil.UnmarshalResponse[HistoryResponse](s.T(), w)
	s.Equal(dpID, resp.DataPointID)
	s.Require().Len(resp.Entries, 1)
	s.Equal(models.GapStatusProvided, resp.Entries[0].To)
}

func (s *GapStatusHandlerSuite) TestHistoryEmptyListIsArray() {
	dpID := id.NewDataPointID()
	s.service.EXPECT().History(gomock.Any(), dpID).Return(nil, nil)

	w := s.do(http.MethodGet, "/data-points/"+dpID.String()+"/gap-status/history", nil, "u-1")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"entries":[]`)
}
