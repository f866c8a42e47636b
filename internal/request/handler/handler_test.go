package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bloodlink/internal/blood"
	"bloodlink/internal/request"
	"bloodlink/internal/request/handler/mocks"
	"bloodlink/internal/request/service"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/request-mocks.go -package=mocks Service
type RequestHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *RequestHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestRequestHandlerSuite(t *testing.T) {
	suite.Run(t, new(RequestHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger, nil, nil)
	return handler, mockService
}

func asActor(req *http.Request, actor id.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

func withPathID(req *http.Request, requestID uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", requestID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func sampleRequest(requester uuid.UUID) *request.Request {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &request.Request{
		ID:              uuid.New(),
		Requester:       requester,
		PatientName:     "Patient",
		Age:             42,
		BloodGroup:      blood.GroupONeg,
		Units:           2,
		HospitalName:    "Apollo",
		HospitalAddress: "12 Main St",
		Urgency:         blood.UrgencyCritical,
		Status:          request.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *RequestHandlerSuite) TestHandleCreate() {
	handler, mockService := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}
	created := sampleRequest(actor.ID)

	mockService.EXPECT().Create(gomock.Any(), actor, service.CreateInput{
		PatientName:     "Patient",
		Age:             42,
		BloodGroup:      "O-",
		Units:           2,
		HospitalName:    "Apollo",
		HospitalAddress: "12 Main St",
		Urgency:         "critical",
	}).Return(created, nil)

	body, err := json.Marshal(createRequestBody{
		PatientName:     "Patient",
		Age:             42,
		BloodGroup:      "O-",
		Units:           2,
		HospitalName:    "Apollo",
		HospitalAddress: "12 Main St",
		Urgency:         "critical",
	})
	require.NoError(s.T(), err)

	req := asActor(httptest.NewRequest(http.MethodPost, "/api/requests", bytes.NewReader(body)), actor)
	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code)
	var resp requestResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), created.ID.String(), resp.ID)
	assert.Equal(s.T(), "Pending", resp.Status)
	assert.Equal(s.T(), "O-", resp.BloodGroup)
	assert.Empty(s.T(), resp.FulfilledBy)
}

func (s *RequestHandlerSuite) TestHandleCreateInvalidBody() {
	handler, _ := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}

	req := asActor(httptest.NewRequest(http.MethodPost, "/api/requests", bytes.NewReader([]byte("{not json"))), actor)
	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *RequestHandlerSuite) TestHandleCreateHospitalDirected() {
	handler, mockService := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}
	hospitalID := uuid.New()
	created := sampleRequest(actor.ID)
	created.TargetHospital = uuid.NullUUID{UUID: hospitalID, Valid: true}

	mockService.EXPECT().Create(gomock.Any(), actor, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.Actor, in service.CreateInput) (*request.Request, error) {
			s.Equal(hospitalID, in.TargetHospital)
			return created, nil
		})

	body, err := json.Marshal(createRequestBody{
		PatientName:     "Patient",
		BloodGroup:      "O-",
		Units:           2,
		HospitalName:    "City General",
		HospitalAddress: "1 Hospital Rd",
		TargetHospital:  hospitalID.String(),
	})
	require.NoError(s.T(), err)

	req := asActor(httptest.NewRequest(http.MethodPost, "/api/requests/hospital", bytes.NewReader(body)), actor)
	w := httptest.NewRecorder()
	handler.handleCreateHospitalDirected(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code)
	var resp requestResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), hospitalID.String(), resp.TargetHospital)
}

func (s *RequestHandlerSuite) TestHandleCreateHospitalDirectedBadTarget() {
	handler, _ := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}

	body, _ := json.Marshal(createRequestBody{TargetHospital: "not-a-uuid"})
	req := asActor(httptest.NewRequest(http.MethodPost, "/api/requests/hospital", bytes.NewReader(body)), actor)
	w := httptest.NewRecorder()
	handler.handleCreateHospitalDirected(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *RequestHandlerSuite) TestHandleMatching() {
	handler, mockService := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleDonor}
	match := sampleRequest(uuid.New())

	mockService.EXPECT().Matching(gomock.Any(), actor).Return(&service.MatchingFeed{
		Count:      1,
		BloodGroup: blood.GroupONeg,
		Requests:   []*request.Request{match},
	}, nil)

	req := asActor(httptest.NewRequest(http.MethodGet, "/api/requests/matching", nil), actor)
	w := httptest.NewRecorder()
	handler.handleMatching(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp matchingResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), 1, resp.Count)
	assert.Equal(s.T(), "O-", resp.BloodGroup)
	require.Len(s.T(), resp.Requests, 1)
	assert.Equal(s.T(), match.ID.String(), resp.Requests[0].ID)
}

func (s *RequestHandlerSuite) TestHandleSchedule() {
	handler, mockService := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleDonor}
	scheduled := sampleRequest(uuid.New())
	scheduled.Status = request.StatusScheduled
	scheduled.FulfilledBy = uuid.NullUUID{UUID: actor.ID, Valid: true}
	scheduled.AppointmentSlot = request.AppointmentSlot{Date: "2025-06-10", Time: "10:00"}

	mockService.EXPECT().Schedule(gomock.Any(), actor, scheduled.ID, service.ScheduleInput{
		Date: "2025-06-10", Time: "10:00", Comments: "on my way",
	}).Return(scheduled, nil)

	body, _ := json.Marshal(scheduleBody{Date: "2025-06-10", Time: "10:00", Comments: "on my way"})
	req := asActor(httptest.NewRequest(http.MethodPut, "/api/requests/"+scheduled.ID.String()+"/schedule", bytes.NewReader(body)), actor)
	req = withPathID(req, scheduled.ID)
	w := httptest.NewRecorder()
	handler.handleSchedule(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp requestResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "Scheduled", resp.Status)
	require.NotNil(s.T(), resp.AppointmentSlot)
	assert.Equal(s.T(), "2025-06-10", resp.AppointmentSlot.Date)
	assert.Equal(s.T(), actor.ID.String(), resp.FulfilledBy)
}

func (s *RequestHandlerSuite) TestHandleScheduleDeferred() {
	handler, mockService := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleDonor}
	requestID := uuid.New()

	mockService.EXPECT().Schedule(gomock.Any(), actor, requestID, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeValidation, "last donation too recent, wait 20 more day(s)"))

	body, _ := json.Marshal(scheduleBody{Date: "2025-06-10", Time: "10:00"})
	req := asActor(httptest.NewRequest(http.MethodPut, "/api/requests/"+requestID.String()+"/schedule", bytes.NewReader(body)), actor)
	req = withPathID(req, requestID)
	w := httptest.NewRecorder()
	handler.handleSchedule(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	var resp map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "validation", resp["error"])
	assert.Contains(s.T(), resp["error_description"], "20 more day(s)")
}

func (s *RequestHandlerSuite) TestHandleUpdateStatus() {
	handler, mockService := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}
	fulfilled := sampleRequest(actor.ID)
	fulfilled.Status = request.StatusFulfilled

	mockService.EXPECT().UpdateStatus(gomock.Any(), actor, fulfilled.ID, request.StatusFulfilled, false).
		Return(fulfilled, nil)

	body, _ := json.Marshal(updateStatusBody{Status: "Fulfilled"})
	req := asActor(httptest.NewRequest(http.MethodPut, "/api/requests/"+fulfilled.ID.String()+"/status", bytes.NewReader(body)), actor)
	req = withPathID(req, fulfilled.ID)
	w := httptest.NewRecorder()
	handler.handleUpdateStatus(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *RequestHandlerSuite) TestHandleUpdateStatusRejectsUnknownStatus() {
	handler, _ := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}
	requestID := uuid.New()

	body, _ := json.Marshal(updateStatusBody{Status: "Completed"})
	req := asActor(httptest.NewRequest(http.MethodPut, "/api/requests/"+requestID.String()+"/status", bytes.NewReader(body)), actor)
	req = withPathID(req, requestID)
	w := httptest.NewRecorder()
	handler.handleUpdateStatus(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *RequestHandlerSuite) TestHandleUpdateStatusPreconditionFailed() {
	handler, mockService := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}
	requestID := uuid.New()

	mockService.EXPECT().UpdateStatus(gomock.Any(), actor, requestID, request.StatusCancelled, false).
		Return(nil, dErrors.New(dErrors.CodePreconditionFailed, "request is Fulfilled, cannot mark Cancelled"))

	body, _ := json.Marshal(updateStatusBody{Status: "Cancelled"})
	req := asActor(httptest.NewRequest(http.MethodPut, "/api/requests/"+requestID.String()+"/status", bytes.NewReader(body)), actor)
	req = withPathID(req, requestID)
	w := httptest.NewRecorder()
	handler.handleUpdateStatus(w, req)

	assert.Equal(s.T(), http.StatusPreconditionFailed, w.Code)
}

func (s *RequestHandlerSuite) TestHandleDelete() {
	handler, mockService := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}
	requestID := uuid.New()

	mockService.EXPECT().Delete(gomock.Any(), actor, requestID).Return(nil)

	req := asActor(httptest.NewRequest(http.MethodDelete, "/api/requests/"+requestID.String(), nil), actor)
	req = withPathID(req, requestID)
	w := httptest.NewRecorder()
	handler.handleDelete(w, req)

	assert.Equal(s.T(), http.StatusNoContent, w.Code)
}

func (s *RequestHandlerSuite) TestHandleGetInvalidID() {
	handler, _ := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}

	req := asActor(httptest.NewRequest(http.MethodGet, "/api/requests/not-a-uuid", nil), actor)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	handler.handleGet(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *RequestHandlerSuite) TestInternalErrorHidesDetails() {
	handler, mockService := newTestHandler(s.T())
	actor := id.Actor{ID: uuid.New(), Role: id.RoleUser}

	mockService.EXPECT().ListMine(gomock.Any(), actor).
		Return(nil, dErrors.New(dErrors.CodeInternal, "pq: connection refused"))

	req := asActor(httptest.NewRequest(http.MethodGet, "/api/requests/mine", nil), actor)
	w := httptest.NewRecorder()
	handler.handleListMine(w, req)

	assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "internal_error", resp["error"])
	assert.Empty(s.T(), resp["error_description"])
}
