// internal/server/handlers_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/models"
	"dealerdesk/internal/orchestrator"
)

type stubChat struct {
	result orchestrator.Result
	err    error
	gotID  string
	gotMsg string
}

func (s *stubChat) HandleMessage(_ context.Context, sessionID, text string) (orchestrator.Result, error) {
	s.gotID = sessionID
	s.gotMsg = text
	if s.err != nil {
		return orchestrator.Result{}, s.err
	}
	return s.result, nil
}

type stubLeads struct {
	saved []models.Lead
	list  []models.Lead
}

func (s *stubLeads) Save(_ context.Context, _ string, lead models.Lead) (string, error) {
	s.saved = append(s.saved, lead)
	return "lead-1", nil
}

func (s *stubLeads) List(_ context.Context, _ models.LeadStatus, _ int) ([]models.Lead, error) {
	return s.list, nil
}

type stubBookings struct {
	testDrives []models.TestDrive
	requests   []models.ServiceRequest
}

func (s *stubBookings) CreateTestDrive(_ context.Context, td models.TestDrive) (string, error) {
	if td.CustomerName == "" || td.Phone == "" || td.CarModel == "" {
		return "", apperrors.ErrInvalidInput
	}
	s.testDrives = append(s.testDrives, td)
	return "td-1", nil
}

func (s *stubBookings) ListTestDrives(context.Context, int) ([]models.TestDrive, error) {
	return s.testDrives, nil
}

func (s *stubBookings) ListServiceRequests(context.Context, int) ([]models.ServiceRequest, error) {
	return s.requests, nil
}

func (s *stubBookings) GetTestDrive(_ context.Context, id string) (*models.TestDrive, error) {
	for i := range s.testDrives {
		if s.testDrives[i].ID == id {
			return &s.testDrives[i], nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubBookings) CreateServiceRequest(_ context.Context, sr models.ServiceRequest) (string, error) {
	if sr.CustomerName == "" || sr.Phone == "" || sr.ServiceType == "" {
		return "", apperrors.ErrInvalidInput
	}
	s.requests = append(s.requests, sr)
	return "sr-1", nil
}

type stubNotifier struct {
	testDrives int
	services   int
}

func (s *stubNotifier) TestDriveBooked(models.TestDrive) { s.testDrives++ }
func (s *stubNotifier) ServiceRequested(models.ServiceRequest) { s.services++ }

type stubCatalog struct{ cars []models.CarListing }

func (s stubCatalog) Snapshot() []models.CarListing { return s.cars }

type stubSearcher struct{ found []models.CarListing }

func (s stubSearcher) Search(string, []models.CarListing) []models.CarListing { return s.found }

type stubSessions struct {
	sess *models.Session
	err  error
}

func (s stubSessions) Get(context.Context, string) (*models.Session, error) {
	return s.sess, s.err
}

func newTestServer(t *testing.T, chat *stubChat, leads *stubLeads, bookings *stubBookings,
	notifier *stubNotifier, catalog stubCatalog, searcher stubSearcher, sessions stubSessions) http.Handler {
	t.Helper()
	return New(chat, leads, bookings, notifier, catalog, searcher, sessions, logger.NewTestLogger(t)).Router()
}

func defaultServer(t *testing.T) (http.Handler, *stubChat, *stubLeads, *stubBookings, *stubNotifier) {
	t.Helper()
	chat := &stubChat{result: orchestrator.Result{Reply: "hello", Branch: orchestrator.BranchCompletion}}
	leads := &stubLeads{}
	bookings := &stubBookings{}
	notifier := &stubNotifier{}
	catalog := stubCatalog{cars: []models.CarListing{
		{ID: "car-1", Make: "Toyota", Model: "Corolla", Year: 2020, Price: 3500000, Available: true},
		{ID: "car-2", Make: "Honda", Model: "Civic", Year: 2019, Price: 3200000, Available: false},
	}}
	searcher := stubSearcher{found: []models.CarListing{{ID: "car-1"}}}
	sessions := stubSessions{sess: &models.Session{
		ID: "s-1",
		Turns: []models.Turn{
			{Role: models.RoleUser, Text: "hi"},
			{Role: models.RoleAssistant, Text: "hello"},
		},
		Lead: models.Lead{Name: "Ali", Phone: "03001234567"},
	}}
	return newTestServer(t, chat, leads, bookings, notifier, catalog, searcher, sessions), chat, leads, bookings, notifier
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	handler, chat, _, _, _ := defaultServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/chat", chatRequest{SessionID: "s-1", Message: "hi"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello", resp.Reply)
	assert.Equal(t, "s-1", resp.SessionID)
	assert.Equal(t, "completion", resp.Branch)
	assert.Equal(t, "hi", chat.gotMsg)
}

func TestHandleChat_GeneratesSessionID(t *testing.T) {
	handler, chat, _, _, _ := defaultServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/chat", chatRequest{Message: "hi"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, chat.gotID)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chat.gotID, resp.SessionID)
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	chat := &stubChat{err: apperrors.ErrInvalidInput}
	handler := newTestServer(t, chat, &stubLeads{}, &stubBookings{}, &stubNotifier{},
		stubCatalog{}, stubSearcher{}, stubSessions{})

	rec := doJSON(t, handler, http.MethodPost, "/chat", chatRequest{SessionID: "s-1", Message: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStats(t *testing.T) {
	handler, _, _, _, _ := defaultServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/stats/s-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalTurns)
	assert.Equal(t, 1, resp.CustomerMessages)
	assert.True(t, resp.LeadQualified)
}

func TestHandleStats_NotFound(t *testing.T) {
	handler := newTestServer(t, &stubChat{}, &stubLeads{}, &stubBookings{}, &stubNotifier{},
		stubCatalog{}, stubSearcher{}, stubSessions{err: apperrors.ErrSessionNotFound})

	rec := doJSON(t, handler, http.MethodGet, "/stats/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListCars_FiltersUnavailable(t *testing.T) {
	handler, _, _, _, _ := defaultServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/cars", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Cars  []models.CarListing `json:"cars"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "car-1", resp.Cars[0].ID)
}

func TestHandleSearchCars(t *testing.T) {
	handler, _, _, _, _ := defaultServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/cars/search", searchRequest{Query: "toyota"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/cars/search", searchRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateLead(t *testing.T) {
	handler, _, leads, _, _ := defaultServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/leads", createLeadRequest{
		Name:  "Ali",
		Phone: "03001234567",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, leads.saved, 1)
	assert.Equal(t, "Ali", leads.saved[0].Name)
}

func TestHandleCreateLead_RequiresContact(t *testing.T) {
	handler, _, _, _, _ := defaultServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/leads", createLeadRequest{Name: "Ali"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateTestDrive_Notifies(t *testing.T) {
	handler, _, _, bookings, notifier := defaultServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/test-drives", models.TestDrive{
		CustomerName:  "Ali",
		Phone:         "03001234567",
		CarModel:      "Toyota Corolla",
		PreferredDate: "2026-09-01",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, bookings.testDrives, 1)
	assert.Equal(t, 1, notifier.testDrives)
}

func TestHandleCreateTestDrive_MissingFields(t *testing.T) {
	handler, _, _, _, notifier := defaultServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/test-drives", models.TestDrive{CustomerName: "Ali"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, notifier.testDrives)
}

func TestHandleListTestDrives(t *testing.T) {
	handler, _, _, bookings, _ := defaultServer(t)
	bookings.testDrives = append(bookings.testDrives, models.TestDrive{
		ID:           "td-1",
		CustomerName: "Ali",
		Phone:        "03001234567",
		CarModel:     "Toyota Corolla",
	})

	rec := doJSON(t, handler, http.MethodGet, "/test-drives", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		TestDrives []models.TestDrive `json:"testDrives"`
		Count      int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "td-1", resp.TestDrives[0].ID)
}

func TestHandleListServiceRequests(t *testing.T) {
	handler, _, _, bookings, _ := defaultServer(t)
	bookings.requests = append(bookings.requests, models.ServiceRequest{
		ID:           "sr-1",
		CustomerName: "Sara",
		Phone:        "03007654321",
		ServiceType:  "oil change",
	})

	rec := doJSON(t, handler, http.MethodGet, "/service-requests", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ServiceRequests []models.ServiceRequest `json:"serviceRequests"`
		Count           int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "oil change", resp.ServiceRequests[0].ServiceType)
}

func TestHandleGetTestDrive(t *testing.T) {
	handler, _, _, bookings, _ := defaultServer(t)
	bookings.testDrives = append(bookings.testDrives, models.TestDrive{
		ID:           "td-1",
		CustomerName: "Ali",
		Phone:        "03001234567",
		CarModel:     "Toyota Corolla",
	})

	rec := doJSON(t, handler, http.MethodGet, "/test-drives/td-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Toyota Corolla")

	rec = doJSON(t, handler, http.MethodGet, "/test-drives/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateServiceRequest(t *testing.T) {
	handler, _, _, bookings, notifier := defaultServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/service-requests", models.ServiceRequest{
		CustomerName: "Sara",
		Phone:        "03007654321",
		ServiceType:  "oil change",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, bookings.requests, 1)
	assert.Equal(t, 1, notifier.services)
}

func TestHandleHealth(t *testing.T) {
	handler, _, _, _, _ := defaultServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
