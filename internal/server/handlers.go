// internal/server/handlers.go
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/models"
)

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID    string              `json:"sessionId"`
	Reply        string              `json:"reply"`
	MatchedTopic string              `json:"matchedTopic,omitempty"`
	MatchedCars  []models.CarListing `json:"matchedCars,omitempty"`
	Branch       string              `json:"branch"`
	Degraded     bool                `json:"degraded,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	result, err := s.chat.HandleMessage(r.Context(), req.SessionID, req.Message)
	if apperrors.Is(err, apperrors.ErrInvalidInput) {
		s.writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("chat turn failed", map[string]interface{}{
			"session_id": req.SessionID,
		})
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		SessionID:    req.SessionID,
		Reply:        result.Reply,
		MatchedTopic: result.MatchedTopic,
		MatchedCars:  result.MatchedCars,
		Branch:       string(result.Branch),
		Degraded:     result.Degraded,
	})
}

type statsResponse struct {
	SessionID        string `json:"sessionId"`
	TotalTurns       int    `json:"totalTurns"`
	CustomerMessages int    `json:"customerMessages"`
	LeadQualified    bool   `json:"leadQualified"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")

	sess, err := s.sessions.Get(r.Context(), id)
	if apperrors.Is(err, apperrors.ErrSessionNotFound) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	customer := 0
	for _, turn := range sess.Turns {
		if turn.Role == models.RoleUser {
			customer++
		}
	}
	s.writeJSON(w, http.StatusOK, statsResponse{
		SessionID:        sess.ID,
		TotalTurns:       len(sess.Turns),
		CustomerMessages: customer,
		LeadQualified:    sess.Lead.Qualified(),
		CreatedAt:        sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:        sess.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *Server) handleListCars(w http.ResponseWriter, _ *http.Request) {
	cars := s.catalog.Snapshot()
	available := make([]models.CarListing, 0, len(cars))
	for _, c := range cars {
		if c.Available {
			available = append(available, c)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cars":  available,
		"count": len(available),
	})
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearchCars(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	found := s.searcher.Search(req.Query, s.catalog.Snapshot())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cars":  found,
		"count": len(found),
	})
}

type createLeadRequest struct {
	SessionID string         `json:"sessionId"`
	Name      string         `json:"name"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email"`
	Budget    *models.Budget `json:"budget,omitempty"`
	Interest  []string       `json:"interest,omitempty"`
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Phone == "" && req.Email == "" {
		s.writeError(w, http.StatusBadRequest, "phone or email is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	id, err := s.leads.Save(r.Context(), req.SessionID, models.Lead{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Budget:   req.Budget,
		Interest: req.Interest,
		Status:   models.LeadStatusNew,
	})
	if err != nil {
		s.log.WithError(err).Error("lead save failed", nil)
		s.writeError(w, http.StatusInternalServerError, "could not save lead")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	status := models.LeadStatus(r.URL.Query().Get("status"))
	leads, err := s.leads.List(r.Context(), status, 100)
	if err != nil {
		s.log.WithError(err).Error("lead list failed", nil)
		s.writeError(w, http.StatusInternalServerError, "could not list leads")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"count": len(leads),
	})
}

func (s *Server) handleCreateTestDrive(w http.ResponseWriter, r *http.Request) {
	var td models.TestDrive
	if err := json.NewDecoder(r.Body).Decode(&td); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := s.bookings.CreateTestDrive(r.Context(), td)
	if apperrors.Is(err, apperrors.ErrInvalidInput) {
		s.writeError(w, http.StatusBadRequest, "customerName, phone and carModel are required")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("test drive create failed", nil)
		s.writeError(w, http.StatusInternalServerError, "could not book test drive")
		return
	}

	td.ID = id
	if s.notifier != nil {
		s.notifier.TestDriveBooked(td)
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": string(models.BookingStatusPending)})
}

func (s *Server) handleGetTestDrive(w http.ResponseWriter, r *http.Request) {
	td, err := s.bookings.GetTestDrive(r.Context(), chi.URLParam(r, "id"))
	if apperrors.Is(err, apperrors.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "test drive not found")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("test drive fetch failed", nil)
		s.writeError(w, http.StatusInternalServerError, "could not fetch test drive")
		return
	}
	s.writeJSON(w, http.StatusOK, td)
}

func (s *Server) handleListTestDrives(w http.ResponseWriter, r *http.Request) {
	items, err := s.bookings.ListTestDrives(r.Context(), 100)
	if err != nil {
		s.log.WithError(err).Error("test drive list failed", nil)
		s.writeError(w, http.StatusInternalServerError, "could not list test drives")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"testDrives": items,
		"count":      len(items),
	})
}

func (s *Server) handleListServiceRequests(w http.ResponseWriter, r *http.Request) {
	items, err := s.bookings.ListServiceRequests(r.Context(), 100)
	if err != nil {
		s.log.WithError(err).Error("service request list failed", nil)
		s.writeError(w, http.StatusInternalServerError, "could not list service requests")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"serviceRequests": items,
		"count":           len(items),
	})
}

func (s *Server) handleCreateServiceRequest(w http.ResponseWriter, r *http.Request) {
	var sr models.ServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&sr); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := s.bookings.CreateServiceRequest(r.Context(), sr)
	if apperrors.Is(err, apperrors.ErrInvalidInput) {
		s.writeError(w, http.StatusBadRequest, "customerName, phone and serviceType are required")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("service request create failed", nil)
		s.writeError(w, http.StatusInternalServerError, "could not create service request")
		return
	}

	sr.ID = id
	if s.notifier != nil {
		s.notifier.ServiceRequested(sr)
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": string(models.BookingStatusPending)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "dealerdesk"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode response", nil)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
