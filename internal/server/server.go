// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dealerdesk/internal/common/config"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/models"
	"dealerdesk/internal/orchestrator"
)

// ChatService handles one customer message end to end.
type ChatService interface {
	HandleMessage(ctx context.Context, sessionID, text string) (orchestrator.Result, error)
}

// LeadStore is the slice of the lead repository the API uses.
type LeadStore interface {
	Save(ctx context.Context, sessionID string, lead models.Lead) (string, error)
	List(ctx context.Context, status models.LeadStatus, limit int) ([]models.Lead, error)
}

// BookingStore persists test drives and service requests.
type BookingStore interface {
	CreateTestDrive(ctx context.Context, td models.TestDrive) (string, error)
	CreateServiceRequest(ctx context.Context, sr models.ServiceRequest) (string, error)
	GetTestDrive(ctx context.Context, id string) (*models.TestDrive, error)
	ListTestDrives(ctx context.Context, limit int) ([]models.TestDrive, error)
	ListServiceRequests(ctx context.Context, limit int) ([]models.ServiceRequest, error)
}

// BookingNotifier fans booking events out to staff channels.
type BookingNotifier interface {
	TestDriveBooked(td models.TestDrive)
	ServiceRequested(sr models.ServiceRequest)
}

// CatalogReader serves the current inventory snapshot.
type CatalogReader interface {
	Snapshot() []models.CarListing
}

// CarSearcher runs free-text inventory queries.
type CarSearcher interface {
	Search(message string, catalog []models.CarListing) []models.CarListing
}

// SessionReader exposes session snapshots for the stats endpoint.
type SessionReader interface {
	Get(ctx context.Context, id string) (*models.Session, error)
}

// Server is the HTTP front of the chat service. Thin by design:
// handlers decode JSON, call the core packages and encode the result.
type Server struct {
	chat     ChatService
	leads    LeadStore
	bookings BookingStore
	notifier BookingNotifier
	catalog  CatalogReader
	searcher CarSearcher
	sessions SessionReader
	log      logger.Logger
}

func New(chat ChatService, leads LeadStore, bookings BookingStore, notifier BookingNotifier,
	catalog CatalogReader, searcher CarSearcher, sessions SessionReader, log logger.Logger) *Server {
	return &Server{
		chat:     chat,
		leads:    leads,
		bookings: bookings,
		notifier: notifier,
		catalog:  catalog,
		searcher: searcher,
		sessions: sessions,
		log:      log,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/chat", s.handleChat)
	r.Get("/stats/{session}", s.handleStats)

	r.Get("/cars", s.handleListCars)
	r.Post("/cars/search", s.handleSearchCars)

	r.Post("/leads", s.handleCreateLead)
	r.Get("/leads", s.handleListLeads)

	r.Post("/test-drives", s.handleCreateTestDrive)
	r.Get("/test-drives", s.handleListTestDrives)
	r.Get("/test-drives/{id}", s.handleGetTestDrive)
	r.Post("/service-requests", s.handleCreateServiceRequest)
	r.Get("/service-requests", s.handleListServiceRequests)

	return r
}

// HTTPServer wraps the router in an http.Server with the configured
// timeouts.
func (s *Server) HTTPServer(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
}
