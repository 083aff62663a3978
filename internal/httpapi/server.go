package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/ledger"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/service"
)

type Dependencies struct {
	Logger *slog.Logger
	Addr   string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration

	Registry         *service.Registry
	Ledger           *ledger.Ledger
	ScanService      *service.ScanService
	HeartbeatService *service.HeartbeatService
	SnapshotService  *service.SnapshotService

	// Now defaults to time.Now; stats use it when as_of is absent.
	Now func() time.Time
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	registry   *service.Registry
	ledger     *ledger.Ledger
	scans      *service.ScanService
	heartbeats *service.HeartbeatService
	snapshots  *service.SnapshotService
	now        func() time.Time
}

func NewServer(d Dependencies) *Server {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	reqTimeout := d.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = 15 * time.Second
	}

	s := &Server{
		logger:     d.Logger,
		registry:   d.Registry,
		ledger:     d.Ledger,
		scans:      d.ScanService,
		heartbeats: d.HeartbeatService,
		snapshots:  d.SnapshotService,
		now:        now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		// Long-lived stream; no request timeout.
		r.Get("/events/stream", s.handleEventStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(reqTimeout))

			r.Post("/heartbeat", s.handleHeartbeat)
			r.Post("/scans", s.handleScan)

			r.Post("/events", s.handleRecordEvent)
			r.Get("/events", s.handleSearchEvents)

			r.Get("/users", s.handleListUsers)
			r.Get("/users/{userID}/next-direction", s.handleNextDirection)

			r.Get("/zones", s.handleListZones)
			r.Get("/zones/{zoneID}/occupancy", s.handleZoneOccupancy)

			r.Get("/access-points", s.handleListAccessPoints)
			r.Get("/stats", s.handleStats)

			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
			r.Post("/snapshots", s.handleSaveSnapshot)
		})
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       d.ReadTimeout,
		WriteTimeout:      d.WriteTimeout,
		IdleTimeout:       d.IdleTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start blocks serving HTTP until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
