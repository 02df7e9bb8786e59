package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"leadgen/logging"
	"leadgen/orchestrator"
	"leadgen/plan"
	"leadgen/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var ErrRunInProgress = errors.New("a campaign is already running")

// Runner executes campaign plans
type Runner interface {
	Run(ctx context.Context, p *plan.Plan) (*orchestrator.Report, error)
	Stage() orchestrator.Stage
	StorageOnline(ctx context.Context) bool
}

// Server exposes stored campaigns and starts new runs in the background.
// Only one run is active at a time.
type Server struct {
	runner  Runner
	store   repository.CampaignStore
	backend string
	logger  *zap.Logger

	// runs outlive the request that started them
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	last    *orchestrator.Report
	lastErr error
}

// NewServer creates a server. store may be nil when no backend is configured.
func NewServer(runner Runner, store repository.CampaignStore, backend string, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		runner:  runner,
		store:   store,
		backend: backend,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Handler returns the router with all endpoints registered
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/storage/status", s.storageStatus)
	r.Get("/stats", s.stats)

	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", s.listCampaigns)
		r.Post("/", s.startCampaign)
		r.Get("/current", s.currentRun)
		r.Get("/{id}/results.csv", s.campaignResults)
	})
	return r
}

// Start serves on port until ctx is cancelled, then waits for the active run
// to stop.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Shutdown()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Shutdown()
	s.logger.Info("API server stopped")
	return err
}

// Shutdown interrupts the active run and waits for it to record its status
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// tryStart launches p unless a run is already active
func (s *Server) tryStart(p *plan.Plan, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunInProgress
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := logging.WithRequestID(s.baseCtx, requestID)
		report, err := s.runner.Run(ctx, p)
		if err != nil {
			logging.FromContext(ctx, s.logger).Warn("Campaign run ended with error", zap.Error(err))
		}

		s.mu.Lock()
		s.running = false
		s.last = report
		s.lastErr = err
		s.mu.Unlock()
	}()
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.FromContext(ctx, s.logger).Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}
