package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/kalifa4y/swppr/internal/aggregator"
	"github.com/kalifa4y/swppr/internal/estimate"
	"github.com/kalifa4y/swppr/internal/exchange"
	"github.com/kalifa4y/swppr/internal/flow"
	"github.com/kalifa4y/swppr/internal/infra"
)

// refreshPollInterval paces the background status refresh driving the
// websocket stream.
const refreshPollInterval = 5 * time.Second

// Server exposes the application over HTTP: catalog, estimates, rate
// search, order lifecycle, history and screen navigation, plus a
// websocket stream of status updates.
type Server struct {
	agg      aggregator.Client
	engine   *estimate.Engine
	exchange *exchange.Service
	flow     *flow.Controller
	upgrader websocket.Upgrader

	estMu  sync.Mutex
	latest *estimate.Result

	httpServer *http.Server
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewServer wires the HTTP surface. The estimate engine is owned by the
// server: input updates arrive over HTTP and results are cached for the
// snapshot endpoint.
func NewServer(cfg *infra.Config, agg aggregator.Client, exch *exchange.Service, fc *flow.Controller) *Server {
	s := &Server{
		agg:      agg,
		exchange: exch,
		flow:     fc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local client app, not a public origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.engine = estimate.NewEngine(agg,
		time.Duration(cfg.Estimate.DebounceMS)*time.Millisecond,
		s.storeEstimate)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/coins", s.handleCoins)

		r.Route("/swap", func(r chi.Router) {
			r.Post("/inputs", s.handleSwapInputs)
			r.Get("/estimate", s.handleEstimate)
			r.Post("/rates", s.handleFindRates)
			r.Post("/offers/{index}/select", s.handleSelectOffer)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.handleCreateOrder)
			r.Post("/{id}/refresh", s.handleRefreshOrder)
			r.Get("/{id}/qr", s.handleOrderQR)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Delete("/", s.handleClearHistory)
			r.Post("/export", s.handleExportHistory)
			r.Post("/import", s.handleImportHistory)
			r.Post("/{id}/open", s.handleOpenRecord)
		})

		r.Get("/screen", s.handleScreen)
		r.Post("/screen", s.handleNavigate)
	})

	r.Get("/ws/status", s.handleStatusStream)
	return r
}

// SeedInputs primes the estimate engine with an initial swap pair, so
// the first screen has an estimate without any user input.
func (s *Server) SeedInputs(from, to string, amount float64) {
	s.engine.SetInputs(from, to, amount)
}

// Start begins serving and launches the background status refresher.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.refreshLoop(ctx)

	slog.Info("HTTP server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down and waits for background work to finish.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.engine.Close()
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// refreshLoop periodically re-polls non-terminal orders so websocket
// subscribers see progress without the client asking.
func (s *Server) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(refreshPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exchange.RefreshAll(ctx)
		}
	}
}

func (s *Server) storeEstimate(r estimate.Result) {
	s.estMu.Lock()
	if r.Empty() {
		s.latest = nil
	} else {
		s.latest = &r
	}
	s.estMu.Unlock()
}

func (s *Server) latestEstimate() *estimate.Result {
	s.estMu.Lock()
	defer s.estMu.Unlock()
	return s.latest
}
