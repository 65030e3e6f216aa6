package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	boardapi "github.com/agriexport/dispatchboard/api/board"
	"github.com/agriexport/dispatchboard/config"
	"github.com/agriexport/dispatchboard/core/board"
	"github.com/agriexport/dispatchboard/core/catalog"
	"github.com/agriexport/dispatchboard/core/dispatch"
	"github.com/agriexport/dispatchboard/core/events"
	coremetrics "github.com/agriexport/dispatchboard/core/metrics"
	coremon "github.com/agriexport/dispatchboard/core/monitoring"
	"github.com/agriexport/dispatchboard/infra/logger"
	"github.com/agriexport/dispatchboard/infra/metrics"
	"github.com/agriexport/dispatchboard/infra/monitoring"
	"github.com/agriexport/dispatchboard/infra/mqtt"
	"github.com/agriexport/dispatchboard/internal/eventbus"
)

const shutdownTimeout = 5 * time.Second

// Service wires the board, its notifier and the HTTP surfaces.
type Service struct {
	Board      *board.Board
	Catalog    *catalog.MemoryStore
	Controller *dispatch.Controller
	Bus        *eventbus.Bus[events.Event]

	cfg      *config.Config
	notifier dispatch.Notifier
	sink     coremetrics.MetricsSink
	handler  http.Handler
	log      logger.Logger
}

// New creates a Service from the configuration. The catalog is loaded from
// the seed file; without an MQTT broker notices go to an in-memory notifier.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	units, vehicles, err := catalog.LoadSeed(cfg.Catalog.SeedPath)
	if err != nil {
		return nil, fmt.Errorf("catalog seed: %w", err)
	}
	store := catalog.NewMemoryStore(units, vehicles)

	notifier, err := NewNotifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	bus := eventbus.New[events.Event]()
	ctrl, err := dispatch.NewController(notifier, cfg.Dispatch, logger.New("dispatch"), bus)
	if err != nil {
		return nil, fmt.Errorf("dispatch controller: %w", err)
	}
	logs, err := cfg.Logging.Open()
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	ctrl.SetLogStore(logs)

	b, err := board.New(store, ctrl, cfg.DefaultMode(), logger.New("board"), bus)
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	logg.Infof("catalog loaded: %d demand units, %d vehicles", len(units), len(vehicles))
	return &Service{
		Board:      b,
		Catalog:    store,
		Controller: ctrl,
		Bus:        bus,
		cfg:        cfg,
		notifier:   notifier,
		sink:       sink,
		handler:    boardapi.NewRouter(b, ctrl, cfg.HTTP.Token, logger.New("api")),
		log:        logg,
	}, nil
}

// NewNotifier returns the MQTT notifier, or the in-memory one in dry-run mode.
func NewNotifier(cfg *config.Config) (dispatch.Notifier, error) {
	if cfg.DryRun() {
		return mqtt.NewMockNotifier(), nil
	}
	return mqtt.NewPahoNotifier(cfg.MQTT)
}

// Handler returns the board API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run serves the API, the metrics endpoint and the event collector until
// ctx is canceled or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		s.log.Infof("board API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(ctx, addr) })
	}
	done := metrics.StartEventCollector(ctx, s.Bus, s.sink)
	g.Go(func() error {
		<-done
		return nil
	})
	return g.Wait()
}

// Close resolves the in-flight attempt and releases every resource.
func (s *Service) Close() error {
	err := s.Controller.Close()
	if p, ok := s.notifier.(*mqtt.PahoNotifier); ok {
		p.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.Bus.Close()
	coremon.Flush(2 * time.Second)
	return err
}
