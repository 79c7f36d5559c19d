package decryptiondb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/zama-ai/decryptiondb/api"
	"github.com/zama-ai/decryptiondb/codec"
	"github.com/zama-ai/decryptiondb/store"
	"github.com/zama-ai/decryptiondb/waitcache"
	"github.com/zama-ai/decryptiondb/workerpool"
)

// recordBucket is the durable namespace every profile's records are kept
// under. A Service serves exactly one record kind per its Config, so one
// bucket name suffices.
const recordBucket store.Bucket = "records"

// hashKey shards the wait cache across its stripes; see waitcache.New.
func hashKey(k codec.Key) uint64 {
	return xxhash.Sum64(k[:])
}

// Service owns every long-lived collaborator the request pipeline needs and
// the HTTP listener that exposes it, mirroring how caddy's Context/App pair
// owns a provisioned module graph for the process lifetime.
type Service struct {
	cfg     Config
	log     *zap.Logger
	reg     *prometheus.Registry
	metrics *serviceMetrics

	store store.Store
	pool  *workerpool.Pool
	srv   *http.Server
	ln    net.Listener

	closers []func() error
}

// Addr returns the address the service is bound to. Only meaningful after
// NewService returns successfully.
func (s *Service) Addr() string {
	return s.ln.Addr().String()
}

// NewService builds a Service from cfg: opens the durable store, builds the
// wait cache and worker pool for the configured profile, mounts the HTTP
// routes, and wires metrics and logging. It does not start serving; call
// Run for that.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("decryptiondb: building logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := newServiceMetrics(reg)

	if cfg.GetSleepPeriodMS != 0 || cfg.GetRetryCount != 0 {
		log.Warn("get_sleep_period_ms and get_retry_count are deprecated and ignored",
			zap.Uint64("get_sleep_period_ms", cfg.GetSleepPeriodMS),
			zap.Uint64("get_retry_count", cfg.GetRetryCount))
	}

	if err := os.MkdirAll(cfg.DBPath, 0o700); err != nil {
		return nil, fmt.Errorf("decryptiondb: creating db directory: %w", err)
	}
	db, err := store.OpenBolt(filepath.Join(cfg.DBPath, "records.db"), recordBucket)
	if err != nil {
		return nil, fmt.Errorf("decryptiondb: opening store: %w", err)
	}

	s := &Service{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		metrics: metrics,
		store:   db,
		pool:    workerpool.New(cfg.WorkerPoolSize),
	}
	s.closers = append(s.closers, db.Close)

	router := api.NewRouter()
	if err := s.mountProfile(router); err != nil {
		_ = s.Close()
		return nil, err
	}
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("decryptiondb: binding %s: %w", cfg.ListenAddr, err)
	}
	s.ln = ln

	s.srv = &http.Server{
		Handler: router,
	}

	return s, nil
}

// mountProfile instantiates the generic request pipeline for whichever
// payload profile cfg.Profile names, resolving the generic type parameter
// with a startup-time branch rather than a per-request dispatch.
func (s *Service) mountProfile(r chi.Router) error {
	switch s.cfg.Profile {
	case "uint64-hex":
		mountTyped(r, s, codec.Uint64Profile)
	case "bool-base64":
		mountTyped(r, s, codec.BoolProfile)
	default:
		return fmt.Errorf("decryptiondb: unknown profile %q", s.cfg.Profile)
	}
	return nil
}

func mountTyped[P any](r chi.Router, s *Service, profile codec.Profile[P]) {
	cache := waitcache.New[codec.Key, codec.StoredRecord[P]](
		s.cfg.MaxExpectedOracleDelay(),
		hashKey,
		waitcache.WithMetrics[codec.Key, codec.StoredRecord[P]](waitCacheMetrics{m: s.metrics}),
	)
	s.closers = append(s.closers, func() error { cache.Close(); return nil })

	api.Mount(r, s.cfg.Record, api.Deps[P]{
		Store:       s.store,
		Bucket:      recordBucket,
		Cache:       cache,
		Pool:        s.pool,
		Profile:     profile,
		WaitTimeout: s.cfg.MaxExpectedOracleDelay(),
		Metrics:     requestMetricsAdapter{m: s.metrics},
		Logger:      s.log,
	})
}

type requestMetricsAdapter struct {
	m *serviceMetrics
}

func (a requestMetricsAdapter) Observe(method, path string, status int) {
	a.m.requestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
}

// Run starts the HTTP listener and blocks until ctx is cancelled, at which
// point it shuts the server down gracefully and releases every collaborator.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.Addr()))
		if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := s.srv.Shutdown(shutdownCtx)
		return multierr.Append(shutdownErr, s.Close())
	case err := <-errCh:
		return multierr.Append(err, s.Close())
	}
}

// Close releases every collaborator the Service opened, in reverse
// acquisition order, aggregating every failure with multierr rather than
// stopping at the first.
func (s *Service) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i]())
	}
	return err
}
