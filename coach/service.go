package coach

import (
	"context"
	"time"

	"github.com/dealcraft/replycache/cache"
	"github.com/dealcraft/replycache/health"
	"github.com/dealcraft/replycache/observe"
	"github.com/dealcraft/replycache/resilience"
)

// Service answers chat turns and analyses, caching successful model results.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: Reply and Analyze pass ctx values to the model through the
//   executor. A model call shared by concurrent callers is not cancelled when
//   one of them leaves; the executor timeout bounds it.
// - Errors: model errors are returned unchanged and never cached.
type Service struct {
	model    Model
	config   Config
	chat     *cache.Coalescer[string]
	analysis *cache.Coalescer[Analysis]
	executor *resilience.Executor
	mw       *observe.Middleware
	logger   observe.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	observer observe.Observer
	mw       *observe.Middleware
	logger   observe.Logger
	recorder cache.Recorder
	executor *resilience.Executor
	now      func() time.Time
}

// WithObserver wires tracing, metrics and logging from obs. Explicit
// WithMiddleware, WithLogger and WithRecorder options take precedence.
func WithObserver(obs observe.Observer) Option {
	return func(o *serviceOptions) {
		o.observer = obs
	}
}

// WithMiddleware sets the middleware that wraps model calls.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(o *serviceOptions) {
		o.mw = mw
	}
}

// WithLogger sets the service logger.
func WithLogger(logger observe.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithRecorder sets the recorder both stores report hits and misses to.
func WithRecorder(r cache.Recorder) Option {
	return func(o *serviceOptions) {
		o.recorder = r
	}
}

// WithExecutor replaces the executor built from Config.Resilience.
func WithExecutor(e *resilience.Executor) Option {
	return func(o *serviceOptions) {
		o.executor = e
	}
}

// WithClock sets the clock both stores read expiry against.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		o.now = now
	}
}

// NewService creates a Service over model.
func NewService(model Model, cfg Config, opts ...Option) (*Service, error) {
	if model == nil {
		return nil, ErrNilModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.observer != nil {
		if o.mw == nil {
			mw, err := observe.MiddlewareFromObserver(o.observer)
			if err != nil {
				return nil, err
			}
			o.mw = mw
		}
		if o.recorder == nil {
			rec, err := observe.CacheMetricsFromObserver(o.observer)
			if err != nil {
				return nil, err
			}
			o.recorder = rec
		}
		if o.logger == nil {
			o.logger = o.observer.Logger()
		}
	}
	if o.mw == nil {
		o.mw = observe.NewMiddleware(nil, nil, o.logger)
	}
	if o.logger == nil {
		o.logger = o.mw.Logger()
	}
	if o.executor == nil {
		o.executor = resilience.NewExecutorFromConfig(cfg.Resilience)
	}

	storeOpts := func(name string) []cache.Option {
		so := []cache.Option{cache.WithName(name)}
		if o.recorder != nil {
			so = append(so, cache.WithRecorder(o.recorder))
		}
		if o.now != nil {
			so = append(so, cache.WithClock(o.now))
		}
		return so
	}

	chat, err := cache.NewStore[string](cfg.Chat, storeOpts(ChatStoreName)...)
	if err != nil {
		return nil, err
	}
	analysis, err := cache.NewStore[Analysis](cfg.Analysis, storeOpts(AnalysisStoreName)...)
	if err != nil {
		return nil, err
	}

	return &Service{
		model:    model,
		config:   cfg,
		chat:     cache.NewCoalescer(chat),
		analysis: cache.NewCoalescer(analysis),
		executor: o.executor,
		mw:       o.mw,
		logger:   o.logger,
	}, nil
}

// Reply returns the model's answer to req, from cache when the same
// normalized message was answered recently.
func (s *Service) Reply(ctx context.Context, req ChatRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	key, err := cache.ChatKey(req.keyInput())
	if err != nil {
		return "", err
	}

	meta := observe.CacheMeta{Name: ChatStoreName, Operation: "reply", Model: s.config.ModelName}
	produce := observe.WrapProducer[string](s.mw, meta, func(ctx context.Context) (string, error) {
		return resilience.Do(ctx, s.executor, func(ctx context.Context) (string, error) {
			reply, err := s.model.Reply(ctx, req)
			if err == nil && reply == "" {
				return "", resilience.Permanent(ErrEmptyReply)
			}
			return reply, err
		})
	})

	reply, err := s.chat.Do(ctx, key, produce, 0)
	if err != nil {
		s.logRejection(ctx, meta, err)
		return "", err
	}
	return reply, nil
}

// Analyze returns the model's analysis of the transcript in req, from cache
// when the identical transcript was analyzed recently.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error) {
	if err := req.Validate(); err != nil {
		return Analysis{}, err
	}
	key, err := cache.AnalysisKey(req.keyInput())
	if err != nil {
		return Analysis{}, err
	}

	meta := observe.CacheMeta{Name: AnalysisStoreName, Operation: "analyze", Model: s.config.ModelName}
	produce := observe.WrapProducer[Analysis](s.mw, meta, func(ctx context.Context) (Analysis, error) {
		return resilience.Do(ctx, s.executor, func(ctx context.Context) (Analysis, error) {
			return s.model.Analyze(ctx, req)
		})
	})

	analysis, err := s.analysis.Do(ctx, key, produce, 0)
	if err != nil {
		s.logRejection(ctx, meta, err)
		return Analysis{}, err
	}
	return analysis, nil
}

// logRejection notes calls the executor refused without reaching the model.
// Model failures are already logged by the middleware.
func (s *Service) logRejection(ctx context.Context, meta observe.CacheMeta, err error) {
	if !resilience.IsRejection(err) {
		return
	}
	s.logger.WithCache(meta).Warn(ctx, "model call rejected",
		observe.Field{Key: "reason", Value: err.Error()},
	)
}

// Forget drops the cached reply for req, e.g. after a trainee flags it.
func (s *Service) Forget(req ChatRequest) error {
	key, err := cache.ChatKey(req.keyInput())
	if err != nil {
		return err
	}
	s.chat.Store().Invalidate(key)
	return nil
}

// Purge empties both stores. Counters are kept.
func (s *Service) Purge(ctx context.Context) {
	s.chat.Store().Clear()
	s.analysis.Store().Clear()
	s.logger.Info(ctx, "caches purged")
}

// Maintenance returns a janitor that sweeps expired entries from both stores
// every interval. The caller runs it.
func (s *Service) Maintenance(interval time.Duration) (*cache.Janitor, error) {
	j, err := cache.NewJanitor(interval, s.chat.Store(), s.analysis.Store())
	if err != nil {
		return nil, err
	}
	return j.OnSweep(func(name string, removed int) {
		if removed == 0 {
			return
		}
		s.logger.WithCache(observe.CacheMeta{Name: name}).Debug(context.Background(), "expired entries swept",
			observe.Field{Key: "removed", Value: removed},
		)
	}), nil
}

// HealthCheckers returns a checker per store, plus one for the circuit
// breaker when the executor has one.
func (s *Service) HealthCheckers() []health.Checker {
	checkers := []health.Checker{
		health.NewStoreChecker(s.chat.Store(), s.config.Health),
		health.NewStoreChecker(s.analysis.Store(), s.config.Health),
	}
	if cb := s.executor.CircuitBreaker(); cb != nil {
		checkers = append(checkers, health.NewBreakerChecker("upstream", cb))
	}
	return checkers
}

// Stats returns a snapshot of both stores' counters.
func (s *Service) Stats() Stats {
	return Stats{
		Chat:     s.chat.Store().Stats(),
		Analysis: s.analysis.Store().Stats(),
	}
}

// Stats holds the counters of both stores.
type Stats struct {
	Chat     cache.Stats `json:"chat"`
	Analysis cache.Stats `json:"analysis"`
}
