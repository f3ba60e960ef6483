package coach

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dealcraft/replycache/cache"
	"github.com/dealcraft/replycache/observe"
	"github.com/dealcraft/replycache/resilience"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testConfig is DefaultConfig with no resilience patterns, so model errors
// surface on the first attempt.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Resilience = resilience.Config{}
	return cfg
}

func newTestService(t *testing.T, model Model, cfg Config, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(model, cfg, opts...)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestNewService_Errors(t *testing.T) {
	if _, err := NewService(nil, DefaultConfig()); !errors.Is(err, ErrNilModel) {
		t.Errorf("nil model error = %v, want ErrNilModel", err)
	}

	cfg := DefaultConfig()
	cfg.Analysis.MaxSize = 0
	_, err := NewService(&fakeModel{}, cfg)
	if !errors.Is(err, cache.ErrInvalidConfig) {
		t.Errorf("invalid config error = %v, want cache.ErrInvalidConfig", err)
	}
	if err != nil && !strings.Contains(err.Error(), "analysis store") {
		t.Errorf("error %q should name the analysis store", err)
	}
}

func TestService_ReplyCachesNormalizedMessage(t *testing.T) {
	model := &fakeModel{}
	svc := newTestService(t, model, testConfig())
	ctx := context.Background()

	first, err := svc.Reply(ctx, ChatRequest{Mode: "training", Message: "Hello World", Difficulty: 3})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	second, err := svc.Reply(ctx, ChatRequest{Mode: "training", Message: "  hello world  ", Difficulty: 3})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}

	if first != second {
		t.Errorf("replies differ: %q vs %q", first, second)
	}
	if got := model.replies.Load(); got != 1 {
		t.Errorf("model called %d times, want 1", got)
	}
	stats := svc.Stats().Chat
	if stats.Hits != 1 || stats.Misses != 1 || stats.HitRate != "50.0%" {
		t.Errorf("chat stats = %+v", stats)
	}
}

func TestService_ReplyKeyDiscriminators(t *testing.T) {
	model := &fakeModel{}
	svc := newTestService(t, model, testConfig())
	ctx := context.Background()

	reqs := []ChatRequest{
		{Mode: "training", Message: "hi", Difficulty: 1},
		{Mode: "training", Message: "hi", Difficulty: 2},
		{Mode: "roleplay", Message: "hi", Difficulty: 1},
		{Mode: "training", Message: "hi", Difficulty: 1, Scenario: "car-sale"},
	}
	for _, req := range reqs {
		if _, err := svc.Reply(ctx, req); err != nil {
			t.Fatalf("Reply(%+v) error = %v", req, err)
		}
	}
	if got := model.replies.Load(); got != int64(len(reqs)) {
		t.Errorf("model called %d times, want %d", got, len(reqs))
	}
}

func TestService_ReplyValidation(t *testing.T) {
	model := &fakeModel{}
	svc := newTestService(t, model, testConfig())

	tests := []struct {
		name string
		req  ChatRequest
		want error
	}{
		{"missing mode", ChatRequest{Message: "hi"}, ErrMissingMode},
		{"blank message", ChatRequest{Mode: "training", Message: "   "}, ErrEmptyMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Reply(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Reply() error = %v, want %v", err, tt.want)
			}
		})
	}
	if model.replies.Load() != 0 {
		t.Error("invalid requests must not reach the model")
	}
}

func TestService_ReplyErrorsAreNotCached(t *testing.T) {
	model := &fakeModel{}
	model.failNext(errModelDown)
	svc := newTestService(t, model, testConfig())
	ctx := context.Background()
	req := ChatRequest{Mode: "training", Message: "What is your best price?"}

	if _, err := svc.Reply(ctx, req); err != errModelDown {
		t.Fatalf("Reply() error = %v, want errModelDown unchanged", err)
	}
	if svc.Stats().Chat.Size != 0 {
		t.Fatal("a failed reply must not be stored")
	}

	reply, err := svc.Reply(ctx, req)
	if err != nil || reply == "" {
		t.Fatalf("Reply() after failure = %q, %v", reply, err)
	}
	if got := model.replies.Load(); got != 2 {
		t.Errorf("model called %d times, want 2", got)
	}
}

func TestService_EmptyReplyIsNotCached(t *testing.T) {
	model := &fakeModel{empty: true}
	svc := newTestService(t, model, testConfig())
	req := ChatRequest{Mode: "training", Message: "hello"}

	for i := 0; i < 2; i++ {
		if _, err := svc.Reply(context.Background(), req); !errors.Is(err, ErrEmptyReply) {
			t.Fatalf("Reply() error = %v, want ErrEmptyReply", err)
		}
	}
	if got := model.replies.Load(); got != 2 {
		t.Errorf("model called %d times, want 2", got)
	}
}

func TestService_ReplyExpires(t *testing.T) {
	clock := newTestClock()
	model := &fakeModel{}
	cfg := testConfig()
	svc := newTestService(t, model, cfg, WithClock(clock.Now))
	req := ChatRequest{Mode: "training", Message: "hello"}

	svc.Reply(context.Background(), req)
	clock.Advance(cfg.Chat.DefaultTTL - time.Second)
	svc.Reply(context.Background(), req)
	if got := model.replies.Load(); got != 1 {
		t.Fatalf("model called %d times before expiry, want 1", got)
	}

	clock.Advance(time.Second)
	svc.Reply(context.Background(), req)
	if got := model.replies.Load(); got != 2 {
		t.Errorf("model called %d times after expiry, want 2", got)
	}
}

func TestService_ReplyCoalescesConcurrentMisses(t *testing.T) {
	model := &fakeModel{started: make(chan struct{}), release: make(chan struct{})}
	svc := newTestService(t, model, testConfig())
	req := ChatRequest{Mode: "training", Message: "Can you do better?", Difficulty: 2}

	const callers = 10
	var wg sync.WaitGroup
	replies := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			replies[i], errs[i] = svc.Reply(context.Background(), req)
		}(i)
	}

	<-model.started
	time.Sleep(20 * time.Millisecond)
	close(model.release)
	wg.Wait()

	if got := model.replies.Load(); got != 1 {
		t.Errorf("model called %d times, want 1", got)
	}
	for i := range replies {
		if errs[i] != nil || replies[i] != replies[0] {
			t.Errorf("caller %d got %q, %v", i, replies[i], errs[i])
		}
	}
}

func TestService_Analyze(t *testing.T) {
	model := &fakeModel{}
	svc := newTestService(t, model, testConfig())
	ctx := context.Background()

	transcript := []cache.Message{
		{Role: "user", Content: "I'd like 10% off."},
		{Role: "assistant", Content: "I can do 5%."},
	}
	reordered := []cache.Message{transcript[1], transcript[0]}

	a1, err := svc.Analyze(ctx, AnalysisRequest{Messages: transcript, Difficulty: 2})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	a2, _ := svc.Analyze(ctx, AnalysisRequest{Messages: transcript, Difficulty: 2})
	if a1.Score != a2.Score || model.analyses.Load() != 1 {
		t.Errorf("identical transcript should be served from cache, calls = %d", model.analyses.Load())
	}

	if _, err := svc.Analyze(ctx, AnalysisRequest{Messages: reordered, Difficulty: 2}); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got := model.analyses.Load(); got != 2 {
		t.Errorf("reordered transcript should miss, calls = %d", got)
	}

	if _, err := svc.Analyze(ctx, AnalysisRequest{}); !errors.Is(err, ErrEmptyConversation) {
		t.Errorf("empty transcript error = %v, want ErrEmptyConversation", err)
	}

	stats := svc.Stats()
	if stats.Analysis.Size != 2 || stats.Chat.Size != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestService_RetriesTransientFailures(t *testing.T) {
	model := &fakeModel{}
	model.failNext(errModelDown, errModelDown)

	cfg := testConfig()
	cfg.Resilience.Retry = &resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	svc := newTestService(t, model, cfg)

	reply, err := svc.Reply(context.Background(), ChatRequest{Mode: "training", Message: "deal?"})
	if err != nil || reply == "" {
		t.Fatalf("Reply() = %q, %v", reply, err)
	}
	if got := model.replies.Load(); got != 3 {
		t.Errorf("model called %d times, want 3", got)
	}
	if svc.Stats().Chat.Size != 1 {
		t.Error("the eventual success should be cached")
	}
}

func TestService_EmptyReplyIsNotRetried(t *testing.T) {
	model := &fakeModel{empty: true}
	cfg := testConfig()
	cfg.Resilience.Retry = &resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	svc := newTestService(t, model, cfg)

	_, err := svc.Reply(context.Background(), ChatRequest{Mode: "training", Message: "deal?"})
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("Reply() error = %v, want ErrEmptyReply", err)
	}
	if resilience.IsPermanent(err) {
		t.Error("Reply() should return the bare ErrEmptyReply, not the permanent marker")
	}
	if got := model.replies.Load(); got != 1 {
		t.Errorf("model called %d times, want 1", got)
	}
	if svc.Stats().Chat.Size != 0 {
		t.Error("an empty reply should not be cached")
	}
}

func TestService_OpenCircuitStillServesCache(t *testing.T) {
	model := &fakeModel{}
	cfg := testConfig()
	cfg.Resilience.CircuitBreaker = &resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}
	svc := newTestService(t, model, cfg)
	ctx := context.Background()

	cached := ChatRequest{Mode: "training", Message: "opening offer"}
	want, err := svc.Reply(ctx, cached)
	if err != nil {
		t.Fatal(err)
	}

	model.failNext(errModelDown)
	if _, err := svc.Reply(ctx, ChatRequest{Mode: "training", Message: "counter"}); err != errModelDown {
		t.Fatalf("Reply() error = %v, want errModelDown", err)
	}

	_, err = svc.Reply(ctx, ChatRequest{Mode: "training", Message: "another"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Reply() error = %v, want ErrCircuitOpen", err)
	}
	if got := model.replies.Load(); got != 2 {
		t.Errorf("model called %d times, want 2", got)
	}

	got, err := svc.Reply(ctx, cached)
	if err != nil || got != want {
		t.Errorf("cached reply with open circuit = %q, %v; want %q", got, err, want)
	}
}

func TestService_HealthCheckers(t *testing.T) {
	names := func(svc *Service) []string {
		var out []string
		for _, c := range svc.HealthCheckers() {
			out = append(out, c.Name())
		}
		return out
	}

	plain := newTestService(t, &fakeModel{}, testConfig())
	if got := names(plain); len(got) != 2 || got[0] != "cache.chat" || got[1] != "cache.analysis" {
		t.Errorf("checkers without breaker = %v", got)
	}

	full := newTestService(t, &fakeModel{}, DefaultConfig())
	got := names(full)
	if len(got) != 3 || got[2] != "upstream" {
		t.Errorf("checkers with breaker = %v", got)
	}
	for _, c := range full.HealthCheckers() {
		if r := c.Check(context.Background()); r.Status.String() != "healthy" {
			t.Errorf("%s = %v on a fresh service", c.Name(), r.Status)
		}
	}
}

func TestService_Maintenance(t *testing.T) {
	clock := newTestClock()
	var logs bytes.Buffer
	logger := observe.NewLoggerWithWriter("debug", &logs)
	svc := newTestService(t, &fakeModel{}, testConfig(), WithClock(clock.Now), WithLogger(logger))
	ctx := context.Background()

	if _, err := svc.Maintenance(0); !errors.Is(err, cache.ErrInvalidInterval) {
		t.Errorf("Maintenance(0) error = %v, want ErrInvalidInterval", err)
	}

	svc.Reply(ctx, ChatRequest{Mode: "training", Message: "a"})
	svc.Reply(ctx, ChatRequest{Mode: "training", Message: "b"})
	svc.Analyze(ctx, AnalysisRequest{Messages: []cache.Message{{Role: "user", Content: "x"}}})

	j, err := svc.Maintenance(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if removed := j.Sweep(); removed != 0 {
		t.Errorf("Sweep() before expiry = %d, want 0", removed)
	}

	clock.Advance(testConfig().Chat.DefaultTTL)
	if removed := j.Sweep(); removed != 2 {
		t.Errorf("Sweep() = %d, want 2 expired chat replies", removed)
	}
	stats := svc.Stats()
	if stats.Chat.Size != 0 || stats.Chat.Expirations != 2 || stats.Analysis.Size != 1 {
		t.Errorf("stats after sweep = %+v", stats)
	}
	if !strings.Contains(logs.String(), `"msg":"expired entries swept"`) {
		t.Errorf("sweep was not logged: %s", logs.String())
	}
}

func TestService_ForgetAndPurge(t *testing.T) {
	model := &fakeModel{}
	svc := newTestService(t, model, testConfig())
	ctx := context.Background()
	req := ChatRequest{Mode: "training", Message: "hello"}

	svc.Reply(ctx, req)
	if err := svc.Forget(ChatRequest{Mode: "training", Message: " HELLO "}); err != nil {
		t.Fatal(err)
	}
	svc.Reply(ctx, req)
	if got := model.replies.Load(); got != 2 {
		t.Errorf("model called %d times after Forget, want 2", got)
	}

	svc.Analyze(ctx, AnalysisRequest{Messages: []cache.Message{{Role: "user", Content: "x"}}})
	svc.Purge(ctx)
	stats := svc.Stats()
	if stats.Chat.Size != 0 || stats.Analysis.Size != 0 {
		t.Errorf("sizes after Purge = %d, %d", stats.Chat.Size, stats.Analysis.Size)
	}
	if stats.Chat.Misses != 2 {
		t.Errorf("Purge must keep counters, chat misses = %d", stats.Chat.Misses)
	}
}

func TestService_Telemetry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	meter := mp.Meter("coach-test")
	computeMetrics, err := observe.NewComputeMetrics(meter)
	if err != nil {
		t.Fatal(err)
	}
	cacheMetrics, err := observe.NewCacheMetrics(meter)
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	mw := observe.NewMiddleware(observe.NewTracer(tp.Tracer("coach-test")), computeMetrics,
		observe.NewLoggerWithWriter("info", &logs))

	cfg := testConfig()
	cfg.ModelName = "gpt-test"
	svc := newTestService(t, &fakeModel{}, cfg, WithMiddleware(mw), WithRecorder(cacheMetrics))

	req := ChatRequest{Mode: "training", Message: "My secret budget is 50k"}
	svc.Reply(context.Background(), req)
	svc.Reply(context.Background(), req)

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "cache.compute.chat.reply" {
		t.Fatalf("spans = %d, want one cache.compute.chat.reply", len(spans))
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	if got := counter(rm, "cache.hits", "chat"); got != 1 {
		t.Errorf("cache.hits{chat} = %d, want 1", got)
	}
	if got := counter(rm, "cache.misses", "chat"); got != 1 {
		t.Errorf("cache.misses{chat} = %d, want 1", got)
	}
	if got := counter(rm, "cache.compute.total", "chat"); got != 1 {
		t.Errorf("cache.compute.total{chat} = %d, want 1", got)
	}

	out := logs.String()
	if !strings.Contains(out, `"cache.model":"gpt-test"`) {
		t.Errorf("compute log should carry the model name: %s", out)
	}
	if strings.Contains(out, "50k") {
		t.Errorf("trainee text leaked into logs: %s", out)
	}
}

func TestService_WithObserverNil(t *testing.T) {
	// A nil observer leaves the defaults in place.
	svc := newTestService(t, &fakeModel{}, testConfig(), WithObserver(nil))
	if _, err := svc.Reply(context.Background(), ChatRequest{Mode: "training", Message: "hi"}); err != nil {
		t.Errorf("Reply() error = %v", err)
	}
}

func counter(rm metricdata.ResourceMetrics, name, cacheName string) int64 {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return -1
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("cache.name")); ok && v.AsString() == cacheName {
					return dp.Value
				}
			}
		}
	}
	return 0
}
