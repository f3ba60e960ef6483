package coach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// fakeModel answers deterministically and counts calls. Queued errors are
// returned, one per call, before any successful answer.
type fakeModel struct {
	mu        sync.Mutex
	replyErrs []error
	empty     bool

	replies  atomic.Int64
	analyses atomic.Int64

	// When set, Reply signals started and waits for release.
	started chan struct{}
	release chan struct{}
}

func (m *fakeModel) failNext(errs ...error) {
	m.mu.Lock()
	m.replyErrs = append(m.replyErrs, errs...)
	m.mu.Unlock()
}

func (m *fakeModel) nextErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replyErrs) == 0 {
		return nil
	}
	err := m.replyErrs[0]
	m.replyErrs = m.replyErrs[1:]
	return err
}

func (m *fakeModel) Reply(ctx context.Context, req ChatRequest) (string, error) {
	n := m.replies.Add(1)
	if m.started != nil {
		if n == 1 {
			close(m.started)
		}
		select {
		case <-m.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := m.nextErr(); err != nil {
		return "", err
	}
	if m.empty {
		return "", nil
	}
	return fmt.Sprintf("reply #%d to %q at level %d", n, req.Message, req.Difficulty), nil
}

func (m *fakeModel) Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error) {
	n := m.analyses.Add(1)
	if err := m.nextErr(); err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Score:     int(n),
		Summary:   fmt.Sprintf("%d messages reviewed", len(req.Messages)),
		Strengths: []string{"anchored early"},
	}, nil
}

var errModelDown = errors.New("model unavailable")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
