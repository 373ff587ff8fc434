package testutils

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Renderer is a scriptable ports.Renderer that records every request.
// Without Fn it wraps the source in an <svg> element.
type Renderer struct {
	Fn func(ctx context.Context, req ports.RenderRequest) (string, error)

	mu    sync.Mutex
	calls []ports.RenderRequest
}

func (r *Renderer) Render(ctx context.Context, req ports.RenderRequest) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	fn := r.Fn
	r.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return SVG(req.Source), nil
}

// Calls returns a copy of the recorded requests.
func (r *Renderer) Calls() []ports.RenderRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.RenderRequest(nil), r.calls...)
}

// CallCount returns the number of recorded requests.
func (r *Renderer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// SVG is the markup the default Renderer produces for source.
func SVG(source string) string {
	return fmt.Sprintf("<svg data-source=%q></svg>", source)
}

// Events collects lifecycle events for assertions.
type Events struct {
	mu          sync.Mutex
	transitions []domain.TransitionEvent
	renders     []domain.RenderEvent
	progress    []int
	exports     []domain.ExportEvent
}

// Hooks returns hooks appending to the collector.
func (e *Events) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, ev *domain.TransitionEvent) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.transitions = append(e.transitions, *ev)
		},
		OnRenderDone: func(_ context.Context, ev *domain.RenderEvent) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.renders = append(e.renders, *ev)
		},
		OnExportProgress: func(_ context.Context, ev *domain.ExportEvent) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.progress = append(e.progress, ev.Progress)
		},
		OnExportDone: func(_ context.Context, ev *domain.ExportEvent) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.exports = append(e.exports, *ev)
		},
	}
}

// Transitions returns the recorded transition events.
func (e *Events) Transitions() []domain.TransitionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.TransitionEvent(nil), e.transitions...)
}

// Statuses returns the target status of every recorded transition.
func (e *Events) Statuses() []domain.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Status, 0, len(e.transitions))
	for _, t := range e.transitions {
		out = append(out, t.To)
	}
	return out
}

// Renders returns the recorded render completions.
func (e *Events) Renders() []domain.RenderEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.RenderEvent(nil), e.renders...)
}

// Progress returns the recorded export progress values.
func (e *Events) Progress() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.progress...)
}

// Exports returns the recorded export completions.
func (e *Events) Exports() []domain.ExportEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.ExportEvent(nil), e.exports...)
}

// Surface is an in-memory ports.Surface.
type Surface struct {
	Content string
}

func (s *Surface) Markup() string { return s.Content }
func (s *Surface) Path() string   { return "" }

// Stage mounts surfaces in memory and counts mounts and unmounts.
type Stage struct {
	MountErr error

	mu        sync.Mutex
	mounted   int
	unmounted int
}

func (s *Stage) Mount(_ context.Context, markup string) (ports.Surface, error) {
	if s.MountErr != nil {
		return nil, s.MountErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted++
	return &Surface{Content: markup}, nil
}

func (s *Stage) Unmount(ports.Surface) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmounted++
	return nil
}

// Balanced reports whether every mounted surface was unmounted.
func (s *Stage) Balanced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted == s.unmounted
}

// Mounted returns the number of Mount calls that succeeded.
func (s *Stage) Mounted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// MockRasterizer is a testify mock of ports.Rasterizer.
type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) Rasterize(ctx context.Context, s ports.Surface, opts ports.RasterOptions) ([]byte, error) {
	args := m.Called(ctx, s, opts)
	var payload []byte
	if p := args.Get(0); p != nil {
		payload = p.([]byte)
	}
	return payload, args.Error(1)
}

// MockSink is a testify mock of ports.Sink.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Deliver(ctx context.Context, d domain.Download) error {
	return m.Called(ctx, d).Error(0)
}

// RequireConsistent fails the test when the session violates a status invariant.
func RequireConsistent(t *testing.T, s domain.Session) {
	t.Helper()
	require.NoError(t, s.Check(), "session %s is inconsistent", s.Status)
}
