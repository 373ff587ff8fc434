package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/diagramflow/internal/logging"
	"github.com/aretw0/diagramflow/internal/validator"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
)

const (
	// DefaultDebounce is the quiet period after the last change before rendering.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultRenderTimeout bounds a single render call.
	DefaultRenderTimeout = 10 * time.Second
)

// Coordinator debounces document changes, validates them and drives the renderer.
//
// Every Schedule, ForceRender and Cancel bumps a request counter. A render captures
// the counter when it starts and its result is committed only if the counter is
// unchanged when it finishes; otherwise the result is discarded.
//
// Machine transitions made by a run happen under the coordinator lock, so
// transition hooks must not call back into the coordinator.
type Coordinator struct {
	machine  *Machine
	renderer ports.Renderer
	delay    time.Duration
	timeout  time.Duration
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	timer         *time.Timer
	pending       bool
	pendingSource string
	seq           uint64
	closed        bool
	cancels       map[uint64]context.CancelFunc
	wg            sync.WaitGroup
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithRenderTimeout bounds each render call. Non-positive values keep the default.
func WithRenderTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCoordinatorHooks registers render observers.
func WithCoordinatorHooks(h domain.LifecycleHooks) CoordinatorOption {
	return func(c *Coordinator) {
		c.hooks = h
	}
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// NewCoordinator creates a coordinator driving machine with renderer.
func NewCoordinator(machine *Machine, renderer ports.Renderer, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		machine:  machine,
		renderer: renderer,
		delay:    DefaultDebounce,
		timeout:  DefaultRenderTimeout,
		logger:   logging.NewNop(),
		now:      time.Now,
		cancels:  make(map[uint64]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schedule restarts the debounce timer for source. Blank source only cancels
// whatever was pending.
func (c *Coordinator) Schedule(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.seq++
	c.stopTimerLocked()
	if strings.TrimSpace(source) == "" {
		return
	}
	c.arm(c.seq, source)
}

// arm starts the timer for request id. Caller holds c.mu.
func (c *Coordinator) arm(id uint64, source string) {
	c.pending = true
	c.pendingSource = source
	c.timer = time.AfterFunc(c.delay, func() {
		c.fire(id)
	})
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = false
	c.pendingSource = ""
}

func (c *Coordinator) fire(id uint64) {
	c.mu.Lock()
	if c.closed || !c.pending || id != c.seq {
		c.mu.Unlock()
		return
	}
	source := c.pendingSource
	c.pending = false
	c.pendingSource = ""
	c.timer = nil
	c.wg.Add(1)
	c.mu.Unlock()

	c.run(id, source, false)
}

// Pending reports whether a debounced render is waiting for its timer.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Flush runs a pending debounced render immediately and waits for all renders in flight.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	if c.closed || !c.pending {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	id, source := c.seq, c.pendingSource
	c.stopTimerLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	c.run(id, source, false)
	c.wg.Wait()
}

// ForceRender re-renders the current source at once, skipping the debounce.
// It does nothing while exporting, with an empty document, or before any artifact
// exists, and reports whether a render was started.
func (c *Coordinator) ForceRender() bool {
	snap := c.machine.Snapshot()
	if isExporting(snap) || strings.TrimSpace(snap.Source) == "" || snap.Artifact.Empty() {
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.seq++
	id := c.seq
	c.stopTimerLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(id, snap.Source, true)
	return true
}

// Cancel drops any pending render and invalidates renders in flight.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.stopTimerLocked()
	c.cancelInflightLocked()
}

// Close cancels all work and waits for in-flight renders to return.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.seq++
	c.stopTimerLocked()
	c.cancelInflightLocked()
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Coordinator) cancelInflightLocked() {
	for id, cancel := range c.cancels {
		cancel()
		delete(c.cancels, id)
	}
}

// run validates and renders source for request id. The caller has already
// registered the run with c.wg.
func (c *Coordinator) run(id uint64, source string, forced bool) {
	defer c.wg.Done()

	c.mu.Lock()
	if c.closed || id != c.seq {
		c.mu.Unlock()
		return
	}
	if !forced && isExporting(c.machine.Snapshot()) {
		// Exports own the session until they finish; try again after another quiet period.
		c.arm(id, source)
		c.mu.Unlock()
		return
	}

	result := validator.Validate(source)
	if !result.Valid {
		c.machine.ReportError(result.ErrorMessage)
		c.machine.ClearArtifact()
		c.mu.Unlock()
		c.logger.Debug("Validation failed", "request_id", id, "error", result.ErrorMessage)
		return
	}

	c.machine.ClearError()
	snap, began := c.machine.BeginRendering()
	if !began {
		if forced {
			c.machine.SettleTheme()
		}
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.cancels[id] = cancel
	c.mu.Unlock()
	defer cancel()

	start := c.now()
	if c.hooks.OnRenderStart != nil {
		c.hooks.OnRenderStart(ctx, &domain.RenderEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventRenderStart},
			RequestID: id,
			Forced:    forced,
		})
	}

	req := ports.RenderRequest{
		ID:     fmt.Sprintf("mermaid-%d-%d", start.UnixNano(), id),
		Source: source,
		Theme:  snap.Theme,
	}
	markup, err := c.renderer.Render(ctx, req)

	var rerender uint64
	var rerenderSource string

	c.mu.Lock()
	delete(c.cancels, id)
	stale := c.closed || id != c.seq
	if !stale {
		if err != nil {
			c.machine.ReportError((&domain.RenderError{RequestID: id, Err: err}).Error())
			c.machine.ClearArtifact()
		} else {
			c.machine.SetArtifact(&domain.Artifact{
				RequestID:  id,
				RenderID:   req.ID,
				Markup:     markup,
				Theme:      req.Theme,
				RenderedAt: c.now(),
			})
			c.machine.MarkRendered(true)

			// The theme changed while this render was running and no artifact existed
			// to force-render from; redraw in the current theme.
			if cur := c.machine.Snapshot(); cur.Theme != req.Theme && !isExporting(cur) &&
				strings.TrimSpace(cur.Source) != "" {
				c.seq++
				rerender = c.seq
				rerenderSource = cur.Source
				c.stopTimerLocked()
				c.wg.Add(1)
			}
		}
	}
	c.mu.Unlock()

	duration := c.now().Sub(start)
	switch {
	case stale:
		c.logger.Debug("Discarded stale render", "request_id", id, "duration", duration)
	case err != nil:
		c.logger.Warn("Render failed", "request_id", id, "render_id", req.ID, "err", err)
	default:
		c.logger.Debug("Rendered", "request_id", id, "render_id", req.ID, "duration", duration)
	}

	if c.hooks.OnRenderDone != nil {
		c.hooks.OnRenderDone(context.Background(), &domain.RenderEvent{
			EventBase: domain.EventBase{Timestamp: c.now(), Type: domain.EventRenderDone},
			RequestID: id,
			Forced:    forced,
			Stale:     stale,
			Duration:  duration,
			Err:       err,
		})
	}

	if rerender != 0 {
		c.logger.Debug("Theme changed during render", "request_id", id, "theme", req.Theme)
		go c.run(rerender, rerenderSource, true)
	}
}

func isExporting(s domain.Session) bool {
	return s.Status == domain.StatusExporting ||
		(s.Status == domain.StatusThemeChange && s.Prior == domain.StatusExporting)
}
