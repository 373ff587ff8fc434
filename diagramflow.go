package diagramflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/diagramflow/internal/logging"
	"github.com/aretw0/diagramflow/internal/runtime"
	"github.com/aretw0/diagramflow/internal/validator"
	"github.com/aretw0/diagramflow/pkg/adapters/file"
	"github.com/aretw0/diagramflow/pkg/adapters/memory"
	"github.com/aretw0/diagramflow/pkg/adapters/process"
	"github.com/aretw0/diagramflow/pkg/adapters/scratch"
	"github.com/aretw0/diagramflow/pkg/adapters/vector"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/persistence"
	"github.com/aretw0/diagramflow/pkg/ports"
)

// Studio is the high-level entry point of the library.
// It wires the state machine, the render coordinator and the export pipeline
// behind the operations an editor needs.
type Studio struct {
	machine     *runtime.Machine
	coordinator *runtime.Coordinator
	exporter    *runtime.Exporter
	gateway     *persistence.Gateway

	store         ports.KVStore
	renderer      ports.Renderer
	rasterizer    ports.Rasterizer
	stage         ports.Stage
	sink          ports.Sink
	debounce      time.Duration
	renderTimeout time.Duration
	exportWidth   int
	exportHeight  int
	exportQuality float64
	theme         domain.Theme
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
}

var _ ports.Studio = (*Studio)(nil)

// Option defines a functional option for configuring the Studio.
type Option func(*Studio)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Studio) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
// Hooks must not call OnChange, SetTheme or Reset.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Studio) {
		s.hooks = hooks
	}
}

// WithStore sets the key-value store used for saved documents and preferences.
// Defaults to an in-memory store.
func WithStore(store ports.KVStore) Option {
	return func(s *Studio) {
		s.store = store
	}
}

// WithRenderer sets the rendering engine. Required.
func WithRenderer(r ports.Renderer) Option {
	return func(s *Studio) {
		s.renderer = r
	}
}

// WithRasterizer sets the export encoder. Defaults to vector passthrough only.
func WithRasterizer(r ports.Rasterizer) Option {
	return func(s *Studio) {
		s.rasterizer = r
	}
}

// WithStage sets where exports mount markup. Defaults to temp directories.
func WithStage(st ports.Stage) Option {
	return func(s *Studio) {
		s.stage = st
	}
}

// WithSink sets the destination used by ExportAs. Defaults to the working directory.
func WithSink(sink ports.Sink) Option {
	return func(s *Studio) {
		s.sink = sink
	}
}

// WithDebounce sets the quiet period before a change is rendered (default 500ms).
func WithDebounce(d time.Duration) Option {
	return func(s *Studio) {
		s.debounce = d
	}
}

// WithRenderTimeout bounds each render call (default 10s).
func WithRenderTimeout(d time.Duration) Option {
	return func(s *Studio) {
		s.renderTimeout = d
	}
}

// WithExportSize sets the raster export dimensions (default 1200x800).
func WithExportSize(width, height int) Option {
	return func(s *Studio) {
		s.exportWidth = width
		s.exportHeight = height
	}
}

// WithExportQuality sets the raster encoder quality in (0, 1] (default 1.0).
func WithExportQuality(q float64) Option {
	return func(s *Studio) {
		s.exportQuality = q
	}
}

// WithTheme sets the theme used until a stored preference is loaded.
func WithTheme(t domain.Theme) Option {
	return func(s *Studio) {
		s.theme = t
	}
}

// New initializes a Studio. A renderer must be provided with WithRenderer.
func New(opts ...Option) (*Studio, error) {
	s := &Studio{}
	for _, opt := range opts {
		opt(s)
	}

	if s.renderer == nil {
		return nil, errors.New("a renderer is required")
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if !s.theme.Valid() {
		s.theme = domain.ThemeLight
	}
	if s.store == nil {
		s.store = memory.NewStore()
	}
	if s.rasterizer == nil {
		s.rasterizer = process.ByFormat{domain.FormatVector: vector.New()}
	}
	if s.stage == nil {
		s.stage = scratch.New("")
	}
	if s.sink == nil {
		s.sink = file.NewSink(".")
	}

	s.gateway = persistence.New(s.store, persistence.WithLogger(s.logger))
	s.machine = runtime.NewMachine(
		runtime.WithGateway(s.gateway),
		runtime.WithMachineHooks(s.hooks),
		runtime.WithMachineLogger(s.logger),
		runtime.WithInitialTheme(s.theme),
	)
	s.coordinator = runtime.NewCoordinator(s.machine, s.renderer,
		runtime.WithDebounce(s.debounce),
		runtime.WithRenderTimeout(s.renderTimeout),
		runtime.WithCoordinatorHooks(s.hooks),
		runtime.WithCoordinatorLogger(s.logger),
	)
	s.exporter = runtime.NewExporter(s.machine, s.stage, s.rasterizer,
		runtime.WithExportSize(s.exportWidth, s.exportHeight),
		runtime.WithExportQuality(s.exportQuality),
		runtime.WithDefaultSink(s.sink),
		runtime.WithExporterHooks(s.hooks),
		runtime.WithExporterLogger(s.logger),
	)

	if _, err := s.machine.LoadPreferences(context.Background()); err != nil {
		s.logger.Warn("Ignoring stored preferences", "err", err)
	}

	return s, nil
}

// OnChange feeds new editor text and schedules a debounced render.
func (s *Studio) OnChange(text string) domain.Session {
	snap := s.machine.SetSource(text)
	s.coordinator.Schedule(text)
	return snap
}

// SetTheme switches the theme and, when a diagram is showing, re-renders it at once.
func (s *Studio) SetTheme(ctx context.Context, theme domain.Theme) domain.Session {
	s.machine.SetTheme(ctx, theme)
	if !s.coordinator.ForceRender() {
		return s.machine.SettleTheme()
	}
	return s.machine.Snapshot()
}

// Save persists the current document.
func (s *Studio) Save(ctx context.Context) (domain.Session, error) {
	return s.machine.Persist(ctx)
}

// Restore loads the most recent saved document and renders it.
// Returns domain.ErrNotFound when nothing was saved.
func (s *Studio) Restore(ctx context.Context) (domain.Session, error) {
	snap, err := s.machine.RestoreLatest(ctx)
	if err != nil {
		return snap, err
	}
	s.coordinator.Schedule(snap.Source)
	return snap, nil
}

// Records lists saved documents, newest first.
func (s *Studio) Records(ctx context.Context) ([]domain.Record, error) {
	return s.gateway.List(ctx)
}

// Reset drops pending renders and clears the document, preserving the theme.
func (s *Studio) Reset() domain.Session {
	s.coordinator.Cancel()
	return s.machine.Reset()
}

// ExportAs exports the current artifact to the configured sink.
func (s *Studio) ExportAs(ctx context.Context, format domain.Format) (domain.Download, error) {
	return s.exporter.ExportAs(ctx, format)
}

// ExportTo exports the current artifact to sink.
func (s *Studio) ExportTo(ctx context.Context, format domain.Format, sink ports.Sink) (domain.Download, error) {
	return s.exporter.ExportTo(ctx, format, sink)
}

// Snapshot returns a copy of the current session.
func (s *Studio) Snapshot() domain.Session {
	return s.machine.Snapshot()
}

// Flush renders a pending change now and waits for renders in flight.
func (s *Studio) Flush() {
	s.coordinator.Flush()
}

// Validate checks source without touching the session.
func (s *Studio) Validate(source string) domain.ValidationResult {
	return validator.Validate(source)
}

// Close stops pending work and waits for renders in flight.
// The store is owned by the caller and is not closed.
func (s *Studio) Close() error {
	return s.coordinator.Close()
}

// Validate checks diagram source against the structural rules applied before rendering.
func Validate(source string) domain.ValidationResult {
	return validator.Validate(source)
}
