package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/diagramflow/internal/logging"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
)

// Export raster defaults.
const (
	DefaultExportWidth   = 1200
	DefaultExportHeight  = 800
	DefaultExportQuality = 1.0
)

// Export steps, reported in ExportError.Step.
const (
	StepPrecondition = "precondition"
	StepMount        = "mount"
	StepRasterize    = "rasterize"
	StepDeliver      = "deliver"
)

// Exporter turns the current artifact into a downloadable payload.
type Exporter struct {
	machine    *Machine
	stage      ports.Stage
	rasterizer ports.Rasterizer
	sink       ports.Sink

	width   int
	height  int
	quality float64

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithExportSize sets the raster dimensions. Non-positive values keep the defaults.
func WithExportSize(width, height int) ExporterOption {
	return func(e *Exporter) {
		if width > 0 {
			e.width = width
		}
		if height > 0 {
			e.height = height
		}
	}
}

// WithExportQuality sets the encoder quality in (0, 1].
func WithExportQuality(q float64) ExporterOption {
	return func(e *Exporter) {
		if q > 0 && q <= 1 {
			e.quality = q
		}
	}
}

// WithDefaultSink sets the sink used by ExportAs.
func WithDefaultSink(s ports.Sink) ExporterOption {
	return func(e *Exporter) {
		e.sink = s
	}
}

// WithExporterHooks registers export observers.
func WithExporterHooks(h domain.LifecycleHooks) ExporterOption {
	return func(e *Exporter) {
		e.hooks = h
	}
}

// WithExporterLogger sets the logger.
func WithExporterLogger(l *slog.Logger) ExporterOption {
	return func(e *Exporter) {
		e.logger = l
	}
}

// NewExporter creates an exporter mounting on stage and encoding with rasterizer.
func NewExporter(machine *Machine, stage ports.Stage, rasterizer ports.Rasterizer, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		machine:    machine,
		stage:      stage,
		rasterizer: rasterizer,
		width:      DefaultExportWidth,
		height:     DefaultExportHeight,
		quality:    DefaultExportQuality,
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportAs exports to the default sink.
func (e *Exporter) ExportAs(ctx context.Context, format domain.Format) (domain.Download, error) {
	if e.sink == nil {
		return domain.Download{}, &domain.ExportError{Format: format, Step: StepDeliver, Err: errors.New("no sink configured")}
	}
	return e.ExportTo(ctx, format, e.sink)
}

// ExportTo runs the export pipeline and delivers the payload to sink.
// When the session cannot export, ErrExportUnavailable is returned and the session is untouched.
// Once started, the session always leaves exporting, on success or failure.
func (e *Exporter) ExportTo(ctx context.Context, format domain.Format, sink ports.Sink) (d domain.Download, err error) {
	snap, began := e.machine.BeginExport(format)
	if !began {
		return d, domain.ErrExportUnavailable
	}

	start := e.now()
	reached := 0
	step := func(p int) {
		if e.progress(ctx, format, p) {
			reached = p
		}
	}
	logger := e.logger.With("format", format)
	logger.Debug("Export started")

	defer func() {
		e.machine.FinishExport()
		if err != nil {
			logger.Warn("Export failed", "err", err)
		} else {
			logger.Info("Exported diagram", "name", d.Name, "bytes", len(d.Payload))
		}
		if e.hooks.OnExportDone != nil {
			e.hooks.OnExportDone(ctx, &domain.ExportEvent{
				EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventExportDone},
				Format:    format,
				Progress:  reached,
				Duration:  e.now().Sub(start),
				Err:       err,
			})
		}
	}()

	fail := func(name string, cause error) error {
		return &domain.ExportError{Format: format, Step: name, Err: cause}
	}

	if snap.Artifact.Empty() {
		return d, fail(StepPrecondition, domain.ErrNoArtifact)
	}

	step(10)
	surface, err := e.stage.Mount(ctx, snap.Artifact.Markup)
	if err != nil {
		return d, fail(StepMount, err)
	}
	defer func() {
		if uerr := e.stage.Unmount(surface); uerr != nil {
			logger.Warn("Failed to unmount export surface", "err", uerr)
		}
	}()

	opts := ports.RasterOptions{
		Format:  format,
		Width:   e.width,
		Height:  e.height,
		Quality: e.quality,
	}
	if format == domain.FormatRaster {
		opts.BackgroundColor = snap.Theme.Background()
	}

	step(30)
	payload, err := e.rasterizer.Rasterize(ctx, surface, opts)
	if err != nil {
		return d, fail(StepRasterize, err)
	}

	step(80)
	d = domain.Download{
		Name:    fmt.Sprintf("diagram-%d.%s", e.now().UnixMilli(), format.Ext()),
		MIME:    format.MIME(),
		Payload: payload,
	}

	step(90)
	if err := sink.Deliver(ctx, d); err != nil {
		return domain.Download{}, fail(StepDeliver, err)
	}

	step(100)
	return d, nil
}

func (e *Exporter) progress(ctx context.Context, format domain.Format, p int) bool {
	if _, ok := e.machine.UpdateExportProgress(p); !ok {
		return false
	}
	if e.hooks.OnExportProgress != nil {
		e.hooks.OnExportProgress(ctx, &domain.ExportEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventExportProgress},
			Format:    format,
			Progress:  p,
		})
	}
	return true
}
