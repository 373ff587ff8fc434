package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/diagramflow/internal/runtime"
	"github.com/aretw0/diagramflow/internal/testutils"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type exportRig struct {
	machine    *runtime.Machine
	exporter   *runtime.Exporter
	stage      *testutils.Stage
	rasterizer *testutils.MockRasterizer
	sink       *testutils.MockSink
	events     *testutils.Events
}

func newExportRig(t *testing.T) *exportRig {
	t.Helper()
	events := &testutils.Events{}
	m := runtime.NewMachine(runtime.WithMachineHooks(events.Hooks()))
	stage := &testutils.Stage{}
	rasterizer := &testutils.MockRasterizer{}
	sink := &testutils.MockSink{}
	e := runtime.NewExporter(m, stage, rasterizer,
		runtime.WithDefaultSink(sink),
		runtime.WithExporterHooks(events.Hooks()),
	)
	return &exportRig{machine: m, exporter: e, stage: stage, rasterizer: rasterizer, sink: sink, events: events}
}

// rendered drives the machine through a successful render of flowchart.
func (r *exportRig) rendered(t *testing.T, theme domain.Theme) {
	t.Helper()
	ctx := context.Background()
	r.machine.SetSource(flowchart)
	if theme != domain.ThemeLight {
		r.machine.SetTheme(ctx, theme)
		r.machine.SettleTheme()
	}
	_, began := r.machine.BeginRendering()
	require.True(t, began)
	r.machine.SetArtifact(&domain.Artifact{RequestID: 1, Markup: "<svg>ok</svg>", Theme: theme})
	r.machine.MarkRendered(true)
}

func TestExporter_Raster(t *testing.T) {
	r := newExportRig(t)
	r.rendered(t, domain.ThemeDark)

	r.rasterizer.On("Rasterize", mock.Anything, mock.Anything, ports.RasterOptions{
		Format:          domain.FormatRaster,
		Width:           1200,
		Height:          800,
		BackgroundColor: "#1e293b",
		Quality:         1.0,
	}).Return([]byte("png-bytes"), nil)
	r.sink.On("Deliver", mock.Anything, mock.MatchedBy(func(d domain.Download) bool {
		return string(d.Payload) == "png-bytes" && d.MIME == "image/png"
	})).Return(nil)

	d, err := r.exporter.ExportAs(context.Background(), domain.FormatRaster)
	require.NoError(t, err)

	assert.Regexp(t, `^diagram-\d+\.png$`, d.Name)
	assert.Equal(t, []int{10, 30, 80, 90, 100}, r.events.Progress())
	assert.True(t, r.stage.Balanced(), "surface must be unmounted")

	s := r.machine.Snapshot()
	assert.Equal(t, domain.StatusEditing, s.Status)
	assert.Zero(t, s.ExportProgress)
	testutils.RequireConsistent(t, s)

	exports := r.events.Exports()
	require.Len(t, exports, 1)
	assert.Equal(t, 100, exports[0].Progress)
	assert.NoError(t, exports[0].Err)

	r.rasterizer.AssertExpectations(t)
	r.sink.AssertExpectations(t)
}

func TestExporter_VectorHasNoBackground(t *testing.T) {
	r := newExportRig(t)
	r.rendered(t, domain.ThemeLight)

	r.rasterizer.On("Rasterize", mock.Anything, mock.MatchedBy(func(s ports.Surface) bool {
		return s.Markup() == "<svg>ok</svg>"
	}), mock.MatchedBy(func(o ports.RasterOptions) bool {
		return o.Format == domain.FormatVector && o.BackgroundColor == ""
	})).Return([]byte("<svg>ok</svg>"), nil)

	var delivered domain.Download
	sink := ports.SinkFunc(func(_ context.Context, d domain.Download) error {
		delivered = d
		return nil
	})

	d, err := r.exporter.ExportTo(context.Background(), domain.FormatVector, sink)
	require.NoError(t, err)
	assert.Regexp(t, `^diagram-\d+\.svg$`, d.Name)
	assert.Equal(t, "image/svg+xml", delivered.MIME)
	assert.Equal(t, d.Name, delivered.Name)
}

func TestExporter_Unavailable(t *testing.T) {
	r := newExportRig(t)

	_, err := r.exporter.ExportAs(context.Background(), domain.FormatRaster)
	assert.ErrorIs(t, err, domain.ErrExportUnavailable)
	assert.Equal(t, domain.StatusIdle, r.machine.Snapshot().Status)
	assert.Empty(t, r.events.Progress())
	assert.Zero(t, r.stage.Mounted())

	r.machine.SetSource(lines(401))
	_, err = r.exporter.ExportAs(context.Background(), domain.FormatRaster)
	assert.ErrorIs(t, err, domain.ErrExportUnavailable)
	assert.Equal(t, domain.StatusError, r.machine.Snapshot().Status)
}

func TestExporter_NoArtifact(t *testing.T) {
	r := newExportRig(t)
	r.machine.SetSource(flowchart)

	_, err := r.exporter.ExportAs(context.Background(), domain.FormatRaster)

	var exportErr *domain.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, runtime.StepPrecondition, exportErr.Step)
	assert.ErrorIs(t, err, domain.ErrNoArtifact)
	assert.Contains(t, err.Error(), "No diagram content to export")

	assert.Equal(t, domain.StatusEditing, r.machine.Snapshot().Status)
	assert.Zero(t, r.stage.Mounted())
}

func TestExporter_RasterizeFailure(t *testing.T) {
	r := newExportRig(t)
	r.rendered(t, domain.ThemeLight)

	boom := errors.New("encoder crashed")
	r.rasterizer.On("Rasterize", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	_, err := r.exporter.ExportAs(context.Background(), domain.FormatRaster)

	var exportErr *domain.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, runtime.StepRasterize, exportErr.Step)
	assert.Equal(t, domain.FormatRaster, exportErr.Format)
	assert.ErrorIs(t, err, boom)

	assert.True(t, r.stage.Balanced(), "surface must be unmounted after failure")
	assert.Equal(t, []int{10, 30}, r.events.Progress())
	assert.Equal(t, domain.StatusEditing, r.machine.Snapshot().Status)
	r.sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestExporter_MountFailure(t *testing.T) {
	r := newExportRig(t)
	r.rendered(t, domain.ThemeLight)
	r.stage.MountErr = errors.New("disk full")

	_, err := r.exporter.ExportAs(context.Background(), domain.FormatVector)

	var exportErr *domain.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, runtime.StepMount, exportErr.Step)
	assert.Equal(t, domain.StatusEditing, r.machine.Snapshot().Status)
	r.rasterizer.AssertNotCalled(t, "Rasterize", mock.Anything, mock.Anything, mock.Anything)
}

func TestExporter_DeliverFailure(t *testing.T) {
	r := newExportRig(t)
	r.rendered(t, domain.ThemeLight)

	r.rasterizer.On("Rasterize", mock.Anything, mock.Anything, mock.Anything).Return([]byte("x"), nil)
	r.sink.On("Deliver", mock.Anything, mock.Anything).Return(errors.New("client went away"))

	d, err := r.exporter.ExportAs(context.Background(), domain.FormatRaster)

	var exportErr *domain.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, runtime.StepDeliver, exportErr.Step)
	assert.Empty(t, d.Name)
	assert.Equal(t, []int{10, 30, 80, 90}, r.events.Progress())
	assert.True(t, r.stage.Balanced())
}

func TestExporter_WithExportSize(t *testing.T) {
	events := &testutils.Events{}
	m := runtime.NewMachine(runtime.WithMachineHooks(events.Hooks()))
	rasterizer := &testutils.MockRasterizer{}
	e := runtime.NewExporter(m, &testutils.Stage{}, rasterizer, runtime.WithExportSize(640, 0))

	m.SetSource(flowchart)
	m.SetArtifact(&domain.Artifact{Markup: "<svg/>"})

	rasterizer.On("Rasterize", mock.Anything, mock.Anything, mock.MatchedBy(func(o ports.RasterOptions) bool {
		return o.Width == 640 && o.Height == runtime.DefaultExportHeight
	})).Return([]byte("x"), nil)

	_, err := e.ExportTo(context.Background(), domain.FormatRaster, ports.SinkFunc(func(context.Context, domain.Download) error { return nil }))
	require.NoError(t, err)
	rasterizer.AssertExpectations(t)
}
