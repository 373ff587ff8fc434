package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveFlags(t *testing.T) {
	all := domain.Flags{CanRender: true, CanExport: true}
	none := domain.Flags{}

	tests := []struct {
		status domain.Status
		prior  domain.Flags
		want   domain.Flags
	}{
		{domain.StatusIdle, all, none},
		{domain.StatusLoaded, none, all},
		{domain.StatusEditing, none, all},
		{domain.StatusRendering, none, all},
		{domain.StatusError, all, none},
		{domain.StatusSaved, none, all},
		{domain.StatusExporting, all, all},
		{domain.StatusExporting, domain.Flags{CanExport: true}, domain.Flags{CanExport: true}},
		{domain.StatusThemeChange, all, all},
		{domain.StatusThemeChange, none, none},
		{domain.Status("bogus"), all, none},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, domain.DeriveFlags(tt.status, tt.prior))
		})
	}
}

func TestSession_Check(t *testing.T) {
	tests := []struct {
		name    string
		session domain.Session
		wantErr bool
	}{
		{"idle", *domain.NewSession(""), false},
		{"idle with flags", domain.Session{Status: domain.StatusIdle, Flags: domain.Flags{CanRender: true}}, true},
		{"error without message", domain.Session{Status: domain.StatusError}, true},
		{"error", domain.Session{Status: domain.StatusError, ErrorMessage: "boom", Theme: domain.ThemeDark}, false},
		{"rendering with error", domain.Session{
			Status: domain.StatusRendering, ErrorMessage: "boom",
			Flags: domain.Flags{CanRender: true, CanExport: true},
		}, true},
		{"editing without flags", domain.Session{Status: domain.StatusEditing}, true},
		{"exporting progress range", domain.Session{
			Status: domain.StatusExporting, ExportProgress: 120,
			Flags: domain.Flags{CanExport: true},
		}, true},
		{"progress outside exporting", domain.Session{
			Status: domain.StatusEditing, ExportProgress: 30,
			Flags: domain.Flags{CanRender: true, CanExport: true},
		}, true},
		{"unknown status", domain.Session{Status: "bogus"}, true},
		{"theme-change anything goes", domain.Session{Status: domain.StatusThemeChange, ErrorMessage: "kept", Theme: domain.ThemeLight}, false},
		{"missing theme", domain.Session{Status: domain.StatusIdle}, true},
		{"unknown theme", domain.Session{Status: domain.StatusIdle, Theme: "sepia"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Check()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSession_SnapshotIsDeep(t *testing.T) {
	s := domain.NewSession(domain.ThemeDark)
	s.Artifact = &domain.Artifact{Markup: "<svg/>"}

	cp := s.Snapshot()
	cp.Artifact.Markup = "changed"

	assert.Equal(t, "<svg/>", s.Artifact.Markup)
	assert.Equal(t, domain.ThemeDark, cp.Theme)
}

func TestParseTheme(t *testing.T) {
	th, err := domain.ParseTheme("dark")
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeDark, th)
	assert.Equal(t, "#1e293b", th.Background())
	assert.Equal(t, "#ffffff", domain.ThemeLight.Background())

	_, err = domain.ParseTheme("solarized")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]domain.Format{
		"raster": domain.FormatRaster,
		"png":    domain.FormatRaster,
		"vector": domain.FormatVector,
		"svg":    domain.FormatVector,
	} {
		got, err := domain.ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := domain.ParseFormat("gif")
	assert.Error(t, err)

	assert.Equal(t, "image/png", domain.FormatRaster.MIME())
	assert.Equal(t, "svg", domain.FormatVector.Ext())
}

func TestErrors(t *testing.T) {
	cause := errors.New("Parse error on line 3")
	renderErr := &domain.RenderError{RequestID: 7, Err: cause}
	assert.Equal(t, "Rendering failed: Parse error on line 3", renderErr.Error())
	assert.ErrorIs(t, renderErr, cause)
	assert.Equal(t, "Rendering failed: Unknown error", (&domain.RenderError{}).Error())

	exportErr := &domain.ExportError{Format: domain.FormatRaster, Step: "precondition", Err: domain.ErrNoArtifact}
	assert.ErrorIs(t, exportErr, domain.ErrNoArtifact)
	assert.Contains(t, exportErr.Error(), "No diagram content to export")

	res := domain.ValidationResult{Valid: false, ErrorMessage: "Code cannot be empty"}
	var vErr *domain.ValidationError
	require.ErrorAs(t, res.Err(), &vErr)
	assert.Equal(t, "Code cannot be empty", vErr.Message)
	assert.NoError(t, domain.ValidationResult{Valid: true}.Err())
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var order []string
	a := domain.LifecycleHooks{
		OnTransition: func(context.Context, *domain.TransitionEvent) { order = append(order, "a") },
	}
	b := domain.LifecycleHooks{
		OnTransition: func(context.Context, *domain.TransitionEvent) { order = append(order, "b") },
		OnExportDone: func(context.Context, *domain.ExportEvent) { order = append(order, "b-export") },
	}

	merged := a.Merge(b)
	merged.OnTransition(context.Background(), &domain.TransitionEvent{})
	merged.OnExportDone(context.Background(), &domain.ExportEvent{})

	assert.Equal(t, []string{"a", "b", "b-export"}, order)
	assert.Nil(t, merged.OnRenderStart)
}
