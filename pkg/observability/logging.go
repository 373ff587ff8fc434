package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/diagramflow/pkg/domain"
)

// LoggingHooks logs status changes, render outcomes and export progress.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			if e.From == e.To {
				return
			}
			logger.InfoContext(ctx, "status",
				"operation", e.Operation,
				"from", e.From,
				"to", e.To,
				"can_render", e.Flags.CanRender,
				"can_export", e.Flags.CanExport,
			)
		},
		OnRenderDone: func(ctx context.Context, e *domain.RenderEvent) {
			logger.InfoContext(ctx, "render",
				"request_id", e.RequestID,
				"forced", e.Forced,
				"stale", e.Stale,
				"duration", e.Duration,
				"err", e.Err,
			)
		},
		OnExportProgress: func(ctx context.Context, e *domain.ExportEvent) {
			logger.DebugContext(ctx, "export_progress", "format", e.Format, "progress", e.Progress)
		},
		OnExportDone: func(ctx context.Context, e *domain.ExportEvent) {
			logger.InfoContext(ctx, "export",
				"format", e.Format,
				"duration", e.Duration,
				"err", e.Err,
			)
		},
	}
}
