package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition     EventType = "transition"
	EventRenderStart    EventType = "render_start"
	EventRenderDone     EventType = "render_done"
	EventExportProgress EventType = "export_progress"
	EventExportDone     EventType = "export_done"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// TransitionEvent is emitted after every state machine operation that changed the session.
type TransitionEvent struct {
	EventBase
	Operation string `json:"operation"`
	From      Status `json:"from"`
	To        Status `json:"to"`
	Flags     Flags  `json:"flags"`
}

// RenderEvent describes a render request and, once done, its outcome.
type RenderEvent struct {
	EventBase
	RequestID uint64        `json:"request_id"`
	Forced    bool          `json:"forced,omitempty"`
	Stale     bool          `json:"stale,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// ExportEvent describes export progress and completion.
type ExportEvent struct {
	EventBase
	Format   Format        `json:"format"`
	Progress int           `json:"progress"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for studio observability.
type LifecycleHooks struct {
	OnTransition     func(context.Context, *TransitionEvent)
	OnRenderStart    func(context.Context, *RenderEvent)
	OnRenderDone     func(context.Context, *RenderEvent)
	OnExportProgress func(context.Context, *ExportEvent)
	OnExportDone     func(context.Context, *ExportEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTransition:     chain(h.OnTransition, other.OnTransition),
		OnRenderStart:    chain(h.OnRenderStart, other.OnRenderStart),
		OnRenderDone:     chain(h.OnRenderDone, other.OnRenderDone),
		OnExportProgress: chain(h.OnExportProgress, other.OnExportProgress),
		OnExportDone:     chain(h.OnExportDone, other.OnExportDone),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
