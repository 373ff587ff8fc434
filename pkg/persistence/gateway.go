// Package persistence saves and restores documents and the theme preference
// on top of a ports.KVStore.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/diagramflow/internal/logging"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

const (
	// KeyPrefix scopes every key the gateway writes.
	KeyPrefix = "diagram_"
	// ThemeKey holds the standing theme preference.
	ThemeKey = KeyPrefix + "pref_theme"
)

var recordKey = regexp.MustCompile(`^` + KeyPrefix + `\d+$`)

// Gateway reads and writes records through a key-value store.
type Gateway struct {
	store  ports.KVStore
	now    func() time.Time
	logger *slog.Logger

	mu   sync.Mutex
	last int64
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithClock overrides the time source used for record ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithLogger configures a logger for skipped or corrupt records.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// New creates a Gateway over store.
func New(store ports.KVStore, opts ...Option) *Gateway {
	g := &Gateway{
		store:  store,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// nextID returns a key that sorts after every key issued before it.
func (g *Gateway) nextID(ts time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := ts.UnixNano()
	if n <= g.last {
		n = g.last + 1
	}
	g.last = n
	return KeyPrefix + strconv.FormatInt(n, 10)
}

// Save writes a new record for source and theme.
func (g *Gateway) Save(ctx context.Context, source string, theme domain.Theme) (domain.Record, error) {
	if strings.TrimSpace(source) == "" {
		return domain.Record{}, domain.ErrNothingToSave
	}

	ts := g.now().UTC()
	rec := domain.Record{
		ID:        g.nextID(ts),
		Source:    source,
		Theme:     theme,
		Timestamp: ts,
	}

	value := map[string]any{
		"id":        rec.ID,
		"source":    rec.Source,
		"theme":     string(rec.Theme),
		"timestamp": rec.Timestamp.Format(time.RFC3339Nano),
	}
	if err := g.store.Set(ctx, rec.ID, value); err != nil {
		return domain.Record{}, fmt.Errorf("failed to save record: %w", err)
	}
	return rec, nil
}

// List returns every decodable record, newest first.
func (g *Gateway) List(ctx context.Context) ([]domain.Record, error) {
	keys, err := g.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]domain.Record, 0, len(keys))
	for _, key := range keys {
		if !recordKey.MatchString(key) {
			continue
		}
		rec, err := g.load(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue // deleted between Keys and Get
			}
			g.logger.Warn("Skipping unreadable record", "key", key, "err", err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

// Latest returns the most recent record, or domain.ErrNotFound when none exists.
func (g *Gateway) Latest(ctx context.Context) (domain.Record, error) {
	records, err := g.List(ctx)
	if err != nil {
		return domain.Record{}, err
	}
	if len(records) == 0 {
		return domain.Record{}, domain.ErrNotFound
	}
	return records[0], nil
}

// Delete removes a record.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	return g.store.Delete(ctx, id)
}

func (g *Gateway) load(ctx context.Context, key string) (domain.Record, error) {
	raw, err := g.store.Get(ctx, key)
	if err != nil {
		return domain.Record{}, err
	}

	var rec domain.Record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:     &rec,
	})
	if err != nil {
		return domain.Record{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return domain.Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	if rec.ID == "" {
		rec.ID = key
	}
	if !rec.Theme.Valid() {
		rec.Theme = domain.ThemeLight
	}
	return rec, nil
}

// SaveTheme stores the theme preference.
func (g *Gateway) SaveTheme(ctx context.Context, theme domain.Theme) error {
	if err := g.store.Set(ctx, ThemeKey, string(theme)); err != nil {
		return fmt.Errorf("failed to save theme preference: %w", err)
	}
	return nil
}

// LoadTheme returns the stored theme preference, or domain.ErrNotFound.
func (g *Gateway) LoadTheme(ctx context.Context) (domain.Theme, error) {
	raw, err := g.store.Get(ctx, ThemeKey)
	if err != nil {
		return "", err
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("theme preference has type %T", raw)
	}
	return domain.ParseTheme(s)
}
