// Package ticketnumber allocates helpdesk ticket numbers of the form
// PREFIX-YYMMDD-NNN, where NNN is a per-day sequence.
package ticketnumber

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "TIPA-HD"

// DefaultWidth is the minimum number of counter digits.
const DefaultWidth = 3

// CounterStore hands out sequence values per scope (one scope per prefix
// and day). Implementations must be atomic: two calls for the same scope
// never return the same value.
type CounterStore interface {
	// Next increments the counter for scope and returns the new value. A
	// scope without a counter starts at seed+1.
	Next(ctx context.Context, scope string, seed int64) (int64, error)
}

// SeedFunc reports the highest counter already used under dayPrefix, so a
// fresh day counter continues after numbers issued by other means.
type SeedFunc func(ctx context.Context, dayPrefix string) (int64, error)

// Generator formats ticket numbers from a CounterStore.
type Generator struct {
	prefix string
	width  int
	store  CounterStore
	seed   SeedFunc
	loc    *time.Location
	now    func() time.Time

	mu     sync.Mutex
	seeded map[string]bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithPrefix sets the leading segment, "TIPA-HD" by default.
func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// WithWidth sets the minimum counter width.
func WithWidth(width int) Option {
	return func(g *Generator) {
		if width > 0 {
			g.width = width
		}
	}
}

// WithLocation sets the timezone that decides where a day starts.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithSeed installs a SeedFunc consulted once per day per process.
func WithSeed(seed SeedFunc) Option {
	return func(g *Generator) { g.seed = seed }
}

// New creates a Generator backed by store.
func New(store CounterStore, opts ...Option) *Generator {
	g := &Generator{
		prefix: DefaultPrefix,
		width:  DefaultWidth,
		store:  store,
		loc:    time.UTC,
		now:    time.Now,
		seeded: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Prefix returns the configured prefix.
func (g *Generator) Prefix() string { return g.prefix }

// DayPrefix returns "PREFIX-YYMMDD-" for t in the generator's timezone.
func (g *Generator) DayPrefix(t time.Time) string {
	return g.prefix + "-" + DayKey(t.In(g.loc)) + "-"
}

// Next allocates the next ticket number for today.
func (g *Generator) Next(ctx context.Context) (string, error) {
	if g.store == nil {
		return "", errors.New("ticket number store not configured")
	}
	now := g.now().In(g.loc)
	day := DayKey(now)
	dayPrefix := g.prefix + "-" + day + "-"

	var seed int64
	if g.seed != nil && !g.isSeeded(day) {
		s, err := g.seed(ctx, dayPrefix)
		if err != nil {
			return "", fmt.Errorf("seed counter for %s: %w", day, err)
		}
		seed = s
	}

	n, err := g.store.Next(ctx, g.prefix+"_"+day, seed)
	if err != nil {
		return "", fmt.Errorf("next counter for %s: %w", day, err)
	}
	g.markSeeded(day)
	return fmt.Sprintf("%s%0*d", dayPrefix, g.width, n), nil
}

func (g *Generator) isSeeded(day string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seeded[day]
}

func (g *Generator) markSeeded(day string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seeded[day] {
		return
	}
	// Only today matters; drop older days.
	for k := range g.seeded {
		delete(g.seeded, k)
	}
	g.seeded[day] = true
}
