package ticketnumber

import (
	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/config"
)

// SetupFromConfig builds the Generator described by the ticket and app
// config sections. seed may be nil.
func SetupFromConfig(cfg *config.Config, b Backends, seed SeedFunc, log zerolog.Logger) (*Generator, error) {
	store, err := ResolveStore(cfg.Ticket.CounterStore, b)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	g := New(store,
		WithPrefix(cfg.Ticket.NumberPrefix),
		WithLocation(loc),
		WithSeed(seed),
	)
	log.Info().
		Str("prefix", g.Prefix()).
		Str("store", cfg.Ticket.CounterStore).
		Str("timezone", loc.String()).
		Msg("ticket number generator configured")
	return g, nil
}
