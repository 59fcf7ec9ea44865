package ticketnumber

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Store names accepted by ticket.counter_store.
const (
	StoreDatabase = "database"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Backends holds the connections a store may need. Unused fields may be nil.
type Backends struct {
	DB             *sqlx.DB
	Redis          redis.UniversalClient
	RedisKeyPrefix string
}

// ResolveStore maps a configured store name to a CounterStore
// (case-insensitive). An empty name selects the database store.
func ResolveStore(name string, b Backends) (CounterStore, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StoreDatabase:
		if b.DB == nil {
			return nil, errors.New("database counter store requires a database connection")
		}
		return NewDBStore(b.DB), nil
	case StoreRedis:
		if b.Redis == nil {
			return nil, errors.New("redis counter store requires a redis client")
		}
		return NewRedisStore(b.Redis, b.RedisKeyPrefix), nil
	case StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown ticket counter store: %s", name)
	}
}
