package ticketnumber

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIPA-VN/uxone-sub003/internal/config"
)

func TestResolveStore(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "postgres")
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	s, err := ResolveStore("", Backends{DB: db})
	require.NoError(t, err)
	assert.IsType(t, &DBStore{}, s)

	s, err = ResolveStore("Redis", Backends{Redis: rdb})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)

	s, err = ResolveStore("memory", Backends{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestResolveStore_Errors(t *testing.T) {
	_, err := ResolveStore("database", Backends{})
	assert.Error(t, err)
	_, err = ResolveStore("redis", Backends{})
	assert.Error(t, err)
	_, err = ResolveStore("etcd", Backends{})
	assert.Error(t, err)
}

func TestSetupFromConfig(t *testing.T) {
	cfg := &config.Config{
		App:    config.AppConfig{Timezone: "Asia/Ho_Chi_Minh"},
		Ticket: config.TicketConfig{NumberPrefix: "TIPA-HD", CounterStore: "memory"},
	}
	g, err := SetupFromConfig(cfg, Backends{}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "TIPA-HD", g.Prefix())
	assert.Equal(t, "Asia/Ho_Chi_Minh", g.loc.String())

	cfg.App.Timezone = "Mars/Olympus"
	_, err = SetupFromConfig(cfg, Backends{}, nil, zerolog.Nop())
	assert.Error(t, err)
}
