package notifications

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

func TestRegistry_PublishReachesAllUserSinks(t *testing.T) {
	r := NewRegistry()
	a, b, other := NewChanSink(1), NewChanSink(1), NewChanSink(1)
	r.Subscribe(7, a)
	r.Subscribe(7, b)
	r.Subscribe(8, other)

	n := r.Publish(7, Event{Type: EventNotification, Notification: models.Notification{ID: 1}})
	assert.Equal(t, 2, n)
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
	assert.Empty(t, other)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry()
	sink := NewChanSink(1)
	tok := r.Subscribe(7, sink)
	require.Equal(t, 1, r.Subscribers())

	r.Unsubscribe(tok)
	r.Unsubscribe(tok)
	r.Unsubscribe("unknown")

	assert.Zero(t, r.Subscribers())
	assert.Zero(t, r.Publish(7, Event{}))
	assert.Empty(t, sink)
}

func TestRegistry_SlowSinkDrops(t *testing.T) {
	r := NewRegistry()
	sink := NewChanSink(1)
	r.Subscribe(7, sink)

	assert.Equal(t, 1, r.Publish(7, Event{}))
	assert.Equal(t, 0, r.Publish(7, Event{}))
	assert.Len(t, sink, 1)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tok := r.Subscribe(id%5, NewChanSink(4))
			r.Publish(id%5, Event{})
			r.Unsubscribe(tok)
		}(int64(i))
	}
	wg.Wait()
	assert.Zero(t, r.Subscribers())
}
