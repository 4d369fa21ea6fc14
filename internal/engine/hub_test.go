package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridianhq/riskwatch/internal/domain"
)

func TestHubPublishAndUnsubscribe(t *testing.T) {
	hub := NewHub()

	var got []bool
	unsub := hub.Subscribe(func(snap domain.EngineSnapshot) {
		got = append(got, snap.Stale)
	})
	assert.Equal(t, 1, hub.Count())

	hub.Publish(domain.EngineSnapshot{Stale: true})
	hub.Publish(domain.EngineSnapshot{Stale: false})
	assert.Equal(t, []bool{true, false}, got)

	unsub()
	unsub() // second call is a no-op
	assert.Equal(t, 0, hub.Count())

	hub.Publish(domain.EngineSnapshot{Stale: true})
	assert.Len(t, got, 2)
}

func TestHubMultipleSubscribers(t *testing.T) {
	hub := NewHub()

	a, b := 0, 0
	hub.Subscribe(func(domain.EngineSnapshot) { a++ })
	hub.Subscribe(func(domain.EngineSnapshot) { b++ })

	hub.Publish(domain.EngineSnapshot{})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
