package transport

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/events"
)

func TestBackoff_GrowsExponentiallyAndCaps(t *testing.T) {
	assert.Equal(t, baseReconnectDelay, backoff(1))
	assert.Equal(t, 2*baseReconnectDelay, backoff(2))
	assert.Equal(t, 4*baseReconnectDelay, backoff(3))
	assert.Equal(t, maxReconnectDelay, backoff(30))
}

func TestBackoff_NeverExceedsMax(t *testing.T) {
	for attempt := 1; attempt <= 50; attempt++ {
		assert.LessOrEqual(t, backoff(attempt), maxReconnectDelay)
	}
}

func TestSessionStatus_ZeroValueIsEmpty(t *testing.T) {
	s := &Session{stopChan: make(chan struct{})}
	assert.Equal(t, "", string(s.Status()))
}

func TestBackoff_PositiveDuration(t *testing.T) {
	assert.Greater(t, backoff(1), time.Duration(0))
}

func TestFail_SetsTerminalStatusAndEmitsFatalError(t *testing.T) {
	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.ErrorOccurred, func(e events.Event) { received <- e })

	s := &Session{
		kind:     domain.StreamMarketData,
		bus:      bus,
		log:      zerolog.Nop(),
		stopChan: make(chan struct{}),
	}
	s.fail(fmt.Errorf("reconnect abandoned after 15 attempts: dial: connection refused"))

	assert.Equal(t, domain.StatusFailed, s.Status())
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	assert.True(t, stopped)

	select {
	case e := <-received:
		assert.Equal(t, string(domain.StreamMarketData), e.Data["stream"])
		assert.Equal(t, true, e.Data["fatal"])
	case <-time.After(time.Second):
		t.Fatal("expected ErrorOccurred event")
	}
}

