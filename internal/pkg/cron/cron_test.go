package cron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu         sync.Mutex
	calls      int32
	retentions []time.Duration
	purged     int
	err        error
}

func (f *fakePurger) PurgeOrphans(_ context.Context, _ time.Time, retention time.Duration) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retentions = append(f.retentions, retention)
	return f.purged, f.err
}

func (f *fakePurger) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func TestService_RunsPeriodically(t *testing.T) {
	purger := &fakePurger{purged: 2}
	s := NewService(purger, 10*time.Millisecond, 24*time.Hour, zerolog.Nop())

	s.Start()
	require.Eventually(t, func() bool { return purger.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	calls := purger.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, purger.callCount())

	purger.mu.Lock()
	defer purger.mu.Unlock()
	assert.Equal(t, 24*time.Hour, purger.retentions[0])
}

func TestService_DisabledWithoutRetention(t *testing.T) {
	purger := &fakePurger{}
	s := NewService(purger, 5*time.Millisecond, 0, zerolog.Nop())

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	assert.Zero(t, purger.callCount())
}

func TestService_CleanupDocuments(t *testing.T) {
	purger := &fakePurger{purged: 3}
	s := NewService(purger, time.Hour, time.Hour, zerolog.Nop())
	assert.Equal(t, 3, s.cleanupDocuments())

	purger.err = errors.New("db down")
	purger.purged = 1
	assert.Equal(t, 1, s.cleanupDocuments())
}

func TestService_StopIsIdempotent(t *testing.T) {
	s := NewService(&fakePurger{}, time.Hour, time.Hour, zerolog.Nop())
	s.Start()
	s.Stop()
	assert.NotPanics(t, s.Stop)
}
