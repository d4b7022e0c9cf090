package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

var fastRetry = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

type recordingSink struct {
	mu       sync.Mutex
	events   []models.Event
	attempts []int
	causes   []error
}

func (s *recordingSink) Abandon(_ context.Context, evt models.Event, attempts int, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	s.attempts = append(s.attempts, attempts)
	s.causes = append(s.causes, cause)
	return nil
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	err := r.Register("", func(context.Context, models.Event) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = r.Register(models.EventUserCreated, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, 0, r.Len())
}

func TestRegisterOverwritesAndUnregister(t *testing.T) {
	r := NewRegistry(WithRetryPolicy(fastRetry))
	var first, second int

	require.NoError(t, r.Register(models.EventUserCreated, func(context.Context, models.Event) error { first++; return nil }))
	require.NoError(t, r.Register(models.EventUserCreated, func(context.Context, models.Event) error { second++; return nil }))
	assert.Equal(t, 1, r.Len())

	r.Dispatch(context.Background(), models.EventUserCreated, models.NewUserCreated("u1", "a", "a@x", time.Now()))
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)

	r.Unregister(models.EventUserCreated)
	r.Unregister(models.EventUserCreated)
	assert.False(t, r.Has(models.EventUserCreated))

	r.Dispatch(context.Background(), models.EventUserCreated, models.NewUserCreated("u1", "a", "a@x", time.Now()))
	assert.Equal(t, 1, second)
}

func TestEventTypesSorted(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, models.Event) error { return nil }
	require.NoError(t, r.Register(models.EventUserEmailUpdated, noop))
	require.NoError(t, r.Register(models.EventUserCreated, noop))
	require.NoError(t, r.Register(models.EventUserDeactivated, noop))

	assert.Equal(t, []models.EventType{
		models.EventUserCreated, models.EventUserDeactivated, models.EventUserEmailUpdated,
	}, r.EventTypes())
}

func TestDispatchUnknownTypeWithoutWildcard(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() {
		r.Dispatch(context.Background(), "OrderPlaced", models.NewUserDeactivated("u1"))
	})
}

func TestDispatchFallsBackToWildcard(t *testing.T) {
	r := NewRegistry(WithRetryPolicy(fastRetry))
	var got models.Event
	require.NoError(t, r.Register(Wildcard, func(_ context.Context, evt models.Event) error {
		got = evt
		return nil
	}))

	evt := models.NewUserDeactivated("u1")
	r.Dispatch(context.Background(), evt.Type(), evt)

	require.NotNil(t, got)
	assert.Equal(t, evt.EventID, got.Meta().EventID)
}

func TestDispatchPrefersExactHandlerOverWildcard(t *testing.T) {
	r := NewRegistry(WithRetryPolicy(fastRetry))
	var exact, wild int
	require.NoError(t, r.Register(Wildcard, func(context.Context, models.Event) error { wild++; return nil }))
	require.NoError(t, r.Register(models.EventUserDeactivated, func(context.Context, models.Event) error { exact++; return nil }))

	r.Dispatch(context.Background(), models.EventUserDeactivated, models.NewUserDeactivated("u1"))
	assert.Equal(t, 1, exact)
	assert.Equal(t, 0, wild)
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	sink := &recordingSink{}
	r := NewRegistry(WithRetryPolicy(fastRetry), WithAbandonedSink(sink))
	calls := 0
	require.NoError(t, r.Register(models.EventUserDeactivated, func(context.Context, models.Event) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	r.Dispatch(context.Background(), models.EventUserDeactivated, models.NewUserDeactivated("u1"))

	assert.Equal(t, 3, calls)
	assert.Empty(t, sink.events)
}

func TestDispatchAbandonsAfterMaxAttempts(t *testing.T) {
	sink := &recordingSink{}
	r := NewRegistry(WithRetryPolicy(fastRetry), WithAbandonedSink(sink))
	calls := 0
	require.NoError(t, r.Register(models.EventUserDeactivated, func(context.Context, models.Event) error {
		calls++
		return errors.New("projection store down")
	}))

	evt := models.NewUserDeactivated("u1")
	assert.NotPanics(t, func() {
		r.Dispatch(context.Background(), evt.Type(), evt)
	})

	assert.Equal(t, 3, calls)
	require.Len(t, sink.events, 1)
	assert.Equal(t, evt.EventID, sink.events[0].Meta().EventID)
	assert.Equal(t, 3, sink.attempts[0])
	assert.ErrorContains(t, sink.causes[0], "projection store down")
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	sink := &recordingSink{}
	r := NewRegistry(WithRetryPolicy(RetryPolicy{MaxAttempts: 2}), WithAbandonedSink(sink))
	require.NoError(t, r.Register(models.EventUserCreated, func(context.Context, models.Event) error {
		panic("nil map")
	}))

	assert.NotPanics(t, func() {
		r.Dispatch(context.Background(), models.EventUserCreated, models.NewUserCreated("u1", "a", "a@x", time.Now()))
	})
	require.Len(t, sink.attempts, 1)
	assert.Equal(t, 2, sink.attempts[0])
	assert.ErrorContains(t, sink.causes[0], "handler panic")
}

func TestRegistryConcurrentRegisterAndDispatch(t *testing.T) {
	r := NewRegistry(WithRetryPolicy(fastRetry))
	var handled atomic.Int64
	handler := func(context.Context, models.Event) error { handled.Add(1); return nil }
	require.NoError(t, r.Register(models.EventUserDeactivated, handler))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Register(models.EventUserDeactivated, handler)
				_ = r.Has(models.EventUserCreated)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Dispatch(context.Background(), models.EventUserDeactivated, models.NewUserDeactivated("u1"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), handled.Load())
}
