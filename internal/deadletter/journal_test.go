package deadletter

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lizhaowen72/eventbridge/internal/events"
	"github.com/lizhaowen72/eventbridge/pkg/models"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "deadletter.db"))
	require.NoError(t, err)
	return j
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestAbandonAndList(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	first := models.NewUserCreated("u1", "alice", "a@x", time.Now().UTC())
	second := models.NewUserDeactivated("u2")
	require.NoError(t, j.Abandon(ctx, first, 3, errors.New("store down")))
	require.NoError(t, j.Abandon(ctx, second, 3, nil))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.EventID, entries[0].EventID)
	assert.Equal(t, uint64(2), entries[0].Seq)
	assert.Empty(t, entries[0].Error)
	assert.Equal(t, first.EventID, entries[1].EventID)
	assert.Equal(t, "store down", entries[1].Error)
	assert.Equal(t, 3, entries[1].Attempts)

	evt, err := models.UnmarshalEvent(entries[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, models.EventUserCreated, evt.Type())
	assert.Equal(t, "u1", evt.Meta().AggregateID)

	limited, err := j.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestJournalPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deadletter.db")
	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Abandon(context.Background(), models.NewUserDeactivated("u1"), 1, errors.New("x")))

	j, err = Open(path)
	require.NoError(t, err)

	n, err := j.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournalSharedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deadletter.db")
	ctx := context.Background()

	api, err := Open(path)
	require.NoError(t, err)
	consumer, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, api.Abandon(ctx, models.NewUserDeactivated("u1"), 3, errors.New("api side")))
	require.NoError(t, consumer.Abandon(ctx, models.NewUserDeactivated("u2"), 3, errors.New("consumer side")))

	reader, err := Open(path)
	require.NoError(t, err)
	entries, err := reader.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "u2", entries[0].AggregateID)
	assert.Equal(t, "u1", entries[1].AggregateID)

	require.NoError(t, api.Abandon(ctx, models.NewUserDeactivated("u3"), 1, nil))
	n, err := consumer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestJournalConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deadletter.db")
	ctx := context.Background()

	var journals []*Journal
	for i := 0; i < 2; i++ {
		j, err := Open(path)
		require.NoError(t, err)
		journals = append(journals, j)
	}

	var wg sync.WaitGroup
	for _, j := range journals {
		wg.Add(1)
		go func(j *Journal) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				assert.NoError(t, j.Abandon(ctx, models.NewUserDeactivated("u1"), 1, nil))
			}
		}(j)
	}
	wg.Wait()

	n, err := journals[0].Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestJournalAsRegistrySink(t *testing.T) {
	j := openJournal(t)
	r := events.NewRegistry(
		events.WithRetryPolicy(events.RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}),
		events.WithAbandonedSink(j),
	)
	require.NoError(t, r.Register(models.EventUserDeactivated, func(context.Context, models.Event) error {
		return errors.New("projection unavailable")
	}))

	r.Dispatch(context.Background(), models.EventUserDeactivated, models.NewUserDeactivated("u1"))

	entries, err := j.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.Contains(t, entries[0].Error, "projection unavailable")
}

func TestCancelledContext(t *testing.T) {
	j := openJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, j.Abandon(ctx, models.NewUserDeactivated("u1"), 1, nil))
	_, err := j.List(ctx, 0)
	assert.Error(t, err)
}
