package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"custman/eventing"
)

func TestMemoryEventStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	e1 := eventing.NewEvent(1, "Customer", "CustomerCreated", 1, map[string]any{"firstName": "Alice"})
	e2 := eventing.NewEvent(1, "Customer", "CustomerUpdated", 2, map[string]any{"lastName": "Lee"})

	require.NoError(t, store.AppendEvents(ctx, 1, []eventing.IStorableEvent{e1, e2}, 0))

	events, err := store.LoadEvents(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(1), events[0].GetVersion())
	require.Equal(t, uint64(2), events[1].GetVersion())

	// 增量加载：跳过版本 1
	events, err = store.LoadEvents(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "CustomerUpdated", events[0].GetType())
}

func TestMemoryEventStore_ConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	e1 := eventing.NewEvent(7, "Customer", "CustomerCreated", 1, nil)
	require.NoError(t, store.AppendEvents(ctx, 7, []eventing.IStorableEvent{e1}, 0))

	// 使用过期的 expectedVersion 追加应返回并发冲突
	stale := eventing.NewEvent(7, "Customer", "CustomerUpdated", 1, nil)
	err := store.AppendEvents(ctx, 7, []eventing.IStorableEvent{stale}, 0)
	require.Error(t, err)
	require.True(t, eventing.IsConcurrencyError(err))

	var ce *eventing.ConcurrencyError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, uint64(0), ce.ExpectedVersion)
	require.Equal(t, uint64(1), ce.ActualVersion)
}

func TestMemoryEventStore_RejectsNonSequentialVersions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	// 版本号 3 与 expectedVersion 0 不连续
	e := eventing.NewEvent(2, "Customer", "CustomerCreated", 3, nil)
	err := store.AppendEvents(ctx, 2, []eventing.IStorableEvent{e}, 0)
	require.Error(t, err)
	require.False(t, eventing.IsConcurrencyError(err))
}

func TestMemoryEventStore_VersionAndExistence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	ok, err := store.HasAggregate(ctx, 42)
	require.NoError(t, err)
	require.False(t, ok)

	version, err := store.GetAggregateVersion(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, uint64(0), version)

	e1 := eventing.NewEvent(42, "Customer", "CustomerCreated", 1, nil)
	e2 := eventing.NewEvent(42, "Customer", "CustomerUpdated", 2, nil)
	require.NoError(t, store.AppendEvents(ctx, 42, []eventing.IStorableEvent{e1, e2}, 0))

	ok, err = store.HasAggregate(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)

	version, err = store.GetAggregateVersion(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, uint64(2), version)
}

func TestMemoryEventStore_StreamEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	old := eventing.NewEvent(1, "Customer", "CustomerCreated", 1, nil)
	old.Timestamp = time.Now().Add(-time.Hour)
	recent := eventing.NewEvent(1, "Customer", "CustomerUpdated", 2, nil)
	recent.Timestamp = time.Now()

	require.NoError(t, store.AppendEvents(ctx, 1, []eventing.IStorableEvent{old, recent}, 0))

	all, err := store.StreamEvents(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	events, err := store.StreamEvents(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "CustomerUpdated", events[0].GetType())
}
