package eventsourced

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	deventsourced "custman/domain/eventsourced"
	"custman/eventing"
	"custman/eventing/store"
)

func newRaceTestRepo(t *testing.T) *deventsourced.EventSourcedRepository[*testAggregate] {
	t.Helper()
	adapter, err := NewDomainEventStore(DomainEventStoreOptions{
		AggregateType: "TestAggregate",
		EventStore:    store.NewMemoryEventStore(),
	})
	require.NoError(t, err)

	repo, err := deventsourced.NewEventSourcedRepository("TestAggregate", newTestAggregate, adapter)
	require.NoError(t, err)
	return repo
}

// TestEventSourcedRepository_ConcurrentSaveSameAggregate
// 多个 goroutine 基于同一初始版本并发保存同一聚合，
// 验证仅一个写入成功，其余返回版本冲突，且最终版本为 1。
//
// 配合 `go test -race ./app/eventsourced` 使用。
func TestEventSourcedRepository_ConcurrentSaveSameAggregate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRaceTestRepo(t)

	const aggID = int64(999)
	const writers = 10

	var mu sync.Mutex
	successCount := 0
	conflictCount := 0

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		writerID := i + 1
		go func() {
			defer wg.Done()

			agg := newTestAggregate(aggID)
			evt := &testDomainEvent{Typ: "TestCreated", Data: string(rune('a' + writerID))}
			require.NoError(t, agg.ApplyEvent(evt))
			agg.AddDomainEvent(evt)

			err := repo.Save(ctx, agg)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successCount++
				return
			}
			require.True(t, eventing.IsConcurrencyError(err), "落败的写入应返回版本冲突: %v", err)
			conflictCount++
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successCount, "应恰好一个写入成功")
	require.Equal(t, writers-1, conflictCount)

	loaded, err := repo.GetByID(ctx, aggID)
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.GetVersion())
}

// TestEventSourcedRepository_ConcurrentSaveDifferentAggregates
// 并发保存不同聚合互不干扰，各自版本独立推进。
func TestEventSourcedRepository_ConcurrentSaveDifferentAggregates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRaceTestRepo(t)

	const aggregates = 16
	const eventsPerAgg = 4

	var wg sync.WaitGroup
	wg.Add(aggregates)
	for id := 1; id <= aggregates; id++ {
		aggID := int64(id)
		go func() {
			defer wg.Done()

			agg := newTestAggregate(aggID)
			for i := 0; i < eventsPerAgg; i++ {
				evt := &testDomainEvent{Typ: "TestUpdated", Data: "d"}
				require.NoError(t, agg.ApplyEvent(evt))
				agg.AddDomainEvent(evt)
			}
			require.NoError(t, repo.Save(ctx, agg))
		}()
	}
	wg.Wait()

	for id := 1; id <= aggregates; id++ {
		loaded, err := repo.GetByID(ctx, int64(id))
		require.NoError(t, err)
		require.Equal(t, int64(eventsPerAgg), loaded.GetVersion())
	}
}
