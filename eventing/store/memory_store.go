package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"custman/eventing"
)

// MemoryEventStore 一个简单的内存实现，用于测试与单机场景
type MemoryEventStore struct {
	mu sync.RWMutex
	// events 按聚合 ID 维度组织，聚合内按版本号有序
	events map[int64][]eventing.Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		events: make(map[int64][]eventing.Event),
	}
}

func (m *MemoryEventStore) AppendEvents(ctx context.Context, aggregateID int64, events []eventing.IStorableEvent, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	currentVersion := m.getAggregateVersionUnsafe(aggregateID)
	if currentVersion != expectedVersion {
		return eventing.NewConcurrencyError(aggregateID, expectedVersion, currentVersion)
	}

	for i, e := range events {
		if err := e.Validate(); err != nil {
			return eventing.NewInvalidEventError(e.GetID(), e.GetType(), err.Error())
		}
		expectedEventVersion := expectedVersion + uint64(i) + 1
		if e.GetVersion() != expectedEventVersion {
			return eventing.NewInvalidEventError(e.GetID(), e.GetType(),
				fmt.Sprintf("event version not sequential: expected %d, got %d", expectedEventVersion, e.GetVersion()))
		}
	}

	if m.events[aggregateID] == nil {
		m.events[aggregateID] = make([]eventing.Event, 0, len(events))
	}
	for _, e := range events {
		// 安全类型转换：从 IStorableEvent 到 Event
		event, ok := e.(*eventing.Event)
		if !ok {
			return eventing.NewInvalidEventError(e.GetID(), e.GetType(),
				fmt.Sprintf("unsupported event type: %T, expected *eventing.Event", e))
		}
		m.events[aggregateID] = append(m.events[aggregateID], *event)
	}
	return nil
}

func (m *MemoryEventStore) LoadEvents(ctx context.Context, aggregateID int64, afterVersion uint64) ([]eventing.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	aggregateEvents, ok := m.events[aggregateID]
	if !ok || len(aggregateEvents) == 0 {
		return []eventing.Event{}, nil
	}
	res := make([]eventing.Event, 0, len(aggregateEvents))
	for _, e := range aggregateEvents {
		if e.GetVersion() > afterVersion {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *MemoryEventStore) StreamEvents(ctx context.Context, from time.Time) ([]eventing.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []eventing.Event
	for _, arr := range m.events {
		for _, e := range arr {
			if !from.IsZero() && e.GetTimestamp().Before(from) {
				continue
			}
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].GetTimestamp().Equal(res[j].GetTimestamp()) {
			return res[i].GetID() < res[j].GetID()
		}
		return res[i].GetTimestamp().Before(res[j].GetTimestamp())
	})
	return res, nil
}

// HasAggregate 检查聚合是否存在
func (m *MemoryEventStore) HasAggregate(ctx context.Context, aggregateID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events, ok := m.events[aggregateID]
	return ok && len(events) > 0, nil
}

// GetAggregateVersion 返回聚合当前版本
func (m *MemoryEventStore) GetAggregateVersion(ctx context.Context, aggregateID int64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAggregateVersionUnsafe(aggregateID), nil
}

func (m *MemoryEventStore) getAggregateVersionUnsafe(aggregateID int64) uint64 {
	aggregateEvents, exists := m.events[aggregateID]
	if !exists || len(aggregateEvents) == 0 {
		return 0
	}
	return aggregateEvents[len(aggregateEvents)-1].GetVersion()
}

// 确认实现接口
var (
	_ IEventStore         = (*MemoryEventStore)(nil)
	_ IAggregateInspector = (*MemoryEventStore)(nil)
)
