package eventsourced

import (
	"context"
	"testing"

	"custman/domain"
)

// fakeEventStore 记录追加调用的领域层事件存储桩
type fakeEventStore struct {
	appended        []domain.IDomainEvent
	expectedVersion uint64
	restoreEvents   []domain.IDomainEvent
	exists          bool
	version         uint64
}

func (f *fakeEventStore) AppendEvents(ctx context.Context, aggregateID int64, events []domain.IDomainEvent, expectedVersion uint64) error {
	f.appended = append(f.appended, events...)
	f.expectedVersion = expectedVersion
	return nil
}

func (f *fakeEventStore) RestoreAggregate(ctx context.Context, aggregate IEventSourcedAggregate) (uint64, error) {
	for _, e := range f.restoreEvents {
		if err := aggregate.ApplyEvent(e); err != nil {
			return 0, err
		}
	}
	aggregate.MarkEventsAsCommitted()
	return uint64(len(f.restoreEvents)), nil
}

func (f *fakeEventStore) Exists(ctx context.Context, aggregateID int64) (bool, error) {
	return f.exists, nil
}

func (f *fakeEventStore) GetAggregateVersion(ctx context.Context, aggregateID int64) (uint64, error) {
	return f.version, nil
}

func newTestRepo(t *testing.T, store IEventStore) *EventSourcedRepository[*TestAggregate] {
	t.Helper()
	repo, err := NewEventSourcedRepository("TestAggregate", NewTestAggregate, store)
	if err != nil {
		t.Fatalf("NewEventSourcedRepository: %v", err)
	}
	return repo
}

func TestEventSourcedRepository_SaveComputesExpectedVersion(t *testing.T) {
	store := &fakeEventStore{}
	repo := newTestRepo(t, store)

	agg := NewTestAggregate(1)
	// 模拟已持久化两个事件后的聚合：版本 2，无未提交事件
	for i := 0; i < 2; i++ {
		if err := agg.ApplyEvent(&TestEvent{eventType: "TestEvent"}); err != nil {
			t.Fatal(err)
		}
	}

	// 再应用并记录一个新事件：版本 3，一个未提交事件
	evt := &TestEvent{eventType: "TestEvent", data: "new"}
	if err := agg.ApplyEvent(evt); err != nil {
		t.Fatal(err)
	}
	agg.AddDomainEvent(evt)

	if err := repo.Save(context.Background(), agg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if store.expectedVersion != 2 {
		t.Errorf("expected version base 2, got %d", store.expectedVersion)
	}
	if len(store.appended) != 1 {
		t.Errorf("expected 1 appended event, got %d", len(store.appended))
	}
	if len(agg.GetUncommittedEvents()) != 0 {
		t.Error("events should be marked committed after Save")
	}
}

func TestEventSourcedRepository_SaveNoEventsIsNoop(t *testing.T) {
	store := &fakeEventStore{}
	repo := newTestRepo(t, store)

	if err := repo.Save(context.Background(), NewTestAggregate(1)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(store.appended) != 0 {
		t.Error("no events should have been appended")
	}
}

func TestEventSourcedRepository_GetByIDRestoresState(t *testing.T) {
	store := &fakeEventStore{
		restoreEvents: []domain.IDomainEvent{
			&TestEvent{eventType: "TestEvent", data: "a"},
			&TestEvent{eventType: "TestEvent", data: "b"},
		},
	}
	repo := newTestRepo(t, store)

	agg, err := repo.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if agg.Data != "b" {
		t.Errorf("expected data 'b', got %s", agg.Data)
	}
	if agg.GetVersion() != 2 {
		t.Errorf("expected version 2, got %d", agg.GetVersion())
	}
}
