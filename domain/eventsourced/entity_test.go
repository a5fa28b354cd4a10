package eventsourced

import (
	"testing"

	"custman/domain"
)

// 测试用的简单事件
type TestEvent struct {
	eventType string
	data      string
}

func (e *TestEvent) EventType() string {
	return e.eventType
}

// 测试用的聚合
type TestAggregate struct {
	*EventSourcedAggregate
	Data string
}

func NewTestAggregate(id int64) *TestAggregate {
	return &TestAggregate{
		EventSourcedAggregate: NewEventSourcedAggregate(id, "TestAggregate"),
	}
}

func (a *TestAggregate) ApplyEvent(evt domain.IDomainEvent) error {
	// 先更新业务状态
	switch e := evt.(type) {
	case *TestEvent:
		a.Data = e.data
	}
	// 再调用基类递增版本
	return a.EventSourcedAggregate.ApplyEvent(evt)
}

// TestNewEventSourcedAggregate 测试聚合根创建
func TestNewEventSourcedAggregate(t *testing.T) {
	agg := NewEventSourcedAggregate(100, "TestAggregate")

	if agg.GetID() != 100 {
		t.Errorf("expected ID 100, got %d", agg.GetID())
	}
	if agg.GetVersion() != 0 {
		t.Errorf("expected version 0, got %d", agg.GetVersion())
	}
	if agg.GetAggregateType() != "TestAggregate" {
		t.Errorf("expected type TestAggregate, got %s", agg.GetAggregateType())
	}
	if len(agg.GetUncommittedEvents()) != 0 {
		t.Errorf("expected 0 uncommitted events, got %d", len(agg.GetUncommittedEvents()))
	}
}

// TestApplyEvent 测试事件应用
func TestApplyEvent(t *testing.T) {
	t.Run("基类ApplyEvent递增版本", func(t *testing.T) {
		agg := NewEventSourcedAggregate(1, "Test")
		evt := &TestEvent{eventType: "TestEvent", data: "test"}

		if err := agg.ApplyEvent(evt); err != nil {
			t.Fatalf("ApplyEvent failed: %v", err)
		}
		if agg.GetVersion() != 1 {
			t.Errorf("expected version 1 after first event, got %d", agg.GetVersion())
		}

		if err := agg.ApplyEvent(evt); err != nil {
			t.Fatalf("ApplyEvent failed: %v", err)
		}
		if agg.GetVersion() != 2 {
			t.Errorf("expected version 2 after second event, got %d", agg.GetVersion())
		}
	})

	t.Run("子类ApplyEvent更新业务状态", func(t *testing.T) {
		agg := NewTestAggregate(1)
		evt := &TestEvent{eventType: "TestEvent", data: "hello"}

		if err := agg.ApplyEvent(evt); err != nil {
			t.Fatalf("ApplyEvent failed: %v", err)
		}
		if agg.Data != "hello" {
			t.Errorf("expected data 'hello', got %s", agg.Data)
		}
		if agg.GetVersion() != 1 {
			t.Errorf("expected version 1, got %d", agg.GetVersion())
		}
	})
}

// TestUncommittedEvents 测试未提交事件缓冲
func TestUncommittedEvents(t *testing.T) {
	agg := NewTestAggregate(1)
	evt := &TestEvent{eventType: "TestEvent", data: "x"}

	if err := agg.ApplyEvent(evt); err != nil {
		t.Fatalf("ApplyEvent failed: %v", err)
	}
	agg.AddDomainEvent(evt)

	events := agg.GetUncommittedEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 uncommitted event, got %d", len(events))
	}

	// 返回的是副本，修改不应影响内部状态
	events[0] = nil
	if agg.GetUncommittedEvents()[0] == nil {
		t.Error("GetUncommittedEvents should return a copy")
	}

	agg.MarkEventsAsCommitted()
	if len(agg.GetUncommittedEvents()) != 0 {
		t.Error("expected no uncommitted events after commit")
	}
}
