// Package eventsourced 将 eventing 基础设施适配为领域层的事件存储抽象
package eventsourced

import (
	"context"
	"fmt"

	"custman/domain"
	deventsourced "custman/domain/eventsourced"
	"custman/eventing"
	"custman/eventing/bus"
	"custman/eventing/store"
	"custman/logging"
)

// EventDecoder 将存储信封中的事件载荷还原为领域事件。
//
// 从 SQL 存储读出的载荷是 map[string]any，需要按事件类型反序列化为具体的
// 领域事件类型后才能被聚合的 ApplyEvent 消费。
type EventDecoder func(evt *eventing.Event) (domain.IDomainEvent, error)

// DomainEventStoreOptions 配置领域层 IEventStore 的基础设施适配。
type DomainEventStoreOptions struct {
	AggregateType string
	EventStore    store.IEventStore
	EventBus      bus.IEventBus
	PublishEvents bool
	Decoder       EventDecoder
	Logger        logging.Logger
}

// DomainEventStore 将 eventing/store.IEventStore + EventBus
// 适配为领域层的 deventsourced.IEventStore。
//
// 事件发布采用 fire-and-forget 语义：持久化成功后尽力发布，
// 发布失败只记录日志，不影响命令结果。订阅方需自行容忍
// at-least-once 投递带来的重复事件。
type DomainEventStore struct {
	aggregateType string
	eventStore    store.IEventStore
	eventBus      bus.IEventBus
	publishEvents bool
	decoder       EventDecoder
	logger        logging.Logger
}

// NewDomainEventStore 创建领域层 IEventStore 的基础设施实现。
func NewDomainEventStore(opts DomainEventStoreOptions) (*DomainEventStore, error) {
	if opts.AggregateType == "" {
		return nil, fmt.Errorf("aggregate type cannot be empty")
	}
	if opts.EventStore == nil {
		return nil, fmt.Errorf("event store cannot be nil")
	}
	adapter := &DomainEventStore{
		aggregateType: opts.AggregateType,
		eventStore:    opts.EventStore,
		eventBus:      opts.EventBus,
		publishEvents: opts.PublishEvents,
		decoder:       opts.Decoder,
		logger:        opts.Logger,
	}
	if adapter.logger == nil {
		adapter.logger = logging.ComponentLogger("app.eventsourced.domain_event_store").
			WithFields(logging.String("aggregate_type", opts.AggregateType))
	}
	return adapter, nil
}

// AppendEvents 将领域事件包装为存储信封并追加到事件存储中。
//
// 事件版本从 expectedVersion+1 起连续分配，与乐观锁检查共同保证
// 聚合事件流的版本无空洞。
func (a *DomainEventStore) AppendEvents(ctx context.Context, aggregateID int64, events []domain.IDomainEvent, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}

	storable := make([]eventing.IStorableEvent, 0, len(events))
	published := make([]eventing.IEvent, 0, len(events))

	for i, de := range events {
		if de == nil {
			return fmt.Errorf("domain event cannot be nil at index %d", i)
		}
		eventType := de.EventType()
		if eventType == "" {
			return fmt.Errorf("domain event type cannot be empty: %T", de)
		}
		version := expectedVersion + uint64(i) + 1
		evt := eventing.NewDomainEvent(aggregateID, a.aggregateType, eventType, version, de)
		storable = append(storable, evt)
		published = append(published, evt)
	}

	if err := a.eventStore.AppendEvents(ctx, aggregateID, storable, expectedVersion); err != nil {
		return err
	}

	// fire-and-forget 发布：失败只记录，不回滚已持久化的事件
	if a.publishEvents && a.eventBus != nil {
		if err := a.eventBus.PublishEvents(ctx, published); err != nil {
			a.logger.Warn(ctx, "failed to publish domain events",
				logging.Int64("aggregate_id", aggregateID),
				logging.Int("event_count", len(published)),
				logging.Error(err))
		}
	}

	return nil
}

// RestoreAggregate 重放事件流恢复聚合状态。
func (a *DomainEventStore) RestoreAggregate(ctx context.Context, aggregate deventsourced.IEventSourcedAggregate) (uint64, error) {
	if aggregate == nil {
		return 0, fmt.Errorf("aggregate cannot be nil")
	}

	events, err := a.eventStore.LoadEvents(ctx, aggregate.GetID(), 0)
	if err != nil {
		return 0, err
	}

	for i := range events {
		evt := events[i]
		domainEvt, err := a.toDomainEvent(&evt)
		if err != nil {
			return 0, err
		}
		if err := aggregate.ApplyEvent(domainEvt); err != nil {
			return 0, fmt.Errorf("apply event failed: %w", err)
		}
	}
	aggregate.MarkEventsAsCommitted()

	if len(events) > 0 {
		return events[len(events)-1].Version, nil
	}
	return 0, nil
}

// toDomainEvent 还原领域事件：内存存储的载荷本身就是领域事件，
// SQL 存储的载荷需经 Decoder 反序列化。
func (a *DomainEventStore) toDomainEvent(evt *eventing.Event) (domain.IDomainEvent, error) {
	payload := evt.GetPayload()
	if de, ok := payload.(domain.IDomainEvent); ok {
		return de, nil
	}
	if a.decoder != nil {
		return a.decoder(evt)
	}
	return nil, fmt.Errorf("event payload does not implement IDomainEvent and no decoder configured: %T", payload)
}

// Exists 检查聚合是否存在。
func (a *DomainEventStore) Exists(ctx context.Context, aggregateID int64) (bool, error) {
	if inspector, ok := a.eventStore.(store.IAggregateInspector); ok {
		return inspector.HasAggregate(ctx, aggregateID)
	}
	events, err := a.eventStore.LoadEvents(ctx, aggregateID, 0)
	if err != nil {
		return false, err
	}
	return len(events) > 0, nil
}

// GetAggregateVersion 获取聚合当前版本。
func (a *DomainEventStore) GetAggregateVersion(ctx context.Context, aggregateID int64) (uint64, error) {
	if inspector, ok := a.eventStore.(store.IAggregateInspector); ok {
		return inspector.GetAggregateVersion(ctx, aggregateID)
	}
	events, err := a.eventStore.LoadEvents(ctx, aggregateID, 0)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	return events[len(events)-1].Version, nil
}

var _ deventsourced.IEventStore = (*DomainEventStore)(nil)
