package customer

import (
	appes "custman/app/eventsourced"
	deventsourced "custman/domain/eventsourced"
	"custman/eventing/bus"
	"custman/eventing/store"
)

// NewRepository 组装客户聚合仓储：
// 事件存储 + 可选事件总线 -> 领域事件存储适配器 -> 事件溯源仓储。
//
// eventBus 为 nil 时不发布事件，仅做持久化与重放。
func NewRepository(eventStore store.IEventStore, eventBus bus.IEventBus) (IRepository, error) {
	adapter, err := appes.NewDomainEventStore(appes.DomainEventStoreOptions{
		AggregateType: AggregateType,
		EventStore:    eventStore,
		EventBus:      eventBus,
		PublishEvents: eventBus != nil,
		Decoder:       DecodeEvent,
	})
	if err != nil {
		return nil, err
	}
	return deventsourced.NewEventSourcedRepository(AggregateType, NewCustomer, adapter)
}
