package projection

import (
	"context"
	"fmt"
	"time"

	"custman/customer"
	"custman/eventing"
	"custman/eventing/bus"
	"custman/eventing/store"
	"custman/logging"
	"custman/messaging"
)

// CustomerProjector 客户事件投影器。
//
// 订阅三种客户事件并将其应用到读模型表。事件投递为 at-least-once，
// 投影器以版本号做幂等保护：只应用版本号大于已投影版本的事件。
type CustomerProjector struct {
	readModel *ReadModel
	logger    logging.Logger
}

// NewCustomerProjector 创建客户投影器
func NewCustomerProjector(readModel *ReadModel) *CustomerProjector {
	return &CustomerProjector{
		readModel: readModel,
		logger:    logging.ComponentLogger("projection.customer"),
	}
}

// GetHandlerName 返回处理器名称
func (p *CustomerProjector) GetHandlerName() string { return "customer-projector" }

// Type 实现 messaging.IMessageHandler
func (p *CustomerProjector) Type() string { return "customer-projector" }

// GetEventTypes 返回订阅的事件类型
func (p *CustomerProjector) GetEventTypes() []string {
	return []string{
		customer.EventTypeCreated,
		customer.EventTypeUpdated,
		customer.EventTypeDeleted,
	}
}

// Handle 实现 messaging.IMessageHandler
func (p *CustomerProjector) Handle(ctx context.Context, message messaging.IMessage) error {
	evt, ok := message.(eventing.IEvent)
	if !ok {
		return fmt.Errorf("message is not an event: %T", message)
	}
	return p.HandleEvent(ctx, evt)
}

// HandleEvent 应用单个事件到读模型
func (p *CustomerProjector) HandleEvent(ctx context.Context, evt eventing.IEvent) error {
	envelope, ok := evt.(*eventing.Event)
	if !ok {
		return fmt.Errorf("unexpected event envelope type: %T", evt)
	}
	return p.apply(ctx, envelope)
}

// Rebuild 从事件存储重放全部客户事件，重建读模型。
// 调用方应确保重建期间没有并发投影写入。
func (p *CustomerProjector) Rebuild(ctx context.Context, eventStore store.IEventStore) error {
	events, err := eventStore.StreamEvents(ctx, time.Time{})
	if err != nil {
		return err
	}
	for i := range events {
		if events[i].AggregateType != customer.AggregateType {
			continue
		}
		if err := p.apply(ctx, &events[i]); err != nil {
			return err
		}
	}
	p.logger.Info(ctx, "read model rebuilt", logging.Int("event_count", len(events)))
	return nil
}

func (p *CustomerProjector) apply(ctx context.Context, envelope *eventing.Event) error {
	// 幂等保护：跳过已投影的版本
	current, err := p.readModel.currentVersion(ctx, envelope.AggregateID)
	if err != nil {
		return err
	}
	if envelope.Version <= current {
		p.logger.Debug(ctx, "skip already projected event",
			logging.Int64("customer_id", envelope.AggregateID),
			logging.Uint64("version", envelope.Version))
		return nil
	}

	decoded, err := customer.DecodeEvent(envelope)
	if err != nil {
		return err
	}

	switch e := decoded.(type) {
	case *customer.CreatedEvent:
		return p.readModel.upsert(ctx, &CustomerView{
			ID:                e.CustomerID,
			FirstName:         e.FirstName,
			LastName:          e.LastName,
			DateOfBirth:       e.DateOfBirth,
			PhoneNumber:       e.PhoneNumber,
			Email:             e.Email,
			BankAccountNumber: e.BankAccountNumber,
			Version:           envelope.Version,
			UpdatedAt:         envelope.GetTimestamp(),
		})
	case *customer.UpdatedEvent:
		view, err := p.readModel.GetByID(ctx, e.CustomerID)
		if err != nil {
			return err
		}
		merged := *view
		if e.FirstName != nil {
			merged.FirstName = *e.FirstName
		}
		if e.LastName != nil {
			merged.LastName = *e.LastName
		}
		if e.DateOfBirth != nil {
			merged.DateOfBirth = *e.DateOfBirth
		}
		if e.PhoneNumber != nil {
			merged.PhoneNumber = e.PhoneNumber
		}
		if e.Email != nil {
			merged.Email = e.Email
		}
		if e.BankAccountNumber != nil {
			merged.BankAccountNumber = e.BankAccountNumber
		}
		merged.Version = envelope.Version
		merged.UpdatedAt = envelope.GetTimestamp()
		return p.readModel.upsert(ctx, &merged)
	case *customer.DeletedEvent:
		view, err := p.readModel.GetByID(ctx, e.CustomerID)
		if err != nil {
			return err
		}
		deleted := *view
		deleted.IsDeleted = true
		deleted.Version = envelope.Version
		deleted.UpdatedAt = envelope.GetTimestamp()
		return p.readModel.upsert(ctx, &deleted)
	default:
		return fmt.Errorf("unhandled customer event type: %s", envelope.GetType())
	}
}

var _ bus.IEventHandler = (*CustomerProjector)(nil)
