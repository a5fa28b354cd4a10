// Package customer 实现客户聚合及其事件溯源持久化
package customer

import (
	"encoding/json"
	"fmt"
	"time"

	"custman/domain"
	"custman/eventing"
)

// AggregateType 客户聚合类型名称
const AggregateType = "Customer"

// 客户事件类型（封闭集合）
const (
	EventTypeCreated = "CustomerCreated"
	EventTypeUpdated = "CustomerUpdated"
	EventTypeDeleted = "CustomerDeleted"
)

// ICustomerEvent 客户领域事件的封闭联合类型。
//
// isCustomerEvent 为非导出标记方法，保证事件种类在编译期封闭：
// 包外无法新增事件类型，switch 分支对三种事件天然穷尽。
type ICustomerEvent interface {
	domain.IDomainEvent
	isCustomerEvent()
}

// CreatedEvent 客户创建事件，携带完整初始状态
type CreatedEvent struct {
	CustomerID        int64     `json:"customerId"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	DateOfBirth       time.Time `json:"dateOfBirth"`
	PhoneNumber       *string   `json:"phoneNumber,omitempty"`
	Email             *string   `json:"email,omitempty"`
	BankAccountNumber *string   `json:"bankAccountNumber,omitempty"`
}

func (*CreatedEvent) EventType() string { return EventTypeCreated }
func (*CreatedEvent) isCustomerEvent()  {}

// UpdatedEvent 客户更新事件，仅携带被显式修改的字段。
// nil 表示“未修改”，与空字符串语义不同。
type UpdatedEvent struct {
	CustomerID        int64      `json:"customerId"`
	FirstName         *string    `json:"firstName,omitempty"`
	LastName          *string    `json:"lastName,omitempty"`
	DateOfBirth       *time.Time `json:"dateOfBirth,omitempty"`
	PhoneNumber       *string    `json:"phoneNumber,omitempty"`
	Email             *string    `json:"email,omitempty"`
	BankAccountNumber *string    `json:"bankAccountNumber,omitempty"`
}

func (*UpdatedEvent) EventType() string { return EventTypeUpdated }
func (*UpdatedEvent) isCustomerEvent()  {}

// DeletedEvent 客户删除事件
type DeletedEvent struct {
	CustomerID int64 `json:"customerId"`
}

func (*DeletedEvent) EventType() string { return EventTypeDeleted }
func (*DeletedEvent) isCustomerEvent()  {}

// 编译期断言：三种事件实现封闭联合
var (
	_ ICustomerEvent = (*CreatedEvent)(nil)
	_ ICustomerEvent = (*UpdatedEvent)(nil)
	_ ICustomerEvent = (*DeletedEvent)(nil)
)

// DecodeEvent 将存储信封中的载荷还原为具体的客户事件。
//
// SQL 存储读出的载荷为 map[string]any，通过一次 JSON 往返反序列化为
// 对应的事件类型；指针字段的 set/unset 语义在往返中保持不变。
func DecodeEvent(evt *eventing.Event) (domain.IDomainEvent, error) {
	raw, err := json.Marshal(evt.GetPayload())
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	var target ICustomerEvent
	switch evt.GetType() {
	case EventTypeCreated:
		target = &CreatedEvent{}
	case EventTypeUpdated:
		target = &UpdatedEvent{}
	case EventTypeDeleted:
		target = &DeletedEvent{}
	default:
		return nil, fmt.Errorf("unknown customer event type: %s", evt.GetType())
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", evt.GetType(), err)
	}
	return target, nil
}
