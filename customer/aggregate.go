package customer

import (
	"fmt"
	"strings"
	"time"

	"custman/domain"
	deventsourced "custman/domain/eventsourced"
	"custman/errors"
	"custman/validation"
)

// Status 客户聚合的生命周期状态
type Status int

const (
	// StatusUninitialized 尚未创建（无任何事件）
	StatusUninitialized Status = iota
	// StatusActive 已创建且未删除
	StatusActive
	// StatusDeleted 已删除（终态）
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDeleted:
		return "deleted"
	default:
		return "uninitialized"
	}
}

// Customer 客户聚合根。
//
// 状态完全由事件重建：Uninitialized -> (create) -> Active -> (delete) -> Deleted。
// Deleted 为终态，之后的 update/delete 均返回冲突错误且不产生事件。
type Customer struct {
	*deventsourced.EventSourcedAggregate

	firstName         string
	lastName          string
	dateOfBirth       time.Time
	phoneNumber       *string
	email             *string
	bankAccountNumber *string
	isDeleted         bool
	status            Status
}

// NewCustomer 创建未初始化的客户聚合（用于重放或首次创建）
func NewCustomer(id int64) *Customer {
	return &Customer{
		EventSourcedAggregate: deventsourced.NewEventSourcedAggregate(id, AggregateType),
		status:                StatusUninitialized,
	}
}

// 状态访问器

func (c *Customer) FirstName() string          { return c.firstName }
func (c *Customer) LastName() string           { return c.lastName }
func (c *Customer) DateOfBirth() time.Time     { return c.dateOfBirth }
func (c *Customer) PhoneNumber() *string       { return c.phoneNumber }
func (c *Customer) Email() *string             { return c.email }
func (c *Customer) BankAccountNumber() *string { return c.bankAccountNumber }
func (c *Customer) IsDeleted() bool            { return c.isDeleted }
func (c *Customer) Status() Status             { return c.status }

// CreateFields 创建客户所需的字段
type CreateFields struct {
	FirstName         string
	LastName          string
	DateOfBirth       time.Time
	PhoneNumber       *string
	Email             *string
	BankAccountNumber *string
}

// UpdateFields 更新客户的字段，nil 表示不修改
type UpdateFields struct {
	FirstName         *string
	LastName          *string
	DateOfBirth       *time.Time
	PhoneNumber       *string
	Email             *string
	BankAccountNumber *string
}

// IsEmpty 判断是否没有任何字段需要修改
func (f UpdateFields) IsEmpty() bool {
	return f.FirstName == nil && f.LastName == nil && f.DateOfBirth == nil &&
		f.PhoneNumber == nil && f.Email == nil && f.BankAccountNumber == nil
}

// Create 创建客户，仅允许在 Uninitialized 状态下调用。
// 校验失败不产生事件，聚合状态保持不变。
func (c *Customer) Create(fields CreateFields) error {
	if c.status != StatusUninitialized {
		return errors.NewConflictError(fmt.Sprintf("客户 %d 已存在", c.GetID()))
	}
	if err := validateState(fields.FirstName, fields.LastName, fields.DateOfBirth, fields.Email); err != nil {
		return err
	}
	return c.applyAndRecord(&CreatedEvent{
		CustomerID:        c.GetID(),
		FirstName:         strings.TrimSpace(fields.FirstName),
		LastName:          strings.TrimSpace(fields.LastName),
		DateOfBirth:       fields.DateOfBirth,
		PhoneNumber:       fields.PhoneNumber,
		Email:             fields.Email,
		BankAccountNumber: fields.BankAccountNumber,
	})
}

// Update 更新客户，仅允许在 Active 状态下调用。
//
// 所有字段均未设置时为无操作，不产生事件。
// 校验针对合并后的状态：当前值被显式提供的字段覆盖后必须仍然合法。
func (c *Customer) Update(fields UpdateFields) error {
	switch c.status {
	case StatusUninitialized:
		return errors.NewNotFoundError(fmt.Sprintf("客户 %d 不存在", c.GetID()))
	case StatusDeleted:
		return errors.NewConflictError(fmt.Sprintf("客户 %d 已删除，无法更新", c.GetID()))
	}

	if fields.IsEmpty() {
		return nil
	}

	// 针对合并后的状态做校验
	firstName := c.firstName
	if fields.FirstName != nil {
		firstName = *fields.FirstName
	}
	lastName := c.lastName
	if fields.LastName != nil {
		lastName = *fields.LastName
	}
	dateOfBirth := c.dateOfBirth
	if fields.DateOfBirth != nil {
		dateOfBirth = *fields.DateOfBirth
	}
	email := c.email
	if fields.Email != nil {
		email = fields.Email
	}
	if err := validateState(firstName, lastName, dateOfBirth, email); err != nil {
		return err
	}

	evt := &UpdatedEvent{
		CustomerID:        c.GetID(),
		FirstName:         trimPtr(fields.FirstName),
		LastName:          trimPtr(fields.LastName),
		DateOfBirth:       fields.DateOfBirth,
		PhoneNumber:       fields.PhoneNumber,
		Email:             fields.Email,
		BankAccountNumber: fields.BankAccountNumber,
	}
	return c.applyAndRecord(evt)
}

// Delete 删除客户，仅允许在 Active 状态下调用。Deleted 为终态。
func (c *Customer) Delete() error {
	switch c.status {
	case StatusUninitialized:
		return errors.NewNotFoundError(fmt.Sprintf("客户 %d 不存在", c.GetID()))
	case StatusDeleted:
		return errors.NewConflictError(fmt.Sprintf("客户 %d 已删除", c.GetID()))
	}
	return c.applyAndRecord(&DeletedEvent{CustomerID: c.GetID()})
}

// ApplyEvent 应用事件到聚合状态（命令与重放共用同一套变更逻辑）。
func (c *Customer) ApplyEvent(evt domain.IDomainEvent) error {
	ce, ok := evt.(ICustomerEvent)
	if !ok {
		return fmt.Errorf("unexpected event type for customer aggregate: %T", evt)
	}
	switch e := ce.(type) {
	case *CreatedEvent:
		c.firstName = e.FirstName
		c.lastName = e.LastName
		c.dateOfBirth = e.DateOfBirth
		c.phoneNumber = e.PhoneNumber
		c.email = e.Email
		c.bankAccountNumber = e.BankAccountNumber
		c.isDeleted = false
		c.status = StatusActive
	case *UpdatedEvent:
		// 部分合并：仅应用事件中显式携带的字段
		if e.FirstName != nil {
			c.firstName = *e.FirstName
		}
		if e.LastName != nil {
			c.lastName = *e.LastName
		}
		if e.DateOfBirth != nil {
			c.dateOfBirth = *e.DateOfBirth
		}
		if e.PhoneNumber != nil {
			c.phoneNumber = e.PhoneNumber
		}
		if e.Email != nil {
			c.email = e.Email
		}
		if e.BankAccountNumber != nil {
			c.bankAccountNumber = e.BankAccountNumber
		}
	case *DeletedEvent:
		c.isDeleted = true
		c.status = StatusDeleted
	}
	return c.EventSourcedAggregate.ApplyEvent(evt)
}

// applyAndRecord 应用事件并记录为未提交
func (c *Customer) applyAndRecord(evt ICustomerEvent) error {
	if err := c.ApplyEvent(evt); err != nil {
		return err
	}
	c.AddDomainEvent(evt)
	return nil
}

// validateState 校验聚合的必填字段约束。
// create 与 update 共用：update 时传入合并后的值。
func validateState(firstName, lastName string, dateOfBirth time.Time, email *string) error {
	if err := validation.ValidateRequired(firstName, "firstName"); err != nil {
		return err
	}
	if err := validation.ValidateRequired(lastName, "lastName"); err != nil {
		return err
	}
	if err := validation.ValidateDateOfBirth(dateOfBirth); err != nil {
		return err
	}
	if email != nil && *email != "" {
		if err := validation.ValidateEmail(*email); err != nil {
			return err
		}
	}
	return nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}
