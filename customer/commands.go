package customer

import (
	"time"

	"custman/validation"
)

// CreateCustomerCommand 创建客户命令
type CreateCustomerCommand struct {
	FirstName         string
	LastName          string
	DateOfBirth       time.Time
	PhoneNumber       *string
	Email             *string
	BankAccountNumber *string
}

// Validate 前置校验：在分配 ID、构造聚合之前拦截明显非法的输入
func (c CreateCustomerCommand) Validate() error {
	if err := validation.ValidateRequired(c.FirstName, "firstName"); err != nil {
		return err
	}
	if err := validation.ValidateRequired(c.LastName, "lastName"); err != nil {
		return err
	}
	return validation.ValidateDateOfBirth(c.DateOfBirth)
}

// Fields 转换为聚合操作所需的字段
func (c CreateCustomerCommand) Fields() CreateFields {
	return CreateFields{
		FirstName:         c.FirstName,
		LastName:          c.LastName,
		DateOfBirth:       c.DateOfBirth,
		PhoneNumber:       c.PhoneNumber,
		Email:             c.Email,
		BankAccountNumber: c.BankAccountNumber,
	}
}

// UpdateCustomerCommand 更新客户命令，nil 字段表示不修改
type UpdateCustomerCommand struct {
	CustomerID        int64
	FirstName         *string
	LastName          *string
	DateOfBirth       *time.Time
	PhoneNumber       *string
	Email             *string
	BankAccountNumber *string
}

// AggregateID 实现命令接口
func (c UpdateCustomerCommand) AggregateID() int64 { return c.CustomerID }

// Validate 校验命令本身的合法性（字段级校验在聚合内针对合并状态执行）
func (c UpdateCustomerCommand) Validate() error {
	return validation.ValidatePositiveID(c.CustomerID, "customerId")
}

// Fields 转换为聚合操作所需的字段
func (c UpdateCustomerCommand) Fields() UpdateFields {
	return UpdateFields{
		FirstName:         c.FirstName,
		LastName:          c.LastName,
		DateOfBirth:       c.DateOfBirth,
		PhoneNumber:       c.PhoneNumber,
		Email:             c.Email,
		BankAccountNumber: c.BankAccountNumber,
	}
}

// DeleteCustomerCommand 删除客户命令
type DeleteCustomerCommand struct {
	CustomerID int64
}

// AggregateID 实现命令接口
func (c DeleteCustomerCommand) AggregateID() int64 { return c.CustomerID }

// Validate 校验命令本身的合法性
func (c DeleteCustomerCommand) Validate() error {
	return validation.ValidatePositiveID(c.CustomerID, "customerId")
}
