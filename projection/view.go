// Package projection 维护客户读模型：订阅客户事件，将其投影到 SQL 表，
// 并为查询侧提供带缓存的读取接口。
//
// 读模型是最终一致的：事件投递为 at-least-once，投影器通过版本号
// 保证重复事件的幂等应用。
package projection

import (
	"time"
)

// CustomerView 客户读模型行
type CustomerView struct {
	ID                int64     `json:"id"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	DateOfBirth       time.Time `json:"dateOfBirth"`
	PhoneNumber       *string   `json:"phoneNumber,omitempty"`
	Email             *string   `json:"email,omitempty"`
	BankAccountNumber *string   `json:"bankAccountNumber,omitempty"`
	IsDeleted         bool      `json:"isDeleted"`
	Version           uint64    `json:"version"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
