package customer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"custman/errors"
)

func strPtr(s string) *string { return &s }

func validCreateFields() CreateFields {
	return CreateFields{
		FirstName:   "John",
		LastName:    "Doe",
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCustomer_Create(t *testing.T) {
	c := NewCustomer(1)
	require.Equal(t, StatusUninitialized, c.Status())

	fields := validCreateFields()
	fields.Email = strPtr("john@example.com")
	require.NoError(t, c.Create(fields))

	require.Equal(t, StatusActive, c.Status())
	require.Equal(t, "John", c.FirstName())
	require.Equal(t, "Doe", c.LastName())
	require.False(t, c.IsDeleted())
	require.NotNil(t, c.Email())
	require.Equal(t, "john@example.com", *c.Email())
	require.Nil(t, c.PhoneNumber())
	require.Equal(t, int64(1), c.GetVersion())

	events := c.GetUncommittedEvents()
	require.Len(t, events, 1)
	require.Equal(t, EventTypeCreated, events[0].EventType())
}

func TestCustomer_CreateTwiceConflicts(t *testing.T) {
	c := NewCustomer(1)
	require.NoError(t, c.Create(validCreateFields()))

	err := c.Create(validCreateFields())
	require.Error(t, err)
	require.True(t, errors.IsConflict(err))
	require.Len(t, c.GetUncommittedEvents(), 1)
}

func TestCustomer_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateFields)
	}{
		{"firstName为空", func(f *CreateFields) { f.FirstName = "" }},
		{"firstName仅空白", func(f *CreateFields) { f.FirstName = "   " }},
		{"lastName为空", func(f *CreateFields) { f.LastName = "" }},
		{"出生日期缺失", func(f *CreateFields) { f.DateOfBirth = time.Time{} }},
		{"出生日期在未来", func(f *CreateFields) { f.DateOfBirth = time.Now().Add(24 * time.Hour) }},
		{"邮箱格式错误", func(f *CreateFields) { f.Email = strPtr("not-an-email") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCustomer(1)
			fields := validCreateFields()
			tt.mutate(&fields)

			err := c.Create(fields)
			require.Error(t, err)
			require.True(t, errors.IsValidation(err))

			// 校验失败不产生事件，状态不变
			require.Equal(t, StatusUninitialized, c.Status())
			require.Empty(t, c.GetUncommittedEvents())
		})
	}
}

func TestCustomer_UpdatePartialMerge(t *testing.T) {
	c := NewCustomer(1)
	require.NoError(t, c.Create(validCreateFields()))
	c.MarkEventsAsCommitted()

	require.NoError(t, c.Update(UpdateFields{FirstName: strPtr("Johnny")}))

	require.Equal(t, "Johnny", c.FirstName())
	require.Equal(t, "Doe", c.LastName()) // 未修改
	require.Equal(t, int64(2), c.GetVersion())

	events := c.GetUncommittedEvents()
	require.Len(t, events, 1)
	evt, ok := events[0].(*UpdatedEvent)
	require.True(t, ok)
	require.NotNil(t, evt.FirstName)
	require.Nil(t, evt.LastName) // 事件仅携带被修改的字段
	require.Nil(t, evt.DateOfBirth)
}

func TestCustomer_UpdateEmptyIsNoop(t *testing.T) {
	c := NewCustomer(1)
	require.NoError(t, c.Create(validCreateFields()))
	c.MarkEventsAsCommitted()

	require.NoError(t, c.Update(UpdateFields{}))
	require.Empty(t, c.GetUncommittedEvents())
	require.Equal(t, int64(1), c.GetVersion())
}

func TestCustomer_UpdateValidatesMergedState(t *testing.T) {
	c := NewCustomer(1)
	require.NoError(t, c.Create(validCreateFields()))
	c.MarkEventsAsCommitted()

	// 合并后 firstName 为空，校验失败
	err := c.Update(UpdateFields{FirstName: strPtr("  ")})
	require.Error(t, err)
	require.True(t, errors.IsValidation(err))
	require.Equal(t, "John", c.FirstName())
	require.Empty(t, c.GetUncommittedEvents())
}

func TestCustomer_UpdateUninitialized(t *testing.T) {
	c := NewCustomer(1)
	err := c.Update(UpdateFields{FirstName: strPtr("Jane")})
	require.Error(t, err)
	require.True(t, errors.IsNotFound(err))
}

func TestCustomer_DeleteLifecycle(t *testing.T) {
	c := NewCustomer(1)
	require.NoError(t, c.Create(validCreateFields()))
	require.NoError(t, c.Delete())

	require.True(t, c.IsDeleted())
	require.Equal(t, StatusDeleted, c.Status())
	require.Equal(t, int64(2), c.GetVersion())

	// Deleted 为终态：update 与 delete 均冲突且不产生新事件
	before := len(c.GetUncommittedEvents())

	err := c.Update(UpdateFields{FirstName: strPtr("Jane")})
	require.Error(t, err)
	require.True(t, errors.IsConflict(err))

	err = c.Delete()
	require.Error(t, err)
	require.True(t, errors.IsConflict(err))

	require.Len(t, c.GetUncommittedEvents(), before)
}

func TestCustomer_ReplayRebuildsState(t *testing.T) {
	// 原始聚合：创建 -> 更新 -> 删除
	original := NewCustomer(1)
	fields := validCreateFields()
	fields.PhoneNumber = strPtr("13800138000")
	require.NoError(t, original.Create(fields))
	require.NoError(t, original.Update(UpdateFields{FirstName: strPtr("Johnny")}))
	require.NoError(t, original.Delete())

	events := original.GetUncommittedEvents()
	require.Len(t, events, 3)

	// 全新实例按序重放
	replayed := NewCustomer(1)
	for _, evt := range events {
		require.NoError(t, replayed.ApplyEvent(evt))
	}

	require.Equal(t, "Johnny", replayed.FirstName())
	require.Equal(t, "Doe", replayed.LastName())
	require.NotNil(t, replayed.PhoneNumber())
	require.Equal(t, "13800138000", *replayed.PhoneNumber())
	require.True(t, replayed.IsDeleted())
	require.Equal(t, StatusDeleted, replayed.Status())
	require.Equal(t, int64(3), replayed.GetVersion())
	// 重放不产生新的未提交事件
	require.Empty(t, replayed.GetUncommittedEvents())
}
