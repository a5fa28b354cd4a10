package eventing

import (
	"errors"
	"fmt"
)

// 事件存储错误代码
const (
	ErrCodeStoreFailed      = "STORE_FAILED"
	ErrCodeInvalidEvent     = "INVALID_EVENT"
	ErrCodeSerializeFailed  = "SERIALIZE_FAILED"
	ErrCodeAggregateMissing = "AGGREGATE_NOT_FOUND"
)

// EventStoreError 事件存储错误基类
type EventStoreError struct {
	Code      string
	Message   string
	Cause     error
	EventID   string
	EventType string
}

func (e *EventStoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EventStoreError) Unwrap() error { return e.Cause }

// ConcurrencyError 并发冲突错误
//
// 这是乐观锁检查失败时的最终业务错误形态，不包裹下层错误；
// 调用方应通过 IsConcurrencyError 或 errors.As 识别并发冲突。
type ConcurrencyError struct {
	AggregateID     int64
	ExpectedVersion uint64
	ActualVersion   uint64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict: aggregate %d expected version %d, actual version %d",
		e.AggregateID, e.ExpectedVersion, e.ActualVersion)
}

func NewConcurrencyError(aggregateID int64, expected, actual uint64) *ConcurrencyError {
	return &ConcurrencyError{AggregateID: aggregateID, ExpectedVersion: expected, ActualVersion: actual}
}

// IsConcurrencyError 判断是否为版本冲突
func IsConcurrencyError(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

var (
	ErrAggregateNotFound = &EventStoreError{Code: ErrCodeAggregateMissing, Message: "aggregate not found"}
)

func NewStoreFailedError(message string, cause error) *EventStoreError {
	return &EventStoreError{Code: ErrCodeStoreFailed, Message: message, Cause: cause}
}

func NewInvalidEventError(eventID, eventType, message string) *EventStoreError {
	return &EventStoreError{Code: ErrCodeInvalidEvent, Message: message, EventID: eventID, EventType: eventType}
}

// IsStoreFailed 判断是否为底层存储 I/O 失败
func IsStoreFailed(err error) bool {
	var se *EventStoreError
	if errors.As(err, &se) {
		return se.Code == ErrCodeStoreFailed
	}
	return false
}
