package store

import (
	"context"
	"time"

	"custman/eventing"
)

// IEventStore 定义事件存储的核心接口（最小化设计）
//
// 事件存储是事件溯源架构的核心组件，负责持久化和检索领域事件。
// 该接口遵循最小化原则，仅包含必需的方法。
//
// 核心方法：
//   - AppendEvents: 追加事件到聚合的事件流，支持乐观锁并发控制
//   - LoadEvents: 加载聚合的事件历史，支持增量加载
//   - StreamEvents: 流式读取事件，用于事件重放和投影更新
//
// 最佳实践：
//   - 实现应保证事件的原子性和持久性（ACID）
//   - 使用乐观锁（expectedVersion）防止并发冲突
//   - 版本检查与写入必须原子完成：同一期望版本的并发追加只允许一个成功，
//     其余（包括底层唯一键冲突）一律返回 ConcurrencyError，由调用方重载重试
type IEventStore interface {
	// AppendEvents 追加事件到指定聚合的事件流
	//
	// 参数：
	//   - ctx: 上下文，用于超时控制和取消
	//   - aggregateID: 聚合根ID
	//   - events: 待追加的事件列表，版本号必须从 expectedVersion+1 起连续递增
	//   - expectedVersion:
	//       - 表示当前持久化事件流的“上一次已提交版本号”
	//       - 0 表示新聚合（尚无任何事件被持久化）
	//       - 实现应将其与存储中的当前版本做精确比较，用于乐观锁控制
	//
	// 返回：
	//   - error: 版本冲突返回 ConcurrencyError，其他错误返回 EventStoreError
	AppendEvents(ctx context.Context, aggregateID int64, events []eventing.IStorableEvent, expectedVersion uint64) error

	// LoadEvents 加载聚合的事件历史
	//
	// 参数：
	//   - ctx: 上下文
	//   - aggregateID: 聚合根ID
	//   - afterVersion: 起始版本号（不包含该版本），0表示从头加载
	//
	// 返回：
	//   - []Event: 事件列表，按版本号升序排列
	//   - error: 加载失败时返回错误
	LoadEvents(ctx context.Context, aggregateID int64, afterVersion uint64) ([]eventing.Event, error)

	// StreamEvents 流式读取指定时间之后的所有事件
	//
	// 用于事件重放、投影更新等场景。
	//
	// 参数：
	//   - ctx: 上下文
	//   - fromTime: 起始时间（包含），零值表示读取全部
	//
	// 返回：
	//   - []Event: 事件列表，按时间戳升序排列
	//   - error: 读取失败时返回错误
	StreamEvents(ctx context.Context, fromTime time.Time) ([]eventing.Event, error)
}

// IAggregateInspector 定义聚合检查接口（可选扩展）
//
// 提供聚合存在性检查和版本查询功能，用于优化某些业务场景。
type IAggregateInspector interface {
	// HasAggregate 检查指定聚合是否存在
	HasAggregate(ctx context.Context, aggregateID int64) (bool, error)

	// GetAggregateVersion 获取聚合的当前版本号，0 表示聚合不存在
	GetAggregateVersion(ctx context.Context, aggregateID int64) (uint64, error)
}
