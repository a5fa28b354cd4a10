// Package memory 提供基于内存队列的消息传输实现
//
// 适用于单机部署、开发环境和测试场景。
package memory

import (
	"context"
	"fmt"
	"sync"

	"custman/logging"
	"custman/messaging"
)

// MemoryTransport 内存消息传输实现
//
// 特性:
//   - 基于内存队列的异步消息传输
//   - Worker 池模式处理消息
//   - 并发安全
//
// 注意：异步分发，handler 错误不会传播给发布者，仅记录日志。
type MemoryTransport struct {
	handlers    map[string][]messaging.IMessageHandler
	queue       chan messaging.IMessage
	queueSize   int
	workerCount int
	running     bool
	logger      logging.Logger
	mutex       sync.RWMutex
	stop        chan struct{}
	wg          sync.WaitGroup
}

// NewMemoryTransport 创建内存传输实例
//
// queueSize <= 0 时使用默认 1000，workerCount <= 0 时使用默认 4。
func NewMemoryTransport(queueSize, workerCount int) *MemoryTransport {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if workerCount <= 0 {
		workerCount = 4
	}
	return &MemoryTransport{
		handlers:    make(map[string][]messaging.IMessageHandler),
		queue:       make(chan messaging.IMessage, queueSize),
		queueSize:   queueSize,
		workerCount: workerCount,
		logger:      logging.ComponentLogger("transport.memory"),
	}
}

// Publish 发布消息到队列
func (t *MemoryTransport) Publish(ctx context.Context, message messaging.IMessage) error {
	t.mutex.RLock()
	running := t.running
	t.mutex.RUnlock()

	if !running {
		return fmt.Errorf("memory transport is not running")
	}

	select {
	case t.queue <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("message queue is full")
	}
}

// PublishAll 批量发布消息到队列
func (t *MemoryTransport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	if len(messages) == 0 {
		return nil
	}

	t.mutex.RLock()
	running := t.running
	t.mutex.RUnlock()

	if !running {
		return fmt.Errorf("memory transport is not running")
	}

	for _, message := range messages {
		select {
		case t.queue <- message:
		case <-ctx.Done():
			return ctx.Err()
		default:
			return fmt.Errorf("message queue is full")
		}
	}
	return nil
}

// Subscribe 注册消息处理器；"*" 订阅所有消息类型
func (t *MemoryTransport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handlers[messageType] = append(t.handlers[messageType], handler)
	return nil
}

// Unsubscribe 取消注册消息处理器
func (t *MemoryTransport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	handlers := t.handlers[messageType]
	for i, h := range handlers {
		if h == handler {
			t.handlers[messageType] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	if len(t.handlers[messageType]) == 0 {
		delete(t.handlers, messageType)
	}
	return nil
}

// Start 启动 Worker 池开始处理消息队列
func (t *MemoryTransport) Start(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.running {
		return fmt.Errorf("memory transport is already running")
	}
	t.running = true
	t.stop = make(chan struct{})

	for i := 0; i < t.workerCount; i++ {
		t.wg.Add(1)
		go t.worker(ctx)
	}
	return nil
}

// Close 停止 Worker 池；队列中未消费的消息被丢弃
func (t *MemoryTransport) Close() error {
	t.mutex.Lock()
	if !t.running {
		t.mutex.Unlock()
		return nil
	}
	t.running = false
	close(t.stop)
	t.mutex.Unlock()

	t.wg.Wait()
	return nil
}

// QueueDepth 返回当前队列深度（用于监控与测试）
func (t *MemoryTransport) QueueDepth() int {
	return len(t.queue)
}

func (t *MemoryTransport) worker(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-t.stop:
			return
		case <-ctx.Done():
			return
		case message := <-t.queue:
			t.dispatch(ctx, message)
		}
	}
}

// dispatch 分发消息到订阅的处理器：精确匹配 + 通配符("*")
func (t *MemoryTransport) dispatch(ctx context.Context, message messaging.IMessage) {
	messageType := message.GetType()

	t.mutex.RLock()
	exact := t.handlers[messageType]
	wildcard := t.handlers["*"]
	// 拷贝到新的切片，避免在读锁释放后被并发修改
	handlers := make([]messaging.IMessageHandler, 0, len(exact)+len(wildcard))
	handlers = append(handlers, exact...)
	handlers = append(handlers, wildcard...)
	t.mutex.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(ctx, message); err != nil {
			// 记录错误但继续处理其他处理器
			t.logger.Warn(ctx, "message handler failed",
				logging.String("message_type", messageType),
				logging.String("message_id", message.GetID()),
				logging.Error(err))
		}
	}
}

var _ messaging.Transport = (*MemoryTransport)(nil)
