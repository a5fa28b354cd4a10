package messaging

import (
	"context"
)

// Transport 消息传输接口
//
// 传输层只负责消息的投递与订阅分发；消息的持久化语义由各实现自行决定
// （内存队列不持久化，JetStream/Redis Streams 由服务端持久化）。
type Transport interface {
	Publish(ctx context.Context, message IMessage) error
	PublishAll(ctx context.Context, messages []IMessage) error
	Subscribe(messageType string, handler IMessageHandler) error
	Unsubscribe(messageType string, handler IMessageHandler) error
	Start(ctx context.Context) error
	Close() error
}
