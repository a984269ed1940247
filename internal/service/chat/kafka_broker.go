// kafka_broker.go
// 多实例部署时的组事件广播：每个实例把本机产生的事件写入 Kafka，
// 同时消费全量事件流，把事件投递给本机在线的组成员
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// kafkaBroker 基于 Kafka 的 MessageBroker 实现
type kafkaBroker struct {
	client    *KafkaClient
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewKafkaBroker 创建 kafka 模式 broker
func NewKafkaBroker() MessageBroker {
	return &kafkaBroker{client: NewKafkaClient()}
}

// Publish 发布组事件
// key 用组 id，同组事件落在同一分区，保持投递顺序
func (b *kafkaBroker) Publish(event *GroupEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.SendMessage(context.Background(), []byte(event.GroupId), value)
}

// Start 启动消费循环
func (b *kafkaBroker) Start(deliver func(*GroupEvent)) {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error(fmt.Sprintf("kafka consumer panic: %v", r))
			}
		}()
		for {
			kafkaMessage, err := b.client.Consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				zap.L().Error(err.Error())
				continue // 读取失败，重试
			}

			var event GroupEvent
			if err := json.Unmarshal(kafkaMessage.Value, &event); err != nil {
				zap.L().Error(err.Error())
				continue // 反序列化失败，直接跳过
			}
			deliver(&event)
		}
	}()
	zap.L().Info("kafka 模式消息广播已启动")
}

// Close 停止消费并释放 Kafka 资源
func (b *kafkaBroker) Close() error {
	b.closeOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.client.Close()
	})
	return nil
}
