// kafka_client.go
// 封装 Kafka 底层连接 (Writer/Reader)，纯技术组件，不包含聊天业务逻辑
package chat

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	myconfig "dnd_chat_server/internal/config"
)

// KafkaClient Kafka 客户端结构
type KafkaClient struct {
	Producer *kafka.Writer // 生产者：负责写入组事件
	Consumer *kafka.Reader // 消费者：负责读取组事件
}

// NewKafkaClient 根据配置创建 Kafka 客户端
// Balancer 用 Hash 按 key（组 id）选分区，保证同组事件的分区内有序。
// 消费端不带 GroupID：每个实例都要读到全量事件，各自投递本机成员
func NewKafkaClient() *KafkaClient {
	kafkaConfig := myconfig.GetConfig().KafkaConfig
	k := &KafkaClient{}
	k.Producer = &kafka.Writer{
		Addr:                   kafka.TCP(kafkaConfig.HostPort),
		Topic:                  kafkaConfig.ChatTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           kafkaConfig.Timeout * time.Second,
		RequiredAcks:           kafka.RequireNone,
		AllowAutoTopicCreation: false,
	}
	k.Consumer = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{kafkaConfig.HostPort},
		Topic:       kafkaConfig.ChatTopic,
		Partition:   kafkaConfig.Partition,
		StartOffset: kafka.LastOffset,
	})
	return k
}

// SendMessage 向 Kafka 写入一条事件
func (k *KafkaClient) SendMessage(ctx context.Context, key, value []byte) error {
	return k.Producer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// Close 关闭生产者和消费者
func (k *KafkaClient) Close() {
	if err := k.Producer.Close(); err != nil {
		zap.L().Error(err.Error())
	}
	if err := k.Consumer.Close(); err != nil {
		zap.L().Error(err.Error())
	}
}
