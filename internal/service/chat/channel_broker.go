package chat

import (
	"sync"

	"go.uber.org/zap"

	"dnd_chat_server/pkg/constants"
)

// channelBroker 单机模式的组事件广播
// 一条带缓冲的 channel 串起发布和投递，保证同组事件按发布顺序投递
type channelBroker struct {
	events    chan *GroupEvent
	closeOnce sync.Once
	done      chan struct{}
}

// NewChannelBroker 创建单机模式 broker
func NewChannelBroker() MessageBroker {
	return &channelBroker{
		events: make(chan *GroupEvent, constants.CHANNEL_SIZE),
		done:   make(chan struct{}),
	}
}

// Publish 发布组事件
// 缓冲满时阻塞发布方（单个命令的派发 goroutine），形成背压
func (b *channelBroker) Publish(event *GroupEvent) error {
	select {
	case <-b.done:
		return nil
	case b.events <- event:
		return nil
	}
}

// Start 启动投递循环
func (b *channelBroker) Start(deliver func(*GroupEvent)) {
	go func() {
		for {
			select {
			case <-b.done:
				return
			case event, ok := <-b.events:
				if !ok {
					return
				}
				deliver(event)
			}
		}
	}()
	zap.L().Info("channel 模式消息广播已启动")
}

// Close 停止投递循环
func (b *channelBroker) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
	})
	return nil
}
