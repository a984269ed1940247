package chat

import (
	"encoding/json"
)

// GroupEvent 经由 broker 扇出的组事件
// Frame 是已经序列化好的下行帧，投递侧不再做二次编码。
// Drop 表示这是组的最后一条事件（房间解散），各实例投递完成后各自丢弃本地广播组，
// 保证在线成员先收到事件、组才消失
type GroupEvent struct {
	GroupId string          `json:"groupId"`
	Frame   json.RawMessage `json:"frame"`
	Drop    bool            `json:"drop,omitempty"`
}

// MessageBroker 组事件广播通道的抽象
// 单机部署用 channel 实现进程内直转；多实例部署用 kafka 实现，
// 每个实例既发布也消费，把事件投递给本实例上的组成员。
// 两种模式下发布方都不等待投递完成
type MessageBroker interface {
	// Publish 发布一条组事件
	Publish(event *GroupEvent) error
	// Start 启动消费循环，收到的事件交给 deliver 处理
	Start(deliver func(*GroupEvent))
	// Close 停止消费并释放资源
	Close() error
}
