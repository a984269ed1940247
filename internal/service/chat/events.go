package chat

import (
	"encoding/json"

	"go.uber.org/zap"

	"dnd_chat_server/internal/dto/respond"
)

// 事件名常量，对应客户端监听的回调
const (
	EventReceiveMessage     = "receiveMessage"     // 全局房间消息
	EventReceiveRoomMessage = "receiveRoomMessage" // 私密房间消息
	EventSystemNotice       = "systemNotice"       // 加入/离开通知
	EventLoadHistory        = "loadHistory"        // 历史回放
	EventRoomCreated        = "roomCreated"        // 建房结果，仅发给创建者
	EventRoomJoined         = "roomJoined"         // 加入结果，仅发给加入者
	EventRoomDeleted        = "roomDeleted"        // 房间解散广播
	EventError              = "error"              // 错误，仅发给调用方
)

// Event 下行事件信封
// 所有推送给客户端的帧都是这个结构的 JSON 序列化
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// MessageData 聊天消息事件载荷
type MessageData struct {
	RoomId   string `json:"roomId,omitempty"` // 全局消息省略
	UserName string `json:"userName"`
	Text     string `json:"text"`
	SentAt   string `json:"sentAt"`
}

// NoticeData 系统通知载荷
type NoticeData struct {
	RoomId string `json:"roomId,omitempty"`
	Text   string `json:"text"`
}

// HistoryData 历史回放载荷，消息从旧到新
type HistoryData struct {
	RoomId   string                       `json:"roomId"`
	Messages []respond.ChatMessageRespond `json:"messages"`
}

// RoomCreatedData 建房结果载荷
type RoomCreatedData struct {
	RoomId   string `json:"roomId"`
	JoinCode string `json:"joinCode"`
	Name     string `json:"name"`
}

// RoomJoinedData 加入结果载荷
type RoomJoinedData struct {
	RoomId string `json:"roomId"`
	Name   string `json:"name"`
}

// RoomDeletedData 房间解散载荷，reason 给客户端直接展示
type RoomDeletedData struct {
	RoomId string `json:"roomId"`
	Reason string `json:"reason"`
}

// ErrorData 错误事件载荷
type ErrorData struct {
	Message string `json:"message"`
}

// encodeEvent 序列化下行事件
// 载荷都是服务端自有类型，序列化失败属于编程错误，记日志后返回 nil 由调用方跳过
func encodeEvent(event string, data any) []byte {
	frame, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		zap.L().Error("序列化下行事件失败", zap.String("event", event), zap.Error(err))
		return nil
	}
	return frame
}
