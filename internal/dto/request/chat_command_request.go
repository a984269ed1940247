package request

import "encoding/json"

// ChatCommandRequest WebSocket 入站帧
// 客户端以 {"op": "<操作名>", "data": {...}} 形式调用 Hub 操作，
// data 延迟解析，由具体操作自行反序列化所需参数
type ChatCommandRequest struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// SendMessagePayload 发送全局消息参数
type SendMessagePayload struct {
	Text string `json:"text"`
}

// CreateRoomPayload 创建私密房间参数
type CreateRoomPayload struct {
	Name string `json:"name"`
}

// JoinByCodePayload 按加入码加入房间参数
type JoinByCodePayload struct {
	JoinCode string `json:"joinCode"`
}

// RoomMessagePayload 发送房间消息参数
type RoomMessagePayload struct {
	RoomId string `json:"roomId"`
	Text   string `json:"text"`
}

// LeaveRoomPayload 退出房间广播组参数
type LeaveRoomPayload struct {
	RoomId string `json:"roomId"`
}
