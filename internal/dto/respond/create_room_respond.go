package respond

// CreateRoomRespond 创建私密房间响应
// 本设计中 joinCode 与 roomId 相同，仍作为两个字段返回，
// 前端分享加入码与路由跳转各取所需
type CreateRoomRespond struct {
	RoomId   string `json:"roomId"`
	JoinCode string `json:"joinCode"`
}
