package request

// JoinRoomRequest 通过加入码加入房间请求
// 加入码允许带大小写/连字符等非规范形式，服务端负责规范化
type JoinRoomRequest struct {
	JoinCode string `json:"joinCode" binding:"required"`
}
