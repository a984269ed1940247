package request

// RoomHeaderRequest 获取房间头信息请求
type RoomHeaderRequest struct {
	RoomId string `form:"roomId" binding:"required"`
}
