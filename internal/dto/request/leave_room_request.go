package request

// LeaveRoomRequest 退出房间请求（删除持久成员关系）
type LeaveRoomRequest struct {
	RoomId string `json:"roomId" binding:"required"`
}
