package request

// DeleteRoomRequest 解散房间请求（仅房主）
type DeleteRoomRequest struct {
	RoomId string `json:"roomId" binding:"required"`
}
