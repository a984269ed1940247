package request

// CreateRoomRequest 创建私密房间请求
// 房主身份取自已认证上下文，不由客户端提交
type CreateRoomRequest struct {
	Name string `json:"name" binding:"omitempty,max=100"` // 房间名，可为空
}
