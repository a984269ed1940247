package respond

// UserRoomRespond 用户加入的房间列表项（不含全局房间）
type UserRoomRespond struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	JoinCode string `json:"joinCode"`
	IsOwner  bool   `json:"isOwner"`
}
