package respond

// RoomHeaderRespond 房间头信息
// 仅当请求者是全局房间访客或该房间成员时返回，
// 非成员一律视为"无权限"，不泄露房间是否存在
type RoomHeaderRespond struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	JoinCode    string `json:"joinCode"`
	OwnerUserId string `json:"ownerUserId"`
	IsOwner     bool   `json:"isOwner"`
}
