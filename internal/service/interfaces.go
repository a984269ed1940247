// Package service 定义业务层接口
// 接口设计遵循依赖倒置原则，便于测试和解耦
package service

import (
	"dnd_chat_server/internal/dto/respond"
)

// RoomService 房间业务接口
// 组合房间/成员/消息三个存储，承载房间生命周期与消息持久化逻辑，
// 同时被 HTTP 管理面和 WebSocket Hub 调用
type RoomService interface {
	// CreatePrivateRoom 创建私密房间并把创建者写为首个成员（同一事务）
	// 返回房间 id 与加入码（本设计中两者相同）
	CreatePrivateRoom(ownerUserId, name string) (roomId, joinCode string, err error)
	// ResolveJoinCode 规范化输入后解析加入码
	// 未命中不是错误：返回 found=false
	ResolveJoinCode(raw string) (roomId string, found bool, err error)
	// IsMember 检查持久成员关系
	IsMember(userId, roomId string) (bool, error)
	// AddMember 受保护的幂等加入：先查再插，并发冲突吞掉
	AddMember(userId, roomId string) error
	// RemoveMember 删除持久成员关系，不存在时静默成功
	RemoveMember(userId, roomId string) error
	// GetRoomHeader 返回房间头信息
	// 仅全局房间或持有成员关系时可见，否则返回 CodeForbidden（不泄露房间是否存在）
	GetRoomHeader(userId, roomId string) (*respond.RoomHeaderRespond, error)
	// SaveMessage 校验并持久化一条消息（trim 后判空、判长）
	SaveMessage(roomId, userId, userName, text string) error
	// RecentMessages 返回房间最近 n 条消息，从旧到新
	RecentMessages(roomId string, n int) ([]respond.ChatMessageRespond, error)
	// ListUserRooms 列出用户加入的私密房间（排除全局房间），按名称排序
	ListUserRooms(userId string) ([]respond.UserRoomRespond, error)
	// ListRoomIdsForUser 列出用户加入的所有房间 id（重连后重新订阅用）
	ListRoomIdsForUser(userId string) ([]string, error)
	// DeleteRoom 解散房间：全局房间与非房主一律拒绝（返回 false），
	// 成功时在事务内级联删除成员关系与消息
	DeleteRoom(ownerUserId, roomId string) (bool, error)
}
