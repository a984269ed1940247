// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"dnd_chat_server/internal/dao/mysql"
	myredis "dnd_chat_server/internal/dao/redis"
	"dnd_chat_server/internal/service/room"
)

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层和 Hub 通过此结构访问业务层
type Services struct {
	Room RoomService
}

// NewServices 创建并注入所有 Service 实例
// repos: Repository 层聚合实例
// cache: 异步缓存服务
func NewServices(repos *mysql.Repositories, cache myredis.AsyncCacheService) *Services {
	return &Services{
		Room: room.NewRoomService(repos, cache),
	}
}
