package handler

import (
	"dnd_chat_server/internal/service"
	"dnd_chat_server/internal/service/chat"
)

// Handlers 聚合所有处理器，供路由注册使用
type Handlers struct {
	Room *RoomHandler
	Ws   *WsHandler
}

// NewHandlers 创建并注入所有处理器
func NewHandlers(services *service.Services, chatServer *chat.ChatServer) *Handlers {
	return &Handlers{
		Room: NewRoomHandler(services, chatServer),
		Ws:   NewWsHandler(chatServer),
	}
}
