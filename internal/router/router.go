// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"github.com/gin-gonic/gin"

	"dnd_chat_server/internal/handler"
	"dnd_chat_server/internal/infrastructure/middleware"
)

// Router 路由管理器，持有 Handler 聚合对象
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// 管理面走 JWT 中间件；WebSocket 的认证在升级前由 handler 自行完成
// （浏览器 WebSocket 无法携带 Authorization Header）
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	authed := r.Group("/", middleware.JWTAuth())
	rt.RegisterRoomRoutes(authed)

	rt.RegisterWebSocketRoutes(&r.RouterGroup)
}
