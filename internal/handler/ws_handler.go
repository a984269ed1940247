// 本文件处理 WebSocket 接入：认证在升级前完成
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dnd_chat_server/internal/service/chat"
	"dnd_chat_server/pkg/errorx"
	"dnd_chat_server/pkg/util/jwt"
)

// upgrader WebSocket 升级器
// 浏览器 WebSocket 无法自定义 Header，跨域校验交给部署层
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WsHandler WebSocket 接入处理器
type WsHandler struct {
	chatServer *chat.ChatServer
}

// NewWsHandler 创建 WebSocket 处理器
func NewWsHandler(chatServer *chat.ChatServer) *WsHandler {
	return &WsHandler{chatServer: chatServer}
}

// Connect 建立 WebSocket 连接
// GET /wss?token=xxx
// 浏览器 WebSocket 不能带 Authorization Header，token 经查询参数传递。
// 认证失败在升级前返回 401，升级后连接交给 ChatServer 接管
func (h *WsHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code": errorx.CodeUnauthorized,
			"msg":  "缺少 token",
		})
		return
	}

	claims, err := jwt.ParseToken(token)
	if err != nil || claims.Subject != "access_token" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code": errorx.CodeUnauthorized,
			"msg":  "Token 已过期或无效，请重新登录",
		})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Error("WebSocket 升级失败", zap.Error(err))
		return
	}

	// 阻塞在连接的读循环直到断开
	h.chatServer.HandleConnection(ws, claims.UserID, claims.UserName)
}
