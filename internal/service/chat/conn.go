package chat

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dnd_chat_server/internal/dto/request"
	"dnd_chat_server/pkg/constants"
)

// Conn 一个已认证的 WebSocket 连接
// 每个连接两个 goroutine：Read 顺序读取并派发命令，Write 消费发送队列。
// 同一连接的命令严格按到达顺序处理；不同连接之间天然并发
type Conn struct {
	id       string // 连接 id，同一用户多端登录时各连接独立
	userId   string
	userName string
	ws       *websocket.Conn
	sendBack chan []byte
	server   *ChatServer

	closeOnce sync.Once
	done      chan struct{}
}

// Id 返回连接 id
func (c *Conn) Id() string { return c.id }

// UserId 返回连接绑定的用户 id
func (c *Conn) UserId() string { return c.userId }

// UserName 返回连接绑定的用户名
func (c *Conn) UserName() string { return c.userName }

// Send 把帧放入发送队列
// 队列满说明客户端消费太慢，丢帧并记日志，绝不阻塞广播方
func (c *Conn) Send(frame []byte) {
	if frame == nil {
		return
	}
	select {
	case <-c.done:
	case c.sendBack <- frame:
	default:
		zap.L().Warn("发送队列已满，丢弃帧",
			zap.String("connId", c.id),
			zap.String("userId", c.userId))
	}
}

// Read 读循环
// 逐帧解析命令并同步派发，派发返回后才读下一帧，
// 保证同一连接先 joinGlobal 后 sendMessage 的效果顺序
func (c *Conn) Read() {
	defer c.close()

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("读取消息失败", zap.String("connId", c.id), zap.Error(err))
			}
			return
		}

		var req request.ChatCommandRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			c.Send(encodeEvent(EventError, ErrorData{Message: "malformed command"}))
			continue
		}

		c.server.dispatch(c, &req)
	}
}

// Write 写循环，消费发送队列直到连接关闭
func (c *Conn) Write() {
	for {
		select {
		case <-c.done:
			return
		case frame, ok := <-c.sendBack:
			if !ok {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Warn("写入消息失败", zap.String("connId", c.id), zap.Error(err))
				c.close()
				return
			}
		}
	}
}

// close 清理连接：退出所有广播组、关闭底层连接
// 注意只清理运行时订阅，持久成员关系保留，重连后还能收到所在房间的消息
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.server.unregister(c)
		if err := c.ws.Close(); err != nil {
			zap.L().Debug("关闭连接失败", zap.String("connId", c.id), zap.Error(err))
		}
		zap.L().Info("连接已断开",
			zap.String("connId", c.id),
			zap.String("userId", c.userId))
	})
}

// newConn 创建连接对象，发送队列容量固定
func newConn(id, userId, userName string, ws *websocket.Conn, server *ChatServer) *Conn {
	return &Conn{
		id:       id,
		userId:   userId,
		userName: userName,
		ws:       ws,
		sendBack: make(chan []byte, constants.CHANNEL_SIZE),
		server:   server,
		done:     make(chan struct{}),
	}
}
