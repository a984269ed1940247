// server.go
// Hub 核心：维护连接注册表与广播组，经 MessageBroker 扇出组事件
package chat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dnd_chat_server/internal/dto/request"
	"dnd_chat_server/internal/service"
)

// ChatServer 聊天服务器
// HTTP 管理面与 WebSocket 连接共享同一实例：
// 管理面在解散房间后通过 BroadcastRoomDeleted 通知在线成员
type ChatServer struct {
	services *service.Services
	registry *GroupRegistry
	broker   MessageBroker
	conns    sync.Map // connId -> *Conn
	commands map[string]commandFunc
}

// NewChatServer 创建聊天服务器
func NewChatServer(services *service.Services, broker MessageBroker) *ChatServer {
	s := &ChatServer{
		services: services,
		registry: NewGroupRegistry(),
		broker:   broker,
	}
	s.commands = commandTable(s)
	return s
}

// Start 启动广播投递循环
func (s *ChatServer) Start() {
	s.broker.Start(s.deliver)
}

// Close 关闭广播通道并断开所有连接
func (s *ChatServer) Close() {
	if err := s.broker.Close(); err != nil {
		zap.L().Error(err.Error())
	}
	s.conns.Range(func(_, value any) bool {
		value.(*Conn).close()
		return true
	})
}

// HandleConnection 接管一条已升级、已认证的 WebSocket 连接
// 阻塞在读循环直到连接断开；连接建立不产生任何订阅，
// 客户端需要显式发 joinGlobal 等命令
func (s *ChatServer) HandleConnection(ws *websocket.Conn, userId, userName string) {
	c := newConn(uuid.NewString(), userId, userName, ws, s)
	s.conns.Store(c.Id(), c)
	zap.L().Info("连接已建立",
		zap.String("connId", c.Id()),
		zap.String("userId", userId))

	go c.Write()
	c.Read()
}

// dispatch 按 op 名派发命令
// Read 循环同步调用，保证同一连接的命令按到达顺序生效
func (s *ChatServer) dispatch(c *Conn, req *request.ChatCommandRequest) {
	cmd, ok := s.commands[req.Op]
	if !ok {
		s.sendError(c, "unknown command: "+req.Op)
		return
	}
	cmd(c, req.Data)
}

// deliver broker 消费回调：把组事件投递给本实例上的组成员
func (s *ChatServer) deliver(event *GroupEvent) {
	s.registry.Broadcast(event.GroupId, event.Frame)
	if event.Drop {
		s.registry.Drop(event.GroupId)
	}
}

// publish 编码下行事件并经 broker 发布到组
func (s *ChatServer) publish(groupId, event string, data any) {
	frame := encodeEvent(event, data)
	if frame == nil {
		return
	}
	if err := s.broker.Publish(&GroupEvent{GroupId: groupId, Frame: frame}); err != nil {
		zap.L().Error("发布组事件失败",
			zap.String("groupId", groupId),
			zap.String("event", event),
			zap.Error(err))
	}
}

// sendError 只发给调用方的错误事件
func (s *ChatServer) sendError(c *Conn, msg string) {
	c.Send(encodeEvent(EventError, ErrorData{Message: msg}))
}

// unregister 连接断开时的清理，由 Conn.close 调用
func (s *ChatServer) unregister(c *Conn) {
	s.conns.Delete(c.Id())
	s.registry.RemoveConn(c.Id())
}

// BroadcastRoomDeleted 向房间在线成员广播解散事件
// 由 HTTP 管理面在数据库删除成功后调用；事件带 Drop 标记，
// 各实例投递完成后丢弃本地广播组
func (s *ChatServer) BroadcastRoomDeleted(roomId string) {
	frame := encodeEvent(EventRoomDeleted, RoomDeletedData{
		RoomId: roomId,
		Reason: "This room was deleted by the owner.",
	})
	if frame == nil {
		return
	}
	if err := s.broker.Publish(&GroupEvent{GroupId: roomId, Frame: frame, Drop: true}); err != nil {
		zap.L().Error("发布解散事件失败", zap.String("roomId", roomId), zap.Error(err))
	}
}
