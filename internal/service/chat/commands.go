// commands.go
// Hub 操作的实现，按 op 名派发
// 校验失败、鉴权失败、未知命令都只回错误事件给调用方，绝不广播
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"dnd_chat_server/internal/config"
	"dnd_chat_server/internal/dto/request"
	"dnd_chat_server/internal/service/room"
	"dnd_chat_server/pkg/constants"
)

// 操作名常量，对应客户端可调用的命令
const (
	OpJoinGlobal        = "joinGlobal"
	OpLeaveGlobal       = "leaveGlobal"
	OpSendMessage       = "sendMessage"
	OpCreatePrivateRoom = "createPrivateRoom"
	OpJoinByCode        = "joinByCode"
	OpSendRoomMessage   = "sendRoomMessage"
	OpLeaveRoom         = "leaveRoom"
)

// commandFunc 单个 Hub 操作
type commandFunc func(c *Conn, data json.RawMessage)

// commandTable 构建 op 名到操作的映射
func commandTable(s *ChatServer) map[string]commandFunc {
	return map[string]commandFunc{
		OpJoinGlobal:        s.joinGlobal,
		OpLeaveGlobal:       s.leaveGlobal,
		OpSendMessage:       s.sendMessage,
		OpCreatePrivateRoom: s.createPrivateRoom,
		OpJoinByCode:        s.joinByCode,
		OpSendRoomMessage:   s.sendRoomMessage,
		OpLeaveRoom:         s.leaveRoom,
	}
}

// joinGlobal 加入全局房间
// 全局房间对所有已认证连接隐式开放，不落持久成员关系，只订阅广播组；
// 先把最近历史直接回给调用方（不经 broker，避免串进别人会话），再广播加入通知
func (s *ChatServer) joinGlobal(c *Conn, _ json.RawMessage) {
	s.registry.Add(constants.GLOBAL_ROOM_ID, c)

	s.sendHistory(c, constants.GLOBAL_ROOM_ID)

	s.publish(constants.GLOBAL_ROOM_ID, EventSystemNotice, NoticeData{
		Text: fmt.Sprintf("%s has joined the global chat", c.UserName()),
	})
}

// leaveGlobal 离开全局房间
// 静默操作：只退订广播组，不广播任何通知
func (s *ChatServer) leaveGlobal(c *Conn, _ json.RawMessage) {
	s.registry.Remove(constants.GLOBAL_ROOM_ID, c.Id())
}

// sendMessage 向全局房间发消息
func (s *ChatServer) sendMessage(c *Conn, data json.RawMessage) {
	var payload request.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError(c, "malformed command")
		return
	}
	s.sendToRoom(c, constants.GLOBAL_ROOM_ID, payload.Text, EventReceiveMessage)
}

// createPrivateRoom 创建私密房间
// 创建者立即订阅新房间的广播组，建房结果只回给调用方
func (s *ChatServer) createPrivateRoom(c *Conn, data json.RawMessage) {
	var payload request.CreateRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError(c, "malformed command")
		return
	}

	roomId, joinCode, err := s.services.Room.CreatePrivateRoom(c.UserId(), payload.Name)
	if err != nil {
		s.sendCommandError(c, err)
		return
	}
	s.registry.Add(roomId, c)

	c.Send(encodeEvent(EventRoomCreated, RoomCreatedData{
		RoomId:   roomId,
		JoinCode: joinCode,
		Name:     payload.Name,
	}))
}

// joinByCode 按加入码加入私密房间
// 加入码未命中回"检查加入码"而不是权限错误；
// 成功后先把房间信息和最近历史回给调用方，再向房间广播加入通知
func (s *ChatServer) joinByCode(c *Conn, data json.RawMessage) {
	var payload request.JoinByCodePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError(c, "malformed command")
		return
	}

	roomId, found, err := s.services.Room.ResolveJoinCode(payload.JoinCode)
	if err != nil {
		s.sendCommandError(c, err)
		return
	}
	if !found {
		s.sendError(c, "no room matches that join code, please check it and try again")
		return
	}

	if err := s.services.Room.AddMember(c.UserId(), roomId); err != nil {
		s.sendCommandError(c, err)
		return
	}
	s.registry.Add(roomId, c)

	header, err := s.services.Room.GetRoomHeader(c.UserId(), roomId)
	if err != nil {
		zap.L().Warn("查询房间头信息失败", zap.String("roomId", roomId), zap.Error(err))
	} else {
		c.Send(encodeEvent(EventRoomJoined, RoomJoinedData{
			RoomId: header.Id,
			Name:   header.Name,
		}))
	}

	// 先把历史回给调用方，再广播加入通知
	s.sendHistory(c, roomId)

	s.publish(roomId, EventSystemNotice, NoticeData{
		RoomId: roomId,
		Text:   fmt.Sprintf("%s has joined the room", c.UserName()),
	})
}

// sendRoomMessage 向私密房间发消息
// 每次发送都重查持久成员关系，不信任运行时订阅：
// 被移出房间后即使还挂着旧订阅也发不出消息
func (s *ChatServer) sendRoomMessage(c *Conn, data json.RawMessage) {
	var payload request.RoomMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError(c, "malformed command")
		return
	}
	if payload.RoomId == "" {
		s.sendError(c, "room id is required")
		return
	}
	s.sendToRoom(c, payload.RoomId, payload.Text, EventReceiveRoomMessage)
}

// leaveRoom 离开私密房间：只退订广播组并广播匿名离开通知
// 持久成员关系保留，下次连接可凭它自动回到房间；
// 真正退出房间走管理接口 POST /rooms/leave
func (s *ChatServer) leaveRoom(c *Conn, data json.RawMessage) {
	var payload request.LeaveRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError(c, "malformed command")
		return
	}
	if payload.RoomId == "" {
		s.sendError(c, "room id is required")
		return
	}

	s.registry.Remove(payload.RoomId, c.Id())

	s.publish(payload.RoomId, EventSystemNotice, NoticeData{
		RoomId: payload.RoomId,
		Text:   "Someone left the room",
	})
}

// sendToRoom 发消息的公共路径：查成员关系、持久化、广播
// 持久化成功才广播，广播的时间戳与入库时间一致性按秒级容忍
func (s *ChatServer) sendToRoom(c *Conn, roomId, text, event string) {
	text = strings.TrimSpace(text)
	// 全局房间隐式开放，不查成员关系
	if roomId != constants.GLOBAL_ROOM_ID {
		isMember, err := s.services.Room.IsMember(c.UserId(), roomId)
		if err != nil {
			s.sendCommandError(c, err)
			return
		}
		if !isMember {
			s.sendError(c, "you are not a member of this room")
			return
		}
	}

	if err := s.services.Room.SaveMessage(roomId, c.UserId(), c.UserName(), text); err != nil {
		s.sendCommandError(c, err)
		return
	}

	msg := MessageData{
		UserName: c.UserName(),
		Text:     text,
		SentAt:   time.Now().Format("2006-01-02 15:04:05"),
	}
	if event == EventReceiveRoomMessage {
		msg.RoomId = roomId
	}
	s.publish(roomId, event, msg)
}

// sendHistory 把房间最近历史直接回给调用方
// 边界语义为尽力而为：回放与实时广播之间可能有极少量重叠或空缺
func (s *ChatServer) sendHistory(c *Conn, roomId string) {
	limit := constants.HISTORY_LIMIT
	if conf := config.GetConfig(); conf != nil && conf.ChatConfig.HistoryLimit > 0 {
		limit = conf.ChatConfig.HistoryLimit
	}
	messages, err := s.services.Room.RecentMessages(roomId, limit)
	if err != nil {
		zap.L().Error("查询历史消息失败", zap.String("roomId", roomId), zap.Error(err))
		return
	}
	c.Send(encodeEvent(EventLoadHistory, HistoryData{
		RoomId:   roomId,
		Messages: messages,
	}))
}

// sendCommandError 把业务错误转成只发给调用方的错误事件
// 预定义业务错误透传给客户端；其余一律回通用提示，不泄露内部细节
func (s *ChatServer) sendCommandError(c *Conn, err error) {
	switch {
	case errors.Is(err, room.ErrEmptyMessage),
		errors.Is(err, room.ErrMessageTooLong),
		errors.Is(err, room.ErrMissingRoomId),
		errors.Is(err, room.ErrNoAccess):
		s.sendError(c, err.Error())
	default:
		s.sendError(c, "server is busy, please try again later")
	}
}
