// Package handler 提供 HTTP 请求处理器
// 本文件处理房间管理面的 API 请求，房主/用户身份一律取自 JWT 上下文
package handler

import (
	"github.com/gin-gonic/gin"

	"dnd_chat_server/internal/dto/request"
	"dnd_chat_server/internal/dto/respond"
	"dnd_chat_server/internal/service"
	"dnd_chat_server/internal/service/chat"
	"dnd_chat_server/pkg/errorx"
)

// RoomHandler 房间管理面处理器
// 持有 ChatServer 引用：解散房间后要向在线成员广播
type RoomHandler struct {
	services   *service.Services
	chatServer *chat.ChatServer
}

// NewRoomHandler 创建房间处理器
func NewRoomHandler(services *service.Services, chatServer *chat.ChatServer) *RoomHandler {
	return &RoomHandler{
		services:   services,
		chatServer: chatServer,
	}
}

// currentUser 从 JWT 中间件写入的上下文取当前用户
func currentUser(c *gin.Context) (userId, userName string) {
	return c.GetString("user_id"), c.GetString("user_name")
}

// CreateRoom 创建私密房间
// POST /rooms/create
// 请求体: request.CreateRoomRequest
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req request.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}

	userId, _ := currentUser(c)
	roomId, joinCode, err := h.services.Room.CreatePrivateRoom(userId, req.Name)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.CreateRoomRespond{
		RoomId:   roomId,
		JoinCode: joinCode,
	})
}

// JoinRoom 通过加入码加入房间
// POST /rooms/join
// 请求体: request.JoinRoomRequest
// 加入码未命中返回 CodeNotFound，提示检查加入码而不是权限错误
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req request.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}

	roomId, found, err := h.services.Room.ResolveJoinCode(req.JoinCode)
	if err != nil {
		HandleError(c, err)
		return
	}
	if !found {
		HandleError(c, errorx.New(errorx.CodeNotFound, "加入码不存在，请检查后重试"))
		return
	}

	userId, _ := currentUser(c)
	if err := h.services.Room.AddMember(userId, roomId); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, gin.H{"roomId": roomId})
}

// LeaveRoom 退出房间（删除持久成员关系）
// POST /rooms/leave
// 请求体: request.LeaveRoomRequest
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	var req request.LeaveRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}

	userId, _ := currentUser(c)
	if err := h.services.Room.RemoveMember(userId, req.RoomId); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// DeleteRoom 解散房间（仅房主）
// POST /rooms/delete
// 请求体: request.DeleteRoomRequest
// 数据库删除成功后才向在线成员广播解散事件；
// 全局房间、非房主、房间不存在统一返回无权限，不泄露房间是否存在
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	var req request.DeleteRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}

	userId, _ := currentUser(c)
	deleted, err := h.services.Room.DeleteRoom(userId, req.RoomId)
	if err != nil {
		HandleError(c, err)
		return
	}
	if !deleted {
		HandleError(c, errorx.New(errorx.CodeForbidden, "无权解散该房间"))
		return
	}

	h.chatServer.BroadcastRoomDeleted(req.RoomId)
	HandleSuccess(c, nil)
}

// MyRooms 当前用户加入的私密房间列表
// GET /rooms/myRooms
func (h *RoomHandler) MyRooms(c *gin.Context) {
	userId, _ := currentUser(c)
	rooms, err := h.services.Room.ListUserRooms(userId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, rooms)
}

// RoomHeader 房间头信息
// GET /rooms/header?roomId=xxx
func (h *RoomHandler) RoomHeader(c *gin.Context) {
	var req request.RoomHeaderRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}

	userId, _ := currentUser(c)
	header, err := h.services.Room.GetRoomHeader(userId, req.RoomId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, header)
}
