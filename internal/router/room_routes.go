// 本文件定义房间管理面的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoomRoutes 注册房间相关路由（需要认证）
func (rt *Router) RegisterRoomRoutes(rg *gin.RouterGroup) {
	roomGroup := rg.Group("/rooms")
	{
		roomGroup.POST("/create", rt.handlers.Room.CreateRoom)   // 创建私密房间
		roomGroup.POST("/join", rt.handlers.Room.JoinRoom)       // 通过加入码加入
		roomGroup.POST("/leave", rt.handlers.Room.LeaveRoom)     // 退出房间
		roomGroup.POST("/delete", rt.handlers.Room.DeleteRoom)   // 解散房间（仅房主）
		roomGroup.GET("/myRooms", rt.handlers.Room.MyRooms)      // 我加入的房间列表
		roomGroup.GET("/header", rt.handlers.Room.RoomHeader)    // 房间头信息
	}
}
