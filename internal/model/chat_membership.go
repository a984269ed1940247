package model

import "gorm.io/gorm"

// ChatMembership 用户与房间的成员关系表
// (room_uuid, user_uuid) 唯一：一个用户在一个房间中至多有一条成员记录，
// 并发加入时由唯一索引作为最终冲突仲裁
type ChatMembership struct {
	gorm.Model
	RoomUuid string `gorm:"column:room_uuid;type:char(32);uniqueIndex:idx_room_user;not null;comment:房间id"`
	UserUuid string `gorm:"column:user_uuid;type:char(36);uniqueIndex:idx_room_user;not null;comment:用户id"`
}

func (ChatMembership) TableName() string {
	return "chat_membership"
}
