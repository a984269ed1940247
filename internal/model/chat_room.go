package model

import "gorm.io/gorm"

// ChatRoom 聊天房间
// Uuid 与 JoinCode 在本设计中取值相同（加入码即房间 id），
// 唯一例外是保留房间 "global"：启动时种子化，永不删除
type ChatRoom struct {
	gorm.Model
	Uuid     string `gorm:"column:uuid;uniqueIndex;type:char(32);not null;comment:房间唯一id"`
	JoinCode string `gorm:"column:join_code;uniqueIndex;type:char(32);not null;comment:加入码，规范化小写无分隔符"`
	OwnerId  string `gorm:"column:owner_id;type:char(36);not null;comment:房主用户id"`
	Name     string `gorm:"column:name;type:varchar(100);comment:房间名，可为空"`
}

func (ChatRoom) TableName() string {
	return "chat_room"
}
