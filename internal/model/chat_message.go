package model

import (
	"time"

	"gorm.io/gorm"
)

// ChatMessage 消息模型
// 消息一经写入不可修改，只会随所属房间级联删除
type ChatMessage struct {
	gorm.Model

	// Uuid 消息唯一标识，雪花算法生成的 int64
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID"`

	// RoomUuid 所属房间，写入时必须指向已存在的房间
	RoomUuid string `gorm:"column:room_uuid;index;type:char(32);not null;comment:房间id"`

	// UserUuid 发送者用户 id（外部身份服务持有用户实体）
	UserUuid string `gorm:"column:user_uuid;type:char(36);not null;comment:发送者id"`

	// UserName 发送者展示名
	// 冗余存储，回放历史时不需要回查身份服务
	UserName string `gorm:"column:user_name;type:varchar(50);not null;comment:发送者展示名"`

	// Content 消息文本内容，入库前已 trim 并校验长度
	Content string `gorm:"column:content;type:TEXT;not null;comment:消息内容"`

	// SentAt 发送时间，展示按此字段升序
	SentAt time.Time `gorm:"column:sent_at;index;not null;comment:发送时间"`
}

func (ChatMessage) TableName() string {
	return "chat_message"
}
