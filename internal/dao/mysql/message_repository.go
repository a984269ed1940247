package mysql

import (
	"dnd_chat_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 追加一条消息
func (r *messageRepository) Create(message *model.ChatMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建消息")
	}
	return nil
}

// LastN 返回房间最近 n 条消息
// 先按 sent_at 倒序取前 n 条，再在内存中反转，保证返回顺序从旧到新
func (r *messageRepository) LastN(roomUuid string, n int) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	if err := r.db.Where("room_uuid = ?", roomUuid).
		Order("sent_at DESC").
		Limit(n).
		Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 room=%s", roomUuid)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeleteByRoomUuid 删除房间的所有消息
func (r *messageRepository) DeleteByRoomUuid(roomUuid string) error {
	if err := r.db.Unscoped().
		Where("room_uuid = ?", roomUuid).
		Delete(&model.ChatMessage{}).Error; err != nil {
		return wrapDBErrorf(err, "删除房间所有消息 room=%s", roomUuid)
	}
	return nil
}
