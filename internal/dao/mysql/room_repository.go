package mysql

import (
	"dnd_chat_server/internal/model"

	"gorm.io/gorm"
)

// roomRepository RoomRepository 接口的实现
type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository 创建 RoomRepository 实例
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

// Create 创建房间
func (r *roomRepository) Create(room *model.ChatRoom) error {
	if err := r.db.Create(room).Error; err != nil {
		return wrapDBErrorf(err, "创建房间 join_code=%s", room.JoinCode)
	}
	return nil
}

// FindByUuid 根据房间 id 查找
func (r *roomRepository) FindByUuid(uuid string) (*model.ChatRoom, error) {
	var room model.ChatRoom
	if err := r.db.First(&room, "uuid = ?", uuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询房间 uuid=%s", uuid)
	}
	return &room, nil
}

// FindByJoinCode 根据加入码查找
// 调用方负责先做规范化，这里只按规范值等值匹配
func (r *roomRepository) FindByJoinCode(code string) (*model.ChatRoom, error) {
	var room model.ChatRoom
	if err := r.db.First(&room, "join_code = ?", code).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询房间 join_code=%s", code)
	}
	return &room, nil
}

// FindByUuids 批量根据房间 id 查找
func (r *roomRepository) FindByUuids(uuids []string) ([]model.ChatRoom, error) {
	var rooms []model.ChatRoom
	if len(uuids) == 0 {
		return rooms, nil
	}
	if err := r.db.Where("uuid IN ?", uuids).Find(&rooms).Error; err != nil {
		return nil, wrapDBError(err, "批量查询房间")
	}
	return rooms, nil
}

// Delete 物理删除房间
// 使用 Unscoped 硬删除，确保唯一索引释放、加入码立即不可解析
func (r *roomRepository) Delete(uuid string) error {
	if err := r.db.Unscoped().Where("uuid = ?", uuid).Delete(&model.ChatRoom{}).Error; err != nil {
		return wrapDBErrorf(err, "删除房间 uuid=%s", uuid)
	}
	return nil
}
