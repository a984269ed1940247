package mysql

import (
	"dnd_chat_server/internal/model"

	"gorm.io/gorm"
)

// membershipRepository MembershipRepository 接口的实现
type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository 创建 MembershipRepository 实例
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// Create 添加成员关系
// 并发加入同一房间时，唯一索引 (room_uuid, user_uuid) 保证至多一条记录，
// 输掉竞争的一方收到 CodeConflict，由调用方按幂等语义吞掉
func (r *membershipRepository) Create(member *model.ChatMembership) error {
	if err := r.db.Create(member).Error; err != nil {
		return wrapDBErrorf(err, "创建成员关系 room=%s user=%s", member.RoomUuid, member.UserUuid)
	}
	return nil
}

// Exists 检查成员关系是否存在
func (r *membershipRepository) Exists(roomUuid, userUuid string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.ChatMembership{}).
		Where("room_uuid = ? AND user_uuid = ?", roomUuid, userUuid).
		Count(&count).Error; err != nil {
		return false, wrapDBErrorf(err, "查询成员关系 room=%s user=%s", roomUuid, userUuid)
	}
	return count > 0, nil
}

// Delete 删除单条成员关系
func (r *membershipRepository) Delete(roomUuid, userUuid string) error {
	if err := r.db.Unscoped().
		Where("room_uuid = ? AND user_uuid = ?", roomUuid, userUuid).
		Delete(&model.ChatMembership{}).Error; err != nil {
		return wrapDBErrorf(err, "删除成员关系 room=%s user=%s", roomUuid, userUuid)
	}
	return nil
}

// DeleteByRoomUuid 删除房间的所有成员关系
func (r *membershipRepository) DeleteByRoomUuid(roomUuid string) error {
	if err := r.db.Unscoped().
		Where("room_uuid = ?", roomUuid).
		Delete(&model.ChatMembership{}).Error; err != nil {
		return wrapDBErrorf(err, "删除房间所有成员 room=%s", roomUuid)
	}
	return nil
}

// ListRoomUuidsForUser 列出用户加入的所有房间 id
func (r *membershipRepository) ListRoomUuidsForUser(userUuid string) ([]string, error) {
	var roomUuids []string
	if err := r.db.Model(&model.ChatMembership{}).
		Where("user_uuid = ?", userUuid).
		Pluck("room_uuid", &roomUuids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户所在房间 user=%s", userUuid)
	}
	return roomUuids, nil
}

// ListUserUuidsForRoom 列出房间的所有成员用户 id
func (r *membershipRepository) ListUserUuidsForRoom(roomUuid string) ([]string, error) {
	var userUuids []string
	if err := r.db.Model(&model.ChatMembership{}).
		Where("room_uuid = ?", roomUuid).
		Pluck("user_uuid", &userUuids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询房间成员 room=%s", roomUuid)
	}
	return userUuids, nil
}
