// Package mysql 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package mysql

import (
	"errors"

	"dnd_chat_server/internal/model"
	"dnd_chat_server/pkg/errorx"

	"gorm.io/gorm"
)

// ==================== 错误包装辅助函数 ====================

// wrapDBError 包装数据库错误
// 根据错误类型返回不同的错误码：
//   - ErrRecordNotFound -> CodeNotFound
//   - ErrDuplicatedKey  -> CodeConflict（唯一索引是并发插入的最终仲裁）
//   - 其他错误 -> CodeDBError
func wrapDBError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrap(err, errorx.CodeNotFound, msg)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errorx.Wrap(err, errorx.CodeConflict, msg)
	}
	return errorx.Wrap(err, errorx.CodeDBError, msg)
}

// wrapDBErrorf 包装数据库错误（支持格式化消息）
func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrapf(err, errorx.CodeNotFound, format, args...)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errorx.Wrapf(err, errorx.CodeConflict, format, args...)
	}
	return errorx.Wrapf(err, errorx.CodeDBError, format, args...)
}

// ==================== Repository 接口定义 ====================

// RoomRepository 房间数据访问接口
type RoomRepository interface {
	// Create 创建房间，加入码重复时返回 CodeConflict
	Create(room *model.ChatRoom) error
	// FindByUuid 根据房间 id 查找
	FindByUuid(uuid string) (*model.ChatRoom, error)
	// FindByJoinCode 根据规范化后的加入码查找房间 id，未命中返回 CodeNotFound
	FindByJoinCode(code string) (*model.ChatRoom, error)
	// FindByUuids 批量根据房间 id 查找
	FindByUuids(uuids []string) ([]model.ChatRoom, error)
	// Delete 物理删除房间（级联清理由 Service 层在事务中完成）
	Delete(uuid string) error
}

// MembershipRepository 成员关系数据访问接口
type MembershipRepository interface {
	// Create 添加成员，(room, user) 重复时返回 CodeConflict
	Create(member *model.ChatMembership) error
	// Exists 检查成员关系是否存在
	Exists(roomUuid, userUuid string) (bool, error)
	// Delete 删除单条成员关系，不存在时静默成功
	Delete(roomUuid, userUuid string) error
	// DeleteByRoomUuid 删除房间的所有成员关系（解散房间时）
	DeleteByRoomUuid(roomUuid string) error
	// ListRoomUuidsForUser 列出用户加入的所有房间 id
	ListRoomUuidsForUser(userUuid string) ([]string, error)
	// ListUserUuidsForRoom 列出房间的所有成员用户 id
	ListUserUuidsForRoom(roomUuid string) ([]string, error)
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	// Create 追加一条消息
	Create(message *model.ChatMessage) error
	// LastN 返回房间最近 n 条消息，按 sent_at 从旧到新排序
	LastN(roomUuid string, n int) ([]model.ChatMessage, error)
	// DeleteByRoomUuid 删除房间的所有消息（解散房间时）
	DeleteByRoomUuid(roomUuid string) error
}

// ==================== Repository 聚合 ====================

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db         *gorm.DB
	Room       RoomRepository
	Membership MembershipRepository
	Message    MessageRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:         db,
		Room:       NewRoomRepository(db),
		Membership: NewMembershipRepository(db),
		Message:    NewMessageRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
