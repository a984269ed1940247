// Package mysql 提供数据访问层的初始化和全局数据库实例管理
// 负责建立 MySQL 连接、自动迁移表结构、初始化 Repository 层
package mysql

import (
	"fmt"

	"dnd_chat_server/internal/config"
	"dnd_chat_server/internal/model"
	"dnd_chat_server/pkg/constants"
	"dnd_chat_server/pkg/errorx"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Init 初始化数据库连接并返回 Repository 层实例
// 执行步骤：
//  1. 从配置读取 MySQL 连接信息并构建 DSN
//  2. 使用 GORM 建立数据库连接
//  3. 执行 AutoMigrate 自动迁移表结构
//  4. 种子化保留的全局房间
//  5. 创建并返回 Repository 实例
func Init() *Repositories {
	conf := config.GetConfig()

	// 构建 MySQL DSN 连接字符串
	// 格式：user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.MysqlConfig.User,
		conf.MysqlConfig.Password,
		conf.MysqlConfig.Host,
		conf.MysqlConfig.Port,
		conf.MysqlConfig.DatabaseName,
	)

	// TranslateError 把驱动的唯一键冲突翻译为 gorm.ErrDuplicatedKey，
	// 上层据此区分 CodeConflict 与一般数据库错误
	db, err := gorm.Open(mysqldriver.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		zap.L().Fatal(err.Error())
	}

	// AutoMigrate 自动迁移表结构
	// 如果表不存在则创建，如果字段变更则更新结构
	err = db.AutoMigrate(
		&model.ChatRoom{},
		&model.ChatMembership{},
		&model.ChatMessage{},
	)
	if err != nil {
		zap.L().Fatal(err.Error())
	}

	repos := NewRepositories(db)

	if err := SeedGlobalRoom(repos); err != nil {
		zap.L().Fatal("种子化全局房间失败", zap.Error(err))
	}

	return repos
}

// SeedGlobalRoom 确保保留的全局房间存在
// 全局房间有且仅有一条记录，所有已认证连接都可加入，永不删除
func SeedGlobalRoom(repos *Repositories) error {
	_, err := repos.Room.FindByUuid(constants.GLOBAL_ROOM_ID)
	if err == nil {
		return nil
	}
	if !errorx.IsNotFound(err) {
		return err
	}
	room := &model.ChatRoom{
		Uuid:     constants.GLOBAL_ROOM_ID,
		JoinCode: constants.GLOBAL_ROOM_ID,
		OwnerId:  "system",
		Name:     "Global Chat",
	}
	if err := repos.Room.Create(room); err != nil {
		// 多实例并发启动时可能同时种子化，冲突视为已存在
		if errorx.IsConflict(err) {
			return nil
		}
		return err
	}
	zap.L().Info("全局房间已种子化", zap.String("roomId", room.Uuid))
	return nil
}
