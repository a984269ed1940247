// Package room 实现房间业务逻辑
// 组合房间/成员/消息三个存储：房间生命周期、加入码解析、成员变更、消息持久化
package room

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"dnd_chat_server/internal/config"
	"dnd_chat_server/internal/dao/mysql"
	myredis "dnd_chat_server/internal/dao/redis"
	"dnd_chat_server/internal/dto/respond"
	"dnd_chat_server/internal/model"
	"dnd_chat_server/pkg/constants"
	"dnd_chat_server/pkg/errorx"
	"dnd_chat_server/pkg/util/joincode"
	"dnd_chat_server/pkg/util/snowflake"
)

// 预定义业务错误
// Hub 据此把校验/鉴权失败转换为只发给调用方的错误事件
var (
	ErrEmptyMessage   = errorx.New(errorx.CodeInvalidParam, "消息不能为空")
	ErrMessageTooLong = errorx.New(errorx.CodeInvalidParam, "消息超出长度限制")
	ErrMissingRoomId  = errorx.New(errorx.CodeInvalidParam, "缺少房间id")
	ErrNoAccess       = errorx.New(errorx.CodeForbidden, "无权访问该房间")
)

// createRoomAttempts 房间 id 随机生成，加入码冲突概率极低，
// 冲突时换新 id 重试而不是向上抛错
const createRoomAttempts = 3

// roomService 房间业务逻辑实现
// 通过构造函数注入 Repository 和 Cache 依赖
type roomService struct {
	repos *mysql.Repositories
	cache myredis.AsyncCacheService
}

// NewRoomService 构造函数，注入所有依赖
func NewRoomService(repos *mysql.Repositories, cache myredis.AsyncCacheService) *roomService {
	return &roomService{
		repos: repos,
		cache: cache,
	}
}

// CreatePrivateRoom 创建私密房间
// 新 id 同时作为加入码（规范形式：32 位小写无分隔符），
// 房间与创建者的成员关系在同一事务中写入，要么都成功要么都失败
func (s *roomService) CreatePrivateRoom(ownerUserId, name string) (string, string, error) {
	var lastErr error
	for attempt := 0; attempt < createRoomAttempts; attempt++ {
		roomId := joincode.Generate()
		room := model.ChatRoom{
			Uuid:     roomId,
			JoinCode: roomId,
			OwnerId:  ownerUserId,
			Name:     name,
		}

		err := s.repos.Transaction(func(tx *mysql.Repositories) error {
			if err := tx.Room.Create(&room); err != nil {
				return err
			}
			member := model.ChatMembership{
				RoomUuid: roomId,
				UserUuid: ownerUserId,
			}
			return tx.Membership.Create(&member)
		})

		if err == nil {
			s.invalidateUserRooms(ownerUserId)
			zap.L().Info("私密房间已创建",
				zap.String("roomId", roomId),
				zap.String("ownerId", ownerUserId))
			return roomId, roomId, nil
		}

		lastErr = err
		if errorx.IsConflict(err) {
			zap.L().Warn("加入码冲突，更换id重试", zap.Int("attempt", attempt+1))
			continue
		}
		zap.L().Error("创建房间失败", zap.Error(err))
		return "", "", errorx.ErrServerBusy
	}
	zap.L().Error("创建房间重试耗尽", zap.Error(lastErr))
	return "", "", errorx.ErrServerBusy
}

// ResolveJoinCode 解析加入码
// 输入先做规范化（去空白、去连字符、转小写），未命中返回 found=false 而不是错误，
// 客户端据此提示"检查加入码"而不是"无权限"
func (s *roomService) ResolveJoinCode(raw string) (string, bool, error) {
	code := joincode.Normalize(raw)
	if code == "" {
		return "", false, nil
	}
	room, err := s.repos.Room.FindByJoinCode(code)
	if err != nil {
		if errorx.IsNotFound(err) {
			return "", false, nil
		}
		zap.L().Error("解析加入码失败", zap.Error(err))
		return "", false, errorx.ErrServerBusy
	}
	return room.Uuid, true, nil
}

// IsMember 检查持久成员关系
// 成员关系是发消息的授权依据，每次发送都要重查，不信任运行时订阅状态
func (s *roomService) IsMember(userId, roomId string) (bool, error) {
	ok, err := s.repos.Membership.Exists(roomId, userId)
	if err != nil {
		zap.L().Error("查询成员关系失败", zap.Error(err))
		return false, errorx.ErrServerBusy
	}
	return ok, nil
}

// AddMember 受保护的幂等加入
// 先查再插；并发下输掉竞争的插入收到唯一索引冲突，按"已存在"吞掉
func (s *roomService) AddMember(userId, roomId string) error {
	exists, err := s.repos.Membership.Exists(roomId, userId)
	if err != nil {
		zap.L().Error("查询成员关系失败", zap.Error(err))
		return errorx.ErrServerBusy
	}
	if exists {
		return nil
	}
	member := model.ChatMembership{
		RoomUuid: roomId,
		UserUuid: userId,
	}
	if err := s.repos.Membership.Create(&member); err != nil {
		if errorx.IsConflict(err) {
			// 并发加入，另一条已落库
			return nil
		}
		zap.L().Error("创建成员关系失败", zap.Error(err))
		return errorx.ErrServerBusy
	}
	s.invalidateUserRooms(userId)
	return nil
}

// RemoveMember 删除持久成员关系，不存在时静默成功
func (s *roomService) RemoveMember(userId, roomId string) error {
	if err := s.repos.Membership.Delete(roomId, userId); err != nil {
		zap.L().Error("删除成员关系失败", zap.Error(err))
		return errorx.ErrServerBusy
	}
	s.invalidateUserRooms(userId)
	return nil
}

// GetRoomHeader 获取房间头信息
// 访问控制：全局房间对所有认证用户可见；其他房间要求持久成员关系。
// 无权限与不存在统一返回 ErrNoAccess，不向非成员泄露房间是否存在
func (s *roomService) GetRoomHeader(userId, roomId string) (*respond.RoomHeaderRespond, error) {
	if roomId != constants.GLOBAL_ROOM_ID {
		isMember, err := s.IsMember(userId, roomId)
		if err != nil {
			return nil, err
		}
		if !isMember {
			return nil, ErrNoAccess
		}
	}

	header, err := s.loadRoomHeader(roomId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, ErrNoAccess
		}
		zap.L().Error("查询房间失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	header.IsOwner = header.OwnerUserId == userId
	return header, nil
}

// loadRoomHeader 读取房间头信息（带缓存）
// 缓存的是与用户无关的部分，IsOwner 由调用方按请求者计算
func (s *roomService) loadRoomHeader(roomId string) (*respond.RoomHeaderRespond, error) {
	cacheKey := "room_header_" + roomId

	if rspString, err := s.cache.Get(context.Background(), cacheKey); err == nil && rspString != "" {
		var header respond.RoomHeaderRespond
		if err := json.Unmarshal([]byte(rspString), &header); err == nil {
			return &header, nil
		}
		zap.L().Warn("房间头信息缓存损坏，回源查库", zap.String("roomId", roomId))
	}

	room, err := s.repos.Room.FindByUuid(roomId)
	if err != nil {
		return nil, err
	}

	header := respond.RoomHeaderRespond{
		Id:          room.Uuid,
		Name:        displayName(room.Name),
		JoinCode:    room.JoinCode,
		OwnerUserId: room.OwnerId,
	}

	// 异步回写缓存
	s.cache.SubmitTask(func() {
		if rspBytes, err := json.Marshal(header); err == nil {
			if err := s.cache.Set(context.Background(), cacheKey, string(rspBytes), time.Hour); err != nil {
				zap.L().Error("回写房间头信息缓存失败", zap.Error(err))
			}
		}
	})

	return &header, nil
}

// SaveMessage 校验并持久化一条消息
// 持久化先于广播：广播失败时消息仍可通过历史回放恢复，反向则不成立
func (s *roomService) SaveMessage(roomId, userId, userName, text string) error {
	if roomId == "" {
		return ErrMissingRoomId
	}
	trimmed := trimText(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > s.maxMessageLength() {
		return ErrMessageTooLong
	}

	// 写入时校验房间引用完整性
	if _, err := s.repos.Room.FindByUuid(roomId); err != nil {
		if errorx.IsNotFound(err) {
			return ErrNoAccess
		}
		zap.L().Error("查询房间失败", zap.Error(err))
		return errorx.ErrServerBusy
	}

	message := model.ChatMessage{
		Uuid:     snowflake.GenerateID(),
		RoomUuid: roomId,
		UserUuid: userId,
		UserName: userName,
		Content:  trimmed,
		SentAt:   time.Now(),
	}
	if err := s.repos.Message.Create(&message); err != nil {
		zap.L().Error("创建消息失败", zap.Error(err))
		return errorx.ErrServerBusy
	}
	return nil
}

// RecentMessages 返回房间最近 n 条消息，从旧到新
func (s *roomService) RecentMessages(roomId string, n int) ([]respond.ChatMessageRespond, error) {
	if n <= 0 {
		n = constants.HISTORY_LIMIT
	}
	messages, err := s.repos.Message.LastN(roomId, n)
	if err != nil {
		zap.L().Error("查询历史消息失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	// make 初始化 len=0，确保序列化后是 [] 而不是 null
	rsp := make([]respond.ChatMessageRespond, 0, len(messages))
	for _, m := range messages {
		rsp = append(rsp, respond.ChatMessageRespond{
			UserName: m.UserName,
			Text:     m.Content,
			SentAt:   m.SentAt.Format("2006-01-02 15:04:05"),
		})
	}
	return rsp, nil
}

// ListUserRooms 列出用户加入的私密房间（排除全局房间），按名称排序
func (s *roomService) ListUserRooms(userId string) ([]respond.UserRoomRespond, error) {
	cacheKey := "rooms_for_user_" + userId

	// 1. 尝试从缓存获取
	if rspString, err := s.cache.Get(context.Background(), cacheKey); err == nil && rspString != "" {
		var roomListRsp []respond.UserRoomRespond
		if err := json.Unmarshal([]byte(rspString), &roomListRsp); err == nil {
			return roomListRsp, nil
		}
		zap.L().Warn("房间列表缓存损坏，回源查库", zap.String("userId", userId))
	}

	// 2. 缓存未命中 -> 查询数据库
	roomIds, err := s.repos.Membership.ListRoomUuidsForUser(userId)
	if err != nil {
		zap.L().Error("查询用户房间列表失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	filtered := make([]string, 0, len(roomIds))
	for _, id := range roomIds {
		if id != constants.GLOBAL_ROOM_ID {
			filtered = append(filtered, id)
		}
	}

	rooms, err := s.repos.Room.FindByUuids(filtered)
	if err != nil {
		zap.L().Error("批量查询房间失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	roomListRsp := make([]respond.UserRoomRespond, 0, len(rooms))
	for _, r := range rooms {
		roomListRsp = append(roomListRsp, respond.UserRoomRespond{
			Id:       r.Uuid,
			Name:     displayName(r.Name),
			JoinCode: r.JoinCode,
			IsOwner:  r.OwnerId == userId,
		})
	}
	sort.Slice(roomListRsp, func(i, j int) bool {
		if roomListRsp[i].Name != roomListRsp[j].Name {
			return roomListRsp[i].Name < roomListRsp[j].Name
		}
		return roomListRsp[i].Id < roomListRsp[j].Id
	})

	// 3. 异步回写缓存
	s.cache.SubmitTask(func() {
		if rspBytes, err := json.Marshal(roomListRsp); err == nil {
			if err := s.cache.Set(context.Background(), cacheKey, string(rspBytes), time.Minute*30); err != nil {
				zap.L().Error("回写房间列表缓存失败", zap.Error(err))
			}
		}
	})

	return roomListRsp, nil
}

// ListRoomIdsForUser 列出用户加入的所有房间 id
// 客户端重连后据此重新订阅各房间的广播组
func (s *roomService) ListRoomIdsForUser(userId string) ([]string, error) {
	roomIds, err := s.repos.Membership.ListRoomUuidsForUser(userId)
	if err != nil {
		zap.L().Error("查询用户房间列表失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return roomIds, nil
}

// DeleteRoom 解散房间
// 全局房间无条件拒绝；调用者必须是登记的房主；
// 成功时在同一事务中级联删除成员关系与消息，返回 true
func (s *roomService) DeleteRoom(ownerUserId, roomId string) (bool, error) {
	if roomId == constants.GLOBAL_ROOM_ID {
		return false, nil
	}

	room, err := s.repos.Room.FindByUuid(roomId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return false, nil
		}
		zap.L().Error("查询房间失败", zap.Error(err))
		return false, errorx.ErrServerBusy
	}
	if room.OwnerId != ownerUserId {
		return false, nil
	}

	// 删除前取成员列表，事务提交后失效各成员的房间列表缓存
	memberIds, err := s.repos.Membership.ListUserUuidsForRoom(roomId)
	if err != nil {
		zap.L().Error("查询房间成员失败", zap.Error(err))
		return false, errorx.ErrServerBusy
	}

	err = s.repos.Transaction(func(tx *mysql.Repositories) error {
		if err := tx.Message.DeleteByRoomUuid(roomId); err != nil {
			return err
		}
		if err := tx.Membership.DeleteByRoomUuid(roomId); err != nil {
			return err
		}
		return tx.Room.Delete(roomId)
	})
	if err != nil {
		zap.L().Error("解散房间失败", zap.Error(err))
		return false, errorx.ErrServerBusy
	}

	s.cache.SubmitTask(func() {
		if err := s.cache.Delete(context.Background(), "room_header_"+roomId); err != nil {
			zap.L().Error(err.Error())
		}
		for _, uid := range memberIds {
			if err := s.cache.Delete(context.Background(), "rooms_for_user_"+uid); err != nil {
				zap.L().Error(err.Error())
			}
		}
	})

	zap.L().Info("房间已解散",
		zap.String("roomId", roomId),
		zap.String("ownerId", ownerUserId),
		zap.Int("members", len(memberIds)))
	return true, nil
}

// invalidateUserRooms 异步失效用户的房间列表缓存
func (s *roomService) invalidateUserRooms(userId string) {
	s.cache.SubmitTask(func() {
		if err := s.cache.Delete(context.Background(), "rooms_for_user_"+userId); err != nil {
			zap.L().Error(err.Error())
		}
	})
}

// maxMessageLength 取配置的消息长度上限，未配置时用默认值
func (s *roomService) maxMessageLength() int {
	if conf := config.GetConfig(); conf != nil && conf.ChatConfig.MaxMessageLength > 0 {
		return conf.ChatConfig.MaxMessageLength
	}
	return constants.MESSAGE_MAX_LENGTH
}

func trimText(text string) string {
	return strings.TrimSpace(text)
}

func displayName(name string) string {
	if name == "" {
		return "Private Room"
	}
	return name
}
