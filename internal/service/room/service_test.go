package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dnd_chat_server/internal/dao/mysql"
	"dnd_chat_server/internal/model"
	"dnd_chat_server/pkg/constants"
	"dnd_chat_server/pkg/errorx"
	"dnd_chat_server/pkg/util/snowflake"
)

// memoryCache 进程内缓存，SubmitTask 同步执行，测试里无需等待异步回写
type memoryCache struct {
	mu    sync.Mutex
	store map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{store: make(map[string]string)}
}

func (m *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[key], nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.store {
		if strings.HasPrefix(k, prefix) {
			delete(m.store, k)
		}
	}
	return nil
}

func (m *memoryCache) SubmitTask(action func()) {
	action()
}

func newTestService(t *testing.T) *roomService {
	t.Helper()
	snowflake.Init(1)

	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&model.ChatRoom{}, &model.ChatMembership{}, &model.ChatMessage{}); err != nil {
		t.Fatal(err)
	}

	repos := mysql.NewRepositories(db)
	if err := mysql.SeedGlobalRoom(repos); err != nil {
		t.Fatal(err)
	}
	return NewRoomService(repos, newMemoryCache())
}

func TestCreatePrivateRoom(t *testing.T) {
	s := newTestService(t)

	roomId, joinCode, err := s.CreatePrivateRoom("owner-1", "冒险小队")
	if err != nil {
		t.Fatal(err)
	}
	if roomId != joinCode {
		t.Fatalf("roomId and joinCode should match: %s / %s", roomId, joinCode)
	}
	if len(roomId) != 32 {
		t.Fatalf("expected 32-char room id, got %q", roomId)
	}

	// 创建者自动成为成员
	isMember, err := s.IsMember("owner-1", roomId)
	if err != nil {
		t.Fatal(err)
	}
	if !isMember {
		t.Fatal("owner should be a member after creation")
	}
}

func TestResolveJoinCodeNormalization(t *testing.T) {
	s := newTestService(t)

	roomId, joinCode, err := s.CreatePrivateRoom("owner-1", "")
	if err != nil {
		t.Fatal(err)
	}

	// 大写、带连字符、带空白的输入都应命中同一房间
	variants := []string{
		joinCode,
		strings.ToUpper(joinCode),
		"  " + joinCode + "\n",
		joinCode[:8] + "-" + joinCode[8:],
	}
	for _, v := range variants {
		got, found, err := s.ResolveJoinCode(v)
		if err != nil {
			t.Fatal(err)
		}
		if !found || got != roomId {
			t.Fatalf("ResolveJoinCode(%q) = (%s, %v)", v, got, found)
		}
	}

	// 未命中不是错误
	_, found, err := s.ResolveJoinCode("00000000000000000000000000000000")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected not found")
	}

	// 空输入直接未命中
	_, found, err = s.ResolveJoinCode("   ")
	if err != nil || found {
		t.Fatalf("blank input should not resolve, got (%v, %v)", found, err)
	}
}

func TestAddMemberIdempotent(t *testing.T) {
	s := newTestService(t)

	roomId, _, err := s.CreatePrivateRoom("owner-1", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.AddMember("user-2", roomId); err != nil {
		t.Fatal(err)
	}
	// 重复加入幂等
	if err := s.AddMember("user-2", roomId); err != nil {
		t.Fatal(err)
	}

	members, err := s.repos.Membership.ListUserUuidsForRoom(roomId)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("expected owner + 1 member, got %v", members)
	}
}

func TestRemoveMemberSilent(t *testing.T) {
	s := newTestService(t)

	roomId, _, err := s.CreatePrivateRoom("owner-1", "")
	if err != nil {
		t.Fatal(err)
	}

	// 不是成员也静默成功
	if err := s.RemoveMember("user-2", roomId); err != nil {
		t.Fatal(err)
	}

	if err := s.AddMember("user-2", roomId); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveMember("user-2", roomId); err != nil {
		t.Fatal(err)
	}
	isMember, err := s.IsMember("user-2", roomId)
	if err != nil || isMember {
		t.Fatalf("membership should be gone, got %v %v", isMember, err)
	}
}

func TestSaveMessageValidation(t *testing.T) {
	s := newTestService(t)

	roomId, _, err := s.CreatePrivateRoom("owner-1", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SaveMessage(roomId, "owner-1", "Alice", ""); err != ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := s.SaveMessage(roomId, "owner-1", "Alice", "   \t\n "); err != ErrEmptyMessage {
		t.Fatalf("whitespace-only should be rejected, got %v", err)
	}
	if err := s.SaveMessage("", "owner-1", "Alice", "hi"); err != ErrMissingRoomId {
		t.Fatalf("expected ErrMissingRoomId, got %v", err)
	}

	long := strings.Repeat("中", constants.MESSAGE_MAX_LENGTH+1)
	if err := s.SaveMessage(roomId, "owner-1", "Alice", long); err != ErrMessageTooLong {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	// 恰好达到上限可接受（按 rune 计数）
	edge := strings.Repeat("中", constants.MESSAGE_MAX_LENGTH)
	if err := s.SaveMessage(roomId, "owner-1", "Alice", edge); err != nil {
		t.Fatalf("message at limit should pass, got %v", err)
	}

	// 不存在的房间
	if err := s.SaveMessage("ffffffffffffffffffffffffffffffff", "owner-1", "Alice", "hi"); err != ErrNoAccess {
		t.Fatalf("expected ErrNoAccess, got %v", err)
	}
}

func TestSaveMessageTrimsContent(t *testing.T) {
	s := newTestService(t)

	roomId, _, err := s.CreatePrivateRoom("owner-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMessage(roomId, "owner-1", "Alice", "  hello  "); err != nil {
		t.Fatal(err)
	}

	messages, err := s.RecentMessages(roomId, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 || messages[0].Text != "hello" {
		t.Fatalf("expected trimmed message, got %+v", messages)
	}
}

func TestRecentMessagesOrder(t *testing.T) {
	s := newTestService(t)

	roomId, _, err := s.CreatePrivateRoom("owner-1", "")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 60; i++ {
		msg := &model.ChatMessage{
			Uuid:     snowflake.GenerateID(),
			RoomUuid: roomId,
			UserUuid: "owner-1",
			UserName: "Alice",
			Content:  fmt.Sprintf("msg %02d", i),
			SentAt:   time.Now().Add(time.Duration(i-60) * time.Minute),
		}
		if err := s.repos.Message.Create(msg); err != nil {
			t.Fatal(err)
		}
	}

	messages, err := s.RecentMessages(roomId, constants.HISTORY_LIMIT)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != constants.HISTORY_LIMIT {
		t.Fatalf("expected %d messages, got %d", constants.HISTORY_LIMIT, len(messages))
	}
	// 取最近 50 条（10..59），按从旧到新
	if messages[0].Text != "msg 10" || messages[len(messages)-1].Text != "msg 59" {
		t.Fatalf("unexpected window: %s .. %s", messages[0].Text, messages[len(messages)-1].Text)
	}
}

func TestGetRoomHeaderAccess(t *testing.T) {
	s := newTestService(t)

	roomId, joinCode, err := s.CreatePrivateRoom("owner-1", "秘密基地")
	if err != nil {
		t.Fatal(err)
	}

	// 成员可见
	header, err := s.GetRoomHeader("owner-1", roomId)
	if err != nil {
		t.Fatal(err)
	}
	if header.Name != "秘密基地" || header.JoinCode != joinCode || !header.IsOwner {
		t.Fatalf("unexpected header: %+v", header)
	}

	// 非房主成员 IsOwner 为 false
	if err := s.AddMember("user-2", roomId); err != nil {
		t.Fatal(err)
	}
	header, err = s.GetRoomHeader("user-2", roomId)
	if err != nil {
		t.Fatal(err)
	}
	if header.IsOwner {
		t.Fatal("non-owner should not be flagged as owner")
	}

	// 非成员与不存在的房间同样返回无权限
	if _, err := s.GetRoomHeader("stranger", roomId); err != ErrNoAccess {
		t.Fatalf("expected ErrNoAccess for non-member, got %v", err)
	}
	if _, err := s.GetRoomHeader("stranger", "ffffffffffffffffffffffffffffffff"); err != ErrNoAccess {
		t.Fatalf("expected ErrNoAccess for missing room, got %v", err)
	}

	// 全局房间对所有认证用户可见
	header, err = s.GetRoomHeader("stranger", constants.GLOBAL_ROOM_ID)
	if err != nil {
		t.Fatal(err)
	}
	if header.Id != constants.GLOBAL_ROOM_ID {
		t.Fatalf("unexpected global header: %+v", header)
	}
}

func TestListUserRooms(t *testing.T) {
	s := newTestService(t)

	// 加入全局房间不应出现在列表里
	if err := s.AddMember("user-1", constants.GLOBAL_ROOM_ID); err != nil {
		t.Fatal(err)
	}

	idB, _, err := s.CreatePrivateRoom("user-1", "Beta")
	if err != nil {
		t.Fatal(err)
	}
	idA, _, err := s.CreatePrivateRoom("owner-2", "Alpha")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddMember("user-1", idA); err != nil {
		t.Fatal(err)
	}
	// 未命名房间显示默认名
	idC, _, err := s.CreatePrivateRoom("user-1", "")
	if err != nil {
		t.Fatal(err)
	}

	rooms, err := s.ListUserRooms("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 3 {
		t.Fatalf("expected 3 rooms, got %+v", rooms)
	}
	// 按名称排序
	if rooms[0].Name != "Alpha" || rooms[1].Name != "Beta" || rooms[2].Name != "Private Room" {
		t.Fatalf("unexpected order: %s, %s, %s", rooms[0].Name, rooms[1].Name, rooms[2].Name)
	}
	if rooms[0].Id != idA || rooms[0].IsOwner {
		t.Fatalf("unexpected entry: %+v", rooms[0])
	}
	if rooms[1].Id != idB || !rooms[1].IsOwner {
		t.Fatalf("unexpected entry: %+v", rooms[1])
	}
	if rooms[2].Id != idC {
		t.Fatalf("unexpected entry: %+v", rooms[2])
	}
}

func TestDeleteRoomCascade(t *testing.T) {
	s := newTestService(t)

	roomId, _, err := s.CreatePrivateRoom("owner-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddMember("user-2", roomId); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMessage(roomId, "user-2", "Bob", "hello"); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteRoom("owner-1", roomId)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("owner delete should succeed")
	}

	// 房间、成员、消息全部清理
	if _, err := s.repos.Room.FindByUuid(roomId); !errorx.IsNotFound(err) {
		t.Fatalf("room should be gone, got %v", err)
	}
	members, err := s.repos.Membership.ListUserUuidsForRoom(roomId)
	if err != nil || len(members) != 0 {
		t.Fatalf("memberships should be gone, got %v %v", members, err)
	}
	messages, err := s.repos.Message.LastN(roomId, 10)
	if err != nil || len(messages) != 0 {
		t.Fatalf("messages should be gone, got %v %v", messages, err)
	}
}

func TestDeleteRoomRefusals(t *testing.T) {
	s := newTestService(t)

	roomId, _, err := s.CreatePrivateRoom("owner-1", "")
	if err != nil {
		t.Fatal(err)
	}

	// 非房主
	deleted, err := s.DeleteRoom("user-2", roomId)
	if err != nil || deleted {
		t.Fatalf("non-owner delete should be refused, got %v %v", deleted, err)
	}
	// 全局房间
	deleted, err = s.DeleteRoom("owner-1", constants.GLOBAL_ROOM_ID)
	if err != nil || deleted {
		t.Fatalf("global delete should be refused, got %v %v", deleted, err)
	}
	// 不存在的房间
	deleted, err = s.DeleteRoom("owner-1", "ffffffffffffffffffffffffffffffff")
	if err != nil || deleted {
		t.Fatalf("missing room delete should be refused, got %v %v", deleted, err)
	}

	// 房间原封不动
	if _, err := s.repos.Room.FindByUuid(roomId); err != nil {
		t.Fatal(err)
	}
}
