package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"dnd_chat_server/internal/dto/request"
	"dnd_chat_server/internal/dto/respond"
	"dnd_chat_server/internal/service"
	"dnd_chat_server/internal/service/room"
	"dnd_chat_server/pkg/constants"
)

// syncBroker 测试用 broker：发布即投递，消除异步时序
type syncBroker struct {
	deliver func(*GroupEvent)
}

func (b *syncBroker) Publish(event *GroupEvent) error {
	if b.deliver != nil {
		b.deliver(event)
	}
	return nil
}

func (b *syncBroker) Start(deliver func(*GroupEvent)) { b.deliver = deliver }
func (b *syncBroker) Close() error                    { return nil }

// stubRoomService 内存版 RoomService，记录调用结果供断言
type stubRoomService struct {
	mu        sync.Mutex
	members   map[string]map[string]bool // roomId -> userId 集合
	names     map[string]string          // roomId -> 房间名
	joinCodes map[string]string          // 规范加入码 -> roomId
	history   map[string][]respond.ChatMessageRespond
	saved     []string // "roomId|userId|text"
}

func newStubRoomService() *stubRoomService {
	return &stubRoomService{
		members:   make(map[string]map[string]bool),
		names:     make(map[string]string),
		joinCodes: make(map[string]string),
		history:   make(map[string][]respond.ChatMessageRespond),
	}
}

func (s *stubRoomService) CreatePrivateRoom(ownerUserId, name string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roomId := fmt.Sprintf("room%028d", len(s.names)+1)
	s.names[roomId] = name
	s.joinCodes[roomId] = roomId
	s.members[roomId] = map[string]bool{ownerUserId: true}
	return roomId, roomId, nil
}

func (s *stubRoomService) ResolveJoinCode(raw string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roomId, ok := s.joinCodes[raw]
	return roomId, ok, nil
}

func (s *stubRoomService) IsMember(userId, roomId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[roomId][userId], nil
}

func (s *stubRoomService) AddMember(userId, roomId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[roomId] == nil {
		s.members[roomId] = make(map[string]bool)
	}
	s.members[roomId][userId] = true
	return nil
}

func (s *stubRoomService) RemoveMember(userId, roomId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[roomId], userId)
	return nil
}

func (s *stubRoomService) GetRoomHeader(userId, roomId string) (*respond.RoomHeaderRespond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if roomId != constants.GLOBAL_ROOM_ID && !s.members[roomId][userId] {
		return nil, room.ErrNoAccess
	}
	name := s.names[roomId]
	if name == "" {
		name = "Private Room"
	}
	return &respond.RoomHeaderRespond{Id: roomId, Name: name, JoinCode: roomId}, nil
}

func (s *stubRoomService) SaveMessage(roomId, userId, userName, text string) error {
	if text == "" {
		return room.ErrEmptyMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, roomId+"|"+userId+"|"+text)
	return nil
}

func (s *stubRoomService) RecentMessages(roomId string, n int) ([]respond.ChatMessageRespond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[roomId], nil
}

func (s *stubRoomService) ListUserRooms(userId string) ([]respond.UserRoomRespond, error) {
	return nil, nil
}

func (s *stubRoomService) ListRoomIdsForUser(userId string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for roomId, users := range s.members {
		if users[userId] {
			ids = append(ids, roomId)
		}
	}
	return ids, nil
}

func (s *stubRoomService) DeleteRoom(ownerUserId, roomId string) (bool, error) {
	return false, nil
}

func (s *stubRoomService) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// testEvent 用于断言的下行帧结构
type testEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*ChatServer, *stubRoomService) {
	t.Helper()
	stub := newStubRoomService()
	server := NewChatServer(&service.Services{Room: stub}, &syncBroker{})
	server.Start()
	return server, stub
}

func newTestConn(server *ChatServer, id, userId, userName string) *Conn {
	c := newConn(id, userId, userName, nil, server)
	server.conns.Store(c.Id(), c)
	return c
}

// drainEvents 取出连接当前收到的全部帧
func drainEvents(t *testing.T, c *Conn) []testEvent {
	t.Helper()
	var events []testEvent
	for {
		select {
		case frame := <-c.sendBack:
			var ev testEvent
			if err := json.Unmarshal(frame, &ev); err != nil {
				t.Fatalf("bad frame %s: %v", frame, err)
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

// commandFrame 构造入站命令帧
func commandFrame(t *testing.T, op string, payload any) *request.ChatCommandRequest {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		data = raw
	}
	return &request.ChatCommandRequest{Op: op, Data: data}
}

func rawCommand(op string, data []byte) *request.ChatCommandRequest {
	return &request.ChatCommandRequest{Op: op, Data: data}
}

func TestRegistryConcurrency(t *testing.T) {
	r := NewGroupRegistry()
	server, _ := newTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newTestConn(server, fmt.Sprintf("conn-%d", i), fmt.Sprintf("user-%d", i), "u")
			r.Add("g", c)
			r.Broadcast("g", []byte(`{"event":"x"}`))
			if i%2 == 0 {
				r.Remove("g", c.Id())
			}
		}(i)
	}
	wg.Wait()

	if got := len(r.Members("g")); got != 25 {
		t.Fatalf("expected 25 remaining members, got %d", got)
	}

	r.Drop("g")
	if got := len(r.Members("g")); got != 0 {
		t.Fatalf("expected empty group after drop, got %d", got)
	}
}

func TestJoinGlobalFlow(t *testing.T) {
	server, stub := newTestServer(t)
	stub.history[constants.GLOBAL_ROOM_ID] = []respond.ChatMessageRespond{
		{UserName: "Alice", Text: "earlier", SentAt: "2026-01-01 10:00:00"},
	}

	other := newTestConn(server, "conn-other", "user-other", "Other")
	server.registry.Add(constants.GLOBAL_ROOM_ID, other)

	c := newTestConn(server, "conn-1", "user-1", "Alice")
	server.dispatch(c, commandFrame(t, OpJoinGlobal, nil))

	// 全局房间隐式开放，加入不落持久成员关系
	ok, _ := stub.IsMember("user-1", constants.GLOBAL_ROOM_ID)
	if ok {
		t.Fatal("joinGlobal must not persist membership")
	}

	// 先收历史，再收加入通知
	events := drainEvents(t, c)
	if len(events) != 2 || events[0].Event != EventLoadHistory || events[1].Event != EventSystemNotice {
		t.Fatalf("unexpected caller events: %+v", events)
	}
	var hist HistoryData
	if err := json.Unmarshal(events[0].Data, &hist); err != nil {
		t.Fatal(err)
	}
	if hist.RoomId != constants.GLOBAL_ROOM_ID || len(hist.Messages) != 1 {
		t.Fatalf("unexpected history: %+v", hist)
	}

	// 已在组里的连接收到加入通知
	otherEvents := drainEvents(t, other)
	if len(otherEvents) != 1 || otherEvents[0].Event != EventSystemNotice {
		t.Fatalf("unexpected other events: %+v", otherEvents)
	}
}

func TestLeaveGlobalSilent(t *testing.T) {
	server, _ := newTestServer(t)

	c := newTestConn(server, "conn-1", "user-1", "Alice")
	other := newTestConn(server, "conn-2", "user-2", "Bob")
	server.dispatch(c, commandFrame(t, OpJoinGlobal, nil))
	server.dispatch(other, commandFrame(t, OpJoinGlobal, nil))
	drainEvents(t, c)
	drainEvents(t, other)

	server.dispatch(c, commandFrame(t, OpLeaveGlobal, nil))

	// 静默离开：自己和别人都收不到任何帧
	if events := drainEvents(t, c); len(events) != 0 {
		t.Fatalf("caller should get nothing, got %+v", events)
	}
	if events := drainEvents(t, other); len(events) != 0 {
		t.Fatalf("others should get nothing, got %+v", events)
	}

	// 退订后不再收到全局广播
	server.dispatch(other, commandFrame(t, OpSendMessage, request.SendMessagePayload{Text: "hi"}))
	if events := drainEvents(t, c); len(events) != 0 {
		t.Fatalf("left conn should not receive broadcasts, got %+v", events)
	}
}

func TestSendMessageGlobalSkipsMembershipCheck(t *testing.T) {
	server, stub := newTestServer(t)

	c := newTestConn(server, "conn-1", "user-1", "Alice")
	// 只挂了运行时订阅，没有任何持久成员关系
	server.registry.Add(constants.GLOBAL_ROOM_ID, c)

	server.dispatch(c, commandFrame(t, OpSendMessage, request.SendMessagePayload{Text: "hi"}))

	// 全局房间不查成员关系：消息落库并广播
	if stub.savedCount() != 1 {
		t.Fatalf("expected 1 saved message, got %d", stub.savedCount())
	}
	events := drainEvents(t, c)
	if len(events) != 1 || events[0].Event != EventReceiveMessage {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSendRoomMessageRequiresMembership(t *testing.T) {
	server, stub := newTestServer(t)
	roomId, _, err := stub.CreatePrivateRoom("user-1", "table")
	if err != nil {
		t.Fatal(err)
	}

	c := newTestConn(server, "conn-1", "user-2", "Bob")
	// 挂着运行时订阅但没有持久成员关系（比如已被移出房间）
	server.registry.Add(roomId, c)

	server.dispatch(c, commandFrame(t, OpSendRoomMessage, request.RoomMessagePayload{RoomId: roomId, Text: "hi"}))

	events := drainEvents(t, c)
	if len(events) != 1 || events[0].Event != EventError {
		t.Fatalf("expected a single error event, got %+v", events)
	}
	if stub.savedCount() != 0 {
		t.Fatal("message must not be persisted without membership")
	}
}

func TestSendRoomMessageFlow(t *testing.T) {
	server, stub := newTestServer(t)

	roomId, _, err := stub.CreatePrivateRoom("user-1", "table")
	if err != nil {
		t.Fatal(err)
	}
	if err := stub.AddMember("user-2", roomId); err != nil {
		t.Fatal(err)
	}

	sender := newTestConn(server, "conn-1", "user-1", "Alice")
	receiver := newTestConn(server, "conn-2", "user-2", "Bob")
	server.registry.Add(roomId, sender)
	server.registry.Add(roomId, receiver)

	server.dispatch(sender, commandFrame(t, OpSendRoomMessage, request.RoomMessagePayload{RoomId: roomId, Text: "  roll for initiative  "}))

	if stub.savedCount() != 1 {
		t.Fatalf("expected 1 saved message, got %d", stub.savedCount())
	}

	for _, c := range []*Conn{sender, receiver} {
		events := drainEvents(t, c)
		if len(events) != 1 || events[0].Event != EventReceiveRoomMessage {
			t.Fatalf("unexpected events for %s: %+v", c.Id(), events)
		}
		var msg MessageData
		if err := json.Unmarshal(events[0].Data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.RoomId != roomId || msg.UserName != "Alice" || msg.Text != "roll for initiative" {
			t.Fatalf("unexpected payload: %+v", msg)
		}
	}
}

func TestSendRoomMessageMissingRoomId(t *testing.T) {
	server, stub := newTestServer(t)

	c := newTestConn(server, "conn-1", "user-1", "Alice")
	server.dispatch(c, commandFrame(t, OpSendRoomMessage, request.RoomMessagePayload{Text: "hi"}))

	events := drainEvents(t, c)
	if len(events) != 1 || events[0].Event != EventError {
		t.Fatalf("expected error event, got %+v", events)
	}
	if stub.savedCount() != 0 {
		t.Fatal("nothing should be saved")
	}
}

func TestCreatePrivateRoomCommand(t *testing.T) {
	server, stub := newTestServer(t)

	c := newTestConn(server, "conn-1", "user-1", "Alice")
	bystander := newTestConn(server, "conn-2", "user-2", "Bob")

	server.dispatch(c, commandFrame(t, OpCreatePrivateRoom, request.CreateRoomPayload{Name: "table"}))

	events := drainEvents(t, c)
	if len(events) != 1 || events[0].Event != EventRoomCreated {
		t.Fatalf("unexpected events: %+v", events)
	}
	var created RoomCreatedData
	if err := json.Unmarshal(events[0].Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.RoomId == "" || created.RoomId != created.JoinCode || created.Name != "table" {
		t.Fatalf("unexpected payload: %+v", created)
	}

	// 建房结果不广播给别人
	if events := drainEvents(t, bystander); len(events) != 0 {
		t.Fatalf("bystander should get nothing, got %+v", events)
	}

	// 创建者已订阅新房间
	ok, _ := stub.IsMember("user-1", created.RoomId)
	if !ok {
		t.Fatal("creator should be a member")
	}
	if len(server.registry.Members(created.RoomId)) != 1 {
		t.Fatal("creator should be subscribed to the new room")
	}
}

func TestJoinByCodeCommand(t *testing.T) {
	server, stub := newTestServer(t)
	roomId, _, err := stub.CreatePrivateRoom("user-1", "table")
	if err != nil {
		t.Fatal(err)
	}
	stub.history[roomId] = []respond.ChatMessageRespond{
		{UserName: "Alice", Text: "welcome", SentAt: "2026-01-01 10:00:00"},
	}

	owner := newTestConn(server, "conn-1", "user-1", "Alice")
	server.registry.Add(roomId, owner)

	joiner := newTestConn(server, "conn-2", "user-2", "Bob")

	// 加入码未命中
	server.dispatch(joiner, commandFrame(t, OpJoinByCode, request.JoinByCodePayload{JoinCode: "bogus"}))
	events := drainEvents(t, joiner)
	if len(events) != 1 || events[0].Event != EventError {
		t.Fatalf("expected error for bogus code, got %+v", events)
	}

	// 正常加入
	server.dispatch(joiner, commandFrame(t, OpJoinByCode, request.JoinByCodePayload{JoinCode: roomId}))

	ok, _ := stub.IsMember("user-2", roomId)
	if !ok {
		t.Fatal("joinByCode should persist membership")
	}

	// 先收房间信息和历史，最后才是加入通知
	events = drainEvents(t, joiner)
	if len(events) != 3 ||
		events[0].Event != EventRoomJoined ||
		events[1].Event != EventLoadHistory ||
		events[2].Event != EventSystemNotice {
		t.Fatalf("unexpected joiner events: %+v", events)
	}

	ownerEvents := drainEvents(t, owner)
	if len(ownerEvents) != 1 || ownerEvents[0].Event != EventSystemNotice {
		t.Fatalf("owner should see the join notice, got %+v", ownerEvents)
	}
}

func TestLeaveRoomCommand(t *testing.T) {
	server, stub := newTestServer(t)
	roomId, _, err := stub.CreatePrivateRoom("user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := stub.AddMember("user-2", roomId); err != nil {
		t.Fatal(err)
	}

	owner := newTestConn(server, "conn-1", "user-1", "Alice")
	leaver := newTestConn(server, "conn-2", "user-2", "Bob")
	server.registry.Add(roomId, owner)
	server.registry.Add(roomId, leaver)

	server.dispatch(leaver, commandFrame(t, OpLeaveRoom, request.LeaveRoomPayload{RoomId: roomId}))

	// 只退订广播组，持久成员关系保留（下次连接可自动回房）
	ok, _ := stub.IsMember("user-2", roomId)
	if !ok {
		t.Fatal("leaveRoom must keep the durable membership")
	}

	// 通知是匿名的，不带离开者名字
	ownerEvents := drainEvents(t, owner)
	if len(ownerEvents) != 1 || ownerEvents[0].Event != EventSystemNotice {
		t.Fatalf("owner should see the leave notice, got %+v", ownerEvents)
	}
	var notice NoticeData
	if err := json.Unmarshal(ownerEvents[0].Data, &notice); err != nil {
		t.Fatal(err)
	}
	if notice.Text != "Someone left the room" || notice.RoomId != roomId {
		t.Fatalf("unexpected notice: %+v", notice)
	}
	// 离开者已退订，收不到自己的离开通知
	if events := drainEvents(t, leaver); len(events) != 0 {
		t.Fatalf("leaver should get nothing, got %+v", events)
	}
}

func TestBroadcastRoomDeleted(t *testing.T) {
	server, stub := newTestServer(t)
	roomId, _, err := stub.CreatePrivateRoom("user-1", "")
	if err != nil {
		t.Fatal(err)
	}

	member := newTestConn(server, "conn-1", "user-1", "Alice")
	server.registry.Add(roomId, member)

	server.BroadcastRoomDeleted(roomId)

	events := drainEvents(t, member)
	if len(events) != 1 || events[0].Event != EventRoomDeleted {
		t.Fatalf("expected exactly one roomDeleted, got %+v", events)
	}
	var data RoomDeletedData
	if err := json.Unmarshal(events[0].Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.RoomId != roomId || data.Reason != "This room was deleted by the owner." {
		t.Fatalf("unexpected payload: %+v", data)
	}

	// 组已丢弃，后续广播无人接收
	server.registry.Broadcast(roomId, []byte(`{"event":"x"}`))
	if events := drainEvents(t, member); len(events) != 0 {
		t.Fatalf("group should be dropped, got %+v", events)
	}
}

func TestUnknownAndMalformedCommands(t *testing.T) {
	server, _ := newTestServer(t)
	c := newTestConn(server, "conn-1", "user-1", "Alice")

	server.dispatch(c, commandFrame(t, "teleport", nil))
	events := drainEvents(t, c)
	if len(events) != 1 || events[0].Event != EventError {
		t.Fatalf("expected error for unknown op, got %+v", events)
	}

	server.dispatch(c, rawCommand("sendRoomMessage", []byte(`"not an object"`)))
	events = drainEvents(t, c)
	if len(events) != 1 || events[0].Event != EventError {
		t.Fatalf("expected error for malformed payload, got %+v", events)
	}
}

func TestChannelBrokerDelivers(t *testing.T) {
	b := NewChannelBroker()
	defer b.Close()

	got := make(chan *GroupEvent, 1)
	b.Start(func(e *GroupEvent) { got <- e })

	if err := b.Publish(&GroupEvent{GroupId: "g", Frame: []byte(`{}`)}); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-got:
		if e.GroupId != "g" {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}
