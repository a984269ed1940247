package chat

import (
	"sync"
)

// GroupRegistry 广播组注册表
// 组是纯运行时概念：groupId -> (connId -> *Conn)，进程重启即清空。
// 成员资格的持久真相在数据库里，这里只记录"当前哪些连接在听哪个组"。
// 两级都用 sync.Map，广播遍历期间不持有任何互斥锁
type GroupRegistry struct {
	groups sync.Map // groupId -> *sync.Map (connId -> *Conn)
}

// NewGroupRegistry 创建广播组注册表
func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{}
}

// Add 把连接加入组，重复加入幂等
func (r *GroupRegistry) Add(groupId string, c *Conn) {
	members, _ := r.groups.LoadOrStore(groupId, &sync.Map{})
	members.(*sync.Map).Store(c.Id(), c)
}

// Remove 把连接移出组，连接不在组内时无操作
func (r *GroupRegistry) Remove(groupId, connId string) {
	if members, ok := r.groups.Load(groupId); ok {
		members.(*sync.Map).Delete(connId)
	}
}

// RemoveConn 把连接移出所有组（连接断开时）
func (r *GroupRegistry) RemoveConn(connId string) {
	r.groups.Range(func(_, value any) bool {
		value.(*sync.Map).Delete(connId)
		return true
	})
}

// Drop 丢弃整个组（房间解散时）
func (r *GroupRegistry) Drop(groupId string) {
	r.groups.Delete(groupId)
}

// Members 返回组内当前连接的快照
func (r *GroupRegistry) Members(groupId string) []*Conn {
	value, ok := r.groups.Load(groupId)
	if !ok {
		return nil
	}
	var conns []*Conn
	value.(*sync.Map).Range(func(_, v any) bool {
		conns = append(conns, v.(*Conn))
		return true
	})
	return conns
}

// Broadcast 把帧投递给组内所有连接
// 投递经过各连接的发送队列，慢客户端不会阻塞这里
func (r *GroupRegistry) Broadcast(groupId string, frame []byte) {
	if frame == nil {
		return
	}
	value, ok := r.groups.Load(groupId)
	if !ok {
		return
	}
	value.(*sync.Map).Range(func(_, v any) bool {
		v.(*Conn).Send(frame)
		return true
	})
}
