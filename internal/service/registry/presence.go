package registry

import "time"

// Position 光标坐标
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Presence 一个用户当前的连接状态，按 userId 唯一
type Presence struct {
	UserId       string    `json:"userId"`
	SessionId    string    `json:"sessionId"`
	ConnId       string    `json:"-"`
	Cursor       *Position `json:"cursor,omitempty"`
	LastActivity time.Time `json:"lastActivity"`
	Connected    bool      `json:"connected"`
}

// PresenceTracker 在线状态表，不持久化，完全由连接事件重建
type PresenceTracker struct {
	entries map[string]*Presence
	now     func() time.Time
}

// NewPresenceTracker 创建在线状态表
func NewPresenceTracker() *PresenceTracker {
	return NewPresenceTrackerWithClock(time.Now)
}

// NewPresenceTrackerWithClock 测试里注入时钟
func NewPresenceTrackerWithClock(now func() time.Time) *PresenceTracker {
	return &PresenceTracker{entries: make(map[string]*Presence), now: now}
}

// Upsert 每次（重）连接都整体覆盖
func (t *PresenceTracker) Upsert(userId string, p Presence) {
	p.UserId = userId
	if p.LastActivity.IsZero() {
		p.LastActivity = t.now()
	}
	t.entries[userId] = &p
}

// MarkDisconnected 按连接 id 查找并标记离线
// O(n) 扫描；只有仍处于在线状态且连接 id 匹配的记录会被修改
func (t *PresenceTracker) MarkDisconnected(connId string) (Presence, bool) {
	for _, p := range t.entries {
		if p.ConnId == connId && p.Connected {
			p.Connected = false
			p.LastActivity = t.now()
			return *p, true
		}
	}
	return Presence{}, false
}

// Get 返回用户的在线状态
func (t *PresenceTracker) Get(userId string) (Presence, bool) {
	p, ok := t.entries[userId]
	if !ok {
		return Presence{}, false
	}
	return *p, true
}

// UpdateCursor 更新光标位置，用户不在线时返回 false
func (t *PresenceTracker) UpdateCursor(userId string, pos Position) bool {
	p, ok := t.entries[userId]
	if !ok || !p.Connected {
		return false
	}
	cp := pos
	p.Cursor = &cp
	p.LastActivity = t.now()
	return true
}

// SetDisconnected 按 userId 标记离线（leave / kick 使用）
func (t *PresenceTracker) SetDisconnected(userId string) bool {
	p, ok := t.entries[userId]
	if !ok {
		return false
	}
	p.Connected = false
	p.LastActivity = t.now()
	return true
}

// RemoveSession 删除属于某个会话的全部记录
func (t *PresenceTracker) RemoveSession(sessionId string) {
	for id, p := range t.entries {
		if p.SessionId == sessionId {
			delete(t.entries, id)
		}
	}
}

// Len 记录数
func (t *PresenceTracker) Len() int {
	return len(t.entries)
}
