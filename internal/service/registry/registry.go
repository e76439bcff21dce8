// Package registry 进程内的会话表与在线状态表
// 两者只由网关事件循环所在的 goroutine 访问，因此不加锁
package registry

import (
	"sort"
	"time"

	"battlemap_server/internal/service/permission"
)

// RemoveMode 参与者移除方式
type RemoveMode int

const (
	// ModeLeave 只标记离线，保留参与者以便重连
	ModeLeave RemoveMode = iota
	// ModeKick 直接删除参与者
	ModeKick
)

// Participant 会话内的一个成员
type Participant struct {
	UserId              string          `json:"userId"`
	DisplayName         string          `json:"displayName"`
	Role                permission.Role `json:"role"`
	AssignedCharacterId string          `json:"assignedCharacterId,omitempty"`
	IsConnected         bool            `json:"isConnected"`
	LastSeen            time.Time       `json:"lastSeen"`
	JoinedAt            time.Time       `json:"joinedAt"`
}

// Session 内存中的会话
// Participants 的顺序即回合顺序
type Session struct {
	Id           string         `json:"id"`
	Name         string         `json:"name"`
	JoinCode     string         `json:"joinCode"`
	MapId        string         `json:"mapId"`
	OwnerId      string         `json:"ownerId"`
	IsActive     bool           `json:"isActive"`
	CurrentTurn  int            `json:"currentTurn"`
	Round        int            `json:"round"`
	CreatedAt    time.Time      `json:"createdAt"`
	ExpiresAt    *time.Time     `json:"expiresAt"`
	LastActivity time.Time      `json:"lastActivity"`
	Participants []*Participant `json:"participants"`

	// Loaded 是否已用持久化数据校准过
	Loaded bool `json:"-"`

	// kicked 被踢出的用户；持久层的删除是异步的，重新加入前不能用旧记录恢复
	kicked map[string]struct{}
}

// TurnState 回合推进结果
type TurnState struct {
	CurrentTurn int `json:"currentTurn"`
	Round       int `json:"round"`
}

// Persisted 从持久层读出的会话快照，用于 Reconcile
type Persisted struct {
	Id           string
	Name         string
	JoinCode     string
	MapId        string
	OwnerId      string
	IsActive     bool
	CurrentTurn  int
	Round        int
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	LastActivity time.Time
	Participants []Participant
}

// Registry 会话表
type Registry struct {
	sessions map[string]*Session
	now      func() time.Time
}

// New 创建空的会话表
func New() *Registry {
	return NewWithClock(time.Now)
}

// NewWithClock 测试里注入时钟
func NewWithClock(now func() time.Time) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      now,
	}
}

// Get 返回会话，不存在时 ok 为 false
func (r *Registry) Get(sessionId string) (*Session, bool) {
	s, ok := r.sessions[sessionId]
	return s, ok
}

// CreateOrGet 幂等：已存在直接返回，否则以 turn=0 round=1 新建
func (r *Registry) CreateOrGet(sessionId string) *Session {
	if s, ok := r.sessions[sessionId]; ok {
		return s
	}
	now := r.now()
	s := &Session{
		Id:           sessionId,
		IsActive:     true,
		CurrentTurn:  0,
		Round:        1,
		CreatedAt:    now,
		LastActivity: now,
	}
	r.sessions[sessionId] = s
	return s
}

// Reconcile 用持久化数据校准内存会话
// 内存里已有的参与者、回合以内存为准（持久层写入是异步的，可能落后）；
// 其余参与者取持久层的记录，在线状态一律为 false。被踢的用户不会被恢复
func (r *Registry) Reconcile(p Persisted) *Session {
	s := r.CreateOrGet(p.Id)
	s.Name = p.Name
	s.JoinCode = p.JoinCode
	s.MapId = p.MapId
	s.OwnerId = p.OwnerId
	s.IsActive = p.IsActive
	if !s.Loaded {
		s.CurrentTurn = p.CurrentTurn
		if p.Round > 0 {
			s.Round = p.Round
		}
	}
	if !p.CreatedAt.IsZero() {
		s.CreatedAt = p.CreatedAt
	}
	s.ExpiresAt = p.ExpiresAt
	if p.LastActivity.After(s.LastActivity) {
		s.LastActivity = p.LastActivity
	}

	live := make(map[string]*Participant, len(s.Participants))
	for _, part := range s.Participants {
		live[part.UserId] = part
	}
	roster := make([]*Participant, 0, len(p.Participants))
	seen := make(map[string]bool, len(p.Participants))
	for _, persisted := range p.Participants {
		if _, gone := s.kicked[persisted.UserId]; gone {
			continue
		}
		seen[persisted.UserId] = true
		if cur, ok := live[persisted.UserId]; ok {
			roster = append(roster, cur)
			continue
		}
		cp := persisted
		cp.IsConnected = false
		roster = append(roster, &cp)
	}
	// 内存里有、持久层还没写进去的
	for _, part := range s.Participants {
		if !seen[part.UserId] {
			roster = append(roster, part)
		}
	}
	sort.SliceStable(roster, func(i, j int) bool {
		return roster[i].JoinedAt.Before(roster[j].JoinedAt)
	})
	s.Participants = roster
	s.clampTurn()
	s.Loaded = true
	return s
}

// AddParticipant 幂等：同一 userId 已存在则原地更新连接相关字段
func (r *Registry) AddParticipant(sessionId string, p Participant) *Participant {
	s := r.CreateOrGet(sessionId)
	now := r.now()
	delete(s.kicked, p.UserId)
	if existing := s.find(p.UserId); existing != nil {
		if p.DisplayName != "" {
			existing.DisplayName = p.DisplayName
		}
		existing.Role = p.Role
		existing.AssignedCharacterId = p.AssignedCharacterId
		existing.IsConnected = p.IsConnected
		existing.LastSeen = now
		return existing
	}
	cp := p
	if cp.JoinedAt.IsZero() {
		cp.JoinedAt = now
	}
	cp.LastSeen = now
	s.Participants = append(s.Participants, &cp)
	return &cp
}

// RemoveOrDisconnectParticipant leave 只标记离线，kick 直接删除
// 返回被处理的参与者副本；不存在时 ok 为 false
func (r *Registry) RemoveOrDisconnectParticipant(sessionId, userId string, mode RemoveMode) (Participant, bool) {
	s, ok := r.sessions[sessionId]
	if !ok {
		return Participant{}, false
	}
	idx := s.index(userId)
	if idx < 0 {
		return Participant{}, false
	}
	target := *s.Participants[idx]
	switch mode {
	case ModeKick:
		s.Participants = append(s.Participants[:idx], s.Participants[idx+1:]...)
		s.clampTurn()
		if s.kicked == nil {
			s.kicked = make(map[string]struct{})
		}
		s.kicked[userId] = struct{}{}
	default:
		s.Participants[idx].IsConnected = false
		s.Participants[idx].LastSeen = r.now()
	}
	target.IsConnected = false
	return target, true
}

// AdvanceTurn 推进回合
// 没有参与者时 turn 保持 0、round 不变
func (r *Registry) AdvanceTurn(sessionId string) (TurnState, bool) {
	s, ok := r.sessions[sessionId]
	if !ok {
		return TurnState{}, false
	}
	s.CurrentTurn, s.Round = NextTurn(s.CurrentTurn, s.Round, len(s.Participants))
	return TurnState{CurrentTurn: s.CurrentTurn, Round: s.Round}, true
}

// NextTurn 纯函数：越过最后一位参与者时 round+1 并回到 0
func NextTurn(turn, round, n int) (int, int) {
	if n <= 0 {
		return 0, round
	}
	turn++
	if turn >= n {
		return 0, round + 1
	}
	return turn, round
}

// UpdateRole 修改参与者角色
func (r *Registry) UpdateRole(sessionId, userId string, role permission.Role) bool {
	s, ok := r.sessions[sessionId]
	if !ok {
		return false
	}
	p := s.find(userId)
	if p == nil {
		return false
	}
	p.Role = role
	return true
}

// AssignCharacter 给参与者分配角色实体，characterId 为空表示取消分配
func (r *Registry) AssignCharacter(sessionId, userId, characterId string) bool {
	s, ok := r.sessions[sessionId]
	if !ok {
		return false
	}
	p := s.find(userId)
	if p == nil {
		return false
	}
	p.AssignedCharacterId = characterId
	return true
}

// Touch 刷新会话最近活动时间，每个变更事件都要调用
func (r *Registry) Touch(sessionId string) time.Time {
	now := r.now()
	if s, ok := r.sessions[sessionId]; ok {
		s.LastActivity = now
	}
	return now
}

// Delete 移除会话（清理任务调用）
func (r *Registry) Delete(sessionId string) {
	delete(r.sessions, sessionId)
}

// Len 当前内存中的会话数
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Snapshot 深拷贝一份会话，可以安全地交给其他 goroutine 序列化
func (r *Registry) Snapshot(sessionId string) (Session, bool) {
	s, ok := r.sessions[sessionId]
	if !ok {
		return Session{}, false
	}
	cp := *s
	cp.kicked = nil
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		cp.ExpiresAt = &t
	}
	cp.Participants = make([]*Participant, len(s.Participants))
	for i, p := range s.Participants {
		pc := *p
		cp.Participants[i] = &pc
	}
	return cp, true
}

// ConnectedParticipants 当前在线的参与者（以 IsConnected 为准）
func (r *Registry) ConnectedParticipants(sessionId string) []Participant {
	s, ok := r.sessions[sessionId]
	if !ok {
		return nil
	}
	out := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.IsConnected {
			out = append(out, *p)
		}
	}
	return out
}

// Participant 返回参与者副本
func (r *Registry) Participant(sessionId, userId string) (Participant, bool) {
	s, ok := r.sessions[sessionId]
	if !ok {
		return Participant{}, false
	}
	p := s.find(userId)
	if p == nil {
		return Participant{}, false
	}
	return *p, true
}

// WasKicked userId 被踢出后还没有重新加入
func (r *Registry) WasKicked(sessionId, userId string) bool {
	s, ok := r.sessions[sessionId]
	if !ok {
		return false
	}
	_, gone := s.kicked[userId]
	return gone
}

// IsExpired now 超过 expiresAt，或无活动时间超过 inactivity（0 表示不判断）
func IsExpired(s *Session, now time.Time, inactivity time.Duration) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt != nil && now.After(*s.ExpiresAt) {
		return true
	}
	return inactivity > 0 && now.Sub(s.LastActivity) > inactivity
}

func (s *Session) find(userId string) *Participant {
	if i := s.index(userId); i >= 0 {
		return s.Participants[i]
	}
	return nil
}

func (s *Session) index(userId string) int {
	for i, p := range s.Participants {
		if p.UserId == userId {
			return i
		}
	}
	return -1
}

// clampTurn 参与者减少后保证 currentTurn 落在 [0, n)
func (s *Session) clampTurn() {
	n := len(s.Participants)
	if n == 0 || s.CurrentTurn < 0 || s.CurrentTurn >= n {
		s.CurrentTurn = 0
	}
}
