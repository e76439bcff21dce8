// Package realtime websocket 网关
// 所有会话状态（Registry、Presence、房间）只在 Hub.Run 所在的 goroutine 中修改；
// 每条连接的读协程负责解码、校验和角色查询，然后把处理函数按顺序投递给事件循环。
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"battlemap_server/internal/config"
	"battlemap_server/internal/infrastructure/metrics"
	"battlemap_server/internal/infrastructure/mq"
	"battlemap_server/internal/infrastructure/worker"
	"battlemap_server/internal/service/registry"
	"battlemap_server/pkg/constants"
)

// ErrHubStopped 事件循环已退出
var ErrHubStopped = errors.New("realtime: hub stopped")

const (
	persistTimeout = 5 * time.Second
	// 会话活动时间写回数据库的最小间隔，内存中的值每个事件都会刷新
	touchPersistInterval = 30 * time.Second
)

// Options 网关参数
type Options struct {
	MaxParticipants   int
	Inactivity        time.Duration
	RoleLookupTimeout time.Duration
	WriteWait         time.Duration
	PongWait          time.Duration
	MaxMessageBytes   int64
	Now               func() time.Time
}

// OptionsFromConfig 从全局配置构造
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxParticipants:   cfg.SessionConfig.MaxParticipants,
		Inactivity:        time.Duration(cfg.SessionConfig.InactivityHours) * time.Hour,
		RoleLookupTimeout: time.Duration(cfg.RealtimeConfig.RoleLookupTimeoutMs) * time.Millisecond,
		WriteWait:         time.Duration(cfg.RealtimeConfig.WriteWaitSeconds) * time.Second,
		PongWait:          time.Duration(cfg.RealtimeConfig.PongWaitSeconds) * time.Second,
		MaxMessageBytes:   cfg.RealtimeConfig.MaxMessageBytes,
	}
}

func (o *Options) fill() {
	if o.RoleLookupTimeout <= 0 {
		o.RoleLookupTimeout = 2 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 * 1024
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

func (o Options) pingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}

// Stats 运行时统计
type Stats struct {
	Sessions    int `json:"sessions"`
	Connections int `json:"connections"`
	Presence    int `json:"presence"`
}

// Hub 网关事件循环
type Hub struct {
	opts    Options
	store   Store
	sink    mq.EventSink
	persist *worker.Queue

	inbox chan func()
	done  chan struct{}

	// 以下字段只在事件循环内访问
	reg         *registry.Registry
	presence    *registry.PresenceTracker
	clients     map[string]*Client
	rooms       map[string]map[*Client]struct{}
	lastPersist map[string]time.Time
}

// NewHub persist 为 nil 时持久化在事件循环里同步执行（测试用）
func NewHub(store Store, sink mq.EventSink, persist *worker.Queue, opts Options) *Hub {
	opts.fill()
	if sink == nil {
		sink = mq.NewLogEventSink(nil)
	}
	return &Hub{
		opts:        opts,
		store:       store,
		sink:        sink,
		persist:     persist,
		inbox:       make(chan func(), constants.HUB_INBOX_SIZE),
		done:        make(chan struct{}),
		reg:         registry.NewWithClock(opts.Now),
		presence:    registry.NewPresenceTrackerWithClock(opts.Now),
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[*Client]struct{}),
		lastPersist: make(map[string]time.Time),
	}
}

// Run 事件循环，ctx 取消后关闭所有连接并返回
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	zap.L().Info("realtime hub started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			zap.L().Info("realtime hub stopped")
			return nil
		case fn := <-h.inbox:
			h.exec(fn)
		}
	}
}

func (h *Hub) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("realtime handler panic", zap.Any("recover", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// post 投递到事件循环；循环已退出时丢弃
func (h *Hub) post(fn func()) {
	select {
	case h.inbox <- fn:
	case <-h.done:
	}
}

// Do 在事件循环里执行 fn 并等待完成
func (h *Hub) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case h.inbox <- wrapped:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats 当前会话数、连接数
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := h.Do(ctx, func() {
		st = Stats{Sessions: h.reg.Len(), Connections: len(h.clients), Presence: h.presence.Len()}
	})
	return st, err
}

// Snapshot 会话在内存中的快照
func (h *Hub) Snapshot(ctx context.Context, sessionId string) (registry.Session, bool, error) {
	var (
		s  registry.Session
		ok bool
	)
	err := h.Do(ctx, func() { s, ok = h.reg.Snapshot(sessionId) })
	return s, ok, err
}

// EvictSessions 清理任务调用：通知并断开房间内的连接，移除内存状态
func (h *Hub) EvictSessions(ctx context.Context, sessionIds []string) error {
	return h.Do(ctx, func() {
		for _, id := range sessionIds {
			h.closeRoom(id, ErrCodeClosed, "Session has expired")
			h.reg.Delete(id)
			h.presence.RemoveSession(id)
			delete(h.lastPersist, id)
		}
	})
}

// RefreshSession HTTP 接口修改会话后调用，只影响本进程已加载的会话
// 会话被停用时断开房间内的连接，否则广播 session-updated
func (h *Hub) RefreshSession(ctx context.Context, p registry.Persisted) error {
	return h.Do(ctx, func() {
		if s, ok := h.reg.Get(p.Id); !ok || !s.Loaded {
			return
		}
		h.reg.Reconcile(p)
		if !p.IsActive {
			h.closeRoom(p.Id, ErrCodeInactive, "Session is not active")
			return
		}
		snap, _ := h.reg.Snapshot(p.Id)
		h.broadcast(p.Id, EventSessionUpdated, SessionUpdatedPayload{Session: snap}, nil)
	})
}

// ServeClient 把 HTTP 请求升级为 websocket 并启动读写协程
func (h *Hub) ServeClient(w http.ResponseWriter, r *http.Request, id Identity) error {
	if id.UserId == "" {
		return fmt.Errorf("realtime: empty user id")
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		hub:    h,
		conn:   conn,
		connId: uuid.NewString(),
		id:     id,
		send:   make(chan []byte, constants.CHANNEL_SIZE),
	}
	c.joined.Store("")
	h.post(func() { h.register(c) })
	go c.writePump()
	go c.readPump()
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	// 跨域由 gin cors 中间件控制
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ---------- 连接管理（事件循环内） ----------

func (h *Hub) register(c *Client) {
	h.clients[c.connId] = c
	metrics.ConnectionOpened()
	zap.L().Debug("ws 连接建立", zap.String("conn_id", c.connId), zap.String("user_id", c.id.UserId))
}

// unregister 读协程退出后调用
func (h *Hub) unregister(c *Client) {
	if _, ok := h.clients[c.connId]; !ok {
		return
	}
	if sessionId := c.sessionId; sessionId != "" {
		h.removeFromRoom(c)
		if p, ok := h.presence.MarkDisconnected(c.connId); ok {
			h.reg.RemoveOrDisconnectParticipant(sessionId, p.UserId, registry.ModeLeave)
			h.broadcast(sessionId, EventUserDisconnected, UserRefPayload{UserId: p.UserId}, nil)
			h.persistConnected(sessionId, p.UserId, false)
			h.journal(sessionId, EventUserDisconnected, p.UserId, nil)
		}
	}
	delete(h.clients, c.connId)
	h.closeClient(c, websocket.CloseNormalClosure, "")
	metrics.ConnectionClosed()
	zap.L().Debug("ws 连接断开", zap.String("conn_id", c.connId), zap.String("user_id", c.id.UserId))
}

// closeClient 关闭发送缓冲，写协程发送 close 帧后断开
func (h *Hub) closeClient(c *Client, code int, text string) {
	if c.closed {
		return
	}
	c.closeCode = code
	c.closeText = text
	c.closed = true
	close(c.send)
}

// closeRoom 通知并断开房间内的全部连接
func (h *Hub) closeRoom(sessionId, code, msg string) {
	for c := range h.rooms[sessionId] {
		h.sendError(c, code, msg)
		h.removeFromRoom(c)
		h.closeClient(c, websocket.CloseNormalClosure, "session closed")
	}
	delete(h.rooms, sessionId)
}

func (h *Hub) shutdown() {
	for _, c := range h.clients {
		h.closeClient(c, websocket.CloseGoingAway, "server shutting down")
	}
}

func (h *Hub) addToRoom(c *Client, sessionId string) {
	room, ok := h.rooms[sessionId]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[sessionId] = room
	}
	room[c] = struct{}{}
	c.setSession(sessionId)
}

func (h *Hub) removeFromRoom(c *Client) {
	if c.sessionId == "" {
		return
	}
	if room, ok := h.rooms[c.sessionId]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.sessionId)
		}
	}
	c.setSession("")
}

// requireMember 房间成员检查，不在房间内的事件回复 not-joined
func (h *Hub) requireMember(c *Client, sessionId string) bool {
	if c.closed {
		return false
	}
	if c.sessionId == sessionId {
		if _, ok := h.rooms[sessionId][c]; ok {
			return true
		}
	}
	zap.L().Warn("忽略非房间成员的事件",
		zap.String("conn_id", c.connId),
		zap.String("user_id", c.id.UserId),
		zap.String("session_id", sessionId),
	)
	h.sendError(c, ErrCodeNotJoined, "Join the session first")
	return false
}

// ---------- 发送 ----------

func (h *Hub) sendTo(c *Client, event string, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		zap.L().Error("编码出站事件失败", zap.String("event", event), zap.Error(err))
		return
	}
	c.enqueue(frame)
}

func (h *Hub) sendError(c *Client, code, msg string) {
	h.sendTo(c, EventSessionError, SessionErrorPayload{Code: code, Message: msg})
}

func (h *Hub) deny(c *Client, action, reason string) {
	metrics.RecordDenied(action)
	h.sendTo(c, EventPermissionDenied, PermissionDeniedPayload{Action: action, Reason: reason})
}

// broadcast 发给房间内所有连接，except 不为 nil 时跳过该连接
func (h *Hub) broadcast(sessionId, event string, data any, except *Client) {
	room := h.rooms[sessionId]
	if len(room) == 0 {
		return
	}
	frame, err := Encode(event, data)
	if err != nil {
		zap.L().Error("编码出站事件失败", zap.String("event", event), zap.Error(err))
		return
	}
	for c := range room {
		if c == except {
			continue
		}
		c.enqueue(frame)
	}
}

func (h *Hub) onDrop(c *Client) {
	metrics.RecordDrop()
	zap.L().Warn("发送缓冲已满，丢弃消息", zap.String("conn_id", c.connId), zap.String("user_id", c.id.UserId))
}

// ---------- 持久化与流水 ----------

// persistTask 交给按会话保序的后台队列
func (h *Hub) persistTask(sessionId, what string, fn func(ctx context.Context) error) {
	task := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			zap.L().Warn("持久化失败",
				zap.String("op", what),
				zap.String("session_id", sessionId),
				zap.Error(err),
			)
		}
	}
	if h.persist == nil {
		task(context.Background())
		return
	}
	if err := h.persist.Submit(sessionId, task); err != nil {
		zap.L().Warn("持久化任务提交失败", zap.String("op", what), zap.Error(err))
	}
}

// touch 刷新内存活动时间，按间隔写回数据库
func (h *Hub) touch(sessionId string) {
	now := h.reg.Touch(sessionId)
	if last, ok := h.lastPersist[sessionId]; ok && now.Sub(last) < touchPersistInterval {
		return
	}
	h.lastPersist[sessionId] = now
	h.persistTask(sessionId, "touch_activity", func(ctx context.Context) error {
		return h.store.TouchSessionActivity(ctx, sessionId, now)
	})
}

func (h *Hub) persistConnected(sessionId, userId string, connected bool) {
	now := h.opts.Now()
	h.persistTask(sessionId, "participant_connected", func(ctx context.Context) error {
		return h.store.UpdateParticipant(ctx, sessionId, userId, ParticipantUpdate{
			IsConnected: &connected,
			LastSeen:    &now,
		})
	})
}

// journal 追加会话事件流水
func (h *Hub) journal(sessionId, event, userId string, data any) {
	var payload json.RawMessage
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			zap.L().Warn("序列化事件流水失败", zap.String("event", event), zap.Error(err))
		} else {
			payload = raw
		}
	}
	metrics.RecordEvent(event)
	err := h.sink.Publish(context.Background(), mq.SessionEvent{
		SessionId: sessionId,
		Type:      event,
		UserId:    userId,
		Payload:   payload,
		At:        h.opts.Now(),
	})
	if err != nil {
		zap.L().Warn("写入事件流水失败", zap.String("event", event), zap.Error(err))
	}
}
