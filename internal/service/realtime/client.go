package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"battlemap_server/internal/service/permission"
	"battlemap_server/pkg/errorx"
)

// validate websocket 载荷校验，字段名使用 json tag
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Identity 握手时绑定到连接上的身份
// SessionId 非空时（来自会话令牌）该连接只能加入这个会话
type Identity struct {
	UserId    string
	SessionId string
}

// Client 一条 websocket 连接
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	connId string
	id     Identity
	send   chan []byte

	// joined 当前所在会话的只读副本，读协程用它跳过无意义的角色查询
	joined atomic.Value

	// 以下字段只由事件循环读写
	sessionId string
	closed    bool
	closeCode int
	closeText string
}

// ConnId 连接 id
func (c *Client) ConnId() string { return c.connId }

// UserId 绑定的用户
func (c *Client) UserId() string { return c.id.UserId }

func (c *Client) joinedSession() string {
	s, _ := c.joined.Load().(string)
	return s
}

// setSession 只在事件循环里调用
func (c *Client) setSession(sessionId string) {
	c.sessionId = sessionId
	c.joined.Store(sessionId)
}

// enqueue 非阻塞投递，缓冲满直接丢弃；只在事件循环里调用
func (c *Client) enqueue(frame []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.hub.onDrop(c)
		return false
	}
}

// readPump 读取并预处理入站事件，按到达顺序投递给事件循环
func (c *Client) readPump() {
	defer func() {
		c.hub.post(func() { c.hub.unregister(c) })
		_ = c.conn.Close()
	}()

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				zap.L().Warn("ws 连接异常断开", zap.String("conn_id", c.connId), zap.Error(err))
			}
			return
		}
		c.handle(data)
	}
}

// writePump 把发送缓冲写到连接上，并定期 ping
func (c *Client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				// 事件循环关闭了发送缓冲，说明连接要被断开
				code := c.closeCode
				if code == 0 {
					code = websocket.CloseNormalClosure
				}
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, c.closeText))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Debug("ws 写失败", zap.String("conn_id", c.connId), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle 解码、校验、绑定身份；格式错误的帧记录后丢弃
func (c *Client) handle(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		zap.L().Warn("丢弃无法解析的帧", zap.String("conn_id", c.connId), zap.Error(err))
		return
	}
	if err := validate.Struct(&env); err != nil {
		zap.L().Warn("丢弃格式错误的帧", zap.String("conn_id", c.connId), zap.Error(err))
		return
	}

	switch env.Event {
	case EventJoinSession, EventJoin:
		var p JoinPayload
		if c.decode(env, &p) {
			c.prepareJoin(p)
		}
	case EventLeaveSession, EventLeave:
		var p LeavePayload
		if c.decode(env, &p) {
			c.hub.post(func() { c.hub.leave(c, p) })
		}
	case EventCursorMove:
		var p CursorMovePayload
		if c.decode(env, &p) {
			c.hub.post(func() { c.hub.cursorMove(c, p) })
		}
	case EventNextTurn:
		var p NextTurnPayload
		if c.decode(env, &p) {
			c.hub.post(func() { c.hub.nextTurn(c, p) })
		}
	case EventChatMessage:
		var p ChatPayload
		if c.decode(env, &p) {
			c.hub.post(func() { c.hub.chat(c, p) })
		}
	case EventMapUpdate:
		var p MapUpdatePayload
		if c.decode(env, &p) {
			c.gated(p.SessionId, func(a Access) { c.hub.mapUpdate(c, p, a) })
		}
	case EventEntityMove:
		var p EntityMovePayload
		if c.decode(env, &p) {
			c.gated(p.SessionId, func(a Access) { c.hub.entityMove(c, p, a) })
		}
	case EventEntityUpdate:
		var p EntityUpdatePayload
		if c.decode(env, &p) {
			c.gated(p.SessionId, func(a Access) { c.hub.entityUpdate(c, p, a) })
		}
	case EventTerrainUpdate:
		var p TerrainUpdatePayload
		if c.decode(env, &p) {
			c.gated(p.SessionId, func(a Access) { c.hub.terrainUpdate(c, p, a) })
		}
	case EventInitiativeUpdate:
		var p InitiativeUpdatePayload
		if c.decode(env, &p) {
			c.gated(p.SessionId, func(a Access) { c.hub.initiativeUpdate(c, p, a) })
		}
	case EventUpdateRole:
		var p UpdateRolePayload
		if c.decode(env, &p) {
			c.gated(p.SessionId, func(a Access) { c.hub.updateRole(c, p, a) })
		}
	case EventAssignCharacter:
		var p AssignCharacterPayload
		if c.decode(env, &p) {
			c.gated(p.SessionId, func(a Access) { c.hub.assignCharacter(c, p, a) })
		}
	case EventKickParticipant:
		var p KickPayload
		if c.decode(env, &p) {
			c.gated(p.SessionId, func(a Access) { c.hub.kick(c, p, a) })
		}
	default:
		zap.L().Warn("丢弃未知事件", zap.String("conn_id", c.connId), zap.String("event", env.Event))
	}
}

// decode 解码并校验载荷；userId 与连接身份不一致视为伪造
func (c *Client) decode(env Envelope, p targeted) bool {
	if len(env.Data) == 0 {
		zap.L().Warn("丢弃缺少 data 的帧", zap.String("event", env.Event))
		return false
	}
	if err := json.Unmarshal(env.Data, p); err != nil {
		zap.L().Warn("丢弃无法解析的载荷", zap.String("event", env.Event), zap.Error(err))
		return false
	}
	if err := validate.Struct(p); err != nil {
		zap.L().Warn("丢弃校验失败的载荷", zap.String("event", env.Event), zap.Error(err))
		return false
	}
	if t := p.target(); t.UserId != "" && t.UserId != c.id.UserId {
		zap.L().Warn("丢弃伪造身份的事件",
			zap.String("event", env.Event),
			zap.String("conn_user", c.id.UserId),
			zap.String("claimed_user", t.UserId),
		)
		return false
	}
	return true
}

// gated 需要权限的事件：先在读协程查角色，再投递给事件循环判断
// 查询失败按无角色处理，不会阻塞事件循环；事件循环里内存记录优先
func (c *Client) gated(sessionId string, apply func(a Access)) {
	if c.joinedSession() != sessionId {
		c.hub.post(func() { c.hub.requireMember(c, sessionId) })
		return
	}
	looked := c.lookupAccess(sessionId)
	c.hub.post(func() {
		if !c.hub.requireMember(c, sessionId) {
			return
		}
		apply(c.hub.accessOf(sessionId, c.id.UserId, looked))
	})
}

func (c *Client) lookupAccess(sessionId string) Access {
	ctx, cancel := context.WithTimeout(context.Background(), c.hub.opts.RoleLookupTimeout)
	defer cancel()
	a, err := c.hub.store.GetParticipantAccess(ctx, sessionId, c.id.UserId)
	if err != nil {
		zap.L().Warn("角色查询失败，按无角色处理",
			zap.String("session_id", sessionId),
			zap.String("user_id", c.id.UserId),
			zap.Error(err),
		)
		return Access{Role: permission.RoleNone}
	}
	if a == nil {
		return Access{Role: permission.RoleNone}
	}
	return *a
}

// prepareJoin 读协程里加载会话与角色，结果交给事件循环
func (c *Client) prepareJoin(p JoinPayload) {
	if c.id.SessionId != "" && c.id.SessionId != p.SessionId {
		c.hub.post(func() {
			c.hub.sendError(c, ErrCodeForbidden, "Token is not valid for this session")
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.hub.opts.RoleLookupTimeout)
	defer cancel()

	persisted, err := c.hub.store.LoadSession(ctx, p.SessionId)
	if err != nil {
		code, msg := ErrCodeUnavailable, "Session temporarily unavailable"
		if errors.Is(err, errorx.ErrSessionNotFound) {
			code, msg = ErrCodeNotFound, errorx.ErrSessionNotFound.Msg
		} else {
			zap.L().Error("加载会话失败", zap.String("session_id", p.SessionId), zap.Error(err))
		}
		c.hub.post(func() { c.hub.sendError(c, code, msg) })
		return
	}

	access, accessErr := c.hub.store.GetParticipantAccess(ctx, p.SessionId, c.id.UserId)
	if accessErr != nil {
		zap.L().Warn("加入时角色查询失败", zap.String("session_id", p.SessionId), zap.Error(accessErr))
	}
	c.hub.post(func() { c.hub.join(c, p, persisted, access, accessErr) })
}
