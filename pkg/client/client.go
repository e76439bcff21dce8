// Package client 战斗地图实时网关的 Go 客户端
// 断线后按指数退避重连，重连成功自动重新加入之前的会话
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"battlemap_server/internal/service/history"
	"battlemap_server/internal/service/realtime"
	"battlemap_server/internal/service/registry"
	"battlemap_server/pkg/constants"
)

// 客户端本地产生的事件，不会出现在线路上
const (
	EventReconnected  = "client-reconnected"
	EventDisconnected = "client-disconnected"
)

var ErrNotConnected = errors.New("client: not connected")

// Event 收到的一帧
type Event struct {
	Event string
	Data  json.RawMessage
}

// Options 连接参数
type Options struct {
	URL          string // 形如 ws://127.0.0.1:8000/wss
	Token        string // HTTP 加入会话时拿到的 token
	UserId       string // 服务端不校验 token 时使用
	MaxRetries   int
	InitialDelay time.Duration
	Dialer       *websocket.Dialer
}

func (o *Options) fill() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = constants.CLIENT_MAX_RECONNECT
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = constants.CLIENT_RECONNECT_DELAY * time.Millisecond
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Client 一条到网关的连接
// 写操作串行化，读循环在独立协程里把帧投递到 Events()
type Client struct {
	opts   Options
	events chan Event

	mu          sync.Mutex
	conn        *websocket.Conn
	sessionId   string
	displayName string
	closed      bool
}

func New(opts Options) *Client {
	opts.fill()
	return &Client{opts: opts, events: make(chan Event, constants.CHANNEL_SIZE)}
}

// Events 收到的事件；连接彻底断开后关闭
func (c *Client) Events() <-chan Event {
	return c.events
}

// SessionId 当前加入的会话
func (c *Client) SessionId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionId
}

// Connect 建立连接并启动读循环，ctx 结束时连接随之关闭
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(ctx, conn)
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
	return nil
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if c.opts.Token != "" {
		q.Set("token", c.opts.Token)
	} else if c.opts.UserId != "" {
		q.Set("user_id", c.opts.UserId)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dial 带退避的握手，4xx 视为永久失败不再重试
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialDelay

	return backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, resp, err := c.opts.Dialer.DialContext(ctx, endpoint, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if resp != nil && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return conn, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.opts.MaxRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			zap.L().Warn("连接网关失败，稍后重试", zap.Duration("next", next), zap.Error(err))
		}),
	)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer close(c.events)
	for {
		_, data, err := conn.ReadMessage()
		if err == nil {
			var env realtime.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				zap.L().Warn("无法解析的帧", zap.Error(err))
				continue
			}
			if !c.deliver(ctx, Event{Event: env.Event, Data: env.Data}) {
				return
			}
			continue
		}

		if c.isClosed() || ctx.Err() != nil {
			return
		}
		// 被踢出、会话关闭或被新连接顶替时服务端主动关闭，不再重连
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.ClosePolicyViolation) {
			zap.L().Info("服务端关闭了连接", zap.Error(err))
			c.deliver(ctx, Event{Event: EventDisconnected})
			return
		}

		zap.L().Warn("连接断开，开始重连", zap.Error(err))
		next, err := c.dial(ctx)
		if err != nil {
			zap.L().Error("重连失败", zap.Error(err))
			c.deliver(ctx, Event{Event: EventDisconnected})
			return
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = next.Close()
			return
		}
		c.conn = next
		sessionId, displayName := c.sessionId, c.displayName
		c.mu.Unlock()
		conn = next

		if sessionId != "" {
			if err := c.send(realtime.EventJoinSession, realtime.JoinPayload{
				Target:      realtime.Target{SessionId: sessionId},
				DisplayName: displayName,
			}); err != nil {
				zap.L().Warn("重新加入会话失败", zap.String("session_id", sessionId), zap.Error(err))
			}
		}
		if !c.deliver(ctx, Event{Event: EventReconnected}) {
			return
		}
	}
}

func (c *Client) deliver(ctx context.Context, ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close 主动断开，不会触发重连
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}

// Send 发送任意事件
func (c *Client) Send(event string, data any) error {
	return c.send(event, data)
}

// send 持锁写，gorilla 连接只允许一个并发写者
func (c *Client) send(event string, data any) error {
	frame, err := realtime.Encode(event, data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) target() realtime.Target {
	return realtime.Target{SessionId: c.SessionId()}
}

// Join 加入会话，断线重连后会自动再次加入
func (c *Client) Join(sessionId, displayName string) error {
	c.mu.Lock()
	c.sessionId, c.displayName = sessionId, displayName
	c.mu.Unlock()
	return c.send(realtime.EventJoinSession, realtime.JoinPayload{
		Target:      realtime.Target{SessionId: sessionId},
		DisplayName: displayName,
	})
}

// Leave 离开当前会话
func (c *Client) Leave() error {
	t := c.target()
	if t.SessionId == "" {
		return nil
	}
	c.mu.Lock()
	c.sessionId, c.displayName = "", ""
	c.mu.Unlock()
	return c.send(realtime.EventLeaveSession, realtime.LeavePayload{Target: t})
}

func (c *Client) Chat(message, kind string) error {
	return c.send(realtime.EventChatMessage, realtime.ChatPayload{
		Target:  c.target(),
		Message: realtime.ChatBody{Message: message, Type: kind},
	})
}

func (c *Client) MoveCursor(x, y float64) error {
	return c.send(realtime.EventCursorMove, realtime.CursorMovePayload{
		Target:   c.target(),
		Position: &registry.Position{X: x, Y: y},
	})
}

func (c *Client) NextTurn() error {
	return c.send(realtime.EventNextTurn, realtime.NextTurnPayload{Target: c.target()})
}

func (c *Client) UpdateInitiative(entries []realtime.InitiativeEntry) error {
	return c.send(realtime.EventInitiativeUpdate, realtime.InitiativeUpdatePayload{
		Target:     c.target(),
		Initiative: entries,
	})
}

func (c *Client) UpdateRole(targetUserId, role string) error {
	return c.send(realtime.EventUpdateRole, realtime.UpdateRolePayload{
		Target:       c.target(),
		TargetUserId: targetUserId,
		Role:         role,
	})
}

func (c *Client) AssignCharacter(targetUserId, characterId string) error {
	return c.send(realtime.EventAssignCharacter, realtime.AssignCharacterPayload{
		Target:       c.target(),
		TargetUserId: targetUserId,
		CharacterId:  characterId,
	})
}

func (c *Client) Kick(targetUserId string) error {
	return c.send(realtime.EventKickParticipant, realtime.KickPayload{
		Target:       c.target(),
		TargetUserId: targetUserId,
	})
}

func (c *Client) MoveEntity(entityId string, to history.Position) error {
	return c.send(realtime.EventEntityMove, realtime.EntityMovePayload{
		Target:   c.target(),
		EntityId: entityId,
		Position: &to,
	})
}

func (c *Client) UpdateEntity(entity history.MapEntity) error {
	return c.send(realtime.EventEntityUpdate, realtime.EntityUpdatePayload{
		Target: c.target(),
		Entity: &entity,
	})
}

func (c *Client) UpdateTerrain(cells []history.GridCell) error {
	return c.send(realtime.EventTerrainUpdate, realtime.TerrainUpdatePayload{
		Target:  c.target(),
		Terrain: cells,
	})
}

func (c *Client) UpdateMap(mapData json.RawMessage) error {
	return c.send(realtime.EventMapUpdate, realtime.MapUpdatePayload{
		Target:  c.target(),
		MapData: mapData,
	})
}
