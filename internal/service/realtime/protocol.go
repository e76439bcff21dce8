package realtime

import (
	"encoding/json"
	"time"

	"battlemap_server/internal/service/history"
	"battlemap_server/internal/service/permission"
	"battlemap_server/internal/service/registry"
)

// 入站事件
const (
	EventJoinSession      = "join-session"
	EventJoin             = "join"
	EventLeaveSession     = "leave-session"
	EventLeave            = "leave"
	EventCursorMove       = "cursor-move"
	EventMapUpdate        = "map-update"
	EventEntityMove       = "entity-move"
	EventEntityUpdate     = "entity-update"
	EventTerrainUpdate    = "terrain-update"
	EventInitiativeUpdate = "initiative-update"
	EventNextTurn         = "next-turn"
	EventChatMessage      = "chat-message"
	EventUpdateRole       = "update-role"
	EventAssignCharacter  = "assign-character"
	EventKickParticipant  = "kick-participant"
)

// 出站事件
const (
	EventUserJoined        = "user-joined"
	EventSessionState      = "session-state"
	EventUserLeft          = "user-left"
	EventCursorMoved       = "cursor-moved"
	EventMapUpdated        = "map-updated"
	EventEntityMoved       = "entity-moved"
	EventEntityUpdated     = "entity-updated"
	EventTerrainUpdated    = "terrain-updated"
	EventInitiativeUpdated = "initiative-updated"
	EventTurnChanged       = "turn-changed"
	EventRoleUpdated       = "role-updated"
	EventCharacterAssigned = "character-assigned"
	EventParticipantKicked = "participant-kicked"
	EventKickedFromSession = "kicked-from-session"
	EventUserDisconnected  = "user-disconnected"
	EventSessionUpdated    = "session-updated"
	EventSessionError      = "session-error"
	EventPermissionDenied  = "permission-denied"
)

// session-error 的 code
const (
	ErrCodeNotFound            = "session-not-found"
	ErrCodeExpired             = "session-expired"
	ErrCodeFull                = "session-full"
	ErrCodeInactive            = "session-inactive"
	ErrCodeNotJoined           = "not-joined"
	ErrCodeForbidden           = "forbidden"
	ErrCodeParticipantNotFound = "participant-not-found"
	ErrCodeClosed              = "session-closed"
	ErrCodeSuperseded          = "superseded"
	ErrCodeUnavailable         = "unavailable"
)

// Envelope 每一帧的外层结构
type Envelope struct {
	Event string          `json:"event" validate:"required,max=32"`
	Data  json.RawMessage `json:"data"`
}

// ---------- inbound ----------

// Target 所有入站事件共有的字段
// userId 可省略；出现时必须等于连接握手时绑定的用户
type Target struct {
	SessionId string `json:"sessionId" validate:"required,max=64"`
	UserId    string `json:"userId,omitempty" validate:"omitempty,max=64"`
}

func (t Target) target() Target { return t }

type JoinPayload struct {
	Target
	DisplayName string `json:"displayName,omitempty" validate:"omitempty,max=64"`
}

type LeavePayload struct {
	Target
}

type CursorMovePayload struct {
	Target
	Position *registry.Position `json:"position" validate:"required"`
}

type MapUpdatePayload struct {
	Target
	MapData json.RawMessage `json:"mapData" validate:"required"`
}

type EntityMovePayload struct {
	Target
	EntityId string            `json:"entityId" validate:"required,max=64"`
	Position *history.Position `json:"position" validate:"required"`
}

type EntityUpdatePayload struct {
	Target
	Entity *history.MapEntity `json:"entity" validate:"required"`
}

type TerrainUpdatePayload struct {
	Target
	Terrain []history.GridCell `json:"terrain" validate:"required,min=1,dive"`
}

type InitiativeEntry struct {
	Id         string `json:"id" validate:"required,max=64"`
	EntityId   string `json:"entityId,omitempty" validate:"omitempty,max=64"`
	Name       string `json:"name" validate:"max=100"`
	Initiative int    `json:"initiative"`
	Order      int    `json:"order"`
}

type InitiativeUpdatePayload struct {
	Target
	Initiative []InitiativeEntry `json:"initiative" validate:"dive"`
}

type NextTurnPayload struct {
	Target
}

type ChatBody struct {
	Message string `json:"message" validate:"required,max=500"`
	Type    string `json:"type,omitempty" validate:"omitempty,oneof=chat system roll action"`
}

type ChatPayload struct {
	Target
	Message ChatBody `json:"message"`
}

type UpdateRolePayload struct {
	Target
	TargetUserId string `json:"targetUserId" validate:"required,max=64"`
	Role         string `json:"role" validate:"required,oneof=DM PLAYER"`
}

type AssignCharacterPayload struct {
	Target
	TargetUserId string `json:"targetUserId" validate:"required,max=64"`
	// 为空表示取消分配
	CharacterId string `json:"characterId" validate:"omitempty,max=64"`
}

type KickPayload struct {
	Target
	TargetUserId string `json:"targetUserId" validate:"required,max=64"`
}

// targeted 用于统一读取 Target
type targeted interface {
	target() Target
}

// ---------- outbound ----------

type SessionErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PermissionDeniedPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type SessionStatePayload struct {
	Session        registry.Session              `json:"session"`
	ConnectedUsers []registry.Participant        `json:"connectedUsers"`
	Role           permission.Role               `json:"role"`
	Permissions    map[permission.Permission]bool `json:"permissions"`
}

// SessionUpdatedPayload 会话元数据被 HTTP 接口修改
type SessionUpdatedPayload struct {
	Session registry.Session `json:"session"`
}

type UserRefPayload struct {
	UserId string `json:"userId"`
}

type CursorMovedPayload struct {
	UserId   string            `json:"userId"`
	Position registry.Position `json:"position"`
}

type MapUpdatedPayload struct {
	MapData json.RawMessage `json:"mapData"`
	UserId  string          `json:"userId"`
}

type EntityMovedPayload struct {
	EntityId string           `json:"entityId"`
	Position history.Position `json:"position"`
	UserId   string           `json:"userId"`
}

type EntityUpdatedPayload struct {
	Entity history.MapEntity `json:"entity"`
	UserId string            `json:"userId"`
}

type TerrainUpdatedPayload struct {
	Terrain []history.GridCell `json:"terrain"`
	UserId  string             `json:"userId"`
}

type InitiativeUpdatedPayload struct {
	Initiative []InitiativeEntry `json:"initiative"`
	UserId     string            `json:"userId"`
}

type ChatMessage struct {
	Id          string    `json:"id"`
	SessionId   string    `json:"sessionId"`
	UserId      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
}

type RoleUpdatedPayload struct {
	UserId    string          `json:"userId"`
	Role      permission.Role `json:"role"`
	UpdatedBy string          `json:"updatedBy"`
}

type CharacterAssignedPayload struct {
	UserId      string `json:"userId"`
	CharacterId string `json:"characterId"`
}

type ParticipantKickedPayload struct {
	UserId   string `json:"userId"`
	KickedBy string `json:"kickedBy"`
}

type KickedFromSessionPayload struct {
	SessionId string `json:"sessionId"`
	KickedBy  string `json:"kickedBy"`
}

// Encode 编码一帧
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
