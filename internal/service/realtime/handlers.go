package realtime

import (
	"context"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"battlemap_server/internal/service/permission"
	"battlemap_server/internal/service/registry"
	"battlemap_server/pkg/util/snowflake"
)

const defaultDisplayName = "Anonymous"

// 以下方法全部在事件循环里执行

// join 加入会话；在读协程里已经加载了会话和角色
func (h *Hub) join(c *Client, p JoinPayload, persisted *registry.Persisted, access *Access, accessErr error) {
	if c.closed {
		return
	}
	sessionId := persisted.Id
	userId := c.id.UserId

	if h.expired(persisted) {
		h.sendError(c, ErrCodeExpired, "Session has expired")
		return
	}
	if !persisted.IsActive {
		h.sendError(c, ErrCodeInactive, "Session is not active")
		return
	}

	sess, ok := h.reg.Get(sessionId)
	if !ok || !sess.Loaded {
		sess = h.reg.Reconcile(*persisted)
	}
	existing, known := h.reg.Participant(sessionId, userId)
	kicked := !known && h.reg.WasKicked(sessionId, userId)
	if !known && !kicked && accessErr != nil {
		// 查不到角色又没有内存记录，不能猜一个角色放进来
		h.sendError(c, ErrCodeUnavailable, "Role lookup failed, try again")
		return
	}
	if !known && h.opts.MaxParticipants > 0 && len(sess.Participants) >= h.opts.MaxParticipants {
		h.sendError(c, ErrCodeFull, "Session is full")
		return
	}

	// 同一连接切换会话：先按离开处理原会话
	if c.sessionId != "" && c.sessionId != sessionId {
		h.leaveCurrent(c, EventUserLeft)
	}
	// 同一用户的旧连接被新连接取代
	if prev, ok := h.presence.Get(userId); ok && prev.Connected && prev.ConnId != c.connId {
		if old, ok := h.clients[prev.ConnId]; ok {
			h.sendError(old, ErrCodeSuperseded, "Connected from another client")
			if old.sessionId != "" && old.sessionId != sessionId {
				// 旧连接在另一个会话里，那边要看到这个用户下线
				h.leaveCurrent(old, EventUserDisconnected)
			} else {
				h.removeFromRoom(old)
			}
			h.closeClient(old, websocket.ClosePolicyViolation, "superseded")
		}
	}

	// 角色变更和踢人都是先改内存再异步落库，内存里有记录时以内存为准
	role := permission.RolePlayer
	assigned := ""
	switch {
	case known:
		role = existing.Role
		assigned = existing.AssignedCharacterId
	case kicked:
		// 被踢后重新加入：新玩家，旧记录可能还没删掉
	case access != nil:
		role = access.Role
		assigned = access.AssignedCharacterId
	}
	isOwner := userId == persisted.OwnerId || (access != nil && access.IsOwner)

	displayName := p.DisplayName
	if displayName == "" {
		displayName = existing.DisplayName
	}
	if displayName == "" {
		displayName = defaultDisplayName
	}

	part := *h.reg.AddParticipant(sessionId, registry.Participant{
		UserId:              userId,
		DisplayName:         displayName,
		Role:                role,
		AssignedCharacterId: assigned,
		IsConnected:         true,
	})
	h.addToRoom(c, sessionId)
	h.presence.Upsert(userId, registry.Presence{
		SessionId: sessionId,
		ConnId:    c.connId,
		Connected: true,
	})
	h.touch(sessionId)

	switch {
	case kicked:
		h.persistTask(sessionId, "recreate_participant", func(ctx context.Context) error {
			if err := h.store.RemoveParticipant(ctx, sessionId, userId); err != nil {
				return err
			}
			return h.store.CreateParticipant(ctx, sessionId, part)
		})
	case !known && access == nil:
		h.persistTask(sessionId, "create_participant", func(ctx context.Context) error {
			return h.store.CreateParticipant(ctx, sessionId, part)
		})
	default:
		connected, seen := true, part.LastSeen
		upd := ParticipantUpdate{IsConnected: &connected, LastSeen: &seen}
		if p.DisplayName != "" {
			upd.DisplayName = &part.DisplayName
		}
		h.persistTask(sessionId, "participant_join", func(ctx context.Context) error {
			return h.store.UpdateParticipant(ctx, sessionId, userId, upd)
		})
	}

	h.broadcast(sessionId, EventUserJoined, part, c)
	snap, _ := h.reg.Snapshot(sessionId)
	h.sendTo(c, EventSessionState, SessionStatePayload{
		Session:        snap,
		ConnectedUsers: h.reg.ConnectedParticipants(sessionId),
		Role:           role,
		Permissions:    permission.Set(role, isOwner),
	})
	h.journal(sessionId, EventUserJoined, userId, part)
	zap.L().Info("用户加入会话",
		zap.String("session_id", sessionId),
		zap.String("user_id", userId),
		zap.String("role", string(role)),
	)
}

// accessOf 权限判断用的角色：房间成员以内存记录为准，
// 读协程查到的结果只用于内存里没有的用户
func (h *Hub) accessOf(sessionId, userId string, looked Access) Access {
	part, ok := h.reg.Participant(sessionId, userId)
	if !ok {
		return looked
	}
	isOwner := looked.IsOwner
	if s, ok := h.reg.Get(sessionId); ok && s.OwnerId == userId {
		isOwner = true
	}
	return Access{Role: part.Role, AssignedCharacterId: part.AssignedCharacterId, IsOwner: isOwner}
}

// expired 以内存和持久层中较新的活动时间为准
func (h *Hub) expired(p *registry.Persisted) bool {
	probe := registry.Session{ExpiresAt: p.ExpiresAt, LastActivity: p.LastActivity}
	if live, ok := h.reg.Get(p.Id); ok && live.LastActivity.After(probe.LastActivity) {
		probe.LastActivity = live.LastActivity
	}
	if probe.LastActivity.IsZero() {
		probe.LastActivity = h.opts.Now()
	}
	return registry.IsExpired(&probe, h.opts.Now(), h.opts.Inactivity)
}

func (h *Hub) leave(c *Client, p LeavePayload) {
	if !h.requireMember(c, p.SessionId) {
		return
	}
	h.leaveCurrent(c, EventUserLeft)
}

// leaveCurrent 离开当前会话：移出房间、标记离线并通知房间
func (h *Hub) leaveCurrent(c *Client, event string) {
	sessionId := c.sessionId
	userId := c.id.UserId
	h.removeFromRoom(c)
	h.presence.MarkDisconnected(c.connId)
	h.reg.RemoveOrDisconnectParticipant(sessionId, userId, registry.ModeLeave)
	h.touch(sessionId)
	h.persistConnected(sessionId, userId, false)
	h.broadcast(sessionId, event, UserRefPayload{UserId: userId}, nil)
	h.journal(sessionId, event, userId, nil)
}

func (h *Hub) cursorMove(c *Client, p CursorMovePayload) {
	if !h.requireMember(c, p.SessionId) {
		return
	}
	h.presence.UpdateCursor(c.id.UserId, *p.Position)
	h.broadcast(p.SessionId, EventCursorMoved, CursorMovedPayload{UserId: c.id.UserId, Position: *p.Position}, c)
}

// relay 权限通过后转发给房间内其他人，拒绝时只回复发送者
func (h *Hub) relay(c *Client, sessionId, action string, allowed bool, reason, event string, data any) {
	if !allowed {
		h.deny(c, action, reason)
		return
	}
	h.touch(sessionId)
	h.broadcast(sessionId, event, data, c)
	h.journal(sessionId, event, c.id.UserId, data)
}

func (h *Hub) mapUpdate(c *Client, p MapUpdatePayload, a Access) {
	h.relay(c, p.SessionId, EventMapUpdate,
		permission.Effective(a.Role, a.IsOwner, permission.CanEditMap), "Insufficient permissions",
		EventMapUpdated, MapUpdatedPayload{MapData: p.MapData, UserId: c.id.UserId})
}

func (h *Hub) entityMove(c *Client, p EntityMovePayload, a Access) {
	h.relay(c, p.SessionId, EventEntityMove,
		permission.CanMoveEntity(a.Role, a.IsOwner, a.AssignedCharacterId, p.EntityId), "Cannot move this entity",
		EventEntityMoved, EntityMovedPayload{EntityId: p.EntityId, Position: *p.Position, UserId: c.id.UserId})
}

func (h *Hub) entityUpdate(c *Client, p EntityUpdatePayload, a Access) {
	h.relay(c, p.SessionId, EventEntityUpdate,
		permission.Effective(a.Role, a.IsOwner, permission.CanEditMap), "Insufficient permissions",
		EventEntityUpdated, EntityUpdatedPayload{Entity: *p.Entity, UserId: c.id.UserId})
}

func (h *Hub) terrainUpdate(c *Client, p TerrainUpdatePayload, a Access) {
	h.relay(c, p.SessionId, EventTerrainUpdate,
		permission.Effective(a.Role, a.IsOwner, permission.CanModifyTerrain), "Cannot modify terrain",
		EventTerrainUpdated, TerrainUpdatedPayload{Terrain: p.Terrain, UserId: c.id.UserId})
}

func (h *Hub) initiativeUpdate(c *Client, p InitiativeUpdatePayload, a Access) {
	h.relay(c, p.SessionId, EventInitiativeUpdate,
		permission.Effective(a.Role, a.IsOwner, permission.CanManageInitiative), "Cannot manage initiative",
		EventInitiativeUpdated, InitiativeUpdatedPayload{Initiative: p.Initiative, UserId: c.id.UserId})
}

// nextTurn 任何成员都可以推进回合
func (h *Hub) nextTurn(c *Client, p NextTurnPayload) {
	if !h.requireMember(c, p.SessionId) {
		return
	}
	turn, ok := h.reg.AdvanceTurn(p.SessionId)
	if !ok {
		return
	}
	h.touch(p.SessionId)
	h.persistTask(p.SessionId, "update_turn", func(ctx context.Context) error {
		return h.store.UpdateTurn(ctx, p.SessionId, turn)
	})
	h.broadcast(p.SessionId, EventTurnChanged, turn, nil)
	h.journal(p.SessionId, EventTurnChanged, c.id.UserId, turn)
}

// chat 任何成员都可以发言，服务端补全 id、发送者和时间
func (h *Hub) chat(c *Client, p ChatPayload) {
	if !h.requireMember(c, p.SessionId) {
		return
	}
	displayName := defaultDisplayName
	if part, ok := h.reg.Participant(p.SessionId, c.id.UserId); ok && part.DisplayName != "" {
		displayName = part.DisplayName
	}
	msgType := p.Message.Type
	if msgType == "" {
		msgType = "chat"
	}
	msg := ChatMessage{
		Id:          snowflake.GenerateIDString(),
		SessionId:   p.SessionId,
		UserId:      c.id.UserId,
		DisplayName: displayName,
		Message:     p.Message.Message,
		Timestamp:   h.opts.Now(),
		Type:        msgType,
	}
	h.touch(p.SessionId)
	h.broadcast(p.SessionId, EventChatMessage, msg, nil)
	h.journal(p.SessionId, EventChatMessage, c.id.UserId, msg)
}

func (h *Hub) updateRole(c *Client, p UpdateRolePayload, a Access) {
	if !permission.Effective(a.Role, a.IsOwner, permission.CanManageParticipants) {
		h.deny(c, EventUpdateRole, "Cannot manage participants")
		return
	}
	role := permission.ParseRole(p.Role)
	if !h.reg.UpdateRole(p.SessionId, p.TargetUserId, role) {
		h.sendError(c, ErrCodeParticipantNotFound, "Participant not found")
		return
	}
	h.touch(p.SessionId)
	h.persistTask(p.SessionId, "update_role", func(ctx context.Context) error {
		return h.store.UpdateParticipant(ctx, p.SessionId, p.TargetUserId, ParticipantUpdate{Role: &role})
	})
	payload := RoleUpdatedPayload{UserId: p.TargetUserId, Role: role, UpdatedBy: c.id.UserId}
	h.broadcast(p.SessionId, EventRoleUpdated, payload, nil)
	h.journal(p.SessionId, EventRoleUpdated, c.id.UserId, payload)
}

func (h *Hub) assignCharacter(c *Client, p AssignCharacterPayload, a Access) {
	if !permission.Effective(a.Role, a.IsOwner, permission.CanManageParticipants) {
		h.deny(c, EventAssignCharacter, "Cannot manage participants")
		return
	}
	if !h.reg.AssignCharacter(p.SessionId, p.TargetUserId, p.CharacterId) {
		h.sendError(c, ErrCodeParticipantNotFound, "Participant not found")
		return
	}
	characterId := p.CharacterId
	h.touch(p.SessionId)
	h.persistTask(p.SessionId, "assign_character", func(ctx context.Context) error {
		return h.store.UpdateParticipant(ctx, p.SessionId, p.TargetUserId, ParticipantUpdate{AssignedCharacterId: &characterId})
	})
	payload := CharacterAssignedPayload{UserId: p.TargetUserId, CharacterId: characterId}
	h.broadcast(p.SessionId, EventCharacterAssigned, payload, nil)
	h.journal(p.SessionId, EventCharacterAssigned, c.id.UserId, payload)
}

// kick 删除参与者，通知被踢者后断开其连接
func (h *Hub) kick(c *Client, p KickPayload, a Access) {
	if !permission.Effective(a.Role, a.IsOwner, permission.CanManageParticipants) {
		h.deny(c, EventKickParticipant, "Cannot manage participants")
		return
	}
	if p.TargetUserId == c.id.UserId {
		h.deny(c, EventKickParticipant, "Cannot kick yourself")
		return
	}
	if s, ok := h.reg.Get(p.SessionId); ok && s.OwnerId == p.TargetUserId {
		h.deny(c, EventKickParticipant, "Cannot kick the session owner")
		return
	}
	if _, ok := h.reg.RemoveOrDisconnectParticipant(p.SessionId, p.TargetUserId, registry.ModeKick); !ok {
		h.sendError(c, ErrCodeParticipantNotFound, "Participant not found")
		return
	}

	if pres, ok := h.presence.Get(p.TargetUserId); ok && pres.SessionId == p.SessionId {
		h.presence.SetDisconnected(p.TargetUserId)
		if target, ok := h.clients[pres.ConnId]; ok && target.sessionId == p.SessionId {
			h.sendTo(target, EventKickedFromSession, KickedFromSessionPayload{SessionId: p.SessionId, KickedBy: c.id.UserId})
			h.removeFromRoom(target)
			h.closeClient(target, websocket.CloseNormalClosure, "kicked")
		}
	}

	h.touch(p.SessionId)
	h.persistTask(p.SessionId, "remove_participant", func(ctx context.Context) error {
		return h.store.RemoveParticipant(ctx, p.SessionId, p.TargetUserId)
	})
	payload := ParticipantKickedPayload{UserId: p.TargetUserId, KickedBy: c.id.UserId}
	h.broadcast(p.SessionId, EventParticipantKicked, payload, nil)
	h.journal(p.SessionId, EventParticipantKicked, c.id.UserId, payload)
	zap.L().Info("参与者被移出会话",
		zap.String("session_id", p.SessionId),
		zap.String("target", p.TargetUserId),
		zap.String("by", c.id.UserId),
	)
}
