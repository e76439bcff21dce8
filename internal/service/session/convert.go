package session

import (
	"time"

	"battlemap_server/internal/dto/respond"
	"battlemap_server/internal/model"
	"battlemap_server/internal/service/permission"
	"battlemap_server/internal/service/registry"
)

func toParticipant(p model.SessionParticipant) registry.Participant {
	return registry.Participant{
		UserId:              p.UserId,
		DisplayName:         p.DisplayName,
		Role:                permission.ParseRole(p.Role),
		AssignedCharacterId: p.AssignedCharacterId.String,
		IsConnected:         p.IsConnected,
		LastSeen:            p.LastSeen,
		JoinedAt:            p.JoinedAt,
	}
}

// toPersisted 数据库行转成网关 Reconcile 使用的快照
func toPersisted(s *model.Session, parts []model.SessionParticipant) *registry.Persisted {
	p := &registry.Persisted{
		Id:           s.Uuid,
		Name:         s.Name,
		JoinCode:     s.JoinCode,
		MapId:        s.MapId,
		OwnerId:      s.OwnerId,
		IsActive:     s.IsActive,
		CurrentTurn:  s.CurrentTurn,
		Round:        s.Round,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    expiresAt(s),
		LastActivity: s.LastActivity,
		Participants: make([]registry.Participant, 0, len(parts)),
	}
	for _, part := range parts {
		p.Participants = append(p.Participants, toParticipant(part))
	}
	return p
}

func expiresAt(s *model.Session) *time.Time {
	if !s.ExpiresAt.Valid {
		return nil
	}
	t := s.ExpiresAt.Time
	return &t
}

func toParticipantRespond(p model.SessionParticipant) respond.ParticipantRespond {
	return respond.ParticipantRespond{
		UserId:              p.UserId,
		DisplayName:         p.DisplayName,
		Role:                p.Role,
		AssignedCharacterId: p.AssignedCharacterId.String,
		IsConnected:         p.IsConnected,
		LastSeen:            p.LastSeen,
		JoinedAt:            p.JoinedAt,
	}
}

func toSessionRespond(s *model.Session, mapName string, parts []model.SessionParticipant) respond.SessionRespond {
	out := respond.SessionRespond{
		Id:           s.Uuid,
		Name:         s.Name,
		JoinCode:     s.JoinCode,
		MapId:        s.MapId,
		MapName:      mapName,
		OwnerId:      s.OwnerId,
		IsActive:     s.IsActive,
		CurrentTurn:  s.CurrentTurn,
		Round:        s.Round,
		ExpiresAt:    expiresAt(s),
		LastActivity: s.LastActivity,
		CreatedAt:    s.CreatedAt,
		Participants: make([]respond.ParticipantRespond, 0, len(parts)),
	}
	for _, p := range parts {
		out.Participants = append(out.Participants, toParticipantRespond(p))
	}
	return out
}
