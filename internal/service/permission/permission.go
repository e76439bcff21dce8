// Package permission 会话内的角色权限表
// 纯函数，无副作用；会话创建者的全权限覆盖由调用方处理
package permission

// Role 参与者角色，RoleNone 表示没有角色（旁观者或查询失败）
type Role string

const (
	RoleNone   Role = ""
	RoleDM     Role = "DM"
	RolePlayer Role = "PLAYER"
)

// Valid 是否为可分配的角色
func (r Role) Valid() bool {
	return r == RoleDM || r == RolePlayer
}

// ParseRole 解析持久化/客户端传来的角色字符串，未知值返回 RoleNone
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleDM:
		return RoleDM
	case RolePlayer:
		return RolePlayer
	default:
		return RoleNone
	}
}

// Permission 权限名
type Permission string

const (
	CanEditMap               Permission = "canEditMap"
	CanMoveAnyEntity         Permission = "canMoveAnyEntity"
	CanManageParticipants    Permission = "canManageParticipants"
	CanControlSession        Permission = "canControlSession"
	CanAssignCharacters      Permission = "canAssignCharacters"
	CanKickUsers             Permission = "canKickUsers"
	CanModifyTerrain         Permission = "canModifyTerrain"
	CanManageInitiative      Permission = "canManageInitiative"
	CanMoveAssignedCharacter Permission = "canMoveAssignedCharacter"
	CanViewMap               Permission = "canViewMap"
	CanChat                  Permission = "canChat"
)

// All 全部权限，顺序固定
var All = []Permission{
	CanEditMap,
	CanMoveAnyEntity,
	CanManageParticipants,
	CanControlSession,
	CanAssignCharacters,
	CanKickUsers,
	CanModifyTerrain,
	CanManageInitiative,
	CanMoveAssignedCharacter,
	CanViewMap,
	CanChat,
}

// table 进程生命周期内不可变
var table = map[Role]map[Permission]bool{
	RoleDM: {
		CanEditMap:               true,
		CanMoveAnyEntity:         true,
		CanManageParticipants:    true,
		CanControlSession:        true,
		CanAssignCharacters:      true,
		CanKickUsers:             true,
		CanModifyTerrain:         true,
		CanManageInitiative:      true,
		CanMoveAssignedCharacter: true,
		CanViewMap:               true,
		CanChat:                  true,
	},
	RolePlayer: {
		CanEditMap:               false,
		CanMoveAnyEntity:         false,
		CanManageParticipants:    false,
		CanControlSession:        false,
		CanAssignCharacters:      false,
		CanKickUsers:             false,
		CanModifyTerrain:         false,
		CanManageInitiative:      false,
		CanMoveAssignedCharacter: true,
		CanViewMap:               true,
		CanChat:                  true,
	},
}

// IsAllowed 查表判断 role 是否拥有 perm
// 没有角色或角色不在表里时只允许查看和聊天；未知权限一律拒绝
func IsAllowed(role Role, perm Permission) bool {
	perms, ok := table[role]
	if !ok {
		return perm == CanViewMap || perm == CanChat
	}
	return perms[perm]
}

// Effective 叠加会话创建者覆盖后的判断
// 创建者拥有全部权限，但移动“自己的角色”仍然依赖是否分配了角色，由调用方另行判断
func Effective(role Role, isOwner bool, perm Permission) bool {
	if isOwner && perm != CanMoveAssignedCharacter && known(perm) {
		return true
	}
	return IsAllowed(role, perm)
}

// Set 返回 role 的完整权限集合，供 session-state 下发给客户端
func Set(role Role, isOwner bool) map[Permission]bool {
	out := make(map[Permission]bool, len(All))
	for _, p := range All {
		out[p] = Effective(role, isOwner, p)
	}
	return out
}

// CanMoveEntity 实体移动的组合判断：能移动任意实体，或者移动的是自己被分配的角色
func CanMoveEntity(role Role, isOwner bool, assignedCharacterId, entityId string) bool {
	if Effective(role, isOwner, CanMoveAnyEntity) {
		return true
	}
	return assignedCharacterId != "" &&
		assignedCharacterId == entityId &&
		IsAllowed(role, CanMoveAssignedCharacter)
}

func known(perm Permission) bool {
	for _, p := range All {
		if p == perm {
			return true
		}
	}
	return false
}
