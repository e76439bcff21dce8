package client

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"battlemap_server/internal/service/history"
	"battlemap_server/internal/service/realtime"
)

// Transport Editor 发送事件用，*Client 实现了它
type Transport interface {
	SessionId() string
	Send(event string, data any) error
}

// boardData 整图同步时的 mapData 结构
type boardData struct {
	Terrain  []history.GridCell  `json:"terrain"`
	Entities []history.MapEntity `json:"entities"`
}

// Editor 本地地图编辑器
// 本地修改走撤销栈，每次执行/撤销/重做后把受影响的格子和实体同步给网关；
// 其他人的修改通过 Apply 直接落到 Board 上，不进入本地撤销栈
type Editor struct {
	mu        sync.Mutex
	board     *history.Board
	manager   *history.Manager
	transport Transport
}

func NewEditor(board *history.Board, transport Transport, maxHistory int) *Editor {
	if board == nil {
		board = history.NewBoard()
	}
	e := &Editor{board: board, manager: history.NewManager(maxHistory), transport: transport}
	e.manager.SetListener(e.relay)
	return e
}

// History 撤销栈，只读查询用
func (e *Editor) History() *history.Manager { return e.manager }

func (e *Editor) Terrain() []history.GridCell {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.board.Terrain()
}

func (e *Editor) Entities() []history.MapEntity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.board.Entities()
}

// PaintTerrain 单格走 ADD_TERRAIN，多格合并成一条 BULK_TERRAIN
func (e *Editor) PaintTerrain(cells ...history.GridCell) {
	if len(cells) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(cells) == 1 {
		e.manager.ExecuteCommand(history.NewAddTerrain(e.board, cells[0]))
		return
	}
	e.manager.ExecuteCommand(history.NewBulkTerrain(e.board, cells))
}

func (e *Editor) EraseTerrain(pos history.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manager.ExecuteCommand(history.NewRemoveTerrain(e.board, pos))
}

func (e *Editor) AddEntity(entity history.MapEntity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manager.ExecuteCommand(history.NewAddEntity(e.board, entity))
}

// RemoveEntity 实体不存在时返回 false
func (e *Editor) RemoveEntity(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cmd, ok := history.NewRemoveEntity(e.board, id)
	if !ok {
		return false
	}
	e.manager.ExecuteCommand(cmd)
	return true
}

func (e *Editor) MoveEntity(id string, to history.Position) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cmd, ok := history.NewMoveEntity(e.board, id, to)
	if !ok {
		return false
	}
	e.manager.ExecuteCommand(cmd)
	return true
}

func (e *Editor) BulkEntities(op history.BulkOp, entities []history.MapEntity) {
	if len(entities) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manager.ExecuteCommand(history.NewBulkEntity(e.board, op, entities))
}

func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.Undo()
}

func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.Redo()
}

// relay 撤销栈回调，在 e.mu 持有期间同步调用
func (e *Editor) relay(action history.Action, cmd history.Command) {
	if cmd == nil || e.transport == nil {
		return
	}
	sessionId := e.transport.SessionId()
	if sessionId == "" {
		return
	}
	target := realtime.Target{SessionId: sessionId}
	positions, ids := cmd.Affected()

	if len(positions) > 0 {
		cells := make([]history.GridCell, 0, len(positions))
		for _, p := range positions {
			cell, ok := e.board.Cell(p)
			if !ok {
				// 空地形表示清除该格
				cell = history.GridCell{X: p.X, Y: p.Y}
			}
			cells = append(cells, cell)
		}
		e.publish(realtime.EventTerrainUpdate, realtime.TerrainUpdatePayload{Target: target, Terrain: cells})
	}

	removed := false
	for _, id := range ids {
		entity, ok := e.board.Entity(id)
		if !ok {
			removed = true
			continue
		}
		if cmd.Type() == history.MoveEntity {
			pos := entity.Position
			e.publish(realtime.EventEntityMove, realtime.EntityMovePayload{Target: target, EntityId: id, Position: &pos})
			continue
		}
		e.publish(realtime.EventEntityUpdate, realtime.EntityUpdatePayload{Target: target, Entity: &entity})
	}

	// 协议里没有删除实体的事件，整图同步
	if removed {
		raw, err := json.Marshal(boardData{Terrain: e.board.Terrain(), Entities: e.board.Entities()})
		if err != nil {
			zap.L().Error("序列化地图失败", zap.Error(err))
			return
		}
		e.publish(realtime.EventMapUpdate, realtime.MapUpdatePayload{Target: target, MapData: raw})
	}
	zap.L().Debug("已同步编辑", zap.Int("action", int(action)), zap.String("command", cmd.Description()))
}

func (e *Editor) publish(event string, data any) {
	if err := e.transport.Send(event, data); err != nil {
		zap.L().Warn("同步编辑失败", zap.String("event", event), zap.Error(err))
	}
}

// Apply 把其他人的修改落到本地地图，返回是否处理了该事件
func (e *Editor) Apply(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch ev.Event {
	case realtime.EventTerrainUpdated:
		var p realtime.TerrainUpdatedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false
		}
		for _, cell := range p.Terrain {
			if cell.Terrain == "" {
				e.board.RemoveCell(cell.Pos())
				continue
			}
			e.board.SetCell(cell)
		}
	case realtime.EventEntityMoved:
		var p realtime.EntityMovedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false
		}
		e.board.MoveEntity(p.EntityId, p.Position)
	case realtime.EventEntityUpdated:
		var p realtime.EntityUpdatedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false
		}
		e.board.PutEntity(p.Entity)
	case realtime.EventMapUpdated:
		var p realtime.MapUpdatedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false
		}
		var data boardData
		if err := json.Unmarshal(p.MapData, &data); err != nil {
			return false
		}
		e.replace(data)
	default:
		return false
	}
	return true
}

// replace 整图替换，同时清空撤销栈，旧命令引用的状态已经失效
func (e *Editor) replace(data boardData) {
	for _, cell := range e.board.Terrain() {
		e.board.RemoveCell(cell.Pos())
	}
	for _, entity := range e.board.Entities() {
		e.board.RemoveEntity(entity.Id)
	}
	for _, cell := range data.Terrain {
		e.board.SetCell(cell)
	}
	for _, entity := range data.Entities {
		e.board.PutEntity(entity)
	}
	e.manager.Clear()
}
