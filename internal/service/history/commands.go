package history

import (
	"fmt"
)

// CommandType 命令类型
type CommandType string

const (
	AddTerrain    CommandType = "ADD_TERRAIN"
	RemoveTerrain CommandType = "REMOVE_TERRAIN"
	BulkTerrain   CommandType = "BULK_TERRAIN"
	AddEntity     CommandType = "ADD_ENTITY"
	RemoveEntity  CommandType = "REMOVE_ENTITY"
	MoveEntity    CommandType = "MOVE_ENTITY"
	BulkEntity    CommandType = "BULK_ENTITY"
)

// BulkOp 批量实体操作
type BulkOp string

const (
	BulkAdd    BulkOp = "ADD"
	BulkRemove BulkOp = "REMOVE"
	BulkMove   BulkOp = "MOVE"
)

// Command 可撤销的地图修改
// 构造时记录执行前的状态，Undo 必须是 Execute 的精确逆操作
type Command interface {
	Execute()
	Undo()
	Description() string
	Type() CommandType
	// Affected 本命令涉及的格子和实体，用于把结果同步给其他客户端
	Affected() ([]Position, []string)
}

// cellSnapshot 某格在命令执行前的内容
type cellSnapshot struct {
	cell GridCell
	had  bool
}

func snapshotCell(b *Board, p Position) cellSnapshot {
	c, ok := b.Cell(p)
	return cellSnapshot{cell: c, had: ok}
}

func (s cellSnapshot) restore(b *Board, p Position) {
	if s.had {
		b.SetCell(s.cell)
	} else {
		b.RemoveCell(p)
	}
}

// ---------- terrain ----------

type addTerrainCommand struct {
	board    *Board
	cell     GridCell
	previous cellSnapshot
}

// NewAddTerrain 在 cell 位置放置地形，撤销时还原被覆盖的格子（含颜色）
func NewAddTerrain(b *Board, cell GridCell) Command {
	return &addTerrainCommand{board: b, cell: cell, previous: snapshotCell(b, cell.Pos())}
}

func (c *addTerrainCommand) Execute() { c.board.SetCell(c.cell) }
func (c *addTerrainCommand) Undo()    { c.previous.restore(c.board, c.cell.Pos()) }
func (c *addTerrainCommand) Type() CommandType {
	return AddTerrain
}
func (c *addTerrainCommand) Description() string {
	return fmt.Sprintf("Add %s terrain at (%d, %d)", c.cell.Terrain, c.cell.X, c.cell.Y)
}
func (c *addTerrainCommand) Affected() ([]Position, []string) {
	return []Position{c.cell.Pos()}, nil
}

type removeTerrainCommand struct {
	board    *Board
	pos      Position
	previous cellSnapshot
}

// NewRemoveTerrain 清除 pos 的地形
func NewRemoveTerrain(b *Board, pos Position) Command {
	return &removeTerrainCommand{board: b, pos: pos, previous: snapshotCell(b, pos)}
}

func (c *removeTerrainCommand) Execute() { c.board.RemoveCell(c.pos) }
func (c *removeTerrainCommand) Undo()    { c.previous.restore(c.board, c.pos) }
func (c *removeTerrainCommand) Type() CommandType {
	return RemoveTerrain
}
func (c *removeTerrainCommand) Description() string {
	return fmt.Sprintf("Remove terrain at (%d, %d)", c.pos.X, c.pos.Y)
}
func (c *removeTerrainCommand) Affected() ([]Position, []string) {
	return []Position{c.pos}, nil
}

type bulkTerrainCommand struct {
	board    *Board
	cells    []GridCell
	previous map[Position]cellSnapshot
}

// NewBulkTerrain 批量放置地形（刷子、填充）
// Terrain 为空的格子表示清除
func NewBulkTerrain(b *Board, cells []GridCell) Command {
	prev := make(map[Position]cellSnapshot, len(cells))
	for _, cell := range cells {
		if _, ok := prev[cell.Pos()]; !ok {
			prev[cell.Pos()] = snapshotCell(b, cell.Pos())
		}
	}
	cp := make([]GridCell, len(cells))
	copy(cp, cells)
	return &bulkTerrainCommand{board: b, cells: cp, previous: prev}
}

func (c *bulkTerrainCommand) Execute() {
	for _, cell := range c.cells {
		if cell.Terrain == "" {
			c.board.RemoveCell(cell.Pos())
			continue
		}
		c.board.SetCell(cell)
	}
}

func (c *bulkTerrainCommand) Undo() {
	for p, snap := range c.previous {
		snap.restore(c.board, p)
	}
}

func (c *bulkTerrainCommand) Type() CommandType { return BulkTerrain }
func (c *bulkTerrainCommand) Description() string {
	return fmt.Sprintf("Bulk terrain operation (%d cells)", len(c.cells))
}
func (c *bulkTerrainCommand) Affected() ([]Position, []string) {
	out := make([]Position, 0, len(c.previous))
	seen := make(map[Position]bool, len(c.previous))
	for _, cell := range c.cells {
		if !seen[cell.Pos()] {
			seen[cell.Pos()] = true
			out = append(out, cell.Pos())
		}
	}
	return out, nil
}

// ---------- entity ----------

// entitySnapshot 实体在命令执行前的内容和下标
type entitySnapshot struct {
	entity MapEntity
	index  int
	had    bool
}

func snapshotEntity(b *Board, id string) entitySnapshot {
	idx := b.entityIndex(id)
	if idx < 0 {
		return entitySnapshot{index: -1}
	}
	return entitySnapshot{entity: b.entities[idx], index: idx, had: true}
}

func (s entitySnapshot) restore(b *Board, id string) {
	b.RemoveEntity(id)
	if s.had {
		b.InsertEntity(s.index, s.entity)
	}
}

type addEntityCommand struct {
	board    *Board
	entity   MapEntity
	previous entitySnapshot
}

// NewAddEntity 放置实体；同 id 已存在时覆盖，撤销时还原
func NewAddEntity(b *Board, e MapEntity) Command {
	return &addEntityCommand{board: b, entity: e, previous: snapshotEntity(b, e.Id)}
}

func (c *addEntityCommand) Execute() { c.board.PutEntity(c.entity) }
func (c *addEntityCommand) Undo()    { c.previous.restore(c.board, c.entity.Id) }
func (c *addEntityCommand) Type() CommandType {
	return AddEntity
}
func (c *addEntityCommand) Description() string {
	return fmt.Sprintf("Add %s %q at (%d, %d)", c.entity.Type, c.entity.Name, c.entity.Position.X, c.entity.Position.Y)
}
func (c *addEntityCommand) Affected() ([]Position, []string) {
	return nil, []string{c.entity.Id}
}

type removeEntityCommand struct {
	board    *Board
	id       string
	previous entitySnapshot
}

// NewRemoveEntity 删除实体，撤销时插回原来的位置
// 实体不存在时返回 ok=false
func NewRemoveEntity(b *Board, id string) (Command, bool) {
	snap := snapshotEntity(b, id)
	if !snap.had {
		return nil, false
	}
	return &removeEntityCommand{board: b, id: id, previous: snap}, true
}

func (c *removeEntityCommand) Execute() { c.board.RemoveEntity(c.id) }
func (c *removeEntityCommand) Undo()    { c.previous.restore(c.board, c.id) }
func (c *removeEntityCommand) Type() CommandType {
	return RemoveEntity
}
func (c *removeEntityCommand) Description() string {
	return fmt.Sprintf("Remove %s %q", c.previous.entity.Type, c.previous.entity.Name)
}
func (c *removeEntityCommand) Affected() ([]Position, []string) {
	return nil, []string{c.id}
}

type moveEntityCommand struct {
	board *Board
	id    string
	from  Position
	to    Position
}

// NewMoveEntity 移动实体，起点取当前坐标
func NewMoveEntity(b *Board, id string, to Position) (Command, bool) {
	e, ok := b.Entity(id)
	if !ok {
		return nil, false
	}
	return &moveEntityCommand{board: b, id: id, from: e.Position, to: to}, true
}

func (c *moveEntityCommand) Execute() { c.board.MoveEntity(c.id, c.to) }
func (c *moveEntityCommand) Undo()    { c.board.MoveEntity(c.id, c.from) }
func (c *moveEntityCommand) Type() CommandType {
	return MoveEntity
}
func (c *moveEntityCommand) Description() string {
	return fmt.Sprintf("Move entity from (%d, %d) to (%d, %d)", c.from.X, c.from.Y, c.to.X, c.to.Y)
}
func (c *moveEntityCommand) Affected() ([]Position, []string) {
	return nil, []string{c.id}
}

type bulkEntityCommand struct {
	board    *Board
	op       BulkOp
	entities []MapEntity
	// 执行前整个实体列表，批量操作直接整体还原，保证顺序一致
	before []MapEntity
}

// NewBulkEntity 批量实体操作
// ADD：放置 entities；REMOVE：按 id 删除；MOVE：把同 id 实体移动到 entities 中给出的坐标
func NewBulkEntity(b *Board, op BulkOp, entities []MapEntity) Command {
	cp := make([]MapEntity, len(entities))
	copy(cp, entities)
	return &bulkEntityCommand{board: b, op: op, entities: cp, before: b.Entities()}
}

func (c *bulkEntityCommand) Execute() {
	for _, e := range c.entities {
		switch c.op {
		case BulkAdd:
			c.board.PutEntity(e)
		case BulkRemove:
			c.board.RemoveEntity(e.Id)
		case BulkMove:
			c.board.MoveEntity(e.Id, e.Position)
		}
	}
}

func (c *bulkEntityCommand) Undo() {
	c.board.entities = make([]MapEntity, len(c.before))
	copy(c.board.entities, c.before)
}

func (c *bulkEntityCommand) Type() CommandType { return BulkEntity }
func (c *bulkEntityCommand) Description() string {
	return fmt.Sprintf("Bulk entity %s (%d entities)", c.op, len(c.entities))
}
func (c *bulkEntityCommand) Affected() ([]Position, []string) {
	ids := make([]string, 0, len(c.entities))
	for _, e := range c.entities {
		ids = append(ids, e.Id)
	}
	return nil, ids
}
