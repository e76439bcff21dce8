package history

import (
	"reflect"
	"testing"
)

func intPtr(v int) *int { return &v }

func seedBoard() *Board {
	b := NewBoard()
	b.SetCell(GridCell{X: 1, Y: 1, Terrain: TerrainWall, Color: "#333"})
	b.SetCell(GridCell{X: 2, Y: 1, Terrain: TerrainWater})
	b.PutEntity(MapEntity{Id: "a", Name: "Goblin", Type: EntityMonster, Position: Position{X: 0, Y: 0}, Hp: intPtr(7)})
	b.PutEntity(MapEntity{Id: "b", Name: "Aria", Type: EntityPlayer, Position: Position{X: 3, Y: 3}})
	b.PutEntity(MapEntity{Id: "c", Name: "Crate", Type: EntityObject, Position: Position{X: 5, Y: 2}})
	return b
}

type boardState struct {
	terrain  []GridCell
	entities []MapEntity
}

func stateOf(b *Board) boardState {
	return boardState{terrain: b.Terrain(), entities: b.Entities()}
}

func TestCommandsAreExactInverses(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Board) Command
	}{
		{"add terrain over existing", func(b *Board) Command {
			return NewAddTerrain(b, GridCell{X: 1, Y: 1, Terrain: TerrainLava})
		}},
		{"add terrain empty cell", func(b *Board) Command {
			return NewAddTerrain(b, GridCell{X: 9, Y: 9, Terrain: TerrainIce})
		}},
		{"remove terrain", func(b *Board) Command {
			return NewRemoveTerrain(b, Position{X: 2, Y: 1})
		}},
		{"bulk terrain", func(b *Board) Command {
			return NewBulkTerrain(b, []GridCell{
				{X: 1, Y: 1, Terrain: TerrainForest},
				{X: 4, Y: 4, Terrain: TerrainSwamp},
				{X: 2, Y: 1},
			})
		}},
		{"add entity", func(b *Board) Command {
			return NewAddEntity(b, MapEntity{Id: "d", Name: "Ogre", Type: EntityMonster})
		}},
		{"add entity replacing", func(b *Board) Command {
			return NewAddEntity(b, MapEntity{Id: "a", Name: "Hobgoblin", Type: EntityMonster})
		}},
		{"remove middle entity", func(b *Board) Command {
			cmd, _ := NewRemoveEntity(b, "b")
			return cmd
		}},
		{"move entity", func(b *Board) Command {
			cmd, _ := NewMoveEntity(b, "c", Position{X: 7, Y: 7})
			return cmd
		}},
		{"bulk remove", func(b *Board) Command {
			return NewBulkEntity(b, BulkRemove, []MapEntity{{Id: "a"}, {Id: "c"}})
		}},
		{"bulk move", func(b *Board) Command {
			return NewBulkEntity(b, BulkMove, []MapEntity{{Id: "a", Position: Position{X: 1, Y: 2}}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := seedBoard()
			before := stateOf(b)
			cmd := tt.build(b)
			cmd.Execute()
			after := stateOf(b)
			if reflect.DeepEqual(before, after) {
				t.Fatalf("execute did not change the board")
			}
			cmd.Undo()
			if got := stateOf(b); !reflect.DeepEqual(got, before) {
				t.Fatalf("undo mismatch:\n got  %+v\n want %+v", got, before)
			}
			cmd.Execute()
			if got := stateOf(b); !reflect.DeepEqual(got, after) {
				t.Fatalf("redo mismatch:\n got  %+v\n want %+v", got, after)
			}
		})
	}
}

func TestRemoveMissingEntity(t *testing.T) {
	b := NewBoard()
	if _, ok := NewRemoveEntity(b, "nope"); ok {
		t.Fatal("expected ok=false for missing entity")
	}
	if _, ok := NewMoveEntity(b, "nope", Position{}); ok {
		t.Fatal("expected ok=false for missing entity")
	}
}

func TestManagerTruncatesRedoBranch(t *testing.T) {
	b := NewBoard()
	m := NewManager(0)
	a := NewAddTerrain(b, GridCell{X: 0, Y: 0, Terrain: TerrainWall})
	m.ExecuteCommand(a)
	m.ExecuteCommand(NewAddTerrain(b, GridCell{X: 1, Y: 0, Terrain: TerrainWall}))
	m.ExecuteCommand(NewAddTerrain(b, GridCell{X: 2, Y: 0, Terrain: TerrainWall}))

	if !m.Undo() || !m.Undo() {
		t.Fatal("undo failed")
	}
	if !m.CanRedo() {
		t.Fatal("expected redo available")
	}
	d := NewAddTerrain(b, GridCell{X: 3, Y: 0, Terrain: TerrainWater})
	m.ExecuteCommand(d)

	h := m.History()
	if len(h) != 2 || h[0] != a || h[1] != d {
		t.Fatalf("history = %v, want [A D]", h)
	}
	if m.Index() != 1 {
		t.Fatalf("index = %d, want 1", m.Index())
	}
	if m.CanRedo() {
		t.Fatal("redo branch should be discarded")
	}
	if len(b.Terrain()) != 2 {
		t.Fatalf("terrain = %v", b.Terrain())
	}
}

func TestManagerEvictsOldest(t *testing.T) {
	b := NewBoard()
	m := NewManager(3)
	var cmds []Command
	for i := 0; i < 5; i++ {
		c := NewAddTerrain(b, GridCell{X: i, Y: 0, Terrain: TerrainDesert})
		cmds = append(cmds, c)
		m.ExecuteCommand(c)
	}
	h := m.History()
	if len(h) != 3 || h[0] != cmds[2] {
		t.Fatalf("history len=%d first=%v", len(h), h[0])
	}
	if m.Index() != 2 {
		t.Fatalf("index = %d, want 2", m.Index())
	}
	for m.Undo() {
	}
	// 被淘汰的两条无法撤销
	if len(b.Terrain()) != 2 {
		t.Fatalf("terrain after full undo = %v", b.Terrain())
	}
}

func TestManagerDescriptionsAndEmptyStack(t *testing.T) {
	b := seedBoard()
	m := NewManager(0)
	if m.Undo() || m.Redo() {
		t.Fatal("empty manager should not undo or redo")
	}
	if m.UndoDescription() != "" || m.RedoDescription() != "" {
		t.Fatal("empty descriptions expected")
	}
	cmd, _ := NewMoveEntity(b, "a", Position{X: 4, Y: 5})
	m.ExecuteCommand(cmd)
	if got := m.UndoDescription(); got != "Move entity from (0, 0) to (4, 5)" {
		t.Fatalf("undo description = %q", got)
	}
	m.Undo()
	if got := m.RedoDescription(); got != "Move entity from (0, 0) to (4, 5)" {
		t.Fatalf("redo description = %q", got)
	}
	m.Clear()
	if m.CanUndo() || m.CanRedo() || m.Index() != -1 {
		t.Fatal("clear should reset the stack")
	}
}

func TestManagerListener(t *testing.T) {
	b := NewBoard()
	m := NewManager(0)
	var actions []Action
	m.SetListener(func(a Action, _ Command) { actions = append(actions, a) })
	m.ExecuteCommand(NewAddTerrain(b, GridCell{X: 0, Y: 0, Terrain: TerrainWall}))
	m.Undo()
	m.Redo()
	m.Clear()
	want := []Action{ActionExecute, ActionUndo, ActionRedo, ActionClear}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
}

func TestDescriptions(t *testing.T) {
	b := seedBoard()
	if got := NewAddTerrain(b, GridCell{X: 2, Y: 3, Terrain: TerrainWall}).Description(); got != "Add WALL terrain at (2, 3)" {
		t.Errorf("got %q", got)
	}
	if got := NewRemoveTerrain(b, Position{X: 1, Y: 1}).Description(); got != "Remove terrain at (1, 1)" {
		t.Errorf("got %q", got)
	}
	if got := NewBulkTerrain(b, make([]GridCell, 4)).Description(); got != "Bulk terrain operation (4 cells)" {
		t.Errorf("got %q", got)
	}
	if got := NewAddEntity(b, MapEntity{Id: "x", Name: "Orc", Type: EntityMonster, Position: Position{X: 1, Y: 2}}).Description(); got != `Add MONSTER "Orc" at (1, 2)` {
		t.Errorf("got %q", got)
	}
	rm, _ := NewRemoveEntity(b, "b")
	if got := rm.Description(); got != `Remove PLAYER "Aria"` {
		t.Errorf("got %q", got)
	}
}
