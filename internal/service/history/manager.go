package history

import (
	"sync"

	"battlemap_server/pkg/constants"
)

// Action 历史变化的种类
type Action int

const (
	ActionExecute Action = iota
	ActionUndo
	ActionRedo
	ActionClear
)

// Listener 命令执行/撤销/重做后回调，clear 时 cmd 为 nil
type Listener func(action Action, cmd Command)

// Manager 线性撤销栈
// index 指向最后一个已生效的命令，-1 表示没有；新命令会丢弃 index 之后的重做分支
type Manager struct {
	mu       sync.Mutex
	commands []Command
	index    int
	maxSize  int
	listener Listener
}

// NewManager maxSize<=0 时取默认 100
func NewManager(maxSize int) *Manager {
	if maxSize <= 0 {
		maxSize = constants.HISTORY_MAX_SIZE
	}
	return &Manager{index: -1, maxSize: maxSize}
}

// SetListener 设置回调，回调在锁外执行
func (m *Manager) SetListener(l Listener) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

// ExecuteCommand 执行并入栈
func (m *Manager) ExecuteCommand(cmd Command) {
	m.mu.Lock()
	m.commands = m.commands[:m.index+1]
	cmd.Execute()
	m.commands = append(m.commands, cmd)
	m.index++
	if len(m.commands) > m.maxSize {
		m.commands[0] = nil
		m.commands = m.commands[1:]
		m.index--
	}
	l := m.listener
	m.mu.Unlock()

	if l != nil {
		l(ActionExecute, cmd)
	}
}

// Undo 撤销最近一个命令，没有可撤销的返回 false
func (m *Manager) Undo() bool {
	m.mu.Lock()
	if m.index < 0 {
		m.mu.Unlock()
		return false
	}
	cmd := m.commands[m.index]
	cmd.Undo()
	m.index--
	l := m.listener
	m.mu.Unlock()

	if l != nil {
		l(ActionUndo, cmd)
	}
	return true
}

// Redo 重做，没有可重做的返回 false
func (m *Manager) Redo() bool {
	m.mu.Lock()
	if m.index >= len(m.commands)-1 {
		m.mu.Unlock()
		return false
	}
	m.index++
	cmd := m.commands[m.index]
	cmd.Execute()
	l := m.listener
	m.mu.Unlock()

	if l != nil {
		l(ActionRedo, cmd)
	}
	return true
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index >= 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index < len(m.commands)-1
}

// Clear 清空历史，不改动地图
func (m *Manager) Clear() {
	m.mu.Lock()
	m.commands = nil
	m.index = -1
	l := m.listener
	m.mu.Unlock()

	if l != nil {
		l(ActionClear, nil)
	}
}

// History 栈内命令的副本
func (m *Manager) History() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// Index 当前下标
func (m *Manager) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// LastCommand 最后一个已生效的命令
func (m *Manager) LastCommand() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index < 0 {
		return nil, false
	}
	return m.commands[m.index], true
}

// UndoDescription 下一次 Undo 的描述，没有返回空串
func (m *Manager) UndoDescription() string {
	if cmd, ok := m.LastCommand(); ok {
		return cmd.Description()
	}
	return ""
}

// RedoDescription 下一次 Redo 的描述
func (m *Manager) RedoDescription() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index >= len(m.commands)-1 {
		return ""
	}
	return m.commands[m.index+1].Description()
}
