package realtime

import "battlemap_server/internal/service/history"

type historyCell = history.GridCell

func newPos(x, y int) *history.Position {
	return &history.Position{X: x, Y: y}
}
