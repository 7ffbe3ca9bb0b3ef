package system

import (
	"time"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/game"
)

// ConsoleSystem evaluates queued operator commands. Phase 0 (Input),
// after the network drain: the dispatcher's inline window is still open,
// so console actions execute within this tick and replicate tagged with it.
type ConsoleSystem struct {
	console *game.Console
}

func NewConsoleSystem(console *game.Console) *ConsoleSystem {
	return &ConsoleSystem{console: console}
}

func (s *ConsoleSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ConsoleSystem) Update(_ time.Duration) {
	s.console.ProcessQueue()
}
