package system

import (
	"time"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/world"
)

// MovementSystem steps every unit once per tick. Phase 2 (Update), after
// the action phase. Units walk in id order and every patrolling unit draws
// from the shared RNG exactly once, so the draw sequence is identical on
// all peers.
type MovementSystem struct {
	st *world.State
}

func NewMovementSystem(st *world.State) *MovementSystem {
	return &MovementSystem{st: st}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MovementSystem) Update(_ time.Duration) {
	if s.st.Substate != world.SubstateRunning || s.st.Paused {
		return
	}
	for _, u := range s.st.UnitsOrdered() {
		if u.HasTarget {
			s.stepToward(u)
			continue
		}
		if u.Orders&world.OrderPatrol != 0 && u.Orders&world.OrderHold == 0 {
			s.wander(u)
		}
	}
}

// stepToward moves a unit up to its speed in cells toward its target,
// diagonals allowed, and clears the target once reached.
func (s *MovementSystem) stepToward(u *world.Unit) {
	speed := s.st.Catalog.UnitSpeed(u.Kind)
	for i := int32(0); i < speed; i++ {
		if u.X == u.TargetX && u.Y == u.TargetY {
			u.HasTarget = false
			return
		}
		u.X += sign(u.TargetX - u.X)
		u.Y += sign(u.TargetY - u.Y)
	}
	if u.X == u.TargetX && u.Y == u.TargetY {
		u.HasTarget = false
	}
}

// wander drifts an idle patrolling unit one cell in a random direction.
// The RNG is drawn even when the step would leave the grid, keeping the
// draw count independent of where the unit stands.
func (s *MovementSystem) wander(u *world.Unit) {
	dir := s.st.RNG.IntN(8)
	nx := u.X + wanderDX[dir]
	ny := u.Y + wanderDY[dir]
	if !s.st.InBounds(nx, ny) {
		return
	}
	u.X = nx
	u.Y = ny
}

var (
	wanderDX = [8]int32{0, 1, 1, 1, 0, -1, -1, -1}
	wanderDY = [8]int32{-1, -1, 0, 1, 1, 1, 0, -1}
)

func sign(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
