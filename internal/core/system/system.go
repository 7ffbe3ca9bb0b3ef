package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: admit links, drain inbound frames
	PhasePreUpdate               // 1: lobby countdown (skipped once running)
	PhaseUpdate                  // 2: action phase, then calendar + movement
	PhasePostUpdate              // 3: chat expiry, events + script hooks, console
	PhaseOutput                  // 4: checksum beacon, flush session buffers
	PhasePersist                 // 5: journal batch flush
	PhaseCleanup                 // 6: flush the unit destroy queue
)

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
