// Package dispatch owns the action pipeline. Every state mutation enters
// through Enqueue, which applies the pause gate and the replication policy
// for this peer's role, then runs the query/execute pair at a deterministic
// point in the tick. Executed actions are tapped into the journal and, on a
// host, broadcast to followers tagged with their execution tick.
package dispatch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/world"
)

// Mode is the peer's replication role.
type Mode int

const (
	// ModeStandalone runs alone: no replication, immediate execution.
	ModeStandalone Mode = iota
	// ModeHost executes locally and broadcasts every executed action.
	ModeHost
	// ModeClient forwards local proposals to the host and executes only
	// what the host broadcasts back.
	ModeClient
	// ModePlayback executes a recorded stream; local proposals are refused.
	ModePlayback
)

func (m Mode) String() string {
	switch m {
	case ModeStandalone:
		return "standalone"
	case ModeHost:
		return "host"
	case ModeClient:
		return "client"
	case ModePlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// Caps is the network capability a host or client hands the dispatcher.
// Standalone and playback peers pass nil.
type Caps interface {
	// Broadcast replicates an executed action to every follower, tagged
	// with the tick it executed at. Called in execution order.
	Broadcast(tick uint64, origin world.PlayerID, a action.Action)
	// SubmitToHost forwards a locally proposed action to the host.
	SubmitToHost(origin world.PlayerID, a action.Action)
}

// Journal records executed actions for replay. nil disables recording.
// Actions flagged NoJournal never reach it.
type Journal interface {
	Record(tick uint64, ord int, origin world.PlayerID, a action.Action)
}

type queued struct {
	origin world.PlayerID
	a      action.Action
}

// Dispatcher serialises all mutation through the action phase.
// Accessed only from the game loop goroutine.
type Dispatcher struct {
	mode    Mode
	st      *world.State
	reg     *action.Registry
	caps    Caps
	journal Journal
	log     *zap.Logger

	// inlineOpen is true from tick start until the action phase has
	// drained. While open, local actions execute immediately and are
	// tagged with the current tick; afterwards they stage for the next
	// one. Phases after the action phase mutate no checksummed state, so
	// a follower replaying the tick's stream at its own action phase
	// sees identical state at every execution.
	inlineOpen bool

	staged     []queued
	deferred   []queued
	remote     map[uint64][]queued
	originSeen map[world.PlayerID]bool
	ord        int
}

func New(mode Mode, st *world.State, reg *action.Registry, caps Caps, journal Journal, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mode:       mode,
		st:         st,
		reg:        reg,
		caps:       caps,
		journal:    journal,
		log:        log,
		remote:     make(map[uint64][]queued),
		originSeen: make(map[world.PlayerID]bool),
	}
}

func (d *Dispatcher) Mode() Mode {
	return d.mode
}

// Registry returns the action registry this dispatcher decodes with.
func (d *Dispatcher) Registry() *action.Registry {
	return d.reg
}

// BeginTick opens the inline window for a new tick. The game context calls
// it right after advancing the tick counter, before any phase runs.
func (d *Dispatcher) BeginTick() {
	d.inlineOpen = true
	d.ord = 0
	clear(d.originSeen)
}

// Enqueue proposes an action. The returned result is the synchronous
// verdict: executed outcomes for immediate paths, Queued when the action
// was staged, forwarded to the host, or deferred by the per-origin limit.
func (d *Dispatcher) Enqueue(a action.Action, origin world.PlayerID) action.Result {
	flags := a.Flags()

	if d.st.Paused && flags&action.AllowWhilePaused == 0 {
		return action.Fail(action.ErrPaused, "simulation paused")
	}

	// Client-only actions never replicate and never journal; they apply
	// immediately on this peer alone.
	if flags&action.ClientOnly != 0 {
		if res := a.Query(d.st, origin); res.Failed() {
			return res
		}
		return a.Execute(d.st, origin)
	}

	switch d.mode {
	case ModeClient:
		d.caps.SubmitToHost(origin, a)
		return action.Queued()
	case ModePlayback:
		return action.Fail(action.ErrPermission, "playback in progress")
	}

	if !d.inlineOpen {
		d.staged = append(d.staged, queued{origin: origin, a: a})
		return action.Queued()
	}
	if origin != world.SystemOrigin && d.originSeen[origin] {
		d.deferred = append(d.deferred, queued{origin: origin, a: a})
		return action.Queued()
	}
	return d.run(a, origin)
}

// EnqueueRemote buffers a replicated action for its execution tick. An
// action for a tick this peer already completed cannot execute at the right
// point anymore: that is a desync and the caller must treat it as fatal.
func (d *Dispatcher) EnqueueRemote(tick uint64, origin world.PlayerID, a action.Action) error {
	if d.mode != ModeClient && d.mode != ModePlayback {
		return fmt.Errorf("replicated action in %s mode", d.mode)
	}
	if tick <= d.st.Tick {
		return fmt.Errorf("stale replicated action %s for tick %d at tick %d",
			d.reg.Name(a.Kind()), tick, d.st.Tick)
	}
	d.remote[tick] = append(d.remote[tick], queued{origin: origin, a: a})
	return nil
}

// RunActionPhase executes everything due this tick: actions staged or
// deferred from earlier phases, then the replicated bucket for this tick in
// broadcast order. It closes the inline window on the way out. The returned
// error is a desync on a replicated action and is fatal.
func (d *Dispatcher) RunActionPhase() error {
	work := d.staged
	d.staged = nil
	work = append(work, d.deferred...)
	d.deferred = nil

	for _, q := range work {
		// Staged and deferred actions re-check the pause gate and
		// re-query against the state they actually execute in.
		if d.st.Paused && q.a.Flags()&action.AllowWhilePaused == 0 {
			d.log.Debug("暫停中丟棄排隊動作",
				zap.String("action", d.reg.Name(q.a.Kind())),
				zap.Uint16("origin", uint16(q.origin)),
			)
			continue
		}
		if q.origin != world.SystemOrigin && d.originSeen[q.origin] {
			d.deferred = append(d.deferred, q)
			continue
		}
		d.run(q.a, q.origin)
	}

	bucket := d.remote[d.st.Tick]
	delete(d.remote, d.st.Tick)
	for _, q := range bucket {
		if err := d.runReplicated(q.a, q.origin); err != nil {
			return err
		}
	}

	d.inlineOpen = false
	return nil
}

// PendingRemote returns how many replicated actions are buffered for future
// ticks. Diagnostic only.
func (d *Dispatcher) PendingRemote() int {
	n := 0
	for _, b := range d.remote {
		n += len(b)
	}
	return n
}

// run executes a local action: query, execute, journal tap, broadcast.
func (d *Dispatcher) run(a action.Action, origin world.PlayerID) action.Result {
	res := a.Query(d.st, origin)
	if res.Failed() {
		d.log.Debug("動作驗證未通過",
			zap.String("action", d.reg.Name(a.Kind())),
			zap.Uint16("origin", uint16(origin)),
			zap.String("result", res.String()),
		)
		return res
	}

	res = a.Execute(d.st, origin)
	if origin != world.SystemOrigin {
		d.originSeen[origin] = true
	}
	d.record(origin, a)
	if d.mode == ModeHost {
		d.caps.Broadcast(d.st.Tick, origin, a)
	}
	return res
}

// runReplicated executes an action the host already validated. A failing
// query here means this peer's state has drifted from the host's.
func (d *Dispatcher) runReplicated(a action.Action, origin world.PlayerID) error {
	if res := a.Query(d.st, origin); res.Failed() {
		return fmt.Errorf("replicated %s refused at tick %d: %s",
			d.reg.Name(a.Kind()), d.st.Tick, res)
	}
	a.Execute(d.st, origin)
	d.record(origin, a)
	return nil
}

func (d *Dispatcher) record(origin world.PlayerID, a action.Action) {
	if d.journal == nil || a.Flags()&action.NoJournal != 0 {
		return
	}
	d.journal.Record(d.st.Tick, d.ord, origin, a)
	d.ord++
}
