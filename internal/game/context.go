// Package game composes the simulation: the world, the dispatcher, the
// phase runner and the link state for whichever mode this process runs in.
// The Context is the scheduler's Simulator and InputPump.
package game

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/config"
	"github.com/gridsim/server/internal/core/sched"
	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// ErrLinkLost is the failure recorded when the host connection drops.
var ErrLinkLost = errors.New("host link lost")

// Context owns the per-process composition of one simulation run.
type Context struct {
	cfg  *config.Config
	log  *zap.Logger
	mode dispatch.Mode

	st     *world.State
	disp   *dispatch.Dispatcher
	runner *coresys.Runner

	console *Console

	// Scheduler binding, set once before Run.
	sched *sched.Scheduler

	// Client link (client mode only).
	client    *net.Client
	clientReg *wire.Registry

	// Lockstep follower state. remoteTick is the newest tick beacon from
	// the host; the follower may run tick N once remoteTick >= N.
	remoteTick uint64
	remoteSums map[uint64][]byte

	// Playback bounds (playback mode only): the tick to stop at and the
	// recorded checksum to verify there.
	playbackLast uint64
	playbackSum  []byte

	localPlayer world.PlayerID

	failure error

	tickDur time.Duration
}

func NewContext(cfg *config.Config, mode dispatch.Mode, st *world.State, disp *dispatch.Dispatcher, runner *coresys.Runner, log *zap.Logger) *Context {
	c := &Context{
		cfg:        cfg,
		log:        log,
		mode:       mode,
		st:         st,
		disp:       disp,
		runner:     runner,
		remoteSums: make(map[uint64][]byte),
		tickDur:    cfg.Sim.TickDuration,
	}
	c.console = newConsole(c)
	return c
}

func (c *Context) Mode() dispatch.Mode            { return c.mode }
func (c *Context) World() *world.State            { return c.st }
func (c *Context) Console() *Console              { return c.console }
func (c *Context) Runner() *coresys.Runner        { return c.runner }
func (c *Context) Dispatcher() *dispatch.Dispatcher { return c.disp }

// Scheduler returns the bound scheduler, nil before BindScheduler.
func (c *Context) Scheduler() *sched.Scheduler { return c.sched }

// LocalPlayer is the player id this process acts as: the host or standalone
// operator, or the id the host assigned at join. Zero while unassigned.
func (c *Context) LocalPlayer() world.PlayerID { return c.localPlayer }

func (c *Context) SetLocalPlayer(id world.PlayerID) { c.localPlayer = id }

// BindScheduler wires the scheduler so console commands and failures can
// reach it. Must be called before Run.
func (c *Context) BindScheduler(s *sched.Scheduler) {
	c.sched = s
}

// BindClient wires the host link and the registry that dispatches its
// frames. Client mode only.
func (c *Context) BindClient(client *net.Client, reg *wire.Registry) {
	c.client = client
	c.clientReg = reg
}

// Tick runs one simulation step: advance the tick counter, open the
// dispatcher's inline window, then run every phase.
func (c *Context) Tick() error {
	if c.failure != nil {
		return c.failure
	}

	c.st.Tick++
	c.disp.BeginTick()
	c.runner.Tick(c.tickDur)

	if c.failure != nil {
		return c.failure
	}

	if c.mode == dispatch.ModePlayback && c.st.Tick >= c.playbackLast {
		if err := c.verifyPlayback(); err != nil {
			c.Fail(err)
			return c.failure
		}
		c.log.Info("重播完成", zap.Uint64("tick", c.st.Tick))
		c.Finish()
	}
	return nil
}

// CanTick gates the scheduler. A lockstep follower may run tick N only
// after the host's beacon for N arrived; everyone else free-runs.
func (c *Context) CanTick() bool {
	if c.failure != nil {
		return true // let Tick surface the failure
	}
	switch c.mode {
	case dispatch.ModeClient:
		return c.remoteTick >= c.st.Tick+1
	case dispatch.ModePlayback:
		return c.st.Tick < c.playbackLast
	default:
		return true
	}
}

// ProcessMessages drains the host link. Runs once per scheduler poll, so
// tick beacons unblock CanTick even while no tick is running.
func (c *Context) ProcessMessages() {
	if c.mode != dispatch.ModeClient || c.client == nil {
		return
	}

	for {
		select {
		case frame := <-c.client.Frames():
			if err := c.clientReg.Dispatch(c, wire.StateJoined, frame); err != nil {
				c.Fail(fmt.Errorf("host frame: %w", err))
				return
			}
		default:
			if c.client.IsClosed() && c.failure == nil {
				c.Fail(ErrLinkLost)
			}
			return
		}
	}
}

// HandleInput is part of the scheduler's InputPump contract. Local console
// lines arrive through the console queue instead, so there is nothing to do
// here.
func (c *Context) HandleInput() {}

// Fail records the first fatal failure and stops the scheduler. Lockstep
// failures are unrecoverable: a follower that diverged can only disconnect.
func (c *Context) Fail(err error) {
	if c.failure != nil || err == nil {
		return
	}
	c.failure = err
	c.log.Error("模擬中止", zap.Error(err))
	if c.sched != nil {
		c.sched.Finish()
	}
}

// Failure returns the recorded fatal failure, if any.
func (c *Context) Failure() error {
	return c.failure
}

// Finish asks the scheduler to stop after the current poll.
func (c *Context) Finish() {
	if c.sched != nil {
		c.sched.Finish()
	}
}

// SetRemoteTick records the newest host tick beacon.
func (c *Context) SetRemoteTick(tick uint64) {
	if tick > c.remoteTick {
		c.remoteTick = tick
	}
}

// RemoteTick returns the newest host tick beacon seen so far.
func (c *Context) RemoteTick() uint64 {
	return c.remoteTick
}

// StoreRemoteChecksum keeps a host checksum until this peer's own tick
// reaches it. The host can run ahead, so several may be pending.
func (c *Context) StoreRemoteChecksum(tick uint64, sum []byte) {
	c.remoteSums[tick] = sum
}

// TakeRemoteChecksum removes and returns the host checksum for a tick.
func (c *Context) TakeRemoteChecksum(tick uint64) ([]byte, bool) {
	sum, ok := c.remoteSums[tick]
	if ok {
		delete(c.remoteSums, tick)
	}
	return sum, ok
}
