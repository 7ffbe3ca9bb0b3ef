// Package sched drives the fixed-timestep simulation loop. Wall time is
// folded into a tick accumulator each poll; whole ticks are drained from it
// and the remainder carries over, so tick length never stretches with load.
package sched

import (
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/core/clock"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultTickDuration     = 25 * time.Millisecond
	DefaultMaxCatchupTicks  = 4
	DefaultTimeScaleMin     = 0.01
	DefaultTimeScaleMax     = 32.0
	DefaultFastForwardLimit = 4.0
)

// gateNap is how long a poll naps when the accumulator holds a full tick but
// the lockstep gate is closed, so the loop keeps pumping the network without
// spinning a core.
const gateNap = time.Millisecond

// Config holds the scheduler knobs.
type Config struct {
	// TickDuration is the fixed length of one simulation tick.
	TickDuration time.Duration
	// MaxCatchupTicks clamps both accumulators to this many ticks' worth
	// of debt after a stall, trading slow-motion for a freeze.
	MaxCatchupTicks int
	// TimeScaleMin and TimeScaleMax bound SetTimeScale.
	TimeScaleMin float64
	TimeScaleMax float64
	// FastForwardLimit is the time scale above which rendering falls back
	// to fixed pacing; interpolating between fast-forwarded ticks is waste.
	FastForwardLimit float64
	// UncapFPS allows variable-rate rendering when a presenter wants it.
	UncapFPS bool
}

// Simulator advances the deterministic game state.
type Simulator interface {
	// Tick runs exactly one fixed-length simulation step. A returned
	// error is fatal: the scheduler stops and reports it from Run.
	Tick() error
	// CanTick reports whether the next tick may run now. Lockstep
	// followers gate on the host's tick beacon; everyone else returns true.
	CanTick() bool
}

// Tweener maintains render interpolation state around ticks. Implementations
// must tolerate being driven headless (Reset/Restore with no draw between).
type Tweener interface {
	Reset()
	PreTick()
	PostTick()
	Tween(alpha float64)
	Restore()
}

// Presenter renders frames between ticks. Headless runs have none.
type Presenter interface {
	ShouldDraw() bool
	Draw()
}

// InputPump receives the out-of-band work that must happen once per poll
// whether or not any tick runs: draining network frames, local input.
type InputPump interface {
	ProcessMessages()
	HandleInput()
}

// Scheduler owns the poll loop. All methods except Finish must be called
// from the game loop goroutine; Finish is safe from anywhere.
type Scheduler struct {
	cfg   Config
	clock clock.Clock
	sim   Simulator
	tween Tweener
	pres  Presenter
	pump  InputPump
	log   *zap.Logger

	sleep func(time.Duration)

	timeScale     float64
	ticksAcc      time.Duration
	realtimeAcc   time.Duration
	realtimeTicks uint64
	variable      bool
	finished      atomic.Bool
}

// New builds a Scheduler. A nil tweener, presenter or pump is replaced with
// a no-op so the poll path stays free of nil checks.
func New(cfg Config, clk clock.Clock, sim Simulator, tween Tweener, pres Presenter, pump InputPump, log *zap.Logger) *Scheduler {
	if cfg.TickDuration <= 0 {
		cfg.TickDuration = DefaultTickDuration
	}
	if cfg.MaxCatchupTicks <= 0 {
		cfg.MaxCatchupTicks = DefaultMaxCatchupTicks
	}
	if cfg.TimeScaleMin <= 0 {
		cfg.TimeScaleMin = DefaultTimeScaleMin
	}
	if cfg.TimeScaleMax <= 0 {
		cfg.TimeScaleMax = DefaultTimeScaleMax
	}
	if cfg.FastForwardLimit <= 0 {
		cfg.FastForwardLimit = DefaultFastForwardLimit
	}
	if tween == nil {
		tween = noopTweener{}
	}
	if pres == nil {
		pres = noopPresenter{}
	}
	if pump == nil {
		pump = noopPump{}
	}
	return &Scheduler{
		cfg:       cfg,
		clock:     clk,
		sim:       sim,
		tween:     tween,
		pres:      pres,
		pump:      pump,
		log:       log,
		sleep:     time.Sleep,
		timeScale: 1.0,
	}
}

// Run polls until Finish is called or a tick fails.
func (s *Scheduler) Run() error {
	s.variable = s.shouldRunVariable()
	for !s.finished.Load() {
		if err := s.Poll(); err != nil {
			return err
		}
	}
	return nil
}

// Finish requests a stop. The first call wins; later calls are no-ops.
func (s *Scheduler) Finish() {
	if s.finished.CompareAndSwap(false, true) {
		s.log.Info("排程器收到結束請求")
	}
}

// Finished reports whether a stop has been requested.
func (s *Scheduler) Finished() bool {
	return s.finished.Load()
}

// Poll folds the elapsed wall time into the accumulators and runs whatever
// ticks (and at most one frame) are due.
func (s *Scheduler) Poll() error {
	delta := s.clock.ElapsedAndRestart()

	variable := s.shouldRunVariable()
	if variable != s.variable {
		s.variable = variable
		// A pacing switch leaves render positions mid-blend; snap them
		// back to the authoritative state so the next frame starts clean.
		s.tween.Restore()
		s.tween.Reset()
	}

	s.accumulate(delta)

	if variable {
		return s.pollVariable()
	}
	return s.pollFixed()
}

// SetTimeScale clamps and applies a new simulation speed, returning the
// value actually set. Scale affects only the tick accumulator; the realtime
// counter keeps wall rate.
func (s *Scheduler) SetTimeScale(scale float64) float64 {
	if scale < s.cfg.TimeScaleMin {
		scale = s.cfg.TimeScaleMin
	}
	if scale > s.cfg.TimeScaleMax {
		scale = s.cfg.TimeScaleMax
	}
	s.timeScale = scale
	return scale
}

// TimeScale returns the current simulation speed multiplier.
func (s *Scheduler) TimeScale() float64 {
	return s.timeScale
}

// RealtimeTicks returns the number of whole tick intervals of wall time that
// have passed since Run began, independent of time scale and pauses.
func (s *Scheduler) RealtimeTicks() uint64 {
	return s.realtimeTicks
}

// TickDuration returns the fixed tick length the scheduler was built with.
func (s *Scheduler) TickDuration() time.Duration {
	return s.cfg.TickDuration
}

func (s *Scheduler) shouldRunVariable() bool {
	return s.cfg.UncapFPS && s.pres.ShouldDraw() && s.timeScale <= s.cfg.FastForwardLimit
}

func (s *Scheduler) accumulate(delta time.Duration) {
	limit := s.cfg.TickDuration * time.Duration(s.cfg.MaxCatchupTicks)

	scaled := time.Duration(float64(delta) * s.timeScale)
	s.ticksAcc += scaled
	if s.ticksAcc > limit {
		s.ticksAcc = limit
	}

	s.realtimeAcc += delta
	if s.realtimeAcc > limit {
		s.realtimeAcc = limit
	}
	for s.realtimeAcc >= s.cfg.TickDuration {
		s.realtimeTicks++
		s.realtimeAcc -= s.cfg.TickDuration
	}
}

func (s *Scheduler) pollFixed() error {
	s.pump.ProcessMessages()

	if s.ticksAcc < s.cfg.TickDuration {
		// Nothing to simulate yet. Sleep off the remainder instead of
		// spinning; input latency stays bounded by one tick.
		s.sleep(s.cfg.TickDuration - s.ticksAcc)
		return nil
	}

	ran := false
	for s.ticksAcc >= s.cfg.TickDuration {
		if !s.sim.CanTick() {
			break
		}
		if err := s.sim.Tick(); err != nil {
			return err
		}
		s.ticksAcc -= s.cfg.TickDuration
		ran = true
	}
	if !ran {
		s.sleep(gateNap)
		return nil
	}

	s.pump.HandleInput()
	if s.pres.ShouldDraw() {
		s.pres.Draw()
	}
	return nil
}

func (s *Scheduler) pollVariable() error {
	shouldDraw := s.pres.ShouldDraw()

	s.pump.ProcessMessages()

	for s.ticksAcc >= s.cfg.TickDuration {
		if !s.sim.CanTick() {
			break
		}
		if shouldDraw {
			s.tween.PreTick()
		}
		if err := s.sim.Tick(); err != nil {
			return err
		}
		s.ticksAcc -= s.cfg.TickDuration
		if shouldDraw {
			s.tween.PostTick()
		}
	}

	s.pump.HandleInput()

	if shouldDraw {
		alpha := math.Min(float64(s.ticksAcc)/float64(s.cfg.TickDuration), 1.0)
		s.tween.Tween(alpha)
		s.pres.Draw()
	}
	return nil
}

type noopTweener struct{}

func (noopTweener) Reset()             {}
func (noopTweener) PreTick()           {}
func (noopTweener) PostTick()          {}
func (noopTweener) Tween(alpha float64) {}
func (noopTweener) Restore()           {}

type noopPresenter struct{}

func (noopPresenter) ShouldDraw() bool { return false }
func (noopPresenter) Draw()            {}

type noopPump struct{}

func (noopPump) ProcessMessages() {}
func (noopPump) HandleInput()     {}
