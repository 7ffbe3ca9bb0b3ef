package game

import (
	"strings"
	"testing"
	"time"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/world"
)

// replies collects console output for assertions.
type replies struct {
	lines []string
}

func (r *replies) sink(s string) { r.lines = append(r.lines, s) }

func (r *replies) contains(sub string) bool {
	for _, l := range r.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

// consolePhase drains the console queue at the input phase, where the
// dispatcher's inline window is open, the way the real console system runs.
type consolePhase struct {
	ctx *Context
}

func (s *consolePhase) Phase() coresys.Phase    { return coresys.PhaseInput }
func (s *consolePhase) Update(dt time.Duration) { s.ctx.Console().ProcessQueue() }

// consoleFixture is a running standalone match with one admin player acting
// as the local operator. run submits a command and ticks once, so the
// command evaluates inside the tick like production console input.
type consoleFixture struct {
	ctx *Context
	r   *replies
	t   *testing.T
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()
	ctx := newTestContext(t, dispatch.ModeStandalone, nil)
	ctx.Runner().Register(&consolePhase{ctx: ctx})

	st := ctx.World()
	st.AddPlayer(1, "kaori", true)
	st.Substate = world.SubstateRunning
	ctx.SetLocalPlayer(1)

	return &consoleFixture{ctx: ctx, r: &replies{}, t: t}
}

func (f *consoleFixture) run(cmd string) {
	f.t.Helper()
	f.ctx.Console().Submit(cmd, f.r.sink)
	if err := f.ctx.Tick(); err != nil {
		f.t.Fatalf("Tick: %v", err)
	}
}

func TestConsolePause(t *testing.T) {
	f := newConsoleFixture(t)

	f.run("pause")
	if !f.ctx.World().Paused {
		t.Fatalf("pause command did not pause: %q", f.r.lines)
	}
	if !f.r.contains("模擬已暫停") {
		t.Fatalf("missing pause reply: %q", f.r.lines)
	}

	f.run("pause")
	if f.ctx.World().Paused {
		t.Fatalf("second pause did not resume")
	}
	if !f.r.contains("模擬已恢復") {
		t.Fatalf("missing resume reply: %q", f.r.lines)
	}
}

func TestConsoleSpawnOrdersMove(t *testing.T) {
	f := newConsoleFixture(t)
	st := f.ctx.World()

	f.run("spawn 1 3 4")
	if st.UnitCount() != 1 {
		t.Fatalf("spawn did not create a unit: %q", f.r.lines)
	}
	if st.Funds != 500-25 {
		t.Fatalf("funds = %d after spawn, want 475", st.Funds)
	}

	f.run("orders 1 hold")
	if got := st.Unit(1).Orders; got != world.OrderHold {
		t.Fatalf("orders = %#x, want hold", got)
	}

	f.run("move 1 9 9")
	u := st.Unit(1)
	if !u.HasTarget || u.TargetX != 9 || u.TargetY != 9 {
		t.Fatalf("move did not set a target: %+v", u)
	}
}

func TestConsoleSpawnUsage(t *testing.T) {
	f := newConsoleFixture(t)

	f.run("spawn")
	if !f.r.contains("用法") {
		t.Fatalf("missing usage reply: %q", f.r.lines)
	}
	f.run("spawn x 1 2")
	if !f.r.contains("無效的種類ID") {
		t.Fatalf("bad kind accepted: %q", f.r.lines)
	}
	if f.ctx.World().UnitCount() != 0 {
		t.Fatalf("invalid spawn created a unit")
	}
}

func TestConsoleCheat(t *testing.T) {
	f := newConsoleFixture(t)

	f.run("cheat funds 1000")
	if got := f.ctx.World().Funds; got != 1500 {
		t.Fatalf("funds = %d, want 1500: %q", got, f.r.lines)
	}

	f.run("cheat nothing 1")
	if !f.r.contains("未知的作弊指令") {
		t.Fatalf("unknown cheat accepted: %q", f.r.lines)
	}
}

func TestConsoleSay(t *testing.T) {
	f := newConsoleFixture(t)

	f.run("say hello out there")
	if got := f.ctx.World().Chat.Len(); got != 1 {
		t.Fatalf("chat len = %d, want 1: %q", got, f.r.lines)
	}

	// Without a local player the command refuses instead of posting as the
	// system.
	f.ctx.SetLocalPlayer(0)
	f.run("say ghost")
	if got := f.ctx.World().Chat.Len(); got != 1 {
		t.Fatalf("system chat slipped through")
	}
	if !f.r.contains("沒有本地玩家") {
		t.Fatalf("missing refusal reply: %q", f.r.lines)
	}
}

func TestConsoleSpeedRefusedOnClient(t *testing.T) {
	ctx := newTestContext(t, dispatch.ModeClient, nil)
	r := &replies{}

	ctx.Console().Eval("speed 4", r.sink)
	if !r.contains("由主機決定") {
		t.Fatalf("client speed change accepted: %q", r.lines)
	}
}

func TestConsoleUnknownCommand(t *testing.T) {
	f := newConsoleFixture(t)

	f.run("frobnicate")
	if !f.r.contains("未知的指令") {
		t.Fatalf("missing unknown-command reply: %q", f.r.lines)
	}
}

func TestConsoleStatusReportsState(t *testing.T) {
	f := newConsoleFixture(t)
	f.run("") // advance to tick 1 with nothing queued

	r := &replies{}
	f.ctx.Console().Eval("status", r.sink)
	if !r.contains("tick:1") {
		t.Fatalf("status missing tick: %q", r.lines)
	}
	if !r.contains("running") {
		t.Fatalf("status missing substate: %q", r.lines)
	}
}

func TestConsoleQueueWaitsForTick(t *testing.T) {
	f := newConsoleFixture(t)

	f.ctx.Console().Submit("cheat funds 10", f.r.sink)
	if f.ctx.World().Funds != 500 {
		t.Fatalf("command ran before the console phase")
	}

	if err := f.ctx.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := f.ctx.World().Funds; got != 510 {
		t.Fatalf("funds = %d after the tick, want 510", got)
	}
}
