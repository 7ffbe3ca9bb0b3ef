package dispatch

import (
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

type testCatalog struct{}

func (testCatalog) HasUnitKind(k uint16) bool    { return k == 1 }
func (testCatalog) UnitSpeed(k uint16) int32     { return 2 }
func (testCatalog) UnitCost(k uint16) int64      { return 25 }
func (testCatalog) UnitOrdersMask(k uint16) uint8 {
	return world.OrderHold | world.OrderPatrol
}

type fakeCaps struct {
	broadcasts []string
	submitted  []action.Kind
}

func (c *fakeCaps) Broadcast(tick uint64, origin world.PlayerID, a action.Action) {
	c.broadcasts = append(c.broadcasts, fmt.Sprintf("%d/%d/%d", tick, origin, a.Kind()))
}

func (c *fakeCaps) SubmitToHost(origin world.PlayerID, a action.Action) {
	c.submitted = append(c.submitted, a.Kind())
}

type fakeJournal struct {
	rows []string
}

func (j *fakeJournal) Record(tick uint64, ord int, origin world.PlayerID, a action.Action) {
	j.rows = append(j.rows, fmt.Sprintf("%d/%d/%d/%d", tick, ord, origin, a.Kind()))
}

// localFx is a client-only test action: applies on this peer alone and, per
// the flag contract, touches nothing checksummed.
type localFx struct {
	applied bool
}

func (f *localFx) Kind() action.Kind   { return action.Kind(200) }
func (f *localFx) Flags() action.Flags { return action.ClientOnly | action.AllowWhilePaused }
func (f *localFx) Query(st *world.State, origin world.PlayerID) action.Result {
	return action.OK()
}
func (f *localFx) Execute(st *world.State, origin world.PlayerID) action.Result {
	f.applied = true
	return action.OK()
}
func (f *localFx) Serialise(w *wire.Writer)         {}
func (f *localFx) Deserialise(r *wire.Reader) error { return r.Err() }

func newTestWorld() *world.State {
	st := world.NewState(world.Params{
		Seed:        11,
		Funds:       500,
		Substate:    world.SubstateRunning,
		Cheats:      true,
		GridW:       32,
		GridH:       32,
		MaxUnits:    16,
		TicksPerDay: 100,
	})
	st.Catalog = testCatalog{}
	st.AddPlayer(1, "kaori", true)
	st.AddPlayer(2, "ren", false)
	return st
}

func tick(t *testing.T, d *Dispatcher, st *world.State) {
	t.Helper()
	st.Tick++
	d.BeginTick()
	if err := d.RunActionPhase(); err != nil {
		t.Fatalf("action phase at tick %d: %v", st.Tick, err)
	}
}

func TestStandaloneExecutesInline(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	d := New(ModeStandalone, st, reg, nil, nil, zap.NewNop())

	st.Tick++
	d.BeginTick()

	res := d.Enqueue(&action.UnitSpawn{UnitKind: 1, X: 2, Y: 2}, 1)
	if res.Status != action.StatusOK {
		t.Fatalf("result = %v, want immediate ok", res)
	}
	if st.UnitCount() != 1 {
		t.Fatal("unit not spawned inline")
	}
}

func TestPauseGate(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	d := New(ModeStandalone, st, reg, nil, nil, zap.NewNop())

	st.Tick++
	d.BeginTick()
	st.Paused = true

	res := d.Enqueue(&action.UnitSpawn{UnitKind: 1}, 1)
	if res.Class != action.ErrPaused {
		t.Errorf("spawn while paused: class = %v, want ErrPaused", res.Class)
	}
	if st.UnitCount() != 0 {
		t.Error("refused action still executed")
	}

	// Chat is pause-exempt and must go through.
	if res := d.Enqueue(&action.Chat{Text: "still here"}, 1); res.Failed() {
		t.Errorf("exempt chat refused: %v", res)
	}
	if st.Chat.Len() != 1 {
		t.Error("exempt chat not applied")
	}
}

func TestLateEnqueueStagesForNextTick(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	d := New(ModeStandalone, st, reg, nil, nil, zap.NewNop())

	tick(t, d, st) // closes the inline window for this tick

	res := d.Enqueue(&action.PauseToggle{}, 1)
	if res.Status != action.StatusQueued {
		t.Fatalf("late enqueue = %v, want queued", res)
	}
	if st.Paused {
		t.Fatal("staged action executed early")
	}

	tick(t, d, st)
	if !st.Paused {
		t.Error("staged action did not execute at the next action phase")
	}
}

func TestPerOriginLimitDefersSecondAction(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	d := New(ModeStandalone, st, reg, nil, nil, zap.NewNop())

	st.Tick++
	d.BeginTick()

	if res := d.Enqueue(&action.UnitSpawn{UnitKind: 1, X: 1, Y: 1}, 1); res.Failed() {
		t.Fatalf("first: %v", res)
	}
	second := d.Enqueue(&action.UnitSpawn{UnitKind: 1, X: 2, Y: 2}, 1)
	if second.Status != action.StatusQueued {
		t.Fatalf("second from same origin = %v, want queued", second)
	}
	if st.UnitCount() != 1 {
		t.Fatal("second action executed within the same tick")
	}

	// System origin is exempt from the limit.
	if res := d.Enqueue(&action.Cheat{Cheat: action.CheatAdvanceDays, Value: 1}, world.SystemOrigin); res.Failed() {
		t.Fatalf("system action: %v", res)
	}

	if err := d.RunActionPhase(); err != nil {
		t.Fatal(err)
	}

	tick(t, d, st)
	if st.UnitCount() != 2 {
		t.Error("deferred action did not execute on the following tick")
	}
}

func TestHostBroadcastsExecutedActions(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	caps := &fakeCaps{}
	d := New(ModeHost, st, reg, caps, nil, zap.NewNop())

	st.Tick++
	d.BeginTick()

	d.Enqueue(&action.UnitSpawn{UnitKind: 1, X: 1, Y: 1}, 1)
	d.Enqueue(&action.Chat{Text: "hello"}, 2)
	refused := d.Enqueue(&action.UnitSpawn{UnitKind: 99}, 2)
	if !refused.Failed() {
		t.Fatal("bad spawn not refused")
	}

	want := []string{"1/1/5", "1/2/8"} // tick/origin/kind, execution order
	if fmt.Sprint(caps.broadcasts) != fmt.Sprint(want) {
		t.Errorf("broadcasts = %v, want %v", caps.broadcasts, want)
	}
}

func TestClientForwardsToHost(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	caps := &fakeCaps{}
	d := New(ModeClient, st, reg, caps, nil, zap.NewNop())

	st.Tick++
	d.BeginTick()

	res := d.Enqueue(&action.UnitSpawn{UnitKind: 1, X: 1, Y: 1}, 2)
	if res.Status != action.StatusQueued {
		t.Fatalf("client enqueue = %v, want queued", res)
	}
	if st.UnitCount() != 0 {
		t.Fatal("client applied its own proposal before the broadcast")
	}
	if len(caps.submitted) != 1 || caps.submitted[0] != action.KindUnitSpawn {
		t.Errorf("submitted = %v, want one unit_spawn", caps.submitted)
	}

	// Client-only actions apply locally and are never forwarded.
	fx := &localFx{}
	if res := d.Enqueue(fx, 2); res.Failed() {
		t.Fatalf("client-only: %v", res)
	}
	if !fx.applied {
		t.Error("client-only action not applied locally")
	}
	if len(caps.submitted) != 1 {
		t.Error("client-only action was forwarded to the host")
	}
}

func TestReplicatedBucketExecutesAtItsTick(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	d := New(ModeClient, st, reg, &fakeCaps{}, nil, zap.NewNop())

	// The move depends on the spawn: only in-order execution survives.
	if err := d.EnqueueRemote(2, 1, &action.UnitSpawn{UnitKind: 1, X: 1, Y: 1}); err != nil {
		t.Fatal(err)
	}
	if err := d.EnqueueRemote(2, 1, &action.UnitMove{Unit: 1, X: 5, Y: 5}); err != nil {
		t.Fatal(err)
	}

	tick(t, d, st) // tick 1: bucket not due yet
	if st.UnitCount() != 0 {
		t.Fatal("bucket executed before its tick")
	}

	tick(t, d, st) // tick 2
	u := st.Unit(1)
	if u == nil || !u.HasTarget || u.TargetX != 5 {
		t.Fatalf("unit = %+v, want spawned with target (5,5)", u)
	}
	if d.PendingRemote() != 0 {
		t.Errorf("pending remote = %d, want 0", d.PendingRemote())
	}
}

func TestStaleReplicatedActionIsDesync(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	d := New(ModeClient, st, reg, &fakeCaps{}, nil, zap.NewNop())

	tick(t, d, st) // completes tick 1

	if err := d.EnqueueRemote(1, 1, &action.Chat{Text: "late"}); err == nil {
		t.Error("stale replicated action accepted")
	}
}

func TestReplicatedQueryFailureIsDesync(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	d := New(ModeClient, st, reg, &fakeCaps{}, nil, zap.NewNop())

	// The host supposedly executed a move for a unit this peer does not
	// have: states have drifted, the phase must fail.
	if err := d.EnqueueRemote(1, 1, &action.UnitMove{Unit: 42, X: 1, Y: 1}); err != nil {
		t.Fatal(err)
	}

	st.Tick++
	d.BeginTick()
	if err := d.RunActionPhase(); err == nil {
		t.Error("divergent replicated action did not fail the phase")
	}
}

func TestPlaybackRefusesLocalProposals(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	d := New(ModePlayback, st, reg, nil, nil, zap.NewNop())

	st.Tick++
	d.BeginTick()

	res := d.Enqueue(&action.PauseToggle{}, 1)
	if res.Class != action.ErrPermission {
		t.Errorf("playback enqueue class = %v, want ErrPermission", res.Class)
	}
}

func TestJournalTapSkipsNoJournal(t *testing.T) {
	st := newTestWorld()
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	j := &fakeJournal{}
	d := New(ModeStandalone, st, reg, nil, j, zap.NewNop())

	st.Tick++
	d.BeginTick()

	d.Enqueue(&action.UnitSpawn{UnitKind: 1, X: 1, Y: 1}, 1)
	d.Enqueue(&action.Chat{Text: "off the record"}, 2)
	d.Enqueue(&action.UnitMove{Unit: 1, X: 3, Y: 3}, world.SystemOrigin)

	// The chat leaves no row and burns no ordinal.
	want := []string{"1/0/1/5", "1/1/0/7"} // tick/ord/origin/kind
	if fmt.Sprint(j.rows) != fmt.Sprint(want) {
		t.Errorf("journal rows = %v, want %v", j.rows, want)
	}
}
