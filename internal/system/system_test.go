package system

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/config"
	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/game"
	"github.com/gridsim/server/internal/world"
)

type testCatalog struct{}

func (testCatalog) HasUnitKind(kind uint16) bool     { return kind == 1 }
func (testCatalog) UnitSpeed(kind uint16) int32      { return 2 }
func (testCatalog) UnitCost(kind uint16) int64       { return 25 }
func (testCatalog) UnitOrdersMask(kind uint16) uint8 { return world.OrderMaskAll }

func newTestState(sub world.Substate) *world.State {
	st := world.NewState(world.Params{
		Seed:        7,
		Funds:       100,
		Substate:    sub,
		GridW:       32,
		GridH:       32,
		MaxUnits:    16,
		TicksPerDay: 3,
		DailyGrant:  50,
	})
	st.Catalog = testCatalog{}
	return st
}

func newTestDispatcher(st *world.State) *dispatch.Dispatcher {
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	return dispatch.New(dispatch.ModeStandalone, st, reg, nil, nil, zap.NewNop())
}

func TestLobbyCountdownStartsMatch(t *testing.T) {
	st := newTestState(world.SubstateLobby)
	st.AddPlayer(1, "kaori", true)
	disp := newTestDispatcher(st)
	disp.BeginTick()

	lobby := NewLobbySystem(st, disp, 1, 2, zap.NewNop())

	// The first update arms the countdown and burns one tick of it, the
	// second burns the rest; the third dispatches the start.
	for i := 0; i < 2; i++ {
		lobby.Update(time.Millisecond)
		if st.Substate != world.SubstateLobby {
			t.Fatalf("match started after %d updates, want 4", i+1)
		}
	}
	lobby.Update(time.Millisecond)
	if st.Substate != world.SubstateRunning {
		t.Fatalf("substate = %s, want running", st.Substate)
	}
}

func TestLobbyCancelsWhenPlayersDropBelowMinimum(t *testing.T) {
	st := newTestState(world.SubstateLobby)
	st.AddPlayer(1, "kaori", true)
	disp := newTestDispatcher(st)
	disp.BeginTick()

	lobby := NewLobbySystem(st, disp, 1, 1, zap.NewNop())
	lobby.Update(time.Millisecond) // arms, left 1 -> 0

	st.RemovePlayer(1)
	lobby.Update(time.Millisecond) // cancels
	if st.Substate != world.SubstateLobby {
		t.Fatal("match started with no players")
	}

	// Rejoining restarts the full countdown instead of resuming it.
	st.AddPlayer(1, "kaori", true)
	lobby.Update(time.Millisecond) // re-arms, left 1 -> 0
	if st.Substate != world.SubstateLobby {
		t.Fatal("countdown resumed instead of restarting")
	}
	lobby.Update(time.Millisecond)
	if st.Substate != world.SubstateRunning {
		t.Fatalf("substate = %s, want running", st.Substate)
	}
}

func TestCalendarPaysDailyGrant(t *testing.T) {
	st := newTestState(world.SubstateRunning)
	cal := NewCalendarSystem(st, zap.NewNop())

	for i := 0; i < 3; i++ {
		cal.Update(time.Millisecond)
	}
	if st.Date.Day != 1 {
		t.Fatalf("day = %d, want 1", st.Date.Day)
	}
	if st.Funds != 150 {
		t.Fatalf("funds = %d, want 150", st.Funds)
	}
}

func TestCalendarHoldsWhilePausedOrInLobby(t *testing.T) {
	st := newTestState(world.SubstateRunning)
	st.Paused = true
	cal := NewCalendarSystem(st, zap.NewNop())
	cal.Update(time.Millisecond)
	if st.Date.TickOfDay != 0 {
		t.Fatal("calendar advanced while paused")
	}

	st.Paused = false
	st.Substate = world.SubstateLobby
	cal.Update(time.Millisecond)
	if st.Date.TickOfDay != 0 {
		t.Fatal("calendar advanced in the lobby")
	}
}

func TestMovementStepsTowardTarget(t *testing.T) {
	st := newTestState(world.SubstateRunning)
	u := st.AddUnit(1, 1, 0, 0)
	u.TargetX, u.TargetY = 5, 1
	u.HasTarget = true

	mv := NewMovementSystem(st)
	mv.Update(time.Millisecond) // speed 2: diagonal then straight on y
	if u.X != 2 || u.Y != 1 {
		t.Fatalf("after 1 step: (%d,%d), want (2,1)", u.X, u.Y)
	}
	mv.Update(time.Millisecond)
	if u.X != 4 || u.Y != 1 {
		t.Fatalf("after 2 steps: (%d,%d), want (4,1)", u.X, u.Y)
	}
	mv.Update(time.Millisecond)
	if u.X != 5 || u.Y != 1 {
		t.Fatalf("after 3 steps: (%d,%d), want (5,1)", u.X, u.Y)
	}
	if u.HasTarget {
		t.Fatal("target not cleared on arrival")
	}
}

func TestMovementIdlesWhileNotRunning(t *testing.T) {
	st := newTestState(world.SubstateLobby)
	u := st.AddUnit(1, 1, 0, 0)
	u.TargetX, u.TargetY = 5, 5
	u.HasTarget = true

	mv := NewMovementSystem(st)
	mv.Update(time.Millisecond)
	if u.X != 0 || u.Y != 0 {
		t.Fatal("unit moved outside the running substate")
	}
}

func TestMovementPatrolIsDeterministic(t *testing.T) {
	walk := func() (int32, int32, uint64) {
		st := newTestState(world.SubstateRunning)
		u := st.AddUnit(1, 1, 16, 16)
		u.Orders = world.OrderPatrol
		mv := NewMovementSystem(st)
		for i := 0; i < 50; i++ {
			mv.Update(time.Millisecond)
		}
		return u.X, u.Y, st.RNG.State()
	}

	x1, y1, rng1 := walk()
	x2, y2, rng2 := walk()
	if x1 != x2 || y1 != y2 {
		t.Fatalf("patrol diverged: (%d,%d) vs (%d,%d)", x1, y1, x2, y2)
	}
	if rng1 != rng2 {
		t.Fatalf("rng state diverged: %d vs %d", rng1, rng2)
	}
}

func TestMovementHoldBeatsPatrol(t *testing.T) {
	st := newTestState(world.SubstateRunning)
	u := st.AddUnit(1, 1, 16, 16)
	u.Orders = world.OrderPatrol | world.OrderHold

	before := st.RNG.State()
	mv := NewMovementSystem(st)
	mv.Update(time.Millisecond)
	if u.X != 16 || u.Y != 16 {
		t.Fatal("holding unit wandered")
	}
	if st.RNG.State() != before {
		t.Fatal("holding unit drew from the rng")
	}
}

func TestChatExpiry(t *testing.T) {
	st := newTestState(world.SubstateRunning)
	st.Chat.Add(world.ChatMessage{Tick: 1, Player: 1, Name: "kaori", Text: "hello"})
	st.Chat.Add(world.ChatMessage{Tick: 90, Player: 1, Name: "kaori", Text: "still here"})

	chat := NewChatSystem(st, 10)
	st.Tick = 95
	chat.Update(time.Millisecond)

	msgs := st.Chat.Messages()
	if len(msgs) != 1 {
		t.Fatalf("kept %d messages, want 1", len(msgs))
	}
	if msgs[0].Text != "still here" {
		t.Fatalf("kept %q, want the newer message", msgs[0].Text)
	}
}

func TestJournalBuffersRecordedActions(t *testing.T) {
	js := NewJournalSystem(nil, 42, zap.NewNop())

	js.Record(3, 0, 1, &action.PauseToggle{})
	js.Record(3, 1, 2, &action.Chat{Text: "gg"})

	if len(js.buf) != 2 {
		t.Fatalf("buffered %d rows, want 2", len(js.buf))
	}
	row := js.buf[1]
	if row.Tick != 3 || row.Ord != 1 || row.Origin != 2 {
		t.Fatalf("row = %+v, want tick 3 ord 1 origin 2", row)
	}
	if row.Kind != uint16(action.KindChat) {
		t.Fatalf("kind = %d, want %d", row.Kind, action.KindChat)
	}
	want := action.EncodePayload(&action.Chat{Text: "gg"})
	if string(row.Payload) != string(want) {
		t.Fatalf("payload = %x, want %x", row.Payload, want)
	}
}

func newClientContext(st *world.State) *game.Context {
	reg := action.NewRegistry()
	action.RegisterCore(reg)
	disp := dispatch.New(dispatch.ModeClient, st, reg, nil, nil, zap.NewNop())
	return game.NewContext(config.Defaults(), dispatch.ModeClient, st, disp, coresys.NewRunner(), zap.NewNop())
}

func TestChecksumClientAcceptsMatchingDigest(t *testing.T) {
	st := newTestState(world.SubstateRunning)
	ctx := newClientContext(st)
	st.Tick = 10
	sum := st.Checksum()
	ctx.StoreRemoteChecksum(10, sum[:])

	cs := NewChecksumSystem(ctx, nil, 0, zap.NewNop())
	cs.Update(time.Millisecond)
	if err := ctx.Failure(); err != nil {
		t.Fatalf("matching checksum failed the context: %v", err)
	}
}

func TestChecksumClientFailsOnDivergence(t *testing.T) {
	st := newTestState(world.SubstateRunning)
	ctx := newClientContext(st)
	st.Tick = 10
	wrong := make([]byte, 32)
	ctx.StoreRemoteChecksum(10, wrong)

	cs := NewChecksumSystem(ctx, nil, 0, zap.NewNop())
	cs.Update(time.Millisecond)
	if ctx.Failure() == nil {
		t.Fatal("divergent checksum did not fail the context")
	}
}

func TestCleanupFlushesDestroyQueue(t *testing.T) {
	st := newTestState(world.SubstateRunning)
	u := st.AddUnit(1, 1, 0, 0)
	st.MarkForDestruction(u.ID)

	cl := NewCleanupSystem(st, zap.NewNop())
	cl.Update(time.Millisecond)
	if st.Unit(u.ID) != nil {
		t.Fatal("marked unit survived cleanup")
	}
}
