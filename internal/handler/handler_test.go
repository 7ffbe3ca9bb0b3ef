package handler

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/config"
	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/data"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/game"
	gonet "github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

const testCatalogYAML = `
units:
  - id: 1
    name: runner
    speed: 2
    cost: 25
    orders: [hold, patrol]
`

func testUnits(t *testing.T) *data.UnitTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "units.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := data.LoadUnitTable(path)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

// newTestDeps builds a hosting-side handler environment around a fresh
// lobby world that already holds the operator as player 1.
func newTestDeps(t *testing.T, cfg *config.Config) *Deps {
	t.Helper()

	units := testUnits(t)
	st := world.NewState(world.Params{
		Seed:        5,
		Funds:       500,
		Substate:    world.SubstateLobby,
		GridW:       32,
		GridH:       32,
		MaxUnits:    16,
		TicksPerDay: 100,
	})
	st.Catalog = units
	st.AddPlayer(1, "operator", true)

	actions := action.NewRegistry()
	action.RegisterCore(actions)
	disp := dispatch.New(dispatch.ModeStandalone, st, actions, nil, nil, zap.NewNop())
	ctx := game.NewContext(cfg, dispatch.ModeStandalone, st, disp, coresys.NewRunner(), zap.NewNop())

	return NewDeps(cfg, zap.NewNop(), ctx, disp, actions, gonet.NewSessionStore(), units)
}

// newTestSession builds a session over a pipe without starting its I/O
// loops, so handler output stays observable in OutQueue after a flush.
func newTestSession(t *testing.T, cfg *config.Config, id uint64) *gonet.Session {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	return gonet.NewSession(c1, id, cfg.Network, zap.NewNop())
}

// sentFrame flushes the session's buffer and returns the first queued frame.
func sentFrame(t *testing.T, sess *gonet.Session) []byte {
	t.Helper()
	sess.FlushOutput()
	select {
	case frame := <-sess.OutQueue:
		return frame
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func hello(deps *Deps, name, password string) []byte {
	return BuildHello(name, password, deps.Units.Hash())
}

func dispatchHello(deps *Deps, sess *gonet.Session, frame []byte) {
	HandleHello(sess, wire.NewReader(frame), deps)
}

func TestHelloAdmitsAndStagesJoin(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Greeting = "welcome aboard"
	deps := newTestDeps(t, cfg)
	sess := newTestSession(t, cfg, 7)

	dispatchHello(deps, sess, hello(deps, "kaori", ""))

	if got, want := sess.State(), wire.StateJoined; got != want {
		t.Fatalf("session state = %s, want %s", got, want)
	}
	if sess.PlayerID != 2 {
		t.Fatalf("assigned player id %d, want 2", sess.PlayerID)
	}

	wel, err := ParseJoinReply(sentFrame(t, sess))
	if err != nil {
		t.Fatalf("ParseJoinReply: %v", err)
	}
	if wel.PlayerID != 2 {
		t.Fatalf("welcome player id = %d, want 2", wel.PlayerID)
	}
	if wel.Admin {
		t.Fatal("non-admin joined as admin")
	}
	if wel.Greeting != "welcome aboard" {
		t.Fatalf("greeting = %q", wel.Greeting)
	}
	if wel.Params.Tick != deps.World.Tick {
		t.Fatalf("snapshot tick = %d, want %d", wel.Params.Tick, deps.World.Tick)
	}
	if len(wel.Roster) != 1 || wel.Roster[0].Name != "operator" {
		t.Fatalf("roster = %+v, want just the operator", wel.Roster)
	}

	// The join itself is staged: absent now, present after the next
	// action phase.
	if deps.World.Player(2) != nil {
		t.Fatal("join executed during admission")
	}
	deps.World.Tick++
	deps.Disp.BeginTick()
	if err := deps.Disp.RunActionPhase(); err != nil {
		t.Fatalf("action phase: %v", err)
	}
	p := deps.World.Player(2)
	if p == nil || p.Name != "kaori" {
		t.Fatalf("player 2 after action phase = %+v", p)
	}
}

func TestHelloGrantsConfiguredAdmins(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Admins = []string{"kaori"}
	deps := newTestDeps(t, cfg)
	sess := newTestSession(t, cfg, 7)

	dispatchHello(deps, sess, hello(deps, "kaori", ""))
	wel, err := ParseJoinReply(sentFrame(t, sess))
	if err != nil {
		t.Fatalf("ParseJoinReply: %v", err)
	}
	if !wel.Admin || !sess.Admin {
		t.Fatal("configured admin not granted admin")
	}
}

func expectReject(t *testing.T, sess *gonet.Session, wantCode byte) {
	t.Helper()
	frame := sentFrame(t, sess)
	r := wire.NewReader(frame)
	if r.Opcode() != wire.S_REJECT {
		t.Fatalf("opcode = %#x, want S_REJECT", r.Opcode())
	}
	if code := r.ReadC(); code != wantCode {
		t.Fatalf("reject code = %d (%s), want %d (%s)",
			code, wire.RejectReason(code), wantCode, wire.RejectReason(wantCode))
	}
	if sess.State() != wire.StateClosing {
		t.Fatalf("session state = %s, want Closing", sess.State())
	}
}

func TestHelloRejectsBadRevision(t *testing.T) {
	cfg := config.Defaults()
	deps := newTestDeps(t, cfg)
	sess := newTestSession(t, cfg, 7)

	w := wire.NewWriterWithOpcode(wire.C_HELLO)
	w.WriteH(wire.ProtocolRevision + 1)
	hash := deps.Units.Hash()
	w.WriteBytes(hash[:])
	w.WriteS("kaori")
	w.WriteS("")

	dispatchHello(deps, sess, w.Bytes())
	expectReject(t, sess, wire.RejectBadRevision)
}

func TestHelloRejectsForeignCatalog(t *testing.T) {
	cfg := config.Defaults()
	deps := newTestDeps(t, cfg)
	sess := newTestSession(t, cfg, 7)

	var other [32]byte
	other[0] = 0xff
	dispatchHello(deps, sess, BuildHello("kaori", "", other))
	expectReject(t, sess, wire.RejectBadCatalog)
}

func TestHelloChecksPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Defaults()
	cfg.Network.PasswordHash = string(hash)
	deps := newTestDeps(t, cfg)

	wrong := newTestSession(t, cfg, 7)
	dispatchHello(deps, wrong, hello(deps, "kaori", "nope"))
	expectReject(t, wrong, wire.RejectBadPassword)

	right := newTestSession(t, cfg, 8)
	dispatchHello(deps, right, hello(deps, "kaori", "sekret"))
	if right.State() != wire.StateJoined {
		t.Fatalf("state with correct password = %s, want Joined", right.State())
	}
}

func TestHelloRejectsWhileMatchRunning(t *testing.T) {
	cfg := config.Defaults()
	deps := newTestDeps(t, cfg)
	deps.World.Substate = world.SubstateRunning
	sess := newTestSession(t, cfg, 7)

	dispatchHello(deps, sess, hello(deps, "kaori", ""))
	expectReject(t, sess, wire.RejectMatchRunning)
}

func TestHelloRejectsTakenAndPendingNames(t *testing.T) {
	cfg := config.Defaults()
	deps := newTestDeps(t, cfg)

	taken := newTestSession(t, cfg, 7)
	dispatchHello(deps, taken, hello(deps, "operator", ""))
	expectReject(t, taken, wire.RejectNameTaken)

	// Two admissions in the same pass: the second claim on a name loses
	// even though the first join has not executed yet.
	first := newTestSession(t, cfg, 8)
	dispatchHello(deps, first, hello(deps, "kaori", ""))
	if first.State() != wire.StateJoined {
		t.Fatalf("first claim state = %s, want Joined", first.State())
	}
	second := newTestSession(t, cfg, 9)
	dispatchHello(deps, second, hello(deps, "kaori", ""))
	expectReject(t, second, wire.RejectNameTaken)
}

func TestHelloRejectsWhenFull(t *testing.T) {
	cfg := config.Defaults()
	cfg.Network.MaxPlayers = 1 // the operator alone fills the server
	deps := newTestDeps(t, cfg)
	sess := newTestSession(t, cfg, 7)

	dispatchHello(deps, sess, hello(deps, "kaori", ""))
	expectReject(t, sess, wire.RejectServerFull)
}

func TestActionHandlerReportsVerdict(t *testing.T) {
	cfg := config.Defaults()
	deps := newTestDeps(t, cfg)
	sess := newTestSession(t, cfg, 7)
	sess.PlayerID = 1
	sess.SetState(wire.StateJoined)

	deps.World.Tick++
	deps.Disp.BeginTick() // open the inline window

	w := wire.NewWriterWithOpcode(wire.C_ACTION)
	w.WriteH(uint16(action.KindChat))
	(&action.Chat{Text: "gg"}).Serialise(w)
	HandleAction(sess, wire.NewReader(w.Bytes()), deps)

	r := wire.NewReader(sentFrame(t, sess))
	if r.Opcode() != wire.S_RESULT {
		t.Fatalf("opcode = %#x, want S_RESULT", r.Opcode())
	}
	if kind := action.Kind(r.ReadH()); kind != action.KindChat {
		t.Fatalf("result kind = %d, want chat", kind)
	}
	if status := action.Status(r.ReadC()); status != action.StatusOK {
		t.Fatalf("status = %s, want ok", status)
	}
	if deps.World.Chat.Len() != 1 {
		t.Fatal("chat message not applied")
	}
}

func TestActionHandlerDropsUnknownKind(t *testing.T) {
	cfg := config.Defaults()
	deps := newTestDeps(t, cfg)
	sess := newTestSession(t, cfg, 7)
	sess.PlayerID = 1
	sess.SetState(wire.StateJoined)

	w := wire.NewWriterWithOpcode(wire.C_ACTION)
	w.WriteH(4242)
	HandleAction(sess, wire.NewReader(w.Bytes()), deps)

	if !sess.IsClosed() {
		t.Fatal("session survived an unknown action kind")
	}
}

func TestPingEchoesNonce(t *testing.T) {
	cfg := config.Defaults()
	deps := newTestDeps(t, cfg)
	sess := newTestSession(t, cfg, 7)

	w := wire.NewWriterWithOpcode(wire.C_PING)
	w.WriteQ(0xdeadbeef)
	HandlePing(sess, wire.NewReader(w.Bytes()), deps)

	r := wire.NewReader(sentFrame(t, sess))
	if r.Opcode() != wire.S_PONG {
		t.Fatalf("opcode = %#x, want S_PONG", r.Opcode())
	}
	if nonce := r.ReadQ(); nonce != 0xdeadbeef {
		t.Fatalf("nonce = %#x, want 0xdeadbeef", nonce)
	}
}

// ── Client-side handlers ───────────────────────────────────────────

func newClientEnv(t *testing.T) (*game.Context, *ClientDeps) {
	t.Helper()
	st := world.NewState(world.Params{
		Seed:        5,
		Substate:    world.SubstateLobby,
		GridW:       32,
		GridH:       32,
		MaxUnits:    16,
		TicksPerDay: 100,
	})
	actions := action.NewRegistry()
	action.RegisterCore(actions)
	disp := dispatch.New(dispatch.ModeClient, st, actions, noopCaps{}, nil, zap.NewNop())
	ctx := game.NewContext(config.Defaults(), dispatch.ModeClient, st, disp, coresys.NewRunner(), zap.NewNop())
	return ctx, &ClientDeps{Log: zap.NewNop(), Game: ctx, Disp: disp, Actions: actions}
}

type noopCaps struct{}

func (noopCaps) Broadcast(tick uint64, origin world.PlayerID, a action.Action) {}
func (noopCaps) SubmitToHost(origin world.PlayerID, a action.Action)           {}

func TestHostActionBuffersForItsTick(t *testing.T) {
	ctx, deps := newClientEnv(t)

	w := wire.NewWriterWithOpcode(wire.S_ACTION)
	w.WriteQ(3)
	w.WriteH(0)
	w.WriteH(uint16(action.KindPlayerJoin))
	(&action.PlayerJoin{ID: 2, Name: "kaori"}).Serialise(w)
	HandleHostAction(ctx, wire.NewReader(w.Bytes()), deps)

	if err := ctx.Failure(); err != nil {
		t.Fatalf("buffering failed the context: %v", err)
	}
	if got := deps.Disp.PendingRemote(); got != 1 {
		t.Fatalf("pending remote = %d, want 1", got)
	}
}

func TestHostActionStaleTickIsFatal(t *testing.T) {
	ctx, deps := newClientEnv(t)
	ctx.World().Tick = 5

	w := wire.NewWriterWithOpcode(wire.S_ACTION)
	w.WriteQ(5) // not in the future: this peer already ran tick 5
	w.WriteH(0)
	w.WriteH(uint16(action.KindPauseToggle))
	(&action.PauseToggle{}).Serialise(w)
	HandleHostAction(ctx, wire.NewReader(w.Bytes()), deps)

	if ctx.Failure() == nil {
		t.Fatal("stale replicated action did not fail the context")
	}
}

func TestHostTickAndChecksumHandlers(t *testing.T) {
	ctx, deps := newClientEnv(t)

	w := wire.NewWriterWithOpcode(wire.S_TICK)
	w.WriteQ(9)
	HandleHostTick(ctx, wire.NewReader(w.Bytes()), deps)
	if ctx.RemoteTick() != 9 {
		t.Fatalf("remote tick = %d, want 9", ctx.RemoteTick())
	}

	sum := make([]byte, 32)
	sum[0] = 0xab
	w = wire.NewWriterWithOpcode(wire.S_CHECKSUM)
	w.WriteQ(9)
	w.WriteBytes(sum)
	HandleHostChecksum(ctx, wire.NewReader(w.Bytes()), deps)
	got, ok := ctx.TakeRemoteChecksum(9)
	if !ok || got[0] != 0xab {
		t.Fatalf("stored checksum = %x ok=%v", got, ok)
	}
}

func TestParseJoinReplyReject(t *testing.T) {
	w := wire.NewWriterWithOpcode(wire.S_REJECT)
	w.WriteC(wire.RejectServerFull)
	w.WriteS("server holds 8 players")

	if _, err := ParseJoinReply(w.Bytes()); err == nil {
		t.Fatal("reject parsed as success")
	}
}
