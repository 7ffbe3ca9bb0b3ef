package handler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/game"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// ClientDeps holds the dependencies of the client-side handlers, which
// decode host frames on a joined follower.
type ClientDeps struct {
	Log     *zap.Logger
	Game    *game.Context
	Disp    *dispatch.Dispatcher
	Actions *action.Registry
}

// RegisterClient registers every client-side handler. The peer passed
// through the registry is the game context: client frames are drained by
// the context itself, not by a session.
func RegisterClient(reg *wire.Registry, deps *ClientDeps) {
	joined := []wire.SessionState{wire.StateJoined}

	reg.Register(wire.S_ACTION, joined,
		func(peer any, r *wire.Reader) {
			HandleHostAction(peer.(*game.Context), r, deps)
		},
	)
	reg.Register(wire.S_TICK, joined,
		func(peer any, r *wire.Reader) {
			HandleHostTick(peer.(*game.Context), r, deps)
		},
	)
	reg.Register(wire.S_CHECKSUM, joined,
		func(peer any, r *wire.Reader) {
			HandleHostChecksum(peer.(*game.Context), r, deps)
		},
	)
	reg.Register(wire.S_PONG, joined,
		func(peer any, r *wire.Reader) {
			HandleHostPong(peer.(*game.Context), r, deps)
		},
	)
	reg.Register(wire.S_RESULT, joined,
		func(peer any, r *wire.Reader) {
			HandleHostResult(peer.(*game.Context), r, deps)
		},
	)
	reg.Register(wire.S_CONSOLE, joined,
		func(peer any, r *wire.Reader) {
			HandleHostConsole(peer.(*game.Context), r, deps)
		},
	)
}

// HandleHostAction processes S_ACTION: a replicated action tagged with its
// execution tick. Anything malformed here is fatal; a follower that cannot
// apply the host's stream exactly cannot stay in the match.
func HandleHostAction(ctx *game.Context, r *wire.Reader, deps *ClientDeps) {
	tick := r.ReadQ()
	origin := world.PlayerID(r.ReadH())
	kind := action.Kind(r.ReadH())

	a := deps.Actions.New(kind)
	if a == nil {
		ctx.Fail(fmt.Errorf("host replicated unknown action kind %d", uint16(kind)))
		return
	}
	if err := a.Deserialise(r); err != nil {
		ctx.Fail(fmt.Errorf("host replicated %s: %w", deps.Actions.Name(kind), err))
		return
	}
	if err := deps.Disp.EnqueueRemote(tick, origin, a); err != nil {
		ctx.Fail(err)
	}
}

// HandleHostTick processes S_TICK, the beacon the lockstep gate waits on.
func HandleHostTick(ctx *game.Context, r *wire.Reader, deps *ClientDeps) {
	ctx.SetRemoteTick(r.ReadQ())
}

// HandleHostChecksum processes S_CHECKSUM. The digest is held until this
// peer's own tick reaches it; the checksum system does the comparison.
func HandleHostChecksum(ctx *game.Context, r *wire.Reader, deps *ClientDeps) {
	tick := r.ReadQ()
	sum := r.ReadBytes(32)
	if r.Err() != nil {
		ctx.Fail(fmt.Errorf("truncated checksum frame for tick %d", tick))
		return
	}
	ctx.StoreRemoteChecksum(tick, sum)
}

func HandleHostPong(ctx *game.Context, r *wire.Reader, deps *ClientDeps) {
	deps.Log.Debug("收到主機回應", zap.Uint64("nonce", r.ReadQ()))
}

// HandleHostResult processes S_RESULT, the host's verdict on an action this
// peer submitted. Refusals are surfaced to the operator; accepted actions
// need no note, their effect arrives through the broadcast.
func HandleHostResult(ctx *game.Context, r *wire.Reader, deps *ClientDeps) {
	kind := action.Kind(r.ReadH())
	status := action.Status(r.ReadC())
	class := action.Class(r.ReadC())
	detail := r.ReadS()

	if status != action.StatusErr {
		return
	}
	deps.Log.Warn("動作被主機拒絕",
		zap.String("action", deps.Actions.Name(kind)),
		zap.String("class", class.String()),
		zap.String("detail", detail),
	)
}

// HandleHostConsole prints a remote console output line for the operator.
func HandleHostConsole(ctx *game.Context, r *wire.Reader, deps *ClientDeps) {
	fmt.Printf("[主機] %s\n", r.ReadS())
}
