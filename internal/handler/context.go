// Package handler decodes inbound payloads and feeds them into the
// simulation. Host-side handlers run inside tick phases on the game loop
// goroutine; client-side handlers run when the game context drains the host
// link. Neither side mutates world state directly: everything goes through
// the dispatcher.
package handler

import (
	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/config"
	"github.com/gridsim/server/internal/data"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/game"
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// Deps holds shared dependencies injected into all host-side handlers.
type Deps struct {
	Config  *config.Config
	Log     *zap.Logger
	World   *world.State
	Game    *game.Context
	Disp    *dispatch.Dispatcher
	Actions *action.Registry
	Store   *net.SessionStore
	Units   *data.UnitTable

	// Player id allocation state. Game loop goroutine only. Ids are
	// never reused within a run; pendingNames guards against two peers
	// grabbing the same name in one admission pass, before the staged
	// join has executed.
	nextPlayer   world.PlayerID
	pendingTick  uint64
	pendingNames map[string]bool
	pendingJoins int
}

func NewDeps(cfg *config.Config, log *zap.Logger, g *game.Context, disp *dispatch.Dispatcher, actions *action.Registry, store *net.SessionStore, units *data.UnitTable) *Deps {
	return &Deps{
		Config:       cfg,
		Log:          log,
		World:        g.World(),
		Game:         g,
		Disp:         disp,
		Actions:      actions,
		Store:        store,
		Units:        units,
		nextPlayer:   2, // 1 is the hosting operator
		pendingNames: make(map[string]bool),
	}
}

// RegisterAll registers every host-side handler into the registry.
func RegisterAll(reg *wire.Registry, deps *Deps) {
	reg.Register(wire.C_HELLO,
		[]wire.SessionState{wire.StateHello},
		func(sess any, r *wire.Reader) {
			HandleHello(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(wire.C_ACTION,
		[]wire.SessionState{wire.StateJoined},
		func(sess any, r *wire.Reader) {
			HandleAction(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(wire.C_CONSOLE,
		[]wire.SessionState{wire.StateJoined},
		func(sess any, r *wire.Reader) {
			HandleConsole(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(wire.C_PING,
		[]wire.SessionState{wire.StateHello, wire.StateJoined},
		func(sess any, r *wire.Reader) {
			HandlePing(sess.(*net.Session), r, deps)
		},
	)
}
