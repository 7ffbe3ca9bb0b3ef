package system

import (
	"time"

	"github.com/gridsim/server/internal/core/event"
	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/scripting"
	"github.com/gridsim/server/internal/world"
)

// ScriptSystem delivers the tick's simulation events and drives the Lua
// observer hooks. Phase 3 (PostUpdate): it rotates the event bus buffers,
// so everything emitted up to and including the action phase reaches
// subscribers within the same tick. Scripts observe; they cannot mutate,
// so a hook error never desyncs peers.
type ScriptSystem struct {
	st  *world.State
	eng *scripting.Engine
}

func NewScriptSystem(st *world.State, eng *scripting.Engine) *ScriptSystem {
	s := &ScriptSystem{st: st, eng: eng}
	s.subscribe()
	return s
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *ScriptSystem) Update(_ time.Duration) {
	s.st.Events.SwapBuffers()
	s.st.Events.DispatchAll()
	s.eng.OnTick(s.st.Tick)
}

// subscribe forwards every simulation event to the Lua on_event hook as a
// name plus a flat field table.
func (s *ScriptSystem) subscribe() {
	event.Subscribe(s.st.Events, func(e event.PlayerJoined) {
		s.eng.OnEvent("player_joined", map[string]any{
			"player": e.PlayerID, "name": e.Name,
		})
	})
	event.Subscribe(s.st.Events, func(e event.PlayerLeft) {
		s.eng.OnEvent("player_left", map[string]any{
			"player": e.PlayerID, "name": e.Name,
		})
	})
	event.Subscribe(s.st.Events, func(e event.MatchStarted) {
		s.eng.OnEvent("match_started", map[string]any{
			"tick": e.Tick,
		})
	})
	event.Subscribe(s.st.Events, func(e event.PauseChanged) {
		s.eng.OnEvent("pause_changed", map[string]any{
			"paused": e.Paused,
		})
	})
	event.Subscribe(s.st.Events, func(e event.UnitSpawned) {
		s.eng.OnEvent("unit_spawned", map[string]any{
			"unit": e.UnitID, "kind": e.Kind, "owner": e.Owner,
			"x": e.X, "y": e.Y,
		})
	})
	event.Subscribe(s.st.Events, func(e event.UnitRemoved) {
		s.eng.OnEvent("unit_removed", map[string]any{
			"unit": e.UnitID, "owner": e.Owner,
		})
	})
	event.Subscribe(s.st.Events, func(e event.UnitOrdersChanged) {
		s.eng.OnEvent("unit_orders", map[string]any{
			"unit": e.UnitID, "orders": e.Orders,
		})
	})
	event.Subscribe(s.st.Events, func(e event.ChatPosted) {
		s.eng.OnEvent("chat", map[string]any{
			"player": e.PlayerID, "text": e.Text,
		})
	})
	event.Subscribe(s.st.Events, func(e event.CheatApplied) {
		s.eng.OnEvent("cheat", map[string]any{
			"player": e.PlayerID, "cheat": e.Cheat, "value": e.Value,
		})
	})
}
