package action

import (
	"fmt"

	"github.com/gridsim/server/internal/net/wire"
)

// Registry maps kinds to constructors and display names. Peers must
// register the same set; an unknown kind on the wire is a protocol error.
type Registry struct {
	ctors map[Kind]func() Action
	names map[Kind]string
}

func NewRegistry() *Registry {
	return &Registry{
		ctors: make(map[Kind]func() Action),
		names: make(map[Kind]string),
	}
}

func (reg *Registry) Register(kind Kind, name string, ctor func() Action) {
	reg.ctors[kind] = ctor
	reg.names[kind] = name
}

// New returns a zero-value action of the given kind, or nil if unknown.
func (reg *Registry) New(kind Kind) Action {
	if ctor, ok := reg.ctors[kind]; ok {
		return ctor()
	}
	return nil
}

// Name returns the display name for a kind.
func (reg *Registry) Name(kind Kind) string {
	if n, ok := reg.names[kind]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint16(kind))
}

// DecodePayload rebuilds an action from a kind and its bare payload bytes,
// as stored in the journal.
func (reg *Registry) DecodePayload(kind Kind, payload []byte) (Action, error) {
	a := reg.New(kind)
	if a == nil {
		return nil, fmt.Errorf("unknown action kind %d", kind)
	}
	if err := a.Deserialise(wire.NewRawReader(payload)); err != nil {
		return nil, fmt.Errorf("decode %s: %w", reg.Name(kind), err)
	}
	return a, nil
}

// EncodePayload serialises an action's bare payload bytes (no kind prefix).
func EncodePayload(a Action) []byte {
	w := wire.NewWriter()
	a.Serialise(w)
	return w.Bytes()
}

// RegisterCore registers every built-in action kind.
func RegisterCore(reg *Registry) {
	reg.Register(KindPlayerJoin, "player_join", func() Action { return &PlayerJoin{} })
	reg.Register(KindPlayerLeave, "player_leave", func() Action { return &PlayerLeave{} })
	reg.Register(KindMatchStart, "match_start", func() Action { return &MatchStart{} })
	reg.Register(KindPauseToggle, "pause_toggle", func() Action { return &PauseToggle{} })
	reg.Register(KindUnitSpawn, "unit_spawn", func() Action { return &UnitSpawn{} })
	reg.Register(KindUnitOrders, "unit_orders", func() Action { return &UnitOrders{} })
	reg.Register(KindUnitMove, "unit_move", func() Action { return &UnitMove{} })
	reg.Register(KindChat, "chat", func() Action { return &Chat{} })
	reg.Register(KindCheat, "cheat", func() Action { return &Cheat{} })
}
