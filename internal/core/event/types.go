package event

// Simulation events. Fields are primitives rather than world types so the
// bus stays importable from every layer.

type PlayerJoined struct {
	PlayerID uint16
	Name     string
}

type PlayerLeft struct {
	PlayerID uint16
	Name     string
}

type MatchStarted struct {
	Tick uint64
}

type PauseChanged struct {
	Paused bool
}

type UnitSpawned struct {
	UnitID uint32
	Kind   uint16
	Owner  uint16
	X, Y   int32
}

type UnitRemoved struct {
	UnitID uint32
	Owner  uint16
}

type UnitOrdersChanged struct {
	UnitID uint32
	Orders uint8
}

type ChatPosted struct {
	PlayerID uint16
	Text     string
}

type CheatApplied struct {
	PlayerID uint16
	Cheat    uint8
	Value    int64
}
