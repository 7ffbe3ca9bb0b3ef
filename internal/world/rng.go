package world

// RNG is the simulation's deterministic random source (splitmix64). Its
// state is part of the checksummed world, so every consumer must draw in
// tick order; drawing from outside the game loop is a desync.
type RNG struct {
	state uint64
}

func NewRNG(seed uint64) RNG {
	return RNG{state: seed}
}

// Next returns the next 64-bit value and advances the state.
func (r *RNG) Next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// IntN returns a value in [0, n). n must be positive.
func (r *RNG) IntN(n int) int {
	return int(r.Next() % uint64(n))
}

// State exposes the raw generator state for checksums and handshakes.
func (r *RNG) State() uint64 {
	return r.state
}
