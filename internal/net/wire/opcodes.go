package wire

// ProtocolRevision is bumped whenever a payload layout changes. Peers with a
// different revision cannot stay in lockstep and are rejected at handshake.
const ProtocolRevision uint16 = 1

// Client → host opcodes.
const (
	C_HELLO   byte = 0x01 // join request: revision, catalog hash, name, password
	C_ACTION  byte = 0x02 // action submission: kind + payload
	C_CONSOLE byte = 0x03 // remote console line (admin only)
	C_PING    byte = 0x04 // liveness probe: nonce
)

// Host → client opcodes.
const (
	S_WELCOME  byte = 0x10 // join accepted: player id, world parameters, roster
	S_REJECT   byte = 0x11 // join refused: reason code + detail
	S_ACTION   byte = 0x12 // replicated action: tick, origin, kind + payload
	S_TICK     byte = 0x13 // tick beacon: the host finished this tick
	S_CHECKSUM byte = 0x14 // state digest for a given tick
	S_PONG     byte = 0x15 // ping echo: nonce
	S_RESULT   byte = 0x16 // outcome of an action this peer submitted
	S_CONSOLE  byte = 0x17 // remote console output line
)

// S_REJECT reason codes.
const (
	RejectBadRevision  byte = 1
	RejectBadCatalog   byte = 2
	RejectBadPassword  byte = 3
	RejectNameTaken    byte = 4
	RejectServerFull   byte = 5
	RejectMatchRunning byte = 6
)

// RejectReason returns a human-readable name for an S_REJECT reason code.
func RejectReason(code byte) string {
	switch code {
	case RejectBadRevision:
		return "protocol revision mismatch"
	case RejectBadCatalog:
		return "unit catalog mismatch"
	case RejectBadPassword:
		return "bad password"
	case RejectNameTaken:
		return "name already taken"
	case RejectServerFull:
		return "server full"
	case RejectMatchRunning:
		return "match already started"
	default:
		return "unknown"
	}
}
