package handler

import (
	"bytes"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// HandleHello processes C_HELLO (opcode 0x01).
// Format: [opcode][revision H][catalog hash 32B][name S][password S]
//
// Runs at the admission pass after the action phase, so the welcome
// snapshot already contains everything broadcast this tick. The join
// itself stages through the dispatcher and executes next tick, which is
// the first tick the new follower actually runs.
func HandleHello(sess *net.Session, r *wire.Reader, deps *Deps) {
	rev := r.ReadH()
	catalog := r.ReadBytes(32)
	name := strings.TrimSpace(r.ReadS())
	password := r.ReadS()
	if r.Err() != nil {
		deps.Log.Debug("加入請求格式錯誤", zap.Uint64("session", sess.ID))
		sess.Close()
		return
	}

	deps.beginAdmission()

	if rev != wire.ProtocolRevision {
		sendReject(sess, deps, wire.RejectBadRevision,
			fmt.Sprintf("server runs protocol revision %d", wire.ProtocolRevision))
		return
	}
	hash := deps.Units.Hash()
	if !bytes.Equal(catalog, hash[:]) {
		sendReject(sess, deps, wire.RejectBadCatalog, "unit catalog differs from the host's")
		return
	}
	if deps.Config.Network.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(deps.Config.Network.PasswordHash), []byte(password)); err != nil {
			sendReject(sess, deps, wire.RejectBadPassword, "wrong password")
			return
		}
	}
	if deps.World.Substate != world.SubstateLobby {
		sendReject(sess, deps, wire.RejectMatchRunning, "the match has already started")
		return
	}
	if deps.World.PlayerCount()+deps.pendingJoins >= deps.Config.Network.MaxPlayers {
		sendReject(sess, deps, wire.RejectServerFull,
			fmt.Sprintf("server holds %d players", deps.Config.Network.MaxPlayers))
		return
	}
	if deps.World.PlayerByName(name) != nil || deps.pendingNames[name] {
		sendReject(sess, deps, wire.RejectNameTaken, fmt.Sprintf("name %q is taken", name))
		return
	}

	id := deps.allocPlayerID()
	admin := deps.isAdmin(name)

	join := &action.PlayerJoin{ID: id, Name: name, Admin: admin}
	// Query now so a bad name refuses the handshake, not the staged join.
	if res := join.Query(deps.World, world.SystemOrigin); res.Failed() {
		sendReject(sess, deps, rejectCode(res), res.Detail)
		return
	}
	if res := deps.Disp.Enqueue(join, world.SystemOrigin); res.Failed() {
		sendReject(sess, deps, rejectCode(res), res.Detail)
		return
	}
	deps.pendingNames[name] = true
	deps.pendingJoins++

	sess.PlayerID = uint16(id)
	sess.PlayerName = name
	sess.Admin = admin
	sess.Send(BuildWelcome(deps, id, admin))
	sess.SetState(wire.StateJoined)

	deps.Log.Info("玩家已加入",
		zap.Uint64("session", sess.ID),
		zap.Uint16("player", uint16(id)),
		zap.String("name", name),
		zap.Bool("admin", admin),
	)
}

// beginAdmission resets the per-pass reservation state on the first hello
// of a tick. Reservations only need to live until the staged joins execute,
// which happens before the next admission pass.
func (deps *Deps) beginAdmission() {
	if deps.pendingTick != deps.World.Tick {
		deps.pendingTick = deps.World.Tick
		clear(deps.pendingNames)
		deps.pendingJoins = 0
	}
}

// allocPlayerID hands out the next unused player id. Ids are monotonic
// within a run and never recycled, so a rejoining player gets a fresh one.
func (deps *Deps) allocPlayerID() world.PlayerID {
	for deps.World.Player(deps.nextPlayer) != nil {
		deps.nextPlayer++
	}
	id := deps.nextPlayer
	deps.nextPlayer++
	return id
}

func (deps *Deps) isAdmin(name string) bool {
	for _, a := range deps.Config.Server.Admins {
		if a == name {
			return true
		}
	}
	return false
}

// rejectCode maps an action verdict onto an S_REJECT reason.
func rejectCode(res action.Result) byte {
	switch res.Class {
	case action.ErrWrongPhase:
		return wire.RejectMatchRunning
	case action.ErrCapacity:
		return wire.RejectServerFull
	default:
		return wire.RejectNameTaken
	}
}

func sendReject(sess *net.Session, deps *Deps, code byte, detail string) {
	deps.Log.Warn("拒絕加入請求",
		zap.Uint64("session", sess.ID),
		zap.String("reason", wire.RejectReason(code)),
		zap.String("detail", detail),
	)
	w := wire.NewWriterWithOpcode(wire.S_REJECT)
	w.WriteC(code)
	w.WriteS(detail)
	sess.Send(w.Bytes())
	sess.CloseAfterFlush()
}

// BuildHello builds the C_HELLO frame a joining peer opens with.
func BuildHello(name, password string, catalogHash [32]byte) []byte {
	w := wire.NewWriterWithOpcode(wire.C_HELLO)
	w.WriteH(wire.ProtocolRevision)
	w.WriteBytes(catalogHash[:])
	w.WriteS(name)
	w.WriteS(password)
	return w.Bytes()
}

// BuildWelcome builds the S_WELCOME frame: assigned id, greeting, the world
// parameter snapshot and the current roster. The joining player is absent
// from both the snapshot and the roster; their own join arrives replicated
// on the following tick like everyone else's.
func BuildWelcome(deps *Deps, id world.PlayerID, admin bool) []byte {
	w := wire.NewWriterWithOpcode(wire.S_WELCOME)
	w.WriteH(uint16(id))
	if admin {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	w.WriteS(deps.Config.Server.Greeting)
	deps.World.Snapshot().Encode(w)
	roster := deps.World.PlayersOrdered()
	w.WriteH(uint16(len(roster)))
	for _, p := range roster {
		w.WriteH(uint16(p.ID))
		w.WriteS(p.Name)
		if p.Admin {
			w.WriteC(1)
		} else {
			w.WriteC(0)
		}
	}
	return w.Bytes()
}

// RosterEntry is one already-joined player listed in a welcome.
type RosterEntry struct {
	ID    world.PlayerID
	Name  string
	Admin bool
}

// Welcome is the parsed S_WELCOME payload.
type Welcome struct {
	PlayerID world.PlayerID
	Admin    bool
	Greeting string
	Params   world.Params
	Roster   []RosterEntry
}

// ParseJoinReply decodes the single frame a host answers a hello with:
// either a welcome or a reject, which becomes an error.
func ParseJoinReply(frame []byte) (*Welcome, error) {
	r := wire.NewReader(frame)
	switch r.Opcode() {
	case wire.S_REJECT:
		code := r.ReadC()
		detail := r.ReadS()
		if detail != "" {
			return nil, fmt.Errorf("join refused: %s: %s", wire.RejectReason(code), detail)
		}
		return nil, fmt.Errorf("join refused: %s", wire.RejectReason(code))
	case wire.S_WELCOME:
	default:
		return nil, fmt.Errorf("unexpected opcode %#x in join reply", r.Opcode())
	}

	wel := &Welcome{
		PlayerID: world.PlayerID(r.ReadH()),
	}
	wel.Admin = r.ReadC() == 1
	wel.Greeting = r.ReadS()
	params, err := world.DecodeParams(r)
	if err != nil {
		return nil, fmt.Errorf("welcome parameters: %w", err)
	}
	wel.Params = params
	count := int(r.ReadH())
	for i := 0; i < count; i++ {
		e := RosterEntry{
			ID:   world.PlayerID(r.ReadH()),
			Name: r.ReadS(),
		}
		e.Admin = r.ReadC() == 1
		wel.Roster = append(wel.Roster, e)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("welcome roster: %w", err)
	}
	return wel, nil
}
