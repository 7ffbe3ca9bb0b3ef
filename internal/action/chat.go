package action

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/gridsim/server/internal/core/event"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// Chat posts a message to the display-only chat ring. It rides the action
// pipeline for ordering and replication but carries NoJournal: replaying a
// run does not need to replay its conversation.
type Chat struct {
	Text string
}

func (a *Chat) Kind() Kind   { return KindChat }
func (a *Chat) Flags() Flags { return AllowWhilePaused | NoJournal }

func (a *Chat) Query(st *world.State, origin world.PlayerID) Result {
	if st.Player(origin) == nil {
		return Fail(ErrPermission, "unknown origin")
	}
	text := normaliseChat(a.Text)
	if text == "" {
		return Fail(ErrInvalidArgument, "empty message")
	}
	if len(text) > world.ChatMaxLen {
		return Fail(ErrInvalidArgument, "message too long")
	}
	return OK()
}

func (a *Chat) Execute(st *world.State, origin world.PlayerID) Result {
	p := st.Player(origin)
	st.Chat.Add(world.ChatMessage{
		Tick:   st.Tick,
		Player: origin,
		Name:   p.Name,
		Text:   normaliseChat(a.Text),
	})
	event.Emit(st.Events, event.ChatPosted{PlayerID: uint16(origin), Text: normaliseChat(a.Text)})
	return OK()
}

func (a *Chat) Serialise(w *wire.Writer) {
	w.WriteS(a.Text)
}

func (a *Chat) Deserialise(r *wire.Reader) error {
	a.Text = r.ReadS()
	return r.Err()
}

// normaliseChat applies NFC so visually identical messages compare equal on
// every peer regardless of how the sender's input method composed them.
func normaliseChat(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
