package world

// defaultChatKeep bounds the chat ring when no explicit capacity is set.
const defaultChatKeep = 64

// ChatMessage is one line in the chat ring.
type ChatMessage struct {
	Tick   uint64
	Player PlayerID
	Name   string
	Text   string
}

// ChatLog is the bounded, display-only message ring. It is deliberately
// outside the checksummed state: chat never influences the simulation, and
// peers may trim it on their own schedules.
type ChatLog struct {
	msgs []ChatMessage
	keep int
}

func NewChatLog(keep int) *ChatLog {
	if keep <= 0 {
		keep = defaultChatKeep
	}
	return &ChatLog{keep: keep}
}

// SetKeep adjusts the ring capacity, trimming oldest messages if needed.
func (c *ChatLog) SetKeep(keep int) {
	if keep <= 0 {
		return
	}
	c.keep = keep
	c.trim()
}

// Add appends a message, dropping the oldest once the ring is full.
func (c *ChatLog) Add(msg ChatMessage) {
	c.msgs = append(c.msgs, msg)
	c.trim()
}

// Expire drops messages older than ttl ticks and returns how many went.
func (c *ChatLog) Expire(now uint64, ttl uint64) int {
	if ttl == 0 || len(c.msgs) == 0 {
		return 0
	}
	cut := 0
	for cut < len(c.msgs) && c.msgs[cut].Tick+ttl < now {
		cut++
	}
	if cut == 0 {
		return 0
	}
	c.msgs = append(c.msgs[:0], c.msgs[cut:]...)
	return cut
}

// Messages returns the retained messages, oldest first.
func (c *ChatLog) Messages() []ChatMessage {
	out := make([]ChatMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *ChatLog) Len() int {
	return len(c.msgs)
}

func (c *ChatLog) trim() {
	if len(c.msgs) > c.keep {
		c.msgs = append(c.msgs[:0], c.msgs[len(c.msgs)-c.keep:]...)
	}
}
