package net

import "sort"

// SessionStore tracks live sessions. Game loop goroutine only; the store
// needs no lock because admission, dispatch and removal all happen inside
// tick phases.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (st *SessionStore) Add(s *Session) {
	st.sessions[s.ID] = s
}

func (st *SessionStore) Remove(id uint64) {
	delete(st.sessions, id)
}

func (st *SessionStore) Get(id uint64) *Session {
	return st.sessions[id]
}

// ByPlayer finds the session bound to a player id. Zero matches nothing.
func (st *SessionStore) ByPlayer(playerID uint16) *Session {
	if playerID == 0 {
		return nil
	}
	for _, s := range st.sessions {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

func (st *SessionStore) Len() int {
	return len(st.sessions)
}

// Raw exposes the underlying map for range loops that also mutate the
// store (removal during iteration is safe on Go maps).
func (st *SessionStore) Raw() map[uint64]*Session {
	return st.sessions
}

// Ordered returns sessions sorted by id. Broadcasts iterate this way so
// every peer observes the same frame order.
func (st *SessionStore) Ordered() []*Session {
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForEach visits every session.
func (st *SessionStore) ForEach(fn func(*Session)) {
	for _, s := range st.sessions {
		fn(s)
	}
}
