/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// SessionContext is the local player's membership in one game session.
type SessionContext struct {
	SessionID string
	PlayerID  string
	Creator   bool
	Category  string

	// last phase confirmed by a successful fetch
	phase Phase
}

// sessionHolder tracks the active SessionContext, if any. Each begin bumps
// the generation so responses belonging to an earlier session can be told
// apart from current ones.
type sessionHolder struct {
	current    *SessionContext
	generation uint64
}

func (h *sessionHolder) begin(sessionID, playerID string, creator bool) *SessionContext {
	h.generation++
	h.current = &SessionContext{
		SessionID: sessionID,
		PlayerID:  playerID,
		Creator:   creator,
		phase:     PhaseWaiting,
	}

	return h.current
}

func (h *sessionHolder) end() {
	if h.current == nil {
		return
	}

	h.generation++
	h.current = nil
}

func (h *sessionHolder) active() bool {
	return h.current != nil
}
