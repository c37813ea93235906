package rag

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultHistoryTurns is how many past exchanges are included in the
// conversational prompt.
const DefaultHistoryTurns = 5

// Turn is one question and answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// History keeps bounded per-session conversation transcripts. Safe for
// concurrent use.
type History struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string][]Turn
}

// NewHistory creates a history store keeping up to maxTurns exchanges
// per session. maxTurns of 0 uses DefaultHistoryTurns.
func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryTurns
	}
	return &History{
		maxTurns: maxTurns,
		sessions: make(map[string][]Turn),
	}
}

// Append records an exchange, evicting the oldest when the session is
// at capacity.
func (h *History) Append(sessionID string, turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := append(h.sessions[sessionID], turn)
	if len(turns) > h.maxTurns {
		turns = turns[len(turns)-h.maxTurns:]
	}
	h.sessions[sessionID] = turns
}

// Turns returns a copy of the session's recorded exchanges, oldest
// first.
func (h *History) Turns(sessionID string) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.sessions[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Transcript renders the session history as "Q: ...\nA: ..." lines for
// prompt inclusion. Empty history renders a placeholder line.
func (h *History) Transcript(sessionID string) string {
	turns := h.Turns(sessionID)
	if len(turns) == 0 {
		return "No previous conversation."
	}
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = fmt.Sprintf("Q: %s\nA: %s", t.Question, t.Answer)
	}
	return strings.Join(parts, "\n")
}

// Clear removes a session's history.
func (h *History) Clear(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}
