package domain

import "time"

// Session ties a live transport connection to a user identity. Sessions are
// ephemeral: they are reconstructed from connection attachments after a
// restart, never loaded verbatim from storage.
type Session struct {
	ConnID      string    `json:"connId"`
	UserID      string    `json:"userId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// ActorState is the durable per-actor blob. It is loaded once at activation,
// written after every mutating event, and must always be reconstructible
// from the conversation log.
type ActorState struct {
	UserID       string    `json:"userId"`
	History      []Message `json:"history,omitempty"`
	Connections  int       `json:"connections"`
	LastActivity time.Time `json:"lastActivity"`
}

// HistoryWindow is the number of recent messages the actor keeps in its
// cached working set. The full log lives in the messages table.
const HistoryWindow = 100

// Remember appends a message to the cached history, trimming the working
// set to HistoryWindow entries.
func (s *ActorState) Remember(msg Message) {
	s.History = append(s.History, msg)
	if len(s.History) > HistoryWindow {
		s.History = s.History[len(s.History)-HistoryWindow:]
	}
}
