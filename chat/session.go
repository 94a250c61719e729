package chat

import (
	"sync"
	"time"

	"storechat/model"
)

// Session owns one conversation: its bounded history, the optional order
// flow, and the optional pending terms interrupt. A session is exclusively
// owned by its key; the mutex serializes turns so two turns never interleave
// against the same history.
type Session struct {
	mu sync.Mutex

	ID               string
	History          []model.Message
	OrderFlow        *OrderFlowState
	PendingInterrupt *PendingInterrupt
	LastActivity     time.Time
}

// PendingInterrupt is the terms-acceptance gate raised by a failed
// order-placement tool call. While WaitingForAcceptance is set, the next
// user turn is consumed as a yes/no answer instead of a normal utterance.
type PendingInterrupt struct {
	OriginalToolCall     model.ToolCall
	WaitingForAcceptance bool
	TermsMessage         string
}

// appendMessage adds a message to history and truncates to cap. Truncation
// keeps every system message (prepended, in order) and the most recent
// non-system messages that fit, so the grounding system prompt is never
// silently dropped.
func (s *Session) appendMessage(msg model.Message, cap int) {
	s.History = append(s.History, msg)
	s.LastActivity = time.Now()

	if cap <= 0 || len(s.History) <= cap {
		return
	}

	var systems []model.Message
	var rest []model.Message
	for _, m := range s.History {
		if m.Role == model.RoleSystem {
			systems = append(systems, m)
		} else {
			rest = append(rest, m)
		}
	}

	keep := cap - len(systems)
	if keep < 0 {
		keep = 0
	}
	if len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}

	s.History = append(systems, rest...)
}

// hasSystemPrompt reports whether the history carries a system message.
func (s *Session) hasSystemPrompt() bool {
	for _, m := range s.History {
		if m.Role == model.RoleSystem {
			return true
		}
	}
	return false
}
