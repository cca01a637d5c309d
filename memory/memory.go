// Package memory keeps the ordered question/answer log for one
// conversation session.
package memory

import "strings"

// NoHistory is what Render returns for a session without exchanges, so
// prompt templates can carry a stable placeholder instead of an empty slot.
const NoHistory = "No previous conversation."

// Exchange is one completed question/answer pair.
type Exchange struct {
	Question string
	Answer   string
}

// Memory retains exchanges in strict append order. A positive limit keeps
// only the most recent exchanges, evicting the oldest first. Memory is not
// internally synchronized: one session processes one ask at a time, and
// distinct sessions own distinct Memory values.
type Memory struct {
	limit     int
	exchanges []Exchange
}

// New returns an empty Memory. limit <= 0 means unbounded.
func New(limit int) *Memory {
	if limit < 0 {
		limit = 0
	}
	return &Memory{limit: limit}
}

// Append adds one exchange at the end, evicting the oldest when the bound
// is exceeded.
func (m *Memory) Append(question, answer string) {
	m.exchanges = append(m.exchanges, Exchange{Question: question, Answer: answer})
	if m.limit > 0 && len(m.exchanges) > m.limit {
		m.exchanges = m.exchanges[len(m.exchanges)-m.limit:]
	}
}

// Render formats the retained exchanges as a transcript for prompt
// inclusion, oldest first.
func (m *Memory) Render() string {
	if len(m.exchanges) == 0 {
		return NoHistory
	}
	parts := make([]string, len(m.exchanges))
	for i, ex := range m.exchanges {
		parts[i] = "Q: " + ex.Question + "\nA: " + ex.Answer
	}
	return strings.Join(parts, "\n\n")
}

// Clear discards all exchanges, returning the session to its initial state.
func (m *Memory) Clear() {
	m.exchanges = nil
}

// Len reports the number of retained exchanges.
func (m *Memory) Len() int {
	return len(m.exchanges)
}

// Exchanges returns a copy of the retained exchanges in order.
func (m *Memory) Exchanges() []Exchange {
	out := make([]Exchange, len(m.exchanges))
	copy(out, m.exchanges)
	return out
}
