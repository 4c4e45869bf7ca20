package chat

import "time"

const DefaultDedupWindow = time.Second

type Message struct {
	Sender      string `json:"sender"`
	Content     string `json:"content"`
	TimestampMs int64  `json:"timestampMs"`
}

// Log is an append-only sequence in arrival order.
//
// A message is dropped as a duplicate when an existing entry has the same
// sender and content and a timestamp less than the dedup window away. This
// absorbs the local echo of a sent message and its redelivery, and also
// collapses two genuinely identical messages sent within the window.
type Log struct {
	messages []Message
	window   time.Duration

	// OnAppend, if set, is called for every message that is kept.
	OnAppend func(Message)
}

func NewLog(window time.Duration) *Log {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Log{window: window}
}

// Append reports whether msg was kept.
func (l *Log) Append(msg Message) bool {
	if l.isDuplicate(msg) {
		return false
	}
	l.messages = append(l.messages, msg)
	if l.OnAppend != nil {
		l.OnAppend(msg)
	}
	return true
}

func (l *Log) isDuplicate(msg Message) bool {
	windowMs := l.window.Milliseconds()
	for i := len(l.messages) - 1; i >= 0; i-- {
		m := l.messages[i]
		if m.Sender != msg.Sender || m.Content != msg.Content {
			continue
		}
		lo, hi := m.TimestampMs, msg.TimestampMs
		if lo > hi {
			lo, hi = hi, lo
		}
		// unsigned so the distance cannot wrap
		if uint64(hi)-uint64(lo) < uint64(windowMs) {
			return true
		}
	}
	return false
}

func (l *Log) Len() int {
	return len(l.messages)
}

// Messages returns a copy of the log.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}
