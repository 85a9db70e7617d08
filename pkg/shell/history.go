package shell

// HistoryLog is a bounded FIFO of raw command lines. When the log is full
// the oldest line is evicted, but absolute numbering is preserved: the
// first line ever recorded is 1 forever.
type HistoryLog struct {
	entries  []string
	capacity int
	base     int // lines evicted so far
}

// HistoryEntry pairs a line with its absolute 1-based position.
type HistoryEntry struct {
	Index int
	Line  string
}

// DefaultHistorySize bounds the log when the caller configures nothing.
const DefaultHistorySize = 100

// NewHistoryLog creates a log holding at most capacity lines.
func NewHistoryLog(capacity int) *HistoryLog {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &HistoryLog{capacity: capacity}
}

// Append records a line, evicting the oldest when full.
func (h *HistoryLog) Append(line string) {
	h.entries = append(h.entries, line)
	if len(h.entries) > h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
		h.base++
	}
}

// Len returns the number of retained lines.
func (h *HistoryLog) Len() int { return len(h.entries) }

// Cap returns the configured capacity.
func (h *HistoryLog) Cap() int { return h.capacity }

// Lines returns a copy of the retained lines, oldest first.
func (h *HistoryLog) Lines() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Tail returns the last n entries with absolute indices, oldest first.
func (h *HistoryLog) Tail(n int) []HistoryEntry {
	if n <= 0 || len(h.entries) == 0 {
		return nil
	}
	start := len(h.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]HistoryEntry, 0, len(h.entries)-start)
	for i := start; i < len(h.entries); i++ {
		out = append(out, HistoryEntry{Index: h.base + i + 1, Line: h.entries[i]})
	}
	return out
}
