package shell

import (
	"reflect"
	"testing"
)

func TestHistoryEviction(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog(3)
	for _, line := range []string{"A", "B", "C", "D"} {
		h.Append(line)
	}

	if got, want := h.Lines(), []string{"B", "C", "D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %v, want %v", got, want)
	}
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.Len())
	}
}

func TestHistoryNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog(5)
	for i := 0; i < 50; i++ {
		h.Append("line")
		if h.Len() > h.Cap() {
			t.Fatalf("history grew to %d entries, capacity %d", h.Len(), h.Cap())
		}
	}
}

func TestHistoryAbsoluteNumbering(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog(2)
	h.Append("first")
	h.Append("second")
	h.Append("third") // evicts "first"

	entries := h.Tail(10)
	want := []HistoryEntry{
		{Index: 2, Line: "second"},
		{Index: 3, Line: "third"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("Tail(10) = %v, want %v", entries, want)
	}
}

func TestHistoryTailLimit(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog(10)
	for _, line := range []string{"a", "b", "c", "d"} {
		h.Append(line)
	}

	entries := h.Tail(2)
	if len(entries) != 2 {
		t.Fatalf("Tail(2) returned %d entries", len(entries))
	}
	if entries[0].Line != "c" || entries[1].Line != "d" {
		t.Errorf("Tail(2) = %v, want last two lines", entries)
	}

	if got := h.Tail(0); got != nil {
		t.Errorf("Tail(0) = %v, want nil", got)
	}
}

func TestHistoryDefaultCapacity(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog(0)
	if h.Cap() != DefaultHistorySize {
		t.Errorf("Cap() = %d, want %d", h.Cap(), DefaultHistorySize)
	}
}
