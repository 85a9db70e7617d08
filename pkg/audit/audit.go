// Package audit records every shell command invocation. The engine emits
// one record before dispatch and one after, so an invocation that never
// completed is visible as a pending record with no terminal partner.
package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is the state a record reports.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Record is one audit entry. Records are append-only: a state transition is
// a new record sharing the same ID, never a mutation.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Command   string    `json:"command"`
	Args      []string  `json:"args,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
}

// NewRecord stamps a record with a fresh ID and the current time.
func NewRecord(user, command string, args []string) Record {
	return Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Command:   command,
		Args:      args,
	}
}

// WithOutcome returns a copy of r carrying a terminal outcome, restamped to
// the transition time.
func (r Record) WithOutcome(outcome Outcome, detail string) Record {
	r.Timestamp = time.Now()
	r.Outcome = outcome
	r.Error = detail
	return r
}

// Sink accepts records. The shell treats delivery as fire-and-forget; a
// sink's error is the sink's problem.
type Sink interface {
	Write(rec Record) error
}

// LogSink emits records as structured log lines.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Write(rec Record) error {
	if s.Logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("audit_id", rec.ID),
		slog.String("user", rec.User),
		slog.String("command", rec.Command),
		slog.Any("args", rec.Args),
		slog.String("outcome", string(rec.Outcome)),
	}
	if rec.Error != "" {
		attrs = append(attrs, slog.String("error", rec.Error))
	}
	if rec.Outcome == OutcomeFailure {
		s.Logger.Warn("shell command", attrs...)
	} else {
		s.Logger.Info("shell command", attrs...)
	}
	return nil
}

// MultiSink fans a record out to every sink, keeping the first error.
type MultiSink []Sink

func (m MultiSink) Write(rec Record) error {
	var first error
	for _, sink := range m {
		if err := sink.Write(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MemorySink collects records for tests and for the log view command.
type MemorySink struct {
	mu   sync.Mutex
	recs []Record
}

func (s *MemorySink) Write(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

// Records returns a copy of everything written so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.recs))
	copy(out, s.recs)
	return out
}

// Reset drops collected records.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = nil
}
