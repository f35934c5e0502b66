package floorplan

import (
	"io"
	"log"
	"sync"
)

// Sink receives pipeline diagnostics. Stages never log globally; callers
// inject a Sink and the pipeline stays a pure function of its inputs.
type Sink interface {
	// Opsf logs actionable warnings and lifecycle events.
	Opsf(format string, args ...interface{})
	// Diagf logs per-run diagnostics and tuning context.
	Diagf(format string, args ...interface{})
	// Tracef logs high-frequency per-round telemetry.
	Tracef(format string, args ...interface{})
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Opsf(string, ...interface{})   {}
func (NopSink) Diagf(string, ...interface{})  {}
func (NopSink) Tracef(string, ...interface{}) {}

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// Diagnostics is a Sink backed by one *log.Logger per stream.
// A nil writer disables that stream.
type Diagnostics struct {
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
}

// NewDiagnostics builds a Diagnostics sink from w.
func NewDiagnostics(w LogWriters) *Diagnostics {
	d := &Diagnostics{}
	d.SetLogWriters(w)
	return d
}

// SetLogWriters reconfigures all three streams at once.
func (d *Diagnostics) SetLogWriters(w LogWriters) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opsLogger = newLogger("[floorplan] ", w.Ops)
	d.diagLogger = newLogger("[floorplan] ", w.Diag)
	d.traceLogger = newLogger("[floorplan] ", w.Trace)
}

// newLogger creates a *log.Logger for a given writer, or returns nil if w is nil.
func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream.
func (d *Diagnostics) Opsf(format string, args ...interface{}) {
	d.mu.RLock()
	l := d.opsLogger
	d.mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream.
func (d *Diagnostics) Diagf(format string, args ...interface{}) {
	d.mu.RLock()
	l := d.diagLogger
	d.mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream.
func (d *Diagnostics) Tracef(format string, args ...interface{}) {
	d.mu.RLock()
	l := d.traceLogger
	d.mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// OrNop returns s, or NopSink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return NopSink{}
	}
	return s
}

var (
	_ Sink = NopSink{}
	_ Sink = (*Diagnostics)(nil)
)
