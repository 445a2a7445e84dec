package logger

import (
	"time"
)

// Entry is a timed operation that logs once, when it finishes.
// It carries metric fields (duration_ms, count, size, status) for aggregation.
type Entry struct {
	logger *Logger
	op     string
	start  time.Time
	fields Fields
}

// Start begins a timed entry for op.
// Example:
//
//	entry := log.Start("save").With(logger.Fields{logger.FieldImageID: id})
//	defer func() { entry.Done(err) }()
func (l *Logger) Start(op string) *Entry {
	return &Entry{
		logger: l,
		op:     op,
		start:  time.Now(),
		fields: Fields{FieldOp: op},
	}
}

// With merges fields into the entry.
func (e *Entry) With(fields Fields) *Entry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// WithSize adds a size field in bytes.
func (e *Entry) WithSize(n int) *Entry {
	return e.With(Fields{FieldSize: n})
}

// Done logs the entry with its duration. A nil err logs at Info, anything else at Warn.
func (e *Entry) Done(err error) {
	l := e.logger.WithFields(e.fields).WithField(FieldDurationMs, time.Since(e.start).Milliseconds())
	if err != nil {
		l.WithField(FieldStatus, "error").WithError(err).Warnf("%s failed", e.op)
		return
	}
	l.WithField(FieldStatus, "success").Infof("%s done", e.op)
}
