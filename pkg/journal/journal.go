// Package journal writes the controller activity log as
// "<timestamp> - <message>" lines. Writes never block the caller.
package journal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// TimeLayout is the timestamp format of every line.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultFile is the journal file name used when none is configured.
const DefaultFile = "elevator_log.txt"

// Journal is an append-only line log backed by zerolog.
type Journal struct {
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	closer io.Closer
}

// Option customizes a Journal.
type Option func(*Journal)

// WithNow replaces the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// New writes formatted lines to w synchronously.
func New(w io.Writer, opts ...Option) *Journal {
	j := &Journal{now: time.Now}
	for _, opt := range opts {
		opt(j)
	}

	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
		FormatTimestamp: func(i interface{}) string {
			return fmt.Sprintf("%v -", i)
		},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("%v", i)
		},
	}
	j.logger = zerolog.New(out)
	return j
}

// Open appends to the file at path through a non-blocking diode buffer.
// Lines that cannot be written in time are dropped and reported on slog.
func Open(path string, opts ...Option) (*Journal, error) {
	if path == "" {
		path = DefaultFile
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	dw := diode.NewWriter(f, 1000, 10*time.Millisecond, func(missed int) {
		slog.Warn("Journal lines dropped", "missed", missed, "path", path)
	})

	j := New(dw, opts...)
	j.closer = dw // closes f as well
	return j, nil
}

// Record appends one line. Errors are swallowed.
func (j *Journal) Record(message string) {
	j.logger.Log().
		Str(zerolog.TimestampFieldName, j.now().Format(TimeLayout)).
		Msg(message)
}

// Close flushes buffered lines and releases the file, if any.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closer == nil {
		return nil
	}
	err := j.closer.Close()
	j.closer = nil
	return err
}
