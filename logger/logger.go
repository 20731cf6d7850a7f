package logger

import (
	"bytes"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger defines the interface for structured logging used across packages
type Logger interface {
	Debug(component, category, requestID, message string, fields map[string]interface{})
	Info(component, category, requestID, message string, fields map[string]interface{})
	Warn(component, category, requestID, message string, fields map[string]interface{})
	Error(component, category, requestID, message string, fields map[string]interface{})
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return newWithWriter(io.Discard, logrus.PanicLevel, nil)
}

// Buffer is an in-memory sink for tests that need to inspect log output
type Buffer struct {
	*ObservabilityLogger
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewBuffer creates a debug-level logger that records JSON lines in memory
func NewBuffer() *Buffer {
	b := &Buffer{}
	b.ObservabilityLogger = newWithWriter(lockedWriter{b}, logrus.DebugLevel, nil)
	return b
}

// String returns everything logged so far
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type lockedWriter struct{ b *Buffer }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	return w.b.buf.Write(p)
}
