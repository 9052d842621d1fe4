// Package log provides configurable logging for ripple.
package log

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// RingBuffer keeps the most recent log lines in memory for the status
// surface. Oldest lines are evicted once capacity is reached.
type RingBuffer struct {
	mu       sync.RWMutex
	lines    []string
	capacity int
	start    int // index of the oldest line
	count    int
}

// NewRingBuffer creates a new ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &RingBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Add appends a line, evicting the oldest when full.
func (rb *RingBuffer) Add(line string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count < rb.capacity {
		rb.lines[(rb.start+rb.count)%rb.capacity] = line
		rb.count++
		return
	}
	rb.lines[rb.start] = line
	rb.start = (rb.start + 1) % rb.capacity
}

// Lines returns up to n of the most recent lines, oldest first.
func (rb *RingBuffer) Lines(n int) []string {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.count {
		n = rb.count
	}
	if n <= 0 {
		return []string{}
	}

	result := make([]string, n)
	first := rb.start + rb.count - n
	for i := range result {
		result[i] = rb.lines[(first+i)%rb.capacity]
	}
	return result
}

// Total returns the number of lines currently held.
func (rb *RingBuffer) Total() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Capacity returns the buffer capacity.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// BufferHandler tees formatted records into a ring buffer on their way to
// the real handler.
type BufferHandler struct {
	wrapped slog.Handler
	buffer  *RingBuffer
}

func NewBufferHandler(wrapped slog.Handler, buffer *RingBuffer) *BufferHandler {
	return &BufferHandler{
		wrapped: wrapped,
		buffer:  buffer,
	}
}

// Enabled always captures; the wrapped handler applies its own level filter.
func (h *BufferHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *BufferHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	if err := text.Handle(ctx, r); err == nil {
		h.buffer.Add(buf.String())
	}

	if h.wrapped != nil && h.wrapped.Enabled(ctx, r.Level) {
		return h.wrapped.Handle(ctx, r)
	}
	return nil
}

func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var wrapped slog.Handler
	if h.wrapped != nil {
		wrapped = h.wrapped.WithAttrs(attrs)
	}
	return &BufferHandler{wrapped: wrapped, buffer: h.buffer}
}

func (h *BufferHandler) WithGroup(name string) slog.Handler {
	var wrapped slog.Handler
	if h.wrapped != nil {
		wrapped = h.wrapped.WithGroup(name)
	}
	return &BufferHandler{wrapped: wrapped, buffer: h.buffer}
}
