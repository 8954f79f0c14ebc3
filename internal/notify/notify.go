// Package notify shows transient notifications, suppressing identical
// messages repeated within a short window.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alecgard/ovpnadmin/internal/logging"
)

// DefaultWindow is how long an identical message stays suppressed.
const DefaultWindow = 3 * time.Second

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is one notification.
type Message struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Sink displays messages.
type Sink interface {
	Show(ctx context.Context, msg Message)
}

// Suppressor decides whether a key may be shown. Acquire reports true the
// first time a key is seen within window and false for repeats until the
// window elapses.
type Suppressor interface {
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)
}

// Notifier deduplicates and forwards messages to a sink.
type Notifier struct {
	sink   Sink
	sup    Suppressor
	window time.Duration
	scope  string
	now    func() time.Time

	observe func(level Level, suppressed bool)
}

// New creates a Notifier. A nil suppressor gets an in-memory one; a
// non-positive window uses DefaultWindow.
func New(sink Sink, sup Suppressor, window time.Duration) *Notifier {
	if window <= 0 {
		window = DefaultWindow
	}
	if sup == nil {
		sup = NewMemorySuppressor(nil)
	}
	return &Notifier{sink: sink, sup: sup, window: window, now: time.Now}
}

// Scoped returns a copy of n whose suppression keys are namespaced by scope,
// so that two browser sessions sharing a suppressor do not silence each
// other.
func (n *Notifier) Scoped(scope string) *Notifier {
	cp := *n
	cp.scope = scope
	return &cp
}

// WithSink returns a copy of n that shows messages on sink.
func (n *Notifier) WithSink(sink Sink) *Notifier {
	cp := *n
	cp.sink = sink
	return &cp
}

// Observed returns a copy of n that reports every decision to fn.
func (n *Notifier) Observed(fn func(level Level, suppressed bool)) *Notifier {
	cp := *n
	cp.observe = fn
	return &cp
}

// Notify shows text unless it was shown within the window. It reports
// whether the message was shown. Suppressor failures fail open.
func (n *Notifier) Notify(ctx context.Context, level Level, text string) bool {
	if n == nil || text == "" {
		return false
	}
	ok, err := n.sup.Acquire(ctx, n.key(text), n.window)
	if err != nil {
		logging.FromContext(ctx).Warn("notification suppressor unavailable", "error", err)
		ok = true
	}
	if n.observe != nil {
		n.observe(level, !ok)
	}
	if !ok {
		return false
	}
	if n.sink != nil {
		n.sink.Show(ctx, Message{Level: level, Text: text, At: n.now()})
	}
	return true
}

// Error is shorthand for Notify(ctx, LevelError, text).
func (n *Notifier) Error(ctx context.Context, text string) bool {
	return n.Notify(ctx, LevelError, text)
}

// Success is shorthand for Notify(ctx, LevelSuccess, text).
func (n *Notifier) Success(ctx context.Context, text string) bool {
	return n.Notify(ctx, LevelSuccess, text)
}

func (n *Notifier) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	if n.scope == "" {
		return hex.EncodeToString(sum[:])
	}
	return n.scope + ":" + hex.EncodeToString(sum[:])
}

// MemorySuppressor keeps the suppression set in process memory.
type MemorySuppressor struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time
}

// NewMemorySuppressor creates an empty suppression set. A nil clock uses
// time.Now.
func NewMemorySuppressor(now func() time.Time) *MemorySuppressor {
	if now == nil {
		now = time.Now
	}
	return &MemorySuppressor{now: now, entries: make(map[string]time.Time)}
}

func (m *MemorySuppressor) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, k)
		}
	}
	if _, held := m.entries[key]; held {
		return false, nil
	}
	m.entries[key] = now.Add(window)
	return true, nil
}

// Len reports the number of live suppression entries.
func (m *MemorySuppressor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// WriterSink prints messages as "level: text" lines.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) Show(_ context.Context, msg Message) {
	fmt.Fprintf(s.W, "%s: %s\n", msg.Level, msg.Text)
}

// Recorder collects shown messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Show(_ context.Context, msg Message) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}

// Messages returns a copy of the collected messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Drain returns and forgets the collected messages.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.messages
	r.messages = nil
	return out
}
