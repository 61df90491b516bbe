// Package notify delivers user-facing notices: failures and confirmations
// the user must see, as opposed to diagnostics, which go to the logger.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "ok"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is one message shown to the user.
type Notice struct {
	Level       Level
	Title       string
	Description string
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Error builds an error notice.
func Error(title, description string) Notice {
	return Notice{Level: LevelError, Title: title, Description: description}
}

// Success builds a success notice.
func Success(title, description string) Notice {
	return Notice{Level: LevelSuccess, Title: title, Description: description}
}

// WriterNotifier prints notices as single lines.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Notify(_ context.Context, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if notice.Description == "" {
		fmt.Fprintf(n.w, "[%s] %s\n", notice.Level, notice.Title)
		return
	}
	fmt.Fprintf(n.w, "[%s] %s: %s\n", notice.Level, notice.Title, notice.Description)
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of what was recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Nop drops notices.
type Nop struct{}

func (Nop) Notify(context.Context, Notice) {}
