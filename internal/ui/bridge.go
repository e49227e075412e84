package ui

import (
	"fmt"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fragmede/shelf/internal/auth"
	"github.com/fragmede/shelf/internal/cache"
	"github.com/fragmede/shelf/internal/ui/messages"
)

const bridgeQueueSize = 64

// Notification levels stored in the notifications table.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

// Bridge carries session events from the background components to the TUI.
// It implements auth.Notifier and auth.Navigator. Events are queued so
// callers never block on the program; events raised before Attach wait in
// the queue and are delivered once a program is attached.
type Bridge struct {
	db  *cache.DB
	log *slog.Logger

	mu       sync.Mutex
	program  interface{ Send(tea.Msg) }
	attached chan struct{}
	queue    chan tea.Msg
	closed   bool
	stop     chan struct{}
	done     chan struct{}
}

// NewBridge creates a bridge and starts its delivery goroutine.
func NewBridge(db *cache.DB, log *slog.Logger) *Bridge {
	b := &Bridge{
		db:       db,
		log:      log,
		attached: make(chan struct{}),
		queue:    make(chan tea.Msg, bridgeQueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.deliver()
	return b
}

// Attach sets the program that receives queued messages and releases
// anything queued so far.
func (b *Bridge) Attach(p interface{ Send(tea.Msg) }) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p == nil {
		return
	}
	first := b.program == nil
	b.program = p
	if first {
		close(b.attached)
	}
}

// Close stops delivery. Messages still queued for a program that never
// attached are dropped; later events are only recorded.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.stop)
	close(b.queue)
	b.mu.Unlock()
	<-b.done
}

func (b *Bridge) Success(msg string) { b.notify(LevelSuccess, msg) }
func (b *Bridge) Error(msg string) { b.notify(LevelError, msg) }
func (b *Bridge) Info(msg string) { b.notify(LevelInfo, msg) }

// ToLogin asks the TUI to show the login view.
func (b *Bridge) ToLogin() {
	b.enqueue(messages.NavigateToLoginMsg{})
}

// Observe forwards store mutations; pass it to auth.Store.Subscribe.
func (b *Bridge) Observe(s auth.Session) {
	b.enqueue(messages.SessionChangedMsg{Session: s})
}

func (b *Bridge) notify(level, text string) {
	if err := b.db.AddNotification(level, text); err != nil {
		b.log.Warn("recording notification", "error", err)
	}
	b.log.Debug("notification", "level", level, "text", text)
	b.enqueue(messages.NotifyMsg{Level: level, Text: text})
	b.enqueue(messages.NewNotificationMsg{UnreadCount: b.db.UnreadNotificationCount()})
}

func (b *Bridge) enqueue(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- msg:
	default:
		b.log.Warn("ui queue full, dropping message", "type", fmt.Sprintf("%T", msg))
	}
}

func (b *Bridge) deliver() {
	defer close(b.done)
	for msg := range b.queue {
		if !b.waitAttached() {
			continue
		}
		b.mu.Lock()
		p := b.program
		b.mu.Unlock()
		p.Send(msg)
	}
}

// waitAttached blocks until a program is attached. It reports false if the
// bridge was closed first.
func (b *Bridge) waitAttached() bool {
	select {
	case <-b.attached:
		return true
	default:
	}
	select {
	case <-b.attached:
		return true
	case <-b.stop:
		return false
	}
}

var (
	_ auth.Notifier  = (*Bridge)(nil)
	_ auth.Navigator = (*Bridge)(nil)
)
