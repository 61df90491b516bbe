// Package session owns the process-wide answer to "who is logged in".
//
// Manager is the single writer of the session User. Other components read
// copies through Snapshot/User and ask the Manager to mutate: Refresh after
// server-side changes, AppendUpload for the optimistic post-upload update.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/vaultcli/internal/client/client"
	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/dmitrijs2005/vaultcli/internal/client/notify"
	"github.com/dmitrijs2005/vaultcli/internal/logging"
)

var (
	ErrAuthFailed   = errors.New("authentication failed")
	ErrInvalidInput = errors.New("invalid input")
	ErrClosed       = errors.New("session manager closed")
)

type Status int

const (
	StatusUnauthenticated Status = iota
	StatusLoading
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session is an immutable view of the manager's state.
type Session struct {
	Status Status
	User   *models.User
}

// API is the part of the REST client the manager uses.
type API interface {
	Account(ctx context.Context) (*models.User, error)
	Login(ctx context.Context, email string, password []byte) error
	Register(ctx context.Context, username, email string, password []byte) error
	Logout(ctx context.Context) error
	Delete(ctx context.Context, fileID string) error
	UpdateUsername(ctx context.Context, username string) error
	UpdateAvatar(ctx context.Context, content io.Reader) error
}

// openFile is a test seam for avatar uploads.
var openFile = func(path string) (io.ReadCloser, error) { return os.Open(path) }

// Manager implements the session state machine
// Unauthenticated -> Loading -> {Authenticated | Unauthenticated}.
//
// Every canonical fetch is numbered. A result is applied only when its
// number is greater than the last applied one, so a fetch that started
// earlier but finishes later never overwrites a newer answer.
type Manager struct {
	api      API
	notifier notify.Notifier
	log      logging.Logger

	mu        sync.Mutex
	state     Session
	started   uint64
	applied   uint64
	closed    bool
	listeners []func(Session)
	version   uint64

	// delivery state, guarded by emitMu
	emitMu     sync.Mutex
	queued     uint64
	pending    *change
	delivering bool
}

// change is a numbered state snapshot waiting for delivery.
type change struct {
	version   uint64
	listeners []func(Session)
	snap      Session
}

// NewManager builds a Manager in the Unauthenticated state. Call Bootstrap
// to check the stored credential.
func NewManager(api API, notifier notify.Notifier, log logging.Logger) *Manager {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Manager{api: api, notifier: notifier, log: log.With("component", "session")}
}

// OnChange registers fn to be called with a snapshot after every state
// change. Callbacks run outside the manager's lock, one at a time and in
// state order; intermediate snapshots may be skipped but the last call
// always carries the latest state.
func (m *Manager) OnChange(fn func(Session)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Session {
	return Session{Status: m.state.Status, User: m.state.User.Clone()}
}

// changedLocked numbers the current state for delivery.
func (m *Manager) changedLocked() change {
	m.version++
	return change{version: m.version, listeners: m.listeners, snap: m.snapshotLocked()}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Status
}

// User returns a copy of the session user, or nil when unauthenticated.
func (m *Manager) User() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.User.Clone()
}

// Close detaches the manager: results of fetches still in flight are
// dropped and listeners are no longer called.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.listeners = nil
	m.mu.Unlock()
}

// begin numbers a new canonical fetch.
func (m *Manager) begin(loading bool) (uint64, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	m.started++
	gen := m.started
	if !loading || m.state.Status == StatusLoading {
		m.mu.Unlock()
		return gen, nil
	}
	m.state.Status = StatusLoading
	c := m.changedLocked()
	m.mu.Unlock()

	m.emit(c)
	return gen, nil
}

// apply installs the result of fetch gen unless a newer one was applied.
func (m *Manager) apply(ctx context.Context, gen uint64, u *models.User, err error) bool {
	m.mu.Lock()
	if m.closed || gen <= m.applied {
		m.mu.Unlock()
		m.log.Debug(ctx, "discarding stale session fetch", "generation", gen)
		return false
	}
	m.applied = gen
	if err != nil || u == nil {
		m.state = Session{Status: StatusUnauthenticated}
	} else {
		m.state = Session{Status: StatusAuthenticated, User: u.Clone()}
	}
	c := m.changedLocked()
	m.mu.Unlock()

	m.emit(c)
	return true
}

// clear drops the session and invalidates every fetch started so far.
func (m *Manager) clear() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.started++
	m.applied = m.started
	m.state = Session{Status: StatusUnauthenticated}
	c := m.changedLocked()
	m.mu.Unlock()

	m.emit(c)
}

// emit delivers c unless a newer change was already queued. Only one
// goroutine delivers at a time; a caller that finds delivery running
// leaves its change for that goroutine and returns.
func (m *Manager) emit(c change) {
	m.emitMu.Lock()
	if c.version <= m.queued {
		m.emitMu.Unlock()
		return
	}
	m.queued = c.version
	m.pending = &c
	if m.delivering {
		m.emitMu.Unlock()
		return
	}
	m.delivering = true
	for m.pending != nil {
		next := m.pending
		m.pending = nil
		m.emitMu.Unlock()
		for _, fn := range next.listeners {
			fn(Session{Status: next.snap.Status, User: next.snap.User.Clone()})
		}
		m.emitMu.Lock()
	}
	m.delivering = false
	m.emitMu.Unlock()
}

// fetch runs the canonical account request.
func (m *Manager) fetch(ctx context.Context, loading bool) error {
	gen, err := m.begin(loading)
	if err != nil {
		return err
	}
	u, err := m.api.Account(ctx)
	if err != nil {
		m.log.Debug(ctx, "account fetch failed", "generation", gen, "error", err)
	}
	m.apply(ctx, gen, u, err)
	return err
}

// Bootstrap checks the stored credential. Status is Loading while the
// request is pending; any failure, network errors included, ends
// Unauthenticated.
func (m *Manager) Bootstrap(ctx context.Context) error {
	return m.fetch(ctx, true)
}

// Refresh re-runs the canonical fetch and replaces the user in place. A
// failed refresh leaves the session Unauthenticated.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.fetch(ctx, false)
}

// Login authenticates and then fetches the canonical user; the login
// response itself is not trusted as a user object.
func (m *Manager) Login(ctx context.Context, email string, password []byte) error {
	email = strings.TrimSpace(email)
	if email == "" || len(password) == 0 {
		return fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	if err := m.api.Login(ctx, email, password); err != nil {
		m.clear()
		m.notifier.Notify(ctx, notify.Error("Login failed", loginReason(err)))
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	if err := m.fetch(ctx, true); err != nil {
		m.notifier.Notify(ctx, notify.Error("Login failed", "could not load your account"))
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	return nil
}

// Register creates the account and, on success, fetches the canonical
// session the same way Login does. A taken username or email is an
// ordinary failure.
func (m *Manager) Register(ctx context.Context, username, email string, password []byte) error {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" || len(password) == 0 {
		return fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	if err := m.api.Register(ctx, username, email, password); err != nil {
		reason := client.Message(err)
		if errors.Is(err, client.ErrConflict) {
			reason = "username or email already in use"
		}
		m.notifier.Notify(ctx, notify.Error("Registration failed", reason))
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	if err := m.fetch(ctx, true); err != nil {
		m.notifier.Notify(ctx, notify.Error("Registration succeeded", "but the account could not be loaded; please log in"))
		return err
	}
	return nil
}

// Logout ends the session. Local state is cleared whatever the server
// answers; a server failure is reported and returned.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.api.Logout(ctx)
	m.clear()
	if err != nil {
		m.log.Warn(ctx, "logout request failed", "error", err)
		m.notifier.Notify(ctx, notify.Error("Logout incomplete", "could not reach the server; the local session was cleared"))
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// AppendUpload is the optimistic update after a successful upload. It is a
// no-op without a user or when the record is already listed. The next
// Refresh may supersede it.
func (m *Manager) AppendUpload(rec models.UploadRecord) bool {
	m.mu.Lock()
	if m.closed || m.state.User == nil || m.state.User.HasUpload(rec.FileID) {
		m.mu.Unlock()
		return false
	}
	u := m.state.User.Clone()
	u.Uploads = append(u.Uploads, rec)
	m.state.User = u
	c := m.changedLocked()
	m.mu.Unlock()

	m.emit(c)
	return true
}

// RemoveUpload drops a record locally.
func (m *Manager) RemoveUpload(fileID string) bool {
	m.mu.Lock()
	if m.closed || !m.state.User.HasUpload(fileID) {
		m.mu.Unlock()
		return false
	}
	u := m.state.User.Clone()
	kept := u.Uploads[:0]
	for _, r := range u.Uploads {
		if r.FileID != fileID {
			kept = append(kept, r)
		}
	}
	u.Uploads = kept
	m.state.User = u
	c := m.changedLocked()
	m.mu.Unlock()

	m.emit(c)
	return true
}

// DeleteUpload deletes a file server-side and refreshes the session
// whatever the outcome. A missing file yields client.ErrNotFound.
func (m *Manager) DeleteUpload(ctx context.Context, fileID string) error {
	err := m.api.Delete(ctx, fileID)
	switch {
	case err == nil:
		m.RemoveUpload(fileID)
		m.notifier.Notify(ctx, notify.Success("File deleted", fileID))
	case errors.Is(err, client.ErrNotFound):
		m.notifier.Notify(ctx, notify.Error("File not found", "it may already have been deleted"))
	default:
		m.notifier.Notify(ctx, notify.Error("Delete failed", "something went wrong, try again later"))
	}

	if rerr := m.Refresh(ctx); rerr != nil {
		m.log.Warn(ctx, "refresh after delete failed", "error", rerr)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", fileID, err)
	}
	return nil
}

// UpdateUsername changes the display name. An unchanged name is a no-op.
func (m *Manager) UpdateUsername(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if u := m.User(); u != nil && u.Username == username {
		return nil
	}
	if err := m.api.UpdateUsername(ctx, username); err != nil {
		m.notifier.Notify(ctx, notify.Error("Could not change username", client.Message(err)))
		return fmt.Errorf("update username: %w", err)
	}
	m.notifier.Notify(ctx, notify.Success("Username changed", username))
	return m.Refresh(ctx)
}

// UpdateAvatar uploads the image at path as the new avatar.
func (m *Manager) UpdateAvatar(ctx context.Context, path string) error {
	f, err := openFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	defer f.Close()

	if err := m.api.UpdateAvatar(ctx, f); err != nil {
		m.notifier.Notify(ctx, notify.Error("Could not change avatar", client.Message(err)))
		return fmt.Errorf("update avatar: %w", err)
	}
	m.notifier.Notify(ctx, notify.Success("Avatar changed", ""))
	return m.Refresh(ctx)
}

func loginReason(err error) string {
	switch {
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, client.ErrRejected):
		return "wrong email or password"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable, try again later"
	default:
		return client.Message(err)
	}
}
