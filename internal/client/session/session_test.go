package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/vaultcli/internal/client/client"
	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/dmitrijs2005/vaultcli/internal/client/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*************
 * Fake API
 *************/

type fakeAPI struct {
	mu sync.Mutex

	accountFn   func(ctx context.Context) (*models.User, error)
	loginErr    error
	registerErr error
	logoutErr   error
	deleteErr   error
	usernameErr error
	avatarErr   error

	calls        []string
	lastUsername string
	avatarBody   string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Account(ctx context.Context) (*models.User, error) {
	f.record("account")
	if f.accountFn == nil {
		return nil, client.ErrUnauthorized
	}
	return f.accountFn(ctx)
}

func (f *fakeAPI) Login(context.Context, string, []byte) error {
	f.record("login")
	return f.loginErr
}

func (f *fakeAPI) Register(context.Context, string, string, []byte) error {
	f.record("register")
	return f.registerErr
}

func (f *fakeAPI) Logout(context.Context) error {
	f.record("logout")
	return f.logoutErr
}

func (f *fakeAPI) Delete(_ context.Context, id string) error {
	f.record("delete " + id)
	return f.deleteErr
}

func (f *fakeAPI) UpdateUsername(_ context.Context, name string) error {
	f.record("username")
	f.lastUsername = name
	return f.usernameErr
}

func (f *fakeAPI) UpdateAvatar(_ context.Context, r io.Reader) error {
	f.record("avatar")
	b, _ := io.ReadAll(r)
	f.avatarBody = string(b)
	return f.avatarErr
}

func alice() *models.User {
	return &models.User{ID: 1, Username: "alice", Email: "alice@example.org",
		Uploads: []models.UploadRecord{{FileID: "f1", FileName: "a.txt"}}}
}

func returns(u *models.User) func(context.Context) (*models.User, error) {
	return func(context.Context) (*models.User, error) { return u.Clone(), nil }
}

func newManager(api *fakeAPI) (*Manager, *notify.Recorder) {
	rec := &notify.Recorder{}
	return NewManager(api, rec, nil), rec
}

/*************
 * Bootstrap / Refresh
 *************/

func TestBootstrap_Success(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, _ := newManager(api)
	require.Equal(t, StatusUnauthenticated, m.Status())

	require.NoError(t, m.Bootstrap(context.Background()))

	s := m.Snapshot()
	assert.Equal(t, StatusAuthenticated, s.Status)
	assert.Equal(t, "alice", s.User.Username)
}

func TestBootstrap_LoadingWhilePending(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{accountFn: func(context.Context) (*models.User, error) {
		close(entered)
		<-release
		return alice(), nil
	}}
	m, _ := newManager(api)

	done := make(chan error)
	go func() { done <- m.Bootstrap(context.Background()) }()
	<-entered
	assert.Equal(t, StatusLoading, m.Status())
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusAuthenticated, m.Status())
}

func TestBootstrap_NetworkFailureEndsUnauthenticated(t *testing.T) {
	api := &fakeAPI{accountFn: func(context.Context) (*models.User, error) {
		return nil, client.ErrUnavailable
	}}
	m, _ := newManager(api)

	err := m.Bootstrap(context.Background())

	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Nil(t, m.User())
}

func TestRefresh_OlderFetchFinishingLaterIsDiscarded(t *testing.T) {
	first := make(chan struct{})
	firstEntered := make(chan struct{})
	var n int
	var mu sync.Mutex
	api := &fakeAPI{accountFn: func(context.Context) (*models.User, error) {
		mu.Lock()
		n++
		call := n
		mu.Unlock()
		if call == 1 {
			close(firstEntered)
			<-first
			return &models.User{ID: 1, Username: "stale"}, nil
		}
		return &models.User{ID: 1, Username: "fresh"}, nil
	}}
	m, _ := newManager(api)

	done := make(chan error)
	go func() { done <- m.Refresh(context.Background()) }()
	<-firstEntered

	require.NoError(t, m.Refresh(context.Background()))
	close(first)
	require.NoError(t, <-done)

	assert.Equal(t, "fresh", m.User().Username)
}

func TestRefresh_FailureResolvesToUnauthenticated(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, _ := newManager(api)
	require.NoError(t, m.Bootstrap(context.Background()))

	api.accountFn = func(context.Context) (*models.User, error) { return nil, client.ErrUnauthorized }
	require.Error(t, m.Refresh(context.Background()))
	assert.Equal(t, StatusUnauthenticated, m.Status())
}

func TestClose_DropsLateResults(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{accountFn: func(context.Context) (*models.User, error) {
		close(entered)
		<-release
		return alice(), nil
	}}
	m, _ := newManager(api)
	var changes int
	m.OnChange(func(Session) { changes++ })

	done := make(chan error)
	go func() { done <- m.Refresh(context.Background()) }()
	<-entered
	m.Close()
	close(release)
	<-done

	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Zero(t, changes)
	require.ErrorIs(t, m.Refresh(context.Background()), ErrClosed)
}

/*************
 * Login / Register / Logout
 *************/

func TestLogin_TwoPhase(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, rec := newManager(api)

	require.NoError(t, m.Login(context.Background(), " alice@example.org ", []byte("pw")))

	assert.Equal(t, []string{"login", "account"}, api.Calls())
	assert.Equal(t, StatusAuthenticated, m.Status())
	assert.Empty(t, rec.Notices())
}

func TestLogin_RejectedIsReportedNotFatal(t *testing.T) {
	api := &fakeAPI{loginErr: client.ErrUnauthorized}
	m, rec := newManager(api)

	err := m.Login(context.Background(), "a@b.c", []byte("bad"))

	require.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, StatusUnauthenticated, m.Status())
	require.Len(t, rec.Notices(), 1)
	assert.Equal(t, "wrong email or password", rec.Notices()[0].Description)
	assert.Equal(t, []string{"login"}, api.Calls())
}

func TestLogin_EmptyInputMakesNoCall(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newManager(api)

	require.ErrorIs(t, m.Login(context.Background(), "  ", []byte("pw")), ErrInvalidInput)
	assert.Empty(t, api.Calls())
}

func TestRegister_CollisionIsFailure(t *testing.T) {
	api := &fakeAPI{registerErr: client.ErrConflict}
	m, rec := newManager(api)

	err := m.Register(context.Background(), "alice", "alice@example.org", []byte("pw"))

	require.ErrorIs(t, err, ErrAuthFailed)
	require.ErrorIs(t, err, client.ErrConflict)
	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Equal(t, "username or email already in use", rec.Notices()[0].Description)
}

func TestRegister_SuccessFetchesSession(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, _ := newManager(api)

	require.NoError(t, m.Register(context.Background(), "alice", "alice@example.org", []byte("pw")))
	assert.Equal(t, []string{"register", "account"}, api.Calls())
	assert.Equal(t, StatusAuthenticated, m.Status())
}

func TestLogout_ServerErrorStillClearsSession(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice()), logoutErr: client.ErrUnavailable}
	m, rec := newManager(api)
	require.NoError(t, m.Bootstrap(context.Background()))

	err := m.Logout(context.Background())

	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Nil(t, m.User())
	require.Len(t, rec.Notices(), 1)
	assert.Equal(t, notify.LevelError, rec.Notices()[0].Level)
}

func TestLogout_InvalidatesFetchInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{accountFn: func(context.Context) (*models.User, error) {
		close(entered)
		<-release
		return alice(), nil
	}}
	m, _ := newManager(api)

	done := make(chan error)
	go func() { done <- m.Refresh(context.Background()) }()
	<-entered
	require.NoError(t, m.Logout(context.Background()))
	close(release)
	<-done

	assert.Equal(t, StatusUnauthenticated, m.Status())
}

/*************
 * Uploads
 *************/

func TestAppendUpload_DedupAndCopySemantics(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, _ := newManager(api)
	require.NoError(t, m.Bootstrap(context.Background()))

	var seen []int
	m.OnChange(func(s Session) { seen = append(seen, len(s.User.Uploads)) })

	assert.True(t, m.AppendUpload(models.UploadRecord{FileID: "f2", FileName: "b.txt"}))
	assert.False(t, m.AppendUpload(models.UploadRecord{FileID: "f2"}))

	u := m.User()
	require.Len(t, u.Uploads, 2)
	u.Uploads[0].FileName = "mutated"
	assert.Equal(t, "a.txt", m.User().Uploads[0].FileName)
	assert.Equal(t, []int{2}, seen)
}

func uploadIDs(u *models.User) []string {
	var ids []string
	for _, r := range u.Uploads {
		ids = append(ids, r.FileID)
	}
	return ids
}

func TestOnChange_SlowListenerEndsOnLatestState(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, _ := newManager(api)
	require.NoError(t, m.Bootstrap(context.Background()))

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		calls int
		last  []string
	)
	m.OnChange(func(s Session) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
		mu.Lock()
		last = uploadIDs(s.User)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.AppendUpload(models.UploadRecord{FileID: "f2"})
	}()
	<-entered
	require.True(t, m.AppendUpload(models.UploadRecord{FileID: "f3"}), "must not wait for the busy listener")
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"f1", "f2", "f3"}, uploadIDs(m.User()))
	assert.Equal(t, []string{"f1", "f2", "f3"}, last)
	assert.Equal(t, 2, calls)
}

func TestEmit_DropsOlderChange(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, _ := newManager(api)
	require.NoError(t, m.Bootstrap(context.Background()))

	var seen [][]string
	m.OnChange(func(s Session) { seen = append(seen, uploadIDs(s.User)) })

	m.mu.Lock()
	older := m.changedLocked()
	m.mu.Unlock()
	require.True(t, m.AppendUpload(models.UploadRecord{FileID: "f2"}))

	m.emit(older)

	assert.Equal(t, [][]string{{"f1", "f2"}}, seen)
}

func TestAppendUpload_WithoutUserIsNoop(t *testing.T) {
	m, _ := newManager(&fakeAPI{})
	assert.False(t, m.AppendUpload(models.UploadRecord{FileID: "f"}))
}

func TestDeleteUpload_Success(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, rec := newManager(api)
	require.NoError(t, m.Bootstrap(context.Background()))
	api.accountFn = returns(&models.User{ID: 1, Username: "alice"})

	require.NoError(t, m.DeleteUpload(context.Background(), "f1"))

	assert.Equal(t, []string{"account", "delete f1", "account"}, api.Calls())
	assert.Empty(t, m.User().Uploads)
	assert.Equal(t, notify.LevelSuccess, rec.Notices()[0].Level)
}

func TestDeleteUpload_NotFoundIsDistinctAndStillRefreshes(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice()), deleteErr: client.ErrNotFound}
	m, rec := newManager(api)
	require.NoError(t, m.Bootstrap(context.Background()))

	err := m.DeleteUpload(context.Background(), "gone")

	require.ErrorIs(t, err, client.ErrNotFound)
	assert.Equal(t, "File not found", rec.Notices()[0].Title)
	assert.Equal(t, []string{"account", "delete gone", "account"}, api.Calls())
}

func TestDeleteUpload_GenericFailure(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice()), deleteErr: client.ErrUnavailable}
	m, rec := newManager(api)

	err := m.DeleteUpload(context.Background(), "f1")

	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, "Delete failed", rec.Notices()[0].Title)
}

/*************
 * Profile
 *************/

func TestUpdateUsername_UnchangedSkipsCall(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, _ := newManager(api)
	require.NoError(t, m.Bootstrap(context.Background()))

	require.NoError(t, m.UpdateUsername(context.Background(), "alice"))
	assert.Equal(t, []string{"account"}, api.Calls())
}

func TestUpdateUsername_ChangedRefreshes(t *testing.T) {
	api := &fakeAPI{accountFn: returns(alice())}
	m, _ := newManager(api)
	require.NoError(t, m.Bootstrap(context.Background()))
	api.accountFn = returns(&models.User{ID: 1, Username: "bob"})

	require.NoError(t, m.UpdateUsername(context.Background(), "bob"))

	assert.Equal(t, "bob", api.lastUsername)
	assert.Equal(t, "bob", m.User().Username)
}

func TestUpdateUsername_SurfacesServerMessage(t *testing.T) {
	api := &fakeAPI{usernameErr: &client.StatusError{StatusCode: 400, Message: "username taken"}}
	m, rec := newManager(api)

	require.Error(t, m.UpdateUsername(context.Background(), "bob"))
	assert.Equal(t, "username taken", rec.Notices()[0].Description)
}

func TestUpdateAvatar(t *testing.T) {
	orig := openFile
	openFile = func(path string) (io.ReadCloser, error) {
		if path != "me.png" {
			return nil, errors.New("no such file")
		}
		return io.NopCloser(strings.NewReader("PNG")), nil
	}
	t.Cleanup(func() { openFile = orig })

	api := &fakeAPI{accountFn: returns(alice())}
	m, _ := newManager(api)

	require.NoError(t, m.UpdateAvatar(context.Background(), "me.png"))
	assert.Equal(t, "PNG", api.avatarBody)
	assert.Equal(t, []string{"avatar", "account"}, api.Calls())

	require.ErrorIs(t, m.UpdateAvatar(context.Background(), "missing.png"), ErrInvalidInput)
}

/*************
 * Route gate
 *************/

func TestGuard(t *testing.T) {
	tests := []struct {
		area Area
		cred bool
		want Area
	}{
		{AreaDashboard, false, AreaLogin},
		{AreaDashboard, true, AreaDashboard},
		{AreaLogin, true, AreaDashboard},
		{AreaLogin, false, AreaLogin},
		{AreaPublic, false, AreaPublic},
		{AreaPublic, true, AreaPublic},
	}
	for _, tt := range tests {
		t.Run(tt.area.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Guard(tt.area, tt.cred))
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "authenticated", StatusAuthenticated.String())
	assert.Equal(t, "unauthenticated", StatusUnauthenticated.String())
}
