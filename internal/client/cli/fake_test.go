package cli

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultcli/internal/client/client"
	"github.com/dmitrijs2005/vaultcli/internal/client/config"
	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory client.Client.
type fakeClient struct {
	mu sync.Mutex

	cred     bool
	revoked  bool // server rejects the stored credential once
	user     *models.User
	loginErr error
	stats    models.Stats
	info     map[string]models.FileInfo
	content  string
	avatar   string

	keys     []string
	loggedIn []string
	names    []string
}

var _ client.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		user: &models.User{ID: 7, Username: "alice", Email: "alice@example.com"},
		info: map[string]models.FileInfo{},
	}
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) HasCredential() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred
}

func (f *fakeClient) Account(context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cred && f.revoked {
		f.cred, f.revoked = false, false
	}
	if !f.cred {
		return nil, client.ErrUnauthorized
	}
	return f.user.Clone(), nil
}

func (f *fakeClient) Login(_ context.Context, email string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = append(f.loggedIn, email)
	if f.loginErr != nil {
		return f.loginErr
	}
	f.cred = true
	return nil
}

func (f *fakeClient) Register(_ context.Context, username, email string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = &models.User{ID: 8, Username: username, Email: email}
	f.cred = true
	return nil
}

func (f *fakeClient) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred = false
	return nil
}

func (f *fakeClient) Upload(_ context.Context, name, _ string, content io.Reader) ([]models.UploadedFile, error) {
	b, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "id-" + name
	f.names = append(f.names, name)
	f.user.Uploads = append(f.user.Uploads, models.UploadRecord{FileID: id, FileName: name, Size: int64(len(b))})
	return []models.UploadedFile{{Name: name, ID: id, URL: "https://vault.example/download/" + id + "#secret-" + name}}, nil
}

func (f *fakeClient) Delete(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.IndexFunc(f.user.Uploads, func(r models.UploadRecord) bool { return r.FileID == fileID })
	if i < 0 {
		return client.ErrNotFound
	}
	f.user.Uploads = slices.Delete(f.user.Uploads, i, i+1)
	return nil
}

func (f *fakeClient) FileInfo(_ context.Context, fileID string) (*models.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.info[fileID]
	if !ok {
		return nil, client.ErrNotFound
	}
	return &info, nil
}

func (f *fakeClient) Download(_ context.Context, _ string, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func (f *fakeClient) Stats(context.Context) (*models.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats
	return &s, nil
}

func (f *fakeClient) UpdateUsername(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user.Username = username
	return nil
}

func (f *fakeClient) UpdateAvatar(_ context.Context, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avatar = string(b)
	return nil
}

func (f *fakeClient) Avatar(context.Context) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cred {
		return nil, "", client.ErrUnauthorized
	}
	if f.avatar == "" {
		return nil, "", client.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(f.avatar)), "image/jpeg", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DownloadTarget = t.TempDir()
	return cfg
}

// newTestApp wires an App over fc. Prompts read from input.
func newTestApp(t *testing.T, fc *fakeClient, input string) (*App, *strings.Builder) {
	t.Helper()
	out := &strings.Builder{}
	a, err := newApp(context.Background(), testConfig(t), fc, nil, nil, strings.NewReader(input), out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, out
}

// stubPasswords makes getPassword return pws in order.
func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := getPassword
	t.Cleanup(func() { getPassword = orig })
	getPassword = func(string, io.Writer) ([]byte, error) {
		if len(pws) == 0 {
			return nil, io.EOF
		}
		pw := pws[0]
		pws = pws[1:]
		return []byte(pw), nil
	}
}

func records(n int) []models.UploadRecord {
	out := make([]models.UploadRecord, n)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := range out {
		out[i] = models.UploadRecord{
			FileID:     "f" + string(rune('a'+i)),
			FileName:   "file-" + string(rune('a'+i)) + ".txt",
			Size:       int64(1000 * (i + 1)),
			UploadDate: models.MillisOf(base),
		}
	}
	return out
}
