package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/vaultcli/internal/client/client"
	"github.com/dmitrijs2005/vaultcli/internal/client/config"
	"github.com/dmitrijs2005/vaultcli/internal/client/delivery"
	"github.com/dmitrijs2005/vaultcli/internal/client/download"
	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/dmitrijs2005/vaultcli/internal/client/notify"
	"github.com/dmitrijs2005/vaultcli/internal/client/pager"
	"github.com/dmitrijs2005/vaultcli/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaultcli/internal/client/repositories/queue"
	"github.com/dmitrijs2005/vaultcli/internal/client/session"
	"github.com/dmitrijs2005/vaultcli/internal/client/stats"
	"github.com/dmitrijs2005/vaultcli/internal/client/upload"
	"github.com/dmitrijs2005/vaultcli/internal/logging"
)

// sinkFn is a test seam for delivery.FromTarget.
var sinkFn = delivery.FromTarget

// App holds the wired client components for one run.
type App struct {
	cfg *config.Config
	log logging.Logger
	db  *sql.DB
	api client.Client

	notifier  notify.Notifier
	session   *session.Manager
	uploads   *upload.Orchestrator
	downloads *download.Protocol
	stats     *stats.Service

	// pager is fed from session change events, which may arrive from
	// upload workers.
	pagerMu sync.Mutex
	pager   *pager.Paginator

	sinkOnce sync.Once
	sink     delivery.Sink
	sinkErr  error

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local database and the API client and wires the rest of
// the application around them. Prompts read from in; output goes to out.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
	log := logging.New(os.Stderr, cfg.LogLevel)

	db, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	api, err := client.NewHTTPClient(ctx, client.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Cookies: metadata.NewSQLiteRepository(db),
		Logger:  log,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	a, err := newApp(ctx, cfg, api, queue.NewSQLiteRepository(db), log, in, out)
	if err != nil {
		api.Close()
		db.Close()
		return nil, err
	}
	a.db = db
	return a, nil
}

// newApp wires the components over an existing API client and queue store.
func newApp(ctx context.Context, cfg *config.Config, api client.Client, store upload.Store, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	if log == nil {
		log = logging.NopLogger{}
	}
	notifier := notify.NewWriterNotifier(out)

	a := &App{
		cfg:      cfg,
		log:      log,
		api:      api,
		notifier: notifier,
		pager:    pager.New(),
		reader:   bufio.NewReader(in),
		out:      out,
	}

	a.session = session.NewManager(api, notifier, log)
	a.session.OnChange(a.onSession)

	uploads, err := upload.New(ctx, api, upload.Options{
		Concurrency: cfg.UploadConcurrency,
		Store:       store,
		Sink:        a.session,
		Refresher:   a.session,
		Notifier:    notifier,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	a.uploads = uploads
	a.downloads = download.New(api, notifier, log)
	a.stats = stats.NewService(api, notifier)
	return a, nil
}

func (a *App) onSession(s session.Session) {
	var records []models.UploadRecord
	if s.User != nil {
		records = s.User.Uploads
	}
	a.pagerMu.Lock()
	a.pager.SetRecords(records)
	a.pagerMu.Unlock()
}

// downloadSink builds the delivery sink on first use so that an S3 target
// only loads AWS configuration when a download actually happens.
func (a *App) downloadSink(ctx context.Context) (delivery.Sink, error) {
	a.sinkOnce.Do(func() {
		a.sink, a.sinkErr = sinkFn(ctx, a.cfg.DownloadTarget, delivery.S3Settings{
			Region:    a.cfg.S3Region,
			Endpoint:  a.cfg.S3Endpoint,
			AccessKey: a.cfg.S3AccessKey,
			SecretKey: a.cfg.S3SecretKey,
		})
	})
	return a.sink, a.sinkErr
}

func (a *App) hasCredential() bool {
	return a.api.HasCredential()
}

// status is the prompt suffix: the user name once the session is known.
func (a *App) status() string {
	s := a.session.Snapshot()
	switch {
	case s.Status == session.StatusLoading:
		return "(...)"
	case s.User != nil:
		return fmt.Sprintf("(%s)", s.User.Username)
	default:
		return ""
	}
}

// Close releases the session, the API client and the database.
func (a *App) Close() error {
	a.session.Close()
	err := a.api.Close()
	if a.db != nil {
		if derr := a.db.Close(); err == nil {
			err = derr
		}
	}
	return err
}
