// Package upload manages the local upload queue and submits it to the vault
// with bounded concurrency.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/dmitrijs2005/vaultcli/internal/client/notify"
	"github.com/dmitrijs2005/vaultcli/internal/logging"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPartialUpload means some queued files were uploaded and some were not.
	ErrPartialUpload = errors.New("some uploads failed")
	// ErrUploadFailed means no queued file was uploaded.
	ErrUploadFailed = errors.New("upload failed")
	// ErrEmptyResponse is recorded for a file the server accepted without
	// returning a descriptor; the file stays queued.
	ErrEmptyResponse = errors.New("server returned no file descriptor")
	ErrInvalidFile   = errors.New("invalid file")
)

const DefaultConcurrency = 4

// Uploader sends one file. client.HTTPClient implements it.
type Uploader interface {
	Upload(ctx context.Context, name, mimeType string, content io.Reader) ([]models.UploadedFile, error)
}

// Sink receives the optimistic record for each successful upload.
type Sink interface {
	AppendUpload(rec models.UploadRecord) bool
}

// Refresher reconciles the optimistic records with the server.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Store persists the queue across runs. queue.SQLiteRepository implements it.
type Store interface {
	Save(ctx context.Context, files ...models.QueuedFile) error
	Delete(ctx context.Context, localIndexes ...uint64) error
	Load(ctx context.Context) ([]models.QueuedFile, error)
	MaxIndex(ctx context.Context) (uint64, error)
}

type Options struct {
	Concurrency int
	Store       Store
	Sink        Sink
	Refresher   Refresher
	Notifier    notify.Notifier
	Logger      logging.Logger
}

// Failure is a queued file whose upload did not succeed.
type Failure struct {
	File models.QueuedFile
	Err  error
}

// Report is the outcome of one UploadAll call.
type Report struct {
	Uploaded []models.UploadedFile
	Failed   []Failure
}

// Orchestrator owns the upload queue. Entries are keyed by a local index
// drawn from a strictly increasing counter; completions are matched by that
// index only, never by position or arrival order.
type Orchestrator struct {
	api      Uploader
	store    Store
	sink     Sink
	refresh  Refresher
	notifier notify.Notifier
	log      logging.Logger
	limit    int

	mu      sync.Mutex
	next    uint64
	entries []models.QueuedFile
}

// nowFn is a test seam for upload timestamps.
var nowFn = time.Now

// New builds an Orchestrator. With a Store, the persisted queue is loaded
// and the index counter continues above the highest stored index.
func New(ctx context.Context, api Uploader, opts Options) (*Orchestrator, error) {
	o := &Orchestrator{
		api:      api,
		store:    opts.Store,
		sink:     opts.Sink,
		refresh:  opts.Refresher,
		notifier: opts.Notifier,
		log:      opts.Logger,
		limit:    opts.Concurrency,
	}
	if o.notifier == nil {
		o.notifier = notify.Nop{}
	}
	if o.log == nil {
		o.log = logging.NopLogger{}
	}
	o.log = o.log.With("component", "upload")
	if o.limit <= 0 {
		o.limit = DefaultConcurrency
	}

	if o.store != nil {
		files, err := o.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load upload queue: %w", err)
		}
		top, err := o.store.MaxIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("load upload queue: %w", err)
		}
		o.entries = files
		o.next = top
	}
	return o, nil
}

// Enqueue appends files to the queue, giving each a fresh local index.
// Files with the same name stay distinct entries. With a Store the files
// are persisted first; when that fails nothing is queued.
func (o *Orchestrator) Enqueue(ctx context.Context, files ...LocalFile) ([]models.QueuedFile, error) {
	if len(files) == 0 {
		return nil, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	added := make([]models.QueuedFile, 0, len(files))
	for i, f := range files {
		added = append(added, models.QueuedFile{
			LocalIndex: o.next + uint64(i) + 1,
			Path:       f.Path,
			Name:       f.Name,
			Size:       f.Size,
			MimeType:   f.MimeType,
		})
	}

	if o.store != nil {
		if err := o.store.Save(ctx, added...); err != nil {
			o.log.Warn(ctx, "could not persist queued files", "error", err)
			return nil, fmt.Errorf("persist upload queue: %w", err)
		}
	}
	o.next += uint64(len(added))
	o.entries = append(o.entries, added...)
	return added, nil
}

// Dequeue removes the entry with idx. It returns false when there is no
// such entry or it is being uploaded.
func (o *Orchestrator) Dequeue(ctx context.Context, idx uint64) bool {
	o.mu.Lock()
	i := o.indexOf(idx)
	if i < 0 || o.entries[i].Uploading {
		o.mu.Unlock()
		return false
	}
	o.entries = slices.Delete(o.entries, i, i+1)
	o.mu.Unlock()

	o.forget(ctx, idx)
	return true
}

// Queue returns a copy of the queue in enqueue order.
func (o *Orchestrator) Queue() []models.QueuedFile {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.entries)
}

// Len returns the number of queued entries.
func (o *Orchestrator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

func (o *Orchestrator) indexOf(idx uint64) int {
	return slices.IndexFunc(o.entries, func(q models.QueuedFile) bool { return q.LocalIndex == idx })
}

func (o *Orchestrator) forget(ctx context.Context, idx ...uint64) {
	if o.store == nil || len(idx) == 0 {
		return
	}
	if err := o.store.Delete(ctx, idx...); err != nil {
		o.log.Warn(ctx, "could not update persisted queue", "error", err)
	}
}

// claim flags every idle entry as uploading and returns them. Entries
// already claimed by an overlapping UploadAll are skipped.
func (o *Orchestrator) claim() []models.QueuedFile {
	o.mu.Lock()
	defer o.mu.Unlock()
	var batch []models.QueuedFile
	for i := range o.entries {
		if o.entries[i].Uploading {
			continue
		}
		o.entries[i].Uploading = true
		batch = append(batch, o.entries[i])
	}
	return batch
}

// complete removes a successfully uploaded entry.
func (o *Orchestrator) complete(idx uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i := o.indexOf(idx); i >= 0 {
		o.entries = slices.Delete(o.entries, i, i+1)
	}
}

// release makes a failed entry available again.
func (o *Orchestrator) release(idx uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i := o.indexOf(idx); i >= 0 {
		o.entries[i].Uploading = false
	}
}

// UploadAll uploads every idle queued file and waits for all of them.
//
// Successes are committed: recorded in the Sink and removed from the queue.
// Failures stay queued. When anything failed a single notification is sent
// and ErrPartialUpload or ErrUploadFailed is returned alongside the Report.
// After at least one success the Refresher reconciles the session.
func (o *Orchestrator) UploadAll(ctx context.Context) (Report, error) {
	batch := o.claim()
	if len(batch) == 0 {
		return Report{}, nil
	}
	o.log.Info(ctx, "uploading", "files", len(batch), "concurrency", o.limit)

	var (
		mu     sync.Mutex
		report Report
	)
	g := new(errgroup.Group)
	g.SetLimit(o.limit)

	for _, q := range batch {
		g.Go(func() error {
			up, err := o.uploadOne(ctx, q)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.release(q.LocalIndex)
				report.Failed = append(report.Failed, Failure{File: q, Err: err})
				o.log.Warn(ctx, "upload failed", "local_index", q.LocalIndex, "name", q.Name, "error", err)
				return nil
			}
			o.complete(q.LocalIndex)
			report.Uploaded = append(report.Uploaded, up)
			if o.sink != nil {
				o.sink.AppendUpload(recordFor(q, up))
			}
			o.log.Debug(ctx, "upload finished", "local_index", q.LocalIndex, "file_id", up.ID)
			return nil
		})
	}
	// Every task returns nil; failures are collected in the report.
	_ = g.Wait()

	done := make([]uint64, 0, len(report.Uploaded))
	for _, up := range report.Uploaded {
		done = append(done, up.LocalIndex)
	}
	o.forget(ctx, done...)

	if len(report.Uploaded) > 0 && o.refresh != nil {
		if err := o.refresh.Refresh(ctx); err != nil {
			o.log.Warn(ctx, "refresh after upload failed", "error", err)
		}
	}

	if len(report.Failed) == 0 {
		return report, nil
	}
	err := ErrPartialUpload
	if len(report.Uploaded) == 0 {
		err = ErrUploadFailed
	}
	o.notifier.Notify(ctx, notify.Error("Upload failed",
		fmt.Sprintf("%d of %d file(s) could not be uploaded and remain queued", len(report.Failed), len(batch))))
	return report, err
}

func (o *Orchestrator) uploadOne(ctx context.Context, q models.QueuedFile) (models.UploadedFile, error) {
	f, err := q.Open()
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	defer f.Close()

	files, err := o.api.Upload(ctx, q.Name, q.MimeType, f)
	if err != nil {
		return models.UploadedFile{}, err
	}
	if len(files) == 0 {
		return models.UploadedFile{}, ErrEmptyResponse
	}
	up := files[0]
	up.LocalIndex = q.LocalIndex
	return up, nil
}

func recordFor(q models.QueuedFile, up models.UploadedFile) models.UploadRecord {
	name := up.Name
	if name == "" {
		name = q.Name
	}
	return models.UploadRecord{
		FileID:     up.ID,
		FileName:   name,
		Size:       q.Size,
		UploadDate: models.MillisOf(nowFn()),
	}
}

// EnqueuePaths stats paths and enqueues the valid ones. Invalid paths are
// reported in the returned error; the valid ones are still queued.
func (o *Orchestrator) EnqueuePaths(ctx context.Context, paths ...string) ([]models.QueuedFile, error) {
	files, statErr := StatAll(paths...)
	added, err := o.Enqueue(ctx, files...)
	return added, errors.Join(statErr, err)
}
