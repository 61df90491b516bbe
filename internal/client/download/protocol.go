// Package download implements share-link downloads.
//
// The decryption key lives in the link's fragment. It is sent to the server
// only in the body of the decrypt request: never in a path or query, never
// with the metadata request, and never to the logger.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/dmitrijs2005/vaultcli/internal/client/notify"
	"github.com/dmitrijs2005/vaultcli/internal/logging"
)

var (
	ErrInvalidLink    = errors.New("invalid share link")
	ErrInvalidKey     = errors.New("invalid key")
	ErrNotFound       = errors.New("file not found or has been removed")
	ErrTransferFailed = errors.New("download failed")
)

// API is the part of the REST client downloads use.
type API interface {
	FileInfo(ctx context.Context, fileID string) (*models.FileInfo, error)
	Download(ctx context.Context, fileID, key string) (io.ReadCloser, error)
}

// Sink stores downloaded content under name and returns where it went.
type Sink interface {
	Deliver(ctx context.Context, name string, r io.Reader) (string, error)
}

// Result describes a completed download.
type Result struct {
	Info     models.FileInfo
	Location string
}

type Protocol struct {
	api      API
	notifier notify.Notifier
	log      logging.Logger
}

func New(api API, notifier notify.Notifier, log logging.Logger) *Protocol {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Protocol{api: api, notifier: notifier, log: log.With("component", "download")}
}

// Resolve fetches the public metadata of fileID. Every failure is reported
// as ErrNotFound, which is terminal: there is nothing to retry.
func (p *Protocol) Resolve(ctx context.Context, fileID string) (models.FileInfo, error) {
	info, err := p.api.FileInfo(ctx, fileID)
	if err != nil {
		p.log.Debug(ctx, "file info failed", "file_id", fileID, "error", err)
		p.notifier.Notify(ctx, notify.Error("Failed to fetch file info", ErrNotFound.Error()))
		return models.FileInfo{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return *info, nil
}

// Fetch sends the decrypt request for link and streams the plaintext into
// sink under info's file name. Without a key it fails with ErrInvalidKey
// before any request is made.
func (p *Protocol) Fetch(ctx context.Context, link ShareLink, info models.FileInfo, sink Sink) (string, error) {
	if !link.HasKey() {
		p.notifier.Notify(ctx, notify.Error("Error", "Invalid key!"))
		return "", ErrInvalidKey
	}

	body, err := p.api.Download(ctx, link.FileID, link.key)
	if err != nil {
		return "", p.transferFailed(ctx, link, err)
	}
	defer body.Close()

	name := info.FileName
	if name == "" {
		name = link.FileID
	}
	loc, err := sink.Deliver(ctx, name, body)
	if err != nil {
		return "", p.transferFailed(ctx, link, err)
	}
	p.log.Info(ctx, "download finished", "link", link, "location", loc)
	return loc, nil
}

func (p *Protocol) transferFailed(ctx context.Context, link ShareLink, err error) error {
	p.log.Warn(ctx, "download failed", "link", link, "error", err)
	p.notifier.Notify(ctx, notify.Error("Download failed", "the file could not be downloaded or decrypted"))
	return fmt.Errorf("%w: %w", ErrTransferFailed, err)
}

// Download runs the whole protocol for a raw link: parse, key check,
// metadata, decrypt. The key check comes first so a link without a key
// causes no network traffic at all.
func (p *Protocol) Download(ctx context.Context, raw string, sink Sink) (Result, error) {
	link, err := ParseShareLink(raw)
	if err != nil {
		p.notifier.Notify(ctx, notify.Error("Error", "Invalid link!"))
		return Result{}, err
	}
	if !link.HasKey() {
		p.notifier.Notify(ctx, notify.Error("Error", "Invalid key!"))
		return Result{}, ErrInvalidKey
	}

	info, err := p.Resolve(ctx, link.FileID)
	if err != nil {
		return Result{}, err
	}
	loc, err := p.Fetch(ctx, link, info, sink)
	if err != nil {
		return Result{Info: info}, err
	}
	return Result{Info: info, Location: loc}, nil
}
