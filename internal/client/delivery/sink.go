// Package delivery stores downloaded files: in a local directory or in an
// S3-compatible bucket.
package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/vaultcli/internal/filex"
)

// Sink stores content under name and returns its final location.
type Sink interface {
	Deliver(ctx context.Context, name string, r io.Reader) (string, error)
}

// DirSink writes files into a local directory. Existing files are never
// overwritten: a free "name (n).ext" is chosen instead.
type DirSink struct {
	dir string
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &DirSink{dir: abs}, nil
}

func (s *DirSink) Dir() string { return s.dir }

// Deliver streams r into a temporary file and, once complete, renames it
// over a freshly reserved name, so a failed transfer leaves nothing behind
// and concurrent deliveries never share a destination.
func (s *DirSink) Deliver(ctx context.Context, name string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".vault-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	dst, err := filex.ReservePath(s.dir, filex.SafeName(name, "download"))
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("rename into %s: %w", dst, err)
	}
	committed = true
	return dst, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// S3Settings configures bucket delivery.
type S3Settings struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// FromTarget picks a sink for target: "s3://bucket/prefix" uploads to a
// bucket, anything else is a local directory.
func FromTarget(ctx context.Context, target string, s3cfg S3Settings) (Sink, error) {
	if rest, ok := strings.CutPrefix(target, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("target %q: missing bucket", target)
		}
		return NewS3Sink(ctx, bucket, prefix, s3cfg)
	}
	if target == "" {
		target = "download"
	}
	return NewDirSink(filepath.Clean(target))
}
