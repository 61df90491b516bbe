package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// LocalFile describes a file selected for upload.
type LocalFile struct {
	Path     string
	Name     string
	Size     int64
	MimeType string
}

const sniffLen = 512

// Stat resolves path into a LocalFile: its base name, size and MIME type.
// Directories and unreadable paths are rejected with ErrInvalidFile.
func Stat(path string) (LocalFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if fi.IsDir() {
		return LocalFile{}, fmt.Errorf("%w: %s is a directory", ErrInvalidFile, path)
	}
	name := filepath.Base(path)
	return LocalFile{Path: path, Name: name, Size: fi.Size(), MimeType: DetectMIME(path, name)}, nil
}

// StatAll resolves every path, skipping and reporting the invalid ones.
func StatAll(paths ...string) ([]LocalFile, error) {
	var (
		files []LocalFile
		errs  []error
	)
	for _, p := range paths {
		f, err := Stat(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, f)
	}
	return files, errors.Join(errs...)
}

// DetectMIME guesses a content type from the extension, falling back to
// sniffing the first bytes of the file.
func DetectMIME(path, name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "application/octet-stream"
	}
	return http.DetectContentType(buf[:n])
}
