package models

import (
	"io"
	"os"
)

// UploadRecord is a server-confirmed upload. FileID is unique within a
// user's collection.
type UploadRecord struct {
	FileID         string `json:"fileId"`
	UploaderID     int64  `json:"uploaderId"`
	FileName       string `json:"fileName"`
	Size           int64  `json:"size"`
	UploadDate     Millis `json:"uploadDate"`
	TotalDownloads int64  `json:"totalDownloads"`
	LastDownload   Millis `json:"lastDownload"`
}

// FileInfo is the public metadata served for a share link. It has the same
// shape as an upload record.
type FileInfo = UploadRecord

// UploadedFile is one element of the descriptor array returned by the upload
// endpoint. URL is the share link, fragment key included; it is shown to the
// user once and never logged.
type UploadedFile struct {
	LocalIndex uint64 `json:"-"`
	Name       string `json:"name"`
	ID         string `json:"id"`
	URL        string `json:"url"`
}

// QueuedFile is a locally selected file awaiting upload. LocalIndex is
// unique within the queue and is the only key used to match completions.
type QueuedFile struct {
	LocalIndex uint64
	Path       string
	Name       string
	Size       int64
	MimeType   string
	// Uploading is set while a request for this entry is in flight.
	Uploading bool
}

// Open returns the raw content of the file.
func (q QueuedFile) Open() (io.ReadCloser, error) {
	return os.Open(q.Path)
}
