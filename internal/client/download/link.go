package download

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
)

const redacted = "[REDACTED]"

// ShareLink is a parsed share link: the file id from the last path segment
// and the decryption key from the fragment. The key is unexported and every
// formatting path redacts it.
type ShareLink struct {
	FileID string
	key    string
}

// ParseShareLink accepts a full link (https://host/download/{fileId}#key) or
// the short form {fileId}#key. The key is taken from the fragment only; a
// query string is ignored. A missing key is not an error here: it is
// reported by HasKey so the caller decides when to fail.
func ParseShareLink(raw string) (ShareLink, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ShareLink{}, fmt.Errorf("%w: empty link", ErrInvalidLink)
	}
	u, err := url.Parse(raw)
	if err != nil {
		// url errors quote the offending text, which may be part of the key.
		return ShareLink{}, fmt.Errorf("%w: malformed link", ErrInvalidLink)
	}

	p := strings.TrimRight(u.Path, "/")
	id := path.Base(p)
	if p == "" || id == "." || id == "/" {
		return ShareLink{}, fmt.Errorf("%w: no file id", ErrInvalidLink)
	}
	// The key is sent exactly as it appears in the link.
	return ShareLink{FileID: id, key: u.EscapedFragment()}, nil
}

// NewShareLink builds a link from its parts.
func NewShareLink(fileID, key string) ShareLink {
	return ShareLink{FileID: fileID, key: key}
}

// HasKey reports whether the link carries a non-empty fragment key.
func (l ShareLink) HasKey() bool { return l.key != "" }

func (l ShareLink) String() string {
	if !l.HasKey() {
		return l.FileID
	}
	return l.FileID + "#" + redacted
}

func (l ShareLink) GoString() string {
	return fmt.Sprintf("download.ShareLink{FileID:%q, key:%s}", l.FileID, redacted)
}

func (l ShareLink) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("file_id", l.FileID),
		slog.Bool("has_key", l.HasKey()),
	)
}
