package client

import (
	"context"
	"io"

	"github.com/dmitrijs2005/vaultcli/internal/client/models"
)

// Client is the REST surface of the vault API. The session credential is a
// cookie carried automatically by the implementation.
type Client interface {
	Close() error
	Account(ctx context.Context) (*models.User, error)
	Login(ctx context.Context, email string, password []byte) error
	Register(ctx context.Context, username, email string, password []byte) error
	Logout(ctx context.Context) error
	Upload(ctx context.Context, name, mimeType string, content io.Reader) ([]models.UploadedFile, error)
	Delete(ctx context.Context, fileID string) error
	FileInfo(ctx context.Context, fileID string) (*models.FileInfo, error)
	Download(ctx context.Context, fileID, key string) (io.ReadCloser, error)
	Stats(ctx context.Context) (*models.Stats, error)
	UpdateUsername(ctx context.Context, username string) error
	UpdateAvatar(ctx context.Context, content io.Reader) error
	Avatar(ctx context.Context) (io.ReadCloser, string, error)
	HasCredential() bool
}
