// Package queue persists the local upload queue so files added in one run
// can be uploaded in a later one.
package queue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/dmitrijs2005/vaultcli/internal/dbx"
)

type Repository interface {
	Save(ctx context.Context, files ...models.QueuedFile) error
	Delete(ctx context.Context, localIndexes ...uint64) error
	Load(ctx context.Context) ([]models.QueuedFile, error)
	MaxIndex(ctx context.Context) (uint64, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts files in one transaction. Re-saving an index overwrites it.
func (r *SQLiteRepository) Save(ctx context.Context, files ...models.QueuedFile) error {
	if len(files) == 0 {
		return nil
	}
	err := dbx.WithTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		for _, f := range files {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO upload_queue (local_index, path, name, size, mime_type)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(local_index) DO UPDATE SET
					path = excluded.path, name = excluded.name,
					size = excluded.size, mime_type = excluded.mime_type
			`, int64(f.LocalIndex), f.Path, f.Name, f.Size, f.MimeType)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save queued files: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, localIndexes ...uint64) error {
	if len(localIndexes) == 0 {
		return nil
	}
	err := dbx.WithTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		for _, idx := range localIndexes {
			if _, err := tx.ExecContext(ctx, `DELETE FROM upload_queue WHERE local_index = ?`, int64(idx)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete queued files: %w", err)
	}
	return nil
}

// Load returns the queue in insertion order.
func (r *SQLiteRepository) Load(ctx context.Context) ([]models.QueuedFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT local_index, path, name, size, mime_type
		FROM upload_queue ORDER BY local_index`)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	defer rows.Close()

	var files []models.QueuedFile
	for rows.Next() {
		var (
			f   models.QueuedFile
			idx int64
		)
		if err := rows.Scan(&idx, &f.Path, &f.Name, &f.Size, &f.MimeType); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		f.LocalIndex = uint64(idx)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue rows: %w", err)
	}
	return files, nil
}

// MaxIndex returns the highest persisted local index, or 0 for an empty queue.
func (r *SQLiteRepository) MaxIndex(ctx context.Context) (uint64, error) {
	var top sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(local_index) FROM upload_queue`).Scan(&top); err != nil {
		return 0, fmt.Errorf("max queue index: %w", err)
	}
	if !top.Valid {
		return 0, nil
	}
	return uint64(top.Int64), nil
}
