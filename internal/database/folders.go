package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"folio/internal/apperr"

	"github.com/google/uuid"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const folderColumns = `f.id, f.name, f.parent_id, f.created_at, f.updated_at, f.deleted_at,
	(SELECT COUNT(*) FROM images i WHERE i.folder_id = f.id AND i.deleted_at IS NULL)`

func scanFolder(scan func(...any) error) (*Folder, error) {
	var f Folder
	var parent sql.NullString
	var created, updated int64
	var deleted sql.NullInt64
	if err := scan(&f.ID, &f.Name, &parent, &created, &updated, &deleted, &f.ItemCount); err != nil {
		return nil, err
	}
	if parent.Valid {
		f.ParentID = &parent.String
	}
	f.CreatedAt = fromNanos(created)
	f.UpdatedAt = fromNanos(updated)
	f.DeletedAt = nullTime(deleted)
	return &f, nil
}

// liveFolder checks that id names a folder outside the trash.
func liveFolder(ctx context.Context, q querier, op, id string) error {
	var deleted sql.NullInt64
	err := q.QueryRowContext(ctx, "SELECT deleted_at FROM folders WHERE id = ?", id).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.NotFound, op, "folder %s not found", id)
	}
	if err != nil {
		return storageErr(op, err)
	}
	if deleted.Valid {
		return apperr.New(apperr.InvalidOperation, op, "folder %s is in the trash", id)
	}
	return nil
}

func cleanName(op, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.New(apperr.InvalidOperation, op, "folder name cannot be empty")
	}
	return name, nil
}

// CreateFolder creates a folder under parentID, or at the root when
// parentID is nil. The parent must exist and not be in the trash.
func (d *Database) CreateFolder(ctx context.Context, name string, parentID *string) (*Folder, error) {
	const op = "create folder"
	done := observeQuery("create_folder")

	name, err := cleanName(op, name)
	if err != nil {
		done(err)
		return nil, err
	}

	id := uuid.NewString()
	err = d.WithTx(ctx, func(tx *sql.Tx) error {
		if parentID != nil {
			if err := liveFolder(ctx, tx, op, *parentID); err != nil {
				return err
			}
		}
		now := d.timestamp()
		_, err := tx.ExecContext(ctx,
			"INSERT INTO folders (id, name, parent_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			id, name, parentID, now, now)
		return err
	})
	done(err)
	if err != nil {
		return nil, err
	}
	return d.GetFolder(ctx, id)
}

// GetFolder returns a folder whether or not it is in the trash.
func (d *Database) GetFolder(ctx context.Context, id string) (*Folder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+folderColumns+" FROM folders f WHERE f.id = ?", id)
	f, err := scanFolder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "get folder", "folder %s not found", id)
	}
	if err != nil {
		return nil, storageErr("get folder", err)
	}
	return f, nil
}

// RenameFolder changes a live folder's name.
func (d *Database) RenameFolder(ctx context.Context, id, name string) error {
	const op = "rename folder"
	done := observeQuery("rename_folder")

	name, err := cleanName(op, name)
	if err != nil {
		done(err)
		return err
	}

	err = d.WithTx(ctx, func(tx *sql.Tx) error {
		if err := liveFolder(ctx, tx, op, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "UPDATE folders SET name = ?, updated_at = ? WHERE id = ?",
			name, d.timestamp(), id)
		return err
	})
	done(err)
	return err
}

// ListFolders returns live folders, newest first.
func (d *Database) ListFolders(ctx context.Context) ([]Folder, error) {
	done := observeQuery("list_folders")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+folderColumns+`
		FROM folders f
		WHERE f.deleted_at IS NULL
		ORDER BY f.created_at DESC, f.id`)
	if err != nil {
		done(err)
		return nil, storageErr("list folders", err)
	}
	defer func() { _ = rows.Close() }()

	folders := []Folder{}
	for rows.Next() {
		f, err := scanFolder(rows.Scan)
		if err != nil {
			done(err)
			return nil, storageErr("list folders", err)
		}
		folders = append(folders, *f)
	}
	err = rows.Err()
	done(err)
	if err != nil {
		return nil, storageErr("list folders", err)
	}
	return folders, nil
}

// SoftDeleteFolder moves a folder to the trash. Child folders and images
// keep their own state.
func (d *Database) SoftDeleteFolder(ctx context.Context, id string) error {
	done := observeQuery("soft_delete_folder")
	err := d.setDeleted(ctx, "folders", "folder", "soft delete folder", id, true)
	done(err)
	return err
}

// RestoreFolder takes a folder out of the trash.
func (d *Database) RestoreFolder(ctx context.Context, id string) error {
	done := observeQuery("restore_folder")
	err := d.setDeleted(ctx, "folders", "folder", "restore folder", id, false)
	done(err)
	return err
}

// HardDeleteFolder removes a folder row. It refuses while any image
// (trashed or not) or child folder still references the folder.
func (d *Database) HardDeleteFolder(ctx context.Context, id string) error {
	const op = "hard delete folder"
	done := observeQuery("hard_delete_folder")

	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM folders WHERE id = ?", id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.New(apperr.NotFound, op, "folder %s not found", id)
		}

		var images, children int
		err := tx.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM images WHERE folder_id = ?),
				(SELECT COUNT(*) FROM folders WHERE parent_id = ?)
		`, id, id).Scan(&images, &children)
		if err != nil {
			return err
		}
		if images > 0 || children > 0 {
			return apperr.New(apperr.InvalidOperation, op,
				"folder not empty: %d images, %d folders", images, children)
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id)
		return err
	})
	done(err)
	return err
}

// setDeleted toggles deleted_at on one row of table. Trashing a trashed row
// or restoring a live one is an InvalidOperation.
func (d *Database) setDeleted(ctx context.Context, table, noun, op, id string, trash bool) error {
	return d.WithTx(ctx, func(tx *sql.Tx) error {
		var deleted sql.NullInt64
		err := tx.QueryRowContext(ctx, "SELECT deleted_at FROM "+table+" WHERE id = ?", id).Scan(&deleted)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.NotFound, op, "%s %s not found", noun, id)
		}
		if err != nil {
			return err
		}

		switch {
		case trash && deleted.Valid:
			return apperr.New(apperr.InvalidOperation, op, "%s %s is already in the trash", noun, id)
		case !trash && !deleted.Valid:
			return apperr.New(apperr.InvalidOperation, op, "%s %s is not in the trash", noun, id)
		}

		var value any
		if trash {
			value = d.timestamp()
		}
		_, err = tx.ExecContext(ctx, "UPDATE "+table+" SET deleted_at = ? WHERE id = ?", value, id)
		return err
	})
}
