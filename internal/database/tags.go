package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"folio/internal/apperr"
)

// AddTag attaches a tag to an image, creating the tag if needed. Adding a
// tag the image already has is a no-op.
func (d *Database) AddTag(ctx context.Context, imageID, name string) error {
	const op = "add tag"
	done := observeQuery("add_tag")

	name = strings.TrimSpace(name)
	if name == "" {
		err := apperr.New(apperr.InvalidOperation, op, "tag name cannot be empty")
		done(err)
		return err
	}

	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		if err := imageExists(ctx, tx, op, imageID); err != nil {
			return err
		}

		now := d.timestamp()
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO tags (name, created_at) VALUES (?, ?)", name, now); err != nil {
			return err
		}

		var tagID int64
		if err := tx.QueryRowContext(ctx,
			"SELECT id FROM tags WHERE name = ? COLLATE NOCASE", name).Scan(&tagID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO image_tags (image_id, tag_id, created_at) VALUES (?, ?, ?)",
			imageID, tagID, now)
		return err
	})
	done(err)
	return err
}

// RemoveTag detaches a tag from an image. Tags left without images are
// deleted.
func (d *Database) RemoveTag(ctx context.Context, imageID, name string) error {
	done := observeQuery("remove_tag")

	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM image_tags
			WHERE image_id = ? AND tag_id = (SELECT id FROM tags WHERE name = ? COLLATE NOCASE)
		`, imageID, strings.TrimSpace(name)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"DELETE FROM tags WHERE id NOT IN (SELECT DISTINCT tag_id FROM image_tags)")
		return err
	})
	done(err)
	return err
}

// ListTags returns all tags with the number of live images carrying them.
func (d *Database) ListTags(ctx context.Context) ([]Tag, error) {
	done := observeQuery("list_tags")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at,
			(SELECT COUNT(*) FROM image_tags it JOIN images i ON i.id = it.image_id
			 WHERE it.tag_id = t.id AND i.deleted_at IS NULL)
		FROM tags t
		ORDER BY t.name COLLATE NOCASE
	`)
	if err != nil {
		done(err)
		return nil, storageErr("list tags", err)
	}
	defer func() { _ = rows.Close() }()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		var created int64
		if err := rows.Scan(&t.ID, &t.Name, &created, &t.ItemCount); err != nil {
			done(err)
			return nil, storageErr("list tags", err)
		}
		t.CreatedAt = fromNanos(created)
		tags = append(tags, t)
	}
	err = rows.Err()
	done(err)
	if err != nil {
		return nil, storageErr("list tags", err)
	}
	return tags, nil
}

// SetNote stores the markdown note of an image. An empty note removes it.
func (d *Database) SetNote(ctx context.Context, imageID, markdown string) error {
	const op = "set note"
	done := observeQuery("set_note")

	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		if err := imageExists(ctx, tx, op, imageID); err != nil {
			return err
		}
		if strings.TrimSpace(markdown) == "" {
			_, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE image_id = ?", imageID)
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notes (image_id, markdown, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(image_id) DO UPDATE SET markdown = excluded.markdown, updated_at = excluded.updated_at
		`, imageID, markdown, d.timestamp())
		return err
	})
	done(err)
	return err
}

// GetNote returns the note of an image, or "" when it has none.
func (d *Database) GetNote(ctx context.Context, imageID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := imageExists(ctx, d.db, "get note", imageID); err != nil {
		return "", err
	}

	var markdown string
	err := d.db.QueryRowContext(ctx, "SELECT markdown FROM notes WHERE image_id = ?", imageID).Scan(&markdown)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr("get note", err)
	}
	return markdown, nil
}

func imageExists(ctx context.Context, q querier, op, id string) error {
	var exists bool
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM images WHERE id = ?", id).Scan(&exists); err != nil {
		return storageErr(op, err)
	}
	if !exists {
		return apperr.New(apperr.NotFound, op, "image %s not found", id)
	}
	return nil
}
