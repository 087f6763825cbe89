// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package dbq

import (
	"context"

	"familybudget/internal/models"
)

const noteColumns = `n.id, n.title, n.content, n.pinned, n.color, n.created_by, COALESCE(u.display_name, ''),
	n.created_at, n.updated_at`

const noteFrom = ` FROM notes n LEFT JOIN users u ON u.id = n.created_by`

func scanNote(row scanner) (models.Note, error) {
	var (
		n                    models.Note
		createdAt, updatedAt string
	)
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Pinned, &n.Color, &n.CreatedBy, &n.Author, &createdAt, &updatedAt)
	if err != nil {
		return models.Note{}, err
	}
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return n, nil
}

type CreateNoteParams struct {
	Title     string
	Content   string
	Pinned    bool
	Color     string
	CreatedBy int64
}

func (q *Queries) CreateNote(ctx context.Context, arg CreateNoteParams) (int64, error) {
	now := q.timestamp()
	var id int64
	err := q.queryRow(ctx, `INSERT INTO notes (title, content, pinned, color, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		arg.Title, arg.Content, arg.Pinned, arg.Color, arg.CreatedBy, now, now).Scan(&id)
	return id, err
}

func (q *Queries) GetNote(ctx context.Context, id int64) (models.Note, error) {
	n, err := scanNote(q.queryRow(ctx, `SELECT `+noteColumns+noteFrom+` WHERE n.id = ?`, id))
	return n, notFound(err)
}

// ListNotes returns pinned notes first, then the most recently updated.
func (q *Queries) ListNotes(ctx context.Context) ([]models.Note, error) {
	rows, err := q.query(ctx, `SELECT `+noteColumns+noteFrom+` ORDER BY n.pinned DESC, n.updated_at DESC, n.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notes []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

type UpdateNoteParams struct {
	ID      int64
	Title   string
	Content string
	Pinned  bool
	Color   string
}

func (q *Queries) UpdateNote(ctx context.Context, arg UpdateNoteParams) error {
	return q.execAffected(ctx, `UPDATE notes SET title = ?, content = ?, pinned = ?, color = ?, updated_at = ? WHERE id = ?`,
		arg.Title, arg.Content, arg.Pinned, arg.Color, q.timestamp(), arg.ID)
}

func (q *Queries) SetNotePinned(ctx context.Context, id int64, pinned bool) error {
	return q.execAffected(ctx, `UPDATE notes SET pinned = ?, updated_at = ? WHERE id = ?`, pinned, q.timestamp(), id)
}

func (q *Queries) DeleteNote(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM notes WHERE id = ?`, id)
}
