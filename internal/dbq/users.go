// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package dbq

import (
	"context"
	"time"

	"familybudget/internal/models"
)

type CreateUserParams struct {
	Username     string
	DisplayName  string
	PasswordHash string
	Role         string
}

const userColumns = `id, username, display_name, password_hash, role, created_at`

func scanUser(row scanner) (models.User, error) {
	var (
		u         models.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Role, &createdAt); err != nil {
		return models.User{}, err
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error) {
	row := q.queryRow(ctx, `INSERT INTO users (username, display_name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		arg.Username, arg.DisplayName, arg.PasswordHash, arg.Role, q.timestamp())
	return scanUser(row)
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	return u, notFound(err)
}

func (q *Queries) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	return u, notFound(err)
}

func (q *Queries) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := q.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return q.execAffected(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
}

func (q *Queries) UpdateUserRole(ctx context.Context, id int64, role string) error {
	return q.execAffected(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
}

type CreateSessionParams struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	now := q.timestamp()
	_, err := q.exec(ctx, `INSERT INTO sessions (id, user_id, expires_at, created_at, last_seen_at) VALUES (?, ?, ?, ?, ?)`,
		arg.ID, arg.UserID, arg.ExpiresAt.UTC().Format(time.RFC3339), now, now)
	return err
}

// GetSession returns a live session joined with its user.
func (q *Queries) GetSession(ctx context.Context, id string) (models.Session, error) {
	var (
		s         models.Session
		expiresAt string
	)
	err := q.queryRow(ctx, `SELECT s.id, s.user_id, u.username, u.display_name, u.role, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.id = ? AND s.expires_at > ?`, id, q.timestamp()).
		Scan(&s.ID, &s.UserID, &s.Username, &s.DisplayName, &s.Role, &expiresAt)
	if err != nil {
		return models.Session{}, notFound(err)
	}
	s.ExpiresAt = parseTime(expiresAt)
	return s, nil
}

func (q *Queries) UpdateSessionLastSeen(ctx context.Context, id string) error {
	_, err := q.exec(ctx, `UPDATE sessions SET last_seen_at = ? WHERE id = ?`, q.timestamp(), id)
	return err
}

func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.exec(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (q *Queries) DeleteUserSessions(ctx context.Context, userID int64, keep string) error {
	_, err := q.exec(ctx, `DELETE FROM sessions WHERE user_id = ? AND id <> ?`, userID, keep)
	return err
}

func (q *Queries) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, q.timestamp())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
