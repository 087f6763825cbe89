// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package dbq

import (
	"context"

	"familybudget/internal/models"
)

const eventColumns = `id, title, date, time, description, kind, created_by, created_at`

func scanEvent(row scanner) (models.Event, error) {
	var (
		e         models.Event
		createdAt string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Date, &e.Time, &e.Description, &e.Kind, &e.CreatedBy, &createdAt); err != nil {
		return models.Event{}, err
	}
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

type CreateEventParams struct {
	Title       string
	Date        string
	Time        string
	Description string
	Kind        models.EventKind
	CreatedBy   int64
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (int64, error) {
	var id int64
	err := q.queryRow(ctx, `INSERT INTO events (title, date, time, description, kind, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		arg.Title, arg.Date, arg.Time, arg.Description, string(arg.Kind), arg.CreatedBy, q.timestamp()).Scan(&id)
	return id, err
}

func (q *Queries) GetEvent(ctx context.Context, id int64) (models.Event, error) {
	e, err := scanEvent(q.queryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	return e, notFound(err)
}

// ListEvents returns events with from <= date < to, in calendar order.
func (q *Queries) ListEvents(ctx context.Context, from, to string) ([]models.Event, error) {
	rows, err := q.query(ctx, `SELECT `+eventColumns+` FROM events WHERE date >= ? AND date < ? ORDER BY date, time, id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type UpdateEventParams struct {
	ID          int64
	Title       string
	Date        string
	Time        string
	Description string
	Kind        models.EventKind
}

func (q *Queries) UpdateEvent(ctx context.Context, arg UpdateEventParams) error {
	return q.execAffected(ctx, `UPDATE events SET title = ?, date = ?, time = ?, description = ?, kind = ? WHERE id = ?`,
		arg.Title, arg.Date, arg.Time, arg.Description, string(arg.Kind), arg.ID)
}

func (q *Queries) DeleteEvent(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM events WHERE id = ?`, id)
}

const shiftColumns = `id, person, date, shift, start_time, end_time, note, created_by, created_at`

func scanShift(row scanner) (models.WorkShift, error) {
	var (
		s         models.WorkShift
		createdAt string
	)
	if err := row.Scan(&s.ID, &s.Person, &s.Date, &s.Shift, &s.StartTime, &s.EndTime, &s.Note, &s.CreatedBy, &createdAt); err != nil {
		return models.WorkShift{}, err
	}
	s.CreatedAt = parseTime(createdAt)
	return s, nil
}

type CreateShiftParams struct {
	Person    string
	Date      string
	Shift     models.ShiftKind
	StartTime string
	EndTime   string
	Note      string
	CreatedBy int64
}

func (q *Queries) CreateShift(ctx context.Context, arg CreateShiftParams) (int64, error) {
	var id int64
	err := q.queryRow(ctx, `INSERT INTO work_shifts (person, date, shift, start_time, end_time, note, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		arg.Person, arg.Date, string(arg.Shift), arg.StartTime, arg.EndTime, arg.Note, arg.CreatedBy, q.timestamp()).Scan(&id)
	return id, err
}

func (q *Queries) GetShift(ctx context.Context, id int64) (models.WorkShift, error) {
	s, err := scanShift(q.queryRow(ctx, `SELECT `+shiftColumns+` FROM work_shifts WHERE id = ?`, id))
	return s, notFound(err)
}

// ListShifts returns shifts with from <= date < to. An empty person lists
// everyone.
func (q *Queries) ListShifts(ctx context.Context, from, to, person string) ([]models.WorkShift, error) {
	query := `SELECT ` + shiftColumns + ` FROM work_shifts WHERE date >= ? AND date < ?`
	args := []any{from, to}
	if person != "" {
		query += ` AND person = ?`
		args = append(args, person)
	}
	query += ` ORDER BY date, person, id`
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shifts []models.WorkShift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

func (q *Queries) ListShiftPeople(ctx context.Context) ([]string, error) {
	rows, err := q.query(ctx, `SELECT DISTINCT person FROM work_shifts ORDER BY person`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var people []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

type UpdateShiftParams struct {
	ID        int64
	Person    string
	Date      string
	Shift     models.ShiftKind
	StartTime string
	EndTime   string
	Note      string
}

func (q *Queries) UpdateShift(ctx context.Context, arg UpdateShiftParams) error {
	return q.execAffected(ctx, `UPDATE work_shifts SET person = ?, date = ?, shift = ?, start_time = ?, end_time = ?, note = ? WHERE id = ?`,
		arg.Person, arg.Date, string(arg.Shift), arg.StartTime, arg.EndTime, arg.Note, arg.ID)
}

func (q *Queries) DeleteShift(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM work_shifts WHERE id = ?`, id)
}

func (q *Queries) DeleteShiftOn(ctx context.Context, person, date string) error {
	_, err := q.exec(ctx, `DELETE FROM work_shifts WHERE person = ? AND date = ?`, person, date)
	return err
}
