// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package budget

import (
	"context"
	"fmt"
	"log/slog"

	"familybudget/internal/dbq"
	"familybudget/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type CalendarDay struct {
	Date     string             `json:"date"`
	Day      int                `json:"day"`
	Weekday  string             `json:"weekday"`
	IsToday  bool               `json:"is_today"`
	Events   []models.Event     `json:"events"`
	Shifts   []models.WorkShift `json:"shifts"`
	Expense  decimal.Decimal    `json:"expense"`
	LoansDue []models.Loan      `json:"loans_due,omitempty"`
}

type CalendarMonth struct {
	Month  string        `json:"month"`
	Label  string        `json:"label"`
	Prev   string        `json:"prev"`
	Next   string        `json:"next"`
	Lead   int           `json:"lead"`
	Days   []CalendarDay `json:"days"`
	People []string      `json:"people"`
}

// Month builds the calendar grid for month, optionally limited to one
// person's shifts. Lead is the number of blank cells before day 1 in a
// Monday-first week.
func (s *Service) Month(ctx context.Context, month, person string) (CalendarMonth, error) {
	if month == "" {
		month = models.CurrentMonth(s.Now())
	}
	from, to, err := models.MonthRange(month)
	if err != nil {
		return CalendarMonth{}, err
	}
	days, err := models.DaysInMonth(month)
	if err != nil {
		return CalendarMonth{}, err
	}

	var (
		events []models.Event
		shifts []models.WorkShift
		txs    []models.Transaction
		loans  []models.Loan
		people []string
	)
	q := s.DB.Queries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { events, err = q.ListEvents(gctx, from, to); return })
	g.Go(func() (err error) { shifts, err = q.ListShifts(gctx, from, to, person); return })
	g.Go(func() (err error) {
		txs, err = q.ListTransactions(gctx, dbq.TransactionFilter{From: from, To: to, Type: models.Expense})
		return
	})
	g.Go(func() (err error) { loans, err = q.ListLoans(gctx, dbq.LoanFilter{OpenOnly: true}); return })
	g.Go(func() (err error) { people, err = q.ListShiftPeople(gctx); return })
	if err := g.Wait(); err != nil {
		return CalendarMonth{}, fmt.Errorf("loading calendar: %w", err)
	}

	today := s.today()
	cal := CalendarMonth{Month: month, Label: models.MonthLabel(month), People: people}
	cal.Prev, _ = models.ShiftMonth(month, -1)
	cal.Next, _ = models.ShiftMonth(month, 1)

	byDate := make(map[string]*CalendarDay, len(days))
	cal.Days = make([]CalendarDay, len(days))
	for i, d := range days {
		cal.Days[i] = CalendarDay{Date: d, Day: i + 1, Weekday: models.WeekdayName(d), IsToday: d == today, Expense: decimal.Zero}
		byDate[d] = &cal.Days[i]
	}
	if len(days) > 0 {
		start, _ := models.ParseMonth(month)
		cal.Lead = (int(start.Weekday()) + 6) % 7
	}

	for _, e := range events {
		if d, ok := byDate[e.Date]; ok {
			d.Events = append(d.Events, e)
		}
	}
	for _, sh := range shifts {
		if d, ok := byDate[sh.Date]; ok {
			d.Shifts = append(d.Shifts, sh)
		}
	}
	for _, t := range txs {
		if d, ok := byDate[t.Date]; ok {
			d.Expense = d.Expense.Add(t.Amount)
		}
	}
	for _, l := range loans {
		if d, ok := byDate[l.DueDate]; ok {
			l.MarkOverdue(today)
			d.LoansDue = append(d.LoansDue, l)
		}
	}
	return cal, nil
}

func (s *Service) CreateEvent(ctx context.Context, e models.Event, userID int64) (models.Event, error) {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return models.Event{}, err
	}
	id, err := s.DB.Queries.CreateEvent(ctx, dbq.CreateEventParams{
		Title: e.Title, Date: e.Date, Time: e.Time, Description: e.Description, Kind: e.Kind, CreatedBy: userID,
	})
	if err != nil {
		return models.Event{}, fmt.Errorf("creating event: %w", err)
	}
	return s.DB.Queries.GetEvent(ctx, id)
}

func (s *Service) UpdateEvent(ctx context.Context, id int64, e models.Event) (models.Event, error) {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return models.Event{}, err
	}
	if err := s.DB.Queries.UpdateEvent(ctx, dbq.UpdateEventParams{
		ID: id, Title: e.Title, Date: e.Date, Time: e.Time, Description: e.Description, Kind: e.Kind,
	}); err != nil {
		return models.Event{}, err
	}
	return s.DB.Queries.GetEvent(ctx, id)
}

func (s *Service) CreateShift(ctx context.Context, sh models.WorkShift, userID int64) (models.WorkShift, error) {
	sh.Normalize()
	if err := sh.Validate(); err != nil {
		return models.WorkShift{}, err
	}
	id, err := s.DB.Queries.CreateShift(ctx, shiftParams(sh, userID))
	if err != nil {
		return models.WorkShift{}, err
	}
	return s.DB.Queries.GetShift(ctx, id)
}

func (s *Service) UpdateShift(ctx context.Context, id int64, sh models.WorkShift) (models.WorkShift, error) {
	sh.Normalize()
	if err := sh.Validate(); err != nil {
		return models.WorkShift{}, err
	}
	if err := s.DB.Queries.UpdateShift(ctx, dbq.UpdateShiftParams{
		ID: id, Person: sh.Person, Date: sh.Date, Shift: sh.Shift, StartTime: sh.StartTime, EndTime: sh.EndTime, Note: sh.Note,
	}); err != nil {
		return models.WorkShift{}, err
	}
	return s.DB.Queries.GetShift(ctx, id)
}

// BulkValidationError reports which entry of a bulk save was rejected.
type BulkValidationError struct {
	Index int
	Err   error
}

func (e *BulkValidationError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index+1, e.Err)
}

func (e *BulkValidationError) Unwrap() error { return e.Err }

// SaveShifts stores a parsed schedule in one transaction. An existing shift
// for the same person and date is replaced.
func (s *Service) SaveShifts(ctx context.Context, shifts []models.WorkShift, userID int64) (int, error) {
	for i := range shifts {
		shifts[i].Normalize()
		if err := shifts[i].Validate(); err != nil {
			return 0, &BulkValidationError{Index: i, Err: err}
		}
	}
	err := s.DB.WithTx(ctx, func(q *dbq.Queries) error {
		for _, sh := range shifts {
			if err := q.DeleteShiftOn(ctx, sh.Person, sh.Date); err != nil {
				return err
			}
			if _, err := q.CreateShift(ctx, shiftParams(sh, userID)); err != nil {
				return fmt.Errorf("saving shift %s %s: %w", sh.Person, sh.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.Info("Work schedule saved", "entries", len(shifts))
	return len(shifts), nil
}

func shiftParams(sh models.WorkShift, userID int64) dbq.CreateShiftParams {
	return dbq.CreateShiftParams{
		Person: sh.Person, Date: sh.Date, Shift: sh.Shift, StartTime: sh.StartTime, EndTime: sh.EndTime, Note: sh.Note, CreatedBy: userID,
	}
}
