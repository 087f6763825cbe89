// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxType string

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

const (
	SourceManual = "manual"
	SourceBill   = "bill"
	SourceLoan   = "loan"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Session struct {
	ID          string
	UserID      int64
	Username    string
	DisplayName string
	Role        string
	ExpiresAt   time.Time
}

type Transaction struct {
	ID            int64           `json:"id"`
	Type          TxType          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
	Source        string          `json:"source"`
	LoanID        *int64          `json:"loan_id,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedByName string          `json:"created_by_name"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LoanManaged reports whether the row was written by the loan ledger and may
// only change through it.
func (t Transaction) LoanManaged() bool {
	return t.Source == SourceLoan
}

type LoanDirection string

const (
	Lend   LoanDirection = "lend"
	Borrow LoanDirection = "borrow"
)

func (d LoanDirection) Valid() bool {
	return d == Lend || d == Borrow
}

type LoanStatus string

const (
	LoanActive  LoanStatus = "active"
	LoanPartial LoanStatus = "partial"
	LoanPaid    LoanStatus = "paid"
)

type Loan struct {
	ID              int64           `json:"id"`
	Direction       LoanDirection   `json:"direction"`
	Counterparty    string          `json:"counterparty"`
	Principal       decimal.Decimal `json:"principal"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	StartDate       string          `json:"start_date"`
	DueDate         string          `json:"due_date,omitempty"`
	Status          LoanStatus      `json:"status"`
	Note            string          `json:"note"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Overdue         bool            `json:"overdue"`
}

// MarkOverdue derives the overdue flag against today (YYYY-MM-DD).
func (l *Loan) MarkOverdue(today string) {
	l.Overdue = l.Status != LoanPaid && l.DueDate != "" && l.DueDate < today
}

type LoanPayment struct {
	ID            int64           `json:"id"`
	LoanID        int64           `json:"loan_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Note          string          `json:"note"`
	TransactionID *int64          `json:"transaction_id,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

type LoanTotals struct {
	LentOutstanding     decimal.Decimal `json:"lent_outstanding"`
	BorrowedOutstanding decimal.Decimal `json:"borrowed_outstanding"`
	OpenLoans           int             `json:"open_loans"`
}

type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Pinned    bool      `json:"pinned"`
	Color     string    `json:"color"`
	CreatedBy int64     `json:"created_by"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EventKind string

const (
	KindEvent    EventKind = "event"
	KindReminder EventKind = "reminder"
	KindBirthday EventKind = "birthday"
	KindBill     EventKind = "bill"
)

func (k EventKind) Valid() bool {
	switch k {
	case KindEvent, KindReminder, KindBirthday, KindBill:
		return true
	}
	return false
}

type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Time        string    `json:"time,omitempty"`
	Description string    `json:"description"`
	Kind        EventKind `json:"kind"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type ShiftKind string

const (
	ShiftMorning   ShiftKind = "morning"
	ShiftAfternoon ShiftKind = "afternoon"
	ShiftNight     ShiftKind = "night"
	ShiftOffice    ShiftKind = "office"
	ShiftOff       ShiftKind = "off"
	ShiftCustom    ShiftKind = "custom"
)

func (s ShiftKind) Valid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftNight, ShiftOffice, ShiftOff, ShiftCustom:
		return true
	}
	return false
}

type WorkShift struct {
	ID        int64     `json:"id"`
	Person    string    `json:"person"`
	Date      string    `json:"date"`
	Shift     ShiftKind `json:"shift"`
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Note      string    `json:"note"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
