// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxDescriptionLen = 500
	MaxNoteTitleLen   = 200
	MaxNoteContentLen = 10000
	MaxNameLen        = 100
)

// ValidationError carries a user-facing (Vietnamese) message for one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

var (
	timePattern     = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,32}$`)
	notePalette     = map[string]bool{"": true, "yellow": true, "green": true, "blue": true, "pink": true, "gray": true}
)

func tooLong(s string, n int) bool {
	return utf8.RuneCountInString(s) > n
}

// Normalize trims free-text fields and fills defaults before validation.
func (t *Transaction) Normalize(cats *CategorySet) {
	t.Description = strings.TrimSpace(t.Description)
	t.Category = strings.TrimSpace(t.Category)
	if t.Source == "" {
		t.Source = SourceManual
	}
	if cats != nil && t.Type.Valid() && !cats.Has(t.Type, t.Category) {
		t.Category = OtherCategory
	}
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return invalid("type", "Loại giao dịch phải là thu hoặc chi")
	}
	if !t.Amount.IsPositive() {
		return invalid("amount", "Số tiền phải lớn hơn 0")
	}
	if tooLong(t.Description, MaxDescriptionLen) {
		return invalid("description", fmt.Sprintf("Mô tả tối đa %d ký tự", MaxDescriptionLen))
	}
	if !ValidDate(t.Date) {
		return invalid("date", "Ngày không hợp lệ")
	}
	switch t.Source {
	case SourceManual, SourceBill, SourceLoan:
	default:
		return invalid("source", "Nguồn giao dịch không hợp lệ")
	}
	return nil
}

func (l *Loan) Normalize() {
	l.Counterparty = strings.TrimSpace(l.Counterparty)
	l.Note = strings.TrimSpace(l.Note)
	l.DueDate = strings.TrimSpace(l.DueDate)
}

func (l Loan) Validate() error {
	if !l.Direction.Valid() {
		return invalid("direction", "Chiều khoản vay phải là cho vay hoặc đi vay")
	}
	if l.Counterparty == "" {
		return invalid("counterparty", "Vui lòng nhập tên người vay/cho vay")
	}
	if tooLong(l.Counterparty, MaxNameLen) {
		return invalid("counterparty", fmt.Sprintf("Tên tối đa %d ký tự", MaxNameLen))
	}
	if !l.Principal.IsPositive() {
		return invalid("principal", "Số tiền gốc phải lớn hơn 0")
	}
	if l.InterestRate.IsNegative() {
		return invalid("interest_rate", "Lãi suất không được âm")
	}
	if !ValidDate(l.StartDate) {
		return invalid("start_date", "Ngày bắt đầu không hợp lệ")
	}
	if l.DueDate != "" {
		if !ValidDate(l.DueDate) {
			return invalid("due_date", "Ngày đến hạn không hợp lệ")
		}
		if l.DueDate < l.StartDate {
			return invalid("due_date", "Ngày đến hạn phải sau ngày bắt đầu")
		}
	}
	if tooLong(l.Note, MaxDescriptionLen) {
		return invalid("note", fmt.Sprintf("Ghi chú tối đa %d ký tự", MaxDescriptionLen))
	}
	return nil
}

func (n *Note) Normalize() {
	n.Title = strings.TrimSpace(n.Title)
	n.Color = strings.TrimSpace(n.Color)
}

func (n Note) Validate() error {
	if n.Title == "" {
		return invalid("title", "Vui lòng nhập tiêu đề")
	}
	if tooLong(n.Title, MaxNoteTitleLen) {
		return invalid("title", fmt.Sprintf("Tiêu đề tối đa %d ký tự", MaxNoteTitleLen))
	}
	if tooLong(n.Content, MaxNoteContentLen) {
		return invalid("content", fmt.Sprintf("Nội dung tối đa %d ký tự", MaxNoteContentLen))
	}
	if !notePalette[n.Color] {
		return invalid("color", "Màu không hợp lệ")
	}
	return nil
}

func (e *Event) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.Time = strings.TrimSpace(e.Time)
	if e.Kind == "" {
		e.Kind = KindEvent
	}
}

func (e Event) Validate() error {
	if e.Title == "" {
		return invalid("title", "Vui lòng nhập tên sự kiện")
	}
	if tooLong(e.Title, MaxNoteTitleLen) {
		return invalid("title", fmt.Sprintf("Tên tối đa %d ký tự", MaxNoteTitleLen))
	}
	if !ValidDate(e.Date) {
		return invalid("date", "Ngày không hợp lệ")
	}
	if e.Time != "" && !timePattern.MatchString(e.Time) {
		return invalid("time", "Giờ phải theo dạng HH:MM")
	}
	if !e.Kind.Valid() {
		return invalid("kind", "Loại sự kiện không hợp lệ")
	}
	if tooLong(e.Description, MaxDescriptionLen) {
		return invalid("description", fmt.Sprintf("Mô tả tối đa %d ký tự", MaxDescriptionLen))
	}
	return nil
}

func (s *WorkShift) Normalize() {
	s.Person = strings.TrimSpace(s.Person)
	s.Note = strings.TrimSpace(s.Note)
	s.StartTime = strings.TrimSpace(s.StartTime)
	s.EndTime = strings.TrimSpace(s.EndTime)
}

func (s WorkShift) Validate() error {
	if s.Person == "" {
		return invalid("person", "Vui lòng nhập tên người làm")
	}
	if tooLong(s.Person, MaxNameLen) {
		return invalid("person", fmt.Sprintf("Tên tối đa %d ký tự", MaxNameLen))
	}
	if !ValidDate(s.Date) {
		return invalid("date", "Ngày không hợp lệ")
	}
	if !s.Shift.Valid() {
		return invalid("shift", "Ca làm không hợp lệ")
	}
	if s.StartTime != "" && !timePattern.MatchString(s.StartTime) {
		return invalid("start_time", "Giờ bắt đầu phải theo dạng HH:MM")
	}
	if s.EndTime != "" && !timePattern.MatchString(s.EndTime) {
		return invalid("end_time", "Giờ kết thúc phải theo dạng HH:MM")
	}
	if tooLong(s.Note, MaxDescriptionLen) {
		return invalid("note", fmt.Sprintf("Ghi chú tối đa %d ký tự", MaxDescriptionLen))
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return invalid("username", "Tên đăng nhập gồm 3-32 ký tự a-z, 0-9, dấu chấm hoặc gạch dưới")
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 6 {
		return invalid("password", "Mật khẩu phải có ít nhất 6 ký tự")
	}
	return nil
}

// ParseAmount accepts the way people type VND: "150000", "150.000",
// "150,000đ", "1,5tr", "2 triệu", "200k".
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, suffix := range []string{"vnd", "vnđ", "đồng", "dong", "đ", "₫"} {
		s = strings.TrimSuffix(strings.TrimSpace(s), suffix)
	}
	s = strings.TrimSpace(s)

	multiplier := decimal.NewFromInt(1)
	switch {
	case strings.HasSuffix(s, "triệu"):
		s, multiplier = strings.TrimSuffix(s, "triệu"), decimal.NewFromInt(1_000_000)
	case strings.HasSuffix(s, "tr"):
		s, multiplier = strings.TrimSuffix(s, "tr"), decimal.NewFromInt(1_000_000)
	case strings.HasSuffix(s, "nghìn"), strings.HasSuffix(s, "ngàn"):
		s = strings.TrimSuffix(strings.TrimSuffix(s, "nghìn"), "ngàn")
		multiplier = decimal.NewFromInt(1_000)
	case strings.HasSuffix(s, "k"):
		s, multiplier = strings.TrimSuffix(s, "k"), decimal.NewFromInt(1_000)
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, invalid("amount", "Vui lòng nhập số tiền")
	}
	if !strings.ContainsAny(s, "0123456789") {
		return decimal.Zero, invalid("amount", "Số tiền không hợp lệ")
	}

	if multiplier.GreaterThan(decimal.NewFromInt(1)) {
		// "1,5tr" uses the comma as a decimal separator.
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = stripGrouping(s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid("amount", "Số tiền không hợp lệ")
	}
	return d.Mul(multiplier).Round(0), nil
}

// stripGrouping removes thousands separators. A single separator followed by
// exactly three digits is grouping; anything else is a decimal mark.
func stripGrouping(s string) string {
	if strings.Count(s, ".")+strings.Count(s, ",") == 0 {
		return s
	}
	groups := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' })
	if len(groups) == 0 {
		return ""
	}
	allGroups := len(groups) > 1
	for _, g := range groups[1:] {
		if len(g) != 3 {
			allGroups = false
			break
		}
	}
	if allGroups {
		return strings.Join(groups, "")
	}
	return strings.ReplaceAll(s, ",", ".")
}
