// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package models

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Vietnam has no daylight saving, so a fixed zone avoids a tzdata dependency.
var Location = time.FixedZone("ICT", 7*60*60)

func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func Today(now time.Time) string {
	return now.In(Location).Format(DateLayout)
}

func CurrentMonth(now time.Time) string {
	return now.In(Location).Format(MonthLayout)
}

func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, Location)
	if err != nil {
		return time.Time{}, invalid("month", "Tháng phải theo dạng YYYY-MM")
	}
	return t, nil
}

// MonthRange returns the first day of the month and the first day of the next
// month, both as YYYY-MM-DD, for half-open date filters.
func MonthRange(month string) (string, string, error) {
	start, err := ParseMonth(month)
	if err != nil {
		return "", "", err
	}
	return start.Format(DateLayout), start.AddDate(0, 1, 0).Format(DateLayout), nil
}

// ShiftMonth moves a YYYY-MM string by delta months.
func ShiftMonth(month string, delta int) (string, error) {
	start, err := ParseMonth(month)
	if err != nil {
		return "", err
	}
	return start.AddDate(0, delta, 0).Format(MonthLayout), nil
}

func DaysInMonth(month string) ([]string, error) {
	start, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	end := start.AddDate(0, 1, 0)
	var days []string
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}

var weekdayNames = [...]string{"Chủ nhật", "Thứ hai", "Thứ ba", "Thứ tư", "Thứ năm", "Thứ sáu", "Thứ bảy"}

func WeekdayName(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return weekdayNames[t.Weekday()]
}

// MonthLabel renders "Tháng 10/2026".
func MonthLabel(month string) string {
	t, err := ParseMonth(month)
	if err != nil {
		return month
	}
	return fmt.Sprintf("Tháng %d/%d", int(t.Month()), t.Year())
}
