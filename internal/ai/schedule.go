// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"familybudget/internal/models"
)

type ScheduleResult struct {
	Month    string             `json:"month"`
	Entries  []models.WorkShift `json:"entries"`
	Fallback bool               `json:"fallback"`
}

const scheduleSystemPrompt = `Bạn đọc ảnh lịch làm việc (bảng phân ca) của người Việt Nam.
Chỉ trả về JSON, không giải thích.`

// shiftKeywords maps folded label words to shift kinds, checked in order.
var shiftKeywords = []struct {
	word  string
	shift models.ShiftKind
}{
	{"hanh chinh", models.ShiftOffice},
	{"office", models.ShiftOffice},
	{"hc", models.ShiftOffice},
	{"sang", models.ShiftMorning},
	{"morning", models.ShiftMorning},
	{"chieu", models.ShiftAfternoon},
	{"afternoon", models.ShiftAfternoon},
	{"dem", models.ShiftNight},
	{"toi", models.ShiftNight},
	{"night", models.ShiftNight},
	{"nghi", models.ShiftOff},
	{"off", models.ShiftOff},
}

// MapShiftLabel turns a free-form shift label ("Ca sáng", "Nghỉ", "HC") into
// a shift kind. Unrecognized labels are custom.
func MapShiftLabel(label string) models.ShiftKind {
	folded := " " + models.Fold(label) + " "
	if k := models.ShiftKind(strings.TrimSpace(folded)); k.Valid() {
		return k
	}
	for _, kw := range shiftKeywords {
		if strings.Contains(folded, " "+kw.word+" ") {
			return kw.shift
		}
	}
	return models.ShiftCustom
}

var (
	isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	dmyPattern     = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})(?:[/.\-](\d{2,4}))?$`)
	dayPattern     = regexp.MustCompile(`^(?:ngay\s*)?(\d{1,2})$`)
	clockPattern   = regexp.MustCompile(`^(\d{1,2})\s*(?:[:hg.]\s*(\d{2})?)?$`)
)

// NormalizeScheduleDate places a model-written date into month (YYYY-MM).
// Only the day of month is kept, so a date from another month moves onto the
// same day of month. Days past the month's end are rejected.
func NormalizeScheduleDate(raw, month string) (string, bool) {
	days, err := models.DaysInMonth(month)
	if err != nil {
		return "", false
	}
	raw = strings.TrimSpace(raw)

	var day int
	if m := isoDatePattern.FindStringSubmatch(raw); m != nil {
		day, _ = strconv.Atoi(m[3])
	} else if m := dmyPattern.FindStringSubmatch(raw); m != nil {
		day, _ = strconv.Atoi(m[1])
	} else if m := dayPattern.FindStringSubmatch(models.Fold(raw)); m != nil {
		day, _ = strconv.Atoi(m[1])
	}
	if day < 1 || day > len(days) {
		return "", false
	}
	return days[day-1], true
}

// NormalizeClock accepts "7h", "7h30", "07:00", "19.30" and returns HH:MM.
func NormalizeClock(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if h > 23 || minute > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, minute)
}

type scheduleEntry struct {
	Person    string          `json:"person"`
	Date      json.RawMessage `json:"date"`
	Day       json.RawMessage `json:"day"`
	Shift     string          `json:"shift"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	Note      string          `json:"note"`
}

func rawString(r json.RawMessage) string {
	if len(r) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(r, &n); err == nil {
		return n.String()
	}
	return ""
}

// ParseWorkSchedule reads a work-schedule photo into shifts for month.
func (f *Flows) ParseWorkSchedule(ctx context.Context, image []byte, declaredMIME, month, personHint string) (ScheduleResult, error) {
	mimeType, err := ValidateImage(image, declaredMIME)
	if err != nil {
		return ScheduleResult{}, err
	}
	if month == "" {
		month = models.CurrentMonth(f.now())
	}
	if _, err := models.ParseMonth(month); err != nil {
		return ScheduleResult{}, err
	}
	personHint = strings.TrimSpace(personHint)

	hint := ""
	if personHint != "" {
		hint = fmt.Sprintf("\nNếu ảnh chỉ có lịch của một người, tên người đó là %q.", personHint)
	}
	req := Request{
		System: scheduleSystemPrompt,
		Prompt: fmt.Sprintf(`Đọc lịch làm việc trong ảnh cho %s.%s
Trả về JSON:
{"entries": [{"person": "tên", "date": "YYYY-MM-DD", "shift": "sáng|chiều|đêm|hành chính|nghỉ|nhãn khác", "start_time": "HH:MM", "end_time": "HH:MM", "note": ""}]}`,
			models.MonthLabel(month), hint),
		Images: []Image{{Data: image, MIME: mimeType}},
		JSON:   true,
	}

	parse := func(text string) (ScheduleResult, error) {
		raw, err := ExtractJSON(text)
		if err != nil {
			return ScheduleResult{}, err
		}
		var entries []scheduleEntry
		if strings.HasPrefix(raw, "[") {
			err = json.Unmarshal([]byte(raw), &entries)
		} else {
			var wrapper struct {
				Entries []scheduleEntry `json:"entries"`
				Shifts  []scheduleEntry `json:"shifts"`
			}
			err = json.Unmarshal([]byte(raw), &wrapper)
			entries = wrapper.Entries
			if len(entries) == 0 {
				entries = wrapper.Shifts
			}
		}
		if err != nil {
			return ScheduleResult{}, fmt.Errorf("decoding schedule JSON: %w", err)
		}
		return ScheduleResult{Month: month, Entries: normalizeEntries(entries, month, personHint)}, nil
	}
	fallback := func() ScheduleResult {
		return ScheduleResult{Month: month, Entries: []models.WorkShift{}}
	}

	out, isFallback := run(ctx, f, FlowSchedule, req, parse, fallback)
	out.Fallback = isFallback
	return out, nil
}

func normalizeEntries(entries []scheduleEntry, month, personHint string) []models.WorkShift {
	seen := map[string]int{}
	out := make([]models.WorkShift, 0, len(entries))
	for _, e := range entries {
		person := strings.TrimSpace(e.Person)
		if person == "" {
			person = personHint
		}
		if person == "" {
			continue
		}
		rawDate := rawString(e.Date)
		if rawDate == "" {
			rawDate = rawString(e.Day)
		}
		date, ok := NormalizeScheduleDate(rawDate, month)
		if !ok {
			continue
		}
		shift := MapShiftLabel(e.Shift)
		note := strings.TrimSpace(e.Note)
		if shift == models.ShiftCustom && note == "" {
			note = strings.TrimSpace(e.Shift)
		}
		ws := models.WorkShift{
			Person:    person,
			Date:      date,
			Shift:     shift,
			StartTime: NormalizeClock(e.StartTime),
			EndTime:   NormalizeClock(e.EndTime),
			Note:      note,
		}
		if len([]rune(ws.Note)) > models.MaxDescriptionLen {
			ws.Note = string([]rune(ws.Note)[:models.MaxDescriptionLen])
		}
		if len([]rune(ws.Person)) > models.MaxNameLen {
			continue
		}
		// A later entry for the same person and day wins.
		key := person + "|" + date
		if i, dup := seen[key]; dup {
			out[i] = ws
			continue
		}
		seen[key] = len(out)
		out = append(out, ws)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Person < out[j].Person
	})
	return out
}
