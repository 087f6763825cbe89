// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"familybudget/internal/budget"
	"familybudget/internal/config"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
)

// MaxBulkShifts bounds one schedule save.
const MaxBulkShifts = 500

type CalendarHandler struct {
	Config *config.Config
	Budget *budget.Service
}

func NewCalendarHandler(cfg *config.Config, b *budget.Service) *CalendarHandler {
	return &CalendarHandler{Config: cfg, Budget: b}
}

func calendarURL(date, person string) string {
	q := url.Values{}
	if len(date) >= 7 {
		q.Set("month", date[:7])
	}
	if person != "" {
		q.Set("person", person)
	}
	if len(q) == 0 {
		return "/calendar"
	}
	return "/calendar?" + q.Encode()
}

func (h *CalendarHandler) Page(c *gin.Context) {
	person := strings.TrimSpace(c.Query("person"))
	cal, err := h.Budget.Month(c.Request.Context(), c.Query("month"), person)
	if err != nil {
		status, msg := errorStatus(err)
		logIfInternal(c, status, err)
		renderError(c, status, msg)
		return
	}
	data := pageData(c, h.Config, "calendar", "Lịch gia đình")
	data["Calendar"] = cal
	data["Person"] = person
	data["Weekdays"] = []string{"T2", "T3", "T4", "T5", "T6", "T7", "CN"}
	c.HTML(http.StatusOK, "calendar.html", data)
}

func eventFromForm(c *gin.Context) models.Event {
	return models.Event{
		Title:       c.PostForm("title"),
		Date:        strings.TrimSpace(c.PostForm("date")),
		Time:        c.PostForm("time"),
		Description: c.PostForm("description"),
		Kind:        models.EventKind(c.PostForm("kind")),
	}
}

func shiftFromForm(c *gin.Context) models.WorkShift {
	return models.WorkShift{
		Person:    c.PostForm("person"),
		Date:      strings.TrimSpace(c.PostForm("date")),
		Shift:     models.ShiftKind(c.PostForm("shift")),
		StartTime: c.PostForm("start_time"),
		EndTime:   c.PostForm("end_time"),
		Note:      c.PostForm("note"),
	}
}

func (h *CalendarHandler) CreateEvent(c *gin.Context) {
	e := eventFromForm(c)
	if _, err := h.Budget.CreateEvent(c.Request.Context(), e, currentUserID(c)); err != nil {
		formError(c, err, calendarURL(e.Date, ""))
		return
	}
	formSuccess(c, "Đã thêm sự kiện", calendarURL(e.Date, ""))
}

func (h *CalendarHandler) DeleteEvent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	back := safeRedirect(c.PostForm("return_to"), "/calendar")
	if err := h.Budget.DB.Queries.DeleteEvent(c.Request.Context(), id); err != nil {
		formError(c, err, back)
		return
	}
	formSuccess(c, "Đã xóa sự kiện", back)
}

func (h *CalendarHandler) CreateShift(c *gin.Context) {
	sh := shiftFromForm(c)
	if _, err := h.Budget.CreateShift(c.Request.Context(), sh, currentUserID(c)); err != nil {
		formError(c, err, calendarURL(sh.Date, ""))
		return
	}
	formSuccess(c, "Đã thêm ca làm của "+strings.TrimSpace(sh.Person), calendarURL(sh.Date, ""))
}

func (h *CalendarHandler) DeleteShift(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	back := safeRedirect(c.PostForm("return_to"), "/calendar")
	if err := h.Budget.DB.Queries.DeleteShift(c.Request.Context(), id); err != nil {
		formError(c, err, back)
		return
	}
	formSuccess(c, "Đã xóa ca làm", back)
}

// JSON API

func (h *CalendarHandler) APIMonth(c *gin.Context) {
	cal, err := h.Budget.Month(c.Request.Context(), c.Query("month"), strings.TrimSpace(c.Query("person")))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, cal)
}

// monthBounds resolves ?month= (default current) to its date range.
func (h *CalendarHandler) monthBounds(c *gin.Context) (string, string, bool) {
	month := c.Query("month")
	if month == "" {
		month = models.CurrentMonth(h.Budget.Now())
	}
	from, to, err := models.MonthRange(month)
	if err != nil {
		apiError(c, err)
		return "", "", false
	}
	return from, to, true
}

type eventInput struct {
	Title       string           `json:"title"`
	Date        string           `json:"date"`
	Time        string           `json:"time"`
	Description string           `json:"description"`
	Kind        models.EventKind `json:"kind"`
}

func (in eventInput) model() models.Event {
	return models.Event{Title: in.Title, Date: strings.TrimSpace(in.Date), Time: in.Time, Description: in.Description, Kind: in.Kind}
}

func (h *CalendarHandler) APIListEvents(c *gin.Context) {
	from, to, ok := h.monthBounds(c)
	if !ok {
		return
	}
	events, err := h.Budget.DB.Queries.ListEvents(c.Request.Context(), from, to)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *CalendarHandler) APIGetEvent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	e, err := h.Budget.DB.Queries.GetEvent(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *CalendarHandler) APICreateEvent(c *gin.Context) {
	var in eventInput
	if !bindJSON(c, &in) {
		return
	}
	e, err := h.Budget.CreateEvent(c.Request.Context(), in.model(), currentUserID(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *CalendarHandler) APIUpdateEvent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in eventInput
	if !bindJSON(c, &in) {
		return
	}
	e, err := h.Budget.UpdateEvent(c.Request.Context(), id, in.model())
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *CalendarHandler) APIDeleteEvent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Budget.DB.Queries.DeleteEvent(c.Request.Context(), id); err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type shiftInput struct {
	Person    string           `json:"person"`
	Date      string           `json:"date"`
	Shift     models.ShiftKind `json:"shift"`
	StartTime string           `json:"start_time"`
	EndTime   string           `json:"end_time"`
	Note      string           `json:"note"`
}

func (in shiftInput) model() models.WorkShift {
	return models.WorkShift{
		Person:    in.Person,
		Date:      strings.TrimSpace(in.Date),
		Shift:     in.Shift,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Note:      in.Note,
	}
}

func (h *CalendarHandler) APIListShifts(c *gin.Context) {
	from, to, ok := h.monthBounds(c)
	if !ok {
		return
	}
	shifts, err := h.Budget.DB.Queries.ListShifts(c.Request.Context(), from, to, strings.TrimSpace(c.Query("person")))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shifts": shifts})
}

func (h *CalendarHandler) APIGetShift(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sh, err := h.Budget.DB.Queries.GetShift(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

func (h *CalendarHandler) APICreateShift(c *gin.Context) {
	var in shiftInput
	if !bindJSON(c, &in) {
		return
	}
	sh, err := h.Budget.CreateShift(c.Request.Context(), in.model(), currentUserID(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sh)
}

func (h *CalendarHandler) APIUpdateShift(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in shiftInput
	if !bindJSON(c, &in) {
		return
	}
	sh, err := h.Budget.UpdateShift(c.Request.Context(), id, in.model())
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

func (h *CalendarHandler) APIDeleteShift(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Budget.DB.Queries.DeleteShift(c.Request.Context(), id); err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// APIBulkShifts saves a reviewed schedule, usually one parsed from a photo.
func (h *CalendarHandler) APIBulkShifts(c *gin.Context) {
	var in struct {
		Entries []shiftInput `json:"entries"`
	}
	if !bindJSON(c, &in) {
		return
	}
	if len(in.Entries) == 0 {
		apiBadRequest(c, "Không có ca làm nào để lưu")
		return
	}
	if len(in.Entries) > MaxBulkShifts {
		apiBadRequest(c, "Quá nhiều ca làm trong một lần lưu")
		return
	}
	shifts := make([]models.WorkShift, len(in.Entries))
	for i, e := range in.Entries {
		shifts[i] = e.model()
	}
	n, err := h.Budget.SaveShifts(c.Request.Context(), shifts, currentUserID(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"saved": n})
}
