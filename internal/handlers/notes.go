// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"net/http"

	"familybudget/internal/budget"
	"familybudget/internal/config"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
)

type NoteHandler struct {
	Config *config.Config
	Budget *budget.Service
}

func NewNoteHandler(cfg *config.Config, b *budget.Service) *NoteHandler {
	return &NoteHandler{Config: cfg, Budget: b}
}

func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.Budget.DB.Queries.ListNotes(c.Request.Context())
	if err != nil {
		status, msg := errorStatus(err)
		logIfInternal(c, status, err)
		renderError(c, status, msg)
		return
	}
	data := pageData(c, h.Config, "notes", "Ghi chú")
	data["Notes"] = notes
	data["Colors"] = []string{"yellow", "green", "blue", "pink", "gray"}
	c.HTML(http.StatusOK, "notes.html", data)
}

func noteFromForm(c *gin.Context) models.Note {
	return models.Note{
		Title:   c.PostForm("title"),
		Content: c.PostForm("content"),
		Pinned:  formChecked(c, "pinned"),
		Color:   c.PostForm("color"),
	}
}

func (h *NoteHandler) Create(c *gin.Context) {
	if _, err := h.Budget.CreateNote(c.Request.Context(), noteFromForm(c), currentUserID(c)); err != nil {
		formError(c, err, "/notes")
		return
	}
	formSuccess(c, "Đã lưu ghi chú", "/notes")
}

func (h *NoteHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := h.Budget.UpdateNote(c.Request.Context(), id, noteFromForm(c)); err != nil {
		formError(c, err, "/notes")
		return
	}
	formSuccess(c, "Đã cập nhật ghi chú", "/notes")
}

func (h *NoteHandler) TogglePin(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := h.Budget.TogglePin(c.Request.Context(), id); err != nil {
		formError(c, err, "/notes")
		return
	}
	c.Redirect(http.StatusSeeOther, "/notes")
}

func (h *NoteHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Budget.DB.Queries.DeleteNote(c.Request.Context(), id); err != nil {
		formError(c, err, "/notes")
		return
	}
	formSuccess(c, "Đã xóa ghi chú", "/notes")
}

// JSON API

type noteInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Pinned  bool   `json:"pinned"`
	Color   string `json:"color"`
}

func (in noteInput) model() models.Note {
	return models.Note{Title: in.Title, Content: in.Content, Pinned: in.Pinned, Color: in.Color}
}

func (h *NoteHandler) APIList(c *gin.Context) {
	notes, err := h.Budget.DB.Queries.ListNotes(c.Request.Context())
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

func (h *NoteHandler) APIGet(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := h.Budget.DB.Queries.GetNote(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *NoteHandler) APICreate(c *gin.Context) {
	var in noteInput
	if !bindJSON(c, &in) {
		return
	}
	n, err := h.Budget.CreateNote(c.Request.Context(), in.model(), currentUserID(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *NoteHandler) APIUpdate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in noteInput
	if !bindJSON(c, &in) {
		return
	}
	n, err := h.Budget.UpdateNote(c.Request.Context(), id, in.model())
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *NoteHandler) APITogglePin(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := h.Budget.TogglePin(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *NoteHandler) APIDelete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Budget.DB.Queries.DeleteNote(c.Request.Context(), id); err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
