// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package budget

import (
	"context"

	"familybudget/internal/dbq"
	"familybudget/internal/models"
)

func (s *Service) CreateNote(ctx context.Context, n models.Note, userID int64) (models.Note, error) {
	n.Normalize()
	if err := n.Validate(); err != nil {
		return models.Note{}, err
	}
	id, err := s.DB.Queries.CreateNote(ctx, dbq.CreateNoteParams{
		Title: n.Title, Content: n.Content, Pinned: n.Pinned, Color: n.Color, CreatedBy: userID,
	})
	if err != nil {
		return models.Note{}, err
	}
	return s.DB.Queries.GetNote(ctx, id)
}

func (s *Service) UpdateNote(ctx context.Context, id int64, n models.Note) (models.Note, error) {
	n.Normalize()
	if err := n.Validate(); err != nil {
		return models.Note{}, err
	}
	if err := s.DB.Queries.UpdateNote(ctx, dbq.UpdateNoteParams{
		ID: id, Title: n.Title, Content: n.Content, Pinned: n.Pinned, Color: n.Color,
	}); err != nil {
		return models.Note{}, err
	}
	return s.DB.Queries.GetNote(ctx, id)
}

// TogglePin flips the pinned flag and returns the updated note.
func (s *Service) TogglePin(ctx context.Context, id int64) (models.Note, error) {
	n, err := s.DB.Queries.GetNote(ctx, id)
	if err != nil {
		return models.Note{}, err
	}
	if err := s.DB.Queries.SetNotePinned(ctx, id, !n.Pinned); err != nil {
		return models.Note{}, err
	}
	return s.DB.Queries.GetNote(ctx, id)
}
