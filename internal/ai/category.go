// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package ai

import (
	"context"
	"fmt"
	"strings"

	"familybudget/internal/models"
)

const (
	SourceModel    = "ai"
	SourceCache    = "cache"
	SourceKeywords = "keywords"
)

type CategorySuggestion struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Fallback   bool    `json:"fallback"`
}

const categorySystemPrompt = `Bạn phân loại giao dịch thu chi của một gia đình Việt Nam.
Chỉ trả về JSON dạng {"category": "...", "confidence": 0.0-1.0}.`

// SuggestCategory picks a category for a free-text description. Model
// answers are cached per folded description and type.
func (f *Flows) SuggestCategory(ctx context.Context, description string, t models.TxType) (CategorySuggestion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return CategorySuggestion{}, &models.ValidationError{Field: "description", Message: "Vui lòng nhập mô tả"}
	}
	if len([]rune(description)) > models.MaxDescriptionLen {
		return CategorySuggestion{}, &models.ValidationError{Field: "description", Message: "Mô tả quá dài"}
	}
	if !t.Valid() {
		return CategorySuggestion{}, &models.ValidationError{Field: "type", Message: "Loại giao dịch phải là thu hoặc chi"}
	}

	key := models.Fold(description) + "|" + string(t)
	if cached, ok := f.catCache.Get(key); ok {
		cached.Source = SourceCache
		return cached, nil
	}

	names := f.categories.Names(t)
	kind := "khoản chi"
	if t == models.Income {
		kind = "khoản thu"
	}
	req := Request{
		System: categorySystemPrompt,
		Prompt: fmt.Sprintf("Mô tả %s: %q\nChọn đúng một danh mục trong danh sách: %s", kind, description, strings.Join(names, ", ")),
		JSON:   true,
	}

	parse := func(text string) (CategorySuggestion, error) {
		var p struct {
			Category   string     `json:"category"`
			Confidence Confidence `json:"confidence"`
		}
		if err := DecodeJSON(text, &p); err != nil {
			return CategorySuggestion{}, err
		}
		name, ok := f.categories.Canonical(t, p.Category)
		if !ok {
			return CategorySuggestion{}, fmt.Errorf("model picked unknown category %q", p.Category)
		}
		return CategorySuggestion{Category: name, Confidence: float64(p.Confidence), Source: SourceModel}, nil
	}
	fallback := func() CategorySuggestion {
		return f.keywordCategory(description, t)
	}

	out, isFallback := run(ctx, f, FlowCategory, req, parse, fallback)
	out.Fallback = isFallback
	if !isFallback {
		f.catCache.Set(key, out)
	}
	return out, nil
}

func (f *Flows) keywordCategory(description string, t models.TxType) CategorySuggestion {
	name, hits := f.categories.MatchKeywords(t, description)
	conf := 0.0
	if hits > 0 {
		conf = 0.5
		if hits > 1 {
			conf = 0.7
		}
	}
	return CategorySuggestion{Category: name, Confidence: conf, Source: SourceKeywords}
}
