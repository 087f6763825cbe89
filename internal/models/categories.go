// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package models

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

const (
	OtherCategory       = "Khác"
	LoanIncomeCategory  = "Thu nợ"
	LoanExpenseCategory = "Trả nợ"
)

//go:embed categories.yaml
var categoriesYAML []byte

type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Icon     string   `yaml:"icon" json:"icon"`
	Keywords []string `yaml:"keywords" json:"-"`
}

type CategorySet struct {
	Expense []Category `yaml:"expense"`
	Income  []Category `yaml:"income"`

	folded map[TxType][][]string
}

// LoadCategories parses the embedded category table.
func LoadCategories() (*CategorySet, error) {
	return ParseCategories(categoriesYAML)
}

func MustLoadCategories() *CategorySet {
	cs, err := LoadCategories()
	if err != nil {
		panic(err)
	}
	return cs
}

func ParseCategories(data []byte) (*CategorySet, error) {
	var cs CategorySet
	if err := yaml.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("parsing category table: %w", err)
	}
	for _, t := range []TxType{Expense, Income} {
		list := cs.For(t)
		if len(list) == 0 {
			return nil, fmt.Errorf("category table has no %s categories", t)
		}
		if !cs.Has(t, OtherCategory) {
			return nil, fmt.Errorf("category table for %s lacks %q", t, OtherCategory)
		}
	}
	cs.folded = map[TxType][][]string{}
	for _, t := range []TxType{Expense, Income} {
		for _, c := range cs.For(t) {
			kws := make([]string, 0, len(c.Keywords))
			for _, kw := range c.Keywords {
				kws = append(kws, Fold(kw))
			}
			cs.folded[t] = append(cs.folded[t], kws)
		}
	}
	return &cs, nil
}

func (cs *CategorySet) For(t TxType) []Category {
	if t == Income {
		return cs.Income
	}
	return cs.Expense
}

func (cs *CategorySet) Names(t TxType) []string {
	list := cs.For(t)
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Name
	}
	return names
}

func (cs *CategorySet) Has(t TxType, name string) bool {
	for _, c := range cs.For(t) {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Canonical maps a loosely written category ("an uong", "ĂN UỐNG") onto the
// table entry, if any.
func (cs *CategorySet) Canonical(t TxType, name string) (string, bool) {
	f := Fold(name)
	for _, c := range cs.For(t) {
		if Fold(c.Name) == f {
			return c.Name, true
		}
	}
	return "", false
}

func (cs *CategorySet) Icon(name string) string {
	for _, list := range [][]Category{cs.Expense, cs.Income} {
		for _, c := range list {
			if c.Name == name {
				return c.Icon
			}
		}
	}
	return "📦"
}

// MatchKeywords returns the category with the most keywords appearing as
// whole word sequences in text, and its hit count. Ties go to the earlier
// category; no hits gives OtherCategory.
func (cs *CategorySet) MatchKeywords(t TxType, text string) (string, int) {
	padded := " " + Fold(text) + " "
	best, bestHits := OtherCategory, 0
	for i, c := range cs.For(t) {
		hits := 0
		for _, kw := range cs.folded[t][i] {
			if kw != "" && strings.Contains(padded, " "+kw+" ") {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = c.Name, hits
		}
	}
	return best, bestHits
}

// Fold lowercases, strips Vietnamese diacritics and collapses punctuation to
// single spaces so "Cà phê, sáng" and "ca phe sang" compare equal.
func Fold(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("đ", "d", "Đ", "d").Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	var b strings.Builder
	space := false
	for _, r := range out {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
