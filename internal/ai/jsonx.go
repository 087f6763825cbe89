// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNoJSON = errors.New("no JSON found in model response")

// ExtractJSON pulls the JSON payload out of a model answer: a fenced ```json
// block first, then the first balanced object or array.
func ExtractJSON(s string) (string, error) {
	if block := extractFencedBlock(s); block != "" {
		if out := extractBalanced(block); out != "" {
			return out, nil
		}
	}
	if out := extractBalanced(s); out != "" {
		return out, nil
	}
	return "", ErrNoJSON
}

func extractFencedBlock(s string) string {
	start := strings.Index(s, "```json")
	skip := len("```json")
	if start == -1 {
		start = strings.Index(s, "```")
		skip = 3
	}
	if start == -1 {
		return ""
	}
	rest := s[start+skip:]
	end := strings.Index(rest, "```")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// extractBalanced returns the first {...} or [...] whose brackets balance,
// ignoring brackets inside string literals.
func extractBalanced(s string) string {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return ""
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// DecodeJSON extracts and decodes the model's JSON answer into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decoding model JSON: %w", err)
	}
	return nil
}

// Confidence decodes 0..1 or a percentage, clamped to [0, 1].
type Confidence float64

func (c *Confidence) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(x), "%"))
		if err != nil {
			*c = 0
			return nil
		}
		f = d.InexactFloat64()
	}
	if f > 1 {
		f /= 100
	}
	switch {
	case f < 0:
		f = 0
	case f > 1:
		f = 1
	}
	*c = Confidence(f)
	return nil
}
