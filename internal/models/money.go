// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatVND renders an amount the Vietnamese way: "1.250.000đ".
func FormatVND(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "đ"
	if neg {
		return "-" + out
	}
	return out
}

// Amount decodes either a JSON number or a human-written string such as
// "150.000đ" or "1,2 triệu". Null and "" decode to zero.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			a.Decimal = decimal.Zero
			return nil
		}
		d, err := ParseAmount(s)
		if err != nil {
			return err
		}
		a.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return invalid("amount", "Số tiền không hợp lệ")
	}
	a.Decimal = d.Round(0)
	return nil
}
