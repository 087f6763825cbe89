// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"familybudget/internal/models"

	"github.com/shopspring/decimal"
)

const MaxImageBytes = 8 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

type BillItem struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type BillResult struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	Merchant    string          `json:"merchant"`
	Items       []BillItem      `json:"items"`
	Confidence  float64         `json:"confidence"`
	Fallback    bool            `json:"fallback"`
}

// ValidateImage checks the upload size and sniffs its type. A declared MIME
// is trusted only for HEIC/HEIF, which the sniffer does not know.
func ValidateImage(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", &models.ValidationError{Field: "image", Message: "Vui lòng chọn ảnh"}
	}
	if len(data) > MaxImageBytes {
		return "", &models.ValidationError{Field: "image", Message: "Ảnh tối đa 8MB"}
	}
	mime := http.DetectContentType(data)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if !allowedImageTypes[mime] {
		declared = strings.ToLower(strings.TrimSpace(declared))
		if (declared != "image/heic" && declared != "image/heif") || !isHEIF(data) {
			return "", &models.ValidationError{Field: "image", Message: "Chỉ hỗ trợ ảnh JPEG, PNG, WEBP hoặc HEIC"}
		}
		mime = declared
	}
	return mime, nil
}

var heifBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "heim": true,
	"heis": true, "mif1": true, "msf1": true,
}

// isHEIF checks the ISO-BMFF ftyp box that opens every HEIC/HEIF file.
func isHEIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	return heifBrands[string(data[8:12])]
}

const billSystemPrompt = `Bạn là trợ lý đọc hóa đơn cho ứng dụng quản lý chi tiêu gia đình ở Việt Nam.
Đọc ảnh hóa đơn/biên lai và trả về DUY NHẤT một đối tượng JSON, không giải thích thêm.`

func (f *Flows) billPrompt() string {
	return fmt.Sprintf(`Trích xuất thông tin từ ảnh hóa đơn theo định dạng JSON:
{
  "amount": tổng số tiền phải trả (số, đơn vị VND),
  "description": mô tả ngắn gọn bằng tiếng Việt,
  "category": một trong [%s],
  "date": ngày trên hóa đơn dạng YYYY-MM-DD (nếu không rõ dùng %s),
  "merchant": tên cửa hàng,
  "items": [{"name": tên món, "amount": số tiền}],
  "confidence": độ tin cậy từ 0 đến 1
}`, strings.Join(f.categories.Names(models.Expense), ", "), f.today())
}

type billPayload struct {
	Amount      models.Amount `json:"amount"`
	Total       models.Amount `json:"total"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Date        string        `json:"date"`
	Merchant    string        `json:"merchant"`
	Confidence  Confidence    `json:"confidence"`
	Items       []struct {
		Name   string        `json:"name"`
		Amount models.Amount `json:"amount"`
		Price  models.Amount `json:"price"`
	} `json:"items"`
}

// ExtractBill reads a bill photo into a prefilled expense.
func (f *Flows) ExtractBill(ctx context.Context, image []byte, declaredMIME string) (BillResult, error) {
	mime, err := ValidateImage(image, declaredMIME)
	if err != nil {
		return BillResult{}, err
	}
	req := Request{
		System: billSystemPrompt,
		Prompt: f.billPrompt(),
		Images: []Image{{Data: image, MIME: mime}},
		JSON:   true,
	}
	result, fallback := run(ctx, f, FlowBill, req, f.parseBill, f.billFallback)
	result.Fallback = fallback
	return result, nil
}

func (f *Flows) parseBill(text string) (BillResult, error) {
	var p billPayload
	if err := DecodeJSON(text, &p); err != nil {
		return BillResult{}, err
	}
	amount := p.Amount.Decimal
	if !amount.IsPositive() {
		amount = p.Total.Decimal
	}

	items := make([]BillItem, 0, len(p.Items))
	itemSum := decimal.Zero
	for _, it := range p.Items {
		name := strings.TrimSpace(it.Name)
		v := it.Amount.Decimal
		if !v.IsPositive() {
			v = it.Price.Decimal
		}
		if name == "" || !v.IsPositive() {
			continue
		}
		items = append(items, BillItem{Name: name, Amount: v})
		itemSum = itemSum.Add(v)
	}
	if !amount.IsPositive() {
		amount = itemSum
	}
	if !amount.IsPositive() {
		return BillResult{}, fmt.Errorf("bill has no usable amount")
	}

	category, ok := f.categories.Canonical(models.Expense, p.Category)
	if !ok {
		category, _ = f.categories.MatchKeywords(models.Expense, p.Description+" "+p.Merchant)
	}
	date := strings.TrimSpace(p.Date)
	if !models.ValidDate(date) {
		date = f.today()
	}
	description := strings.TrimSpace(p.Description)
	if description == "" {
		description = strings.TrimSpace(p.Merchant)
	}

	return BillResult{
		Amount:      amount,
		Description: description,
		Category:    category,
		Date:        date,
		Merchant:    strings.TrimSpace(p.Merchant),
		Items:       items,
		Confidence:  float64(p.Confidence),
	}, nil
}

func (f *Flows) billFallback() BillResult {
	return BillResult{
		Amount:   decimal.Zero,
		Category: models.OtherCategory,
		Date:     f.today(),
		Items:    []BillItem{},
	}
}
