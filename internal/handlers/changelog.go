// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

type ChangelogEntry struct {
	Version     string
	Date        string
	Category    string
	Title       string
	Description string
	Icon        string
}

// GetChangelog lists releases newest first. The top entry matches
// config.Version.
func GetChangelog() []ChangelogEntry {
	return []ChangelogEntry{
		{
			Version:     "1.4.2",
			Date:        "2026-10-12",
			Category:    "Sửa lỗi",
			Title:       "Hủy lần trả nợ an toàn hơn",
			Description: "Hủy một lần trả sẽ hoàn lại số dư khoản vay và xóa giao dịch thu/chi đi kèm trong cùng một bước.",
			Icon:        "↩️",
		},
		{
			Version:     "1.4.0",
			Date:        "2026-09-20",
			Category:    "Trợ lý AI",
			Title:       "Đọc lịch làm việc từ ảnh",
			Description: "Chụp bảng phân ca, kiểm tra lại từng dòng rồi lưu thẳng vào lịch gia đình.",
			Icon:        "📅",
		},
		{
			Version:     "1.3.0",
			Date:        "2026-08-02",
			Category:    "Trợ lý AI",
			Title:       "Hỏi đáp chi tiêu",
			Description: "Hỏi trợ lý về thu chi tháng này, xu hướng các tháng trước và các khoản vay đang mở.",
			Icon:        "💬",
		},
		{
			Version:     "1.2.0",
			Date:        "2026-06-15",
			Category:    "Khoản vay",
			Title:       "Sổ theo dõi cho vay và đi vay",
			Description: "Ghi nhận từng lần trả, tự tính số còn lại, đánh dấu quá hạn và tạo giao dịch tương ứng.",
			Icon:        "🤝",
		},
		{
			Version:     "1.1.0",
			Date:        "2026-05-01",
			Category:    "Trợ lý AI",
			Title:       "Nhập hóa đơn bằng ảnh",
			Description: "Chụp hóa đơn để điền sẵn số tiền, ngày và danh mục; khi AI không đọc được thì vẫn nhập tay như thường.",
			Icon:        "🧾",
		},
		{
			Version:     "1.0.0",
			Date:        "2026-04-01",
			Category:    "Ra mắt",
			Title:       "Sổ thu chi gia đình",
			Description: "Thu chi theo tháng, ghi chú, lịch sự kiện và tài khoản cho từng thành viên.",
			Icon:        "🏠",
		},
	}
}
