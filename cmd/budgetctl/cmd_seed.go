// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"familybudget/internal/budget"
	"familybudget/internal/db"
	"familybudget/internal/ledger"
	"familybudget/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNotEmpty = errors.New("database already has transactions; pass --force to add demo data anyway")

type demoTx struct {
	day         int
	typ         models.TxType
	amount      int64
	category    string
	description string
}

var demoTransactions = []demoTx{
	{1, models.Income, 18_000_000, "Lương", "Lương tháng của mẹ"},
	{1, models.Income, 15_500_000, "Lương", "Lương tháng của bố"},
	{2, models.Expense, 6_000_000, "Nhà cửa", "Tiền thuê nhà"},
	{3, models.Expense, 850_000, "Ăn uống", "Đi chợ đầu tháng"},
	{4, models.Expense, 120_000, "Đi lại", "Đổ xăng xe máy"},
	{5, models.Expense, 1_250_000, "Hóa đơn", "Tiền điện"},
	{5, models.Expense, 180_000, "Hóa đơn", "Tiền nước"},
	{7, models.Expense, 2_400_000, "Giáo dục", "Học phí tiếng Anh cho con"},
	{9, models.Expense, 65_000, "Ăn uống", "Phở sáng"},
	{10, models.Expense, 450_000, "Giải trí", "Xem phim cuối tuần"},
	{12, models.Expense, 300_000, "Hiếu hỉ", "Mừng cưới đồng nghiệp"},
	{14, models.Income, 2_000_000, "Thưởng", "Thưởng dự án"},
	{15, models.Expense, 720_000, "Sức khỏe", "Khám răng"},
}

func newSeedDemoCmd() *cobra.Command {
	var (
		username string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Fill the current month with sample family data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			n, err := seedDemo(ctx, database, time.Now(), username, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "Account the records are attributed to (defaults to the first administrator)")
	cmd.Flags().BoolVar(&force, "force", false, "Seed even if transactions already exist")
	return cmd
}

func demoOwner(ctx context.Context, database *db.Database, username string) (models.User, error) {
	if username != "" {
		return database.Queries.GetUserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	}
	users, err := database.Queries.ListUsers(ctx)
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if u.IsAdmin() {
			return u, nil
		}
	}
	return models.User{}, errors.New("no administrator found; create one with 'budgetctl user add --admin' first")
}

// seedDemo writes demo records dated within the month of now, never after
// today, and returns how many were created.
func seedDemo(ctx context.Context, database *db.Database, now time.Time, username string, force bool) (int, error) {
	owner, err := demoOwner(ctx, database, username)
	if err != nil {
		return 0, err
	}

	cats := models.MustLoadCategories()
	clock := func() time.Time { return now }
	svc := budget.NewService(database, cats)
	svc.Now = clock
	loans := ledger.NewService(database)
	loans.Now = clock

	if !force {
		page, err := svc.List(ctx, budget.ListParams{PerPage: 1})
		if err != nil {
			return 0, err
		}
		if page.Total > 0 {
			return 0, errNotEmpty
		}
	}

	local := now.In(models.Location)
	month := models.CurrentMonth(now)
	date := func(day int) string {
		if day > local.Day() {
			day = local.Day()
		}
		return fmt.Sprintf("%s-%02d", month, day)
	}

	count := 0
	for _, d := range demoTransactions {
		_, err := svc.Create(ctx, models.Transaction{
			Type:        d.typ,
			Amount:      decimal.NewFromInt(d.amount),
			Category:    d.category,
			Description: d.description,
			Date:        date(d.day),
		}, owner.ID)
		if err != nil {
			return count, fmt.Errorf("demo transaction %q: %w", d.description, err)
		}
		count++
	}

	lent, err := loans.CreateLoan(ctx, models.Loan{
		Direction:    models.Lend,
		Counterparty: "Cô Hoa",
		Principal:    decimal.NewFromInt(5_000_000),
		StartDate:    date(1),
		Note:         "Cho mượn sửa nhà",
	}, owner.ID)
	if err != nil {
		return count, fmt.Errorf("demo loan: %w", err)
	}
	count++
	if _, _, err := loans.RecordPayment(ctx, ledger.PaymentInput{
		LoanID:            lent.ID,
		Amount:            decimal.NewFromInt(1_000_000),
		Date:              date(10),
		Note:              "Trả đợt 1",
		RecordTransaction: true,
		UserID:            owner.ID,
	}); err != nil {
		return count, fmt.Errorf("demo payment: %w", err)
	}
	count++

	start := local.AddDate(0, -2, 0)
	if _, err := loans.CreateLoan(ctx, models.Loan{
		Direction:    models.Borrow,
		Counterparty: "Ngân hàng",
		Principal:    decimal.NewFromInt(20_000_000),
		InterestRate: decimal.NewFromFloat(9.5),
		StartDate:    models.Today(start),
		DueDate:      models.Today(start.AddDate(1, 0, 0)),
		Note:         "Vay mua xe",
	}, owner.ID); err != nil {
		return count, fmt.Errorf("demo loan: %w", err)
	}
	count++

	for _, n := range []models.Note{
		{Title: "Đi chợ cuối tuần", Content: "Rau, thịt, trứng, sữa cho con", Pinned: true, Color: "green"},
		{Title: "Mục tiêu tiết kiệm", Content: "Để dành 5 triệu mỗi tháng", Color: "yellow"},
	} {
		if _, err := svc.CreateNote(ctx, n, owner.ID); err != nil {
			return count, fmt.Errorf("demo note: %w", err)
		}
		count++
	}

	for _, e := range []models.Event{
		{Title: "Họp phụ huynh", Date: date(6), Time: "19:00", Kind: models.KindEvent},
		{Title: "Đóng tiền điện", Date: date(5), Kind: models.KindBill},
	} {
		if _, err := svc.CreateEvent(ctx, e, owner.ID); err != nil {
			return count, fmt.Errorf("demo event: %w", err)
		}
		count++
	}

	var shifts []models.WorkShift
	kinds := []models.ShiftKind{models.ShiftMorning, models.ShiftMorning, models.ShiftAfternoon, models.ShiftNight, models.ShiftOff}
	for day := 1; day <= local.Day() && day <= 7; day++ {
		shifts = append(shifts,
			models.WorkShift{Person: "Mẹ", Date: date(day), Shift: kinds[(day-1)%len(kinds)]},
			models.WorkShift{Person: "Bố", Date: date(day), Shift: models.ShiftOffice, StartTime: "08:00", EndTime: "17:00"},
		)
	}
	saved, err := svc.SaveShifts(ctx, shifts, owner.ID)
	if err != nil {
		return count, fmt.Errorf("demo shifts: %w", err)
	}
	count += saved

	logger.Info("Demo data seeded",
		zap.String("month", month),
		zap.String("owner", owner.Username),
		zap.Int("records", count))
	return count, nil
}
