package finance_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wuwenbin0122/finbot/internal/finance"
	"github.com/wuwenbin0122/finbot/internal/models"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func tx(label, amount string, date time.Time) models.Transaction {
	return models.Transaction{Category: label, Amount: dec(amount), Date: date}
}

func TestSummarizePortfolioGainPercent(t *testing.T) {
	s := finance.Summarize(models.DefaultProfile(), nil, []models.Holding{
		{Ticker: "NIFTY", Value: dec("1000"), Gain: dec("100")},
	}, time.Now())

	if !s.Portfolio.GainPercent.Equal(dec("11.11")) {
		t.Fatalf("expected gain percent 11.11, got %s", s.Portfolio.GainPercent)
	}
	if len(s.Portfolio.Holdings) != 1 || !s.Portfolio.Holdings[0].GainPercent.Equal(dec("11.11")) {
		t.Fatalf("expected holding gain percent 11.11, got %+v", s.Portfolio.Holdings)
	}
}

func TestSummarizeEmptyInputs(t *testing.T) {
	s := finance.Summarize(models.DefaultProfile(), nil, nil, time.Now())

	if !s.CashFlow.NetCashFlow.IsZero() || !s.Portfolio.TotalValue.IsZero() {
		t.Fatalf("expected zero totals, got %+v", s.CashFlow)
	}
	if !s.Portfolio.GainPercent.IsZero() || !s.Health.SavingsRate.IsZero() {
		t.Fatalf("expected zero percentages when denominators are zero")
	}
	if len(s.Goals) != 0 {
		t.Fatalf("expected no goals, got %d", len(s.Goals))
	}
}

func TestSummarizeCashFlow(t *testing.T) {
	jan := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC)

	s := finance.Summarize(models.DefaultProfile(), []models.Transaction{
		tx("Salary", "5000", jan),
		tx("Rent", "-2000", jan),
		tx("Salary", "5000", feb),
		tx("Food", "-500", feb),
		tx("Rent", "-2000", feb),
	}, nil, time.Now())

	if !s.CashFlow.TotalIncome.Equal(dec("10000")) {
		t.Fatalf("expected income 10000, got %s", s.CashFlow.TotalIncome)
	}
	if !s.CashFlow.TotalExpenses.Equal(dec("4500")) {
		t.Fatalf("expected expenses 4500, got %s", s.CashFlow.TotalExpenses)
	}
	if !s.CashFlow.NetCashFlow.Equal(dec("5500")) {
		t.Fatalf("expected net 5500, got %s", s.CashFlow.NetCashFlow)
	}
	if !s.Health.SavingsRate.Equal(dec("55")) {
		t.Fatalf("expected savings rate 55, got %s", s.Health.SavingsRate)
	}

	if len(s.CashFlow.Monthly) != 2 || s.CashFlow.Monthly[0].Month != "2025-02" {
		t.Fatalf("expected newest month first, got %+v", s.CashFlow.Monthly)
	}
	if !s.CashFlow.Monthly[0].NetFlow.Equal(dec("2500")) {
		t.Fatalf("expected february net 2500, got %s", s.CashFlow.Monthly[0].NetFlow)
	}

	top := s.CashFlow.TopExpenses
	if len(top) != 2 || top[0].Category != "Rent" || !top[0].Amount.Equal(dec("4000")) {
		t.Fatalf("unexpected top expenses: %+v", top)
	}

	// 5500 net over 2250 average monthly spend.
	if !s.Health.EmergencyFundMonths.Equal(dec("2.4")) {
		t.Fatalf("expected 2.4 emergency months, got %s", s.Health.EmergencyFundMonths)
	}
}

func TestSummarizeCapsMonthsAndCategories(t *testing.T) {
	start := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	var txs []models.Transaction
	for i := 0; i < 15; i++ {
		txs = append(txs, tx(fmt.Sprintf("Category %02d", i), "-10", start.AddDate(0, i, 0)))
	}

	s := finance.Summarize(models.DefaultProfile(), txs, nil, time.Now())

	if len(s.CashFlow.Monthly) != 12 {
		t.Fatalf("expected 12 monthly buckets, got %d", len(s.CashFlow.Monthly))
	}
	if s.CashFlow.Monthly[0].Month != "2025-03" {
		t.Fatalf("expected most recent month 2025-03, got %s", s.CashFlow.Monthly[0].Month)
	}
	if len(s.CashFlow.TopExpenses) != 5 {
		t.Fatalf("expected 5 top categories, got %d", len(s.CashFlow.TopExpenses))
	}
	if s.CashFlow.TopExpenses[0].Category != "Category 00" {
		t.Fatalf("expected ties broken by name, got %s", s.CashFlow.TopExpenses[0].Category)
	}
}

func TestSummarizeGoalsAndTaxes(t *testing.T) {
	profile := models.DefaultProfile()
	profile.Goals = "Emergency fund, house deposit ,"

	s := finance.Summarize(profile, []models.Transaction{
		tx("Salary", "1200000", time.Now()),
		tx("Tax Refund", "20000", time.Now()),
	}, []models.Holding{{Ticker: "ETF", Value: dec("75000"), Gain: dec("5000")}}, time.Now())

	if len(s.Goals) != 2 || s.Goals[1].Goal != "house deposit" {
		t.Fatalf("unexpected goals: %+v", s.Goals)
	}
	if !s.Goals[0].ProgressPercent.Equal(dec("100")) {
		t.Fatalf("expected progress capped at 100, got %s", s.Goals[0].ProgressPercent)
	}
	if !s.Taxes.TaxableIncome.Equal(dec("1200000")) {
		t.Fatalf("expected tax refund excluded, got %s", s.Taxes.TaxableIncome)
	}
	if !s.Taxes.EstimatedTax.IsPositive() {
		t.Fatalf("expected positive tax estimate")
	}
}

func TestPercentZeroWhole(t *testing.T) {
	if got := finance.Percent(dec("5"), decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}
