package finance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wuwenbin0122/finbot/internal/currency"
)

// NoDataText is what the model sees when no summary is available.
const NoDataText = "No data available. Do not assume any balances, income or holdings; ask the user instead."

const defaultCurrency = "INR"

// FormatContext renders s as the text block appended to the system
// instruction. A nil summary renders NoDataText.
func FormatContext(s *Summary) string {
	if s == nil {
		return NoDataText
	}

	code := s.Profile.Currency
	if code == "" {
		code = defaultCurrency
	}
	amt := func(d decimal.Decimal) string { return currency.Format(d, code) }
	pct := func(d decimal.Decimal) string { return d.StringFixed(1) + "%" }
	orNone := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return "Not specified"
		}
		return v
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("USER FINANCIAL PROFILE:")
	line("- Persona: %s", s.Profile.Persona)
	line("- Age: %s", orNone(s.Profile.Age))
	line("- Income Range: %s", orNone(string(s.Profile.Income)))
	line("- Risk Tolerance: %s", s.Profile.RiskTolerance)
	line("- Investment Style: %s", s.Profile.Style)
	line("- Financial Goals: %s", orNone(s.Profile.Goals))
	line("")
	line("CURRENT FINANCIAL STATUS:")
	line("- Total Portfolio Value: %s", amt(s.Portfolio.TotalValue))
	line("- Portfolio Gain: %s (%s)", amt(s.Portfolio.TotalGain), pct(s.Portfolio.GainPercent))
	line("- Total Income: %s", amt(s.CashFlow.TotalIncome))
	line("- Total Expenses: %s", amt(s.CashFlow.TotalExpenses))
	line("- Net Cash Flow: %s", amt(s.CashFlow.NetCashFlow))
	line("- Savings Rate: %s", pct(s.Health.SavingsRate))

	if len(s.Portfolio.Holdings) > 0 {
		line("")
		line("INVESTMENT HOLDINGS:")
		for _, h := range s.Portfolio.Holdings {
			line("- %s: %s (%s gain)", h.Ticker, amt(h.Value), pct(h.GainPercent))
		}
	}

	if len(s.CashFlow.TopExpenses) > 0 {
		line("")
		line("TOP EXPENSE CATEGORIES:")
		for _, e := range s.CashFlow.TopExpenses {
			line("- %s: %s (%s)", e.Category, amt(e.Amount), pct(e.Percentage))
		}
	}

	if len(s.CashFlow.Monthly) > 0 {
		line("")
		line("MONTHLY CASH FLOW:")
		for _, m := range s.CashFlow.Monthly {
			line("- %s: income %s, expenses %s, net %s", m.Month, amt(m.Income), amt(m.Expenses), amt(m.NetFlow))
		}
	}

	line("")
	line("FINANCIAL HEALTH (approximate indicators):")
	line("- Emergency Fund: %s months of expenses", s.Health.EmergencyFundMonths.StringFixed(1))
	line("- Investment Ratio: %s", pct(s.Health.InvestmentRatio))
	line("- Estimated Annual Tax: %s (%s effective)", amt(s.Taxes.EstimatedTax), pct(s.Taxes.EffectiveRate))

	if len(s.Goals) > 0 {
		line("")
		line("GOALS PROGRESS:")
		for _, g := range s.Goals {
			line("- %s: %s complete (%s / %s)", g.Goal, pct(g.ProgressPercent), amt(g.CurrentAmount), amt(g.TargetAmount))
		}
	}

	line("")
	line("Current Date: %s", s.GeneratedAt.Format("2006-01-02"))

	return strings.TrimSpace(b.String())
}
