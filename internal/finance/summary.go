package finance

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wuwenbin0122/finbot/internal/models"
	"github.com/wuwenbin0122/finbot/internal/persona"
	"github.com/wuwenbin0122/finbot/internal/tax"
)

const (
	maxMonths         = 12
	maxTopCategories  = 5
	goalTargetAmount  = 50000
	defaultGoalWindow = "5 years"
)

var hundred = decimal.NewFromInt(100)

// Summary is the derived view of a user's finances. Health indicators and
// goal progress are approximate and advisory only.
type Summary struct {
	Profile     ProfileSnapshot `json:"profile"`
	CashFlow    CashFlow        `json:"cashFlow"`
	Portfolio   Portfolio       `json:"portfolio"`
	Taxes       TaxEstimate     `json:"taxes"`
	Health      Health          `json:"health"`
	Goals       []GoalProgress  `json:"goals"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

type ProfileSnapshot struct {
	Persona       models.Persona     `json:"persona"`
	Age           string             `json:"age,omitempty"`
	Income        models.IncomeRange `json:"income,omitempty"`
	Goals         string             `json:"goals,omitempty"`
	RiskTolerance string             `json:"riskTolerance"`
	Style         string             `json:"investmentStyle"`
	TimeHorizon   string             `json:"timeHorizon,omitempty"`
	Country       string             `json:"country,omitempty"`
	Currency      string             `json:"currency,omitempty"`
}

type CashFlow struct {
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	NetCashFlow   decimal.Decimal `json:"netCashFlow"`
	Monthly       []MonthBucket   `json:"monthly"`
	TopIncome     []CategoryShare `json:"topIncome"`
	TopExpenses   []CategoryShare `json:"topExpenses"`
}

// MonthBucket sums one calendar month; Month is formatted YYYY-MM.
type MonthBucket struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	NetFlow  decimal.Decimal `json:"netFlow"`
}

type CategoryShare struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

type Portfolio struct {
	TotalValue  decimal.Decimal      `json:"totalValue"`
	TotalGain   decimal.Decimal      `json:"totalGain"`
	GainPercent decimal.Decimal      `json:"gainPercent"`
	Holdings    []HoldingPerformance `json:"holdings"`
}

type HoldingPerformance struct {
	Ticker      string          `json:"ticker"`
	Name        string          `json:"name"`
	Value       decimal.Decimal `json:"value"`
	Gain        decimal.Decimal `json:"gain"`
	GainPercent decimal.Decimal `json:"gainPercent"`
}

type TaxEstimate struct {
	TaxableIncome decimal.Decimal `json:"taxableIncome"`
	EstimatedTax  decimal.Decimal `json:"estimatedTax"`
	EffectiveRate decimal.Decimal `json:"effectiveRate"`
}

type Health struct {
	EmergencyFundMonths decimal.Decimal `json:"emergencyFundMonths"`
	SavingsRate         decimal.Decimal `json:"savingsRate"`
	InvestmentRatio     decimal.Decimal `json:"investmentRatio"`
}

type GoalProgress struct {
	Goal            string          `json:"goal"`
	TargetAmount    decimal.Decimal `json:"targetAmount"`
	CurrentAmount   decimal.Decimal `json:"currentAmount"`
	ProgressPercent decimal.Decimal `json:"progressPercent"`
	Timeline        string          `json:"timeline"`
}

// Summarize derives a Summary from raw records. It never fails; empty inputs
// produce zero totals.
func Summarize(profile models.UserProfile, txs []models.Transaction, holdings []models.Holding, now time.Time) *Summary {
	cash := summarizeCashFlow(txs)
	portfolio := summarizePortfolio(holdings)

	return &Summary{
		Profile: ProfileSnapshot{
			Persona:       profile.Persona,
			Age:           profile.Age,
			Income:        profile.Income,
			Goals:         profile.Goals,
			RiskTolerance: persona.RiskToleranceLabel(profile.RiskTolerance),
			Style:         persona.InvestmentStyle(profile.Persona),
			TimeHorizon:   profile.TimeHorizon,
			Country:       profile.Country,
			Currency:      profile.Currency,
		},
		CashFlow:    cash,
		Portfolio:   portfolio,
		Taxes:       estimateTaxes(txs),
		Health:      healthIndicators(cash, portfolio),
		Goals:       goalProgress(profile.Goals, portfolio),
		GeneratedAt: now.UTC(),
	}
}

// Percent returns part/whole*100 rounded to two decimals, or zero when whole
// is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

// GainPercent is gain relative to the amount invested (value minus gain).
func GainPercent(value, gain decimal.Decimal) decimal.Decimal {
	return Percent(gain, value.Sub(gain))
}

func summarizeCashFlow(txs []models.Transaction) CashFlow {
	var cf CashFlow
	months := map[string]*MonthBucket{}
	income := map[string]decimal.Decimal{}
	expenses := map[string]decimal.Decimal{}

	for _, t := range txs {
		key := t.Date.UTC().Format("2006-01")
		bucket, ok := months[key]
		if !ok {
			bucket = &MonthBucket{Month: key}
			months[key] = bucket
		}

		switch {
		case t.Amount.IsPositive():
			cf.TotalIncome = cf.TotalIncome.Add(t.Amount)
			bucket.Income = bucket.Income.Add(t.Amount)
			income[t.Label()] = income[t.Label()].Add(t.Amount)
		case t.Amount.IsNegative():
			abs := t.Amount.Abs()
			cf.TotalExpenses = cf.TotalExpenses.Add(abs)
			bucket.Expenses = bucket.Expenses.Add(abs)
			expenses[t.Label()] = expenses[t.Label()].Add(abs)
		}
		bucket.NetFlow = bucket.Income.Sub(bucket.Expenses)
	}
	cf.NetCashFlow = cf.TotalIncome.Sub(cf.TotalExpenses)

	cf.Monthly = make([]MonthBucket, 0, len(months))
	for _, b := range months {
		cf.Monthly = append(cf.Monthly, *b)
	}
	slices.SortFunc(cf.Monthly, func(a, b MonthBucket) int { return strings.Compare(b.Month, a.Month) })
	if len(cf.Monthly) > maxMonths {
		cf.Monthly = cf.Monthly[:maxMonths]
	}

	cf.TopIncome = topCategories(income, cf.TotalIncome)
	cf.TopExpenses = topCategories(expenses, cf.TotalExpenses)
	return cf
}

func topCategories(byCategory map[string]decimal.Decimal, total decimal.Decimal) []CategoryShare {
	shares := make([]CategoryShare, 0, len(byCategory))
	for category, amount := range byCategory {
		shares = append(shares, CategoryShare{
			Category:   category,
			Amount:     amount,
			Percentage: Percent(amount, total),
		})
	}
	slices.SortFunc(shares, func(a, b CategoryShare) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	if len(shares) > maxTopCategories {
		shares = shares[:maxTopCategories]
	}
	return shares
}

func summarizePortfolio(holdings []models.Holding) Portfolio {
	p := Portfolio{Holdings: make([]HoldingPerformance, 0, len(holdings))}
	for _, h := range holdings {
		p.TotalValue = p.TotalValue.Add(h.Value)
		p.TotalGain = p.TotalGain.Add(h.Gain)
		p.Holdings = append(p.Holdings, HoldingPerformance{
			Ticker:      h.Ticker,
			Name:        h.Name,
			Value:       h.Value,
			Gain:        h.Gain,
			GainPercent: GainPercent(h.Value, h.Gain),
		})
	}
	p.GainPercent = GainPercent(p.TotalValue, p.TotalGain)
	return p
}

func estimateTaxes(txs []models.Transaction) TaxEstimate {
	taxable := decimal.Zero
	for _, t := range txs {
		if t.Amount.IsPositive() && !strings.EqualFold(t.Label(), "Tax Refund") {
			taxable = taxable.Add(t.Amount)
		}
	}
	estimated := tax.EstimateAnnual(taxable)
	return TaxEstimate{
		TaxableIncome: taxable,
		EstimatedTax:  estimated.Round(2),
		EffectiveRate: Percent(estimated, taxable),
	}
}

func healthIndicators(cash CashFlow, portfolio Portfolio) Health {
	var h Health

	// Average monthly spend over the months that have data.
	if n := len(cash.Monthly); n > 0 && cash.TotalExpenses.IsPositive() {
		monthlySpend := cash.TotalExpenses.Div(decimal.NewFromInt(int64(n)))
		if cash.NetCashFlow.IsPositive() {
			h.EmergencyFundMonths = cash.NetCashFlow.Div(monthlySpend).Round(1)
		}
	}
	h.SavingsRate = Percent(cash.NetCashFlow, cash.TotalIncome)
	h.InvestmentRatio = Percent(portfolio.TotalValue, cash.TotalIncome)
	return h
}

func goalProgress(goals string, portfolio Portfolio) []GoalProgress {
	target := decimal.NewFromInt(goalTargetAmount)
	var out []GoalProgress
	for _, g := range strings.Split(goals, ",") {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		out = append(out, GoalProgress{
			Goal:            g,
			TargetAmount:    target,
			CurrentAmount:   portfolio.TotalValue,
			ProgressPercent: decimal.Min(Percent(portfolio.TotalValue, target), hundred),
			Timeline:        defaultGoalWindow,
		})
	}
	return out
}
