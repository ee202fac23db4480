// Package tax estimates Indian income tax under the FY 2024-25 slab regime.
package tax

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidIncome = errors.New("tax: monthly income must be positive")

// Input describes the salary and the deductions a user claims.
type Input struct {
	MonthlyIncome      decimal.Decimal `json:"monthlyIncome"`
	HealthInsurance    bool            `json:"healthInsurance"`
	HomeLoan           bool            `json:"homeLoan"`
	EducationLoan      bool            `json:"educationLoan"`
	NPS                bool            `json:"nps"`
	ELSS               bool            `json:"elss"`
	PPF                bool            `json:"ppf"`
	EPF                bool            `json:"epf"`
	MedicalBillsAmount decimal.Decimal `json:"medicalBillsAmount"`
	DonationsAmount    decimal.Decimal `json:"donationsAmount"`
}

type Deduction struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// SlabTax is the tax due within one slab. Rate is a percentage.
type SlabTax struct {
	Slab   string          `json:"slab"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type Result struct {
	AnnualIncome    decimal.Decimal `json:"annualIncome"`
	Deductions      []Deduction     `json:"deductions"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	TaxableIncome   decimal.Decimal `json:"taxableIncome"`
	Breakdown       []SlabTax       `json:"breakdown"`
	Tax             decimal.Decimal `json:"tax"`
	Cess            decimal.Decimal `json:"cess"`
	TotalTax        decimal.Decimal `json:"totalTax"`
	EffectiveRate   decimal.Decimal `json:"effectiveRate"`
}

const StandardDeduction = 50000

var (
	hundred = decimal.NewFromInt(100)
	cessPct = decimal.NewFromInt(4)
)

type slab struct {
	label string
	lower int64
	upper int64 // 0 means unbounded
	rate  int64
}

var slabs = []slab{
	{label: "Up to ₹3,00,000", lower: 0, upper: 300000, rate: 0},
	{label: "₹3,00,001 - ₹6,00,000", lower: 300000, upper: 600000, rate: 5},
	{label: "₹6,00,001 - ₹9,00,000", lower: 600000, upper: 900000, rate: 10},
	{label: "₹9,00,001 - ₹12,00,000", lower: 900000, upper: 1200000, rate: 15},
	{label: "₹12,00,001 - ₹15,00,000", lower: 1200000, upper: 1500000, rate: 20},
	{label: "Above ₹15,00,000", lower: 1500000, rate: 30},
}

type cappedDeduction struct {
	name    string
	enabled func(Input) bool
	cap     int64
	pct     int64 // share of annual income, in percent
}

var incomeLinkedDeductions = []cappedDeduction{
	{name: "Health Insurance Premium (Section 80D)", enabled: func(in Input) bool { return in.HealthInsurance }, cap: 25000, pct: 10},
	{name: "Home Loan Interest (Section 24)", enabled: func(in Input) bool { return in.HomeLoan }, cap: 200000, pct: 20},
	{name: "Education Loan Interest (Section 80E)", enabled: func(in Input) bool { return in.EducationLoan }, cap: 50000, pct: 10},
	{name: "NPS Contribution (Section 80CCD)", enabled: func(in Input) bool { return in.NPS }, cap: 50000, pct: 10},
	{name: "ELSS Investment (Section 80C)", enabled: func(in Input) bool { return in.ELSS }, cap: 150000, pct: 15},
	{name: "PPF Contribution (Section 80C)", enabled: func(in Input) bool { return in.PPF }, cap: 150000, pct: 15},
	{name: "EPF Contribution (Section 80C)", enabled: func(in Input) bool { return in.EPF }, cap: 150000, pct: 12},
}

// Calculate annualises the monthly income, applies the claimed deductions and
// computes slab tax plus the 4% health and education cess.
func Calculate(in Input) (*Result, error) {
	if !in.MonthlyIncome.IsPositive() {
		return nil, ErrInvalidIncome
	}

	annual := in.MonthlyIncome.Mul(decimal.NewFromInt(12))
	res := &Result{AnnualIncome: annual}

	add := func(name string, amount decimal.Decimal) {
		res.Deductions = append(res.Deductions, Deduction{Name: name, Amount: amount})
		res.TotalDeductions = res.TotalDeductions.Add(amount)
	}

	add("Standard Deduction (Section 16)", decimal.NewFromInt(StandardDeduction))
	for _, d := range incomeLinkedDeductions {
		if !d.enabled(in) {
			continue
		}
		share := annual.Mul(decimal.NewFromInt(d.pct)).Div(hundred)
		add(d.name, decimal.Min(decimal.NewFromInt(d.cap), share))
	}
	if in.MedicalBillsAmount.IsPositive() {
		add("Medical Bills (Section 80DDB)", decimal.Min(decimal.NewFromInt(40000), in.MedicalBillsAmount))
	}
	if in.DonationsAmount.IsPositive() {
		add("Donations (Section 80G)", decimal.Min(decimal.NewFromInt(100000), in.DonationsAmount))
	}

	res.TaxableIncome = decimal.Max(decimal.Zero, annual.Sub(res.TotalDeductions))
	res.Tax, res.Breakdown = slabTax(res.TaxableIncome)
	res.Cess = res.Tax.Mul(cessPct).Div(hundred)
	res.TotalTax = res.Tax.Add(res.Cess)
	res.EffectiveRate = res.TotalTax.Div(annual).Mul(hundred).Round(2)

	return res, nil
}

// EstimateAnnual returns slab tax plus cess on an annual taxable income.
func EstimateAnnual(taxable decimal.Decimal) decimal.Decimal {
	if !taxable.IsPositive() {
		return decimal.Zero
	}
	tax, _ := slabTax(taxable)
	return tax.Add(tax.Mul(cessPct).Div(hundred))
}

func slabTax(taxable decimal.Decimal) (decimal.Decimal, []SlabTax) {
	first := slabs[0]
	if taxable.LessThanOrEqual(decimal.NewFromInt(first.upper)) {
		return decimal.Zero, []SlabTax{{Slab: first.label, Rate: decimal.Zero, Amount: decimal.Zero}}
	}

	total := decimal.Zero
	var breakdown []SlabTax
	for _, s := range slabs[1:] {
		lower := decimal.NewFromInt(s.lower)
		if taxable.LessThanOrEqual(lower) {
			break
		}
		top := taxable
		if s.upper > 0 {
			top = decimal.Min(taxable, decimal.NewFromInt(s.upper))
		}
		rate := decimal.NewFromInt(s.rate)
		amount := top.Sub(lower).Mul(rate).Div(hundred)
		total = total.Add(amount)
		breakdown = append(breakdown, SlabTax{Slab: s.label, Rate: rate, Amount: amount})
	}
	return total, breakdown
}
