// Package currency converts between a fixed set of currencies using static
// USD-based rates and formats amounts for display.
package currency

import (
	"errors"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var ErrUnknownCurrency = errors.New("currency: unknown currency code")

// Rate is the number of units of Code that one US dollar buys.
type Rate struct {
	Code string          `json:"code"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

var rates = []Rate{
	{Code: "USD", Name: "US Dollar", Rate: decimal.NewFromInt(1)},
	{Code: "INR", Name: "Indian Rupee", Rate: decimal.RequireFromString("83.5")},
	{Code: "EUR", Name: "Euro", Rate: decimal.RequireFromString("0.92")},
	{Code: "GBP", Name: "British Pound", Rate: decimal.RequireFromString("0.79")},
	{Code: "JPY", Name: "Japanese Yen", Rate: decimal.RequireFromString("150.5")},
	{Code: "CAD", Name: "Canadian Dollar", Rate: decimal.RequireFromString("1.35")},
	{Code: "AUD", Name: "Australian Dollar", Rate: decimal.RequireFromString("1.52")},
	{Code: "CHF", Name: "Swiss Franc", Rate: decimal.RequireFromString("0.88")},
	{Code: "CNY", Name: "Chinese Yuan", Rate: decimal.RequireFromString("7.23")},
	{Code: "SGD", Name: "Singapore Dollar", Rate: decimal.RequireFromString("1.34")},
	{Code: "AED", Name: "UAE Dirham", Rate: decimal.RequireFromString("3.67")},
	{Code: "SAR", Name: "Saudi Riyal", Rate: decimal.RequireFromString("3.75")},
}

// Supported lists the convertible currencies in display order.
func Supported() []Rate {
	return append([]Rate(nil), rates...)
}

func lookup(code string) (Rate, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, r := range rates {
		if r.Code == code {
			return r, nil
		}
	}
	return Rate{}, ErrUnknownCurrency
}

// Convert expresses amount of from in to, going through USD, rounded to two
// decimals.
func Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	src, err := lookup(from)
	if err != nil {
		return decimal.Zero, err
	}
	dst, err := lookup(to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(src.Rate).Mul(dst.Rate).Round(2), nil
}

// Format renders amount with the currency's symbol and grouping, e.g.
// "₹1,234.50". Codes go-money does not know are rendered as plain numbers
// followed by the code.
func Format(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	factor := decimal.New(1, int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0).IntPart()
	return money.New(minor, code).Display()
}
