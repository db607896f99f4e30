// Package money is the fixed-point amount type used for fees and bills.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
)

// Scale is the number of fractional digits an amount may carry.
const Scale = 2

// Amount is a decimal with at most two fractional digits. It scans from and
// writes to NUMERIC(12,2) columns and marshals as a JSON number such as
// 150.00.
type Amount struct {
	decimal.Decimal
}

func New(d decimal.Decimal) Amount {
	return Amount{d}
}

func Zero() Amount {
	return Amount{decimal.Zero}
}

// Parse reads a decimal string such as "100.50". Sub-cent values such as
// "0.005" are rejected.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, apperr.Wrap(err, apperr.KindInvalidInput, "invalid amount "+s)
	}
	return checked(d)
}

func checked(d decimal.Decimal) (Amount, error) {
	if !d.Round(Scale).Equal(d) {
		return Amount{}, apperr.InvalidInput("amount %s has more than %d decimal places", d.String(), Scale)
	}
	return Amount{d}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount { return Amount{a.Decimal.Add(b.Decimal)} }

func (a Amount) Sub(b Amount) Amount { return Amount{a.Decimal.Sub(b.Decimal)} }

func (a Amount) Equal(b Amount) bool { return a.Decimal.Equal(b.Decimal) }

func (a Amount) String() string { return a.StringFixed(2) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return apperr.Wrap(err, apperr.KindInvalidInput, "invalid amount")
	}
	v, err := checked(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
