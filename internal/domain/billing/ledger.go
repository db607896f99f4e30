package billing

import (
	"strings"
	"time"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/money"
)

// Summary aggregates a set of bills. Outstanding is total minus paid;
// insurance coverage is reported but not subtracted.
type Summary struct {
	TotalAmount      money.Amount `json:"total_amount"`
	PaidAmount       money.Amount `json:"paid_amount"`
	InsuranceCovered money.Amount `json:"insurance_covered"`
	BillCount        int          `json:"total_bills"`
	Outstanding      money.Amount `json:"outstanding"`
}

// ComputeBalance is total minus paid. Overpayment yields a negative balance.
func ComputeBalance(b *Bill) money.Amount {
	return b.TotalAmount.Sub(b.PaidAmount)
}

func Summarize(bills []*Bill) Summary {
	s := Summary{
		TotalAmount:      money.Zero(),
		PaidAmount:       money.Zero(),
		InsuranceCovered: money.Zero(),
	}
	for _, b := range bills {
		s.TotalAmount = s.TotalAmount.Add(b.TotalAmount)
		s.PaidAmount = s.PaidAmount.Add(b.PaidAmount)
		s.InsuranceCovered = s.InsuranceCovered.Add(b.InsuranceCovered)
		s.BillCount++
	}
	s.Outstanding = s.TotalAmount.Sub(s.PaidAmount)
	return s
}

// DeriveStatus infers a bill's status from its amounts. Cancelled bills stay
// cancelled and overdue bills stay overdue until settled.
func DeriveStatus(b *Bill) string {
	if b.Status == StatusCancelled {
		return StatusCancelled
	}
	balance := ComputeBalance(b)
	switch {
	case !balance.IsPositive():
		return StatusPaid
	case b.Status == StatusOverdue:
		return StatusOverdue
	case b.PaidAmount.IsPositive():
		return StatusPartial
	}
	return StatusPending
}

// Recompute refreshes the derived balance and status after any change to
// the amounts.
func Recompute(b *Bill) {
	b.Balance = ComputeBalance(b)
	b.Status = DeriveStatus(b)
}

// ApplyPayment adds amount to the paid total.
func ApplyPayment(b *Bill, amount money.Amount, method string, at time.Time) error {
	if !amount.IsPositive() {
		return apperr.InvalidInput("payment amount must be positive")
	}
	if b.Status == StatusCancelled {
		return apperr.InvalidState("cannot pay a cancelled bill")
	}
	b.PaidAmount = b.PaidAmount.Add(amount)
	if method = strings.TrimSpace(method); method != "" {
		b.PaymentMethod = &method
	}
	b.PaymentDate = &at
	Recompute(b)
	return nil
}
