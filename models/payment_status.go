package models

import (
	"math"
	"time"
)

// AmountTolerance is the maximum accepted drift between the sum of
// installment amounts and a payment's total amount.
const AmountTolerance = 0.01

// DeriveInstallmentStatus derives the status of one installment at the
// given time. Paid wins over everything, an unpaid installment past its
// due date is overdue.
func DeriveInstallmentStatus(installment Installment, now time.Time) InstallmentStatus {
	if installment.PaidAt != nil {
		return InstallmentStatusPaid
	}
	if installment.DueDate.Before(now) {
		return InstallmentStatusOverdue
	}
	return InstallmentStatusPending
}

// DerivePaymentStatus derives the aggregate status of a payment at the
// given time. For installment payments, overdue takes priority over
// partial: one overdue installment marks the whole payment overdue even
// if others are already paid.
func DerivePaymentStatus(payment *Payment, now time.Time) PaymentStatus {
	if payment.PaymentType == PaymentTypeComplete {
		if payment.PaidAt != nil {
			return PaymentStatusCompleted
		}
		if payment.DueDate != nil && payment.DueDate.Before(now) {
			return PaymentStatusOverdue
		}
		return PaymentStatusPending
	}

	paid := 0
	overdue := 0
	for _, installment := range payment.Installments {
		switch DeriveInstallmentStatus(installment, now) {
		case InstallmentStatusPaid:
			paid++
		case InstallmentStatusOverdue:
			overdue++
		}
	}

	if len(payment.Installments) > 0 && paid == len(payment.Installments) {
		return PaymentStatusCompleted
	}
	if overdue > 0 {
		return PaymentStatusOverdue
	}
	if paid > 0 {
		return PaymentStatusPartial
	}
	return PaymentStatusPending
}

// RefreshStatus recomputes every installment status and the aggregate
// status in place. Returns true if anything changed.
func RefreshStatus(payment *Payment, now time.Time) bool {
	changed := false
	for i := range payment.Installments {
		status := DeriveInstallmentStatus(payment.Installments[i], now)
		if payment.Installments[i].Status != status {
			payment.Installments[i].Status = status
			changed = true
		}
	}
	status := DerivePaymentStatus(payment, now)
	if payment.Status != status {
		payment.Status = status
		changed = true
	}
	return changed
}

// PaidAmount returns the sum of amounts of paid installments
func PaidAmount(installments []Installment) float64 {
	var total float64
	for _, installment := range installments {
		if installment.PaidAt != nil {
			total += installment.Amount
		}
	}
	return total
}

// RemainingAmount returns what is still owed on the ledger
func RemainingAmount(installments []Installment, totalAmount float64) float64 {
	return totalAmount - PaidAmount(installments)
}

// NextDueInstallment returns the unpaid installment with the earliest due
// date, ties broken by the lowest installment number. Returns nil if all
// installments are paid.
func NextDueInstallment(installments []Installment) *Installment {
	var next *Installment
	for i := range installments {
		if installments[i].PaidAt != nil {
			continue
		}
		if next == nil ||
			installments[i].DueDate.Before(next.DueDate) ||
			(installments[i].DueDate.Equal(next.DueDate) && installments[i].InstallmentNumber < next.InstallmentNumber) {
			next = &installments[i]
		}
	}
	return next
}

// InstallmentAmountsMatch reports whether the installment amounts sum to
// the total amount within the accepted tolerance
func InstallmentAmountsMatch(installments []Installment, totalAmount float64) bool {
	var sum float64
	for _, installment := range installments {
		sum += installment.Amount
	}
	return math.Abs(sum-totalAmount) <= AmountTolerance
}

// PaymentSummary represents the derived financial summary of a payment
type PaymentSummary struct {
	TotalAmount       float64    `json:"total_amount"`
	PaidAmount        float64    `json:"paid_amount"`
	RemainingAmount   float64    `json:"remaining_amount"`
	NextDueDate       *time.Time `json:"next_due_date,omitempty"`
	TotalInstallments int        `json:"total_installments"`
	PaidInstallments  int        `json:"paid_installments"`
}

// Summarize builds the summary projection for a payment. Pure, no side
// effects.
func Summarize(payment *Payment) PaymentSummary {
	summary := PaymentSummary{TotalAmount: payment.TotalAmount}

	if payment.PaymentType == PaymentTypeComplete {
		if payment.PaidAt != nil {
			summary.PaidAmount = payment.TotalAmount
		} else {
			summary.NextDueDate = payment.DueDate
		}
		summary.RemainingAmount = payment.TotalAmount - summary.PaidAmount
		return summary
	}

	summary.PaidAmount = PaidAmount(payment.Installments)
	summary.RemainingAmount = RemainingAmount(payment.Installments, payment.TotalAmount)
	summary.TotalInstallments = len(payment.Installments)
	for _, installment := range payment.Installments {
		if installment.PaidAt != nil {
			summary.PaidInstallments++
		}
	}
	if next := NextDueInstallment(payment.Installments); next != nil {
		due := next.DueDate
		summary.NextDueDate = &due
	}
	return summary
}
