// Package reconcile derives balances from the lecture and payment ledgers. It is
// pure: callers load the rows and translate the returned errors.
package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidScheduleKey is returned when a class/stream pair is not in the fee table.
	ErrInvalidScheduleKey = errors.New("invalid fee schedule key")
	// ErrInvalidInstallmentNumber is returned for installment positions outside 1..n.
	ErrInvalidInstallmentNumber = errors.New("invalid installment number")
)

// DefaultFeeTable is the yearly fee per class and stream.
func DefaultFeeTable() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"11": {"science": 45000, "commerce": 35000},
		"12": {"science": 50000, "commerce": 40000},
	}
}

// FeeSchedule is a read-only lookup of total yearly fees.
type FeeSchedule struct {
	table map[string]map[string]decimal.Decimal
}

// NewFeeSchedule builds a schedule from table, falling back to DefaultFeeTable
// when table is empty. Class and stream keys are normalised.
func NewFeeSchedule(table map[string]map[string]float64) *FeeSchedule {
	if len(table) == 0 {
		table = DefaultFeeTable()
	}
	out := make(map[string]map[string]decimal.Decimal, len(table))
	for class, streams := range table {
		classKey := strings.TrimSpace(class)
		if out[classKey] == nil {
			out[classKey] = make(map[string]decimal.Decimal, len(streams))
		}
		for stream, amount := range streams {
			out[classKey][normalizeStream(stream)] = decimal.NewFromFloat(amount)
		}
	}
	return &FeeSchedule{table: out}
}

// TotalFees returns the yearly fee for a class and stream.
func (s *FeeSchedule) TotalFees(classLevel, stream string) (decimal.Decimal, error) {
	streams, ok := s.table[strings.TrimSpace(classLevel)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: class %q", ErrInvalidScheduleKey, classLevel)
	}
	amount, ok := streams[normalizeStream(stream)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: class %q stream %q", ErrInvalidScheduleKey, classLevel, stream)
	}
	return amount, nil
}

// InstallmentAmount splits totalFees evenly over totalInstallments, rounding
// each share up to the next whole unit. Every position gets the same amount.
func InstallmentAmount(totalFees decimal.Decimal, totalInstallments, installmentNumber int) (decimal.Decimal, error) {
	if totalInstallments < 1 {
		return decimal.Zero, fmt.Errorf("%w: total installments must be at least 1", ErrInvalidInstallmentNumber)
	}
	if installmentNumber < 1 || installmentNumber > totalInstallments {
		return decimal.Zero, fmt.Errorf("%w: %d of %d", ErrInvalidInstallmentNumber, installmentNumber, totalInstallments)
	}
	return totalFees.Div(decimal.NewFromInt(int64(totalInstallments))).Ceil(), nil
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}
