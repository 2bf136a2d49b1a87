package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

// AcademicYear returns the "YYYY-YYYY" label of the academic year containing t.
// Years start on the first day of startMonth.
func AcademicYear(t time.Time, startMonth time.Month) string {
	if startMonth < time.January || startMonth > time.December {
		startMonth = time.April
	}
	year := t.Year()
	if t.Month() < startMonth {
		year--
	}
	return fmt.Sprintf("%d-%d", year, year+1)
}

// AcademicYearBreakdown reconciles one academic year of student fees.
type AcademicYearBreakdown struct {
	AcademicYear    string                  `json:"academic_year"`
	TotalFees       decimal.Decimal         `json:"total_fees"`
	PaidAmount      decimal.Decimal         `json:"paid_amount"`
	RemainingAmount decimal.Decimal         `json:"remaining_amount"`
	Installments    []models.StudentPayment `json:"installments"`
}

// ReconcileStudent groups installments by academic year, newest first, with
// installments ordered by position. Only paid installments reduce the
// remaining amount, so PaidAmount + RemainingAmount always equals TotalFees.
func ReconcileStudent(totalFees decimal.Decimal, installments []models.StudentPayment) []AcademicYearBreakdown {
	sorted := make([]models.StudentPayment, len(installments))
	copy(sorted, installments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AcademicYear != sorted[j].AcademicYear {
			return sorted[i].AcademicYear > sorted[j].AcademicYear
		}
		return sorted[i].InstallmentNumber < sorted[j].InstallmentNumber
	})

	breakdowns := make([]AcademicYearBreakdown, 0)
	index := make(map[string]int)
	for _, inst := range sorted {
		pos, ok := index[inst.AcademicYear]
		if !ok {
			breakdowns = append(breakdowns, AcademicYearBreakdown{
				AcademicYear:    inst.AcademicYear,
				TotalFees:       totalFees,
				PaidAmount:      decimal.Zero,
				RemainingAmount: totalFees,
				Installments:    []models.StudentPayment{},
			})
			pos = len(breakdowns) - 1
			index[inst.AcademicYear] = pos
		}
		b := &breakdowns[pos]
		if inst.Status == models.InstallmentPaid {
			b.PaidAmount = b.PaidAmount.Add(inst.Amount)
			b.RemainingAmount = b.RemainingAmount.Sub(inst.Amount)
		}
		b.Installments = append(b.Installments, inst)
	}
	return breakdowns
}

// FeeStatusFor returns the fee status for academicYear. A year without any
// installment owes the full amount.
func FeeStatusFor(totalFees decimal.Decimal, breakdowns []AcademicYearBreakdown, academicYear string) models.FeeStatus {
	status := models.FeeStatus{
		AcademicYear: academicYear,
		OverallFees:  totalFees,
		PaidFees:     decimal.Zero,
		DueFees:      totalFees,
	}
	for _, b := range breakdowns {
		if b.AcademicYear == academicYear {
			status.PaidFees = b.PaidAmount
			status.DueFees = b.RemainingAmount
			break
		}
	}
	return status
}
