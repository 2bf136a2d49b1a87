package service

import (
	"errors"
	"time"

	"github.com/noah-isme/coaching-center-api/internal/reconcile"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

// FeeSettings carries the fee schedule and academic calendar shared by the
// student, payment, dashboard and report services.
type FeeSettings struct {
	Schedule            *reconcile.FeeSchedule
	DefaultInstallments int
	YearStartMonth      time.Month
	Now                 func() time.Time
}

func (f FeeSettings) withDefaults() FeeSettings {
	if f.Schedule == nil {
		f.Schedule = reconcile.NewFeeSchedule(nil)
	}
	if f.DefaultInstallments <= 0 {
		f.DefaultInstallments = 3
	}
	if f.YearStartMonth < time.January || f.YearStartMonth > time.December {
		f.YearStartMonth = time.April
	}
	if f.Now == nil {
		f.Now = time.Now
	}
	return f
}

// CurrentAcademicYear returns the academic year label for today.
func (f FeeSettings) CurrentAcademicYear() string {
	return reconcile.AcademicYear(f.Now(), f.YearStartMonth)
}

// translateReconcileError maps engine sentinels onto API errors.
func translateReconcileError(err error) error {
	switch {
	case errors.Is(err, reconcile.ErrInvalidScheduleKey):
		return appErrors.Wrap(err, appErrors.ErrInvalidScheduleKey.Code, appErrors.ErrInvalidScheduleKey.Status, "class and stream are not in the fee schedule")
	case errors.Is(err, reconcile.ErrInvalidInstallmentNumber):
		return appErrors.Wrap(err, appErrors.ErrInvalidInstallmentNumber.Code, appErrors.ErrInvalidInstallmentNumber.Status, "installment number is out of range")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reconciliation failed")
	}
}
