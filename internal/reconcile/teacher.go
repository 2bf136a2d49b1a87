package reconcile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

const monthLayout = "2006-01"

// MonthKey formats t as the "YYYY-MM" bucket key.
func MonthKey(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// ValidMonth reports whether key is a well formed "YYYY-MM" value.
func ValidMonth(key string) bool {
	_, err := time.Parse(monthLayout, key)
	return err == nil && len(key) == len(monthLayout)
}

// MonthBucket reconciles one teacher month.
type MonthBucket struct {
	Month               string          `json:"month"`
	LectureCount        int             `json:"lecture_count"`
	TotalHours          float64         `json:"total_hours"`
	CalculatedAmount    decimal.Decimal `json:"calculated_amount"`
	PaidAmount          decimal.Decimal `json:"paid_amount"`
	OutstandingAmount   decimal.Decimal `json:"outstanding_amount"`
	IsFullyPaid         bool            `json:"is_fully_paid"`
	SettlementCount     int             `json:"settlement_count"`
	SettlementIDs       []string        `json:"settlement_ids"`
	UnratedLectureCount int             `json:"unrated_lecture_count"`
}

// UnratedLecture is a lecture whose class/section has no assignment rate.
type UnratedLecture struct {
	LectureID string    `json:"lecture_id"`
	Month     string    `json:"month"`
	Class     string    `json:"class"`
	Section   string    `json:"section"`
	Subject   string    `json:"subject"`
	Date      time.Time `json:"date"`
	Hours     float64   `json:"hours"`
}

// TeacherReconciliation is the month by month view of a teacher's earnings.
type TeacherReconciliation struct {
	Months           []MonthBucket    `json:"months"`
	UnratedLectures  []UnratedLecture `json:"unrated_lectures"`
	TotalCalculated  decimal.Decimal  `json:"total_calculated"`
	TotalPaid        decimal.Decimal  `json:"total_paid"`
	TotalOutstanding decimal.Decimal  `json:"total_outstanding"`
}

// Month returns the bucket for key when present.
func (r TeacherReconciliation) Month(key string) (MonthBucket, bool) {
	for _, bucket := range r.Months {
		if bucket.Month == key {
			return bucket, true
		}
	}
	return MonthBucket{}, false
}

type rateKey struct {
	class   string
	section string
}

// ReconcileTeacher groups lectures by month, prices them with the matching
// assignment rate and subtracts the settlements recorded for each month.
// Lectures without an exact (class, section) assignment are priced at zero and
// listed in UnratedLectures. Buckets are ordered newest month first.
func ReconcileTeacher(assignments []models.Assignment, lectures []models.Lecture, settlements []models.TeacherPayment) TeacherReconciliation {
	rates := make(map[rateKey]decimal.Decimal, len(assignments))
	for _, a := range assignments {
		key := rateKey{class: a.Class, section: a.Section}
		if _, exists := rates[key]; !exists {
			rates[key] = a.SalaryPerHour
		}
	}

	buckets := make(map[string]*MonthBucket)
	bucket := func(month string) *MonthBucket {
		b, ok := buckets[month]
		if !ok {
			b = &MonthBucket{
				Month:            month,
				CalculatedAmount: decimal.Zero,
				PaidAmount:       decimal.Zero,
				SettlementIDs:    []string{},
			}
			buckets[month] = b
		}
		return b
	}

	result := TeacherReconciliation{UnratedLectures: []UnratedLecture{}}

	for _, lecture := range lectures {
		month := MonthKey(lecture.Date)
		b := bucket(month)
		hours := lecture.Hours()

		rate, ok := rates[rateKey{class: lecture.Class, section: lecture.Section}]
		if !ok {
			b.UnratedLectureCount++
			result.UnratedLectures = append(result.UnratedLectures, UnratedLecture{
				LectureID: lecture.ID,
				Month:     month,
				Class:     lecture.Class,
				Section:   lecture.Section,
				Subject:   lecture.Subject,
				Date:      lecture.Date,
				Hours:     hours,
			})
			continue
		}

		b.LectureCount++
		b.TotalHours += hours
		b.CalculatedAmount = b.CalculatedAmount.Add(rate.Mul(decimal.NewFromFloat(hours)))
	}

	for _, settlement := range settlements {
		b := bucket(settlement.Month)
		b.PaidAmount = b.PaidAmount.Add(settlement.Amount)
		b.SettlementCount++
		b.SettlementIDs = append(b.SettlementIDs, settlement.ID)
	}

	result.Months = make([]MonthBucket, 0, len(buckets))
	result.TotalCalculated = decimal.Zero
	result.TotalPaid = decimal.Zero
	result.TotalOutstanding = decimal.Zero
	for _, b := range buckets {
		b.OutstandingAmount = decimal.Max(decimal.Zero, b.CalculatedAmount.Sub(b.PaidAmount))
		b.IsFullyPaid = !b.OutstandingAmount.IsPositive()

		result.TotalCalculated = result.TotalCalculated.Add(b.CalculatedAmount)
		result.TotalPaid = result.TotalPaid.Add(b.PaidAmount)
		result.TotalOutstanding = result.TotalOutstanding.Add(b.OutstandingAmount)
		result.Months = append(result.Months, *b)
	}
	sort.Slice(result.Months, func(i, j int) bool {
		return result.Months[i].Month > result.Months[j].Month
	})

	return result
}
