package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/repository"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type fakeUserRepo struct {
	users     map[string]*models.User
	auditLogs []*models.AuditLog
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) ExistsByEmail(_ context.Context, email, excludeID string) (bool, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) ExistsByRole(_ context.Context, role models.UserRole) (bool, error) {
	for _, u := range f.users {
		if u.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	if u, ok := f.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if u, ok := f.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (f *fakeUserRepo) UpdateCredentials(_ context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.auditLogs = append(f.auditLogs, log)
	return nil
}

// fakeStudentRepo mirrors student writes into the shared user repo.
type fakeStudentRepo struct {
	students map[string]*models.Student
	users    *fakeUserRepo
}

func newFakeStudentRepo(users *fakeUserRepo, students ...*models.Student) *fakeStudentRepo {
	repo := &fakeStudentRepo{students: make(map[string]*models.Student), users: users}
	for _, s := range students {
		repo.students[s.ID] = s
	}
	return repo
}

func (f *fakeStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range f.students {
		if filter.Class != "" && s.Class != filter.Class {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, len(out), nil
}

func (f *fakeStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) Create(ctx context.Context, user *models.User, student *models.Student) error {
	if err := f.users.Create(ctx, user); err != nil {
		return err
	}
	student.ID = user.ID
	f.students[student.ID] = student
	return nil
}

func (f *fakeStudentRepo) Update(_ context.Context, student *models.Student) error {
	clone := *student
	f.students[student.ID] = &clone
	if u, ok := f.users.users[student.ID]; ok {
		u.Email = student.Email
		u.FullName = student.FullName
		u.Active = student.Active
	}
	return nil
}

func (f *fakeStudentRepo) Deactivate(_ context.Context, id string) error {
	if s, ok := f.students[id]; ok {
		s.Active = false
	}
	return nil
}

func (f *fakeStudentRepo) ListIDsByClassSection(_ context.Context, class, section string) ([]string, error) {
	var ids []string
	for _, s := range f.students {
		if s.Active && s.Class == class && strings.EqualFold(s.Section, section) {
			ids = append(ids, s.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStudentRepo) CountByClassSection(_ context.Context) ([]repository.ClassSectionCount, error) {
	counts := make(map[[2]string]int)
	for _, s := range f.students {
		if s.Active {
			counts[[2]string{s.Class, strings.ToLower(s.Section)}]++
		}
	}
	var out []repository.ClassSectionCount
	for key, total := range counts {
		out = append(out, repository.ClassSectionCount{Class: key[0], Section: key[1], Total: total})
	}
	return out, nil
}

type fakeTeacherRepo struct {
	teachers map[string]*models.Teacher
	users    *fakeUserRepo
	updates  int
}

func newFakeTeacherRepo(users *fakeUserRepo, teachers ...*models.Teacher) *fakeTeacherRepo {
	repo := &fakeTeacherRepo{teachers: make(map[string]*models.Teacher), users: users}
	for _, t := range teachers {
		repo.teachers[t.ID] = t
	}
	return repo
}

func (f *fakeTeacherRepo) List(_ context.Context, _ models.TeacherFilter) ([]models.Teacher, int, error) {
	var out []models.Teacher
	for _, t := range f.teachers {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (f *fakeTeacherRepo) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	if t, ok := f.teachers[id]; ok {
		clone := *t
		clone.Assignments = append([]models.Assignment(nil), t.Assignments...)
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTeacherRepo) Create(ctx context.Context, user *models.User, teacher *models.Teacher) error {
	if f.users != nil {
		if err := f.users.Create(ctx, user); err != nil {
			return err
		}
	} else if user.ID == "" {
		user.ID = uuid.NewString()
	}
	teacher.ID = user.ID
	f.teachers[teacher.ID] = teacher
	return nil
}

func (f *fakeTeacherRepo) Update(_ context.Context, teacher *models.Teacher, replaceRates bool) error {
	f.updates++
	stored, ok := f.teachers[teacher.ID]
	if !ok {
		return sql.ErrNoRows
	}
	clone := *teacher
	if !replaceRates {
		clone.Assignments = stored.Assignments
	}
	f.teachers[teacher.ID] = &clone
	return nil
}

func (f *fakeTeacherRepo) Deactivate(_ context.Context, id string) error {
	if t, ok := f.teachers[id]; ok {
		t.Active = false
	}
	return nil
}

func (f *fakeTeacherRepo) CountActive(_ context.Context) (int, error) {
	total := 0
	for _, t := range f.teachers {
		if t.Active {
			total++
		}
	}
	return total, nil
}

func (f *fakeTeacherRepo) ListAllAssignments(_ context.Context) (map[string][]models.Assignment, error) {
	out := make(map[string][]models.Assignment)
	for id, t := range f.teachers {
		if t.Active && len(t.Assignments) > 0 {
			out[id] = t.Assignments
		}
	}
	return out, nil
}

type fakeLectureRepo struct {
	lectures map[string]*models.Lecture
	listErr  error
}

func newFakeLectureRepo(lectures ...models.Lecture) *fakeLectureRepo {
	repo := &fakeLectureRepo{lectures: make(map[string]*models.Lecture)}
	for i := range lectures {
		l := lectures[i]
		if l.ID == "" {
			l.ID = fmt.Sprintf("lec-%d", i+1)
		}
		repo.lectures[l.ID] = &l
	}
	return repo
}

func (f *fakeLectureRepo) List(_ context.Context, filter models.LectureFilter) ([]models.Lecture, int, error) {
	var out []models.Lecture
	for _, l := range f.lectures {
		if filter.TeacherID != "" && l.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeLectureRepo) FindByID(_ context.Context, id string) (*models.Lecture, error) {
	if l, ok := f.lectures[id]; ok {
		clone := *l
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeLectureRepo) Create(_ context.Context, lecture *models.Lecture) error {
	if lecture.ID == "" {
		lecture.ID = uuid.NewString()
	}
	clone := *lecture
	f.lectures[lecture.ID] = &clone
	return nil
}

func (f *fakeLectureRepo) Update(_ context.Context, lecture *models.Lecture) error {
	clone := *lecture
	f.lectures[lecture.ID] = &clone
	return nil
}

func (f *fakeLectureRepo) Delete(_ context.Context, id string) error {
	delete(f.lectures, id)
	return nil
}

func (f *fakeLectureRepo) ListByTeacher(_ context.Context, teacherID string) ([]models.Lecture, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out, _, _ := f.List(context.Background(), models.LectureFilter{TeacherID: teacherID})
	return out, nil
}

func (f *fakeLectureRepo) ListAll(_ context.Context) (map[string][]models.Lecture, error) {
	out := make(map[string][]models.Lecture)
	for _, l := range f.lectures {
		out[l.TeacherID] = append(out[l.TeacherID], *l)
	}
	return out, nil
}

func (f *fakeLectureRepo) Count(_ context.Context, teacherID string) (int, error) {
	out, _, _ := f.List(context.Background(), models.LectureFilter{TeacherID: teacherID})
	return len(out), nil
}

// fakeSettlementRepo enforces the one regular settlement per month rule the
// way the partial unique index does.
type fakeSettlementRepo struct {
	payments  []models.TeacherPayment
	createErr error
}

func (f *fakeSettlementRepo) ListByTeacher(_ context.Context, teacherID string) ([]models.TeacherPayment, error) {
	var out []models.TeacherPayment
	for _, p := range f.payments {
		if p.TeacherID == teacherID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSettlementRepo) ListAll(_ context.Context) (map[string][]models.TeacherPayment, error) {
	out := make(map[string][]models.TeacherPayment)
	for _, p := range f.payments {
		out[p.TeacherID] = append(out[p.TeacherID], p)
	}
	return out, nil
}

func (f *fakeSettlementRepo) FindByID(_ context.Context, id string) (*models.TeacherPayment, error) {
	for _, p := range f.payments {
		if p.ID == id {
			clone := p
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSettlementRepo) ExistsRegular(_ context.Context, teacherID, month string) (bool, error) {
	for _, p := range f.payments {
		if p.TeacherID == teacherID && p.Month == month && !p.Adjustment {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSettlementRepo) Create(_ context.Context, payment *models.TeacherPayment) error {
	if f.createErr != nil {
		return f.createErr
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	f.payments = append(f.payments, *payment)
	return nil
}

func (f *fakeSettlementRepo) Delete(_ context.Context, id string) error {
	for i, p := range f.payments {
		if p.ID == id {
			f.payments = append(f.payments[:i], f.payments[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeInstallmentRepo struct {
	payments  []models.StudentPayment
	createErr error
}

func (f *fakeInstallmentRepo) ListByStudent(_ context.Context, studentID string) ([]models.StudentPayment, error) {
	var out []models.StudentPayment
	for _, p := range f.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeInstallmentRepo) FindByID(_ context.Context, id string) (*models.StudentPayment, error) {
	for _, p := range f.payments {
		if p.ID == id {
			clone := p
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInstallmentRepo) Exists(_ context.Context, studentID string, n int, year string) (bool, error) {
	for _, p := range f.payments {
		if p.StudentID == studentID && p.InstallmentNumber == n && p.AcademicYear == year {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInstallmentRepo) Create(_ context.Context, payment *models.StudentPayment) error {
	if f.createErr != nil {
		return f.createErr
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	f.payments = append(f.payments, *payment)
	return nil
}

func (f *fakeInstallmentRepo) UpdateStatus(_ context.Context, id string, status models.InstallmentStatus, paidDate *time.Time) error {
	for i := range f.payments {
		if f.payments[i].ID == id {
			f.payments[i].Status = status
			f.payments[i].PaidDate = paidDate
		}
	}
	return nil
}

func (f *fakeInstallmentRepo) Totals(_ context.Context, year string) (*models.PaymentTotals, error) {
	totals := &models.PaymentTotals{}
	for _, p := range f.payments {
		if p.AcademicYear != year {
			continue
		}
		if p.Status == models.InstallmentPaid {
			totals.Collected = totals.Collected.Add(p.Amount)
		} else {
			totals.Pending = totals.Pending.Add(p.Amount)
		}
	}
	return totals, nil
}

type fakeTestRepo struct {
	tests map[string]*models.Test
	marks map[string]map[string]models.Mark
}

func newFakeTestRepo(tests ...models.Test) *fakeTestRepo {
	repo := &fakeTestRepo{tests: make(map[string]*models.Test), marks: make(map[string]map[string]models.Mark)}
	for i := range tests {
		t := tests[i]
		repo.tests[t.ID] = &t
	}
	return repo
}

func (f *fakeTestRepo) List(_ context.Context, filter models.TestFilter) ([]models.Test, int, error) {
	var out []models.Test
	for _, t := range f.tests {
		if filter.TeacherID != "" && t.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if filter.PageSize > 0 && len(out) > filter.PageSize {
		out = out[:filter.PageSize]
	}
	return out, len(out), nil
}

func (f *fakeTestRepo) FindByID(_ context.Context, id string) (*models.Test, error) {
	if t, ok := f.tests[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTestRepo) Create(_ context.Context, test *models.Test) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	clone := *test
	f.tests[test.ID] = &clone
	return nil
}

func (f *fakeTestRepo) Count(_ context.Context, teacherID string) (int, error) {
	out, _, _ := f.List(context.Background(), models.TestFilter{TeacherID: teacherID})
	return len(out), nil
}

func (f *fakeTestRepo) ListMarks(_ context.Context, testID string) ([]models.Mark, error) {
	out := []models.Mark{}
	for _, m := range f.marks[testID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f *fakeTestRepo) UpsertMarks(_ context.Context, marks []models.Mark) error {
	for _, m := range marks {
		if f.marks[m.TestID] == nil {
			f.marks[m.TestID] = make(map[string]models.Mark)
		}
		f.marks[m.TestID][m.StudentID] = m
	}
	return nil
}

func (f *fakeTestRepo) ListStudentMarks(_ context.Context, studentID string) ([]models.StudentMark, error) {
	var out []models.StudentMark
	for testID, byStudent := range f.marks {
		m, ok := byStudent[studentID]
		if !ok {
			continue
		}
		t := f.tests[testID]
		out = append(out, models.StudentMark{TestID: testID, Title: t.Title, Subject: t.Subject, TotalMarks: t.TotalMarks, Obtained: m.Obtained, Date: t.Date})
	}
	return out, nil
}

type fakeAttendanceRepo struct {
	rows    []models.Attendance
	records []models.AttendanceRecord
}

func (f *fakeAttendanceRepo) Upsert(_ context.Context, rows []models.Attendance) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeAttendanceRepo) ListByStudent(_ context.Context, studentID string) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, r := range f.records {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeCacheRepo struct {
	store       map[string]interface{}
	invalidated []string
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{store: make(map[string]interface{})}
}

func (f *fakeCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	value, ok := f.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.store[key] = value
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	f.invalidated = append(f.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.store {
		if strings.HasPrefix(key, prefix) {
			delete(f.store, key)
		}
	}
	return nil
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}
