package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-center-api/internal/models"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

func newTestFixture() (*TestService, *fakeTestRepo) {
	users := newFakeUserRepo()
	roster := newFakeStudentRepo(users,
		&models.Student{ID: "s1", Class: "12", Section: "Commerce", Active: true},
		&models.Student{ID: "s2", Class: "12", Section: "Commerce", Active: true},
		&models.Student{ID: "s3", Class: "11", Section: "Science", Active: true},
	)
	repo := newFakeTestRepo(models.Test{ID: "test-1", TeacherID: "t1", Title: "Unit 1", Subject: "Accounts", Class: "12", Section: "commerce", TotalMarks: 50, Date: day("2024-03-20")})
	teachers := newFakeTeacherRepo(nil, sampleTeacher())
	return NewTestService(repo, teachers, roster, nil, nil), repo
}

func TestTestServiceCreateForcesTeacher(t *testing.T) {
	svc, _ := newTestFixture()
	test, err := svc.Create(context.Background(), CreateTestRequest{
		TeacherID: "someone", Title: "Unit 2", Subject: "Accounts", Class: "12", Section: "commerce", TotalMarks: 100, Date: "2024-04-02",
	}, teacherClaims)
	require.NoError(t, err)
	assert.Equal(t, "t1", test.TeacherID)
	assert.NotEmpty(t, test.ID)

	_, err = svc.Create(context.Background(), CreateTestRequest{Title: "Unit 2", Subject: "Accounts", Class: "12", Section: "commerce", TotalMarks: 0, Date: "2024-04-02"}, teacherClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRecordMarks(t *testing.T) {
	svc, _ := newTestFixture()
	detail, err := svc.RecordMarks(context.Background(), "test-1", RecordMarksRequest{Marks: []MarkEntry{
		{StudentID: "s1", Obtained: 42},
		{StudentID: "s2", Obtained: 50},
	}}, teacherClaims)
	require.NoError(t, err)
	require.Len(t, detail.Marks, 2)
	assert.Equal(t, 42.0, detail.Marks[0].Obtained)
}

func TestRecordMarksRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name  string
		marks []MarkEntry
	}{
		{name: "above total", marks: []MarkEntry{{StudentID: "s1", Obtained: 51}}},
		{name: "not enrolled", marks: []MarkEntry{{StudentID: "s3", Obtained: 10}}},
		{name: "listed twice", marks: []MarkEntry{{StudentID: "s1", Obtained: 10}, {StudentID: "s1", Obtained: 11}}},
		{name: "negative", marks: []MarkEntry{{StudentID: "s1", Obtained: -1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newTestFixture()
			_, err := svc.RecordMarks(context.Background(), "test-1", RecordMarksRequest{Marks: tc.marks}, adminClaims)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
			assert.Empty(t, repo.marks["test-1"])
		})
	}
}

func TestTestServiceScopesTeachers(t *testing.T) {
	svc, _ := newTestFixture()
	_, err := svc.Get(context.Background(), "test-1", otherTeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), "missing", adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	items, _, err := svc.List(context.Background(), models.TestFilter{}, otherTeacher)
	require.NoError(t, err)
	assert.Empty(t, items)
}
