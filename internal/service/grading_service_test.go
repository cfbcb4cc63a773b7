package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formation-lms-api/internal/models"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/export"
	"github.com/noah-isme/formation-lms-api/pkg/storage"
)

type documentCounter struct {
	kinds    []string
	failures int
}

func (d *documentCounter) RecordDocument(kind string, err error) {
	d.kinds = append(d.kinds, kind)
	if err != nil {
		d.failures++
	}
}

type gradingFixture struct {
	svc        *GradingService
	formations *fakeFormations
	courses    *fakeCourses
	grading    *fakeGrading
	audit      *fakeAudit
	documents  *documentCounter
	files      *storage.LocalStorage
}

func newGradingFixture(t *testing.T, tx *txProviderMock) gradingFixture {
	t.Helper()
	fx := gradingFixture{
		formations: newFakeFormations(&models.Formation{ID: "f1", FormateurID: "t1", Title: "Go", Published: true}),
		courses: newFakeCourses(
			&models.Course{ID: "c1", FormationID: "f1", Title: "Basics", Published: true},
			&models.Course{ID: "c2", FormationID: "f1", Title: "Concurrency", Published: true},
		),
		grading:   newFakeGrading(),
		audit:     &fakeAudit{},
		documents: &documentCounter{},
		files:     newTestStorage(t),
	}
	fx.formations.names["t1"] = "Ada Trainer"
	fx.grading.courseOf["c1"] = "f1"
	fx.grading.courseOf["c2"] = "f1"
	deps := GradingDeps{
		Formations:  fx.formations,
		Courses:     fx.courses,
		Users:       fakeUsers{"s1": {ID: "s1", Name: "Sam Student", Role: models.RoleStudent}},
		Enrollments: fakeApprovals{approved: map[string]bool{"s1/f1": true}},
		Grading:     fx.grading,
		Audit:       fx.audit,
		Files:       fx.files,
		Renderer:    export.NewDocumentRenderer("Formation LMS"),
		Metrics:     fx.documents,
	}
	if tx != nil {
		deps.Tx = tx
	}
	fx.svc = NewGradingService(deps, 50, nil)
	fx.svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	return fx
}

func TestGradingServiceFinalizeRequiresEverySubmission(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGradingFixture(t, tx)
	fx.grading.progress["c1/s1"] = models.CourseProgress{QuizCount: 3, SubmittedCount: 2, QuestionCount: 6, CorrectCount: 4}

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := fx.svc.Finalize(context.Background(), studentActor, "c1", AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fx.grading.courseResults)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradingServiceFinalizeAwardsBadgeThenCertificate(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGradingFixture(t, tx)
	fx.grading.progress["c1/s1"] = models.CourseProgress{QuizCount: 3, SubmittedCount: 3, QuestionCount: 10, CorrectCount: 8}
	fx.grading.progress["c2/s1"] = models.CourseProgress{QuizCount: 3, SubmittedCount: 3, QuestionCount: 10, CorrectCount: 6}

	mock.ExpectBegin()
	mock.ExpectCommit()
	first, err := fx.svc.Finalize(context.Background(), studentActor, "c1", AuditMeta{ActorID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 80.0, first.Course.Score)
	assert.True(t, first.Course.Passed)
	assert.Nil(t, first.Formation)
	require.NotNil(t, first.Course.BadgeURL)
	assert.True(t, strings.HasPrefix(*first.Course.BadgeURL, "/static/badges/"))
	rel, ok := fx.files.RelativeFromURL(*first.Course.BadgeURL)
	require.True(t, ok)
	assert.True(t, fx.files.Exists(rel))

	mock.ExpectBegin()
	mock.ExpectCommit()
	second, err := fx.svc.Finalize(context.Background(), studentActor, "c2", AuditMeta{ActorID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, second.Formation)
	assert.Equal(t, 70.0, second.Formation.Score)
	assert.True(t, second.Formation.Passed)
	require.NotNil(t, second.Formation.CertificateURL)
	assert.Contains(t, *second.Formation.CertificateURL, "/static/certificates/")

	assert.Equal(t, []string{"badge", "badge", "certificate"}, fx.documents.kinds)
	assert.Zero(t, fx.documents.failures)
	assert.Equal(t, []string{models.AuditActionCourseFinalize, models.AuditActionCourseFinalize}, fx.audit.actions())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradingServiceFailedCourseBlocksFormationPass(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGradingFixture(t, tx)
	fx.grading.progress["c1/s1"] = models.CourseProgress{QuizCount: 3, SubmittedCount: 3, QuestionCount: 10, CorrectCount: 2}
	fx.grading.progress["c2/s1"] = models.CourseProgress{QuizCount: 3, SubmittedCount: 3, QuestionCount: 10, CorrectCount: 10}

	mock.ExpectBegin()
	mock.ExpectCommit()
	first, err := fx.svc.Finalize(context.Background(), studentActor, "c1", AuditMeta{})
	require.NoError(t, err)
	assert.False(t, first.Course.Passed)
	assert.Nil(t, first.Course.BadgeURL)

	mock.ExpectBegin()
	mock.ExpectCommit()
	second, err := fx.svc.Finalize(context.Background(), studentActor, "c2", AuditMeta{})
	require.NoError(t, err)
	require.NotNil(t, second.Formation)
	assert.Equal(t, 60.0, second.Formation.Score)
	assert.False(t, second.Formation.Passed)
	assert.Nil(t, second.Formation.CertificateURL)
	assert.Equal(t, []string{"badge"}, fx.documents.kinds)
}

func TestGradingServiceFinalizeTwiceRejected(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGradingFixture(t, tx)
	fx.grading.progress["c1/s1"] = models.CourseProgress{QuizCount: 3, SubmittedCount: 3, QuestionCount: 3, CorrectCount: 3}

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := fx.svc.Finalize(context.Background(), studentActor, "c1", AuditMeta{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = fx.svc.Finalize(context.Background(), studentActor, "c1", AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Status, appErrors.FromError(err).Status)
	assert.Contains(t, err.Error(), "already finalized")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradingServiceFinalizeRequiresApprovedStudent(t *testing.T) {
	fx := newGradingFixture(t, nil)

	_, err := fx.svc.Finalize(context.Background(), ownerActor, "c1", AuditMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.Finalize(context.Background(), Actor{ID: "s9", Role: models.RoleStudent}, "c1", AuditMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestGradingServiceResults(t *testing.T) {
	fx := newGradingFixture(t, nil)
	fx.grading.courseResults["c1/s1"] = &models.CourseResult{ID: "cr1", CourseID: "c1", StudentID: "s1", Score: 90, Passed: true}

	result, err := fx.svc.CourseResult(context.Background(), studentActor, "c1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, result.Score)

	_, err = fx.svc.FormationResult(context.Background(), studentActor, "f1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	all, err := fx.svc.StudentResults(context.Background(), studentActor)
	require.NoError(t, err)
	assert.Len(t, all.Courses, 1)
	assert.NotNil(t, all.Formations)
	assert.Empty(t, all.Formations)
}
