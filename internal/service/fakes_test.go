package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/repository"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type fakeFormations struct {
	items map[string]*models.Formation
	names map[string]string
	// publishErr simulates the conditional publish update finding no row
	publishErr error
}

func newFakeFormations(items ...*models.Formation) *fakeFormations {
	f := &fakeFormations{items: map[string]*models.Formation{}, names: map[string]string{}}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeFormations) Create(ctx context.Context, formation *models.Formation) error {
	if formation.ID == "" {
		formation.ID = "f-new"
	}
	clone := *formation
	f.items[formation.ID] = &clone
	return nil
}

func (f *fakeFormations) FindByID(ctx context.Context, id string) (*models.Formation, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *it
	return &clone, nil
}

func (f *fakeFormations) FindDetail(ctx context.Context, id string) (*models.FormationDetail, error) {
	it, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.FormationDetail{Formation: *it, FormateurName: f.names[it.FormateurID]}, nil
}

func (f *fakeFormations) List(ctx context.Context, filter models.FormationFilter) ([]models.FormationDetail, int, error) {
	var out []models.FormationDetail
	for _, it := range f.items {
		if filter.FormateurID != "" && it.FormateurID != filter.FormateurID {
			continue
		}
		if filter.Published != nil && it.Published != *filter.Published {
			continue
		}
		out = append(out, models.FormationDetail{Formation: *it})
	}
	return out, len(out), nil
}

func (f *fakeFormations) Update(ctx context.Context, formation *models.Formation) error {
	it, ok := f.items[formation.ID]
	if !ok || it.Published {
		return sql.ErrNoRows
	}
	clone := *formation
	f.items[formation.ID] = &clone
	return nil
}

func (f *fakeFormations) MarkPublished(ctx context.Context, id string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	it, ok := f.items[id]
	if !ok || it.Published {
		return sql.ErrNoRows
	}
	it.Published = true
	return nil
}

type fakeCourses struct {
	items    map[string]*models.Course
	counts   map[string]repository.CourseContentCount
	sequence int
	// writeErr is returned by guarded writes, as when the formation was
	// published after the service checked it
	writeErr error
}

func newFakeCourses(items ...*models.Course) *fakeCourses {
	f := &fakeCourses{items: map[string]*models.Course{}, counts: map[string]repository.CourseContentCount{}}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeCourses) Create(ctx context.Context, course *models.Course) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.sequence++
	if course.ID == "" {
		course.ID = "c-new"
	}
	course.CreatedAt = time.Unix(int64(f.sequence), 0)
	clone := *course
	f.items[course.ID] = &clone
	return nil
}

func (f *fakeCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *it
	return &clone, nil
}

func (f *fakeCourses) ListByFormation(ctx context.Context, exec sqlx.ExtContext, formationID string, publishedOnly bool) ([]models.Course, error) {
	var out []models.Course
	for _, it := range f.items {
		if it.FormationID != formationID || (publishedOnly && !it.Published) {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

func (f *fakeCourses) UpdateTitle(ctx context.Context, id, title string) error {
	it, ok := f.items[id]
	if !ok || it.Published {
		return sql.ErrNoRows
	}
	it.Title = title
	return nil
}

func (f *fakeCourses) SetPublished(ctx context.Context, id string, published bool) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	it, ok := f.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	it.Published = published
	return nil
}

func (f *fakeCourses) CountContent(ctx context.Context, courseID string) (repository.CourseContentCount, error) {
	return f.counts[courseID], nil
}

type fakeCascade struct {
	deletedFormations []string
	deletedCourses    []string
	deletedQuizzes    []string
	deletedStudents   []string
	deletedUsers      []string
	urls              []string
	err               error
}

func (f *fakeCascade) DeleteFormation(ctx context.Context, exec sqlx.ExtContext, id string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletedFormations = append(f.deletedFormations, id)
	return f.urls, nil
}

func (f *fakeCascade) DeleteCourse(ctx context.Context, exec sqlx.ExtContext, id string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletedCourses = append(f.deletedCourses, id)
	return f.urls, nil
}

func (f *fakeCascade) DeleteQuiz(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deletedQuizzes = append(f.deletedQuizzes, id)
	return nil
}

func (f *fakeCascade) DeleteStudentData(ctx context.Context, exec sqlx.ExtContext, id string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletedStudents = append(f.deletedStudents, id)
	return nil, nil
}

func (f *fakeCascade) DeleteUser(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deletedUsers = append(f.deletedUsers, id)
	return nil
}

type fakeApprovals struct {
	approved map[string]bool
}

func (f fakeApprovals) HasApproved(ctx context.Context, studentID, formationID string) (bool, error) {
	return f.approved[studentID+"/"+formationID], nil
}

type fakeAudit struct {
	logs []*models.AuditLog
}

func (f *fakeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeAudit) actions() []string {
	out := make([]string, 0, len(f.logs))
	for _, l := range f.logs {
		out = append(out, l.Action)
	}
	return out
}

type fakeUsers map[string]*models.User

func (f fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

var (
	ownerActor   = Actor{ID: "t1", Role: models.RoleFormateur}
	otherActor   = Actor{ID: "t2", Role: models.RoleFormateur}
	adminActor   = Actor{ID: "a1", Role: models.RoleAdmin}
	studentActor = Actor{ID: "s1", Role: models.RoleStudent}
)
