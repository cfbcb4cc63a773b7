package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formation-lms-api/internal/models"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type formationFixture struct {
	svc        *FormationService
	formations *fakeFormations
	courses    *fakeCourses
	cascade    *fakeCascade
	audit      *fakeAudit
}

func newFormationFixture(t *testing.T, tx *txProviderMock) formationFixture {
	t.Helper()
	approved := models.FormateurApproved
	pending := models.FormateurPending
	fx := formationFixture{
		formations: newFakeFormations(),
		courses:    newFakeCourses(),
		cascade:    &fakeCascade{},
		audit:      &fakeAudit{},
	}
	users := fakeUsers{
		"t1": {ID: "t1", Role: models.RoleFormateur, FormateurStatus: &approved},
		"t3": {ID: "t3", Role: models.RoleFormateur, FormateurStatus: &pending},
	}
	deps := FormationDeps{
		Formations: fx.formations,
		Courses:    fx.courses,
		Users:      users,
		Cascade:    fx.cascade,
		Audit:      fx.audit,
	}
	if tx != nil {
		deps.Tx = tx
	}
	fx.svc = NewFormationService(deps, nil, nil)
	return fx
}

func TestFormationServiceCreateOnlineClearsSchedule(t *testing.T) {
	fx := newFormationFixture(t, nil)
	loc := "Paris"
	now := time.Now()

	formation, err := fx.svc.Create(context.Background(), ownerActor, models.FormationRequest{
		Title: "Go basics", Price: 100, Type: models.FormationOnline, Location: &loc, StartDate: &now, EndDate: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", formation.FormateurID)
	assert.False(t, formation.Published)
	assert.Nil(t, formation.Location)
	assert.Nil(t, formation.StartDate)
}

func TestFormationServiceCreatePresentielRules(t *testing.T) {
	fx := newFormationFixture(t, nil)
	start := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	loc := "Lyon"

	_, err := fx.svc.Create(context.Background(), ownerActor, models.FormationRequest{Title: "Onsite", Type: models.FormationPresentiel})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location")

	_, err = fx.svc.Create(context.Background(), ownerActor, models.FormationRequest{Title: "Onsite", Type: models.FormationPresentiel, Location: &loc, StartDate: &start, EndDate: &end})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	end = start.Add(48 * time.Hour)
	formation, err := fx.svc.Create(context.Background(), ownerActor, models.FormationRequest{Title: "Onsite", Type: models.FormationPresentiel, Location: &loc, StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, "Lyon", *formation.Location)
}

func TestFormationServiceCreateRejectsNegativePrice(t *testing.T) {
	fx := newFormationFixture(t, nil)
	_, err := fx.svc.Create(context.Background(), ownerActor, models.FormationRequest{Title: "Go basics", Price: -1, Type: models.FormationOnline})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestFormationServiceCreatePendingFormateur(t *testing.T) {
	fx := newFormationFixture(t, nil)
	_, err := fx.svc.Create(context.Background(), Actor{ID: "t3", Role: models.RoleFormateur}, models.FormationRequest{Title: "Go basics", Type: models.FormationOnline})
	assert.True(t, errors.Is(err, appErrors.ErrAccountPending))
}

func TestFormationServiceGetVisibility(t *testing.T) {
	fx := newFormationFixture(t, nil)
	fx.formations.items["f1"] = &models.Formation{ID: "f1", FormateurID: "t1", Title: "Draft"}
	fx.courses.items["c1"] = &models.Course{ID: "c1", FormationID: "f1", Published: true}
	fx.courses.items["c2"] = &models.Course{ID: "c2", FormationID: "f1"}

	_, err := fx.svc.Get(context.Background(), studentActor, "f1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	detail, err := fx.svc.Get(context.Background(), ownerActor, "f1")
	require.NoError(t, err)
	assert.Len(t, detail.Courses, 2)

	_, err = fx.svc.Get(context.Background(), adminActor, "f1")
	require.NoError(t, err)

	fx.formations.items["f1"].Published = true
	detail, err = fx.svc.Get(context.Background(), Actor{}, "f1")
	require.NoError(t, err)
	require.Len(t, detail.Courses, 1)
	assert.Equal(t, "c1", detail.Courses[0].ID)
}

func TestFormationServiceUpdatePublishedRejected(t *testing.T) {
	fx := newFormationFixture(t, nil)
	fx.formations.items["f1"] = &models.Formation{ID: "f1", FormateurID: "t1", Published: true}

	_, err := fx.svc.Update(context.Background(), ownerActor, "f1", models.FormationRequest{Title: "New", Type: models.FormationOnline})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.Update(context.Background(), otherActor, "f1", models.FormationRequest{Title: "New", Type: models.FormationOnline})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestFormationServicePublishRequiresPublishedCourses(t *testing.T) {
	fx := newFormationFixture(t, nil)
	fx.formations.items["f1"] = &models.Formation{ID: "f1", FormateurID: "t1"}

	_, err := fx.svc.Publish(context.Background(), ownerActor, "f1", AuditMeta{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no course")

	fx.courses.items["c1"] = &models.Course{ID: "c1", FormationID: "f1", Title: "Intro", Published: true}
	fx.courses.items["c2"] = &models.Course{ID: "c2", FormationID: "f1", Title: "Advanced"}
	_, err = fx.svc.Publish(context.Background(), ownerActor, "f1", AuditMeta{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Advanced")

	fx.courses.items["c2"].Published = true
	formation, err := fx.svc.Publish(context.Background(), ownerActor, "f1", AuditMeta{})
	require.NoError(t, err)
	assert.True(t, formation.Published)
	assert.Equal(t, []string{models.AuditActionFormationPublish}, fx.audit.actions())

	_, err = fx.svc.Publish(context.Background(), ownerActor, "f1", AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Status, appErrors.FromError(err).Status)
}

func TestFormationServiceDeleteOwnerUnpublished(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newFormationFixture(t, tx)
	fx.formations.items["f1"] = &models.Formation{ID: "f1", FormateurID: "t1"}

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, fx.svc.Delete(context.Background(), ownerActor, "f1", AuditMeta{}))
	assert.Equal(t, []string{"f1"}, fx.cascade.deletedFormations)
	assert.Equal(t, []string{models.AuditActionFormationDelete}, fx.audit.actions())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormationServiceDeletePublishedByOwnerRejected(t *testing.T) {
	fx := newFormationFixture(t, nil)
	fx.formations.items["f1"] = &models.Formation{ID: "f1", FormateurID: "t1", Published: true}

	err := fx.svc.Delete(context.Background(), ownerActor, "f1", AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fx.cascade.deletedFormations)
}

func TestFormationServiceDeletePublishedByAdmin(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newFormationFixture(t, tx)
	fx.formations.items["f1"] = &models.Formation{ID: "f1", FormateurID: "t1", Published: true}

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, fx.svc.Delete(context.Background(), adminActor, "f1", AuditMeta{}))
	assert.Equal(t, []string{"f1"}, fx.cascade.deletedFormations)
}

func TestFormationServiceDeleteRollsBackOnFailure(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newFormationFixture(t, tx)
	fx.formations.items["f1"] = &models.Formation{ID: "f1", FormateurID: "t1"}
	fx.cascade.err = errors.New("fk violation")

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := fx.svc.Delete(context.Background(), ownerActor, "f1", AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fx.audit.logs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormationServicePublishLosesToCourseUnpublish(t *testing.T) {
	fx := newFormationFixture(t, nil)
	fx.formations.items["f1"] = &models.Formation{ID: "f1", FormateurID: "t1"}
	fx.courses.items["c1"] = &models.Course{ID: "c1", FormationID: "f1", Title: "Intro", Published: true}
	fx.formations.publishErr = sql.ErrNoRows

	_, err := fx.svc.Publish(context.Background(), ownerActor, "f1", AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "every course must be published")
	assert.Empty(t, fx.audit.actions())
}
