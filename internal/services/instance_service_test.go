package services

import (
	"context"
	"errors"
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type instanceFixture struct {
	svc       InstanceService
	instances *fakeInstanceRepo
	users     *fakeUserRepo
	emitted   *recordingEvents
}

func newInstanceFixture(t *testing.T) *instanceFixture {
	t.Helper()
	instances := newFakeInstanceRepo()
	users := newFakeUserRepo()
	emitted := &recordingEvents{}

	require.NoError(t, users.Create(context.Background(), &models.User{Username: "admin", IsAdmin: true}))
	require.NoError(t, users.Create(context.Background(), &models.User{Username: "founder"}))
	require.NoError(t, users.Create(context.Background(), &models.User{Username: "member"}))

	return &instanceFixture{
		svc:       NewInstanceService(instances, users, emitted, zap.NewNop()),
		instances: instances,
		users:     users,
		emitted:   emitted,
	}
}

func (f *instanceFixture) mustCreate(t *testing.T, key string, actorID int64) *models.Instance {
	t.Helper()
	instance, err := f.svc.Create(context.Background(), &CreateInstanceRequest{
		Key:     key,
		Label:   "Test Instance",
		Locale:  "en",
		ActorID: actorID,
	})
	require.NoError(t, err)
	return instance
}

func TestCreateInstanceEnrollsFounder(t *testing.T) {
	f := newInstanceFixture(t)
	instance := f.mustCreate(t, "demo", 2)

	assert.Equal(t, int64(2), instance.CreatorID)
	assert.True(t, instance.AllowPropose)
	assert.True(t, instance.UseNorms)

	m, err := f.instances.GetMembership(context.Background(), 2, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.GroupID, "founder joins as supervisor")
	assert.Equal(t, []string{models.EventInstanceCreate}, f.emitted.typesSeen())
}

func TestCreateInstanceKeyValidation(t *testing.T) {
	f := newInstanceFixture(t)

	for _, key := range []string{"", "UPPER", "1leading", "a", "has space"} {
		_, err := f.svc.Create(context.Background(), &CreateInstanceRequest{Key: key, Label: "x", ActorID: 2})
		var svcErr *ServiceError
		require.True(t, errors.As(err, &svcErr), "key %q", key)
		assert.Equal(t, "VALIDATION_ERROR", svcErr.Type)
	}
}

func TestJoinUsesDefaultGroup(t *testing.T) {
	f := newInstanceFixture(t)
	instance := f.mustCreate(t, "demo", 2)
	voter := int64(2)
	instance.DefaultGroupID = &voter

	require.NoError(t, f.svc.Join(context.Background(), "demo", 3))

	m, err := f.instances.GetMembership(context.Background(), 3, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, voter, m.GroupID)
}

func TestJoinFallsBackToObserver(t *testing.T) {
	f := newInstanceFixture(t)
	instance := f.mustCreate(t, "demo", 2)

	require.NoError(t, f.svc.Join(context.Background(), "demo", 3))

	m, err := f.instances.GetMembership(context.Background(), 3, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.GroupID)
}

func TestJoinTwiceIsRejected(t *testing.T) {
	f := newInstanceFixture(t)
	f.mustCreate(t, "demo", 2)

	require.NoError(t, f.svc.Join(context.Background(), "demo", 3))
	err := f.svc.Join(context.Background(), "demo", 3)

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "BUSINESS_ERROR", svcErr.Type)
	assert.Equal(t, "already_member", svcErr.Code)
}

func TestFounderCannotLeave(t *testing.T) {
	f := newInstanceFixture(t)
	f.mustCreate(t, "demo", 2)

	err := f.svc.Leave(context.Background(), "demo", 2)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "BUSINESS_ERROR", svcErr.Type)
	assert.Equal(t, "founder_cannot_leave", svcErr.Code)
}

func TestLeaveExpiresMembership(t *testing.T) {
	f := newInstanceFixture(t)
	instance := f.mustCreate(t, "demo", 2)

	require.NoError(t, f.svc.Join(context.Background(), "demo", 3))
	require.NoError(t, f.svc.Leave(context.Background(), "demo", 3))

	_, err := f.instances.GetMembership(context.Background(), 3, instance.ID)
	assert.Error(t, err, "active membership is gone after leaving")
	assert.Equal(t,
		[]string{models.EventInstanceCreate, models.EventInstanceJoin, models.EventInstanceLeave},
		f.emitted.typesSeen())
}

func TestLeaveWithoutMembership(t *testing.T) {
	f := newInstanceFixture(t)
	f.mustCreate(t, "demo", 2)

	err := f.svc.Leave(context.Background(), "demo", 3)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "NOT_FOUND", svcErr.Type)
}

func TestAuthorize(t *testing.T) {
	f := newInstanceFixture(t)
	instance := f.mustCreate(t, "demo", 2)

	assert.NoError(t, f.svc.Authorize(context.Background(), instance, 2), "creator may edit")
	assert.NoError(t, f.svc.Authorize(context.Background(), instance, 1), "site admin may edit")

	err := f.svc.Authorize(context.Background(), instance, 3)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "FORBIDDEN", svcErr.Type)
}

func TestDeleteInstanceRequiresAuthorization(t *testing.T) {
	f := newInstanceFixture(t)
	f.mustCreate(t, "demo", 2)

	err := f.svc.Delete(context.Background(), "demo", 3)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "FORBIDDEN", svcErr.Type)

	require.NoError(t, f.svc.Delete(context.Background(), "demo", 2))
	_, err = f.svc.GetByKey(context.Background(), "demo")
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "NOT_FOUND", svcErr.Type)
}
