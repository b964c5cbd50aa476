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

type settingsFixture struct {
	svc       SettingsService
	instances *fakeInstanceRepo
	users     *fakeUserRepo
	emitted   *recordingEvents
	instance  *models.Instance
}

func newSettingsFixture(t *testing.T) *settingsFixture {
	t.Helper()
	instances := newFakeInstanceRepo()
	users := newFakeUserRepo()
	emitted := &recordingEvents{}

	require.NoError(t, users.Create(context.Background(), &models.User{Username: "admin", IsAdmin: true}))
	require.NoError(t, users.Create(context.Background(), &models.User{Username: "member"}))

	instance := &models.Instance{Key: "demo", Label: "Demo", Locale: "en", CreatorID: 2}
	require.NoError(t, instances.Create(context.Background(), instance))

	return &settingsFixture{
		svc:       NewSettingsService(instances, users, emitted, zap.NewNop()),
		instances: instances,
		users:     users,
		emitted:   emitted,
		instance:  instance,
	}
}

func TestUpdatePagePersistsAndEmitsOnChange(t *testing.T) {
	f := newSettingsFixture(t)

	result, err := f.svc.UpdatePage(context.Background(), f.instance, "general",
		map[string]any{"allow_delegate": true, "locale": "de"}, 2)
	require.NoError(t, err)

	assert.True(t, result.Updated)
	assert.Equal(t, FlashSuccess, result.Category)
	assert.Equal(t, MsgInstanceUpdated, result.Message)
	assert.Equal(t, "/i/demo/settings/general", result.Location)

	assert.True(t, f.instance.AllowDelegate)
	assert.Equal(t, "de", f.instance.Locale)
	assert.Equal(t, 1, f.instances.updates)
	assert.Equal(t, []string{models.EventInstanceEdit}, f.emitted.typesSeen())
}

func TestUpdatePageNoopWhenValuesUnchanged(t *testing.T) {
	f := newSettingsFixture(t)

	// resubmitting the current values must not persist or emit
	result, err := f.svc.UpdatePage(context.Background(), f.instance, "general",
		map[string]any{"allow_delegate": false, "locale": "en", "milestones": false}, 2)
	require.NoError(t, err)

	assert.False(t, result.Updated)
	assert.Equal(t, FlashNotice, result.Category)
	assert.Equal(t, MsgNoUpdateRequired, result.Message)
	assert.Zero(t, f.instances.updates)
	assert.Empty(t, f.emitted.typesSeen())
}

func TestUpdatePageEmptySubmissionIsNoop(t *testing.T) {
	f := newSettingsFixture(t)

	result, err := f.svc.UpdatePage(context.Background(), f.instance, "process",
		map[string]any{}, 2)
	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Zero(t, f.instances.updates)
}

func TestUpdatePageIgnoresAttributesOutsideWhitelist(t *testing.T) {
	f := newSettingsFixture(t)

	// frozen belongs to the advanced page, not overview
	result, err := f.svc.UpdatePage(context.Background(), f.instance, "overview",
		map[string]any{"label": "Demo", "frozen": true}, 2)
	require.NoError(t, err)

	assert.False(t, result.Updated)
	assert.False(t, f.instance.Frozen)
}

func TestUpdatePageUnknownPage(t *testing.T) {
	f := newSettingsFixture(t)

	_, err := f.svc.UpdatePage(context.Background(), f.instance, "nonsense", nil, 2)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "NOT_FOUND", svcErr.Type)
}

func TestUpdatePageAdminAttributesRequireAdmin(t *testing.T) {
	f := newSettingsFixture(t)

	result, err := f.svc.UpdatePage(context.Background(), f.instance, "advanced",
		map[string]any{"css": "body {}"}, 2)
	require.NoError(t, err)
	assert.False(t, result.Updated, "css must be ignored for regular users")
	assert.Empty(t, f.instance.CSS)

	result, err = f.svc.UpdatePage(context.Background(), f.instance, "advanced",
		map[string]any{"css": "body {}"}, 1)
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, "body {}", f.instance.CSS)
}

func TestUpdatePageAuthAttributesRequireAuthenticatedInstance(t *testing.T) {
	f := newSettingsFixture(t)

	result, err := f.svc.UpdatePage(context.Background(), f.instance, "general",
		map[string]any{"theme": "dark"}, 2)
	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Empty(t, f.instance.Theme)

	f.instance.IsAuthenticated = true
	result, err = f.svc.UpdatePage(context.Background(), f.instance, "general",
		map[string]any{"theme": "dark"}, 2)
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, "dark", f.instance.Theme)
}

func TestUpdateAttributesTypeMismatch(t *testing.T) {
	f := newSettingsFixture(t)

	_, err := f.svc.UpdateAttributes(f.instance,
		map[string]any{"allow_delegate": "yes"}, []string{"allow_delegate"})
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "VALIDATION_ERROR", svcErr.Type)
}

func TestUpdateAttributesDefaultGroupPointerEquality(t *testing.T) {
	f := newSettingsFixture(t)
	groupID := int64(2)
	f.instance.DefaultGroupID = &groupID

	// submitting the same group id as a plain int64 is not a change
	changed, err := f.svc.UpdateAttributes(f.instance,
		map[string]any{"default_group": int64(2)}, []string{"default_group"})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.svc.UpdateAttributes(f.instance,
		map[string]any{"default_group": int64(3)}, []string{"default_group"})
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, f.instance.DefaultGroupID)
	assert.Equal(t, int64(3), *f.instance.DefaultGroupID)
}

func TestApplyPresetsActivatesAndForcesOff(t *testing.T) {
	f := newSettingsFixture(t)
	f.instance.Milestones = true
	f.instance.AllowPropose = true
	f.instance.UseNorms = true
	f.instance.Hidden = true

	changed, err := f.svc.ApplyPresets(context.Background(), f.instance,
		map[string]bool{"agenda_setting": true}, 2)
	require.NoError(t, err)
	assert.True(t, changed)

	// preset attributes forced on
	assert.True(t, f.instance.AllowDelegate)
	assert.True(t, f.instance.ShowProposalsNavigation)
	// attributes governed by inactive presets forced off
	assert.False(t, f.instance.Milestones)
	assert.False(t, f.instance.AllowPropose)
	assert.False(t, f.instance.UseNorms)
	// attributes outside all presets untouched
	assert.True(t, f.instance.Hidden)

	assert.Equal(t, 1, f.instances.updates)
}

func TestApplyPresetsIdempotent(t *testing.T) {
	f := newSettingsFixture(t)
	selection := map[string]bool{"consultation": true}

	changed, err := f.svc.ApplyPresets(context.Background(), f.instance, selection, 2)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.svc.ApplyPresets(context.Background(), f.instance, selection, 2)
	require.NoError(t, err)
	assert.False(t, changed, "reapplying the same selection must change nothing")
	assert.Equal(t, 1, f.instances.updates)
}

func TestApplyPresetsSwitchingSelection(t *testing.T) {
	f := newSettingsFixture(t)

	_, err := f.svc.ApplyPresets(context.Background(), f.instance,
		map[string]bool{"agenda_setting": true}, 2)
	require.NoError(t, err)

	changed, err := f.svc.ApplyPresets(context.Background(), f.instance,
		map[string]bool{"consultation": true}, 2)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.False(t, f.instance.AllowDelegate)
	assert.False(t, f.instance.ShowProposalsNavigation)
	assert.True(t, f.instance.UseNorms)
	assert.True(t, f.instance.ShowNormsNavigation)
}

func TestApplyPresetsCombinedSelection(t *testing.T) {
	f := newSettingsFixture(t)

	changed, err := f.svc.ApplyPresets(context.Background(), f.instance,
		map[string]bool{"agenda_setting": true, "consultation": true}, 2)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.True(t, f.instance.AllowDelegate)
	assert.True(t, f.instance.ShowProposalsNavigation)
	assert.True(t, f.instance.UseNorms)
	assert.True(t, f.instance.ShowNormsNavigation)
}

func TestResultEmitsOnlyOnUpdate(t *testing.T) {
	f := newSettingsFixture(t)

	result, err := f.svc.Result(context.Background(), false, f.instance, "presets", "", 2)
	require.NoError(t, err)
	assert.Equal(t, FlashNotice, result.Category)
	assert.Empty(t, f.emitted.typesSeen())

	result, err = f.svc.Result(context.Background(), true, f.instance, "presets", "Presets applied.", 2)
	require.NoError(t, err)
	assert.Equal(t, FlashSuccess, result.Category)
	assert.Equal(t, "Presets applied.", result.Message)
	assert.Equal(t, "/i/demo/settings/presets", result.Location)
	assert.Equal(t, []string{models.EventInstanceEdit}, f.emitted.typesSeen())
}

func TestSettingsPagesRegistryOrder(t *testing.T) {
	f := newSettingsFixture(t)
	pages := f.svc.Pages()
	names := make([]string, len(pages))
	for i, p := range pages {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"overview", "general", "process", "members", "advanced", "presets"}, names)

	_, ok := f.svc.Page("members")
	assert.True(t, ok)
	_, ok = f.svc.Page("missing")
	assert.False(t, ok)
}
