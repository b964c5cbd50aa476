package services

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"agora/internal/models"
	"agora/internal/repositories"
)

// In-memory repository fakes. They honor the same contracts as the
// postgres implementations: ErrNotFound for missing rows, idempotent
// assignment inserts, title-ordered listings.

type fakeBadgeRepo struct {
	mu     sync.Mutex
	nextID int64
	badges map[int64]*models.Badge
}

func newFakeBadgeRepo() *fakeBadgeRepo {
	return &fakeBadgeRepo{badges: make(map[int64]*models.Badge)}
}

func (r *fakeBadgeRepo) Create(_ context.Context, badge *models.Badge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	badge.ID = r.nextID
	badge.CreatedAt = time.Now().UTC()
	r.badges[badge.ID] = badge
	return nil
}

func (r *fakeBadgeRepo) GetByID(_ context.Context, id int64) (*models.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.badges[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return b, nil
}

func (r *fakeBadgeRepo) Find(ctx context.Context, titleOrID string, instanceID *int64) (*models.Badge, error) {
	if id, err := strconv.ParseInt(titleOrID, 10, 64); err == nil {
		return r.GetByID(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var prefix *models.Badge
	for _, b := range r.badges {
		if !sameScope(b.InstanceID, instanceID) {
			continue
		}
		if b.Title == titleOrID {
			return b, nil
		}
		if prefix == nil && strings.HasPrefix(b.Title, titleOrID) {
			prefix = b
		}
	}
	if prefix != nil {
		return prefix, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeBadgeRepo) List(_ context.Context, instanceID *int64, visibleOnly bool, badgeType *models.BadgeType) ([]*models.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Badge
	for _, b := range r.badges {
		if !sameScope(b.InstanceID, instanceID) {
			continue
		}
		if visibleOnly && !b.Visible {
			continue
		}
		if badgeType != nil && b.Type != *badgeType {
			continue
		}
		out = append(out, b)
	}
	models.SortBadgesByTitle(out)
	return out, nil
}

func (r *fakeBadgeRepo) Update(_ context.Context, badge *models.Badge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.badges[badge.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.badges[badge.ID] = badge
	return nil
}

func (r *fakeBadgeRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.badges[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.badges, id)
	return nil
}

func (r *fakeBadgeRepo) LoadParents(ctx context.Context, badge *models.Badge) error {
	if badge.Category == nil || badge.Category.ParentID == nil {
		return nil
	}
	parent, err := r.GetByID(ctx, *badge.Category.ParentID)
	if err != nil {
		return err
	}
	badge.Category.Parent = parent
	return r.LoadParents(ctx, parent)
}

func sameScope(a, b *int64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

type assignmentKey struct {
	badgeID  int64
	targetID int64
}

type fakeAssignmentRepo struct {
	mu     sync.Mutex
	kind   models.BadgeTargetKind
	badges *fakeBadgeRepo
	nextID int64
	rows   map[assignmentKey]*models.BadgeAssignment
}

func newFakeAssignmentRepo(kind models.BadgeTargetKind, badges *fakeBadgeRepo) *fakeAssignmentRepo {
	return &fakeAssignmentRepo{
		kind:   kind,
		badges: badges,
		rows:   make(map[assignmentKey]*models.BadgeAssignment),
	}
}

func (r *fakeAssignmentRepo) Kind() models.BadgeTargetKind { return r.kind }

func (r *fakeAssignmentRepo) Assign(_ context.Context, badgeID, targetID, creatorID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := assignmentKey{badgeID, targetID}
	if _, ok := r.rows[key]; ok {
		return false, nil
	}
	r.nextID++
	r.rows[key] = &models.BadgeAssignment{
		ID:        r.nextID,
		BadgeID:   badgeID,
		TargetID:  targetID,
		CreatorID: creatorID,
		CreatedAt: time.Now().UTC(),
	}
	return true, nil
}

func (r *fakeAssignmentRepo) Remove(_ context.Context, badgeID, targetID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := assignmentKey{badgeID, targetID}
	if _, ok := r.rows[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.rows, key)
	return nil
}

func (r *fakeAssignmentRepo) ListByTarget(_ context.Context, targetID int64) ([]*models.BadgeAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.BadgeAssignment
	for _, a := range r.rows {
		if a.TargetID == targetID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) ListByBadge(_ context.Context, badgeID int64) ([]*models.BadgeAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.BadgeAssignment
	for _, a := range r.rows {
		if a.BadgeID == badgeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) BadgesForTarget(ctx context.Context, targetID int64) ([]*models.Badge, error) {
	assignments, _ := r.ListByTarget(ctx, targetID)
	var out []*models.Badge
	for _, a := range assignments {
		b, err := r.badges.GetByID(ctx, a.BadgeID)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	models.SortBadgesByTitle(out)
	return out, nil
}

func (r *fakeAssignmentRepo) TargetIDsForBadge(_ context.Context, badgeID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, a := range r.rows {
		if a.BadgeID == badgeID {
			out = append(out, a.TargetID)
		}
	}
	return out, nil
}

type fakeInstanceRepo struct {
	mu          sync.Mutex
	nextID      int64
	instances   map[int64]*models.Instance
	memberships []*models.Membership
	// updates counts UpdateSettings calls for persistence assertions
	updates int
}

func newFakeInstanceRepo() *fakeInstanceRepo {
	return &fakeInstanceRepo{instances: make(map[int64]*models.Instance)}
}

func (r *fakeInstanceRepo) Create(_ context.Context, instance *models.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	instance.ID = r.nextID
	instance.CreatedAt = time.Now().UTC()
	r.instances[instance.ID] = instance
	return nil
}

func (r *fakeInstanceRepo) GetByID(_ context.Context, id int64) (*models.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.instances[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return i, nil
}

func (r *fakeInstanceRepo) GetByKey(_ context.Context, key string) (*models.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.instances {
		if i.Key == key {
			return i, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeInstanceRepo) UpdateSettings(_ context.Context, instance *models.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[instance.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.instances[instance.ID] = instance
	r.updates++
	return nil
}

func (r *fakeInstanceRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.instances, id)
	return nil
}

func (r *fakeInstanceRepo) AddMembership(_ context.Context, m *models.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = int64(len(r.memberships) + 1)
	m.CreatedAt = time.Now().UTC()
	r.memberships = append(r.memberships, m)
	return nil
}

func (r *fakeInstanceRepo) GetMembership(_ context.Context, userID, instanceID int64) (*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.UserID == userID && m.InstanceID == instanceID && m.ExpiresAt == nil {
			return m, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeInstanceRepo) ExpireMembership(_ context.Context, userID, instanceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.UserID == userID && m.InstanceID == instanceID && m.ExpiresAt == nil {
			now := time.Now().UTC()
			m.ExpiresAt = &now
			return nil
		}
	}
	return repositories.ErrNotFound
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	groups map[string]*models.Group
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: make(map[int64]*models.User),
		groups: map[string]*models.Group{
			models.GroupCodeObserver:   {ID: 1, Code: models.GroupCodeObserver, Name: "Observer"},
			models.GroupCodeVoter:      {ID: 2, Code: models.GroupCodeVoter, Name: "Voter"},
			models.GroupCodeSupervisor: {ID: 3, Code: models.GroupCodeSupervisor, Name: "Supervisor"},
		},
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = int64(len(r.users) + 1)
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) GetGroupByCode(_ context.Context, code string) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[code]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return g, nil
}

// recordingEvents captures emitted events synchronously so tests can
// assert on them without a running bus.
type recordingEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingEvents) Emit(_ context.Context, eventType string, actorID int64, opts ...EmitOption) {
	e := models.Event{Type: eventType, ActorID: actorID, CreatedAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(&e)
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingEvents) Activity(context.Context, repositories.EventFilter) ([]*models.Event, error) {
	return nil, nil
}

func (r *recordingEvents) typesSeen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
