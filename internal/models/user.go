package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is a participant. Only the fields the badge and event
// subsystems need are modeled here; profile data lives elsewhere.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	CreatedAt    time.Time `json:"created_at" db:"create_time"`
}

// SetPassword hashes and stores the given password.
func (u *User) SetPassword(password string, cost int) error {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether the given password matches the
// stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Group is a permission group; instances assign one to new members.
type Group struct {
	ID   int64  `json:"id" db:"id"`
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"group_name"`
}

// Instance group codes.
const (
	GroupCodeObserver   = "observer"
	GroupCodeVoter      = "voter"
	GroupCodeSupervisor = "supervisor"
)

// InstanceGroupCodes are the groups an instance may use as its
// default for new members, in display order.
var InstanceGroupCodes = []string{GroupCodeObserver, GroupCodeVoter, GroupCodeSupervisor}

// Membership binds a user to an instance with a group. Leaving an
// instance expires the membership instead of deleting it.
type Membership struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	InstanceID int64      `json:"instance_id" db:"instance_id"`
	GroupID    int64      `json:"group_id" db:"group_id"`
	CreatedAt  time.Time  `json:"created_at" db:"create_time"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expire_time"`
}

// Expired reports whether the membership has been ended.
func (m *Membership) Expired() bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(time.Now())
}

// Proposal is the delegateable entity badges attach to. Norms and
// other delegateable kinds share the same badge mechanics.
type Proposal struct {
	ID         int64     `json:"id" db:"id"`
	InstanceID int64     `json:"instance_id" db:"instance_id"`
	Title      string    `json:"title" db:"title"`
	CreatorID  int64     `json:"creator_id" db:"creator_id"`
	CreatedAt  time.Time `json:"created_at" db:"create_time"`
}
