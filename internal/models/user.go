package models

// Role names recognized across the service. Admins and moderators may act on
// any request; owners and agents only on their own records.
const (
	RoleOwner     = "OWNER"
	RoleAgent     = "AGENT"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

// User represents an account in the system.
type User struct {
	Base           `bson:",inline"`
	Name           string   `bson:"name" json:"name"`
	Email          string   `bson:"email" json:"email"`
	PasswordHash   string   `bson:"password" json:"-"`
	Roles          []string `bson:"roles" json:"roles"`
	OrganizationID string   `bson:"organization_id,omitempty" json:"organization_id,omitempty"`
	Suspended      bool     `bson:"suspended" json:"suspended"`
	Timestamps     `bson:",inline"`
	Deleted        bool `bson:"deleted" json:"-"` // Soft delete flag
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
