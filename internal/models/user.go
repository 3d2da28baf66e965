package models

import "time"

// User is the local profile of an account owned by the external auth provider.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicProfile is the subset of a user visible to other users.
type PublicProfile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, FullName: u.FullName, AvatarURL: u.AvatarURL, CreatedAt: u.CreatedAt}
}

// Principal is the authenticated caller of a single request.
type Principal struct {
	UserID   string
	Email    string
	FullName string
	Role     string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsZero() bool {
	return p.UserID == ""
}
