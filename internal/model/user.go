// Package model defines the records persisted by the stores
package model

// User is a registered account. The map key it is stored under is the
// email, so the record itself does not repeat it.
type User struct {
	PasswordHash string `json:"password"`
	Name         string `json:"name"`
	CreatedAt    string `json:"created_at,omitempty"` // RFC 3339, UTC
}

// PublicUser is a User with the password hash stripped, safe to send back
// to clients
type PublicUser struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (u User) Public(email string) PublicUser {
	return PublicUser{
		Email:     email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}
