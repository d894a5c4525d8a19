package model

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// UserSnapshot is the identity returned by the remote auth endpoints.
type UserSnapshot struct {
	ID    string   `json:"_id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Phone string   `json:"phone,omitempty"`
	Role  UserRole `json:"role"`
}

// Session is the persisted bearer credential. Presence does not imply validity.
type Session struct {
	Token      string        `json:"token"`
	User       *UserSnapshot `json:"user"`
	Local      bool          `json:"local"` // issued by the local admin login, never synced remotely
	SignedInAt time.Time     `json:"signedInAt"`
}

// Present reports whether both token and identity exist.
func (s *Session) Present() bool {
	return s != nil && s.Token != "" && s.User != nil
}
