// Package models defines the catalog rows and session records the gateway
// reads and writes.
package models

// User is an actor able to own drive files. Host is nil for local users and
// holds the remote instance host for federated ones.
type User struct {
	ID       string
	Username string
	Host     *string
	Token    *string
}

// IsLocal reports whether the user belongs to this instance.
func (u *User) IsLocal() bool {
	return u != nil && u.Host == nil
}

// IsRemote reports whether the user was federated from another instance.
func (u *User) IsRemote() bool {
	return u != nil && u.Host != nil
}

// UserProfile carries the per-user moderation preferences.
type UserProfile struct {
	UserID         string
	AlwaysMarkNsfw bool
	AutoSensitive  bool
}
