package entity

import "time"

// User represents a farmer account row in the `users` table / collection.
type User struct {
	ID           string
	Identifier   string // mobile number or email, case preserved
	PasswordHash string
	DisplayName  string
	Location     string
	CreatedAt    time.Time
}

// Profile is the projection returned after authentication. It never carries the hash.
type Profile struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Location    string `json:"location"`
}

// Profile returns the public projection of u.
func (u *User) Profile() *Profile {
	return &Profile{ID: u.ID, Identifier: u.Identifier, DisplayName: u.DisplayName, Location: u.Location}
}
