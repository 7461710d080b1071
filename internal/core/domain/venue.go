package domain

import "time"

// Venue references its owner by username only.
type Venue struct {
	Name          string    `json:"name"`
	OwnerUsername string    `json:"owner_username"`
	IsOpen        bool      `json:"is_open"`
	CreatedAt     time.Time `json:"created_at"`
}

// OwnedBy reports whether username is the venue's owner. Safe on a nil venue.
func (v *Venue) OwnedBy(username string) bool {
	return v != nil && username != "" && v.OwnerUsername == username
}
