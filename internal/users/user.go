package users

import "time"

// User is a selectable profile, created via the seed process.
// There is no sign-up flow and no credentials attached to it.
type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	ProfileImage string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
}
