package models

import "github.com/google/uuid"

// Subject is an entry in the globally managed subject catalog. Subjects are
// created and deleted by admins only; students and tutors reference them on
// their profiles.
type Subject struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
