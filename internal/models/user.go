// Package models defines the domain models exchanged with the tutoring
// marketplace API: user accounts in their three role variants, subjects,
// conversation threads and messages.
//
// The API uses single-character discriminator tags on the wire for roles,
// genders, thread states and message states. Profile payloads are polymorphic
// over the role tag; DecodeProfile decodes the discriminator first and then
// the matching concrete variant, rejecting unknown tags instead of silently
// defaulting.
package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Role identifies which account variant a user payload deserializes into.
type Role string

// Role wire tags.
const (
	RoleStudent Role = "s"
	RoleTutor   Role = "t"
	RoleAdmin   Role = "a"
)

// Gender is the self-reported gender of an account.
type Gender string

// Gender wire tags.
const (
	GenderMale        Gender = "m"
	GenderFemale      Gender = "f"
	GenderUndisclosed Gender = "n"
)

// ErrUnknownRole is returned by DecodeProfile when a payload carries a role
// tag this client does not recognise.
var ErrUnknownRole = fmt.Errorf("unknown role tag")

// User holds the attributes common to every account variant.
//
// JSON example:
//
//	{
//	  "id": "5f0c4b5e-...",
//	  "first_name": "Ada",
//	  "last_name": "Lovelace",
//	  "email": "ada@example.com",
//	  "gender": "f",
//	  "role": "s",
//	  "location": "Southampton"
//	}
type User struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Gender    Gender    `json:"gender"`
	Role      Role      `json:"role"`
	Location  string    `json:"location,omitempty"`

	// Password is only populated on registration requests and is never
	// returned by the API.
	Password string `json:"password,omitempty"`
}

// Profile is the tagged union over the three account variants. Account
// exposes the common attributes shared by every variant.
type Profile interface {
	Account() *User
}

// Student is a user who searches for and messages tutors.
type Student struct {
	User
	Subjects []Subject `json:"subjects,omitempty"`
}

// Account implements Profile.
func (s *Student) Account() *User { return &s.User }

// Tutor is a user offering tutoring. Bio, Price and Approved are nullable on
// the wire: a tutor with neither price nor bio has not created a profile yet,
// and Approved is a tri-state (nil = awaiting review, false = rejected with
// Reason set, true = approved).
type Tutor struct {
	User
	Bio      *string   `json:"bio"`
	Price    *float64  `json:"price"`
	Approved *bool     `json:"status"`
	Reason   string    `json:"reason,omitempty"`
	Subjects []Subject `json:"subjects,omitempty"`

	// Moderation workflow timestamps, kept as the wire strings; nothing in
	// the client computes with them.
	Revision   string `json:"revision,omitempty"`
	ReviewedAt string `json:"reviewed_at,omitempty"`
}

// Account implements Profile.
func (t *Tutor) Account() *User { return &t.User }

// HasProfile reports whether the tutor has submitted a tutoring profile.
// The API models "no profile yet" as null price and null bio.
func (t *Tutor) HasProfile() bool {
	return t.Price != nil || t.Bio != nil
}

// Admin is distinguished purely by its role tag; it carries no extra fields.
type Admin struct {
	User
}

// Account implements Profile.
func (a *Admin) Account() *User { return &a.User }

// DecodeProfile decodes a polymorphic user payload into the concrete variant
// selected by its role tag. Payloads with a missing or unknown tag fail with
// ErrUnknownRole so that new server-side roles surface loudly instead of
// being misread as an existing variant.
func DecodeProfile(data []byte) (Profile, error) {
	var tag struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	switch tag.Role {
	case RoleStudent:
		var student Student
		if err := json.Unmarshal(data, &student); err != nil {
			return nil, fmt.Errorf("failed to decode student profile: %w", err)
		}
		return &student, nil
	case RoleTutor:
		var tutor Tutor
		if err := json.Unmarshal(data, &tutor); err != nil {
			return nil, fmt.Errorf("failed to decode tutor profile: %w", err)
		}
		return &tutor, nil
	case RoleAdmin:
		var admin Admin
		if err := json.Unmarshal(data, &admin); err != nil {
			return nil, fmt.Errorf("failed to decode admin profile: %w", err)
		}
		return &admin, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, tag.Role)
	}
}
