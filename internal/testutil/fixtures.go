// Package testutil provides fixtures and a mock marketplace backend for use
// across the test files in this project.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"tutorlink/internal/models"
)

// TestStudent creates a student account with default values.
func TestStudent() *models.Student {
	return &models.Student{
		User: models.User{
			ID:        uuid.New(),
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "foo@example.com",
			Gender:    models.GenderFemale,
			Role:      models.RoleStudent,
			Location:  "Southampton",
		},
		Subjects: []models.Subject{{ID: uuid.New(), Name: "Maths"}},
	}
}

// TestTutor creates an approved-profile tutor with default values. Tests
// adjust Bio/Price/Approved/Reason to build the other onboarding states.
func TestTutor() *models.Tutor {
	return &models.Tutor{
		User: models.User{
			ID:        uuid.New(),
			FirstName: "Grace",
			LastName:  "Hopper",
			Email:     "tutor@example.com",
			Gender:    models.GenderFemale,
			Role:      models.RoleTutor,
			Location:  "Portsmouth",
		},
		Bio:      StringPtr("I teach compilers"),
		Price:    Float64Ptr(25.5),
		Approved: BoolPtr(true),
		Subjects: []models.Subject{{ID: uuid.New(), Name: "Computer Science"}},
	}
}

// TestAdmin creates an admin account with default values.
func TestAdmin() *models.Admin {
	return &models.Admin{
		User: models.User{
			ID:        uuid.New(),
			FirstName: "Root",
			LastName:  "Admin",
			Email:     "root@example.com",
			Gender:    models.GenderUndisclosed,
			Role:      models.RoleAdmin,
		},
	}
}

// TestMessage creates a sent message with the given body and timestamp.
func TestMessage(sender uuid.UUID, body string, sentAt time.Time) *models.Message {
	return &models.Message{
		ID:        uuid.New(),
		SenderID:  sender,
		Body:      body,
		Timestamp: sentAt.Format(time.RFC3339Nano),
		State:     models.MessageSent,
	}
}

// TestThread creates an allowed thread containing the given messages.
func TestThread(recipient models.Recipient, messages ...*models.Message) *models.MessageThread {
	return &models.MessageThread{
		ID:           uuid.New(),
		Recipient:    recipient,
		State:        models.ThreadAllowed,
		Messages:     messages,
		MessageCount: len(messages),
	}
}

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(f float64) *float64 {
	return &f
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool {
	return &b
}
