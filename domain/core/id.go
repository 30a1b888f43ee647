package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// StudyID identifies one assembled mediation study
type StudyID ID

func NewStudyID() StudyID { return StudyID(NewID()) }

func (id StudyID) String() string { return ID(id).String() }

// ParseStudyID parses a string into StudyID. Study IDs are UUIDs; the
// parsed form is canonical lowercase.
func ParseStudyID(s string) (StudyID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid study ID %q: %w", s, err)
	}
	return StudyID(id.String()), nil
}
