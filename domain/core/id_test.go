package core

import (
	"strings"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	// Generate many IDs
	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDString tests ID string conversion
func TestIDString(t *testing.T) {
	id := ID("test-123")
	if id.String() != "test-123" {
		t.Errorf("Expected String() to return 'test-123', got '%s'", id.String())
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	emptyID := ID("")
	if !emptyID.IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}

	nonEmptyID := ID("not-empty")
	if nonEmptyID.IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseStudyID tests study ID parsing
func TestParseStudyID(t *testing.T) {
	valid := NewStudyID()

	tests := []struct {
		input    string
		expected StudyID
		hasError bool
	}{
		{valid.String(), valid, false},
		{strings.ToUpper(valid.String()), valid, false},
		{"not-a-uuid", "", true},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseStudyID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestLookupErrorChain tests that lookup errors unwrap to the not-found sentinel
func TestLookupErrorChain(t *testing.T) {
	err := NewVariableLookupError("dose")
	if !IsLookupError(err) {
		t.Error("Expected variable lookup error to satisfy IsLookupError")
	}
	if !IsNotFoundError(err) {
		t.Error("Expected variable lookup error to satisfy IsNotFoundError")
	}
}

// TestShapeMismatchError tests shape mismatch construction and detection
func TestShapeMismatchError(t *testing.T) {
	err := NewShapeMismatchError("substitution grid", 30, 10)
	if !IsShapeMismatchError(err) {
		t.Error("Expected shape mismatch error to satisfy IsShapeMismatchError")
	}
	if IsLookupError(err) {
		t.Error("Shape mismatch must not register as a lookup error")
	}
}
