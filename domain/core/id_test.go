package core

import (
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

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	tests := []struct {
		input    string
		expected RunID
		hasError bool
	}{
		{"run-123", RunID("run-123"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseRunID(test.input)
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

// TestErrorHelpers tests sentinel error classification
func TestErrorHelpers(t *testing.T) {
	invalid := NewInvalidInputError("t_ext", "must be in (0, 0.5)")
	if !IsInvalidInputError(invalid) {
		t.Error("Expected invalid input error to match ErrInvalidInput")
	}
	if IsNotFoundError(invalid) {
		t.Error("Invalid input error should not match ErrNotFound")
	}

	notFound := NewNotFoundError("run", "run-42")
	if !IsNotFoundError(notFound) {
		t.Error("Expected not found error to match ErrNotFound")
	}

	estFail := NewEstimationError("aipw", ErrInvalidInput)
	if !IsEstimationFailure(estFail) {
		t.Error("Expected estimation error to match ErrEstimationFailure")
	}
	if IsInvalidInputError(estFail) {
		t.Error("Estimation error wraps the cause message only, not its sentinel")
	}
}
