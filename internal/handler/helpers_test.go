package handler

import (
	"net/http/httptest"
	"testing"
	"time"
)

// ========================================
// Helper Function Tests
// ========================================

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 24, 24},
		{"0", 7, 7},
		{"-3", 7, 7},
	}

	for _, tt := range tests {
		result := atoiDefault(tt.input, tt.def)
		if result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

func TestParseDate(t *testing.T) {
	got := parseDate("2025-03-14")
	if !got.Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseDate returned %v", got)
	}
	for _, bad := range []string{"", "14/03/2025", "2025-13-01"} {
		if !parseDate(bad).IsZero() {
			t.Errorf("parseDate(%q) should be zero", bad)
		}
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		query string
		id    int64
		ok    bool
	}{
		{"/?id=42", 42, true},
		{"/?id=0", 0, false},
		{"/?id=-1", -1, false},
		{"/?id=x", 0, false},
		{"/", 0, false},
	}

	for _, tt := range tests {
		id, ok := parseID(httptest.NewRequest("GET", tt.query, nil), "id")
		if ok != tt.ok || (ok && id != tt.id) {
			t.Errorf("parseID(%q) = %d, %t; expected %d, %t", tt.query, id, ok, tt.id, tt.ok)
		}
	}
}
