package ui

import "testing"

func TestClip(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"overflowing", 4, "over"},
		{"x", 1, "x"},
	}

	for _, tt := range tests {
		if got := clip(tt.in, tt.width); got != tt.want {
			t.Errorf("clip(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestLineWidth(t *testing.T) {
	// Dropped columns (width 0) contribute nothing, kept ones pay for
	// their trailing separator.
	if got := lineWidth([]int{8, 0, 12}); got != 22 {
		t.Errorf("lineWidth = %d, want 22", got)
	}
	if got := lineWidth([]int{0, 0}); got != 0 {
		t.Errorf("lineWidth of empty columns = %d, want 0", got)
	}
}
