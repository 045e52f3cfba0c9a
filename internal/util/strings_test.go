package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateANSI(t *testing.T) {
	styled := lipgloss.NewStyle().Bold(true).Render("phase error [run=fast-1]")

	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     int // expected visible width
	}{
		{"fits", "short", 10, 5},
		{"truncated", "cd /proj && make -C /proj", 12, 12},
		{"styled", styled, 10, 10},
		{"tiny width", "hello", 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateANSI(tt.input, tt.maxWidth)
			if w := lipgloss.Width(got); w != tt.want {
				t.Errorf("TruncateANSI() width = %d (%q), want %d", w, got, tt.want)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"single", "single"},
		{"  padded  \n", "padded"},
		{"2 of 3 runs failed\n  fast-1\n  fast-2", "2 of 3 runs failed (+2 lines)"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FirstLine(tt.input); got != tt.want {
			t.Errorf("FirstLine(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIndent(t *testing.T) {
	got := Indent("a\n\nb", "  ")
	if got != "  a\n\n  b" {
		t.Errorf("Indent() = %q", got)
	}
}

func TestBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{512, "512 B"},
		{1500, "1.5 kB"},
	}
	for _, tt := range tests {
		if got := Bytes(tt.n); got != tt.want {
			t.Errorf("Bytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
