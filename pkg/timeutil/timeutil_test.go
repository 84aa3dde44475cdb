package timeutil

import (
	"math"
	"testing"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00:00"},
		{90, "0:01:30"},
		{4282, "1:11:22"},
		{-5, "0:00:00"},
		{59.9, "0:00:59"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.seconds); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestParseTimeToSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1:11:22", 4282, false},
		{"01:30", 90, false},
		{"90", 90, false},
		{"12.5", 12.5, false},
		{"1:30.5", 90.5, false},
		{"abc", 0, true},
		{"1:2:3:4", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeToSeconds(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeToSeconds(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeToSeconds(%q) error = %v", tt.in, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseTimeToSeconds(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
