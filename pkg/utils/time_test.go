package utils

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"Sub-millisecond stays exact", 250 * time.Microsecond, "250µs"},
		{"Sub-second rounds to milliseconds", 1234567 * time.Nanosecond, "1ms"},
		{"Sub-minute rounds to centiseconds", 1517 * time.Millisecond, "1.52s"},
		{"Minutes round to seconds", 90500 * time.Millisecond, "1m31s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %s, want %s", tt.d, got, tt.want)
			}
		})
	}
}
