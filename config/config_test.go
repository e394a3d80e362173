package config

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		fallback time.Duration
		want     time.Duration
	}{
		{"empty", "", time.Minute, time.Minute},
		{"valid", "2s", time.Minute, 2 * time.Second},
		{"compound", "1h30m", time.Minute, 90 * time.Minute},
		{"malformed", "soon", time.Minute, time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Duration(tc.in, tc.fallback); got != tc.want {
				t.Fatalf("Duration(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}
