package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestNew_LevelFollowsEnvironment(t *testing.T) {
	cases := []struct {
		env       string
		wantDebug bool
	}{
		{"local", true},
		{"dev", true},
		{"staging", false},
		{"production", false},
	}
	for _, tc := range cases {
		got := New(tc.env).Enabled(context.Background(), slog.LevelDebug)
		if got != tc.wantDebug {
			t.Errorf("env %q: debug enabled=%v, want %v", tc.env, got, tc.wantDebug)
		}
	}
}
