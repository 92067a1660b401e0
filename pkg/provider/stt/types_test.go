package stt_test

import (
	"testing"

	"github.com/MrWong99/pinocchio/pkg/provider/stt"
)

func TestCleanText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  hello   there ", "hello there"},
		{"[BLANK_AUDIO]", ""},
		{" [MUSIC] where is Geppetto?", "where is Geppetto?"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := stt.CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
