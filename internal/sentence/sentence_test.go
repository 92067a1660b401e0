package sentence_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/pinocchio/internal/sentence"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	seg, err := sentence.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "I am a real boy", []string{"I am a real boy"}},
		{"two", "My nose grew. It was not my fault.", []string{"My nose grew.", "It was not my fault."}},
		{"blank", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := seg.Split(tt.in); !slices.Equal(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
