package chunking

import (
	"strings"
	"testing"
)

func TestSplitPrefersWhitespaceBoundaries(t *testing.T) {
	got := NewSplitter(10, 0).Split("aaaa bbbb cccc")
	if strings.Join(got, "|") != "aaaa bbbb|cccc" {
		t.Fatalf("unexpected chunks %q", got)
	}
}

func TestSplitAppliesOverlap(t *testing.T) {
	got := NewSplitter(10, 5).Split("aaaa bbbb cccc")
	if strings.Join(got, "|") != "aaaa bbbb|bbbb cccc" {
		t.Fatalf("unexpected chunks %q", got)
	}
}

func TestSplitHardCutsWithoutWhitespace(t *testing.T) {
	got := NewSplitter(5, 0).Split("abcdefghijkl")
	if strings.Join(got, "|") != "abcde|fghij|kl" {
		t.Fatalf("unexpected chunks %q", got)
	}
}

func TestSplitEmptyAndNormalizedOptions(t *testing.T) {
	if got := NewSplitter(10, 0).Split(""); got != nil {
		t.Fatalf("expected nil for empty text, got %q", got)
	}
	s := NewSplitter(0, 5000)
	if s.ChunkSize != 900 || s.Overlap != 225 {
		t.Fatalf("expected defaults 900/225, got %d/%d", s.ChunkSize, s.Overlap)
	}
}
