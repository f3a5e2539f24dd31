package jsonrecover

import (
	"errors"
	"testing"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

type summaryOnly struct {
	Summary string `json:"summary"`
}

func TestDecodePrefersJSONFence(t *testing.T) {
	raw := "Here you go:\n```json\n{\"summary\":\"fenced\"}\n```\nand also {\"summary\":\"outside\"}"

	out, tier, err := Decode[summaryOnly](raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if tier != TierFencedJSON {
		t.Fatalf("expected tier %q, got %q", TierFencedJSON, tier)
	}
	if out.Summary != "fenced" {
		t.Fatalf("expected fenced summary, got %q", out.Summary)
	}
}

func TestDecodeFallsBackToPlainFence(t *testing.T) {
	raw := "```\n{\"summary\":\"plain\"}\n```"

	out, tier, err := Decode[summaryOnly](raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if tier != TierFenced || out.Summary != "plain" {
		t.Fatalf("expected plain fence decode, got tier=%q summary=%q", tier, out.Summary)
	}
}

func TestDecodeFallsBackToWholeResponse(t *testing.T) {
	out, tier, err := Decode[summaryOnly]("  {\"summary\":\"bare\"}\n")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if tier != TierRaw || out.Summary != "bare" {
		t.Fatalf("expected raw decode, got tier=%q summary=%q", tier, out.Summary)
	}
}

func TestDecodeBrokenFenceUsesWholeResponseWhenValid(t *testing.T) {
	out, tier, err := Decode[[]int]("[1,2,3]")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if tier != TierRaw || len(out) != 3 {
		t.Fatalf("unexpected decode: tier=%q out=%v", tier, out)
	}
}

func TestDecodeReportsExhaustedRecovery(t *testing.T) {
	cases := []string{
		"",
		"not json at all",
		"The plan is {\"summary\": \"in prose\"} as shown.",
		"```json\n{broken\n```",
		"null",
		"\"just a string\"",
	}
	for _, raw := range cases {
		_, tier, err := Decode[summaryOnly](raw)
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		if !errors.Is(err, domain.ErrParseRecoveryExhausted) {
			t.Fatalf("expected ErrParseRecoveryExhausted for %q, got %v", raw, err)
		}
		if tier != TierDegraded {
			t.Fatalf("expected degraded tier for %q, got %q", raw, tier)
		}
	}
}
