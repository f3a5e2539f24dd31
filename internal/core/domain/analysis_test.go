package domain

import (
	"encoding/json"
	"testing"
)

func TestStructuredAnalysisAcceptsLooseModelOutput(t *testing.T) {
	raw := `{
		"dimensions": {"totalArea": 1450, "length": "52 ft", "height": null},
		"rooms": [{"name": "Kitchen", "area": 180}],
		"features": "Open plan",
		"compliance": {"status": "Needs Review", "issues": ["Stair riser height"]},
		"costEstimate": {"range": "$250k - $300k", "breakdown": {"labor": {"low": 1, "high": 2}}},
		"summary": "Single storey house"
	}`

	var a StructuredAnalysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if a.Dimensions.TotalArea != "1450" || a.Dimensions.Length != "52 ft" || a.Dimensions.Height != "" {
		t.Fatalf("unexpected dimensions %+v", a.Dimensions)
	}
	if a.Rooms[0].Area != "180" {
		t.Fatalf("expected numeric area coerced to text, got %q", a.Rooms[0].Area)
	}
	if len(a.Features) != 1 || a.Features[0] != "Open plan" {
		t.Fatalf("expected scalar feature wrapped in list, got %v", a.Features)
	}
	if a.Compliance.Status != ComplianceNeedsReview {
		t.Fatalf("expected needs-review, got %q", a.Compliance.Status)
	}
	if a.CostEstimate.Breakdown.Labor != `{"low":1,"high":2}` {
		t.Fatalf("expected compact object text, got %q", a.CostEstimate.Breakdown.Labor)
	}
}

func TestParseComplianceStatus(t *testing.T) {
	cases := map[string]ComplianceStatus{
		"compliant":     ComplianceCompliant,
		"Non-Compliant": ComplianceNonCompliant,
		"non_compliant": ComplianceNonCompliant,
		"needs-review":  ComplianceNeedsReview,
		"compliant/non-compliant/needs-review": ComplianceUnknown,
		"":              ComplianceUnknown,
	}
	for in, want := range cases {
		if got := ParseComplianceStatus(in); got != want {
			t.Fatalf("ParseComplianceStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDegradedAnalysisKeepsRawSummary(t *testing.T) {
	a := DegradedAnalysis("not json at all")

	encoded, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(encoded, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if fields["summary"] != "not json at all" || fields["error"] != DegradedParseMessage {
		t.Fatalf("unexpected degraded record %s", encoded)
	}
}

func TestDetectMediaKind(t *testing.T) {
	cases := []struct {
		contentType string
		name        string
		want        MediaKind
	}{
		{"application/pdf", "x.png", MediaPDF},
		{"image/png; charset=binary", "x", MediaRaster},
		{"image/vnd.dwg", "x", MediaCAD},
		{"application/octet-stream", "plan.DXF", MediaCAD},
		{"", "https://files.example.com/a/b/plan.pdf?token=abc", MediaPDF},
		{"", "scan.jpeg", MediaRaster},
		{"", "notes", MediaUnknown},
	}
	for _, tc := range cases {
		if got := DetectMediaKind(tc.contentType, tc.name); got != tc.want {
			t.Fatalf("DetectMediaKind(%q, %q) = %q, want %q", tc.contentType, tc.name, got, tc.want)
		}
	}
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	if PairKey("b", "a") != PairKey("a", "b") {
		t.Fatalf("expected symmetric pair key")
	}
	if PairKey("a", "b") != "a:b" {
		t.Fatalf("unexpected pair key %q", PairKey("a", "b"))
	}
}

func TestConversationAppendExchangeAlternates(t *testing.T) {
	var c Conversation
	for i := 0; i < 3; i++ {
		c.AppendExchange("q", "file:///plan.png", "a", c.UpdatedAt)
	}
	if len(c.Turns) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(c.Turns))
	}
	for i, turn := range c.Turns {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turn %d: expected %s, got %s", i, want, turn.Role)
		}
	}
	if got := c.RecentTurns(4); len(got) != 4 || got[0].Role != RoleUser {
		t.Fatalf("unexpected recent turns %+v", got)
	}
}
