package domain

import "testing"

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		id, scope string
		want      TestKind
	}{
		{"VT-001", "Cell", KindVolume},
		{"vt-002", "", KindVolume},
		{"CH-010", "Hardening", KindHardening},
		{"CH-011", "hardening", KindHardening},
		{"CH-012", "Cell", KindRegular},
		{"A1001", "Hardening", KindRegular},
		{"", "", KindRegular},
	}

	for _, c := range cases {
		if got := ClassifyKind(c.id, c.scope); got != c.want {
			t.Fatalf("ClassifyKind(%q,%q)=%q want %q", c.id, c.scope, got, c.want)
		}
	}
}

func TestTestKind_Allows(t *testing.T) {
	if !KindRegular.Allows(FieldStatus) || !KindRegular.Allows(FieldNote) {
		t.Fatalf("status and note must apply to every kind")
	}
	if KindRegular.Allows(FieldVolume) {
		t.Fatalf("regular tests have no volume")
	}
	if !KindVolume.Allows(FieldVolume) || KindVolume.Allows(FieldStartTime) {
		t.Fatalf("unexpected volume field set")
	}
	if !KindHardening.Allows(FieldAvailability) || KindHardening.Allows(FieldVolume) {
		t.Fatalf("unexpected hardening field set")
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"", "skipped", "  ", "passed"} {
		if got, ok := ParseStatus(raw); ok {
			t.Fatalf("ParseStatus(%q)=%q, expected rejection", raw, got)
		}
	}
	if got, ok := ParseStatus(" pass "); !ok || got != StatusPass {
		t.Fatalf("expected PASS, got %q ok=%v", got, ok)
	}
}
