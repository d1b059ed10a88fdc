package archive

import "testing"

func TestParseRule(t *testing.T) {
	cases := []struct {
		in      string
		want    Rule
		wantErr bool
	}{
		{in: "monthly", want: RuleMonthly},
		{in: "weekly", want: RuleWeekly},
		{in: "daily", want: RuleDaily},
		{in: "none", want: RuleNone},
		{in: "", want: RuleNone},
		{in: "hourly", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseRule(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestRule_Priority(t *testing.T) {
	order := []Rule{RuleNone, RuleDaily, RuleWeekly, RuleMonthly}
	for i := 1; i < len(order); i++ {
		if order[i-1].Priority() >= order[i].Priority() {
			t.Fatalf("%s should sort before %s", order[i-1], order[i])
		}
	}
}

func TestRule_Base(t *testing.T) {
	if base, ok := RuleWeekly.Base(); !ok || base != RuleMonthly {
		t.Fatalf("weekly base: %s ok=%v", base, ok)
	}
	if base, ok := RuleDaily.Base(); !ok || base != RuleWeekly {
		t.Fatalf("daily base: %s ok=%v", base, ok)
	}
	if _, ok := RuleMonthly.Base(); ok {
		t.Fatalf("monthly has no base")
	}
	if _, ok := RuleNone.Base(); ok {
		t.Fatalf("none has no base")
	}
}
