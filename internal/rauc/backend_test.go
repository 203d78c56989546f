package rauc

import "testing"

func TestKvParsesShellOutputFormat(t *testing.T) {
	out := "RAUC_SYSTEM_COMPATIBLE=\"demo-x86\"\nRAUC_SYSTEM_BOOTED_BOOTNAME=\"A\"\n"
	fields := kv(out)
	if fields["RAUC_SYSTEM_COMPATIBLE"] != `"demo-x86"` {
		t.Fatalf("unexpected compatible field %q", fields["RAUC_SYSTEM_COMPATIBLE"])
	}
	if fields["RAUC_SYSTEM_BOOTED_BOOTNAME"] != `"A"` {
		t.Fatalf("unexpected bootname field %q", fields["RAUC_SYSTEM_BOOTED_BOOTNAME"])
	}
}

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		line    string
		wantPct int
		wantMsg string
		wantOk  bool
	}{
		{"10% Checking slot A", 10, "Checking slot A", true},
		{"100% Installing done", 100, "Installing done", true},
		{"not a progress line", 0, "", false},
	}
	for _, c := range cases {
		pct, msg, ok := parseProgressLine(c.line)
		if ok != c.wantOk || pct != c.wantPct || msg != c.wantMsg {
			t.Errorf("parseProgressLine(%q) = (%d, %q, %v), want (%d, %q, %v)",
				c.line, pct, msg, ok, c.wantPct, c.wantMsg, c.wantOk)
		}
	}
}
