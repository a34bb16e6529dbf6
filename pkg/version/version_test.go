package version

import "testing"

func TestInfoStrings(t *testing.T) {
	tcases := map[string]struct {
		info        Info
		short, long string
	}{
		"tagged":   {Info{Tag: "v0.3.0", Commit: "abc1234", Date: "2026-01-01"}, "v0.3.0", "v0.3.0 (abc1234) built 2026-01-01"},
		"untagged": {Info{Commit: "abc1234", Date: "2026-01-01"}, "abc1234", "abc1234 built 2026-01-01"},
		"dev":      {Info{}, "dev", "dev"},
	}
	for name, tc := range tcases {
		if got := tc.info.String(); got != tc.short {
			t.Errorf("%s: String() = %q; want %q", name, got, tc.short)
		}
		if got := tc.info.Full(); got != tc.long {
			t.Errorf("%s: Full() = %q; want %q", name, got, tc.long)
		}
	}
}

func TestShortSHA(t *testing.T) {
	if got := shortSHA("0123456789abcdef"); got != "0123456" {
		t.Fatalf("shortSHA = %q", got)
	}
	if got := shortSHA("abc"); got != "abc" {
		t.Fatalf("shortSHA = %q", got)
	}
}
