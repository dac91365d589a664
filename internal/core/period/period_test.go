package period

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"2025-01", "2025-01", false},
		{"2025-01 Januar", "2025-01", false},
		{" 2024-12-export", "2024-12", false},
		{"2025-13", "", true},
		{"Januar 2025", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := Parse(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("Parse(%q) = %q, %v; want %q, err %v", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
}

func TestFromPath(t *testing.T) {
	k, folder, err := FromPath("2025-02 Februar/Kunde/INV-7.pdf")
	if err != nil || k != "2025-02" || folder != "2025-02 Februar" {
		t.Fatalf("FromPath = %q %q %v", k, folder, err)
	}
	k, _, err = FromPath(`2025-03\INV-1.pdf`)
	if err != nil || k != "2025-03" {
		t.Fatalf("windows separators: %q %v", k, err)
	}
	if _, _, err := FromPath("misc/INV-1.pdf"); err == nil {
		t.Fatal("expected error for file outside a month folder")
	}
}

func TestPrevAndOrder(t *testing.T) {
	if got := Key("2025-01").Prev(); got != "2024-12" {
		t.Fatalf("Prev = %q", got)
	}
	if !Less("2024-12", "2025-01") || Less("2025-02", "2025-01") {
		t.Fatal("lexical order should match chronology")
	}
}
