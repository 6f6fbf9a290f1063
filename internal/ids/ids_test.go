package ids

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		prefix string
		seq    int64
		width  int
		want   string
	}{
		{"EMP", 7, 6, "EMP000007"},
		{"FP-2025-", 12, 5, "FP-2025-00012"},
		{"EMP", 0, 6, "EMP000000"},
		{"EMP", 1234567, 6, "EMP1234567"},
		{"", 42, 3, "042"},
		{"X", 5, 0, "X5"},
		{"X", 5, -2, "X5"},
	}
	for _, tc := range cases {
		if got := Format(tc.prefix, tc.seq, tc.width); got != tc.want {
			t.Fatalf("Format(%q, %d, %d)=%q, want %q", tc.prefix, tc.seq, tc.width, got, tc.want)
		}
	}
}

func TestNamedFormats(t *testing.T) {
	if got := EmployeeID(123); got != "EMP000123" {
		t.Fatalf("EmployeeID(123)=%q", got)
	}
	if got := FingerprintDocNo(2025, 7); got != "FP-2025-00007" {
		t.Fatalf("FingerprintDocNo(2025, 7)=%q", got)
	}
}

func TestParse(t *testing.T) {
	seq, err := Parse("FP-2025-", "FP-2025-00012")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if seq != 12 {
		t.Fatalf("expected 12, got %d", seq)
	}
	for _, bad := range []string{"EMP000001", "FP-2025-", "FP-2025-00a12"} {
		if _, err := Parse("FP-2025-", bad); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q): expected ErrMalformed, got %v", bad, err)
		}
	}
}

func TestNewIsSortable(t *testing.T) {
	a := New()
	b := New()
	if a == b {
		t.Fatal("expected distinct ids")
	}
	if a > b {
		t.Fatalf("expected monotonic ids, got %s then %s", a, b)
	}
}
