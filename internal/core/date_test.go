package core

import "testing"

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"24-02-2025", "24/02/2025"},
		{"24/02/2025", "24/02/2025"},
		{"24-02/2025", "24/02/2025"},
		{"2025-02-24", "24/02/2025"},
		{"2025/02/24", "24/02/2025"},
		{"2025-03-02", "02/03/2025"},
		{"not-a-date", "not/a/date"},
		{"", ""},
		{"24.02.2025", "24.02.2025"},
		{"2025-2-4", "2025/2/4"},
		// no semantic validation: month 13 passes through
		{"31-13-2025", "31/13/2025"},
	}
	for _, tc := range cases {
		if got := NormalizeDate(tc.in); got != tc.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeDateIdempotent(t *testing.T) {
	inputs := []string{
		"01/03/2025", "24/02/2025", "31/12/1999", "24-02-2025", "2025-02-24", "2025/02/24", "not-a-date",
	}
	for _, in := range inputs {
		once := NormalizeDate(in)
		if twice := NormalizeDate(once); twice != once {
			t.Errorf("NormalizeDate not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestValidDateInput(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"24/02/2025", true},
		{"24-02-2025", true},
		{"2025-02-24", true},
		{"2025/02/24", true},
		{"00/02/2025", false},
		{"32/02/2025", false},
		{"24/13/2025", false},
		{"2025-13-01", false},
		{"24/2/2025", false},
		{"not-a-date", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidDateInput(tc.in); got != tc.ok {
			t.Errorf("ValidDateInput(%q) = %v, want %v", tc.in, got, tc.ok)
		}
	}
}
