package common

import "testing"

// ---------------------------------------------------------------------------
// YearFromDate
// ---------------------------------------------------------------------------

func TestYearFromDate(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"2010-07-15", "2010"},
		{"1999", "1999"},
		{" 2024-01-01 ", "2024"},
		{"", ""},
		{"07-15-2010", ""},
		{"20x0-01-01", ""},
		{"199", ""},
	}
	for _, tc := range cases {
		got := YearFromDate(tc.input)
		if got != tc.want {
			t.Errorf("YearFromDate(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// CleanValue
// ---------------------------------------------------------------------------

func TestCleanValue(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"N/A", ""},
		{"n/a", ""},
		{"  https://img/poster.jpg ", "https://img/poster.jpg"},
		{"", ""},
	}
	for _, tc := range cases {
		got := CleanValue(tc.input)
		if got != tc.want {
			t.Errorf("CleanValue(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
