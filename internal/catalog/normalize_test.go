package catalog

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"", ""},
		{"   ", ""},
		{"In Progress", "in_progress"},
		{"VHC - Sent", "vhc_sent"},
		{"VHC Sent To Customer", "vhc_sent_to_customer"},
		{"already_canonical", "already_canonical"},
		{"Multiple   spaces!!and--runs", "multiple_spaces_and_runs"},
		{42, "42"},
		{3.5, "3_5"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIsStable(t *testing.T) {
	inputs := []string{
		"In Progress",
		"VHC - Sent!!",
		"  padded  ",
		"_leading_underscore",
		"trailing_underscore_",
		"--dashes--",
		"MiXeD CaSe 123",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not stable for %q: once=%q twice=%q", in, once, twice)
		}
	}
}
