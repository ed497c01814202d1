package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1234.5", "1234.5", true},
		{"$1,234.50", "1234.5", true},
		{"1,234", "1234", true},
		{"1,234,567", "1234567", true},
		{"12,34", "12.34", true},
		{" 2.50 ", "2.5", true},
		{"-15000", "-15000", true},
		{"€ 99", "99", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e5", "100000", true},
		{"1.5E-3", "0.0015", true},
		{"2e+2", "200", true},
		{"+5", "5", true},
		{"$-5", "-5", true},
		{"-$5", "-5", true},
		{"+$1,234.50", "1234.5", true},
		{"€ -12,5", "-12.5", true},
		{"--5", "", false},
		{"-$-5", "", false},
		{"$", "", false},
		{"e5", "", false},
		{"1e", "", false},
		{"1e29", "", false},
		{"1e999999999", "", false},
		{"1e5.5", "", false},
		{"", "", false},
		{"-", "", false},
		{"NaN", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(dec(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}
