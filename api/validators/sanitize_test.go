package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"trims whitespace", "  hello  ", 0, "hello"},
		{"caps length", "abcdefgh", 4, "abcd"},
		{"trims before capping", "   abcdefgh", 4, "abcd"},
		{"zero max keeps everything", "abcdefgh", 0, "abcdefgh"},
		{"short input untouched", "ok", 10, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.maxLen); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.want)
			}
		})
	}
}
