package gateway

import "testing"

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"+55 (11) 99999-9999", "5511999999999"},
		{"11999999999", "5511999999999"},
		{"5511999999999", "5511999999999"},
		{"(11) 3333-4444", "551133334444"},
		{"+1 415 555 0100", "5514155550100"},
		{"+351 912 345 678", "351912345678"},
		{"99999-999", "99999999"},
		{"", ""},
		{"abc", ""},
	}

	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
