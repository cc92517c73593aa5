package config

import "testing"

func TestGetEnvInt32(t *testing.T) {
	const key = "TEST_QTY_LIMIT"

	cases := []struct {
		name  string
		value string
		want  int32
	}{
		{name: "unset falls back", value: "", want: 10},
		{name: "valid value", value: "25", want: 25},
		{name: "zero falls back", value: "0", want: 10},
		{name: "negative falls back", value: "-3", want: 10},
		{name: "junk falls back", value: "ten", want: 10},
		{name: "above int32 range falls back", value: "2147483648", want: 10},
		{name: "wraparound value falls back", value: "4294967298", want: 10},
		{name: "max int32 accepted", value: "2147483647", want: 2147483647},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(key, tc.value)
			if got := getEnvInt32(key, 10); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
