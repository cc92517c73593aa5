package utils

import "testing"

func TestOrderTrackingTokenRoundTrip(t *testing.T) {
	secret := "tracking-secret"
	token := CreateOrderTrackingToken(secret, "DRP-0042")

	if !VerifyOrderTrackingToken(secret, token, "DRP-0042") {
		t.Fatalf("token did not verify for its own order")
	}
	if VerifyOrderTrackingToken(secret, token, "DRP-0043") {
		t.Fatalf("token verified for a different order")
	}
	if VerifyOrderTrackingToken("other-secret", token, "DRP-0042") {
		t.Fatalf("token verified under a different secret")
	}
}

func TestVerifyOrderTrackingTokenMalformed(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no separator", token: "abcdef"},
		{name: "too many parts", token: "a.b.c"},
		{name: "junk signature", token: "RFJQLTAwNDI.%%%"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifyOrderTrackingToken("tracking-secret", tc.token, "DRP-0042") {
				t.Fatalf("malformed token verified")
			}
		})
	}
}
