package utils

import "testing"

func TestQRTokenRoundTrip(t *testing.T) {
	const secret = "test-secret"
	tok := QRToken(secret, 42)
	if tok == "" {
		t.Fatal("empty token")
	}
	if !VerifyQRToken(secret, 42, tok) {
		t.Fatal("token did not verify against its own id")
	}
	if VerifyQRToken(secret, 43, tok) {
		t.Fatal("token verified against the wrong reservation id")
	}
	if VerifyQRToken("other-secret", 42, tok) {
		t.Fatal("token verified under a different secret")
	}
}

func TestQRTokenDeterministic(t *testing.T) {
	a := QRToken("s", 7)
	b := QRToken("s", 7)
	if a != b {
		t.Fatalf("tokens for the same id differ: %q vs %q", a, b)
	}
}

func TestQRPayloadDecode(t *testing.T) {
	const secret = "s3cr3t"
	tok := QRToken(secret, 99)
	payload := QRPayload(99, tok)

	id, gotTok, ok := DecodeQRPayload(payload)
	if !ok {
		t.Fatal("payload failed to decode")
	}
	if id != 99 || gotTok != tok {
		t.Fatalf("decoded (%d, %q), want (99, %q)", id, gotTok, tok)
	}
}

func TestDecodeQRPayloadRejectsGarbage(t *testing.T) {
	cases := []string{"", "not-base64!!", "bm90IGpzb24="}
	for _, c := range cases {
		if _, _, ok := DecodeQRPayload(c); ok {
			t.Fatalf("decode accepted %q", c)
		}
	}
}
