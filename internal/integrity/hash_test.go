package integrity

import "testing"

func TestHashInputIgnoresFormatting(t *testing.T) {
	a := []byte(`{"b":2,"a":1}`)
	b := []byte("{\n  \"a\": 1,\n  \"b\": 2\n}")

	ha, err := HashInput(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := HashInput(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Fatalf("semantically identical payloads hashed differently: %s vs %s", ha, hb)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	payload := []byte(`{"task":"summarize","tokens":1024,"nested":{"x":[1,2,3]}}`)
	digest, err := HashInput(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !IsInputHashVerified(payload, digest, VerifyOptions{}) {
		t.Fatal("digest of payload did not verify against itself")
	}
}

func TestVerifyDetectsMutation(t *testing.T) {
	payload := []byte(`{"task":"summarize","tokens":1024}`)
	digest, err := HashInput(payload)
	if err != nil {
		t.Fatal(err)
	}
	mutated := []byte(`{"task":"summarize","tokens":1025}`)
	if IsInputHashVerified(mutated, digest, VerifyOptions{}) {
		t.Fatal("mutated payload verified against original digest")
	}
}

func TestVerifyMalformedPayloadReturnsFalse(t *testing.T) {
	for _, payload := range [][]byte{nil, {}, []byte(`{"unterminated`), []byte(`{"a":1} trailing`)} {
		if IsInputHashVerified(payload, "deadbeef", VerifyOptions{}) {
			t.Fatalf("malformed payload %q verified", payload)
		}
	}
}

func TestDeprecatedSchemeIsOptIn(t *testing.T) {
	payload := []byte(`{"task":"translate"}`)
	legacy, err := HashInputDeprecated(payload)
	if err != nil {
		t.Fatal(err)
	}

	if IsInputHashVerified(payload, legacy, VerifyOptions{}) {
		t.Fatal("legacy digest accepted without AllowDeprecated")
	}
	if !IsInputHashVerified(payload, legacy, VerifyOptions{AllowDeprecated: true}) {
		t.Fatal("legacy digest rejected with AllowDeprecated set")
	}
}

func TestCurrentSchemeWinsOverDeprecated(t *testing.T) {
	payload := []byte(`{"task":"translate"}`)
	current, err := HashInput(payload)
	if err != nil {
		t.Fatal(err)
	}
	// The current scheme must still verify when the legacy fallback is on.
	if !IsInputHashVerified(payload, current, VerifyOptions{AllowDeprecated: true}) {
		t.Fatal("current digest rejected when AllowDeprecated is set")
	}
}

func TestResultHashMatchesSameScheme(t *testing.T) {
	payload := []byte(`{"output":"done"}`)
	digest, err := HashResult(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !IsResultHashVerified(payload, digest, VerifyOptions{}) {
		t.Fatal("result digest did not verify")
	}
}
