// Package integrity produces and verifies tamper-evident digests of job
// input and result payloads. Digests are computed over a canonical JSON form
// (keys sorted, whitespace collapsed) so transport-level formatting never
// changes a hash.
package integrity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// VerifyOptions controls hash verification.
type VerifyOptions struct {
	// AllowDeprecated additionally accepts the legacy xxhash64 scheme for
	// payloads hashed before the sha256 migration. The current scheme is
	// always tried first; the legacy path never runs unless this is set.
	AllowDeprecated bool
}

var errEmptyPayload = errors.New("integrity: empty payload")

// HashInput returns the current-scheme digest of a job input payload.
func HashInput(payload []byte) (string, error) {
	return hashCanonical(payload)
}

// HashResult returns the current-scheme digest of a job result payload.
func HashResult(payload []byte) (string, error) {
	return hashCanonical(payload)
}

// HashInputDeprecated returns the legacy digest of a payload. Kept only so
// data hashed before the scheme migration stays verifiable; never use it for
// new writes.
func HashInputDeprecated(payload []byte) (string, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(canonical), 16), nil
}

// IsInputHashVerified recomputes the digest of payload and compares it to
// expected. Returns false, never an error, on malformed payloads.
func IsInputHashVerified(payload []byte, expected string, opts VerifyOptions) bool {
	return verify(payload, expected, opts)
}

// IsResultHashVerified is the result-payload equivalent of IsInputHashVerified.
func IsResultHashVerified(payload []byte, expected string, opts VerifyOptions) bool {
	return verify(payload, expected, opts)
}

func verify(payload []byte, expected string, opts VerifyOptions) bool {
	if expected == "" {
		return false
	}
	current, err := hashCanonical(payload)
	if err != nil {
		return false
	}
	if current == expected {
		return true
	}
	if !opts.AllowDeprecated {
		return false
	}
	legacy, err := HashInputDeprecated(payload)
	if err != nil {
		return false
	}
	return legacy == expected
}

func hashCanonical(payload []byte) (string, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize decodes the payload and re-encodes it compactly. Object keys
// come out sorted (encoding/json marshals maps in key order) and numbers keep
// their source representation via json.Number.
func canonicalize(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errEmptyPayload
	}
	var value any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	// Trailing garbage after the first JSON value is malformed input.
	if dec.More() {
		return nil, errors.New("integrity: trailing data after payload")
	}
	return json.Marshal(value)
}
