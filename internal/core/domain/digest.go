package domain

import (
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

// DigestAlgorithm is the content hash algorithm used throughout the system.
const DigestAlgorithm = "sha256"

var digestRe = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// Digest is a content checksum in canonical "algorithm:hex" form,
// e.g. "sha256:9f86d08...".
type Digest string

// ParseDigest validates a digest string and returns it as a Digest.
func ParseDigest(s string) (Digest, error) {
	if !digestRe.MatchString(s) {
		return "", zerr.With(zerr.Wrap(ErrInvalidDigest, "malformed digest"), "input", s)
	}
	return Digest(s), nil
}

// Algorithm returns the algorithm tag of the digest.
func (d Digest) Algorithm() string {
	algo, _, _ := strings.Cut(string(d), ":")
	return algo
}

// Hex returns the hex-encoded hash without the algorithm tag.
func (d Digest) Hex() string {
	_, hex, _ := strings.Cut(string(d), ":")
	return hex
}

// String returns the canonical "algorithm:hex" form.
func (d Digest) String() string { return string(d) }
