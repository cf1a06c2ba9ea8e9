// Package checksum computes the fingerprints stored next to every applied change set.
//
// A checksum is rendered as "<version>:<md5 hex>". The version prefix lets the
// tracking table hold sums computed by older algorithms; values without a prefix
// are treated as version 1.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CurrentVersion is the version of the checksum algorithm used by Compute.
const CurrentVersion = 7

// CheckSum is a versioned fingerprint of a change or change set.
type CheckSum struct {
	version int
	value   string
}

// Compute returns the current-version checksum of the given text.
func Compute(value string) CheckSum {
	sum := md5.Sum([]byte(value))
	return CheckSum{version: CurrentVersion, value: hex.EncodeToString(sum[:])}
}

// ComputeReader returns the current-version checksum of everything read from r.
func ComputeReader(r io.Reader) (CheckSum, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return CheckSum{}, fmt.Errorf("failed to read checksum input: %w", err)
	}
	return CheckSum{version: CurrentVersion, value: hex.EncodeToString(h.Sum(nil))}, nil
}

// Parse reads a checksum in its stored "<version>:<value>" form.
func Parse(s string) (CheckSum, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CheckSum{}, fmt.Errorf("empty checksum")
	}

	prefix, value, found := strings.Cut(s, ":")
	if !found {
		return CheckSum{version: 1, value: s}, nil
	}

	version, err := strconv.Atoi(prefix)
	if err != nil {
		return CheckSum{}, fmt.Errorf("invalid checksum version %q: %w", prefix, err)
	}
	if value == "" {
		return CheckSum{}, fmt.Errorf("invalid checksum %q: missing value", s)
	}
	return CheckSum{version: version, value: value}, nil
}

// Version returns the algorithm version.
func (c CheckSum) Version() int {
	return c.version
}

// Value returns the hash without the version prefix.
func (c CheckSum) Value() string {
	return c.value
}

// IsZero reports whether the checksum was never computed.
func (c CheckSum) IsZero() bool {
	return c.value == ""
}

// Equal reports whether both checksums have the same version and value.
func (c CheckSum) Equal(other CheckSum) bool {
	return c.version == other.version && c.value == other.value
}

func (c CheckSum) String() string {
	if c.IsZero() {
		return ""
	}
	return strconv.Itoa(c.version) + ":" + c.value
}
