// Package genetic defines the normalized genetic record and the provenance
// of its sensitive value.
package genetic

import (
	"strconv"
	"strings"
	"time"
)

// KeyPrefix starts every record key minted by this module
const KeyPrefix = "genenft-"

// DataType tags records created by this module on the ledger
const DataType = "Genetic NFT Data"

// Record is the normalized view of one ledger record. Key is the identity;
// ID is derived for display only.
type Record struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	Key                  string `json:"key"`
	CreatedAt            int64  `json:"created_at"` // Unix seconds, set by the ledger
	Creator              string `json:"creator"`
	PublicScore          int64  `json:"public_score"`
	SecondaryPublicValue int64  `json:"secondary_public_value"`
	IsVerified           bool   `json:"is_verified"`
	VerifiedPlainValue   int64  `json:"verified_plain_value,omitempty"`
}

// CreatedTime returns CreatedAt as a time.Time
func (r Record) CreatedTime() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// DeriveID reproduces the display id: the leading digits after the first
// "genenft-" in key, or now in Unix milliseconds when that yields nothing or 0.
func DeriveID(key string, now time.Time) int64 {
	rest := strings.Replace(key, KeyPrefix, "", 1)
	if id := leadingInt(rest); id != 0 {
		return id
	}
	return now.UnixMilli()
}

// leadingInt parses an optional sign and the digits that follow it,
// skipping leading whitespace. It returns 0 when there are no digits.
func leadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// SanitizeDigits keeps only the ASCII digits of input
func SanitizeDigits(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for i := 0; i < len(input); i++ {
		if c := input[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
