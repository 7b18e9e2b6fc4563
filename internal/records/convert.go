package records

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
)

// Normalize builds the domain record for key from the contract's raw shape.
// Missing or unparsable numbers become 0.
func Normalize(key string, raw *ledger.RawRecord, now time.Time) genetic.Record {
	r := genetic.Record{
		ID:  genetic.DeriveID(key, now),
		Key: key,
	}
	if raw == nil {
		return r
	}

	r.Name = raw.Name
	r.Creator = raw.Creator
	r.CreatedAt = toInt64(raw.Timestamp)
	r.PublicScore = toInt64(raw.PublicValue1)
	r.SecondaryPublicValue = toInt64(raw.PublicValue2)
	r.IsVerified = toBool(raw.IsVerified)
	if r.IsVerified {
		r.VerifiedPlainValue = toInt64(raw.DecryptedValue)
	}
	return r
}

// toInt64 accepts the numeric shapes ledger transports produce
func toInt64(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return fromUint64(uint64(n))
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return fromUint64(n)
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return fromFloat(f)
		}
		return 0
	case *big.Int:
		if n != nil && n.IsInt64() {
			return n.Int64()
		}
		return 0
	case string:
		return parseNumericString(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func fromUint64(u uint64) int64 {
	if u > math.MaxInt64 {
		return 0
	}
	return int64(u)
}

func fromFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// parseNumericString handles decimal, 0x-hex and float strings
func parseNumericString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		u, err := strconv.ParseUint(rest, 16, 64)
		if err != nil {
			return 0
		}
		return fromUint64(u)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromFloat(f)
	}
	return 0
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1":
			return true
		}
		return false
	case nil:
		return false
	default:
		return toInt64(v) != 0
	}
}
