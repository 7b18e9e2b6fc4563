package genetic

import "fmt"

// Provenance says where a record value came from
type Provenance int

const (
	Unknown Provenance = iota
	LocalEstimate
	Verified
)

// String returns the provenance label shown to users
func (p Provenance) String() string {
	switch p {
	case Verified:
		return "on-chain-verified"
	case LocalEstimate:
		return "locally-decrypted"
	default:
		return "encrypted"
	}
}

// MarshalText encodes the label, so JSON carries "on-chain-verified" etc.
func (p Provenance) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a provenance label
func (p *Provenance) UnmarshalText(text []byte) error {
	switch string(text) {
	case "on-chain-verified":
		*p = Verified
	case "locally-decrypted":
		*p = LocalEstimate
	case "encrypted", "":
		*p = Unknown
	default:
		return fmt.Errorf("unknown provenance %q", text)
	}
	return nil
}

// RecordValue is the best known plaintext of a record's sensitive field.
// The zero value is Unknown.
type RecordValue struct {
	provenance Provenance
	value      int64
}

// UnknownValue returns the value of a record nobody has decrypted
func UnknownValue() RecordValue {
	return RecordValue{}
}

// EstimateOf wraps a locally decrypted value
func EstimateOf(v int64) RecordValue {
	return RecordValue{provenance: LocalEstimate, value: v}
}

// VerifiedOf wraps a ledger-verified value
func VerifiedOf(v int64) RecordValue {
	return RecordValue{provenance: Verified, value: v}
}

// Provenance returns where the value came from
func (v RecordValue) Provenance() Provenance {
	return v.provenance
}

// Value returns the plaintext and whether one is known
func (v RecordValue) Value() (int64, bool) {
	return v.value, v.provenance != Unknown
}

// IsVerified reports whether the value is ledger-authoritative
func (v RecordValue) IsVerified() bool {
	return v.provenance == Verified
}

// Prefer returns whichever of v and other has stronger provenance; v wins ties
func (v RecordValue) Prefer(other RecordValue) RecordValue {
	if other.provenance > v.provenance {
		return other
	}
	return v
}

func (v RecordValue) String() string {
	if v.provenance == Unknown {
		return v.provenance.String()
	}
	return fmt.Sprintf("%s(%d)", v.provenance, v.value)
}

// Best combines a record with a local estimate. A verified record always
// yields its ledger value regardless of the estimate.
func Best(r Record, estimate RecordValue) RecordValue {
	if r.IsVerified {
		return VerifiedOf(r.VerifiedPlainValue)
	}
	// A Verified estimate means the snapshot predates verification
	return estimate
}
