package records

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
)

// Set is an immutable snapshot of the ledger's records in enumeration order
type Set struct {
	records  []genetic.Record
	index    map[string]int
	seq      uint64
	loadedAt time.Time
}

// emptySet is published before the first refresh
var emptySet = newSet(nil, 0, time.Time{})

func newSet(records []genetic.Record, seq uint64, loadedAt time.Time) *Set {
	index := make(map[string]int, len(records))
	for i, r := range records {
		index[r.Key] = i
	}
	return &Set{records: records, index: index, seq: seq, loadedAt: loadedAt}
}

// Records returns a copy of the records
func (s *Set) Records() []genetic.Record {
	return slices.Clone(s.records)
}

// Len returns the number of records
func (s *Set) Len() int {
	return len(s.records)
}

// Get looks a record up by key
func (s *Set) Get(key string) (genetic.Record, bool) {
	i, ok := s.index[key]
	if !ok {
		return genetic.Record{}, false
	}
	return s.records[i], true
}

// Seq is the refresh sequence number that produced the set; 0 before the first refresh
func (s *Set) Seq() uint64 {
	return s.seq
}

// LoadedAt is when the set was built
func (s *Set) LoadedAt() time.Time {
	return s.loadedAt
}

// Filter returns records whose name contains search, compared with Unicode
// case folding, optionally only verified ones. An empty search matches all.
func (s *Set) Filter(search string, verifiedOnly bool) []genetic.Record {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(search))

	out := make([]genetic.Record, 0, len(s.records))
	for _, r := range s.records {
		if verifiedOnly && !r.IsVerified {
			continue
		}
		if needle != "" && !strings.Contains(folder.String(r.Name), needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}
