package analysis

import (
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
)

const recentWindow = 7 * 24 * time.Hour

// Summary is the dashboard panel over a record set
type Summary struct {
	Total           int     `json:"total"`
	Verified        int     `json:"verified"`
	AverageResearch float64 `json:"average_research"`
	RecentThisWeek  int     `json:"recent_this_week"`
}

// Summarize aggregates records as of now. AverageResearch is 0 for no records.
func Summarize(records []genetic.Record, now time.Time) Summary {
	s := Summary{Total: len(records)}
	if len(records) == 0 {
		return s
	}

	cutoff := now.Add(-recentWindow).Unix()
	var researchSum int64
	for _, r := range records {
		if r.IsVerified {
			s.Verified++
		}
		if r.CreatedAt > cutoff {
			s.RecentThisWeek++
		}
		researchSum += r.PublicScore
	}
	s.AverageResearch = float64(researchSum) / float64(len(records))
	return s
}
