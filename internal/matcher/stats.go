package matcher

import (
	"time"

	"ledger-recon/internal/domain"
)

// BatchStats aggregates a classified batch. Every transaction is counted in
// exactly one decision bucket.
type BatchStats struct {
	Total                   int            `json:"total"`
	AutoMapped              int            `json:"auto_mapped"`
	NeedsReview             int            `json:"needs_review"`
	NeedsEscalation         int            `json:"needs_escalation"`
	Failed                  int            `json:"failed"`
	ByTier                  map[string]int `json:"by_tier"`
	Elapsed                 time.Duration  `json:"elapsed_ns"`
	EstimatedEscalationCost float64        `json:"estimated_escalation_cost"`
}

// Tally counts results. A result carrying an error counts as failed. It
// only sums, so the order of results does not change the outcome.
func Tally(results []Classification, elapsed time.Duration, costPerTx float64) BatchStats {
	stats := BatchStats{Total: len(results), ByTier: make(map[string]int), Elapsed: elapsed}
	for _, r := range results {
		if r.Error != "" {
			stats.Failed++
		}
		switch r.Decision {
		case domain.DecisionAutoMapped:
			stats.AutoMapped++
		case domain.DecisionNeedsReview:
			stats.NeedsReview++
		default:
			stats.NeedsEscalation++
		}
		tier := string(r.Tier())
		if tier == "" {
			tier = "none"
		}
		stats.ByTier[tier]++
	}
	stats.EstimatedEscalationCost = float64(stats.NeedsEscalation) * costPerTx
	return stats
}
