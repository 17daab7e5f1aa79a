package resolver

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ledger-recon/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// DocumentSuggestion is the single best outstanding document for a payment.
type DocumentSuggestion struct {
	Document         domain.OutstandingDocument `json:"document"`
	Confidence       float64                    `json:"confidence"`
	ExactAmountMatch bool                       `json:"exact_amount_match"`
	PartialPayment   bool                       `json:"partial_payment"`
	AmountDifference decimal.Decimal            `json:"amount_difference"`
	DifferencePct    float64                    `json:"difference_pct"`
	Reasons          []string                   `json:"reasons,omitempty"`
}

// Combination is a set of documents whose total matches a payment.
type Combination struct {
	Documents  []domain.OutstandingDocument `json:"documents"`
	Total      decimal.Decimal              `json:"total"`
	Difference decimal.Decimal              `json:"difference"`
	Confidence float64                      `json:"confidence"`
}

// PartialPayment flags a document the payment plausibly part-settles.
type PartialPayment struct {
	Document      domain.OutstandingDocument `json:"document"`
	Fraction      float64                    `json:"fraction"`
	RoundFraction bool                       `json:"round_fraction"`
	Confidence    float64                    `json:"confidence"`
}

// SuggestDocument scores each document on amount closeness, issue recency,
// due-date proximity and status, and returns the best one. A zero date
// disables the date components. Documents the amount cannot plausibly
// settle are not suggested.
func SuggestDocument(amount decimal.Decimal, date time.Time, docs []domain.OutstandingDocument, cfg Config) *DocumentSuggestion {
	scored := make([]DocumentSuggestion, 0, len(docs))
	oldest := -1

	for _, d := range docs {
		s, ok := scoreDocument(amount, date, d, cfg)
		if !ok {
			continue
		}
		scored = append(scored, s)
		if d.IssueDate.IsZero() {
			continue
		}
		if oldest < 0 || d.IssueDate.Before(scored[oldest].Document.IssueDate) {
			oldest = len(scored) - 1
		}
	}
	if len(scored) == 0 {
		return nil
	}

	if oldest >= 0 {
		scored[oldest].Confidence += 3
		scored[oldest].Reasons = append(scored[oldest].Reasons, "oldest outstanding")
	}

	best := -1
	for i := range scored {
		scored[i].Confidence = math.Min(100, scored[i].Confidence)
		if best < 0 || scored[i].Confidence > scored[best].Confidence {
			best = i
		}
	}
	if scored[best].Confidence < cfg.MinDocumentConfidence {
		return nil
	}
	out := scored[best]
	return &out
}

func scoreDocument(amount decimal.Decimal, date time.Time, d domain.OutstandingDocument, cfg Config) (DocumentSuggestion, bool) {
	if !d.AmountDue.IsPositive() {
		return DocumentSuggestion{}, false
	}

	diff := amount.Sub(d.AmountDue).Abs()
	diffPct := diff.Div(d.AmountDue).Mul(hundred).InexactFloat64()
	tol := cfg.AmountTolerancePct

	s := DocumentSuggestion{
		Document:         d,
		AmountDifference: diff,
		DifferencePct:    diffPct,
	}

	switch {
	case diff.IsZero():
		s.Confidence = 70
		s.ExactAmountMatch = true
		s.Reasons = append(s.Reasons, "exact amount")
	case diffPct <= math.Min(2, tol):
		s.Confidence = 60
		s.Reasons = append(s.Reasons, "amount within 2%")
	case diffPct <= math.Min(5, tol):
		s.Confidence = 50
		s.Reasons = append(s.Reasons, "amount within 5%")
	case diffPct <= tol:
		s.Confidence = 40
		s.Reasons = append(s.Reasons, "amount within tolerance")
	case amount.LessThan(d.AmountDue):
		fraction := amount.Div(d.AmountDue).InexactFloat64()
		if fraction < 0.25 {
			return DocumentSuggestion{}, false
		}
		s.Confidence = 25 * fraction
		s.PartialPayment = true
		s.Reasons = append(s.Reasons, "partial payment")
	default:
		return DocumentSuggestion{}, false
	}

	if !date.IsZero() {
		if !d.IssueDate.IsZero() {
			if age := daysBetween(d.IssueDate, date); age >= 0 {
				switch {
				case age <= 30:
					s.Confidence += 5
				case age <= 60:
					s.Confidence += 3
				case age <= 90:
					s.Confidence += 1
				}
			}
		}
		if !d.DueDate.IsZero() {
			gap := daysBetween(date, d.DueDate)
			if gap < 0 {
				gap = -gap
			}
			switch {
			case gap <= 3:
				s.Confidence += 15
				s.Reasons = append(s.Reasons, "close to due date")
			case gap <= 7:
				s.Confidence += 10
			case gap <= 14:
				s.Confidence += 6
			case gap <= 30:
				s.Confidence += 3
			}
		}
	}

	switch d.Status {
	case domain.DocumentOverdue:
		s.Confidence += 10
	case domain.DocumentSent:
		s.Confidence += 7
	case domain.DocumentPartiallyPaid:
		s.Confidence += 5
	}

	return s, true
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// FindCombinations searches subsets of the documents whose summed amount due
// is within tolerance of the amount. The search is bounded by subset size,
// the number of documents considered and the number of subsets evaluated.
func FindCombinations(amount decimal.Decimal, docs []domain.OutstandingDocument, cfg Config) []Combination {
	candidates := make([]domain.OutstandingDocument, 0, len(docs))
	for _, d := range docs {
		if d.AmountDue.IsPositive() {
			candidates = append(candidates, d)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].DueDate.Equal(candidates[j].DueDate) {
			return candidates[i].DueDate.Before(candidates[j].DueDate)
		}
		return candidates[i].ID < candidates[j].ID
	})
	if cfg.CombinationMaxDocuments > 0 && len(candidates) > cfg.CombinationMaxDocuments {
		candidates = candidates[:cfg.CombinationMaxDocuments]
	}

	n := len(candidates)
	minSize := max(cfg.CombinationMinSize, 2)
	var results []Combination
	evaluations := 0

search:
	for k := minSize; k <= cfg.CombinationMaxSize && k <= n; k++ {
		idx := make([]int, k)
		for i := range idx {
			idx[i] = i
		}
		for {
			evaluations++
			if cfg.CombinationMaxEvaluations > 0 && evaluations > cfg.CombinationMaxEvaluations {
				break search
			}

			total := decimal.Zero
			for _, i := range idx {
				total = total.Add(candidates[i].AmountDue)
			}
			diff := amount.Sub(total).Abs()
			diffPct := diff.Div(total).Mul(hundred).InexactFloat64()
			if diffPct <= cfg.CombinationTolerancePct {
				conf := 90 - 2*diffPct - 3*float64(k-2)
				if conf > 0 {
					set := make([]domain.OutstandingDocument, k)
					for j, i := range idx {
						set[j] = candidates[i]
					}
					results = append(results, Combination{Documents: set, Total: total, Difference: diff, Confidence: conf})
				}
			}

			if !nextCombination(idx, n) {
				break
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return len(results[i].Documents) < len(results[j].Documents)
	})
	if cfg.MaxCombinationResults > 0 && len(results) > cfg.MaxCombinationResults {
		results = results[:cfg.MaxCombinationResults]
	}
	return results
}

// nextCombination advances idx to the next k-subset of [0, n) in
// lexicographic order. It reports false once the last subset was visited.
func nextCombination(idx []int, n int) bool {
	k := len(idx)
	i := k - 1
	for i >= 0 && idx[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	idx[i]++
	for j := i + 1; j < k; j++ {
		idx[j] = idx[j-1] + 1
	}
	return true
}

var roundFractions = []float64{0.5, 0.25, 0.75, 1.0 / 3.0, 2.0 / 3.0}

// FindPartialPayments flags documents where the amount is a plausible
// fraction of the amount due. Round fractions score higher.
func FindPartialPayments(amount decimal.Decimal, docs []domain.OutstandingDocument, cfg Config) []PartialPayment {
	var results []PartialPayment
	for _, d := range docs {
		if !d.AmountDue.IsPositive() {
			continue
		}
		fraction := amount.Div(d.AmountDue).InexactFloat64()
		if fraction < cfg.PartialMinFraction || fraction >= 1 {
			continue
		}

		p := PartialPayment{Document: d, Fraction: fraction, Confidence: 40 + 20*fraction}
		for _, r := range roundFractions {
			if math.Abs(fraction-r) <= 0.01 {
				p.RoundFraction = true
				p.Confidence += 25
				break
			}
		}
		results = append(results, p)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	if cfg.MaxPartialResults > 0 && len(results) > cfg.MaxPartialResults {
		results = results[:cfg.MaxPartialResults]
	}
	return results
}
