// Package resolver matches free-text bank descriptions against known
// customers and suppliers and suggests the outstanding invoices or bills a
// payment most likely settles.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/fuzzy"
	"ledger-recon/pkg/logger"
)

// Config holds the tunables for matching and document suggestion.
type Config struct {
	MaxEditDistance           int     `yaml:"max_edit_distance"`
	MinSimilarity             float64 `yaml:"min_similarity"`
	AmountTolerancePct        float64 `yaml:"amount_tolerance_pct"`
	MinDocumentConfidence     float64 `yaml:"min_document_confidence"`
	CombinationMinSize        int     `yaml:"combination_min_size"`
	CombinationMaxSize        int     `yaml:"combination_max_size"`
	CombinationMaxDocuments   int     `yaml:"combination_max_documents"`
	CombinationMaxEvaluations int     `yaml:"combination_max_evaluations"`
	CombinationTolerancePct   float64 `yaml:"combination_tolerance_pct"`
	MaxCombinationResults     int     `yaml:"max_combination_results"`
	PartialMinFraction        float64 `yaml:"partial_min_fraction"`
	MaxPartialResults         int     `yaml:"max_partial_results"`
	KeywordBoost              float64 `yaml:"keyword_boost"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MaxEditDistance:           3,
		MinSimilarity:             0.8,
		AmountTolerancePct:        10,
		MinDocumentConfidence:     40,
		CombinationMinSize:        2,
		CombinationMaxSize:        5,
		CombinationMaxDocuments:   15,
		CombinationMaxEvaluations: 50000,
		CombinationTolerancePct:   2,
		MaxCombinationResults:     3,
		PartialMinFraction:        0.10,
		MaxPartialResults:         3,
		KeywordBoost:              5,
	}
}

// EntitySource is the read side of the entity ledger.
type EntitySource interface {
	ListActiveEntities(ctx context.Context, tenantID string, kind domain.EntityKind) ([]domain.Entity, error)
	ListOutstandingDocuments(ctx context.Context, tenantID, entityID string) ([]domain.OutstandingDocument, error)
}

// Query describes the transaction being resolved. Amount and Date are optional.
type Query struct {
	Description string
	Kind        domain.EntityKind
	Amount      *decimal.Decimal
	Date        *time.Time
}

// Match is the best entity for a description together with any document
// suggestions for the supplied amount.
type Match struct {
	EntityMatch
	Document        *DocumentSuggestion `json:"document,omitempty"`
	Combinations    []Combination       `json:"combinations,omitempty"`
	PartialPayments []PartialPayment    `json:"partial_payments,omitempty"`
}

// Resolver finds entity matches using an EntitySource.
type Resolver struct {
	source EntitySource
	cfg    Config
}

func New(source EntitySource, cfg Config) *Resolver {
	return &Resolver{source: source, cfg: cfg}
}

// Config returns the resolver configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// FindMatch returns the best entity match for the query, or nil when nothing
// clears the thresholds. A missing match is not an error.
func (r *Resolver) FindMatch(ctx context.Context, tenantID string, q Query) (*Match, error) {
	if q.Kind != domain.Debtor && q.Kind != domain.Creditor {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid entity kind %q", q.Kind))
	}

	entities, err := r.source.ListActiveEntities(ctx, tenantID, q.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entities: %w", q.Kind, err)
	}
	if len(entities) == 0 {
		return nil, nil
	}

	em := MatchEntity(q.Description, entities, r.cfg)
	if em == nil {
		return nil, nil
	}

	match := &Match{EntityMatch: *em}
	if q.Amount == nil || !q.Amount.IsPositive() {
		return match, nil
	}

	docs, err := r.source.ListOutstandingDocuments(ctx, tenantID, em.Entity.ID)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("entity_id", em.Entity.ID).Warn("Failed to load outstanding documents, skipping suggestions")
		return match, nil
	}
	docs = outstanding(docs)
	if len(docs) == 0 {
		return match, nil
	}

	var date time.Time
	if q.Date != nil {
		date = *q.Date
	}
	match.Document = SuggestDocument(*q.Amount, date, docs, r.cfg)
	match.Combinations = FindCombinations(*q.Amount, docs, r.cfg)
	match.PartialPayments = FindPartialPayments(*q.Amount, docs, r.cfg)
	return match, nil
}

func outstanding(docs []domain.OutstandingDocument) []domain.OutstandingDocument {
	out := make([]domain.OutstandingDocument, 0, len(docs))
	for _, d := range docs {
		if d.Status == domain.DocumentPaid || d.Status == domain.DocumentDraft {
			continue
		}
		if !d.AmountDue.IsPositive() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// EntityMatch is the single best entity for a description.
type EntityMatch struct {
	Entity         domain.Entity `json:"entity"`
	Field          string        `json:"field"`
	MatchedText    string        `json:"matched_text"`
	Distance       int           `json:"distance"`
	Similarity     float64       `json:"similarity"`
	Confidence     float64       `json:"confidence"`
	KeywordBoosted bool          `json:"keyword_boosted"`
}

var legalSuffixes = map[string]struct{}{
	"pty": {}, "ltd": {}, "limited": {}, "inc": {}, "llc": {}, "cc": {}, "co": {},
	"company": {}, "corp": {}, "corporation": {}, "plc": {}, "gmbh": {}, "bv": {}, "sa": {},
}

var genericEmailParts = map[string]struct{}{
	"gmail": {}, "yahoo": {}, "outlook": {}, "hotmail": {}, "icloud": {}, "mail": {},
	"info": {}, "admin": {}, "accounts": {}, "billing": {}, "finance": {}, "sales": {}, "noreply": {},
}

// MatchEntity scores every entity's name and email against the key terms of
// the description. A field counts when its edit distance is within the
// configured bound and its similarity ratio clears the minimum, or when the
// name's words overlap the description enough. The first highest-scoring
// entity wins.
func MatchEntity(description string, entities []domain.Entity, cfg Config) *EntityMatch {
	terms := fuzzy.ExtractKeyTerms(description)
	if len(terms) == 0 {
		return nil
	}
	descTokens := fuzzy.Tokens(description)

	var best *EntityMatch
	for _, e := range entities {
		if !e.IsActive {
			continue
		}
		candidate := scoreEntity(terms, e, cfg)
		if candidate == nil {
			continue
		}
		if boost := keywordBoost(e.Type, descTokens, cfg.KeywordBoost); boost > 0 {
			candidate.Confidence = min(100, candidate.Confidence+boost)
			candidate.KeywordBoosted = true
		}
		if best == nil || candidate.Confidence > best.Confidence {
			best = candidate
		}
	}
	return best
}

func scoreEntity(terms []string, e domain.Entity, cfg Config) *EntityMatch {
	var best *EntityMatch
	keep := func(m *EntityMatch) {
		if m != nil && (best == nil || m.Confidence > best.Confidence) {
			best = m
		}
	}
	try := func(field, value string) {
		if value == "" {
			return
		}
		ws := fuzzy.BestWindow(terms, value)
		if ws.Distance < 0 || ws.Distance > cfg.MaxEditDistance || ws.Ratio < cfg.MinSimilarity {
			return
		}
		keep(&EntityMatch{
			Entity:      e,
			Field:       field,
			MatchedText: ws.Window,
			Distance:    ws.Distance,
			Similarity:  ws.Ratio,
			Confidence:  ws.Ratio * 100,
		})
	}

	name := cleanName(e.Name)
	try("name", name)
	keep(overlapMatch(terms, strings.Fields(name), e, cfg))
	for _, part := range emailParts(e.Email) {
		try("email", part)
	}
	return best
}

// overlapMatch accepts a name whose words appear verbatim in the description
// when the two differ in length, as with "City of Cape Town Municipality"
// against "CITY OF CAPE TOWN". Either side's share of shared words must clear
// the minimum similarity, and two words must be shared unless the name has
// only one. Confidence is the mean of both shares.
func overlapMatch(terms, nameTokens []string, e domain.Entity, cfg Config) *EntityMatch {
	nameTokens, terms = distinct(nameTokens), distinct(terms)
	if len(nameTokens) == 0 || len(terms) == 0 {
		return nil
	}

	var shared []string
	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
	}
	for _, t := range nameTokens {
		if _, ok := termSet[t]; ok {
			shared = append(shared, t)
		}
	}
	if len(shared) < min(2, len(nameTokens)) {
		return nil
	}

	nameShare := fuzzy.TokenOverlap(terms, nameTokens)
	termShare := fuzzy.TokenOverlap(nameTokens, terms)
	if max(nameShare, termShare) < cfg.MinSimilarity {
		return nil
	}
	score := (nameShare + termShare) / 2
	return &EntityMatch{
		Entity:      e,
		Field:       "name",
		MatchedText: strings.Join(shared, " "),
		Similarity:  score,
		Confidence:  score * 100,
	}
}

func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// cleanName drops legal suffixes and the stop words that key-term extraction
// drops from descriptions.
func cleanName(name string) string {
	tokens := fuzzy.Tokens(name)
	kept := tokens[:0]
	for _, t := range tokens {
		if _, ok := legalSuffixes[t]; ok || fuzzy.IsBoilerplate(t) {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, " ")
}

func emailParts(email string) []string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return nil
	}
	local := fuzzy.Normalize(strings.ReplaceAll(email[:at], ".", ""))
	domainLabel := strings.ToLower(strings.SplitN(email[at+1:], ".", 2)[0])

	var parts []string
	for _, p := range []string{local, domainLabel} {
		if len(p) < 3 {
			continue
		}
		if _, generic := genericEmailParts[p]; generic {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}
