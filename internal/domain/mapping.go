package domain

// MappingSource records which strategy produced a mapping.
type MappingSource string

const (
	SourceExactMatch    MappingSource = "exact-match"
	SourcePatternMatch  MappingSource = "pattern-match"
	SourceFuzzyMatch    MappingSource = "fuzzy-match"
	SourceCategoryMatch MappingSource = "category-match"
	SourceAISuggested   MappingSource = "ai-suggested"
	SourceManual        MappingSource = "manual"
)

// TransactionMapping is the transient result of classifying a transaction.
type TransactionMapping struct {
	Transaction   BankTransaction `json:"transaction"`
	DebitAccount  AccountRef      `json:"debit_account"`
	CreditAccount AccountRef      `json:"credit_account"`
	Confidence    int             `json:"confidence"`
	Source        MappingSource   `json:"source"`
	RuleID        string          `json:"rule_id,omitempty"`
	Reasoning     []string        `json:"reasoning,omitempty"`
}

// Decision is the routing outcome for a classified transaction.
type Decision string

const (
	DecisionAutoMapped      Decision = "auto-mapped"
	DecisionNeedsReview     Decision = "needs-review"
	DecisionNeedsEscalation Decision = "needs-escalation"
)
