package domain

import "time"

// PatternType controls how a rule pattern is applied to a description.
type PatternType string

const (
	PatternContains   PatternType = "contains"
	PatternStartsWith PatternType = "starts_with"
	PatternEndsWith   PatternType = "ends_with"
	PatternRegex      PatternType = "regex"
)

// Valid reports whether the pattern type is known.
func (p PatternType) Valid() bool {
	switch p {
	case PatternContains, PatternStartsWith, PatternEndsWith, PatternRegex:
		return true
	}
	return false
}

// IsLiteral reports whether the pattern is matched as a plain string.
func (p PatternType) IsLiteral() bool {
	return p == PatternContains || p == PatternStartsWith || p == PatternEndsWith
}

// RuleSource records who created a rule.
type RuleSource string

const (
	RuleSourceAIAssisted  RuleSource = "ai-assisted"
	RuleSourceUserCreated RuleSource = "user-created"
)

// DefaultRulePriority is used for configured rules without an explicit priority.
// Lower values take precedence.
const DefaultRulePriority = 100

// RuleMetadata carries descriptive and usage data for a rule.
type RuleMetadata struct {
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Vendor      string     `json:"vendor,omitempty"`
	MatchCount  int        `json:"match_count"`
	LastMatched *time.Time `json:"last_matched,omitempty"`
	Source      RuleSource `json:"source"`
}

// MappingRule maps a description pattern onto an account.
type MappingRule struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Pattern     string       `json:"pattern"`
	PatternType PatternType  `json:"pattern_type"`
	Account     AccountRef   `json:"account"`
	Priority    int          `json:"priority"`
	IsActive    bool         `json:"is_active"`
	Metadata    RuleMetadata `json:"metadata"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Validate checks the fields a rule needs before it is persisted.
func (r MappingRule) Validate() error {
	if r.TenantID == "" {
		return NewValidationError("rule tenant is required")
	}
	if r.Pattern == "" {
		return NewValidationError("rule pattern is required")
	}
	if !r.PatternType.Valid() {
		return NewValidationError("invalid pattern type: " + string(r.PatternType))
	}
	if r.Account.IsZero() {
		return NewValidationError("rule account is required")
	}
	return nil
}
