package domain

import "time"

// SessionStatus tracks an import session's staging lifecycle.
type SessionStatus string

const (
	SessionPending  SessionStatus = "pending"
	SessionPromoted SessionStatus = "promoted"
)

// ImportSession groups staged entries that are promoted together.
type ImportSession struct {
	ID              string        `json:"id"`
	TenantID        string        `json:"tenant_id"`
	Status          SessionStatus `json:"status"`
	StagedEntries   int           `json:"staged_entries"`
	StagedLines     int           `json:"staged_lines"`
	PromotedEntries int           `json:"promoted_entries"`
	PromotedLines   int           `json:"promoted_lines"`
	CreatedAt       time.Time     `json:"created_at"`
	PromotedAt      *time.Time    `json:"promoted_at,omitempty"`
}

// PromotionResult reports what a promotion copied into production.
type PromotionResult struct {
	SessionID string   `json:"session_id"`
	Entries   int      `json:"entries"`
	Lines     int      `json:"lines"`
	EntryIDs  []string `json:"entry_ids"`
}
