// Package memory provides an in-process Store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/journal"
	"ledger-recon/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type sourceKey struct {
	tenantID string
	source   domain.JournalSource
	sourceID string
}

// Store keeps every repository in maps behind one lock. Multi-step writes
// run in withTx, which snapshots the state and restores it on error.
type Store struct {
	mu        sync.RWMutex
	rules     map[string]domain.MappingRule
	accounts  map[string]domain.Account
	entities  map[string]domain.Entity
	documents map[string]domain.OutstandingDocument
	docTenant map[string]string
	entries   map[string]domain.JournalEntry
	bySource  map[sourceKey]string
	sessions  map[string]domain.ImportSession
	staged    map[string][]domain.JournalEntry
}

func New() *Store {
	return &Store{
		rules:     make(map[string]domain.MappingRule),
		accounts:  make(map[string]domain.Account),
		entities:  make(map[string]domain.Entity),
		documents: make(map[string]domain.OutstandingDocument),
		docTenant: make(map[string]string),
		entries:   make(map[string]domain.JournalEntry),
		bySource:  make(map[sourceKey]string),
		sessions:  make(map[string]domain.ImportSession),
		staged:    make(map[string][]domain.JournalEntry),
	}
}

func (m *Store) Close() error { return nil }

// withTx must be called with the write lock held.
func (m *Store) withTx(fn func() error) error {
	snap := m.snapshot()
	if err := fn(); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	entities map[string]domain.Entity
	entries  map[string]domain.JournalEntry
	bySource map[sourceKey]string
	sessions map[string]domain.ImportSession
	staged   map[string][]domain.JournalEntry
}

func (m *Store) snapshot() snapshot {
	return snapshot{
		entities: cloneMap(m.entities),
		entries:  cloneMap(m.entries),
		bySource: cloneMap(m.bySource),
		sessions: cloneMap(m.sessions),
		staged:   cloneMap(m.staged),
	}
}

func (m *Store) restore(s snapshot) {
	m.entities = s.entities
	m.entries = s.entries
	m.bySource = s.bySource
	m.sessions = s.sessions
	m.staged = s.staged
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Rules

func (m *Store) SaveRule(_ context.Context, rule *domain.MappingRule) (string, error) {
	if err := rule.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for id, existing := range m.rules {
		if existing.TenantID == rule.TenantID && existing.Pattern == rule.Pattern && existing.PatternType == rule.PatternType {
			rule.ID = id
			rule.CreatedAt = existing.CreatedAt
			rule.Metadata.MatchCount = existing.Metadata.MatchCount
			rule.Metadata.LastMatched = existing.Metadata.LastMatched
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	m.rules[rule.ID] = *rule
	return rule.ID, nil
}

func (m *Store) GetRule(_ context.Context, tenantID, ruleID string) (*domain.MappingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[ruleID]
	if !ok || r.TenantID != tenantID {
		return nil, domain.NewNotFoundError("mapping rule not found: " + ruleID)
	}
	return &r, nil
}

func (m *Store) ListActiveRules(_ context.Context, tenantID string) ([]domain.MappingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rules []domain.MappingRule
	for _, r := range m.rules {
		if r.TenantID == tenantID && r.IsActive {
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (m *Store) IncrementMatchCount(_ context.Context, tenantID, ruleID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[ruleID]
	if !ok || r.TenantID != tenantID {
		return domain.NewNotFoundError("mapping rule not found: " + ruleID)
	}
	r.Metadata.MatchCount++
	at = at.UTC()
	r.Metadata.LastMatched = &at
	m.rules[ruleID] = r
	return nil
}

func (m *Store) DeactivateRule(_ context.Context, tenantID, ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[ruleID]
	if !ok || r.TenantID != tenantID {
		return domain.NewNotFoundError("mapping rule not found: " + ruleID)
	}
	r.IsActive = false
	r.UpdatedAt = time.Now().UTC()
	m.rules[ruleID] = r
	return nil
}

// Accounts

func (m *Store) GetAccount(_ context.Context, tenantID, accountID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return nil, domain.NewNotFoundError("account not found: " + accountID)
	}
	return &a, nil
}

func (m *Store) ListAccounts(_ context.Context, tenantID string) ([]domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []domain.Account
	for _, a := range m.accounts {
		if a.TenantID == tenantID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (m *Store) CreateAccount(_ context.Context, tenantID string, spec domain.NewAccountSpec) (*domain.Account, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	a := domain.Account{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Code:       spec.Code,
		Name:       spec.Name,
		Type:       spec.Type,
		ParentCode: spec.ParentCode,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.SaveAccount(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAccount seeds an account, keeping its id.
func (m *Store) SaveAccount(a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.TenantID == a.TenantID && existing.Code == a.Code {
			return domain.NewAlreadyExistsError("account code already exists: " + a.Code)
		}
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	m.accounts[a.ID] = *a
	return nil
}

// Entities

func (m *Store) GetEntity(_ context.Context, tenantID, entityID string) (*domain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entities[entityID]
	if !ok || e.TenantID != tenantID {
		return nil, domain.NewNotFoundError("entity not found: " + entityID)
	}
	return &e, nil
}

func (m *Store) ListActiveEntities(_ context.Context, tenantID string, kind domain.EntityKind) ([]domain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entities []domain.Entity
	for _, e := range m.entities {
		if e.TenantID == tenantID && e.Kind == kind && e.IsActive {
			entities = append(entities, e)
		}
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Name != entities[j].Name {
			return entities[i].Name < entities[j].Name
		}
		return entities[i].ID < entities[j].ID
	})
	return entities, nil
}

func (m *Store) ListOutstandingDocuments(_ context.Context, tenantID, entityID string) ([]domain.OutstandingDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []domain.OutstandingDocument
	for id, d := range m.documents {
		if m.docTenant[id] != tenantID || d.EntityID != entityID {
			continue
		}
		switch d.Status {
		case domain.DocumentSent, domain.DocumentPartiallyPaid, domain.DocumentOverdue:
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].DueDate.Equal(docs[j].DueDate) {
			return docs[i].DueDate.Before(docs[j].DueDate)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (m *Store) SaveEntity(_ context.Context, entity *domain.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	if existing, ok := m.entities[entity.ID]; ok {
		entity.CurrentBalance = existing.CurrentBalance
	}
	m.entities[entity.ID] = *entity
	return nil
}

func (m *Store) SaveDocument(_ context.Context, tenantID string, doc *domain.OutstandingDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	m.documents[doc.ID] = *doc
	m.docTenant[doc.ID] = tenantID
	return nil
}

// Journal

func (m *Store) PostEntry(_ context.Context, entry *domain.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withTx(func() error { return m.postLocked(entry) })
}

func (m *Store) postLocked(entry *domain.JournalEntry) error {
	if err := journal.Validate(entry); err != nil {
		return err
	}
	key := sourceKey{tenantID: entry.TenantID, source: entry.Source, sourceID: entry.SourceID}
	if existing, ok := m.bySource[key]; ok {
		return fmt.Errorf("%w: %s/%s already posted as %s", domain.ErrDuplicatePosting, entry.Source, entry.SourceID, existing)
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Status = domain.JournalPosted

	for _, adj := range entry.Adjustments {
		e, ok := m.entities[adj.EntityID]
		if !ok || e.TenantID != entry.TenantID {
			return domain.NewNotFoundError("entity not found: " + adj.EntityID)
		}
		e.CurrentBalance = e.CurrentBalance.Add(adj.Signed())
		m.entities[adj.EntityID] = e
	}

	m.entries[entry.ID] = cloneEntry(*entry)
	m.bySource[key] = entry.ID
	return nil
}

func cloneEntry(e domain.JournalEntry) domain.JournalEntry {
	e.Lines = append([]domain.JournalLine(nil), e.Lines...)
	e.Adjustments = append([]domain.BalanceAdjustment(nil), e.Adjustments...)
	return e
}

func (m *Store) GetEntry(_ context.Context, tenantID, entryID string) (*domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[entryID]
	if !ok || e.TenantID != tenantID {
		return nil, domain.NewNotFoundError("journal entry not found: " + entryID)
	}
	e = cloneEntry(e)
	return &e, nil
}

func (m *Store) FindBySource(_ context.Context, tenantID string, source domain.JournalSource, sourceID string) (*domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySource[sourceKey{tenantID: tenantID, source: source, sourceID: sourceID}]
	if !ok {
		return nil, domain.NewNotFoundError(fmt.Sprintf("no journal entry for %s %s", source, sourceID))
	}
	e := cloneEntry(m.entries[id])
	return &e, nil
}

func (m *Store) VoidEntry(_ context.Context, tenantID, entryID string, reversal *domain.JournalEntry) error {
	if reversal == nil || reversal.ReversalOf != entryID {
		return domain.NewValidationError("reversal must reference the voided entry")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.withTx(func() error {
		original, ok := m.entries[entryID]
		if !ok || original.TenantID != tenantID {
			return domain.NewNotFoundError("journal entry not found: " + entryID)
		}
		if original.Status != domain.JournalPosted {
			return domain.ErrAlreadyVoided
		}
		original.Status = domain.JournalVoid
		original.VoidReason = reversal.VoidReason
		m.entries[entryID] = original
		return m.postLocked(reversal)
	})
}

// Staging

func (m *Store) CreateSession(_ context.Context, session *domain.ImportSession) error {
	if session.TenantID == "" {
		return domain.NewValidationError("session tenant is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if _, ok := m.sessions[session.ID]; ok {
		return domain.NewAlreadyExistsError("import session already exists: " + session.ID)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.Status = domain.SessionPending
	m.sessions[session.ID] = *session
	return nil
}

func (m *Store) GetSession(_ context.Context, tenantID, sessionID string) (*domain.ImportSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.TenantID != tenantID {
		return nil, domain.NewNotFoundError("import session not found: " + sessionID)
	}
	return &s, nil
}

func (m *Store) StageEntry(_ context.Context, sessionID string, entry *domain.JournalEntry) error {
	if err := journal.Validate(entry); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok || sess.TenantID != entry.TenantID {
		return domain.NewNotFoundError("import session not found: " + sessionID)
	}
	if sess.Status == domain.SessionPromoted {
		return domain.ErrSessionPromoted
	}
	for _, staged := range m.staged[sessionID] {
		if staged.Source == entry.Source && staged.SourceID == entry.SourceID {
			return fmt.Errorf("%w: %s/%s already staged in session %s", domain.ErrDuplicatePosting, entry.Source, entry.SourceID, sessionID)
		}
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Status = domain.JournalDraft
	entry.SessionID = sessionID

	m.staged[sessionID] = append(append([]domain.JournalEntry(nil), m.staged[sessionID]...), cloneEntry(*entry))
	sess.StagedEntries++
	sess.StagedLines += len(entry.Lines)
	m.sessions[sessionID] = sess
	return nil
}

func (m *Store) PromoteSession(_ context.Context, tenantID, sessionID string, at time.Time) (*domain.PromotionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result *domain.PromotionResult
	err := m.withTx(func() error {
		sess, ok := m.sessions[sessionID]
		if !ok || sess.TenantID != tenantID {
			return domain.NewNotFoundError("import session not found: " + sessionID)
		}
		if sess.Status == domain.SessionPromoted {
			result = m.recordedPromotion(sess)
			return nil
		}

		for _, staged := range m.staged[sessionID] {
			entry := cloneEntry(staged)
			entry.ID = uuid.New().String()
			entry.SessionID = sessionID
			entry.CreatedAt = at.UTC()
			if err := m.postLocked(&entry); err != nil {
				return err
			}
		}

		copied := m.recordedPromotion(sess)
		if copied.Entries != sess.StagedEntries || copied.Lines != sess.StagedLines {
			return &domain.StagingPromotionMismatchError{
				SessionID:     sessionID,
				StagedEntries: sess.StagedEntries,
				StagedLines:   sess.StagedLines,
				CopiedEntries: copied.Entries,
				CopiedLines:   copied.Lines,
			}
		}

		promotedAt := at.UTC()
		sess.Status = domain.SessionPromoted
		sess.PromotedEntries = copied.Entries
		sess.PromotedLines = copied.Lines
		sess.PromotedAt = &promotedAt
		m.sessions[sessionID] = sess
		result = copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Store) recordedPromotion(sess domain.ImportSession) *domain.PromotionResult {
	result := &domain.PromotionResult{SessionID: sess.ID, EntryIDs: []string{}}
	for id, e := range m.entries {
		if e.TenantID == sess.TenantID && e.SessionID == sess.ID {
			result.EntryIDs = append(result.EntryIDs, id)
			result.Lines += len(e.Lines)
		}
	}
	sort.Strings(result.EntryIDs)
	result.Entries = len(result.EntryIDs)
	return result
}
