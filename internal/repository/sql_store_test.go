package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-recon/internal/domain"
)

const tenant = "tenant-1"

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testEntry(sourceID string, amount string, adjustments ...domain.BalanceAdjustment) *domain.JournalEntry {
	return &domain.JournalEntry{
		TenantID:    tenant,
		EntryDate:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Source:      domain.JournalSourceBankTransaction,
		SourceID:    sourceID,
		Description: "ESKOM PREPAID",
		Lines: []domain.JournalLine{
			{AccountCode: "6100", AccountName: "Electricity", Debit: dec(amount), Credit: decimal.Zero, Dimensions: map[string]string{"reference": sourceID}},
			{AccountCode: "1000", AccountName: "Bank", Debit: decimal.Zero, Credit: dec(amount)},
		},
		Adjustments: adjustments,
	}
}

func seedEntity(t *testing.T, store *SQLStore, id string) {
	t.Helper()
	require.NoError(t, store.SaveEntity(context.Background(), &domain.Entity{
		ID: id, TenantID: tenant, Kind: domain.Creditor, Name: "Eskom", CurrentBalance: dec("500"), IsActive: true,
	}))
}

func TestSQLStore_Rules(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	low := &domain.MappingRule{
		TenantID: tenant, Pattern: "eskom", PatternType: domain.PatternContains,
		Account: domain.AccountRef{ID: "acc-1", Code: "6100"}, Priority: 10, IsActive: true,
		Metadata: domain.RuleMetadata{Source: domain.RuleSourceUserCreated},
	}
	high := &domain.MappingRule{
		TenantID: tenant, Pattern: "^pos ", PatternType: domain.PatternRegex,
		Account: domain.AccountRef{ID: "acc-2", Code: "6300"}, Priority: 100, IsActive: true,
		Metadata: domain.RuleMetadata{Source: domain.RuleSourceAIAssisted},
	}
	lowID, err := store.SaveRule(ctx, low)
	require.NoError(t, err)
	_, err = store.SaveRule(ctx, high)
	require.NoError(t, err)

	rules, err := store.ListActiveRules(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "eskom", rules[0].Pattern)
	assert.Equal(t, "^pos ", rules[1].Pattern)

	t.Run("upsert keeps the id", func(t *testing.T) {
		again := &domain.MappingRule{
			TenantID: tenant, Pattern: "eskom", PatternType: domain.PatternContains,
			Account: domain.AccountRef{ID: "acc-3", Code: "6110"}, Priority: 10, IsActive: true,
			Metadata: domain.RuleMetadata{Source: domain.RuleSourceUserCreated},
		}
		id, err := store.SaveRule(ctx, again)
		require.NoError(t, err)
		assert.Equal(t, lowID, id)

		got, err := store.GetRule(ctx, tenant, lowID)
		require.NoError(t, err)
		assert.Equal(t, "6110", got.Account.Code)
	})

	t.Run("match count", func(t *testing.T) {
		at := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
		require.NoError(t, store.IncrementMatchCount(ctx, tenant, lowID, at))
		require.NoError(t, store.IncrementMatchCount(ctx, tenant, lowID, at))

		got, err := store.GetRule(ctx, tenant, lowID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Metadata.MatchCount)
		require.NotNil(t, got.Metadata.LastMatched)
		assert.True(t, at.Equal(*got.Metadata.LastMatched))
	})

	t.Run("deactivate", func(t *testing.T) {
		require.NoError(t, store.DeactivateRule(ctx, tenant, lowID))
		rules, err := store.ListActiveRules(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "^pos ", rules[0].Pattern)

		var notFound *domain.NotFoundError
		assert.ErrorAs(t, store.DeactivateRule(ctx, tenant, "missing"), &notFound)
	})

	t.Run("other tenant sees nothing", func(t *testing.T) {
		rules, err := store.ListActiveRules(ctx, "tenant-2")
		require.NoError(t, err)
		assert.Empty(t, rules)
	})
}

func TestSQLStore_Accounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, tenant, domain.NewAccountSpec{Code: "6100", Name: "Electricity", Type: domain.Expense, ParentCode: "6000"})
	require.NoError(t, err)
	created, err := store.CreateAccount(ctx, tenant, domain.NewAccountSpec{Code: "1000", Name: "Bank", Type: domain.Asset})
	require.NoError(t, err)

	accounts, err := store.ListAccounts(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "1000", accounts[0].Code)
	assert.Equal(t, "6000", accounts[1].ParentCode)

	got, err := store.GetAccount(ctx, tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Asset, got.Type)
	assert.True(t, got.IsActive)

	_, err = store.CreateAccount(ctx, tenant, domain.NewAccountSpec{Code: "1000", Name: "Bank again", Type: domain.Asset})
	var exists *domain.AlreadyExistsError
	assert.ErrorAs(t, err, &exists)
}

func TestSQLStore_EntitiesAndDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, e := range []domain.Entity{
		{ID: "s2", TenantID: tenant, Kind: domain.Creditor, Name: "Telkom", IsActive: true},
		{ID: "s1", TenantID: tenant, Kind: domain.Creditor, Name: "Eskom", IsActive: true},
		{ID: "s3", TenantID: tenant, Kind: domain.Creditor, Name: "Dormant", IsActive: false},
		{ID: "c1", TenantID: tenant, Kind: domain.Debtor, Name: "Acme", IsActive: true},
	} {
		e := e
		require.NoError(t, store.SaveEntity(ctx, &e))
	}

	creditors, err := store.ListActiveEntities(ctx, tenant, domain.Creditor)
	require.NoError(t, err)
	require.Len(t, creditors, 2)
	assert.Equal(t, "Eskom", creditors[0].Name)
	assert.Equal(t, "Telkom", creditors[1].Name)

	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	docs := []domain.OutstandingDocument{
		{ID: "b2", EntityID: "s1", Kind: domain.Bill, Number: "B-2", AmountDue: dec("200"), DueDate: due.AddDate(0, 0, 10), Status: domain.DocumentSent},
		{ID: "b1", EntityID: "s1", Kind: domain.Bill, Number: "B-1", AmountDue: dec("100"), DueDate: due, Status: domain.DocumentOverdue},
		{ID: "b3", EntityID: "s1", Kind: domain.Bill, Number: "B-3", AmountDue: dec("300"), DueDate: due, Status: domain.DocumentPaid},
		{ID: "b4", EntityID: "s1", Kind: domain.Bill, Number: "B-4", AmountDue: dec("400"), DueDate: due, Status: domain.DocumentDraft},
	}
	for _, d := range docs {
		d := d
		require.NoError(t, store.SaveDocument(ctx, tenant, &d))
	}

	outstanding, err := store.ListOutstandingDocuments(ctx, tenant, "s1")
	require.NoError(t, err)
	require.Len(t, outstanding, 2)
	assert.Equal(t, "B-1", outstanding[0].Number)
	assert.True(t, dec("100").Equal(outstanding[0].AmountDue))
	assert.True(t, due.Equal(outstanding[0].DueDate))
	assert.Equal(t, "B-2", outstanding[1].Number)
}

func TestSQLStore_PostEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEntity(t, store, "s1")

	entry := testEntry("tx-1", "150.00", domain.BalanceAdjustment{EntityID: "s1", Amount: dec("150"), Increase: false})
	require.NoError(t, store.PostEntry(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, domain.JournalPosted, entry.Status)

	got, err := store.GetEntry(ctx, tenant, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JournalPosted, got.Status)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "6100", got.Lines[0].AccountCode)
	assert.Equal(t, "tx-1", got.Lines[0].Dimensions["reference"])
	assert.Nil(t, got.Lines[1].Dimensions)
	assert.True(t, got.TotalDebit.Equal(got.TotalCredit))
	require.Len(t, got.Adjustments, 1)

	entity, err := store.GetEntity(ctx, tenant, "s1")
	require.NoError(t, err)
	assert.True(t, dec("350").Equal(entity.CurrentBalance), entity.CurrentBalance.String())

	t.Run("duplicate source is rejected", func(t *testing.T) {
		err := store.PostEntry(ctx, testEntry("tx-1", "150.00", domain.BalanceAdjustment{EntityID: "s1", Amount: dec("150")}))
		assert.ErrorIs(t, err, domain.ErrDuplicatePosting)

		entity, err := store.GetEntity(ctx, tenant, "s1")
		require.NoError(t, err)
		assert.True(t, dec("350").Equal(entity.CurrentBalance))
	})

	t.Run("find by source", func(t *testing.T) {
		found, err := store.FindBySource(ctx, tenant, domain.JournalSourceBankTransaction, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, entry.ID, found.ID)
	})

	t.Run("imbalance writes nothing", func(t *testing.T) {
		bad := testEntry("tx-2", "10.00")
		bad.Lines[1].Credit = dec("9.99")
		err := store.PostEntry(ctx, bad)
		var imbalance *domain.PostingImbalanceError
		assert.ErrorAs(t, err, &imbalance)

		_, err = store.FindBySource(ctx, tenant, domain.JournalSourceBankTransaction, "tx-2")
		var notFound *domain.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("unknown entity rolls back the entry", func(t *testing.T) {
		err := store.PostEntry(ctx, testEntry("tx-3", "10.00", domain.BalanceAdjustment{EntityID: "ghost", Amount: dec("10")}))
		var notFound *domain.NotFoundError
		require.ErrorAs(t, err, &notFound)

		_, err = store.FindBySource(ctx, tenant, domain.JournalSourceBankTransaction, "tx-3")
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestSQLStore_VoidEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEntity(t, store, "s1")

	original := testEntry("tx-1", "80.00", domain.BalanceAdjustment{EntityID: "s1", Amount: dec("80"), Increase: false})
	require.NoError(t, store.PostEntry(ctx, original))

	reversal := func() *domain.JournalEntry {
		r := testEntry(original.ID, "80.00", domain.BalanceAdjustment{EntityID: "s1", Amount: dec("80"), Increase: true})
		r.Source = domain.JournalSourceVoid
		r.ReversalOf = original.ID
		r.VoidReason = "duplicate import"
		r.Lines[0].Debit, r.Lines[0].Credit = decimal.Zero, dec("80.00")
		r.Lines[1].Debit, r.Lines[1].Credit = dec("80.00"), decimal.Zero
		return r
	}

	rev := reversal()
	require.NoError(t, store.VoidEntry(ctx, tenant, original.ID, rev))

	got, err := store.GetEntry(ctx, tenant, original.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JournalVoid, got.Status)
	assert.Equal(t, "duplicate import", got.VoidReason)

	posted, err := store.GetEntry(ctx, tenant, rev.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, posted.ReversalOf)
	assert.Equal(t, domain.JournalPosted, posted.Status)

	entity, err := store.GetEntity(ctx, tenant, "s1")
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(entity.CurrentBalance))

	err = store.VoidEntry(ctx, tenant, original.ID, reversal())
	assert.ErrorIs(t, err, domain.ErrAlreadyVoided)

	err = store.VoidEntry(ctx, tenant, "missing", &domain.JournalEntry{ReversalOf: "missing"})
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSQLStore_StagingAndPromotion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEntity(t, store, "s1")

	session := &domain.ImportSession{TenantID: tenant}
	require.NoError(t, store.CreateSession(ctx, session))

	require.NoError(t, store.StageEntry(ctx, session.ID, testEntry("tx-1", "10.00", domain.BalanceAdjustment{EntityID: "s1", Amount: dec("10")})))
	require.NoError(t, store.StageEntry(ctx, session.ID, testEntry("tx-2", "20.00")))

	err := store.StageEntry(ctx, session.ID, testEntry("tx-2", "20.00"))
	assert.ErrorIs(t, err, domain.ErrDuplicatePosting)

	sess, err := store.GetSession(ctx, tenant, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, sess.Status)
	assert.Equal(t, 2, sess.StagedEntries)
	assert.Equal(t, 4, sess.StagedLines)

	// Staged entries are invisible to the posted ledger.
	_, err = store.FindBySource(ctx, tenant, domain.JournalSourceBankTransaction, "tx-1")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	at := time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)
	result, err := store.PromoteSession(ctx, tenant, session.ID, at)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Entries)
	assert.Equal(t, 4, result.Lines)
	assert.Len(t, result.EntryIDs, 2)

	posted, err := store.FindBySource(ctx, tenant, domain.JournalSourceBankTransaction, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, posted.SessionID)
	assert.Equal(t, domain.JournalPosted, posted.Status)

	entity, err := store.GetEntity(ctx, tenant, "s1")
	require.NoError(t, err)
	assert.True(t, dec("510").Equal(entity.CurrentBalance))

	t.Run("retry returns the recorded result", func(t *testing.T) {
		again, err := store.PromoteSession(ctx, tenant, session.ID, at.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, result, again)

		entity, err := store.GetEntity(ctx, tenant, "s1")
		require.NoError(t, err)
		assert.True(t, dec("510").Equal(entity.CurrentBalance))
	})

	t.Run("promoted session rejects staging", func(t *testing.T) {
		err := store.StageEntry(ctx, session.ID, testEntry("tx-9", "5.00"))
		assert.True(t, errors.Is(err, domain.ErrSessionPromoted))
	})

	sess, err = store.GetSession(ctx, tenant, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPromoted, sess.Status)
	assert.Equal(t, 2, sess.PromotedEntries)
	require.NotNil(t, sess.PromotedAt)
	assert.True(t, at.Equal(*sess.PromotedAt))
}

func TestSQLStore_PromotionMismatchWritesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEntity(t, store, "s1")

	session := &domain.ImportSession{TenantID: tenant}
	require.NoError(t, store.CreateSession(ctx, session))
	require.NoError(t, store.StageEntry(ctx, session.ID, testEntry("tx-1", "10.00", domain.BalanceAdjustment{EntityID: "s1", Amount: dec("10")})))

	_, err := store.DB().Exec(`UPDATE import_sessions SET staged_lines = staged_lines + 1 WHERE id = $1`, session.ID)
	require.NoError(t, err)

	_, err = store.PromoteSession(ctx, tenant, session.ID, time.Now())
	var mismatch *domain.StagingPromotionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.StagedLines)
	assert.Equal(t, 2, mismatch.CopiedLines)

	_, err = store.FindBySource(ctx, tenant, domain.JournalSourceBankTransaction, "tx-1")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	entity, err := store.GetEntity(ctx, tenant, "s1")
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(entity.CurrentBalance))

	sess, err := store.GetSession(ctx, tenant, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, sess.Status)
}

func TestSQLStore_PromoteUnknownSession(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PromoteSession(context.Background(), tenant, "missing", time.Now())
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestNewSQLStore_RejectsUnknownDriver(t *testing.T) {
	_, err := NewSQLStore(nil, "mysql")
	assert.Error(t, err)
}
