package matcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-recon/internal/domain"
)

var txDate = time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC)

func chart() []domain.Account {
	return []domain.Account{
		{ID: "a-elec", Code: "6100", Name: "Electricity and Water", Type: domain.Expense, IsActive: true},
		{ID: "a-ar", Code: "1200", Name: "Accounts Receivable", Type: domain.Asset, IsActive: true},
		{ID: "a-bank", Code: "1000", Name: "FNB Cheque Account", Type: domain.Asset, IsActive: true},
		{ID: "a-sales", Code: "4000", Name: "Sales", Type: domain.Income, IsActive: true},
		{ID: "a-fees", Code: "6400", Name: "Bank Charges", Type: domain.Expense, IsActive: true},
		{ID: "a-sundry", Code: "6900", Name: "Sundry Expenses", Type: domain.Expense, IsActive: true},
	}
}

func rule(id, pattern string, pt domain.PatternType, accountID string, priority int) domain.MappingRule {
	return domain.MappingRule{
		ID:          id,
		TenantID:    "t1",
		Pattern:     pattern,
		PatternType: pt,
		Account:     domain.AccountRef{ID: accountID},
		Priority:    priority,
		IsActive:    true,
	}
}

func debit(id, desc, amount string) domain.BankTransaction {
	return domain.NewDebit(id, desc, decimal.RequireFromString(amount), txDate)
}

func credit(id, desc, amount string) domain.BankTransaction {
	return domain.NewCredit(id, desc, decimal.RequireFromString(amount), txDate)
}

func pipeline(cfg Config, rules ...domain.MappingRule) *Pipeline {
	return NewPipeline(cfg, NewSnapshot("t1", rules, chart(), cfg))
}

func TestClassify_ExactContainsAutoMaps(t *testing.T) {
	p := pipeline(DefaultConfig(), rule("r-eskom", "eskom", domain.PatternContains, "a-elec", 100))

	c, err := p.Classify(debit("tx-1", "ESKOM PREPAID METER", "500"))

	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAutoMapped, c.Decision)
	require.NotNil(t, c.Mapping)
	assert.Equal(t, 100, c.Mapping.Confidence)
	assert.Equal(t, domain.SourceExactMatch, c.Mapping.Source)
	assert.Equal(t, "r-eskom", c.Mapping.RuleID)
	assert.Equal(t, domain.AccountRef{ID: "a-elec", Code: "6100"}, c.Mapping.DebitAccount)
	assert.Equal(t, domain.AccountRef{ID: "a-bank", Code: "1000"}, c.Mapping.CreditAccount)
	assert.True(t, c.Mapping.Transaction.Amount().Equal(decimal.NewFromInt(500)))
}

func TestClassify_NoMatchEscalates(t *testing.T) {
	p := pipeline(DefaultConfig())

	c, err := p.Classify(debit("tx-2", "FNB Airtime Purchase 082991234", "150"))

	require.NoError(t, err)
	assert.Equal(t, domain.DecisionNeedsEscalation, c.Decision)
	assert.Nil(t, c.Mapping)
	assert.Equal(t, domain.MappingSource(""), c.Tier())
}

func TestClassify_ExactBeatsBetterFuzzy(t *testing.T) {
	p := pipeline(DefaultConfig(),
		rule("r-fuzzy", "eskom prepaid metr", domain.PatternContains, "a-sundry", 1),
		rule("r-exact", "eskom", domain.PatternContains, "a-elec", 200),
	)

	c, err := p.Classify(debit("tx-3", "ESKOM PREPAID METER", "500"))

	require.NoError(t, err)
	require.NotNil(t, c.Mapping)
	assert.Equal(t, domain.SourceExactMatch, c.Mapping.Source)
	assert.Equal(t, 100, c.Mapping.Confidence)
	assert.Equal(t, "r-exact", c.Mapping.RuleID)
}

func TestClassify_PriorityBreaksTiesWithinTier(t *testing.T) {
	p := pipeline(DefaultConfig(),
		rule("r-generic", "prepaid", domain.PatternContains, "a-sundry", 100),
		rule("r-learned", "eskom", domain.PatternContains, "a-elec", 10),
	)

	c, err := p.Classify(debit("tx-4", "ESKOM PREPAID METER", "500"))

	require.NoError(t, err)
	assert.Equal(t, "r-learned", c.Mapping.RuleID)
}

func TestClassify_StartsAndEndsWith(t *testing.T) {
	p := pipeline(DefaultConfig(),
		rule("r-start", "pos ", domain.PatternStartsWith, "a-sundry", 100),
		rule("r-end", "service fee", domain.PatternEndsWith, "a-fees", 100),
	)

	c, err := p.Classify(debit("tx-5", "Monthly Account Service Fee", "65"))
	require.NoError(t, err)
	assert.Equal(t, "r-end", c.Mapping.RuleID)

	cfg := DefaultConfig()
	cfg.EnableFuzzy = false
	p = NewPipeline(cfg, p.Snapshot())
	c, err = p.Classify(debit("tx-6", "Service fee reversal POS", "65"))
	require.NoError(t, err)
	assert.Nil(t, c.Mapping)
}

func TestClassify_RegexTier(t *testing.T) {
	r := rule("r-regex", `^pos\s+purchase\s+\d+`, domain.PatternRegex, "a-sundry", 100)

	c, err := pipeline(DefaultConfig(), r).Classify(debit("tx-7", "POS Purchase 4411 Checkers", "89.90"))
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePatternMatch, c.Mapping.Source)
	assert.Equal(t, 90, c.Mapping.Confidence)
	assert.Equal(t, domain.DecisionAutoMapped, c.Decision)

	r.Metadata.MatchCount = 11
	c, err = pipeline(DefaultConfig(), r).Classify(debit("tx-7", "POS Purchase 4411 Checkers", "89.90"))
	require.NoError(t, err)
	assert.Equal(t, 95, c.Mapping.Confidence)
}

func TestClassify_MalformedRegexIsSkipped(t *testing.T) {
	cfg := DefaultConfig()
	snap := NewSnapshot("t1", []domain.MappingRule{
		rule("r-bad", "eskom([", domain.PatternRegex, "a-elec", 1),
		rule("r-good", "eskom", domain.PatternContains, "a-elec", 100),
	}, chart(), cfg)

	require.Len(t, snap.Conflicts(), 1)
	var conflict *domain.RuleConflictError
	require.ErrorAs(t, snap.Conflicts()[0], &conflict)
	assert.Equal(t, "r-bad", conflict.RuleID)
	assert.Equal(t, 1, snap.RuleCount())

	c, err := NewPipeline(cfg, snap).Classify(debit("tx-8", "ESKOM", "10"))
	require.NoError(t, err)
	assert.Equal(t, "r-good", c.Mapping.RuleID)
}

func TestClassify_FuzzyTierRoutesToReview(t *testing.T) {
	p := pipeline(DefaultConfig(), rule("r-eskom", "eskom", domain.PatternContains, "a-elec", 100))

	c, err := p.Classify(debit("tx-9", "ESKM PREPAID", "500"))

	require.NoError(t, err)
	require.NotNil(t, c.Mapping)
	assert.Equal(t, domain.SourceFuzzyMatch, c.Mapping.Source)
	assert.Equal(t, 80, c.Mapping.Confidence)
	assert.Equal(t, domain.DecisionNeedsReview, c.Decision)
}

func TestClassify_FuzzyPicksBestCandidate(t *testing.T) {
	p := pipeline(DefaultConfig(),
		rule("r-water", "city watr", domain.PatternContains, "a-sundry", 1),
		rule("r-power", "city powr", domain.PatternContains, "a-elec", 100),
	)

	c, err := p.Classify(debit("tx-10", "CITY POWER 7781", "300"))

	require.NoError(t, err)
	require.NotNil(t, c.Mapping)
	assert.Equal(t, "r-power", c.Mapping.RuleID)
}

func TestClassify_DisabledTierFallsThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableExact = false
	p := pipeline(cfg, rule("r-eskom", "eskom", domain.PatternContains, "a-elec", 100))

	c, err := p.Classify(debit("tx-11", "ESKOM PREPAID METER", "500"))

	require.NoError(t, err)
	assert.Equal(t, domain.SourceFuzzyMatch, c.Mapping.Source)
	assert.Equal(t, 100, c.Mapping.Confidence)
}

func TestClassify_CategoryTier(t *testing.T) {
	p := pipeline(DefaultConfig())
	tx := debit("tx-12", "MONTHLY ADMIN", "120")
	tx.Category = "Bank Charges"

	c, err := p.Classify(tx)

	require.NoError(t, err)
	require.NotNil(t, c.Mapping)
	assert.Equal(t, domain.SourceCategoryMatch, c.Mapping.Source)
	assert.Equal(t, 70, c.Mapping.Confidence)
	assert.Equal(t, "6400", c.Mapping.DebitAccount.Code)
	assert.Equal(t, domain.DecisionNeedsReview, c.Decision)

	tx.Category = "insurance"
	c, err = p.Classify(tx)
	require.NoError(t, err)
	assert.Nil(t, c.Mapping, "category account missing from the chart")
}

func TestClassify_MoneyInDebitsBank(t *testing.T) {
	p := pipeline(DefaultConfig(), rule("r-acme", "acme", domain.PatternContains, "a-sales", 100))

	c, err := p.Classify(credit("tx-13", "Deposit ACME TRADERS", "2500"))

	require.NoError(t, err)
	assert.Equal(t, "1000", c.Mapping.DebitAccount.Code)
	assert.Equal(t, "4000", c.Mapping.CreditAccount.Code)
}

func TestClassify_ThresholdsAreConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoMapThreshold = 70
	cfg.ReviewThreshold = 50
	p := pipeline(cfg)
	tx := debit("tx-14", "MONTHLY ADMIN", "120")
	tx.Category = "bank fees"

	c, err := p.Classify(tx)

	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAutoMapped, c.Decision)
}

func TestClassify_NoBankAccount(t *testing.T) {
	cfg := DefaultConfig()
	accounts := []domain.Account{{ID: "a-elec", Code: "6100", Name: "Electricity", Type: domain.Expense, IsActive: true}}
	p := NewPipeline(cfg, NewSnapshot("t1", []domain.MappingRule{rule("r", "eskom", domain.PatternContains, "a-elec", 1)}, accounts, cfg))

	c, err := p.Classify(debit("tx-15", "ESKOM", "10"))

	assert.ErrorIs(t, err, domain.ErrNoBankAccount)
	assert.Equal(t, domain.DecisionNeedsEscalation, c.Decision)
}

func TestClassify_InvalidTransaction(t *testing.T) {
	p := pipeline(DefaultConfig())

	c, err := p.Classify(domain.BankTransaction{ID: "tx-16", Description: "no amount"})

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.DecisionNeedsEscalation, c.Decision)
}

func TestSnapshot_BankAccountInference(t *testing.T) {
	cfg := DefaultConfig()
	snap := NewSnapshot("t1", nil, chart(), cfg)
	require.NotNil(t, snap.BankAccount())
	assert.Equal(t, "1000", snap.BankAccount().Code)

	cfg.BankAccountPrefix = ""
	accounts := []domain.Account{
		{ID: "x", Code: "0900", Name: "Petty Cash", Type: domain.Asset, IsActive: true},
		{ID: "y", Code: "0950", Name: "Standard Bank Current", Type: domain.Asset, IsActive: true},
		{ID: "z", Code: "0800", Name: "Bank Loan", Type: domain.Liability, IsActive: true},
	}
	snap = NewSnapshot("t1", nil, accounts, cfg)
	require.NotNil(t, snap.BankAccount())
	assert.Equal(t, "y", snap.BankAccount().ID)
}

func TestSnapshot_ResolveRejectsDivergentRef(t *testing.T) {
	snap := NewSnapshot("t1", nil, chart(), DefaultConfig())

	_, ok := snap.Resolve(domain.AccountRef{ID: "a-elec", Code: "6400"})
	assert.False(t, ok)

	a, ok := snap.Resolve(domain.AccountRef{Code: "6400"})
	assert.True(t, ok)
	assert.Equal(t, "a-fees", a.ID)
}

func TestSnapshot_SkipsInactiveAndUnknownAccounts(t *testing.T) {
	inactive := rule("r-off", "eskom", domain.PatternContains, "a-elec", 1)
	inactive.IsActive = false
	orphan := rule("r-orphan", "eskom", domain.PatternContains, "a-missing", 2)

	snap := NewSnapshot("t1", []domain.MappingRule{inactive, orphan}, chart(), DefaultConfig())

	assert.Equal(t, 0, snap.RuleCount())
}

func TestClassifyBatch_PartitionsAndKeepsOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 3
	p := pipeline(cfg, rule("r-eskom", "eskom", domain.PatternContains, "a-elec", 100))

	fees := debit("tx-c", "ADMIN", "12")
	fees.Category = "bank charges"
	txs := []domain.BankTransaction{
		debit("tx-a", "ESKOM PREPAID", "500"),
		debit("tx-b", "FNB Airtime Purchase 082991234", "150"),
		fees,
		{ID: "tx-d", Description: "broken"},
		debit("tx-e", "ESKM PREPAID", "80"),
	}

	results, stats := p.ClassifyBatch(context.Background(), txs)

	require.Len(t, results, len(txs))
	for i := range txs {
		assert.Equal(t, txs[i].ID, results[i].Transaction.ID)
	}
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, stats.Total, stats.AutoMapped+stats.NeedsReview+stats.NeedsEscalation)
	assert.Equal(t, 1, stats.AutoMapped)
	assert.Equal(t, 2, stats.NeedsReview)
	assert.Equal(t, 2, stats.NeedsEscalation)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.ByTier[string(domain.SourceExactMatch)])
	assert.Equal(t, 2, stats.ByTier["none"])
	assert.InDelta(t, 2*cfg.EscalationCostPerTx, stats.EstimatedEscalationCost, 1e-9)
	assert.NotEmpty(t, results[3].Error)

	again, _ := p.ClassifyBatch(context.Background(), txs)
	for i := range results {
		assert.Equal(t, results[i].Decision, again[i].Decision)
		if results[i].Mapping != nil {
			assert.Equal(t, results[i].Mapping.Confidence, again[i].Mapping.Confidence)
		}
	}
}

func TestTally_OrderIndependent(t *testing.T) {
	results := []Classification{
		{Decision: domain.DecisionAutoMapped, Mapping: &domain.TransactionMapping{Source: domain.SourceExactMatch}},
		{Decision: domain.DecisionNeedsEscalation},
		{Decision: domain.DecisionNeedsReview, Mapping: &domain.TransactionMapping{Source: domain.SourceFuzzyMatch}},
	}
	reversed := []Classification{results[2], results[1], results[0]}

	a := Tally(results, 0, 0.01)
	b := Tally(reversed, 0, 0.01)

	assert.Equal(t, a, b)
}

func TestParallel_RecoversPanics(t *testing.T) {
	var calls int32

	errs := Parallel(context.Background(), 10, 4, func(ctx context.Context, i int) error {
		atomic.AddInt32(&calls, 1)
		switch i {
		case 3:
			panic("boom")
		case 7:
			return errors.New("failed")
		}
		return nil
	})

	assert.Equal(t, int32(10), calls)
	require.Len(t, errs, 10)
	assert.ErrorContains(t, errs[3], "panic: boom")
	assert.EqualError(t, errs[7], "failed")
	assert.NoError(t, errs[0])
}

func TestParallel_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errs := Parallel(ctx, 5, 1, func(ctx context.Context, i int) error { return nil })

	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ReviewThreshold = 90
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FuzzyThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())
}
