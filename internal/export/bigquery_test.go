package export

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-recon/internal/domain"
)

type fakePutter struct {
	rows []*JournalLineRow
	err  error
}

func (f *fakePutter) Put(_ context.Context, src interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, src.([]*JournalLineRow)...)
	return nil
}

func sampleEntry() domain.JournalEntry {
	return domain.JournalEntry{
		ID:        "e1",
		TenantID:  "t1",
		EntryDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Source:    domain.JournalSourceBankTransaction,
		SourceID:  "tx-1",
		Status:    domain.JournalPosted,
		SessionID: "s1",
		Lines: []domain.JournalLine{
			{AccountCode: "6100", AccountName: "Electricity", Debit: decimal.RequireFromString("150.25")},
			{AccountCode: "1000", AccountName: "Bank", Credit: decimal.RequireFromString("150.25")},
		},
	}
}

func TestRows(t *testing.T) {
	at := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	rows := Rows([]domain.JournalEntry{sampleEntry()}, at)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-03", rows[0].Period)
	assert.Equal(t, int64(1), rows[1].LineNo)
	assert.Equal(t, 0, rows[0].Debit.Cmp(big.NewRat(15025, 100)))
	assert.Equal(t, 0, rows[0].Credit.Sign())
	assert.False(t, rows[0].ReversalOf.Valid)
	assert.True(t, rows[0].SessionID.Valid)
	assert.Equal(t, at, rows[0].ExportedAt)
}

func TestBigQueryExporter(t *testing.T) {
	p := &fakePutter{}
	exp := &BigQueryExporter{inserter: p, now: time.Now}

	require.NoError(t, exp.ExportEntries(context.Background(), []domain.JournalEntry{sampleEntry()}))
	assert.Len(t, p.rows, 2)

	require.NoError(t, exp.ExportEntries(context.Background(), nil))
	assert.Len(t, p.rows, 2)

	p.err = errors.New("quota")
	assert.Error(t, exp.ExportEntries(context.Background(), []domain.JournalEntry{sampleEntry()}))
}
