// Package export ships posted journal lines to a BigQuery table for
// reporting. Export is best effort: the ledger of record is the journal
// repository.
package export

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"

	"ledger-recon/internal/domain"
)

// Exporter receives entries after they commit.
type Exporter interface {
	ExportEntries(ctx context.Context, entries []domain.JournalEntry) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) ExportEntries(context.Context, []domain.JournalEntry) error { return nil }

// JournalLineRow is one flattened journal line in the warehouse table.
type JournalLineRow struct {
	EntryID     string              `bigquery:"entry_id"`
	LineNo      int64               `bigquery:"line_no"`
	TenantID    string              `bigquery:"tenant_id"`
	EntryDate   time.Time           `bigquery:"entry_date"`
	Period      string              `bigquery:"period"`
	Source      string              `bigquery:"source"`
	SourceID    string              `bigquery:"source_id"`
	Status      string              `bigquery:"status"`
	AccountCode string              `bigquery:"account_code"`
	AccountName string              `bigquery:"account_name"`
	Debit       *big.Rat            `bigquery:"debit"`
	Credit      *big.Rat            `bigquery:"credit"`
	Description string              `bigquery:"description"`
	ReversalOf  bigquery.NullString `bigquery:"reversal_of"`
	SessionID   bigquery.NullString `bigquery:"session_id"`
	ExportedAt  time.Time           `bigquery:"exported_at"`
}

// Rows flattens entries into warehouse rows.
func Rows(entries []domain.JournalEntry, exportedAt time.Time) []*JournalLineRow {
	var rows []*JournalLineRow
	for _, e := range entries {
		for i, l := range e.Lines {
			rows = append(rows, &JournalLineRow{
				EntryID:     e.ID,
				LineNo:      int64(i),
				TenantID:    e.TenantID,
				EntryDate:   e.EntryDate,
				Period:      e.Period(),
				Source:      string(e.Source),
				SourceID:    e.SourceID,
				Status:      string(e.Status),
				AccountCode: l.AccountCode,
				AccountName: l.AccountName,
				Debit:       l.Debit.Rat(),
				Credit:      l.Credit.Rat(),
				Description: l.Description,
				ReversalOf:  nullString(e.ReversalOf),
				SessionID:   nullString(e.SessionID),
				ExportedAt:  exportedAt,
			})
		}
	}
	return rows
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// putter is the part of *bigquery.Inserter the exporter uses.
type putter interface {
	Put(ctx context.Context, src interface{}) error
}

type BigQueryExporter struct {
	inserter putter
	now      func() time.Time
}

// NewBigQueryExporter writes into project.dataset.table.
func NewBigQueryExporter(client *bigquery.Client, projectID, datasetID, tableID string) *BigQueryExporter {
	table := client.DatasetInProject(projectID, datasetID).Table(tableID)
	return &BigQueryExporter{inserter: table.Inserter(), now: time.Now}
}

func (e *BigQueryExporter) ExportEntries(ctx context.Context, entries []domain.JournalEntry) error {
	rows := Rows(entries, e.now().UTC())
	if len(rows) == 0 {
		return nil
	}
	if err := e.inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("export journal lines: %w", err)
	}
	return nil
}
