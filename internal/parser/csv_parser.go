package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-recon/internal/domain"
	"ledger-recon/pkg/logger"
)

// StatementParser streams bank transactions out of a statement export.
type StatementParser interface {
	Parse(r io.Reader, batchSize int, callback func([]domain.BankTransaction) error) error
}

// CSVStatementParser reads statements with the columns id, date, description
// and either debit/credit or a single signed amount, plus optional category
// and reference columns. Rows that cannot be parsed are skipped with a warning.
type CSVStatementParser struct {
	tenantID string
}

func NewCSVStatementParser(tenantID string) *CSVStatementParser {
	return &CSVStatementParser{tenantID: tenantID}
}

// Parse reads the statement in streaming mode and hands rows to callback in
// batches of batchSize.
func (p *CSVStatementParser) Parse(r io.Reader, batchSize int, callback func([]domain.BankTransaction) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to read CSV header")
		return fmt.Errorf("failed to read header: %w", err)
	}

	columnMap := mapColumns(header)
	if err := validateColumns(columnMap); err != nil {
		return err
	}

	batch := make([]domain.BankTransaction, 0, batchSize)
	lineNumber := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNumber++
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				logger.GetLogger().WithError(err).WithField("line", lineNumber).Error("Failed to read statement")
				return fmt.Errorf("failed to read statement at line %d: %w", lineNumber, err)
			}
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("Malformed CSV row, skipping")
			continue
		}

		tx, err := p.parseRecord(record, columnMap, lineNumber)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("Failed to parse record, skipping")
			continue
		}

		batch = append(batch, *tx)

		if len(batch) >= batchSize {
			if err := callback(batch); err != nil {
				return err
			}
			batch = make([]domain.BankTransaction, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := callback(batch); err != nil {
			return err
		}
	}

	return nil
}

func (p *CSVStatementParser) parseRecord(record []string, columnMap map[string]int, lineNumber int) (*domain.BankTransaction, error) {
	field := func(name string) string {
		i, ok := columnMap[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := field("id")
	if id == "" {
		return nil, fmt.Errorf("empty id at line %d", lineNumber)
	}

	dateStr := field("date")
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date '%s' at line %d: %w", dateStr, lineNumber, err)
	}

	tx := &domain.BankTransaction{
		ID:          id,
		TenantID:    p.tenantID,
		Date:        date,
		Description: field("description"),
		Category:    field("category"),
		Reference:   field("reference"),
	}

	if _, signed := columnMap["amount"]; signed {
		amount, err := parseAmount(field("amount"))
		if err != nil {
			return nil, fmt.Errorf("invalid amount at line %d: %w", lineNumber, err)
		}
		if amount.IsNegative() {
			out := amount.Abs()
			tx.DebitAmount = &out
		} else if amount.IsPositive() {
			tx.CreditAmount = &amount
		}
	} else {
		if tx.DebitAmount, err = parseOptionalAmount(field("debit")); err != nil {
			return nil, fmt.Errorf("invalid debit at line %d: %w", lineNumber, err)
		}
		if tx.CreditAmount, err = parseOptionalAmount(field("credit")); err != nil {
			return nil, fmt.Errorf("invalid credit at line %d: %w", lineNumber, err)
		}
	}

	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

func mapColumns(header []string) map[string]int {
	columnMap := make(map[string]int)
	for i, col := range header {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		columnMap[normalized] = i
	}
	return columnMap
}

func validateColumns(columnMap map[string]int) error {
	for _, col := range []string{"id", "date", "description"} {
		if _, exists := columnMap[col]; !exists {
			return fmt.Errorf("invalid CSV format: missing required column %q", col)
		}
	}
	_, hasAmount := columnMap["amount"]
	_, hasDebit := columnMap["debit"]
	_, hasCredit := columnMap["credit"]
	if !hasAmount && !(hasDebit && hasCredit) {
		return fmt.Errorf("invalid CSV format: need debit and credit columns or a signed amount column")
	}
	return nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", " ", "").Replace(s)
	return decimal.NewFromString(cleaned)
}

// parseOptionalAmount treats blank and zero cells as absent.
func parseOptionalAmount(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	amount, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, nil
	}
	amount = amount.Abs()
	return &amount, nil
}

func parseDate(dateStr string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"02/01/2006",
		"2006/01/02",
		"02 Jan 2006",
		time.RFC3339,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
