package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-recon/internal/domain"
)

func collect(t *testing.T, content string, batchSize int) ([]domain.BankTransaction, int, error) {
	t.Helper()
	var (
		txs     []domain.BankTransaction
		batches int
	)
	err := NewCSVStatementParser("tenant-1").Parse(strings.NewReader(content), batchSize, func(batch []domain.BankTransaction) error {
		batches++
		txs = append(txs, batch...)
		return nil
	})
	return txs, batches, err
}

func TestCSVStatementParser_DebitCreditColumns(t *testing.T) {
	content := `id,date,description,debit,credit,category,reference
TX001,2024-03-05,ESKOM PREPAID 12345,150.00,,Utilities,REF1
TX002,05/03/2024,ACME LTD PAYMENT,,"1,250.50",,
TX003,2024-03-06,FNB AIRTIME,0.00,
`

	txs, _, err := collect(t, content, 100)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, "TX001", txs[0].ID)
	assert.Equal(t, "tenant-1", txs[0].TenantID)
	assert.True(t, txs[0].IsMoneyOut())
	assert.Equal(t, "150", txs[0].Amount().String())
	assert.Equal(t, "Utilities", txs[0].Category)
	assert.Equal(t, "REF1", txs[0].Reference)

	assert.False(t, txs[1].IsMoneyOut())
	assert.Equal(t, "1250.5", txs[1].Amount().String())
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), txs[1].Date)
}

func TestCSVStatementParser_SignedAmountColumn(t *testing.T) {
	content := `ID,Date,Description,Amount
TX001,2024-03-05,ESKOM PREPAID,-99.99
TX002,2024-03-05,ACME LTD,200
TX003,2024-03-05,NOTHING,0
`

	txs, _, err := collect(t, content, 100)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].IsMoneyOut())
	assert.Equal(t, "99.99", txs[0].Amount().String())
	assert.False(t, txs[1].IsMoneyOut())
}

func TestCSVStatementParser_SkipsInvalidRows(t *testing.T) {
	content := `id,date,description,debit,credit
,2024-03-05,NO ID,10,
TX002,not-a-date,BAD DATE,10,
TX003,2024-03-05,BOTH SIDES,10,10
TX004,2024-03-05,BAD AMOUNT,abc,
TX005,2024-03-05,,10,
TX006,2024-03-05,GOOD,10,
`

	txs, _, err := collect(t, content, 100)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "TX006", txs[0].ID)
}

func TestCSVStatementParser_Batches(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,date,description,debit,credit\n")
	for i := 0; i < 5; i++ {
		b.WriteString("TX" + string(rune('A'+i)) + ",2024-03-05,ROW,1,\n")
	}

	txs, batches, err := collect(t, b.String(), 2)
	require.NoError(t, err)
	assert.Len(t, txs, 5)
	assert.Equal(t, 3, batches)
}

func TestCSVStatementParser_CallbackErrorStops(t *testing.T) {
	content := "id,date,description,debit,credit\nTX1,2024-03-05,ROW,1,\nTX2,2024-03-05,ROW,1,\n"
	stop := errors.New("stop")

	calls := 0
	err := NewCSVStatementParser("t").Parse(strings.NewReader(content), 1, func([]domain.BankTransaction) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestCSVStatementParser_InvalidFormat(t *testing.T) {
	_, _, err := collect(t, "id,value\n1,100\n", 100)
	assert.Error(t, err)

	_, _, err = collect(t, "id,date,description,debit\n1,2024-03-05,X,100\n", 100)
	assert.Error(t, err)
}

// flakyReader serves its prefix and then fails every read.
type flakyReader struct {
	prefix *strings.Reader
	err    error
	reads  int
}

func (r *flakyReader) Read(p []byte) (int, error) {
	if r.prefix.Len() > 0 {
		return r.prefix.Read(p)
	}
	r.reads++
	return 0, r.err
}

func TestCSVStatementParser_StopsOnReadError(t *testing.T) {
	reset := errors.New("connection reset by peer")
	r := &flakyReader{
		prefix: strings.NewReader("id,date,description,debit,credit\nTX1,2024-03-05,ROW,1,\n"),
		err:    reset,
	}

	done := make(chan error, 1)
	var got []domain.BankTransaction
	go func() {
		done <- NewCSVStatementParser("t").Parse(r, 10, func(batch []domain.BankTransaction) error {
			got = append(got, batch...)
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, reset)
		assert.Empty(t, got, "no batch is delivered after a read failure")
		assert.Less(t, r.reads, 5)
	case <-time.After(2 * time.Second):
		t.Fatal("Parse did not return after a persistent read error")
	}
}
