package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCSVJournal(t *testing.T) (*CSVJournal, string, string) {
	t.Helper()
	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	return j, tradesPath, equityPath
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	j, tradesPath, equityPath := newCSVJournal(t)
	require.NoError(t, j.Close())

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 1)
	assert.Equal(t, []string{"ticket", "instrument", "side", "volume", "entry_price", "exit_price", "opened_at", "closed_at", "profit", "reason"}, trades[0])

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 1)
	assert.Equal(t, []string{"time", "balance", "equity", "margin_used", "free_margin", "profit"}, equity[0])
}

func TestCSVJournalRecordTrade(t *testing.T) {
	j, tradesPath, _ := newCSVJournal(t)

	err := j.RecordTrade(TradeRecord{
		Ticket:     "01ABC",
		Instrument: "XAU_USD",
		Side:       "buy",
		Volume:     0.10,
		EntryPrice: 2650.2,
		ExitPrice:  2660.0,
		OpenedAt:   100,
		ClosedAt:   200,
		Profit:     98.0,
		Reason:     "TakeProfit",
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	rows := readCSV(t, tradesPath)
	require.Len(t, rows, 2)
	row := rows[1]
	assert.Equal(t, "01ABC", row[0])
	assert.Equal(t, "XAU_USD", row[1])
	assert.Equal(t, "buy", row[2])
	assert.Equal(t, "0.100000", row[3])
	assert.Equal(t, "100", row[6])
	assert.Equal(t, "TakeProfit", row[9])
}

func TestCSVJournalRecordEquity(t *testing.T) {
	j, _, equityPath := newCSVJournal(t)

	require.NoError(t, j.RecordEquity(EquityPoint{
		Time:       150,
		Balance:    10000,
		Equity:     10050,
		MarginUsed: 132.5,
		FreeMargin: 9917.5,
		Profit:     50,
	}))
	require.NoError(t, j.RecordEquity(EquityPoint{Time: 151, Balance: 10000, Equity: 10060, Profit: 60}))
	require.NoError(t, j.Close())

	rows := readCSV(t, equityPath)
	require.Len(t, rows, 3)
	assert.Equal(t, "150", rows[1][0])
	assert.Equal(t, "10050.000000", rows[1][2])
	assert.Equal(t, "151", rows[2][0])
}

func TestCSVJournalBadPath(t *testing.T) {
	_, err := NewCSV(filepath.Join(t.TempDir(), "missing-dir", "trades.csv"), "equity.csv")
	assert.Error(t, err)
}

func TestNopJournal(t *testing.T) {
	var j Journal = Nop{}
	assert.NoError(t, j.RecordTrade(TradeRecord{}))
	assert.NoError(t, j.RecordEquity(EquityPoint{}))
	assert.NoError(t, j.Close())
}
