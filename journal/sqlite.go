package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(ticket, instrument, side, volume, entry_price, exit_price, opened_at, closed_at, profit, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Ticket, t.Instrument, t.Side, t.Volume, t.EntryPrice,
		t.ExitPrice, t.OpenedAt, t.ClosedAt, t.Profit, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquityPoint) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, margin_used, free_margin, profit)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Balance, e.Equity, e.MarginUsed, e.FreeMargin, e.Profit,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
