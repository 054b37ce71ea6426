package sim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

var ErrContractNotFound = errors.New("contract not found")

// Contract is an open position held by the simulated venue.
type Contract struct {
	ID           string
	Instrument   string
	ContractType string
	BuyPrice     decimal.Decimal
	Payout       decimal.Decimal
	StartTime    int64
	PurchaseTime int64
	Longcode     string
}

// Book stores the simulated venue's open contracts.
type Book interface {
	Put(ctx context.Context, c Contract) error
	// Take removes and returns an open contract.
	Take(ctx context.Context, contractID string) (Contract, error)
	Open(ctx context.Context) ([]Contract, error)
	Close() error
}

type MemoryBook struct {
	mu        sync.Mutex
	contracts map[string]Contract
}

func NewMemoryBook() *MemoryBook {
	return &MemoryBook{contracts: make(map[string]Contract)}
}

func (b *MemoryBook) Put(_ context.Context, c Contract) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.contracts[c.ID]; ok {
		return fmt.Errorf("put contract: duplicate id %q", c.ID)
	}
	b.contracts[c.ID] = c
	return nil
}

func (b *MemoryBook) Take(_ context.Context, contractID string) (Contract, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.contracts[contractID]
	if !ok {
		return Contract{}, fmt.Errorf("take contract: %w: %q", ErrContractNotFound, contractID)
	}
	delete(b.contracts, contractID)
	return c, nil
}

func (b *MemoryBook) Open(_ context.Context) ([]Contract, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Contract, 0, len(b.contracts))
	for _, c := range b.contracts {
		out = append(out, c)
	}
	return out, nil
}

func (b *MemoryBook) Close() error { return nil }

const schema = `
CREATE TABLE IF NOT EXISTS contracts (
	contract_id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	contract_type TEXT NOT NULL,
	buy_price TEXT NOT NULL,
	payout TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	purchase_time INTEGER NOT NULL,
	longcode TEXT NOT NULL
);
`

// SQLiteBook keeps the book in a SQLite file so that separate processes
// (e.g. one CLI invocation opening, the next closing) share contracts.
type SQLiteBook struct {
	db *sql.DB
}

func NewSQLiteBook(path string) (*SQLiteBook, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one writer at a time; concurrent sells would otherwise hit SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteBook{db: db}, nil
}

func (b *SQLiteBook) Put(ctx context.Context, c Contract) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO contracts
		(contract_id, instrument, contract_type, buy_price, payout, start_time, purchase_time, longcode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Instrument, c.ContractType, c.BuyPrice.String(), c.Payout.String(),
		c.StartTime, c.PurchaseTime, c.Longcode,
	)
	if err != nil {
		return fmt.Errorf("put contract: %w", err)
	}
	return nil
}

func (b *SQLiteBook) Take(ctx context.Context, contractID string) (Contract, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return Contract{}, err
	}
	defer tx.Rollback()

	c, err := scanContract(tx.QueryRowContext(ctx, `
		SELECT contract_id, instrument, contract_type, buy_price, payout, start_time, purchase_time, longcode
		FROM contracts WHERE contract_id = ?`, contractID))
	if errors.Is(err, sql.ErrNoRows) {
		return Contract{}, fmt.Errorf("take contract: %w: %q", ErrContractNotFound, contractID)
	}
	if err != nil {
		return Contract{}, fmt.Errorf("take contract: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM contracts WHERE contract_id = ?`, contractID); err != nil {
		return Contract{}, fmt.Errorf("take contract: %w", err)
	}
	return c, tx.Commit()
}

func (b *SQLiteBook) Open(ctx context.Context) ([]Contract, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT contract_id, instrument, contract_type, buy_price, payout, start_time, purchase_time, longcode
		FROM contracts ORDER BY contract_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (b *SQLiteBook) Close() error {
	return b.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(r rowScanner) (Contract, error) {
	var (
		c             Contract
		price, payout string
	)
	if err := r.Scan(&c.ID, &c.Instrument, &c.ContractType, &price, &payout,
		&c.StartTime, &c.PurchaseTime, &c.Longcode); err != nil {
		return Contract{}, err
	}
	var err error
	if c.BuyPrice, err = decimal.NewFromString(price); err != nil {
		return Contract{}, fmt.Errorf("contract %s buy_price: %w", c.ID, err)
	}
	if c.Payout, err = decimal.NewFromString(payout); err != nil {
		return Contract{}, fmt.Errorf("contract %s payout: %w", c.ID, err)
	}
	return c, nil
}
