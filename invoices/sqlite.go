package invoices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitwit/usdcpay/types"
)

// Schema is the table SQLStore reads from.
const Schema = `
CREATE TABLE IF NOT EXISTS invoices (
	id             TEXT PRIMARY KEY,
	reference      TEXT NOT NULL DEFAULT '',
	vendor_name    TEXT NOT NULL DEFAULT '',
	vendor_address TEXT NOT NULL,
	amount         TEXT NOT NULL,
	amount_usd     TEXT NOT NULL DEFAULT '',
	currency       TEXT NOT NULL DEFAULT 'USDC',
	due_date       TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	description    TEXT NOT NULL DEFAULT ''
);`

const selectColumns = `SELECT id, reference, vendor_name, vendor_address, amount, amount_usd,
	currency, due_date, status, description FROM invoices`

var _ Store = (*SQLStore)(nil)

// SQLStore reads invoices from a SQLite database. It never writes.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens path read-only.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open invoice database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open invoice database: %w", err)
	}
	return NewSQLStore(db), nil
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) GetInvoiceByID(ctx context.Context, id string) (*types.InvoiceRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)

	rec, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %q: %w", id, err)
	}
	return rec, nil
}

func (s *SQLStore) ListInvoices(ctx context.Context) ([]types.InvoiceRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY due_date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var out []types.InvoiceRecord
	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row scanner) (*types.InvoiceRecord, error) {
	var rec types.InvoiceRecord
	err := row.Scan(
		&rec.ID,
		&rec.Reference,
		&rec.VendorName,
		&rec.VendorAddress,
		&rec.Amount,
		&rec.AmountUSD,
		&rec.Currency,
		&rec.DueDate,
		&rec.Status,
		&rec.Description,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
