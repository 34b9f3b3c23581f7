package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Transfer is one acknowledged deposit or withdrawal awaiting settlement.
type Transfer struct {
	ID        string    `json:"id"`
	Broker    string    `json:"broker"`
	Account   string    `json:"account"`
	Direction string    `json:"direction"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Address   string    `json:"address,omitempty"`
	Status    string    `json:"status"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InsertTransfer records a new acknowledgement.
func (d *Database) InsertTransfer(ctx context.Context, t Transfer) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO transfers (id, broker, account, direction, amount, currency, address, status, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Broker, t.Account, t.Direction, t.Amount, t.Currency, t.Address, t.Status, t.Reference)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// ListTransfers returns the acknowledgements for one (broker, account) pair,
// newest first.
func (d *Database) ListTransfers(ctx context.Context, brokerID, account string) ([]Transfer, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, broker, account, direction, amount, currency, COALESCE(address, ''),
		       status, COALESCE(reference, ''), created_at, updated_at
		FROM transfers
		WHERE broker = ? AND account = ?
		ORDER BY created_at DESC
	`, brokerID, account)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.Broker, &t.Account, &t.Direction, &t.Amount, &t.Currency,
			&t.Address, &t.Status, &t.Reference, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// GetTransfer fetches one acknowledgement by id.
func (d *Database) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, broker, account, direction, amount, currency, COALESCE(address, ''),
		       status, COALESCE(reference, ''), created_at, updated_at
		FROM transfers
		WHERE id = ?
	`, id)

	var t Transfer
	err := row.Scan(&t.ID, &t.Broker, &t.Account, &t.Direction, &t.Amount, &t.Currency,
		&t.Address, &t.Status, &t.Reference, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return &t, nil
}

// MarkTransferSettled flips a pending/submitted acknowledgement to settled.
// Settling twice is rejected so a double ops action is visible.
func (d *Database) MarkTransferSettled(ctx context.Context, id string) error {
	res, err := d.DB.ExecContext(ctx, `
		UPDATE transfers
		SET status = 'settled', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status != 'settled'
	`, id)
	if err != nil {
		return fmt.Errorf("settle transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle transfer: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
