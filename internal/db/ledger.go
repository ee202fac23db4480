package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wuwenbin0122/finbot/internal/models"
)

// Amounts are NUMERIC; they travel as text to keep decimal precision.

func (p *Postgres) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows, err := p.Pool.Query(ctx, `
SELECT id, description, category, amount::text, type, date
FROM transactions
WHERE user_id = $1
ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}

	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Transaction, error) {
		var (
			t      models.Transaction
			amount string
			kind   string
		)
		if err := row.Scan(&t.ID, &t.Description, &t.Category, &amount, &kind, &t.Date); err != nil {
			return t, err
		}
		t.Type = models.TransactionType(kind)
		return t, parseDecimal(amount, &t.Amount)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transactions: %w", err)
	}
	return txs, nil
}

// AddTransaction stores t with its amount signed by type and returns it with
// the assigned id.
func (p *Postgres) AddTransaction(ctx context.Context, userID string, t models.Transaction) (*models.Transaction, error) {
	t = t.Signed()
	err := p.Pool.QueryRow(ctx, `
INSERT INTO transactions (user_id, description, category, amount, type, date)
VALUES ($1, $2, $3, $4::numeric, $5, $6)
RETURNING id`,
		userID, t.Description, t.Category, t.Amount.String(), string(t.Type), t.Date,
	).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: add transaction: %w", err)
	}
	return &t, nil
}

func (p *Postgres) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	tag, err := p.Pool.Exec(ctx, "DELETE FROM transactions WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("postgres: delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	rows, err := p.Pool.Query(ctx, `
SELECT id, name, ticker, value::text, gain::text
FROM holdings
WHERE user_id = $1
ORDER BY value DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list holdings: %w", err)
	}

	holdings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Holding, error) {
		var (
			h           models.Holding
			value, gain string
		)
		if err := row.Scan(&h.ID, &h.Name, &h.Ticker, &value, &gain); err != nil {
			return h, err
		}
		if err := parseDecimal(value, &h.Value); err != nil {
			return h, err
		}
		return h, parseDecimal(gain, &h.Gain)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan holdings: %w", err)
	}
	return holdings, nil
}

func (p *Postgres) AddHolding(ctx context.Context, userID string, h models.Holding) (*models.Holding, error) {
	err := p.Pool.QueryRow(ctx, `
INSERT INTO holdings (user_id, name, ticker, value, gain)
VALUES ($1, $2, $3, $4::numeric, $5::numeric)
RETURNING id`,
		userID, h.Name, h.Ticker, h.Value.String(), h.Gain.String(),
	).Scan(&h.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: add holding: %w", err)
	}
	return &h, nil
}

func (p *Postgres) DeleteHolding(ctx context.Context, userID string, id int64) error {
	tag, err := p.Pool.Exec(ctx, "DELETE FROM holdings WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("postgres: delete holding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func parseDecimal(text string, dst *decimal.Decimal) error {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", text, err)
	}
	*dst = d
	return nil
}
