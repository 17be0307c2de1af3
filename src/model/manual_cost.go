package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ManualCost is a cost entered by hand (chemicals, electricity, repairs without a scan).
type ManualCost struct {
	ID        int64
	Source    string
	Date      time.Time
	Vendor    string
	Amount    decimal.Decimal
	Currency  string
	Category  *string
	Note      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const manualCostColumns = `id, source, date, vendor, amount, currency, category, note, created_at, updated_at`

func scanManualCost(s rowScanner) (*ManualCost, error) {
	var mc ManualCost
	var date, createdAt, updatedAt string
	var category, note sql.NullString
	if err := s.Scan(&mc.ID, &mc.Source, &date, &mc.Vendor, &mc.Amount, &mc.Currency,
		&category, &note, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if t := parseTime(sql.NullString{String: date, Valid: true}); t != nil {
		mc.Date = *t
	}
	if t := parseTime(sql.NullString{String: createdAt, Valid: true}); t != nil {
		mc.CreatedAt = *t
	}
	if t := parseTime(sql.NullString{String: updatedAt, Valid: true}); t != nil {
		mc.UpdatedAt = *t
	}
	if category.Valid {
		mc.Category = &category.String
	}
	if note.Valid {
		mc.Note = &note.String
	}
	return &mc, nil
}

// CreateManualCost inserts mc and fills in its id and timestamps.
func CreateManualCost(ctx context.Context, q DBTX, mc *ManualCost, now time.Time) error {
	if mc.Source == "" {
		mc.Source = "manual"
	}
	mc.CreatedAt = now.UTC()
	mc.UpdatedAt = now.UTC()
	res, err := q.ExecContext(ctx, `
	INSERT INTO manual_costs (source, date, vendor, amount, currency, category, note, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mc.Source, mc.Date.Format(DateLayout), mc.Vendor, mc.Amount, mc.Currency, mc.Category, mc.Note,
		formatTime(&mc.CreatedAt), formatTime(&mc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert manual cost: %w", err)
	}
	mc.ID, err = res.LastInsertId()
	return err
}

// GetManualCost loads one manual cost by id.
func GetManualCost(ctx context.Context, q DBTX, id int64) (*ManualCost, error) {
	row := q.QueryRowContext(ctx, `SELECT `+manualCostColumns+` FROM manual_costs WHERE id = ?`, id)
	mc, err := scanManualCost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return mc, err
}

// ListManualCosts returns manual costs newest first, optionally limited to one year.
func ListManualCosts(ctx context.Context, q DBTX, year int) ([]ManualCost, error) {
	query := `SELECT ` + manualCostColumns + ` FROM manual_costs`
	var args []any
	if year > 0 {
		query += ` WHERE substr(date, 1, 4) = ?`
		args = append(args, fmt.Sprintf("%04d", year))
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list manual costs: %w", err)
	}
	defer rows.Close()

	costs := []ManualCost{}
	for rows.Next() {
		mc, err := scanManualCost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manual cost: %w", err)
		}
		costs = append(costs, *mc)
	}
	return costs, rows.Err()
}

// UpdateManualCost overwrites every editable column of mc.
func UpdateManualCost(ctx context.Context, q DBTX, mc *ManualCost, now time.Time) error {
	mc.UpdatedAt = now.UTC()
	res, err := q.ExecContext(ctx, `
	UPDATE manual_costs SET date = ?, vendor = ?, amount = ?, currency = ?, category = ?, note = ?, updated_at = ?
	WHERE id = ?`,
		mc.Date.Format(DateLayout), mc.Vendor, mc.Amount, mc.Currency, mc.Category, mc.Note,
		formatTime(&mc.UpdatedAt), mc.ID,
	)
	if err != nil {
		return fmt.Errorf("update manual cost %d: %w", mc.ID, err)
	}
	return requireAffected(res)
}

// DeleteManualCost removes the manual cost with the given id.
func DeleteManualCost(ctx context.Context, q DBTX, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM manual_costs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete manual cost %d: %w", id, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
