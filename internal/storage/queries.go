package storage

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

const templateColumns = `id, project_id, description, kind, amount, category, supplier_id, notes,
	day_of_month, start_date, end_type, max_occurrences, end_date, is_active, created_at, updated_at`

const transactionColumns = `id, project_id, recurring_template_id, tx_date, period_year, period_month,
	kind, amount, description, category, supplier_id, notes, occurrence_index, is_generated,
	created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (RecurringTemplate, error) {
	var i RecurringTemplate
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Description,
		&i.Kind,
		&i.Amount,
		&i.Category,
		&i.SupplierID,
		&i.Notes,
		&i.DayOfMonth,
		&i.StartDate,
		&i.EndType,
		&i.MaxOccurrences,
		&i.EndDate,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.RecurringTemplateID,
		&i.TxDate,
		&i.PeriodYear,
		&i.PeriodMonth,
		&i.Kind,
		&i.Amount,
		&i.Description,
		&i.Category,
		&i.SupplierID,
		&i.Notes,
		&i.OccurrenceIndex,
		&i.IsGenerated,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.DeletedAt,
	)
	return i, err
}

func collectTemplates(rows *sql.Rows) ([]RecurringTemplate, error) {
	defer rows.Close()
	var items []RecurringTemplate
	for rows.Next() {
		i, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func collectTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTemplate = `INSERT INTO recurring_templates (
	project_id, description, kind, amount, category, supplier_id, notes,
	day_of_month, start_date, end_type, max_occurrences, end_date, is_active, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + templateColumns

type TemplateParams struct {
	ProjectID      int64
	Description    string
	Kind           string
	Amount         decimal.Decimal
	Category       string
	SupplierID     sql.NullInt64
	Notes          string
	DayOfMonth     int64
	StartDate      string
	EndType        string
	MaxOccurrences sql.NullInt64
	EndDate        sql.NullString
	IsActive       bool
}

func (q *Queries) CreateTemplate(ctx context.Context, arg TemplateParams, now string) (RecurringTemplate, error) {
	row := q.db.QueryRowContext(ctx, createTemplate,
		arg.ProjectID,
		arg.Description,
		arg.Kind,
		arg.Amount,
		arg.Category,
		arg.SupplierID,
		arg.Notes,
		arg.DayOfMonth,
		arg.StartDate,
		arg.EndType,
		arg.MaxOccurrences,
		arg.EndDate,
		arg.IsActive,
		now,
		now,
	)
	return scanTemplate(row)
}

const getTemplate = `SELECT ` + templateColumns + ` FROM recurring_templates WHERE id = ?`

func (q *Queries) GetTemplate(ctx context.Context, id int64) (RecurringTemplate, error) {
	return scanTemplate(q.db.QueryRowContext(ctx, getTemplate, id))
}

const listTemplatesByProject = `SELECT ` + templateColumns + `
FROM recurring_templates WHERE project_id = ? ORDER BY id`

func (q *Queries) ListTemplatesByProject(ctx context.Context, projectID int64) ([]RecurringTemplate, error) {
	rows, err := q.db.QueryContext(ctx, listTemplatesByProject, projectID)
	if err != nil {
		return nil, err
	}
	return collectTemplates(rows)
}

const listActiveTemplates = `SELECT ` + templateColumns + `
FROM recurring_templates WHERE is_active = 1 ORDER BY id`

func (q *Queries) ListActiveTemplates(ctx context.Context) ([]RecurringTemplate, error) {
	rows, err := q.db.QueryContext(ctx, listActiveTemplates)
	if err != nil {
		return nil, err
	}
	return collectTemplates(rows)
}

const updateTemplate = `UPDATE recurring_templates SET
	description = ?, amount = ?, category = ?, supplier_id = ?, notes = ?, day_of_month = ?,
	start_date = ?, end_type = ?, max_occurrences = ?, end_date = ?, is_active = ?, updated_at = ?
WHERE id = ?
RETURNING ` + templateColumns

func (q *Queries) UpdateTemplate(ctx context.Context, id int64, arg TemplateParams, now string) (RecurringTemplate, error) {
	row := q.db.QueryRowContext(ctx, updateTemplate,
		arg.Description,
		arg.Amount,
		arg.Category,
		arg.SupplierID,
		arg.Notes,
		arg.DayOfMonth,
		arg.StartDate,
		arg.EndType,
		arg.MaxOccurrences,
		arg.EndDate,
		arg.IsActive,
		now,
		id,
	)
	return scanTemplate(row)
}

const deactivateTemplate = `UPDATE recurring_templates SET is_active = 0, updated_at = ? WHERE id = ?`

func (q *Queries) DeactivateTemplate(ctx context.Context, id int64, now string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deactivateTemplate, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTemplate = `DELETE FROM recurring_templates WHERE id = ?`

func (q *Queries) DeleteTemplate(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTemplate, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countTemplateTransactions = `SELECT COUNT(*) FROM transactions WHERE recurring_template_id = ?`

// CountTemplateTransactions counts every instance of a template, soft-deleted included.
func (q *Queries) CountTemplateTransactions(ctx context.Context, templateID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTemplateTransactions, templateID).Scan(&n)
	return n, err
}

const occurrenceStats = `SELECT
	recurring_template_id,
	SUM(CASE WHEN period_year * 12 + period_month < ? THEN 1 ELSE 0 END),
	MAX(CASE WHEN period_year = ? AND period_month = ? THEN 1 ELSE 0 END)
FROM transactions
WHERE recurring_template_id IS NOT NULL
GROUP BY recurring_template_id`

func (q *Queries) OccurrenceStats(ctx context.Context, year, month int64) ([]OccurrenceStat, error) {
	rows, err := q.db.QueryContext(ctx, occurrenceStats, year*12+month, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OccurrenceStat
	for rows.Next() {
		var i OccurrenceStat
		var exists int64
		if err := rows.Scan(&i.TemplateID, &i.Before, &exists); err != nil {
			return nil, err
		}
		i.ExistsInMonth = exists > 0
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertGenerated = `INSERT INTO transactions (
	project_id, recurring_template_id, tx_date, period_year, period_month, kind, amount,
	description, category, supplier_id, notes, occurrence_index, is_generated, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
ON CONFLICT (recurring_template_id, period_year, period_month) DO NOTHING
RETURNING ` + transactionColumns

type InsertGeneratedParams struct {
	ProjectID       int64
	TemplateID      int64
	TxDate          string
	PeriodYear      int64
	PeriodMonth     int64
	Kind            string
	Amount          decimal.Decimal
	Description     string
	Category        string
	SupplierID      sql.NullInt64
	Notes           string
	OccurrenceIndex int64
}

// InsertGenerated returns sql.ErrNoRows when the month already holds an
// instance of the template.
func (q *Queries) InsertGenerated(ctx context.Context, arg InsertGeneratedParams, now string) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, insertGenerated,
		arg.ProjectID,
		arg.TemplateID,
		arg.TxDate,
		arg.PeriodYear,
		arg.PeriodMonth,
		arg.Kind,
		arg.Amount,
		arg.Description,
		arg.Category,
		arg.SupplierID,
		arg.Notes,
		arg.OccurrenceIndex,
		now,
		now,
	)
	return scanTransaction(row)
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listTemplateTransactions = `SELECT ` + transactionColumns + `
FROM transactions
WHERE recurring_template_id = ? AND deleted_at IS NULL
ORDER BY period_year, period_month, id`

func (q *Queries) ListTemplateTransactions(ctx context.Context, templateID int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTemplateTransactions, templateID)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

const listTemplatePeriods = `SELECT period_year, period_month FROM transactions
WHERE recurring_template_id = ? ORDER BY period_year, period_month`

type PeriodRow struct {
	Year  int64
	Month int64
}

// ListTemplatePeriods returns every occupied month, soft-deleted instances included.
func (q *Queries) ListTemplatePeriods(ctx context.Context, templateID int64) ([]PeriodRow, error) {
	rows, err := q.db.QueryContext(ctx, listTemplatePeriods, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PeriodRow
	for rows.Next() {
		var i PeriodRow
		if err := rows.Scan(&i.Year, &i.Month); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTransaction = `UPDATE transactions SET
	tx_date = ?, amount = ?, category = ?, notes = ?, updated_at = ?
WHERE id = ? AND deleted_at IS NULL
RETURNING ` + transactionColumns

type UpdateTransactionParams struct {
	ID       int64
	TxDate   string
	Amount   decimal.Decimal
	Category string
	Notes    string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams, now string) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, updateTransaction,
		arg.TxDate,
		arg.Amount,
		arg.Category,
		arg.Notes,
		now,
		arg.ID,
	)
	return scanTransaction(row)
}

const softDeleteTransaction = `UPDATE transactions SET deleted_at = ?, updated_at = ?
WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) SoftDeleteTransaction(ctx context.Context, id int64, now string) (int64, error) {
	res, err := q.db.ExecContext(ctx, softDeleteTransaction, now, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
