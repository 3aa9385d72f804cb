package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"propledger/internal/core"
	"propledger/internal/schedule"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a template or transaction does not exist.
var ErrNotFound = errors.New("not found")

const timestampLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialising on one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timestampLayout)
}

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error) {
	row, err := r.queries.CreateTemplate(ctx, templateParams(t), r.timestamp())
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("create template: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template saved",
		"id", row.ID,
		"project_id", row.ProjectID,
		"end_type", row.EndType)

	return toTemplate(row)
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id int64) (core.RecurringTemplate, error) {
	row, err := r.queries.GetTemplate(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTemplate{}, ErrNotFound
	}
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("get template %d: %w", id, err)
	}
	return toTemplate(row)
}

func (r *SQLiteRepository) ListTemplatesByProject(ctx context.Context, projectID int64) ([]core.RecurringTemplate, error) {
	rows, err := r.queries.ListTemplatesByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list templates for project %d: %w", projectID, err)
	}
	return toTemplates(rows)
}

// ListActiveTemplates returns active templates ordered by id.
func (r *SQLiteRepository) ListActiveTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	rows, err := r.queries.ListActiveTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	return toTemplates(rows)
}

// UpdateTemplate overwrites the mutable fields of t. Project and kind are fixed
// at creation.
func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error) {
	row, err := r.queries.UpdateTemplate(ctx, t.ID, templateParams(t), r.timestamp())
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTemplate{}, ErrNotFound
	}
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("update template %d: %w", t.ID, err)
	}
	return toTemplate(row)
}

func (r *SQLiteRepository) DeactivateTemplate(ctx context.Context, id int64) error {
	n, err := r.queries.DeactivateTemplate(ctx, id, r.timestamp())
	if err != nil {
		return fmt.Errorf("deactivate template %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Recurring template deactivated", "id", id)
	return nil
}

// DeleteTemplate removes a template that no transaction references. A
// referenced template is deactivated instead and deleted is false.
func (r *SQLiteRepository) DeleteTemplate(ctx context.Context, id int64) (deleted bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	qtx := r.queries.WithTx(tx)

	refs, err := qtx.CountTemplateTransactions(ctx, id)
	if err != nil {
		return false, fmt.Errorf("count transactions of template %d: %w", id, err)
	}

	var n int64
	if refs > 0 {
		n, err = qtx.DeactivateTemplate(ctx, id, r.timestamp())
	} else {
		n, err = qtx.DeleteTemplate(ctx, id)
	}
	if err != nil {
		return false, fmt.Errorf("delete template %d: %w", id, err)
	}
	if n == 0 {
		err = ErrNotFound
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template removed",
		"id", id,
		"hard_delete", refs == 0,
		"referenced_by", refs)
	return refs == 0, nil
}

// CountInstances counts every instance generated from a template, soft-deleted included.
func (r *SQLiteRepository) CountInstances(ctx context.Context, templateID int64) (int, error) {
	n, err := r.queries.CountTemplateTransactions(ctx, templateID)
	if err != nil {
		return 0, fmt.Errorf("count instances of template %d: %w", templateID, err)
	}
	return int(n), nil
}

// Histories returns, per template id, the instances generated before p and
// whether p already holds one. Templates without instances are absent.
func (r *SQLiteRepository) Histories(ctx context.Context, p schedule.Period) (map[int64]schedule.History, error) {
	stats, err := r.queries.OccurrenceStats(ctx, int64(p.Year), int64(p.Month))
	if err != nil {
		return nil, fmt.Errorf("occurrence stats for %s: %w", p, err)
	}
	out := make(map[int64]schedule.History, len(stats))
	for _, s := range stats {
		out[s.TemplateID] = schedule.History{Count: int(s.Before), ExistsInMonth: s.ExistsInMonth}
	}
	return out, nil
}

// OccupiedPeriods lists the months holding an instance of the template,
// soft-deleted instances included.
func (r *SQLiteRepository) OccupiedPeriods(ctx context.Context, templateID int64) (map[schedule.Period]bool, error) {
	rows, err := r.queries.ListTemplatePeriods(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("list periods of template %d: %w", templateID, err)
	}
	out := make(map[schedule.Period]bool, len(rows))
	for _, p := range rows {
		out[schedule.Period{Year: int(p.Year), Month: int(p.Month)}] = true
	}
	return out, nil
}

// InsertGenerated persists a generated instance. When the template already
// has an instance for the month nothing is written and inserted is false.
func (r *SQLiteRepository) InsertGenerated(ctx context.Context, req core.NewInstanceRequest) (inst core.TransactionInstance, inserted bool, err error) {
	row, err := r.queries.InsertGenerated(ctx, InsertGeneratedParams{
		ProjectID:       req.ProjectID,
		TemplateID:      req.TemplateID,
		TxDate:          req.TxDate.String(),
		PeriodYear:      int64(req.Year),
		PeriodMonth:     int64(req.Month),
		Kind:            string(req.Kind),
		Amount:          req.Amount,
		Description:     req.Description,
		Category:        req.Category,
		SupplierID:      nullInt64(req.SupplierID),
		Notes:           req.Notes,
		OccurrenceIndex: int64(req.OccurrenceIndex),
	}, r.timestamp())
	if errors.Is(err, sql.ErrNoRows) {
		slog.DebugContext(ctx, "Instance already generated for period",
			"template_id", req.TemplateID,
			"year", req.Year,
			"month", req.Month)
		return core.TransactionInstance{}, false, nil
	}
	if err != nil {
		return core.TransactionInstance{}, false, fmt.Errorf("insert generated instance for template %d: %w", req.TemplateID, err)
	}

	inst, err = toInstance(row)
	if err != nil {
		return core.TransactionInstance{}, false, err
	}
	return inst, true, nil
}

// GetInstance returns a transaction, soft-deleted or not.
func (r *SQLiteRepository) GetInstance(ctx context.Context, id int64) (core.TransactionInstance, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TransactionInstance{}, ErrNotFound
	}
	if err != nil {
		return core.TransactionInstance{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return toInstance(row)
}

// ListInstances returns the live instances of a template ordered by period.
func (r *SQLiteRepository) ListInstances(ctx context.Context, templateID int64) ([]core.TransactionInstance, error) {
	rows, err := r.queries.ListTemplateTransactions(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of template %d: %w", templateID, err)
	}
	out := make([]core.TransactionInstance, 0, len(rows))
	for _, row := range rows {
		inst, err := toInstance(row)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// UpdateInstance writes the editable fields of a live instance.
func (r *SQLiteRepository) UpdateInstance(ctx context.Context, inst core.TransactionInstance) (core.TransactionInstance, error) {
	row, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		ID:       inst.ID,
		TxDate:   inst.TxDate.String(),
		Amount:   inst.Amount,
		Category: inst.Category,
		Notes:    inst.Notes,
	}, r.timestamp())
	if errors.Is(err, sql.ErrNoRows) {
		return core.TransactionInstance{}, ErrNotFound
	}
	if err != nil {
		return core.TransactionInstance{}, fmt.Errorf("update transaction %d: %w", inst.ID, err)
	}
	return toInstance(row)
}

// SoftDeleteInstance marks a transaction deleted. Its month stays occupied.
func (r *SQLiteRepository) SoftDeleteInstance(ctx context.Context, id int64) error {
	n, err := r.queries.SoftDeleteTransaction(ctx, id, r.timestamp())
	if err != nil {
		return fmt.Errorf("soft delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction soft deleted", "id", id)
	return nil
}

func templateParams(t core.RecurringTemplate) TemplateParams {
	p := TemplateParams{
		ProjectID:   t.ProjectID,
		Description: t.Description,
		Kind:        string(t.Kind),
		Amount:      t.Amount,
		Category:    t.Category,
		SupplierID:  nullInt64(t.SupplierID),
		Notes:       t.Notes,
		DayOfMonth:  int64(t.DayOfMonth),
		StartDate:   t.StartDate.String(),
		EndType:     string(t.End.Type),
		IsActive:    t.IsActive,
	}
	switch t.End.Type {
	case core.EndAfterOccurrences:
		p.MaxOccurrences = sql.NullInt64{Int64: int64(t.End.MaxOccurrences), Valid: true}
	case core.EndOnDate:
		p.EndDate = sql.NullString{String: t.End.EndDate.String(), Valid: true}
	}
	return p
}

func toTemplates(rows []RecurringTemplate) ([]core.RecurringTemplate, error) {
	out := make([]core.RecurringTemplate, 0, len(rows))
	for _, row := range rows {
		t, err := toTemplate(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func toTemplate(row RecurringTemplate) (core.RecurringTemplate, error) {
	start, err := core.ParseDate(row.StartDate)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %d start_date: %w", row.ID, err)
	}
	end := core.EndCondition{Type: core.EndType(row.EndType)}
	if row.MaxOccurrences.Valid {
		end.MaxOccurrences = int(row.MaxOccurrences.Int64)
	}
	if row.EndDate.Valid {
		if end.EndDate, err = core.ParseDate(row.EndDate.String); err != nil {
			return core.RecurringTemplate{}, fmt.Errorf("template %d end_date: %w", row.ID, err)
		}
	}
	created, updated, err := parseTimestamps(row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %d: %w", row.ID, err)
	}
	return core.RecurringTemplate{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		Description: row.Description,
		Kind:        core.Kind(row.Kind),
		Amount:      row.Amount,
		Category:    row.Category,
		SupplierID:  int64Ptr(row.SupplierID),
		Notes:       row.Notes,
		DayOfMonth:  int(row.DayOfMonth),
		StartDate:   start,
		End:         end,
		IsActive:    row.IsActive,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func toInstance(row Transaction) (core.TransactionInstance, error) {
	date, err := core.ParseDate(row.TxDate)
	if err != nil {
		return core.TransactionInstance{}, fmt.Errorf("transaction %d tx_date: %w", row.ID, err)
	}
	created, updated, err := parseTimestamps(row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return core.TransactionInstance{}, fmt.Errorf("transaction %d: %w", row.ID, err)
	}
	inst := core.TransactionInstance{
		ID:              row.ID,
		TemplateID:      row.RecurringTemplateID.Int64,
		ProjectID:       row.ProjectID,
		TxDate:          date,
		PeriodYear:      int(row.PeriodYear),
		PeriodMonth:     int(row.PeriodMonth),
		Kind:            core.Kind(row.Kind),
		Amount:          row.Amount,
		Description:     row.Description,
		Category:        row.Category,
		SupplierID:      int64Ptr(row.SupplierID),
		Notes:           row.Notes,
		OccurrenceIndex: int(row.OccurrenceIndex),
		IsGenerated:     row.IsGenerated,
		CreatedAt:       created,
		UpdatedAt:       updated,
	}
	if row.DeletedAt.Valid {
		deleted, err := time.Parse(timestampLayout, row.DeletedAt.String)
		if err != nil {
			return core.TransactionInstance{}, fmt.Errorf("transaction %d deleted_at: %w", row.ID, err)
		}
		inst.DeletedAt = &deleted
	}
	return inst, nil
}

func parseTimestamps(created, updated string) (time.Time, time.Time, error) {
	c, err := time.Parse(timestampLayout, created)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("created_at: %w", err)
	}
	u, err := time.Parse(timestampLayout, updated)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("updated_at: %w", err)
	}
	return c, u, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
