package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propledger/internal/core"
	"propledger/internal/schedule"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTemplate() core.RecurringTemplate {
	supplier := int64(11)
	return core.RecurringTemplate{
		ProjectID:   3,
		Description: "Gardening",
		Kind:        core.Expense,
		Amount:      decimal.RequireFromString("89.90"),
		Category:    "Maintenance",
		SupplierID:  &supplier,
		Notes:       "front courtyard",
		DayOfMonth:  31,
		StartDate:   core.NewDate(2024, 1, 1),
		End:         core.AfterOccurrences(6),
		IsActive:    true,
	}
}

func requestFor(t core.RecurringTemplate, year, month, index int) core.NewInstanceRequest {
	return core.NewInstanceRequest{
		TemplateID:      t.ID,
		ProjectID:       t.ProjectID,
		TxDate:          schedule.DayOfMonthClamp(t.DayOfMonth, year, month),
		Year:            year,
		Month:           month,
		Kind:            t.Kind,
		Amount:          t.Amount,
		Description:     t.Description,
		Category:        t.Category,
		SupplierID:      t.SupplierID,
		Notes:           t.Notes,
		OccurrenceIndex: index,
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateTemplate(ctx, sampleTemplate())
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.GetTemplate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gardening", got.Description)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("89.90")))
	assert.Equal(t, core.AfterOccurrences(6), got.End)
	assert.Equal(t, core.NewDate(2024, 1, 1), got.StartDate)
	require.NotNil(t, got.SupplierID)
	assert.Equal(t, int64(11), *got.SupplierID)
	assert.True(t, got.IsActive)
	assert.False(t, got.CreatedAt.IsZero())

	income := sampleTemplate()
	income.Kind = core.Income
	income.SupplierID = nil
	income.End = core.OnDate(core.NewDate(2024, 12, 31))
	second, err := repo.CreateTemplate(ctx, income)
	require.NoError(t, err)
	assert.Nil(t, second.SupplierID)
	assert.Equal(t, core.OnDate(core.NewDate(2024, 12, 31)), second.End)

	list, err := repo.ListTemplatesByProject(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Less(t, list[0].ID, list[1].ID)
}

func TestGetTemplate_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetTemplate(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndDeactivateTemplate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateTemplate(ctx, sampleTemplate())
	require.NoError(t, err)

	created.DayOfMonth = 5
	created.End = core.NoEnd()
	updated, err := repo.UpdateTemplate(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.DayOfMonth)
	assert.Equal(t, core.NoEnd(), updated.End)

	require.NoError(t, repo.DeactivateTemplate(ctx, created.ID))
	active, err := repo.ListActiveTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, repo.DeactivateTemplate(ctx, 404), ErrNotFound)
}

func TestInsertGenerated_OncePerMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tmpl, err := repo.CreateTemplate(ctx, sampleTemplate())
	require.NoError(t, err)

	inst, inserted, err := repo.InsertGenerated(ctx, requestFor(tmpl, 2024, 2, 1))
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, core.NewDate(2024, 2, 29), inst.TxDate)
	assert.True(t, inst.IsGenerated)
	assert.Equal(t, tmpl.ID, inst.TemplateID)

	_, inserted, err = repo.InsertGenerated(ctx, requestFor(tmpl, 2024, 2, 1))
	require.NoError(t, err)
	assert.False(t, inserted, "second insert for the same month must be a no-op")

	n, err := repo.CountInstances(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHistories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, err := repo.CreateTemplate(ctx, sampleTemplate())
	require.NoError(t, err)
	b, err := repo.CreateTemplate(ctx, sampleTemplate())
	require.NoError(t, err)

	for i, m := range []int{1, 2, 3} {
		_, _, err := repo.InsertGenerated(ctx, requestFor(a, 2024, m, i+1))
		require.NoError(t, err)
	}
	_, _, err = repo.InsertGenerated(ctx, requestFor(b, 2023, 12, 1))
	require.NoError(t, err)

	h, err := repo.Histories(ctx, schedule.Period{Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.Equal(t, schedule.History{Count: 2, ExistsInMonth: true}, h[a.ID])
	assert.Equal(t, schedule.History{Count: 1}, h[b.ID])
}

func TestSoftDeleteKeepsMonthOccupied(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tmpl, err := repo.CreateTemplate(ctx, sampleTemplate())
	require.NoError(t, err)
	inst, _, err := repo.InsertGenerated(ctx, requestFor(tmpl, 2024, 4, 1))
	require.NoError(t, err)

	require.NoError(t, repo.SoftDeleteInstance(ctx, inst.ID))
	assert.ErrorIs(t, repo.SoftDeleteInstance(ctx, inst.ID), ErrNotFound)

	live, err := repo.ListInstances(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Empty(t, live)

	got, err := repo.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	_, inserted, err := repo.InsertGenerated(ctx, requestFor(tmpl, 2024, 4, 1))
	require.NoError(t, err)
	assert.False(t, inserted, "a deleted month is not regenerated")

	periods, err := repo.OccupiedPeriods(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.True(t, periods[schedule.Period{Year: 2024, Month: 4}])

	_, err = repo.UpdateInstance(ctx, got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateInstance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tmpl, err := repo.CreateTemplate(ctx, sampleTemplate())
	require.NoError(t, err)
	inst, _, err := repo.InsertGenerated(ctx, requestFor(tmpl, 2024, 5, 1))
	require.NoError(t, err)

	inst.Amount = decimal.RequireFromString("95.00")
	inst.TxDate = core.NewDate(2024, 6, 2)
	inst.Notes = "paid late"
	updated, err := repo.UpdateInstance(ctx, inst)
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(95)))
	assert.Equal(t, core.NewDate(2024, 6, 2), updated.TxDate)
	assert.Equal(t, 5, updated.PeriodMonth)
	assert.Equal(t, "paid late", updated.Notes)
}

func TestDeleteTemplate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	unused, err := repo.CreateTemplate(ctx, sampleTemplate())
	require.NoError(t, err)
	deleted, err := repo.DeleteTemplate(ctx, unused.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = repo.GetTemplate(ctx, unused.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	used, err := repo.CreateTemplate(ctx, sampleTemplate())
	require.NoError(t, err)
	_, _, err = repo.InsertGenerated(ctx, requestFor(used, 2024, 1, 1))
	require.NoError(t, err)
	deleted, err = repo.DeleteTemplate(ctx, used.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	got, err := repo.GetTemplate(ctx, used.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = repo.DeleteTemplate(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTimestampsUseRepositoryClock(t *testing.T) {
	repo := newTestRepo(t)
	fixed := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	created, err := repo.CreateTemplate(context.Background(), sampleTemplate())
	require.NoError(t, err)
	assert.True(t, created.CreatedAt.Equal(fixed))
}
