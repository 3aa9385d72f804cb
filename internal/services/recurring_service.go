package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"propledger/internal/core"
	"propledger/internal/schedule"
	"propledger/internal/storage"
)

var (
	ErrTemplateNotFound = errors.New("recurring template not found")
	ErrInstanceNotFound = errors.New("transaction not found")
)

// Store is the persistence the recurring service needs. *storage.SQLiteRepository
// satisfies it.
type Store interface {
	CreateTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error)
	GetTemplate(ctx context.Context, id int64) (core.RecurringTemplate, error)
	ListTemplatesByProject(ctx context.Context, projectID int64) ([]core.RecurringTemplate, error)
	ListActiveTemplates(ctx context.Context) ([]core.RecurringTemplate, error)
	UpdateTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error)
	DeactivateTemplate(ctx context.Context, id int64) error
	DeleteTemplate(ctx context.Context, id int64) (bool, error)

	Histories(ctx context.Context, p schedule.Period) (map[int64]schedule.History, error)
	OccupiedPeriods(ctx context.Context, templateID int64) (map[schedule.Period]bool, error)
	InsertGenerated(ctx context.Context, req core.NewInstanceRequest) (core.TransactionInstance, bool, error)

	GetInstance(ctx context.Context, id int64) (core.TransactionInstance, error)
	ListInstances(ctx context.Context, templateID int64) ([]core.TransactionInstance, error)
	UpdateInstance(ctx context.Context, inst core.TransactionInstance) (core.TransactionInstance, error)
	SoftDeleteInstance(ctx context.Context, id int64) error
}

// EventPublisher announces generated instances to downstream consumers.
type EventPublisher interface {
	PublishInstanceGenerated(ctx context.Context, inst core.TransactionInstance) error
}

// GenerationResult reports one generation run for a month.
type GenerationResult struct {
	Period         schedule.Period
	GeneratedCount int
	Transactions   []core.TransactionInstance
	Skipped        []schedule.Skip
}

// RecurringService orchestrates recurring templates and their generated
// transactions across storage and messaging.
type RecurringService struct {
	store     Store
	publisher EventPublisher
	now       func() time.Time
}

// NewRecurringService creates the service. publisher may be nil, in which case
// no events are sent.
func NewRecurringService(store Store, publisher EventPublisher) *RecurringService {
	return &RecurringService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateTemplate validates and stores a template, then generates its instances
// for the current and the next month.
func (s *RecurringService) CreateTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error) {
	t.ID = 0
	t.IsActive = true
	if err := t.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}

	created, err := s.store.CreateTemplate(ctx, t)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("save template: %w", err)
	}

	current := schedule.PeriodOf(core.DateOf(s.now()))
	for _, p := range []schedule.Period{current, current.Next()} {
		if _, err := s.generateFor(ctx, []core.RecurringTemplate{created}, p); err != nil {
			// The template is stored; the processor fills the gap on its next run.
			slog.ErrorContext(ctx, "Failed to generate initial instances",
				"template_id", created.ID,
				"period", p.String(),
				"error", err)
		}
	}

	return created, nil
}

func (s *RecurringService) GetTemplate(ctx context.Context, id int64) (core.RecurringTemplate, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return core.RecurringTemplate{}, templateErr(id, err)
	}
	return t, nil
}

func (s *RecurringService) ListTemplates(ctx context.Context, projectID int64) ([]core.RecurringTemplate, error) {
	if projectID <= 0 {
		return nil, core.Invalid("project_id", "is required")
	}
	return s.store.ListTemplatesByProject(ctx, projectID)
}

// UpdateTemplate applies patch to a template. Instances already generated keep
// their values; only future generation follows the new definition.
func (s *RecurringService) UpdateTemplate(ctx context.Context, id int64, patch core.TemplatePatch) (core.RecurringTemplate, error) {
	current, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return core.RecurringTemplate{}, templateErr(id, err)
	}
	if patch.Empty() {
		return current, nil
	}

	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}

	updated, err := s.store.UpdateTemplate(ctx, next)
	if err != nil {
		return core.RecurringTemplate{}, templateErr(id, err)
	}
	slog.InfoContext(ctx, "Recurring template updated", "id", id)
	return updated, nil
}

func (s *RecurringService) DeactivateTemplate(ctx context.Context, id int64) error {
	if err := s.store.DeactivateTemplate(ctx, id); err != nil {
		return templateErr(id, err)
	}
	return nil
}

// DeleteTemplate removes a template nothing references yet. A template with
// generated transactions is deactivated instead; deleted reports which happened.
func (s *RecurringService) DeleteTemplate(ctx context.Context, id int64) (deleted bool, err error) {
	deleted, err = s.store.DeleteTemplate(ctx, id)
	if err != nil {
		return false, templateErr(id, err)
	}
	return deleted, nil
}

// ListTemplateInstances returns the live transactions generated from a template.
func (s *RecurringService) ListTemplateInstances(ctx context.Context, templateID int64) ([]core.TransactionInstance, error) {
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return nil, templateErr(templateID, err)
	}
	return s.store.ListInstances(ctx, templateID)
}

// UpdateInstance edits a generated transaction. The month it was generated
// for does not change, so editing never frees the month for regeneration.
func (s *RecurringService) UpdateInstance(ctx context.Context, id int64, patch core.InstancePatch) (core.TransactionInstance, error) {
	current, err := s.store.GetInstance(ctx, id)
	if err != nil {
		return core.TransactionInstance{}, instanceErr(id, err)
	}
	if current.DeletedAt != nil {
		return core.TransactionInstance{}, ErrInstanceNotFound
	}

	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return core.TransactionInstance{}, err
	}

	updated, err := s.store.UpdateInstance(ctx, next)
	if err != nil {
		return core.TransactionInstance{}, instanceErr(id, err)
	}
	return updated, nil
}

// DeleteInstance soft deletes a transaction. It still counts as an occurrence.
func (s *RecurringService) DeleteInstance(ctx context.Context, id int64) error {
	if err := s.store.SoftDeleteInstance(ctx, id); err != nil {
		return instanceErr(id, err)
	}
	return nil
}

// GenerateForMonth generates the due instances of every active template for
// (year, month). Running it again for the same month generates nothing new.
func (s *RecurringService) GenerateForMonth(ctx context.Context, year, month int) (GenerationResult, error) {
	p := schedule.Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return GenerationResult{Period: p}, err
	}

	templates, err := s.store.ListActiveTemplates(ctx)
	if err != nil {
		return GenerationResult{Period: p}, fmt.Errorf("list active templates: %w", err)
	}
	return s.generateFor(ctx, templates, p)
}

func (s *RecurringService) generateFor(ctx context.Context, templates []core.RecurringTemplate, p schedule.Period) (GenerationResult, error) {
	histories, err := s.store.Histories(ctx, p)
	if err != nil {
		return GenerationResult{Period: p}, fmt.Errorf("load histories: %w", err)
	}

	plan, planErr := schedule.Plan(templates, p, histories)
	if planErr != nil {
		// Stored templates were validated on write; report and keep going.
		slog.WarnContext(ctx, "Skipping malformed recurring templates",
			"period", p.String(),
			"error", planErr)
	}

	res := GenerationResult{Period: p, Skipped: plan.Skipped}
	for _, req := range plan.Requests {
		inst, inserted, err := s.store.InsertGenerated(ctx, req)
		if err != nil {
			return res, fmt.Errorf("persist instance for template %d: %w", req.TemplateID, err)
		}
		if !inserted {
			res.Skipped = append(res.Skipped, schedule.Skip{TemplateID: req.TemplateID, Reason: schedule.ReasonAlreadyGenerated})
			continue
		}
		res.Transactions = append(res.Transactions, inst)
		res.GeneratedCount++
		s.publish(ctx, inst)
	}

	slog.InfoContext(ctx, "Recurring generation complete",
		"period", p.String(),
		"generated", res.GeneratedCount,
		"skipped", len(res.Skipped),
		"templates", len(templates))

	return res, nil
}

// publish never fails the caller: the instance is already stored.
func (s *RecurringService) publish(ctx context.Context, inst core.TransactionInstance) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping generated event", "id", inst.ID)
		return
	}
	if err := s.publisher.PublishInstanceGenerated(ctx, inst); err != nil {
		slog.ErrorContext(ctx, "Failed to publish generated event",
			"id", inst.ID,
			"template_id", inst.TemplateID,
			"error", err)
	}
}

// FutureOccurrences previews the occurrences a template would produce over the
// monthsAhead months starting with from. Zero monthsAhead means the default.
func (s *RecurringService) FutureOccurrences(ctx context.Context, templateID int64, from core.Date, monthsAhead int) ([]schedule.Occurrence, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, templateErr(templateID, err)
	}
	if monthsAhead == 0 {
		monthsAhead = schedule.DefaultMonthsAhead
	}
	if from.IsZero() {
		from = core.DateOf(s.now())
	}

	occupied, err := s.store.OccupiedPeriods(ctx, templateID)
	if err != nil {
		return nil, err
	}
	first := schedule.PeriodOf(from)
	generated := 0
	existing := make(map[schedule.Period]bool, len(occupied))
	for p := range occupied {
		if p.Before(first) {
			generated++
			continue
		}
		existing[p] = true
	}

	return schedule.FutureOccurrences(t, from, monthsAhead, generated, existing)
}

func templateErr(id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrTemplateNotFound
	}
	return fmt.Errorf("template %d: %w", id, err)
}

func instanceErr(id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInstanceNotFound
	}
	return fmt.Errorf("transaction %d: %w", id, err)
}
