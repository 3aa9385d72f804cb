package http

import (
	"time"

	"propledger/internal/core"
	"propledger/internal/schedule"
	"propledger/internal/services"
)

type templateResponse struct {
	ID             int64   `json:"id"`
	ProjectID      int64   `json:"project_id"`
	Description    string  `json:"description"`
	Type           string  `json:"type"`
	Amount         string  `json:"amount"`
	Category       string  `json:"category,omitempty"`
	SupplierID     *int64  `json:"supplier_id"`
	Notes          string  `json:"notes,omitempty"`
	DayOfMonth     int     `json:"day_of_month"`
	StartDate      string  `json:"start_date"`
	EndType        string  `json:"end_type"`
	MaxOccurrences *int    `json:"max_occurrences"`
	EndDate        *string `json:"end_date"`
	IsActive       bool    `json:"is_active"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// templateDetailResponse is a template together with what it generated.
type templateDetailResponse struct {
	templateResponse
	Transactions []instanceResponse `json:"transactions"`
}

type instanceResponse struct {
	ID              int64  `json:"id"`
	TemplateID      int64  `json:"recurring_template_id"`
	ProjectID       int64  `json:"project_id"`
	TxDate          string `json:"tx_date"`
	PeriodYear      int    `json:"period_year"`
	PeriodMonth     int    `json:"period_month"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	Description     string `json:"description"`
	Category        string `json:"category,omitempty"`
	SupplierID      *int64 `json:"supplier_id"`
	Notes           string `json:"notes,omitempty"`
	OccurrenceIndex int    `json:"occurrence_index"`
	IsGenerated     bool   `json:"is_generated"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type occurrenceResponse struct {
	Date            string `json:"date"`
	OccurrenceIndex int    `json:"occurrence_index"`
	Amount          string `json:"amount"`
	Description     string `json:"description"`
	Category        string `json:"category,omitempty"`
}

type futureOccurrencesResponse struct {
	TemplateID  int64                `json:"template_id"`
	Occurrences []occurrenceResponse `json:"occurrences"`
}

type skipResponse struct {
	TemplateID int64  `json:"template_id"`
	Reason     string `json:"reason"`
}

type generationResponse struct {
	Year           int                `json:"year"`
	Month          int                `json:"month"`
	GeneratedCount int                `json:"generated_count"`
	Transactions   []instanceResponse `json:"transactions"`
	Skipped        []skipResponse     `json:"skipped"`
}

type deleteTemplateResponse struct {
	ID          int64 `json:"id"`
	Deleted     bool  `json:"deleted"`
	Deactivated bool  `json:"deactivated"`
}

func newTemplateResponse(t core.RecurringTemplate) templateResponse {
	resp := templateResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Description: t.Description,
		Type:        string(t.Kind),
		Amount:      t.Amount.StringFixed(2),
		Category:    t.Category,
		SupplierID:  t.SupplierID,
		Notes:       t.Notes,
		DayOfMonth:  t.DayOfMonth,
		StartDate:   t.StartDate.String(),
		EndType:     string(t.End.Type),
		IsActive:    t.IsActive,
		CreatedAt:   formatTimestamp(t.CreatedAt),
		UpdatedAt:   formatTimestamp(t.UpdatedAt),
	}
	switch t.End.Type {
	case core.EndAfterOccurrences:
		n := t.End.MaxOccurrences
		resp.MaxOccurrences = &n
	case core.EndOnDate:
		d := t.End.EndDate.String()
		resp.EndDate = &d
	}
	return resp
}

func newTemplateResponses(ts []core.RecurringTemplate) []templateResponse {
	out := make([]templateResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTemplateResponse(t))
	}
	return out
}

func newInstanceResponse(i core.TransactionInstance) instanceResponse {
	return instanceResponse{
		ID:              i.ID,
		TemplateID:      i.TemplateID,
		ProjectID:       i.ProjectID,
		TxDate:          i.TxDate.String(),
		PeriodYear:      i.PeriodYear,
		PeriodMonth:     i.PeriodMonth,
		Type:            string(i.Kind),
		Amount:          i.Amount.StringFixed(2),
		Description:     i.Description,
		Category:        i.Category,
		SupplierID:      i.SupplierID,
		Notes:           i.Notes,
		OccurrenceIndex: i.OccurrenceIndex,
		IsGenerated:     i.IsGenerated,
		CreatedAt:       formatTimestamp(i.CreatedAt),
		UpdatedAt:       formatTimestamp(i.UpdatedAt),
	}
}

func newInstanceResponses(items []core.TransactionInstance) []instanceResponse {
	out := make([]instanceResponse, 0, len(items))
	for _, i := range items {
		out = append(out, newInstanceResponse(i))
	}
	return out
}

func newFutureOccurrencesResponse(templateID int64, occ []schedule.Occurrence) futureOccurrencesResponse {
	resp := futureOccurrencesResponse{
		TemplateID:  templateID,
		Occurrences: make([]occurrenceResponse, 0, len(occ)),
	}
	for _, o := range occ {
		resp.Occurrences = append(resp.Occurrences, occurrenceResponse{
			Date:            o.Date.String(),
			OccurrenceIndex: o.OccurrenceIndex,
			Amount:          o.Amount.StringFixed(2),
			Description:     o.Description,
			Category:        o.Category,
		})
	}
	return resp
}

func newGenerationResponse(res services.GenerationResult) generationResponse {
	resp := generationResponse{
		Year:           res.Period.Year,
		Month:          res.Period.Month,
		GeneratedCount: res.GeneratedCount,
		Transactions:   newInstanceResponses(res.Transactions),
		Skipped:        make([]skipResponse, 0, len(res.Skipped)),
	}
	for _, s := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skipResponse{TemplateID: s.TemplateID, Reason: string(s.Reason)})
	}
	return resp
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
