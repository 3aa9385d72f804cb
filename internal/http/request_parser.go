package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"propledger/internal/core"
)

const maxBodyBytes = 1 << 20

// requestError is a malformed request: bad JSON, a non-numeric path id. It maps
// to 400, unlike a well-formed request that fails validation.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if dec.More() {
		return badRequest("invalid JSON body: unexpected data after object")
	}
	return nil
}

// pathID parses a positive integer chi URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return n, nil
}

// templateRequest is the create payload for a recurring template.
type templateRequest struct {
	ProjectID      int64           `json:"project_id"`
	Description    string          `json:"description"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	SupplierID     *int64          `json:"supplier_id"`
	Notes          string          `json:"notes"`
	DayOfMonth     int             `json:"day_of_month"`
	StartDate      string          `json:"start_date"`
	EndType        string          `json:"end_type"`
	MaxOccurrences *int            `json:"max_occurrences"`
	EndDate        string          `json:"end_date"`
}

func (req templateRequest) toTemplate() (core.RecurringTemplate, error) {
	start, err := parseDateField("start_date", req.StartDate)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	end, err := parseEndCondition(req.EndType, req.MaxOccurrences, req.EndDate)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	return core.RecurringTemplate{
		ProjectID:   req.ProjectID,
		Description: sanitizeInput(req.Description),
		Kind:        core.Kind(strings.TrimSpace(req.Type)),
		Amount:      req.Amount,
		Category:    sanitizeInput(req.Category),
		SupplierID:  req.SupplierID,
		Notes:       req.Notes,
		DayOfMonth:  req.DayOfMonth,
		StartDate:   start,
		End:         end,
		IsActive:    true,
	}, nil
}

// templatePatchRequest is the update payload. Absent fields stay unchanged; the
// end condition is replaced as a whole and only when end_type is present.
type templatePatchRequest struct {
	Description    *string          `json:"description"`
	Amount         *decimal.Decimal `json:"amount"`
	Category       *string          `json:"category"`
	SupplierID     *int64           `json:"supplier_id"`
	Notes          *string          `json:"notes"`
	DayOfMonth     *int             `json:"day_of_month"`
	StartDate      *string          `json:"start_date"`
	EndType        *string          `json:"end_type"`
	MaxOccurrences *int             `json:"max_occurrences"`
	EndDate        *string          `json:"end_date"`
	IsActive       *bool            `json:"is_active"`
}

func (req templatePatchRequest) toPatch() (core.TemplatePatch, error) {
	patch := core.TemplatePatch{
		Amount:     req.Amount,
		SupplierID: req.SupplierID,
		Notes:      req.Notes,
		DayOfMonth: req.DayOfMonth,
		IsActive:   req.IsActive,
	}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		patch.Description = &d
	}
	if req.Category != nil {
		c := sanitizeInput(*req.Category)
		patch.Category = &c
	}
	if req.StartDate != nil {
		start, err := parseDateField("start_date", *req.StartDate)
		if err != nil {
			return core.TemplatePatch{}, err
		}
		patch.StartDate = &start
	}

	if req.EndType == nil {
		if req.MaxOccurrences != nil || req.EndDate != nil {
			return core.TemplatePatch{}, core.Invalid("end_type", "is required when changing the end condition")
		}
		return patch, nil
	}
	endDate := ""
	if req.EndDate != nil {
		endDate = *req.EndDate
	}
	end, err := parseEndCondition(*req.EndType, req.MaxOccurrences, endDate)
	if err != nil {
		return core.TemplatePatch{}, err
	}
	patch.End = &end
	return patch, nil
}

// instancePatchRequest edits one generated transaction.
type instancePatchRequest struct {
	TxDate   *string          `json:"tx_date"`
	Amount   *decimal.Decimal `json:"amount"`
	Category *string          `json:"category"`
	Notes    *string          `json:"notes"`
}

func (req instancePatchRequest) toPatch() (core.InstancePatch, error) {
	patch := core.InstancePatch{Amount: req.Amount, Notes: req.Notes}
	if req.TxDate != nil {
		d, err := parseDateField("tx_date", *req.TxDate)
		if err != nil {
			return core.InstancePatch{}, err
		}
		patch.TxDate = &d
	}
	if req.Category != nil {
		c := sanitizeInput(*req.Category)
		patch.Category = &c
	}
	return patch, nil
}

// parseEndCondition accepts the display names ("After Occurrences") as well as
// their snake_case forms. An empty type means the template never ends.
func parseEndCondition(endType string, maxOccurrences *int, endDate string) (core.EndCondition, error) {
	switch normalizeEndType(endType) {
	case core.EndNever:
		return core.NoEnd(), nil
	case core.EndAfterOccurrences:
		if maxOccurrences == nil {
			return core.EndCondition{}, core.Invalid("max_occurrences", "is required when end type is After Occurrences")
		}
		return core.AfterOccurrences(*maxOccurrences), nil
	case core.EndOnDate:
		if strings.TrimSpace(endDate) == "" {
			return core.EndCondition{}, core.Invalid("end_date", "is required when end type is On Date")
		}
		d, err := parseDateField("end_date", endDate)
		if err != nil {
			return core.EndCondition{}, err
		}
		return core.OnDate(d), nil
	}
	return core.EndCondition{}, core.Invalid("end_type", "must be one of No End, After Occurrences, On Date")
}

func normalizeEndType(s string) core.EndType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "no end", "no_end", "never":
		return core.EndNever
	case "after occurrences", "after_occurrences":
		return core.EndAfterOccurrences
	case "on date", "on_date":
		return core.EndOnDate
	}
	return core.EndType(s)
}

func parseDateField(field, value string) (core.Date, error) {
	if strings.TrimSpace(value) == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, core.Invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// futureOccurrencesQuery holds ?start_date=&months_ahead=. Zero values let the
// service apply its defaults.
type futureOccurrencesQuery struct {
	From        core.Date
	MonthsAhead int
}

func parseFutureOccurrencesQuery(r *http.Request) (futureOccurrencesQuery, error) {
	q := r.URL.Query()
	var out futureOccurrencesQuery

	from, err := parseDateField("start_date", q.Get("start_date"))
	if err != nil {
		return out, err
	}
	out.From = from

	if v := strings.TrimSpace(q.Get("months_ahead")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return out, core.Invalid("months_ahead", "must be an integer")
		}
		if n == 0 {
			// 0 would otherwise silently mean "default".
			return out, core.Invalid("months_ahead", "must be between 1 and 24")
		}
		out.MonthsAhead = n
	}
	return out, nil
}
