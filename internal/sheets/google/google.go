package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"propledger/internal/core"
	ports "propledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.InstanceWriter = (*Client)(nil)

// New returns a writer appending to one tab of spreadsheetID. Credentials come
// from the environment, see credentialsFromEnv.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// credentialsFromEnv returns service account key material. Inline JSON wins
// over a key file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	}

	for _, key := range []string{"GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
		path := strings.TrimSpace(os.Getenv(key))
		if path == "" {
			continue
		}
		slog.DebugContext(ctx, "Reading service account credentials", "env", key, "path", path)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return raw, nil
	}

	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	creds, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// AppendInstance appends one row per transaction after the last row of the
// sheet and returns the updated range.
func (c *Client) AppendInstance(ctx context.Context, inst core.TransactionInstance) (string, error) {
	if err := inst.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]interface{}{instanceRow(inst)}}
	rng := fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn())
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append row: %w", err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Transaction appended to sheet",
		"id", inst.ID,
		"template_id", inst.TemplateID,
		"range", ref)
	return ref, nil
}

// instanceRow renders a transaction in the column order of ports.Header.
func instanceRow(inst core.TransactionInstance) []interface{} {
	supplier := ""
	if inst.SupplierID != nil {
		supplier = strconv.FormatInt(*inst.SupplierID, 10)
	}
	return []interface{}{
		inst.TxDate.String(),
		string(inst.Kind),
		inst.Description,
		inst.Amount.StringFixed(2),
		inst.Category,
		supplier,
		strconv.FormatInt(inst.TemplateID, 10),
		inst.OccurrenceIndex,
		strconv.FormatInt(inst.ID, 10),
	}
}

func lastColumn() string {
	return string(rune('A' + len(ports.Header) - 1))
}
