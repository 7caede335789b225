package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finey/internal/cache"
	"finey/internal/core"
)

// DefaultSheetName is the tab holding the budget table.
const DefaultSheetName = "Budgets"

// valuesReader is the slice of the Sheets API the client uses.
type valuesReader interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (s sheetsValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Config selects the spreadsheet and the service account credentials.
// CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	CacheTTL        time.Duration
}

// Client reads budget ceilings from a sheet whose header row names the
// columns Category, Ceiling and, optionally, Account. Rows are cached for
// CacheTTL so analysis requests do not hit the Sheets API each time.
type Client struct {
	values        valuesReader
	spreadsheetID string
	sheetName     string
	rows          *cache.LRUCache[[]BudgetRow]
}

// New creates a Sheets client from service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(sheetsValues{svc: svc}, cfg), nil
}

func newClient(values valuesReader, cfg Config) *Client {
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = DefaultSheetName
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		values:        values,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheetName:     name,
		rows:          cache.NewLRUCache[[]BudgetRow](4, ttl),
	}
}

// RowCache exposes the row cache to the cache manager's sweeper.
func (c *Client) RowCache() cache.Cleaner { return c.rows }

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when no credentials are configured.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline JSON credentials")
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// GetBudgetCeilings sums, per category, the rows without an account and the
// rows of the selected accounts.
func (c *Client) GetBudgetCeilings(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return nil, err
	}
	want := map[string]bool{"": true}
	for _, id := range ids {
		want[id] = true
	}

	out := map[string]decimal.Decimal{}
	for _, r := range rows {
		if want[r.Account] {
			out[r.Category] = out[r.Category].Add(r.Ceiling)
		}
	}
	return out, nil
}

func (c *Client) readRows(ctx context.Context) ([]BudgetRow, error) {
	if rows, ok := c.rows.Get(c.sheetName); ok {
		return rows, nil
	}

	rng := fmt.Sprintf("%s!A:C", c.sheetName)
	values, err := c.values.Get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return nil, &core.UpstreamUnavailableError{Service: "google sheets", Err: fmt.Errorf("read %s: %w", rng, err)}
	}
	rows, skipped, err := parseBudgetSheet(values)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rng, err)
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped unparseable budget rows", "sheet", c.sheetName, "skipped", skipped)
	}
	c.rows.Set(c.sheetName, rows)
	return rows, nil
}

// InvalidateRowCache forces the next read to reach the Sheets API.
func (c *Client) InvalidateRowCache() {
	c.rows.Purge()
}
