package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BudgetRow is one parsed line of the budget sheet.
type BudgetRow struct {
	Account  string
	Category string
	Ceiling  decimal.Decimal
}

// parseBudgetSheet converts a values matrix (as returned by Sheets API) into
// budget rows. The first row must name the Category and Ceiling columns;
// Account is optional. Rows with a blank category or an unparseable ceiling
// are skipped and counted.
func parseBudgetSheet(values [][]any) ([]BudgetRow, int, error) {
	if len(values) == 0 {
		return nil, 0, nil
	}
	headers := toStrings(values[0])
	colCategory := indexOf(headers, "Category")
	colCeiling := indexOf(headers, "Ceiling")
	colAccount := indexOf(headers, "Account")
	if colCategory == -1 || colCeiling == -1 {
		missing := make([]string, 0, 2)
		if colCategory == -1 {
			missing = append(missing, "Category")
		}
		if colCeiling == -1 {
			missing = append(missing, "Ceiling")
		}
		return nil, 0, fmt.Errorf("unexpected budget header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var (
		out     []BudgetRow
		skipped int
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		category := safeGet(row, colCategory)
		raw := safeGet(row, colCeiling)
		if category == "" && raw == "" {
			continue
		}
		ceiling, ok := parseAmount(raw)
		if category == "" || strings.HasPrefix(category, "#") || !ok {
			skipped++
			continue
		}
		out = append(out, BudgetRow{Account: safeGet(row, colAccount), Category: category, Ceiling: ceiling})
	}
	return out, skipped, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmount accepts "1234.5", "1234,5" and "1.234,50". A currency symbol
// prefix such as "R$" is ignored.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimLeft(s, "R$€ "))
	if s == "" {
		return decimal.Decimal{}, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}
