package budgets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"yaml", "budgets.yaml", "budgets:\n  - category: food\n    ceiling: \"500.00\"\n  - account: A\n    category: food\n    ceiling: \"100\"\n"},
		{"toml", "budgets.toml", "[[budgets]]\ncategory = \"food\"\nceiling = \"500.00\"\n\n[[budgets]]\naccount = \"A\"\ncategory = \"food\"\nceiling = \"100\"\n"},
		{"json", "budgets.json", `{"budgets":[{"category":"food","ceiling":"500.00"},{"account":"A","category":"food","ceiling":"100"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewFileSource(write(t, tt.file, tt.body))
			require.NoError(t, err)

			got, err := src.GetBudgetCeilings(context.Background(), []string{"A"})
			require.NoError(t, err)
			assert.True(t, got["food"].Equal(decimal.NewFromInt(600)), "got %s", got["food"])

			other, err := src.GetBudgetCeilings(context.Background(), []string{"B"})
			require.NoError(t, err)
			assert.True(t, other["food"].Equal(decimal.NewFromInt(500)))
		})
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name, file, body string
	}{
		{"unknown extension", "budgets.ini", "x"},
		{"bad yaml", "budgets.yaml", "budgets: [oops"},
		{"missing category", "budgets.yaml", "budgets:\n  - ceiling: \"1\"\n"},
		{"bad ceiling", "budgets.yaml", "budgets:\n  - category: food\n    ceiling: lots\n"},
		{"duplicate", "budgets.yaml", "budgets:\n  - category: food\n    ceiling: \"1\"\n  - category: food\n    ceiling: \"2\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileSource(write(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFileSourceReloadsOnChange(t *testing.T) {
	path := write(t, "budgets.yml", "budgets:\n  - category: food\n    ceiling: \"10\"\n")
	src, err := NewFileSource(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("budgets:\n  - category: rent\n    ceiling: \"900\"\n"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	got, err := src.GetBudgetCeilings(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.True(t, got["rent"].Equal(decimal.NewFromInt(900)))
}
