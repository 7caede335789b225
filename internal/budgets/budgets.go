// Package budgets reads budget ceilings from a TOML, YAML or JSON file.
package budgets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Entry is one ceiling. An empty Account applies the ceiling to every
// account.
type Entry struct {
	Account  string `json:"account" yaml:"account" toml:"account"`
	Category string `json:"category" yaml:"category" toml:"category"`
	Ceiling  string `json:"ceiling" yaml:"ceiling" toml:"ceiling"`
}

// File is the document layout.
type File struct {
	Budgets []Entry `json:"budgets" yaml:"budgets" toml:"budgets"`
}

// FileSource serves ceilings parsed from a file. The file is re-read when
// its modification time changes.
type FileSource struct {
	path string

	mu       sync.RWMutex
	modTime  int64
	ceilings map[string]map[string]decimal.Decimal
}

func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// GetBudgetCeilings sums the global ceilings and those of the given accounts
// per category.
func (s *FileSource) GetBudgetCeilings(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	if err := s.reload(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]decimal.Decimal{}
	for _, owner := range append([]string{""}, ids...) {
		for cat, v := range s.ceilings[owner] {
			out[cat] = out[cat].Add(v)
		}
	}
	return out, nil
}

func (s *FileSource) reload() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("error accessing budget file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", s.path)
	}

	s.mu.RLock()
	fresh := s.ceilings != nil && s.modTime == info.ModTime().UnixNano()
	s.mu.RUnlock()
	if fresh {
		return nil
	}

	doc, err := Load(s.path)
	if err != nil {
		return err
	}
	ceilings, err := doc.Ceilings()
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}

	s.mu.Lock()
	s.ceilings = ceilings
	s.modTime = info.ModTime().UnixNano()
	s.mu.Unlock()
	return nil
}

// Load parses a budget file; the format follows the extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading budget file: %w", err)
	}

	var doc File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing TOML file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing YAML file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing JSON file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported budget file format: %s", ext)
	}
	return &doc, nil
}

// Ceilings indexes the entries by account, then category. Duplicate
// entries for the same account and category are rejected.
func (f *File) Ceilings() (map[string]map[string]decimal.Decimal, error) {
	out := map[string]map[string]decimal.Decimal{}
	for i, e := range f.Budgets {
		account := strings.TrimSpace(e.Account)
		category := strings.TrimSpace(e.Category)
		if category == "" {
			return nil, fmt.Errorf("budget %d: category is required", i+1)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(e.Ceiling))
		if err != nil {
			return nil, fmt.Errorf("budget %d (%s): invalid ceiling %q", i+1, category, e.Ceiling)
		}
		if out[account] == nil {
			out[account] = map[string]decimal.Decimal{}
		}
		if _, dup := out[account][category]; dup {
			return nil, fmt.Errorf("budget %d: duplicate category %q for account %q", i+1, category, account)
		}
		out[account][category] = v
	}
	return out, nil
}
