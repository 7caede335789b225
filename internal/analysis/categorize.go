package analysis

import (
	"strings"
	"unicode"

	"finey/internal/core"
)

// Categorizer assigns an expense transaction to a category bucket.
type Categorizer interface {
	Categorize(tx core.Transaction) string
}

// CategoryField uses the transaction's own category, falling back to
// core.Uncategorized.
type CategoryField struct{}

func (CategoryField) Categorize(tx core.Transaction) string {
	if c := strings.TrimSpace(tx.Category); c != "" {
		return c
	}
	return core.Uncategorized
}

type keywordRule struct {
	name     string
	keywords []string
}

// expenseRules are evaluated in order; the first match wins.
var expenseRules = []keywordRule{
	{"Alimentação", []string{"supermercado", "mercado", "padaria", "restaurante", "lanchonete", "delivery", "ifood", "uber eats", "food", "alimentacao"}},
	{"Transporte", []string{"posto", "combustivel", "gasolina", "etanol", "uber", "99", "taxi", "metro", "onibus", "transporte", "estacionamento"}},
	{"Moradia", []string{"aluguel", "condominio", "energia", "luz", "agua", "internet", "telefone", "gas", "iptu", "moradia"}},
	{"Saúde", []string{"farmacia", "drogaria", "medico", "hospital", "clinica", "laboratorio", "plano saude", "unimed", "saude"}},
	{"Educação", []string{"escola", "faculdade", "curso", "livro", "material escolar", "educacao", "universidade", "colegio"}},
	{"Lazer", []string{"cinema", "netflix", "spotify", "streaming", "jogo", "viagem", "hotel", "lazer", "entretenimento"}},
	{"Vestuário", []string{"roupa", "calcado", "sapato", "tenis", "vestuario", "moda", "loja", "shopping"}},
}

var categoryIcons = map[string]string{
	"Alimentação": "🍽️",
	"Transporte":  "🚗",
	"Moradia":     "🏠",
	"Saúde":       "⚕️",
	"Educação":    "📚",
	"Lazer":       "🎬",
	"Vestuário":   "👕",
}

// KeywordCategorizer keeps an explicit category and otherwise classifies the
// description by keyword before falling back to core.Uncategorized.
type KeywordCategorizer struct{}

func (KeywordCategorizer) Categorize(tx core.Transaction) string {
	if c := strings.TrimSpace(tx.Category); c != "" {
		return c
	}
	if name, ok := matchKeywords(tx.Description, expenseRules); ok {
		return name
	}
	return core.Uncategorized
}

// CategoryIcon returns the display icon for an expense category.
func CategoryIcon(name string) string {
	if icon, ok := categoryIcons[name]; ok {
		return icon
	}
	return "📊"
}

// matchKeywords matches keywords against whole words of the description.
// Keywords longer than shortKeyword characters also match as a word prefix,
// so plurals still hit; shorter ones like "ted" or "b3" must match a word
// exactly.
func matchKeywords(description string, rules []keywordRule) (string, bool) {
	words := strings.FieldsFunc(normalizeText(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "", false
	}
	for _, r := range rules {
		for _, k := range r.keywords {
			if containsPhrase(words, strings.Fields(k)) {
				return r.name, true
			}
		}
	}
	return "", false
}

const shortKeyword = 3

func containsPhrase(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		matched := true
		for j, part := range phrase {
			w := words[i+j]
			if w != part && (len(part) <= shortKeyword || !strings.HasPrefix(w, part)) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

func normalizeText(s string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}
