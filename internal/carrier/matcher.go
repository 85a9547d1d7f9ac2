package carrier

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Suggestion is a catalog hit for a free-text carrier name.
type Suggestion struct {
	Carrier  string
	BaseCost decimal.Decimal
}

// Lookup resolves free-text carrier names against a catalog. The
// settlement orchestrator treats this as pluggable; matching rules
// live here, not in the orchestrator.
type Lookup interface {
	Suggest(name string) (Suggestion, bool)
}

// Entry is one catalog carrier.
type Entry struct {
	Name     string
	BaseCost decimal.Decimal
}

// CatalogLookup matches by case-insensitive substring in either
// direction ("jne" matches "JNE Express", "jne express reguler"
// matches "JNE Express"). First catalog hit wins; the catalog is
// small and ordered by name.
type CatalogLookup struct {
	entries []Entry
}

func NewCatalogLookup(entries []Entry) *CatalogLookup {
	return &CatalogLookup{entries: entries}
}

func (l *CatalogLookup) Suggest(name string) (Suggestion, bool) {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return Suggestion{}, false
	}
	for _, e := range l.entries {
		candidate := strings.ToLower(e.Name)
		if strings.Contains(candidate, q) || strings.Contains(q, candidate) {
			return Suggestion{Carrier: e.Name, BaseCost: e.BaseCost}, true
		}
	}
	return Suggestion{}, false
}
