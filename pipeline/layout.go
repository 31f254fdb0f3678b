package pipeline

import (
	"strings"
	"unicode"
)

// Kind is the storage type a column is coerced to.
type Kind int

const (
	KindText Kind = iota
	KindReal
	KindInteger
	KindDate
	KindBool
)

// Column maps a relation column to the spreadsheet header that feeds it.
type Column struct {
	Name    string
	Pattern string // canonical keyword matched against canonical headers
	Kind    Kind
}

// Layout is the declarative header mapping of one relation, in table column
// order.
type Layout struct {
	Relation string
	Columns  []Column
}

// ItemLayout maps the items source.
var ItemLayout = Layout{
	Relation: "items",
	Columns: []Column{
		{Name: "asin", Pattern: "asin", Kind: KindText},
		{Name: "brand", Pattern: "brand", Kind: KindText},
		{Name: "title", Pattern: "title", Kind: KindText},
		{Name: "url", Pattern: "url", Kind: KindText},
		{Name: "image", Pattern: "image", Kind: KindText},
		{Name: "rating", Pattern: "rating", Kind: KindReal},
		{Name: "review_url", Pattern: "reviewurl", Kind: KindText},
		{Name: "total_reviews", Pattern: "total", Kind: KindInteger},
		{Name: "price", Pattern: "price", Kind: KindReal},
	},
}

// ReviewLayout maps the reviews source. review_id is assigned by the store
// and has no source column.
var ReviewLayout = Layout{
	Relation: "reviews",
	Columns: []Column{
		{Name: "asin", Pattern: "asin", Kind: KindText},
		{Name: "name", Pattern: "name", Kind: KindText},
		{Name: "rating", Pattern: "rating", Kind: KindInteger},
		{Name: "review_date", Pattern: "date", Kind: KindDate},
		{Name: "verified", Pattern: "verified", Kind: KindBool},
		{Name: "title", Pattern: "title", Kind: KindText},
		{Name: "body", Pattern: "body", Kind: KindText},
		{Name: "helpful_vote", Pattern: "helpful", Kind: KindInteger},
	},
}

// Binding resolves each layout column to a header index.
type Binding struct {
	Layout  Layout
	Header  []string
	Indexes map[string]int
}

// Bind resolves columns against a header row. Exact matches on the canonical
// header win over substring matches, and a header feeds at most one column.
// Every column must be found.
func (l Layout) Bind(header []string) (*Binding, error) {
	canon := make([]string, len(header))
	for i, h := range header {
		canon[i] = canonical(h)
	}

	used := make(map[int]bool, len(header))
	indexes := make(map[string]int, len(l.Columns))

	for _, col := range l.Columns {
		for i, h := range canon {
			if !used[i] && h == col.Pattern {
				indexes[col.Name] = i
				used[i] = true
				break
			}
		}
	}
	for _, col := range l.Columns {
		if _, ok := indexes[col.Name]; ok {
			continue
		}
		for i, h := range canon {
			if !used[i] && strings.Contains(h, col.Pattern) {
				indexes[col.Name] = i
				used[i] = true
				break
			}
		}
	}

	var missing []string
	for _, col := range l.Columns {
		if _, ok := indexes[col.Name]; !ok {
			missing = append(missing, col.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Relation: l.Relation, Columns: missing, Header: header}
	}

	return &Binding{Layout: l, Header: header, Indexes: indexes}, nil
}

func canonical(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
