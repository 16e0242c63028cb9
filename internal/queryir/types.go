package queryir

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from the rows matching Filter.
// A nil Filter matches every row.
type Select struct {
	Columns []string
	Filter  Predicate
}

// Equals matches rows where Column = Value.
type Equals struct {
	Column string
	Value  any
}

func (Equals) predicateNode() {}

// In matches rows where Column is one of Values. An empty In matches nothing.
type In struct {
	Column string
	Values []any
}

func (In) predicateNode() {}

// HasPrefix matches text columns starting with Prefix (literal, no wildcards).
type HasPrefix struct {
	Column string
	Prefix string
}

func (HasPrefix) predicateNode() {}

// And matches rows satisfying every predicate. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or matches rows satisfying at least one predicate. An empty Or matches
// nothing. Used for bulk lookups by composite key.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Eq is shorthand for Equals.
func Eq(column string, value any) Equals {
	return Equals{Column: column, Value: value}
}

// AllOf is shorthand for And.
func AllOf(preds ...Predicate) And {
	return And{Predicates: preds}
}
