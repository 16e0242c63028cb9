package queryir

import "fmt"

// ValidationError reports an invalid query.
type ValidationError struct {
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("invalid query: column %q: %s", e.Column, e.Message)
	}
	return "invalid query: " + e.Message
}

// Validate checks that every referenced column is in known.
func Validate(sel Select, known map[string]bool) error {
	if len(sel.Columns) == 0 {
		return &ValidationError{Message: "no columns selected"}
	}
	for _, c := range sel.Columns {
		if !known[c] {
			return &ValidationError{Column: c, Message: "unknown column"}
		}
	}
	return ValidatePredicate(sel.Filter, known)
}

// ValidatePredicate checks a filter. A nil predicate is valid.
func ValidatePredicate(p Predicate, known map[string]bool) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		return checkColumn(pred.Column, known)
	case In:
		return checkColumn(pred.Column, known)
	case HasPrefix:
		return checkColumn(pred.Column, known)
	case And:
		for _, sub := range pred.Predicates {
			if err := ValidatePredicate(sub, known); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for _, sub := range pred.Predicates {
			if err := ValidatePredicate(sub, known); err != nil {
				return err
			}
		}
		return nil
	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported predicate %T", p)}
	}
}

func checkColumn(c string, known map[string]bool) error {
	if !known[c] {
		return &ValidationError{Column: c, Message: "unknown column"}
	}
	return nil
}
