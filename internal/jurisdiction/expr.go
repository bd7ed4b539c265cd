// Package jurisdiction builds record-visibility predicates from a user's
// place in the organizational hierarchy. A predicate is an expression tree
// that can be evaluated in memory against a single record or compiled into
// a SQL WHERE clause for list queries. A nil expression means unrestricted
// access.
package jurisdiction

// Expr is a node in a visibility predicate.
type Expr interface {
	isExpr()
}

// And is the conjunction of its operands.
type And struct {
	Exprs []Expr
}

// Or is the disjunction of its operands.
type Or struct {
	Exprs []Expr
}

// FieldEq matches records whose named field equals Value.
type FieldEq struct {
	Field string
	Value string
}

// FieldIsNull matches records whose named field is unset.
type FieldIsNull struct {
	Field string
}

// Linked matches records reachable through a named association, such as
// events that carry a sample tested by the user's laboratory. The SQL
// compiler resolves Name against a registered subquery; the evaluator
// resolves it through a LinkResolver. Value is bound into the subquery
// when non-empty.
type Linked struct {
	Name  string
	Value string
}

func (And) isExpr()         {}
func (Or) isExpr()          {}
func (FieldEq) isExpr()     {}
func (FieldIsNull) isExpr() {}
func (Linked) isExpr()      {}

// NewAnd returns the conjunction of the non-nil operands. With zero
// operands it returns nil, with one it returns that operand unchanged.
func NewAnd(exprs ...Expr) Expr {
	return combine(exprs, func(kept []Expr) Expr { return And{Exprs: kept} })
}

// NewOr returns the disjunction of the non-nil operands, collapsing like
// NewAnd. Nil operands are dropped, so NewOr(nil, x) == x: a nil operand
// here means "no clause yet", not "unrestricted". Callers that hold an
// unrestricted filter must short-circuit before combining.
func NewOr(exprs ...Expr) Expr {
	return combine(exprs, func(kept []Expr) Expr { return Or{Exprs: kept} })
}

func combine(exprs []Expr, wrap func([]Expr) Expr) Expr {
	var kept []Expr
	for _, e := range exprs {
		if e != nil {
			kept = append(kept, e)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return wrap(kept)
}

// Fields supplies a record's field values for in-memory evaluation.
// A missing key means the field is unset.
type Fields map[string]string

// LinkResolver reports whether a record is reachable through the named
// association for the given bound value.
type LinkResolver func(name, value string) bool

// Eval evaluates the predicate against one record. A nil expression grants
// access.
func Eval(e Expr, rec Fields, links LinkResolver) bool {
	if e == nil {
		return true
	}
	switch n := e.(type) {
	case And:
		for _, sub := range n.Exprs {
			if !Eval(sub, rec, links) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range n.Exprs {
			if Eval(sub, rec, links) {
				return true
			}
		}
		return false
	case FieldEq:
		v, ok := rec[n.Field]
		return ok && v == n.Value
	case FieldIsNull:
		_, ok := rec[n.Field]
		return !ok
	case Linked:
		if links == nil {
			return false
		}
		return links(n.Name, n.Value)
	}
	return false
}
