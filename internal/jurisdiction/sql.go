package jurisdiction

import (
	"fmt"
	"strings"
)

// SQLContext maps predicate fields and associations onto one entity table.
type SQLContext struct {
	// Columns maps field names to column expressions, alias included
	// (e.g. "region" -> "ev.region_id").
	Columns map[string]string
	// Subqueries maps association names to EXISTS fragments. A fragment
	// containing %d receives the positional index of its single bound value.
	Subqueries map[string]string
}

// CompileSQL converts a visibility predicate to a SQL WHERE fragment.
// startIdx is the starting positional parameter index ($1, $2, ...).
// A nil expression compiles to "TRUE" with no arguments.
func CompileSQL(e Expr, ctx *SQLContext, startIdx int) (string, []interface{}, error) {
	if e == nil {
		return "TRUE", nil, nil
	}

	switch n := e.(type) {
	case And:
		return compileJunction(n.Exprs, " AND ", ctx, startIdx)

	case Or:
		return compileJunction(n.Exprs, " OR ", ctx, startIdx)

	case FieldEq:
		col, ok := ctx.Columns[n.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", n.Field)
		}
		return fmt.Sprintf("%s = $%d", col, startIdx), []interface{}{n.Value}, nil

	case FieldIsNull:
		col, ok := ctx.Columns[n.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", n.Field)
		}
		return fmt.Sprintf("%s IS NULL", col), nil, nil

	case Linked:
		sub, ok := ctx.Subqueries[n.Name]
		if !ok {
			return "", nil, fmt.Errorf("unknown association %q", n.Name)
		}
		if n.Value == "" {
			return sub, nil, nil
		}
		return fmt.Sprintf(sub, startIdx), []interface{}{n.Value}, nil
	}

	return "", nil, fmt.Errorf("unknown expression type %T", e)
}

func compileJunction(exprs []Expr, op string, ctx *SQLContext, startIdx int) (string, []interface{}, error) {
	var parts []string
	var args []interface{}
	for _, sub := range exprs {
		sql, subArgs, err := CompileSQL(sub, ctx, startIdx+len(args))
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, subArgs...)
	}
	return "(" + strings.Join(parts, op) + ")", args, nil
}
