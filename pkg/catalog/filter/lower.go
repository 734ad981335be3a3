package filter

import (
	"fmt"

	"github.com/cuemby/blockcat/pkg/catalogerr"
)

// versionColumns whitelists the identifiers the filter language may
// reference, mapping the user-facing name to its SQL column.
var versionColumns = map[string]string{
	"uid":                "uid",
	"date":               "date",
	"volume":             "volume",
	"snapshot":           "snapshot",
	"size":               "size",
	"block_size":         "block_size",
	"status":             "status",
	"protected":          "protected",
	"bytes_read":         "bytes_read",
	"bytes_written":      "bytes_written",
	"bytes_deduplicated": "bytes_deduplicated",
	"bytes_sparse":       "bytes_sparse",
	"duration":           "duration",
}

// statusNameToValue resolves a status name literal to its stored numeric
// value, for comparisons against the "status" column.
var statusNameToValue = map[string]int64{
	"incomplete": 0,
	"valid":      1,
	"invalid":    2,
}

// Lower compiles expr into a parameterized SQL WHERE fragment (without the
// leading "WHERE") plus its bind arguments. A nil expr (the empty-filter
// case) lowers to ("1=1", nil).
func Lower(expr Expr) (string, []interface{}, error) {
	const op = catalogerr.Op("filter.Lower")

	if expr == nil {
		return "1=1", nil, nil
	}
	sql, args, err := lower(expr)
	if err != nil {
		return "", nil, catalogerr.E(op, catalogerr.Usage, err)
	}
	return sql, args, nil
}

func lower(expr Expr) (string, []interface{}, error) {
	switch e := expr.(type) {
	case AndExpr:
		lsql, largs, err := lower(e.Left)
		if err != nil {
			return "", nil, err
		}
		rsql, rargs, err := lower(e.Right)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s AND %s)", lsql, rsql), append(largs, rargs...), nil

	case OrExpr:
		lsql, largs, err := lower(e.Left)
		if err != nil {
			return "", nil, err
		}
		rsql, rargs, err := lower(e.Right)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s OR %s)", lsql, rsql), append(largs, rargs...), nil

	case NotExpr:
		sql, args, err := lower(e.X)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(NOT %s)", sql), args, nil

	case CmpExpr:
		return lowerCmp(e)

	default:
		return "", nil, fmt.Errorf("unhandled expression node %T", expr)
	}
}

func lowerCmp(e CmpExpr) (string, []interface{}, error) {
	if e.Op == "" {
		return lowerTruthy(e.Left)
	}

	switch left := e.Left.(type) {
	case IdentOperand:
		switch right := e.Right.(type) {
		case IdentOperand:
			rcol, err := resolveColumn(right.Name)
			if err != nil {
				return "", nil, err
			}
			lcol, err := resolveColumn(left.Name)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("%s %s %s", lcol, e.Op, rcol), nil, nil
		case LiteralOperand:
			lcol, err := resolveColumn(left.Name)
			if err != nil {
				return "", nil, err
			}
			value, err := coerceValue(left.Name, right.Value)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("%s %s ?", lcol, e.Op), []interface{}{value}, nil
		case LabelOperand:
			return "", nil, fmt.Errorf("cannot compare identifier %q to a label", left.Name)
		}

	case LabelOperand:
		switch right := e.Right.(type) {
		case LiteralOperand:
			strVal, ok := right.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("label %q can only be compared to a string", left.Name)
			}
			sql := fmt.Sprintf(`id IN (SELECT version_id FROM labels WHERE name = ? AND value %s ?)`, e.Op)
			return sql, []interface{}{left.Name, strVal}, nil
		case IdentOperand:
			return "", nil, fmt.Errorf("cannot compare label %q to identifier %q", left.Name, right.Name)
		case LabelOperand:
			return "", nil, fmt.Errorf("cannot compare label %q to label %q", left.Name, right.Name)
		}

	case LiteralOperand:
		switch right := e.Right.(type) {
		case LiteralOperand:
			result, err := compareLiterals(left.Value, e.Op, right.Value)
			if err != nil {
				return "", nil, err
			}
			if result {
				return "1=1", nil, nil
			}
			return "1=0", nil, nil
		case IdentOperand:
			rcol, err := resolveColumn(right.Name)
			if err != nil {
				return "", nil, err
			}
			value, err := coerceValue(right.Name, left.Value)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("? %s %s", e.Op, rcol), []interface{}{value}, nil
		case LabelOperand:
			return "", nil, fmt.Errorf("cannot compare a literal to label %q", right.Name)
		}
	}

	return "", nil, fmt.Errorf("unsupported comparison")
}

// lowerTruthy handles a bare atom used as a boolean expression: a bare
// identifier proxies truthiness as "column != ''"; a bare label proxies
// existence as an IN-subquery; a bare boolean literal lowers to a constant.
func lowerTruthy(operand Operand) (string, []interface{}, error) {
	switch o := operand.(type) {
	case IdentOperand:
		col, err := resolveColumn(o.Name)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s != ''", col), nil, nil
	case LabelOperand:
		return `id IN (SELECT version_id FROM labels WHERE name = ?)`, []interface{}{o.Name}, nil
	case LiteralOperand:
		switch v := o.Value.(type) {
		case bool:
			if v {
				return "1=1", nil, nil
			}
			return "1=0", nil, nil
		default:
			return "", nil, fmt.Errorf("a bare literal cannot be used as a boolean expression")
		}
	default:
		return "", nil, fmt.Errorf("unhandled operand %T", operand)
	}
}

func resolveColumn(name string) (string, error) {
	col, ok := versionColumns[name]
	if !ok {
		return "", fmt.Errorf("unknown identifier %q", name)
	}
	return col, nil
}

// coerceValue converts a literal compared against column into the type the
// column actually stores, e.g. resolving a status name to its stored
// numeric value.
func coerceValue(column string, value interface{}) (interface{}, error) {
	if column == "status" {
		if name, ok := value.(string); ok {
			n, ok := statusNameToValue[name]
			if !ok {
				return nil, fmt.Errorf("unknown status %q", name)
			}
			return n, nil
		}
	}
	return value, nil
}

func compareLiterals(left interface{}, op string, right interface{}) (bool, error) {
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		return compareOrdered(ls, op, rs)
	}
	li, lok := left.(int64)
	ri, rok := right.(int64)
	if lok && rok {
		return compareOrdered(li, op, ri)
	}
	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok && rok {
		switch op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		default:
			return false, fmt.Errorf("operator %q is not defined for booleans", op)
		}
	}
	return false, fmt.Errorf("cannot compare %T to %T", left, right)
}

func compareOrdered[T string | int64](left T, op string, right T) (bool, error) {
	switch op {
	case "==":
		return left == right, nil
	case "!=":
		return left != right, nil
	case "<":
		return left < right, nil
	case "<=":
		return left <= right, nil
	case ">":
		return left > right, nil
	case ">=":
		return left >= right, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}
