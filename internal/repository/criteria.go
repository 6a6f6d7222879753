package repository

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/amora/dating-service/internal/domain"
)

// Criteria maps column names to expected values. Keys are ANDed.
type Criteria map[string]any

// Record is a partial row used as a create or update payload, and the shape
// returned for junction-table rows.
type Record map[string]any

// Operator is a comparison used by AdvancedSearch.
type Operator string

// Supported operators.
const (
	OpEq    Operator = "eq"
	OpNe    Operator = "ne"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpLike  Operator = "like"
	OpILike Operator = "ilike"
	OpIn    Operator = "in"
)

var comparisonSQL = map[Operator]string{
	OpEq:  "=",
	OpNe:  "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// Condition pairs a value with its operator. An empty Operator means eq.
type Condition struct {
	Value    any
	Operator Operator
}

// AdvancedCriteria maps column names to conditions.
type AdvancedCriteria map[string]Condition

// LogicalOperator joins the conditions of an AdvancedSearch.
type LogicalOperator string

// Logical operators.
const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

// SearchOptions tune Search, AdvancedSearch and SearchPaginated.
type SearchOptions struct {
	// Limit caps the result size. Zero means no limit.
	Limit int
	// Offset skips rows. Ignored when negative.
	Offset int
	// TextFields are matched with ILIKE '%value%'. Nil means the
	// repository's DefaultTextFields; an empty non-nil slice disables
	// substring matching.
	TextFields []string
	// OrderBy overrides the repository's DefaultOrderBy.
	OrderBy string
	// OrderDirection is ASC or DESC. Empty means the repository default.
	OrderDirection string
	// LogicalOperator joins AdvancedSearch conditions. Default AND.
	LogicalOperator LogicalOperator
	// LinkQuery replaces the criteria-derived parameters carried by
	// paginated links. Scoping criteria such as an owner id use it to stay
	// out of public URLs.
	LinkQuery url.Values
}

// Values renders criteria as query parameters so paginated links carry the
// filters a page was served with.
func (c Criteria) Values() url.Values {
	out := make(url.Values, len(c))
	for key, value := range c {
		if value == nil {
			continue
		}
		out.Set(key, fmt.Sprint(value))
	}
	return out
}

// predicate accumulates WHERE conditions and their positional arguments.
type predicate struct {
	conditions []string
	args       []any
}

func (p *predicate) next() string {
	return fmt.Sprintf("$%d", len(p.args)+1)
}

func (p *predicate) add(condition string, arg any) {
	p.conditions = append(p.conditions, condition)
	p.args = append(p.args, arg)
}

// where renders " WHERE a AND b", or "" when there are no conditions.
func (p *predicate) where(op LogicalOperator) string {
	if len(p.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.conditions, " "+string(op)+" ")
}

// equalityPredicate builds a condition per criteria key in sorted key order.
// Keys listed in textFields use ILIKE with the value wrapped in %...%; nil
// values compare with IS NULL.
func (c EntityConfig) equalityPredicate(criteria Criteria, textFields []string) (*predicate, error) {
	p := &predicate{}
	for _, key := range slices.Sorted(maps.Keys(criteria)) {
		if err := c.checkColumn(key, key); err != nil {
			return nil, err
		}
		value := criteria[key]
		switch {
		case value == nil:
			p.conditions = append(p.conditions, key+" IS NULL")
		case slices.Contains(textFields, key):
			p.add(fmt.Sprintf("%s ILIKE %s", key, p.next()), wildcard(value))
		default:
			p.add(fmt.Sprintf("%s = %s", key, p.next()), value)
		}
	}
	return p, nil
}

// operatorPredicate builds a condition per criteria key in sorted key order
// using each entry's operator.
func (c EntityConfig) operatorPredicate(criteria AdvancedCriteria) (*predicate, error) {
	p := &predicate{}
	for _, key := range slices.Sorted(maps.Keys(criteria)) {
		if err := c.checkColumn(key, key); err != nil {
			return nil, err
		}
		cond := criteria[key]
		op := cond.Operator
		if op == "" {
			op = OpEq
		}

		switch op {
		case OpLike:
			p.add(fmt.Sprintf("%s LIKE %s", key, p.next()), wildcard(cond.Value))
		case OpILike:
			p.add(fmt.Sprintf("%s ILIKE %s", key, p.next()), wildcard(cond.Value))
		case OpIn:
			p.add(fmt.Sprintf("%s = ANY(%s)", key, p.next()), cond.Value)
		default:
			sqlOp, ok := comparisonSQL[op]
			if !ok {
				return nil, domain.NewValidationError(key, fmt.Sprintf("unsupported operator %q", op))
			}
			if cond.Value == nil && (op == OpEq || op == OpNe) {
				if op == OpEq {
					p.conditions = append(p.conditions, key+" IS NULL")
				} else {
					p.conditions = append(p.conditions, key+" IS NOT NULL")
				}
				continue
			}
			p.add(fmt.Sprintf("%s %s %s", key, sqlOp, p.next()), cond.Value)
		}
	}
	return p, nil
}

// writableFields drops auto-managed keys from payload and returns the rest in
// sorted order with their values.
func (c EntityConfig) writableFields(payload Record) ([]string, []any, error) {
	var (
		fields []string
		values []any
	)
	for _, key := range slices.Sorted(maps.Keys(payload)) {
		if c.isAutoManaged(key) {
			continue
		}
		if err := c.checkColumn(key, key); err != nil {
			return nil, nil, err
		}
		fields = append(fields, key)
		values = append(values, payload[key])
	}
	return fields, values, nil
}

// orderClause renders " ORDER BY field DIR" from the caller's choice or the
// configured default. It returns "" when no field resolves.
func (c EntityConfig) orderClause(orderBy, direction string) (string, error) {
	return c.aliasedOrderClause("", orderBy, direction)
}

// aliasedOrderClause is orderClause with the field qualified by alias when
// alias is set.
func (c EntityConfig) aliasedOrderClause(alias, orderBy, direction string) (string, error) {
	if orderBy == "" {
		orderBy = c.DefaultOrderBy
	}
	if orderBy == "" {
		return "", nil
	}
	if err := c.checkColumn("sort", orderBy); err != nil {
		return "", err
	}

	dir := strings.ToUpper(strings.TrimSpace(direction))
	switch dir {
	case "ASC", "DESC":
	case "":
		dir = c.DefaultOrderDirection
	default:
		return "", domain.NewValidationError("order", fmt.Sprintf("must be asc or desc, got %q", direction))
	}
	if alias != "" {
		orderBy = alias + "." + orderBy
	}
	return fmt.Sprintf(" ORDER BY %s %s", orderBy, dir), nil
}

// limitClause appends " LIMIT $n OFFSET $n+1" using the next placeholders.
// A non-positive limit with a positive offset renders only the OFFSET.
func limitClause(args []any, limit, offset int) (string, []any) {
	offset = max(offset, 0)
	switch {
	case limit > 0:
		n := len(args) + 1
		return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n, n+1), append(args, limit, offset)
	case offset > 0:
		return fmt.Sprintf(" OFFSET $%d", len(args)+1), append(args, offset)
	default:
		return "", args
	}
}

func wildcard(value any) string {
	return fmt.Sprintf("%%%v%%", value)
}
