package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	Name string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// now is the current-timestamp expression used for updated_at.
	now string
	// returning reports whether INSERT ... RETURNING id is available.
	returning bool
	// classify maps driver errors onto store sentinels.
	classify func(err error) error
	schema   []string
}

var (
	// Postgres uses $N placeholders and pq error codes.
	Postgres = Dialect{
		Name:        "postgres",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		now:         "CURRENT_TIMESTAMP",
		returning:   true,
		classify:    classifyPQ,
		schema:      postgresSchema,
	}
	// MySQL uses ? placeholders and MySQL error numbers.
	MySQL = Dialect{
		Name:        "mysql",
		placeholder: func(int) string { return "?" },
		now:         "CURRENT_TIMESTAMP(6)",
		returning:   false,
		classify:    classifyMySQL,
		schema:      mysqlSchema,
	}
)

// DialectFor returns the dialect registered under a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case Postgres.Name:
		return Postgres, nil
	case MySQL.Name:
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("store: unsupported SQL driver %q", driver)
}

func classifyPQ(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23503": // foreign_key_violation
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, pqErr.Message)
	case "23514": // check_violation
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pqErr.Message)
	}
	return err
}

func classifyMySQL(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case 1452: // ER_NO_REFERENCED_ROW_2
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, myErr.Message)
	case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
		return fmt.Errorf("%w: %s", ErrConstraintViolation, myErr.Message)
	}
	return err
}

// sqlBuilder accumulates bind arguments while a statement is rendered.
type sqlBuilder struct {
	d    Dialect
	args []any
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

var columns = map[Field]string{
	FieldID:           "p.id",
	FieldName:         "p.name",
	FieldDescription:  "COALESCE(p.description, '')",
	FieldCategoryID:   "p.category_id",
	FieldCategoryName: "c.name",
	FieldPrice:        "p.price",
	FieldStock:        "p.stock",
	FieldCreatedAt:    "p.created_at",
	FieldStockValue:   "(p.stock * p.price)",
}

func column(f Field) (string, error) {
	col, ok := columns[f]
	if !ok {
		return "", fmt.Errorf("store: unknown field %d", f)
	}
	return col, nil
}

var comparators = map[Op]string{
	OpEq:  "=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// where renders p as a SQL boolean expression.
func (b *sqlBuilder) where(p Predicate) (string, error) {
	switch p.Op {
	case OpAnd, OpOr:
		if len(p.Terms) == 0 {
			if p.Op == OpAnd {
				return "1 = 1", nil
			}
			return "1 = 0", nil
		}
		joiner := " AND "
		if p.Op == OpOr {
			joiner = " OR "
		}
		parts := make([]string, 0, len(p.Terms))
		for _, t := range p.Terms {
			s, err := b.where(t)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, joiner) + ")", nil
	case OpContains:
		col, err := column(p.Field)
		if err != nil {
			return "", err
		}
		needle, _ := p.Value.(string)
		return fmt.Sprintf("LOWER(%s) LIKE %s", col, b.bind("%"+escapeLike(strings.ToLower(needle))+"%")), nil
	}

	cmp, ok := comparators[p.Op]
	if !ok {
		return "", fmt.Errorf("store: unknown operator %d", p.Op)
	}
	col, err := column(p.Field)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", col, cmp, b.bind(p.Value)), nil
}

func (b *sqlBuilder) orderBy(keys []SortKey) (string, error) {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		col, err := column(k.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}

func (b *sqlBuilder) aggregate(a Aggregate) (string, error) {
	if a.Func == AggCountIf {
		cond, err := b.where(a.Where)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("SUM(CASE WHEN %s THEN 1 ELSE 0 END)", cond), nil
	}
	if a.Func == AggCount {
		return "COUNT(p.id)", nil
	}
	col, err := column(a.Field)
	if err != nil {
		return "", err
	}
	switch a.Func {
	case AggSum:
		return "SUM(" + col + ")", nil
	case AggAvg:
		return "AVG(" + col + ")", nil
	}
	return "", fmt.Errorf("store: unknown aggregate %d", a.Func)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
