package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
)

// BaseRepository is a data-access object bound to one table. T is the row
// struct; its db tags must cover every column the table returns.
type BaseRepository[T any] struct {
	db   DBTX
	cfg  EntityConfig
	opts options
}

// NewBaseRepository binds a repository to cfg.TableName. It panics when cfg
// fails Validate, since configs are static and an invalid one is a
// programming error.
func NewBaseRepository[T any](db DBTX, cfg EntityConfig, opts ...Option) *BaseRepository[T] {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("repository: invalid config for %q: %v", cfg.TableName, err))
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &BaseRepository[T]{db: db, cfg: cfg.withDefaults(), opts: o}
}

// WithDB returns a copy of the repository that runs its statements on db,
// typically a pgx.Tx.
func (r *BaseRepository[T]) WithDB(db DBTX) *BaseRepository[T] {
	clone := *r
	clone.db = db
	return &clone
}

// Config returns the effective configuration with defaults applied.
func (r *BaseRepository[T]) Config() EntityConfig {
	return r.cfg.withDefaults()
}

// DB returns the executor the repository runs on.
func (r *BaseRepository[T]) DB() DBTX {
	return r.db
}

// Limits returns the page size limits used by paginated operations.
func (r *BaseRepository[T]) Limits() pagination.Limits {
	return r.opts.limits
}

// FindByID returns the row with the given primary key, or nil when none exists.
func (r *BaseRepository[T]) FindByID(ctx context.Context, id any) (*T, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", r.cfg.TableName, r.cfg.PrimaryKey)
	return r.QueryOne(ctx, "find_by_id", query, id)
}

// FindAll returns rows in the default order. A non-positive limit returns every row.
func (r *BaseRepository[T]) FindAll(ctx context.Context, limit, offset int) ([]*T, error) {
	order, err := r.cfg.orderClause("", "")
	if err != nil {
		return nil, err
	}
	suffix, args := limitClause(nil, limit, offset)
	query := fmt.Sprintf("SELECT * FROM %s%s%s", r.cfg.TableName, order, suffix)
	return r.QueryMany(ctx, "find_all", query, args...)
}

// FindBy returns rows equal to every criteria value. Empty criteria behaves as FindAll.
func (r *BaseRepository[T]) FindBy(ctx context.Context, criteria Criteria, limit, offset int) ([]*T, error) {
	if len(criteria) == 0 {
		return r.FindAll(ctx, limit, offset)
	}

	p, err := r.cfg.equalityPredicate(criteria, nil)
	if err != nil {
		return nil, err
	}
	order, err := r.cfg.orderClause("", "")
	if err != nil {
		return nil, err
	}
	suffix, args := limitClause(p.args, limit, offset)
	query := fmt.Sprintf("SELECT * FROM %s%s%s%s", r.cfg.TableName, p.where(And), order, suffix)
	return r.QueryMany(ctx, "find_by", query, args...)
}

// FindOneBy returns the first row matching criteria, or nil.
func (r *BaseRepository[T]) FindOneBy(ctx context.Context, criteria Criteria) (*T, error) {
	rows, err := r.FindBy(ctx, criteria, 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Create inserts payload without its auto-managed keys and returns the stored
// row, including server-assigned id and timestamps.
func (r *BaseRepository[T]) Create(ctx context.Context, payload Record) (*T, error) {
	fields, values, err := r.cfg.writableFields(payload)
	if err != nil {
		return nil, err
	}

	var query string
	if len(fields) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", r.cfg.TableName)
	} else {
		placeholders := make([]string, len(fields))
		for i := range fields {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			r.cfg.TableName, strings.Join(fields, ", "), strings.Join(placeholders, ", "))
	}

	row, err := r.QueryOne(ctx, "create", query, values...)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("failed to create %s: insert returned no row", r.cfg.TableName)
	}
	return row, nil
}

// Update applies patch without its auto-managed keys and returns the updated
// row, or nil when id does not exist. A patch with nothing writable returns
// the current row without issuing an UPDATE.
func (r *BaseRepository[T]) Update(ctx context.Context, id any, patch Record) (*T, error) {
	fields, values, err := r.cfg.writableFields(patch)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return r.FindByID(ctx, id)
	}

	sets := make([]string, 0, len(fields)+1)
	for i, field := range fields {
		sets = append(sets, fmt.Sprintf("%s = $%d", field, i+2))
	}
	if r.cfg.touchesUpdatedAt() {
		sets = append(sets, updatedAtColumn+" = NOW()")
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1 RETURNING *",
		r.cfg.TableName, strings.Join(sets, ", "), r.cfg.PrimaryKey)
	return r.QueryOne(ctx, "update", query, append([]any{id}, values...)...)
}

// Delete removes the row with id and reports whether one was removed.
func (r *BaseRepository[T]) Delete(ctx context.Context, id any) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", r.cfg.TableName, r.cfg.PrimaryKey)
	affected, err := r.Exec(ctx, "delete", query, id)
	return affected > 0, err
}

// Exists reports whether any row equals every criteria value.
func (r *BaseRepository[T]) Exists(ctx context.Context, criteria Criteria) (bool, error) {
	p, err := r.cfg.equalityPredicate(criteria, nil)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s%s)", r.cfg.TableName, p.where(And))

	var exists bool
	if err := r.scalar(ctx, "exists", query, p.args, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Count returns the number of rows equal to every criteria value. Nil
// criteria counts the whole table.
func (r *BaseRepository[T]) Count(ctx context.Context, criteria Criteria) (int64, error) {
	p, err := r.cfg.equalityPredicate(criteria, nil)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, p, And)
}

// Search matches criteria with equality, except keys in the text fields which
// match case-insensitive substrings.
func (r *BaseRepository[T]) Search(ctx context.Context, criteria Criteria, opts SearchOptions) ([]*T, error) {
	p, err := r.cfg.equalityPredicate(criteria, r.textFields(opts))
	if err != nil {
		return nil, err
	}
	return r.selectPredicate(ctx, "search", p, And, opts)
}

// AdvancedSearch matches criteria with per-key operators joined uniformly by
// opts.LogicalOperator.
func (r *BaseRepository[T]) AdvancedSearch(ctx context.Context, criteria AdvancedCriteria, opts SearchOptions) ([]*T, error) {
	p, err := r.cfg.operatorPredicate(criteria)
	if err != nil {
		return nil, err
	}
	logical, err := logicalOperator(opts.LogicalOperator)
	if err != nil {
		return nil, err
	}
	return r.selectPredicate(ctx, "advanced_search", p, logical, opts)
}

// FindAllPaginated counts the table, fetches the requested page in the
// requested or default order, and assembles the envelope. The count is not
// filtered.
func (r *BaseRepository[T]) FindAllPaginated(ctx context.Context, req pagination.Request, baseURL string) (pagination.Response[*T], error) {
	return r.paginate(ctx, "find_all_paginated", &predicate{}, And, req, baseURL, nil)
}

// SearchPaginated is FindAllPaginated with the Search predicate applied to
// both the count and the page. Empty criteria delegates to FindAllPaginated.
func (r *BaseRepository[T]) SearchPaginated(ctx context.Context, criteria Criteria, req pagination.Request, baseURL string, opts SearchOptions) (pagination.Response[*T], error) {
	if len(criteria) == 0 {
		return r.FindAllPaginated(ctx, req, baseURL)
	}
	p, err := r.cfg.equalityPredicate(criteria, r.textFields(opts))
	if err != nil {
		return pagination.Response[*T]{}, err
	}
	filters := criteria.Values()
	if opts.LinkQuery != nil {
		filters = opts.LinkQuery
	}
	return r.paginate(ctx, "search_paginated", p, And, req, baseURL, filters)
}

// AdvancedSearchPaginated is SearchPaginated with per-key operators.
func (r *BaseRepository[T]) AdvancedSearchPaginated(ctx context.Context, criteria AdvancedCriteria, req pagination.Request, baseURL string, opts SearchOptions) (pagination.Response[*T], error) {
	p, err := r.cfg.operatorPredicate(criteria)
	if err != nil {
		return pagination.Response[*T]{}, err
	}
	logical, err := logicalOperator(opts.LogicalOperator)
	if err != nil {
		return pagination.Response[*T]{}, err
	}
	return r.paginate(ctx, "advanced_search_paginated", p, logical, req, baseURL, opts.LinkQuery)
}

func (r *BaseRepository[T]) paginate(
	ctx context.Context,
	op string,
	p *predicate,
	logical LogicalOperator,
	req pagination.Request,
	baseURL string,
	filters url.Values,
) (pagination.Response[*T], error) {
	params := r.opts.limits.Calculate(req)
	direction := ""
	if strings.TrimSpace(req.Order) != "" {
		direction = req.Direction()
	}
	order, err := r.cfg.orderClause(req.Sort, direction)
	if err != nil {
		return pagination.Response[*T]{}, err
	}

	total, err := r.count(ctx, p, logical)
	if err != nil {
		return pagination.Response[*T]{}, err
	}

	suffix, args := limitClause(append([]any(nil), p.args...), params.Limit, params.Offset)
	query := fmt.Sprintf("SELECT * FROM %s%s%s%s", r.cfg.TableName, p.where(logical), order, suffix)
	rows, err := r.QueryMany(ctx, op, query, args...)
	if err != nil {
		return pagination.Response[*T]{}, err
	}

	linkQuery := r.opts.limits.QueryParams(req, filters)
	return pagination.NewResponse(rows, total, params.Page, params.Limit, baseURL, linkQuery), nil
}

func (r *BaseRepository[T]) selectPredicate(ctx context.Context, op string, p *predicate, logical LogicalOperator, opts SearchOptions) ([]*T, error) {
	order, err := r.cfg.orderClause(opts.OrderBy, opts.OrderDirection)
	if err != nil {
		return nil, err
	}
	suffix, args := limitClause(p.args, opts.Limit, opts.Offset)
	query := fmt.Sprintf("SELECT * FROM %s%s%s%s", r.cfg.TableName, p.where(logical), order, suffix)
	return r.QueryMany(ctx, op, query, args...)
}

func (r *BaseRepository[T]) count(ctx context.Context, p *predicate, logical LogicalOperator) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", r.cfg.TableName, p.where(logical))
	var total int64
	if err := r.scalar(ctx, "count", query, p.args, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *BaseRepository[T]) textFields(opts SearchOptions) []string {
	if opts.TextFields != nil {
		return opts.TextFields
	}
	return r.cfg.DefaultTextFields
}

// QueryMany runs query and scans every row into T.
func (r *BaseRepository[T]) QueryMany(ctx context.Context, op, query string, args ...any) ([]*T, error) {
	return queryMany[T](ctx, r, op, query, args...)
}

// QueryOne runs query and scans the first row into T. It returns nil when
// the query yields no rows.
func (r *BaseRepository[T]) QueryOne(ctx context.Context, op, query string, args ...any) (*T, error) {
	return queryOne[T](ctx, r, op, query, args...)
}

// Exec runs a statement and returns the number of affected rows.
func (r *BaseRepository[T]) Exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	start := r.trace(op, len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	r.observe(op, start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to %s %s: %w", opLabel(op), r.cfg.TableName, err)
	}
	return tag.RowsAffected(), nil
}

func (r *BaseRepository[T]) scalar(ctx context.Context, op, query string, args []any, dest any) error {
	start := r.trace(op, len(args))
	err := r.db.QueryRow(ctx, query, args...).Scan(dest)
	r.observe(op, start, err)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", opLabel(op), r.cfg.TableName, err)
	}
	return nil
}

func (r *BaseRepository[T]) trace(op string, argCount int) time.Time {
	r.opts.logger.Trace().
		Str("table", r.cfg.TableName).
		Str("operation", op).
		Int("args", argCount).
		Msg("executing query")
	return time.Now()
}

func (r *BaseRepository[T]) observe(op string, start time.Time, err error) {
	if r.opts.observer == nil {
		return
	}
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	r.opts.observer.ObserveQuery(r.cfg.TableName, op, time.Since(start), err)
}

// queryMany and queryOne scan into any row type R so domain repositories can
// read joined shapes through the same instrumentation.
func queryMany[R any, T any](ctx context.Context, r *BaseRepository[T], op, query string, args ...any) ([]*R, error) {
	start := r.trace(op, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	var items []*R
	if err == nil {
		items, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[R])
	}
	r.observe(op, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", opLabel(op), r.cfg.TableName, err)
	}
	if items == nil {
		items = []*R{}
	}
	return items, nil
}

func queryOne[R any, T any](ctx context.Context, r *BaseRepository[T], op, query string, args ...any) (*R, error) {
	start := r.trace(op, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	var item *R
	if err == nil {
		item, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[R])
	}
	r.observe(op, start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to %s %s: %w", opLabel(op), r.cfg.TableName, err)
	}
	return item, nil
}

func logicalOperator(op LogicalOperator) (LogicalOperator, error) {
	switch LogicalOperator(strings.ToUpper(string(op))) {
	case "", And:
		return And, nil
	case Or:
		return Or, nil
	default:
		return "", domain.NewValidationError("logical_operator", fmt.Sprintf("unsupported logical operator %q", op))
	}
}

// opLabel turns "find_by_id" into "find by id" for error messages.
func opLabel(op string) string {
	return strings.ReplaceAll(op, "_", " ")
}
