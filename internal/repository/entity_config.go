package repository

import (
	"fmt"
	"slices"
	"strings"

	"github.com/amora/dating-service/internal/domain"
)

// Column defaults applied by EntityConfig.withDefaults.
const (
	DefaultPrimaryKey     = "id"
	DefaultOrderDirection = "DESC"
	updatedAtColumn       = "updated_at"
)

// DefaultAutoManagedColumns are excluded from writes when a config names none.
var DefaultAutoManagedColumns = []string{"id", "created_at", "updated_at"}

// EntityConfig describes the table a BaseRepository is bound to.
// It is built once per repository and never modified afterwards.
type EntityConfig struct {
	// TableName is the table every statement targets.
	TableName string
	// PrimaryKey identifies rows. Default: "id".
	PrimaryKey string
	// Columns lists every column of the table. When set, criteria keys,
	// payload keys, sort fields and text fields must be members.
	Columns []string
	// AutoManagedColumns are dropped from create and update payloads.
	// Default: id, created_at, updated_at. The primary key is always included.
	AutoManagedColumns []string
	// DefaultTextFields are matched with ILIKE '%value%' by Search when the
	// caller names no text fields.
	DefaultTextFields []string
	// DefaultOrderBy is used when a caller names no sort field. Optional.
	DefaultOrderBy string
	// DefaultOrderDirection is ASC or DESC. Default: DESC.
	DefaultOrderDirection string
}

// withDefaults returns a copy of c with documented defaults filled in.
func (c EntityConfig) withDefaults() EntityConfig {
	if c.PrimaryKey == "" {
		c.PrimaryKey = DefaultPrimaryKey
	}
	if c.AutoManagedColumns == nil {
		c.AutoManagedColumns = DefaultAutoManagedColumns
	}
	if !slices.Contains(c.AutoManagedColumns, c.PrimaryKey) {
		c.AutoManagedColumns = append([]string{c.PrimaryKey}, c.AutoManagedColumns...)
	}
	if c.DefaultOrderDirection == "" {
		c.DefaultOrderDirection = DefaultOrderDirection
	}
	c.DefaultOrderDirection = strings.ToUpper(c.DefaultOrderDirection)

	c.Columns = slices.Clone(c.Columns)
	c.AutoManagedColumns = slices.Clone(c.AutoManagedColumns)
	c.DefaultTextFields = slices.Clone(c.DefaultTextFields)
	return c
}

// Validate checks that every identifier in the config is safe to place in SQL
// text and that defaults reference known columns.
func (c EntityConfig) Validate() error {
	c = c.withDefaults()

	if !isSafeIdentifier(c.TableName) {
		return domain.NewValidationError("table_name", fmt.Sprintf("unsafe table name %q", c.TableName))
	}
	if !isSafeIdentifier(c.PrimaryKey) {
		return domain.NewValidationError("primary_key", fmt.Sprintf("unsafe primary key %q", c.PrimaryKey))
	}
	for _, col := range c.Columns {
		if !isSafeIdentifier(col) {
			return domain.NewValidationError("columns", fmt.Sprintf("unsafe column %q", col))
		}
	}
	if len(c.Columns) > 0 && !slices.Contains(c.Columns, c.PrimaryKey) {
		return domain.NewValidationError("primary_key", fmt.Sprintf("%q is not a column of %s", c.PrimaryKey, c.TableName))
	}
	for _, col := range c.DefaultTextFields {
		if !c.allowsColumn(col) {
			return domain.NewValidationError("default_text_fields", fmt.Sprintf("unknown column %q", col))
		}
	}
	if c.DefaultOrderBy != "" && !c.allowsColumn(c.DefaultOrderBy) {
		return domain.NewValidationError("default_order_by", fmt.Sprintf("unknown column %q", c.DefaultOrderBy))
	}
	if c.DefaultOrderDirection != "ASC" && c.DefaultOrderDirection != "DESC" {
		return domain.NewValidationError("default_order_direction", fmt.Sprintf("must be ASC or DESC, got %q", c.DefaultOrderDirection))
	}
	return nil
}

// allowsColumn reports whether name may appear in SQL text for this table.
// Without a Columns list only the identifier syntax is checked.
func (c EntityConfig) allowsColumn(name string) bool {
	if !isSafeIdentifier(name) {
		return false
	}
	if len(c.Columns) == 0 {
		return true
	}
	return slices.Contains(c.Columns, name)
}

// isAutoManaged reports whether name is excluded from writes.
func (c EntityConfig) isAutoManaged(name string) bool {
	return slices.Contains(c.AutoManagedColumns, name)
}

// touchesUpdatedAt reports whether updates must refresh updated_at. Tables
// with a Columns list need the column listed; otherwise updated_at must be
// auto-managed.
func (c EntityConfig) touchesUpdatedAt() bool {
	if len(c.Columns) > 0 {
		return slices.Contains(c.Columns, updatedAtColumn)
	}
	return c.isAutoManaged(updatedAtColumn)
}

// checkColumn returns a ValidationError when name may not be used.
func (c EntityConfig) checkColumn(field, name string) error {
	if c.allowsColumn(name) {
		return nil
	}
	if !isSafeIdentifier(name) {
		return domain.NewValidationError(field, fmt.Sprintf("unsafe identifier %q", name))
	}
	return domain.NewValidationError(field, fmt.Sprintf("unknown column %q for %s", name, c.TableName))
}

// isSafeIdentifier accepts plain SQL identifiers and dotted qualified names:
// each segment starts with [A-Za-z_] and continues with [A-Za-z0-9_].
func isSafeIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			ch := part[i]
			letter := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
			if i == 0 && !letter {
				return false
			}
			if !letter && !(ch >= '0' && ch <= '9') {
				return false
			}
		}
	}
	return true
}
