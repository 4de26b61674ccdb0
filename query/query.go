// Package query turns task filter descriptors into SQL fragments. Building
// predicates is a pure step with no database handle, so filter logic is
// testable without a live backend; a Dialect then renders the predicates for
// the driver actually in use (Postgres in production, SQLite in tests).
package query

import (
	"fmt"
	"strings"

	"github.com/dkotenko/taskvault/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Op int

const (
	// OpEq is an exact-match filter on one column.
	OpEq Op = iota
	// OpOverlaps matches rows whose tag set shares at least one element
	// with the given set.
	OpOverlaps
	// OpSearch is a case-insensitive substring match, OR-ed across columns.
	OpSearch
)

type Predicate struct {
	Op      Op
	Column  string
	Columns []string // OpSearch only
	Value   any
}

// TaskPredicates maps a filter descriptor to the predicate list for one task
// listing. The user scope is always the first predicate.
func TaskPredicates(userID uuid.UUID, f models.TaskFilters) []Predicate {
	preds := []Predicate{{Op: OpEq, Column: "user_id", Value: userID.String()}}

	if f.Category != "" {
		preds = append(preds, Predicate{Op: OpEq, Column: "category", Value: f.Category})
	}
	if f.Status != "" {
		preds = append(preds, Predicate{Op: OpEq, Column: "status", Value: string(f.Status)})
	}
	if f.Type != "" {
		preds = append(preds, Predicate{Op: OpEq, Column: "type", Value: string(f.Type)})
	}
	if f.IsFavorite != nil {
		preds = append(preds, Predicate{Op: OpEq, Column: "is_favorite", Value: *f.IsFavorite})
	}
	if f.IsShared != nil {
		preds = append(preds, Predicate{Op: OpEq, Column: "is_shared", Value: *f.IsShared})
	}
	if len(f.Tags) > 0 {
		preds = append(preds, Predicate{Op: OpOverlaps, Column: "tags", Value: f.Tags})
	}
	if f.Search != "" {
		preds = append(preds, Predicate{
			Op:      OpSearch,
			Columns: []string{"title", "content"},
			Value:   f.Search,
		})
	}
	return preds
}

// Dialect renders one predicate starting at the given 1-based argument
// position and reports the SQL fragment with its bind arguments.
type Dialect interface {
	Predicate(p Predicate, pos int) (string, []any)
	Placeholder(pos int) string
}

// Where renders "WHERE a AND b ..." for the predicate list, or an empty
// string when there are no predicates.
func Where(preds []Predicate, d Dialect) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	frags := make([]string, 0, len(preds))
	var args []any
	pos := 1
	for _, p := range preds {
		sql, a := d.Predicate(p, pos)
		frags = append(frags, sql)
		args = append(args, a...)
		pos += len(a)
	}
	return "WHERE " + strings.Join(frags, " AND "), args
}

var sortable = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"category":   true,
}

// OrderBy renders the ORDER BY clause, falling back to created_at DESC for
// unknown or empty fields.
func OrderBy(s models.SortSpec) string {
	field := s.Field
	if !sortable[field] {
		field = "created_at"
		s.Descending = true
	}
	dir := "ASC"
	if s.Descending {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s", field, dir)
}

// Window renders the LIMIT/OFFSET clause. An offset with no limit gets a
// 10-row window regardless of any limit a caller used before; legacy
// behavior, kept on purpose (see DESIGN.md).
func Window(opts models.ListOptions) string {
	switch {
	case opts.Offset != nil:
		limit := 10
		if opts.Limit != nil {
			limit = *opts.Limit
		}
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, *opts.Offset)
	case opts.Limit != nil:
		return fmt.Sprintf("LIMIT %d", *opts.Limit)
	default:
		return ""
	}
}

// Postgres renders for lib/pq: $n placeholders, ILIKE, and jsonb ?| for the
// tag overlap (tags are stored as a JSON array in a text column).
type Postgres struct{}

func (Postgres) Placeholder(pos int) string { return fmt.Sprintf("$%d", pos) }

func (Postgres) Predicate(p Predicate, pos int) (string, []any) {
	switch p.Op {
	case OpOverlaps:
		tags := p.Value.([]string)
		return fmt.Sprintf("%s::jsonb ?| $%d", p.Column, pos), []any{pq.Array(tags)}
	case OpSearch:
		term := "%" + p.Value.(string) + "%"
		frags := make([]string, len(p.Columns))
		args := make([]any, len(p.Columns))
		for i, col := range p.Columns {
			frags[i] = fmt.Sprintf("%s ILIKE $%d", col, pos+i)
			args[i] = term
		}
		return "(" + strings.Join(frags, " OR ") + ")", args
	default:
		return fmt.Sprintf("%s = $%d", p.Column, pos), []any{p.Value}
	}
}

// SQLite renders for mattn/go-sqlite3: ? placeholders, lower() LIKE, and a
// json_each membership test for the tag overlap.
type SQLite struct{}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Predicate(p Predicate, _ int) (string, []any) {
	switch p.Op {
	case OpOverlaps:
		tags := p.Value.([]string)
		marks := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
		args := make([]any, len(tags))
		for i, t := range tags {
			args[i] = t
		}
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value IN (%s))",
			p.Column, marks), args
	case OpSearch:
		term := "%" + strings.ToLower(p.Value.(string)) + "%"
		frags := make([]string, len(p.Columns))
		args := make([]any, len(p.Columns))
		for i, col := range p.Columns {
			frags[i] = fmt.Sprintf("lower(%s) LIKE ?", col)
			args[i] = term
		}
		return "(" + strings.Join(frags, " OR ") + ")", args
	default:
		return p.Column + " = ?", []any{p.Value}
	}
}
