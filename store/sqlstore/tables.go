package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/warp/crm-engine/crm"
)

// table describes one record table. Records are bound by their db tags, so
// columns must match the struct tags of the record type.
type table struct {
	name    string
	columns []string // written columns, id first

	// selectSQL selects every tagged field; the table is aliased as x.
	selectSQL string

	owned      bool   // has owner_id; honours Query.Owners
	dateColumn string // filtered by Query.From / Query.To
	sorts      map[string]string
	sortBy     string // default key into sorts
}

func (t table) insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)",
		t.name, strings.Join(t.columns, ", "), strings.Join(t.columns, ", :"))
}

func (t table) updateSQL() string {
	var sets []string
	for _, c := range t.columns {
		if c == "id" || c == "created_at" {
			continue
		}
		sets = append(sets, c+" = :"+c)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", t.name, strings.Join(sets, ", "))
}

// =============================================================================
// GENERIC CRUD
// =============================================================================

func insert[T any](ctx context.Context, db *sqlx.DB, t table, rec T) error {
	_, err := db.NamedExecContext(ctx, t.insertSQL(), rec)
	return translate("insert into "+t.name, err)
}

func update[T any](ctx context.Context, db *sqlx.DB, t table, rec T) error {
	res, err := db.NamedExecContext(ctx, t.updateSQL(), rec)
	if err != nil {
		return translate("update "+t.name, err)
	}
	return mustAffect(res, t.name)
}

func get[T any](ctx context.Context, db *sqlx.DB, t table, id string) (T, error) {
	var rec T
	err := db.GetContext(ctx, &rec, db.Rebind(t.selectSQL+" WHERE x.id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%s %s: %w", t.name, id, crm.ErrNotFound)
	}
	if err != nil {
		return rec, translate("get from "+t.name, err)
	}
	return rec, nil
}

func remove(ctx context.Context, db *sqlx.DB, t table, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind("DELETE FROM "+t.name+" WHERE id = ?"), id)
	if err != nil {
		return translate("delete from "+t.name, err)
	}
	return mustAffect(res, t.name)
}

// list applies the owner filter, the date range and a whitelisted sort.
// An owner filter that matches nothing short-circuits: sqlx.In rejects empty
// slices.
func list[T any](ctx context.Context, db *sqlx.DB, t table, q crm.Query) ([]T, error) {
	out := []T{}
	if t.owned && q.MatchesNothing() {
		return out, nil
	}

	var (
		where []string
		args  []any
	)
	if t.owned && q.OwnersSet {
		where = append(where, "x.owner_id IN (?)")
		args = append(args, q.Owners)
	}
	if t.dateColumn != "" && !q.From.IsZero() {
		where = append(where, "x."+t.dateColumn+" >= ?")
		args = append(args, q.From)
	}
	if t.dateColumn != "" && !q.To.IsZero() {
		where = append(where, "x."+t.dateColumn+" <= ?")
		args = append(args, q.To)
	}

	query := t.selectSQL
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + t.orderBy(q)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s query: %w", t.name, err)
	}
	if err := db.SelectContext(ctx, &out, db.Rebind(query), args...); err != nil {
		return nil, translate("list "+t.name, err)
	}
	return out, nil
}

// orderBy falls back to the default sort for keys outside the whitelist.
func (t table) orderBy(q crm.Query) string {
	expr, ok := t.sorts[strings.ToLower(strings.TrimSpace(q.Sort))]
	if !ok {
		expr = t.sorts[t.sortBy]
	}
	dir := "ASC"
	if q.Descending() {
		dir = "DESC"
	}
	return expr + " " + dir + ", x.id ASC"
}

func mustAffect(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows on %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", name, crm.ErrNotFound)
	}
	return nil
}
