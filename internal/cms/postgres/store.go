// Package postgres implements the cms collaborator interfaces against
// Postgres via github.com/jackc/pgx/v5 and pgxpool, grounded on the
// teacher's internal/storage/postgres.RetrievalStore connection-pool
// pattern, against four tables (posts, posts_meta, tags, users) each
// carrying the scalar image columns named in §4.6 plus, for posts, a
// mobiledoc/lexical JSONB body.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/media-inliner/internal/cms"
)

// querier is the subset of *pgxpool.Pool the store needs, narrowed so tests
// can substitute pgxmock.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Config controls the connection pool used by every Table in this package.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// NewPool builds a pgxpool.Pool from Config.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("cms.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// row is a Postgres-backed cms.Resource holding the columns scanned for one
// row.
type row struct {
	id     string
	fields map[string]string
}

func (r *row) ID() string { return r.id }

func (r *row) Get(field string) (string, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Table is a Postgres-backed collaborator for one of posts/posts_meta/
// tags/users. The same type satisfies PostModel, PostMetaModel, TagModel
// and UserModel: the column set differs per table but the method shapes
// (FindAll/FindPage/Edit) do not.
type Table struct {
	pool    querier
	table   string
	columns []string
}

// NewTable builds a Table over tableName, scanning the given columns (in
// addition to id) on every read.
func NewTable(pool querier, tableName string, columns []string) *Table {
	return &Table{pool: pool, table: tableName, columns: columns}
}

// FindAll implements PostModel.FindAll: every row in one query, ordered by id.
func (t *Table) FindAll(ctx context.Context, _ cms.ResourceFilter) ([]cms.Resource, error) {
	return t.scanAll(ctx)
}

// FindPage implements {PostMeta,Tag,User}Model.FindPage. The orchestrator
// only ever asks for limit "all" (§6), so this reference implementation
// does not paginate further.
func (t *Table) FindPage(ctx context.Context, _ cms.PageFilter) (cms.Page, error) {
	resources, err := t.scanAll(ctx)
	if err != nil {
		return cms.Page{}, err
	}
	return cms.Page{Resources: resources}, nil
}

func (t *Table) scanAll(ctx context.Context) ([]cms.Resource, error) {
	query := fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id", joinColumns(t.columns), t.table)
	rows, err := t.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.table, err)
	}
	defer rows.Close()

	var out []cms.Resource
	for rows.Next() {
		id, fields, err := scanRow(rows, t.columns)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", t.table, err)
		}
		out = append(out, &row{id: id, fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", t.table, err)
	}
	return out, nil
}

func scanRow(rows pgx.Rows, columns []string) (string, map[string]string, error) {
	dest := make([]any, len(columns)+1)
	var id string
	dest[0] = &id
	values := make([]*string, len(columns))
	for i := range columns {
		values[i] = new(string)
		dest[i+1] = values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return "", nil, err
	}

	fields := make(map[string]string, len(columns))
	for i, col := range columns {
		fields[col] = *values[i]
	}
	return id, fields, nil
}

// Edit issues a single-row UPDATE ... RETURNING against t.table.
func (t *Table) Edit(ctx context.Context, fields map[string]string, opts cms.EditOptions) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	i := 1
	for col, val := range fields {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	args = append(args, opts.ID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING id", t.table, joinSet(setClauses), i)

	var returnedID string
	if err := t.pool.QueryRow(ctx, query, args...).Scan(&returnedID); err != nil {
		return fmt.Errorf("update %s id=%s: %w", t.table, opts.ID, err)
	}
	return nil
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func joinSet(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
