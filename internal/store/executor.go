package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/ir"
	"github.com/roach88/sqlclause/internal/statement"
)

var _ statement.Executor = (*Store)(nil)

// ErrClosed is returned by a prepared handle after Close.
var ErrClosed = errors.New("prepared statement closed")

// Row is one decoded result row keyed by column name.
type Row = ir.Object

// render renders st for this store. Dynamic statements must have been
// begun for this store's dialect.
func (s *Store) render(st statement.Statement) (statement.Rendered, error) {
	if st.IsDynamic() && st.Dialect() != s.dialect {
		return statement.Rendered{}, clause.Newf(clause.ErrCodeDialectMismatch, "",
			"dynamic statement built for %s cannot run on %s store", st.Dialect(), s.dialect)
	}
	return st.Render(s.dialect)
}

// Run executes a parameterless statement. For SELECT the count is the
// number of rows read; otherwise it is the number of rows affected.
func (s *Store) Run(ctx context.Context, st statement.Statement) (int64, error) {
	r, err := s.render(st)
	if err != nil {
		return 0, err
	}
	if n := r.ParameterCount(); n > 0 {
		return 0, clause.Newf(clause.ErrCodeParameterMismatch, "", "statement has %d parameters: use Prepare", n)
	}
	bound, err := r.Bind()
	if err != nil {
		return 0, err
	}
	slog.Debug("running statement", "kind", st.Kind(), "sql", r.SQL, "literals", len(bound))
	if st.Kind() == statement.Select {
		rows, err := s.db.QueryContext(ctx, r.SQL, bound...)
		if err != nil {
			return 0, fmt.Errorf("query: %w", err)
		}
		return countRows(rows)
	}
	res, err := s.db.ExecContext(ctx, r.SQL, bound...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return rowsAffected(res)
}

// Exec prepares st through Statement.Prepare, executes the handle once
// with args, and closes it.
func (s *Store) Exec(ctx context.Context, st statement.Statement, args ...any) (int64, error) {
	p, err := s.prepareOnce(ctx, st)
	if err != nil {
		return 0, err
	}
	defer p.Close()
	return p.Exec(ctx, args...)
}

// Fetch is Exec for a SELECT, decoding every row.
func (s *Store) Fetch(ctx context.Context, st statement.Statement, args ...any) ([]Row, error) {
	if st.Kind() != statement.Select {
		return nil, fmt.Errorf("fetch: %s statements return no rows", st.Kind())
	}
	p, err := s.prepareOnce(ctx, st)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Fetch(ctx, args...)
}

func (s *Store) prepareOnce(ctx context.Context, st statement.Statement) (*Prepared, error) {
	h, err := st.Prepare(ctx, s)
	if err != nil {
		return nil, err
	}
	return h.(*Prepared), nil
}

// Prepare readies st and returns a handle owned by the store.
func (s *Store) Prepare(ctx context.Context, st statement.Statement) (statement.Prepared, error) {
	return s.PrepareHandle(ctx, st)
}

// PrepareHandle is Prepare returning the concrete handle.
func (s *Store) PrepareHandle(ctx context.Context, st statement.Statement) (*Prepared, error) {
	r, err := s.render(st)
	if err != nil {
		return nil, err
	}
	fp, err := r.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	stmt, err := s.db.PrepareContext(ctx, r.SQL)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}

	p := &Prepared{
		ID:          uuid.New(),
		Fingerprint: fp,
		kind:        st.Kind(),
		rendered:    r,
		stmt:        stmt,
		store:       s,
	}
	s.mu.Lock()
	s.prepared[p.ID.String()] = p
	s.preparedTotal++
	s.mu.Unlock()

	slog.Debug("statement prepared", "id", p.ID, "fingerprint", fp, "params", r.ParameterCount())
	return p, nil
}

// Prepared is a prepared statement handle.
type Prepared struct {
	ID          uuid.UUID
	Fingerprint string

	kind     statement.Kind
	rendered statement.Rendered
	stmt     *sql.Stmt
	store    *Store

	mu     sync.Mutex
	closed bool
}

var _ statement.Prepared = (*Prepared)(nil)

// SQL returns the rendered text.
func (p *Prepared) SQL() string { return p.rendered.SQL }

// ParameterCount is the number of arguments Exec expects.
func (p *Prepared) ParameterCount() int { return p.rendered.ParameterCount() }

func (p *Prepared) bind(args []any) ([]any, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return p.rendered.Bind(args...)
}

// Exec binds args positionally to the deferred slots and executes.
func (p *Prepared) Exec(ctx context.Context, args ...any) (int64, error) {
	bound, err := p.bind(args)
	if err != nil {
		return 0, err
	}
	slog.Debug("executing prepared statement", "id", p.ID, "params", len(bound))
	if p.kind == statement.Select {
		rows, err := p.stmt.QueryContext(ctx, bound...)
		if err != nil {
			return 0, fmt.Errorf("query: %w", err)
		}
		return countRows(rows)
	}
	res, err := p.stmt.ExecContext(ctx, bound...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return rowsAffected(res)
}

// Fetch binds args and decodes the rows of a prepared SELECT.
func (p *Prepared) Fetch(ctx context.Context, args ...any) ([]Row, error) {
	if p.kind != statement.Select {
		return nil, fmt.Errorf("fetch: %s statements return no rows", p.kind)
	}
	bound, err := p.bind(args)
	if err != nil {
		return nil, err
	}
	rows, err := p.stmt.QueryContext(ctx, bound...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return decodeRows(rows)
}

// Close releases the handle. It is safe to call more than once.
func (p *Prepared) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.store.mu.Lock()
	delete(p.store.prepared, p.ID.String())
	p.store.mu.Unlock()
	return p.stmt.Close()
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func countRows(rows *sql.Rows) (int64, error) {
	defer rows.Close()
	var n int64
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

// decodeRows scans every row into a Row keyed by column name.
func decodeRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = ir.FromDriver(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
