package statement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/ir"
	"github.com/roach88/sqlclause/internal/tableset"
)

var (
	tT     = tableset.NewTable("T", "a", "b")
	users  = tableset.NewTable("users", "id", "name", "email")
	orders = tableset.NewTable("orders", "id", "user_id", "total")
)

func mustBegin(t *testing.T, kind Kind) Statement {
	t.Helper()
	s, err := Begin(kind)
	require.NoError(t, err)
	return s
}

func TestInsertRoundTrip(t *testing.T) {
	s, err := mustBegin(t, Insert).Into(tT)
	require.NoError(t, err)
	s, err = s.Columns(tT.Column("a"), tT.Column("b"))
	require.NoError(t, err)

	r, err := s.Render(clause.SQLite)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO T (a, b) VALUES (?, ?)", r.SQL)
	assert.Equal(t, 2, s.ParameterCount())
	assert.Equal(t, 2, r.ParameterCount())
	assert.Equal(t, []string{"a", "b"}, []string{r.Slots[0].Name, r.Slots[1].Name})
}

func TestBlankInsert(t *testing.T) {
	s := mustBegin(t, Insert)

	assert.True(t, s.Provided().Empty())
	assert.True(t, s.Required().Empty())
	assert.NoError(t, s.Validate())
	assert.Equal(t, "INSERT", s.String(), "placeholder table clause emits no INTO")
	assert.True(t, clause.IsMissingClause(s.Complete()))

	filled, err := s.Into(tT)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO T", filled.String())
}

func TestValidateIffRequiredSubsetOfProvided(t *testing.T) {
	insertT, err := InsertInto(tT)
	require.NoError(t, err)
	insertUsers, err := InsertInto(users)
	require.NoError(t, err)

	valuesT, err := clause.ColumnsOf(tT.Column("a"))
	require.NoError(t, err)
	blank := mustBegin(t, Insert)

	cases := []Statement{blank, insertT, insertUsers}
	var withValues []Statement
	for _, s := range cases {
		next, err := s.Replace(clause.KindValues, valuesT)
		require.NoError(t, err)
		withValues = append(withValues, next)
	}
	cases = append(cases, withValues...)

	for _, s := range cases {
		ok := tableset.IsSubset(s.Required(), s.Provided())
		err := s.Validate()
		assert.Equal(t, ok, err == nil, "statement %q", s.String())
		if err != nil {
			assert.True(t, clause.IsIncomplete(err))
		}
	}
}

func TestIncompleteErrorNamesTables(t *testing.T) {
	s, err := InsertInto(users)
	require.NoError(t, err)
	s, err = s.Columns(tT.Column("a"))
	require.NoError(t, err)

	err = s.Validate()
	require.Error(t, err)
	var ce *clause.CompositionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, clause.ErrCodeIncomplete, ce.Code)
	assert.Equal(t, []string{"T"}, ce.Tables)
	assert.Equal(t, []string{"T"}, s.Unresolved().Names())

	_, err = s.Render(clause.SQLite)
	assert.ErrorIs(t, err, clause.ErrIncomplete)
}

func TestReplaceLeavesOtherClausesUnchanged(t *testing.T) {
	s, err := InsertInto(tT)
	require.NoError(t, err)
	before, _ := s.Clause(clause.KindTable)

	values, err := clause.ColumnsOf(tT.Column("a"))
	require.NoError(t, err)
	next, err := s.Replace(clause.KindValues, values)
	require.NoError(t, err)

	after, _ := next.Clause(clause.KindTable)
	assert.Equal(t, before.Provides().Names(), after.Provides().Names())
	assert.Equal(t, before.Requires().Names(), after.Requires().Names())

	old, _ := s.Clause(clause.KindValues)
	assert.True(t, old.IsPlaceholder(), "receiver is not mutated")
	assert.Equal(t, 0, s.ParameterCount())
	assert.Equal(t, 1, next.ParameterCount())
}

func TestReplaceRejectsUndeclaredKind(t *testing.T) {
	s := mustBegin(t, Insert)
	w, err := clause.Filter(clause.Eq(tT.Column("a"), clause.Param("a")))
	require.NoError(t, err)

	_, err = s.Replace(clause.KindWhere, w)
	assert.True(t, clause.IsDuplicateClauseUse(err))

	into, err := clause.Into(tT)
	require.NoError(t, err)
	_, err = s.Replace(clause.KindValues, into)
	assert.True(t, clause.IsDuplicateClauseUse(err), "kind mismatch")

	_, err = s.Replace(clause.KindTable, nil)
	assert.True(t, clause.IsDuplicateClauseUse(err))
}

func TestTargetTableMustNotRequire(t *testing.T) {
	derived := tableset.DerivedTable("recent", tableset.Of(orders), "id")

	_, err := InsertInto(derived)
	require.Error(t, err)
	assert.True(t, clause.IsShapeViolation(err))
	assert.False(t, clause.IsIncomplete(err), "rejected at construction, not validation")

	_, err = UpdateTable(derived)
	assert.True(t, clause.IsShapeViolation(err))
	_, err = DeleteFrom(derived)
	assert.True(t, clause.IsShapeViolation(err))
}

func TestCapabilitiesShrinkAsClausesFill(t *testing.T) {
	s := mustBegin(t, Insert)
	assert.Equal(t, []string{"Columns", "DefaultValues", "Into", "Values"}, s.Capabilities())

	s, err := s.Into(tT)
	require.NoError(t, err)
	assert.False(t, s.Can(MethodInto))
	assert.True(t, s.Can(MethodColumns))

	_, err = s.Into(tT)
	require.Error(t, err)
	assert.True(t, clause.IsDuplicateClauseUse(err))
	assert.Contains(t, err.Error(), "no longer available")

	_, err = s.Where(clause.IsNull(tT.Column("a")))
	assert.True(t, clause.IsDuplicateClauseUse(err))
	assert.Contains(t, err.Error(), "do not offer")

	s, err = s.DefaultValues()
	require.NoError(t, err)
	assert.Empty(t, s.Capabilities())
}

func TestDynamicCapabilities(t *testing.T) {
	s, err := BeginDynamic(Select, clause.Postgres)
	require.NoError(t, err)
	assert.Equal(t, []string{"AddFrom", "AddWhere", "Columns", "From", "Where"}, s.Capabilities())

	ins, err := BeginDynamic(Insert, clause.SQLite)
	require.NoError(t, err)
	assert.True(t, ins.Can(MethodAddValue))
	assert.False(t, ins.Can(MethodAddWhere))
}

func TestStatementKinds(t *testing.T) {
	upd, err := UpdateTable(users)
	require.NoError(t, err)
	upd, err = upd.Set(clause.Assign(users.Column("name"), clause.Param("name")))
	require.NoError(t, err)
	upd, err = upd.Where(clause.Eq(users.Column("id"), clause.Param("id")))
	require.NoError(t, err)

	del, err := DeleteFrom(users)
	require.NoError(t, err)
	del, err = del.Where(clause.Lt(users.Column("id"), clause.Literal("max", ir.Int(10))))
	require.NoError(t, err)

	sel, err := SelectColumns(users.Column("id"), orders.Column("total"))
	require.NoError(t, err)
	sel, err = sel.From(users, orders)
	require.NoError(t, err)
	sel, err = sel.Where(clause.Eq(orders.Column("user_id"), clause.Ref(users.Column("id"))))
	require.NoError(t, err)

	tests := []struct {
		name   string
		s      Statement
		sqlite string
		pg     string
		params int
	}{
		{"update", upd, "UPDATE users SET name = ? WHERE users.id = ?", "UPDATE users SET name = $1 WHERE users.id = $2", 2},
		{"delete", del, "DELETE FROM users WHERE users.id < ?", "DELETE FROM users WHERE users.id < $1", 0},
		{"select", sel, "SELECT users.id, orders.total FROM users, orders WHERE orders.user_id = users.id", "SELECT users.id, orders.total FROM users, orders WHERE orders.user_id = users.id", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.s.Render(clause.SQLite)
			require.NoError(t, err)
			assert.Equal(t, tt.sqlite, r.SQL)

			r, err = tt.s.Render(clause.Postgres)
			require.NoError(t, err)
			assert.Equal(t, tt.pg, r.SQL)
			assert.Equal(t, tt.params, tt.s.ParameterCount())
		})
	}
}

func TestSelectWithoutFromIsIncomplete(t *testing.T) {
	s, err := SelectColumns(users.Column("id"))
	require.NoError(t, err)
	assert.True(t, clause.IsIncomplete(s.Validate()))

	s, err = s.From(orders)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, s.Unresolved().Names())
}

func TestUpdateWhereOnForeignTableIsIncomplete(t *testing.T) {
	s, err := UpdateTable(users)
	require.NoError(t, err)
	s, err = s.Set(clause.Assign(users.Column("name"), clause.Param("name")))
	require.NoError(t, err)
	s, err = s.Where(clause.Eq(orders.Column("id"), clause.Param("id")))
	require.NoError(t, err)

	assert.Equal(t, []string{"orders"}, s.Unresolved().Names())
}

func TestMandatoryClauses(t *testing.T) {
	upd, err := UpdateTable(users)
	require.NoError(t, err)
	_, err = upd.Render(clause.SQLite)
	assert.True(t, clause.IsMissingClause(err))

	del, err := DeleteFrom(users)
	require.NoError(t, err)
	r, err := del.Render(clause.SQLite)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM users", r.SQL)

	_, err = Statement{}.Render(clause.SQLite)
	assert.True(t, clause.IsMissingClause(err))
}

func TestDeleteFromTakesOneTable(t *testing.T) {
	s := mustBegin(t, Delete)
	_, err := s.From(users, orders)
	assert.True(t, clause.IsShapeViolation(err))
}

func TestSerializeIsIdempotent(t *testing.T) {
	s, err := InsertInto(tT)
	require.NoError(t, err)
	s, err = s.Columns(tT.Column("a"), tT.Column("b"))
	require.NoError(t, err)

	first := Serialize(s, clause.NewContext(clause.Postgres))
	second := Serialize(s, clause.NewContext(clause.Postgres))
	assert.Equal(t, first.SQL(), second.SQL())
	assert.Equal(t, first.Slots(), second.Slots())
	assert.Equal(t, "INSERT INTO T (a, b) VALUES ($1, $2)", first.SQL())

	fp1, err := s.mustRender(t).Fingerprint()
	require.NoError(t, err)
	fp2, err := s.mustRender(t).Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}

func (s Statement) mustRender(t *testing.T) Rendered {
	t.Helper()
	r, err := s.Render(clause.SQLite)
	require.NoError(t, err)
	return r
}

func TestRenderedBind(t *testing.T) {
	s, err := InsertInto(users)
	require.NoError(t, err)
	s, err = s.Values(
		clause.Assign(users.Column("id"), clause.Param("id")),
		clause.Assign(users.Column("name"), clause.Literal("name", ir.String("ada"))),
		clause.Assign(users.Column("email"), clause.Param("email")),
	)
	require.NoError(t, err)
	r := s.mustRender(t)

	args, err := r.Bind(int64(1), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "ada", "ada@example.com"}, args)

	_, err = r.Bind(int64(1))
	assert.True(t, clause.IsParameterMismatch(err))
}

func TestDynamicAdditions(t *testing.T) {
	s, err := BeginDynamic(Select, clause.SQLite)
	require.NoError(t, err)
	s, err = s.Columns(users.Column("id"))
	require.NoError(t, err)
	s, err = s.From(users)
	require.NoError(t, err)

	_, err = s.AddWhere(clause.Eq(orders.Column("user_id"), clause.Ref(users.Column("id"))))
	require.Error(t, err)
	assert.True(t, clause.IsUnknownTable(err))

	s, err = s.AddFrom(orders)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, s.Extra().Names())
	assert.Equal(t, []string{"orders", "users"}, s.Known().Names())
	assert.Equal(t, []string{"users"}, s.Provided().Names())

	s, err = s.AddWhere(clause.Eq(orders.Column("user_id"), clause.Ref(users.Column("id"))))
	require.NoError(t, err)
	s, err = s.AddWhere(clause.Gt(orders.Column("total"), clause.Param("min")))
	require.NoError(t, err)

	require.NoError(t, s.Validate(), "dynamic parts do not add requirements")
	r := s.mustRender(t)
	assert.Equal(t, "SELECT users.id FROM users, orders WHERE orders.user_id = users.id AND orders.total > ?", r.SQL)
	assert.Equal(t, 1, s.ParameterCount())
}

func TestExtraTablesDoNotDischargeStaticRequirements(t *testing.T) {
	s, err := BeginDynamic(Select, clause.SQLite)
	require.NoError(t, err)
	s, err = s.Columns(orders.Column("id"))
	require.NoError(t, err)
	s, err = s.From(users)
	require.NoError(t, err)
	s, err = s.AddFrom(orders)
	require.NoError(t, err)

	assert.True(t, s.Known().Has("orders"))
	assert.True(t, clause.IsIncomplete(s.Validate()))
}

func TestDynamicInsertValues(t *testing.T) {
	s, err := DynamicInsertInto(clause.MySQL, users)
	require.NoError(t, err)
	s, err = s.AddValue(clause.Assign(users.Column("name"), clause.Param("name")))
	require.NoError(t, err)
	s, err = s.AddValue(clause.Assign(users.Column("email"), clause.Literal("email", ir.Null{})))
	require.NoError(t, err)

	assert.False(t, s.Can(MethodColumns))
	r, err := s.Render(clause.MySQL)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO users (name, email) VALUES (?, ?)", r.SQL)

	_, err = s.AddValue(clause.Assign(orders.Column("id"), clause.Param("id")))
	assert.True(t, clause.IsUnknownTable(err))
}

func TestDynamicUpdateSet(t *testing.T) {
	s, err := BeginDynamic(Update, clause.SQLite)
	require.NoError(t, err)
	s, err = s.Table(users)
	require.NoError(t, err)
	s, err = s.AddValue(clause.Assign(users.Column("name"), clause.Param("name")))
	require.NoError(t, err)
	s, err = s.AddWhere(clause.Eq(users.Column("id"), clause.Param("id")))
	require.NoError(t, err)

	r := s.mustRender(t)
	assert.Equal(t, "UPDATE users SET name = ? WHERE users.id = ?", r.SQL)
}

func TestDynamicOpsNeedDynamicStatement(t *testing.T) {
	s, err := SelectColumns(users.Column("id"))
	require.NoError(t, err)
	_, err = s.AddFrom(users)
	assert.True(t, clause.IsDuplicateClauseUse(err))

	dyn, err := BeginDynamic(Delete, clause.SQLite)
	require.NoError(t, err)
	_, err = dyn.AddFrom(users)
	assert.True(t, clause.IsDuplicateClauseUse(err), "DELETE has no from-list clause")
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" insert ")
	require.NoError(t, err)
	assert.Equal(t, Insert, k)

	_, err = ParseKind("merge")
	assert.Error(t, err)

	_, err = Begin(Kind("MERGE"))
	assert.Error(t, err)
}

func TestConcurrentReplaceOnSharedBase(t *testing.T) {
	base, err := InsertInto(tT)
	require.NoError(t, err)

	const workers = 16
	results := make([]Statement, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			col := tT.Column("a")
			if i%2 == 1 {
				col = tT.Column("b")
			}
			s, err := base.Columns(col)
			if err == nil {
				results[i] = s
			}
		}(i)
	}
	wg.Wait()

	for i, s := range results {
		want := "INSERT INTO T (a) VALUES (?)"
		if i%2 == 1 {
			want = "INSERT INTO T (b) VALUES (?)"
		}
		sql, err := s.SQL()
		require.NoError(t, err)
		assert.Equal(t, want, sql)
	}
	assert.Equal(t, "INSERT INTO T", base.String(), "base is untouched")
}

type fakeExecutor struct {
	dialect  clause.Dialect
	runs     []string
	prepares []string
}

func (f *fakeExecutor) Dialect() clause.Dialect { return f.dialect }

func (f *fakeExecutor) Run(_ context.Context, s Statement) (int64, error) {
	r, err := s.Render(f.dialect)
	if err != nil {
		return 0, err
	}
	f.runs = append(f.runs, r.SQL)
	return 1, nil
}

func (f *fakeExecutor) Prepare(_ context.Context, s Statement) (Prepared, error) {
	r, err := s.Render(f.dialect)
	if err != nil {
		return nil, err
	}
	f.prepares = append(f.prepares, r.SQL)
	return fakePrepared{n: r.ParameterCount()}, nil
}

type fakePrepared struct{ n int }

func (p fakePrepared) Exec(context.Context, ...any) (int64, error) { return 1, nil }
func (p fakePrepared) ParameterCount() int                         { return p.n }
func (fakePrepared) Close() error                                  { return nil }

func TestRunRejectsParametersBeforeDispatch(t *testing.T) {
	ex := &fakeExecutor{dialect: clause.SQLite}
	s, err := InsertInto(tT)
	require.NoError(t, err)
	s, err = s.Columns(tT.Column("a"))
	require.NoError(t, err)

	_, err = s.Run(context.Background(), ex)
	require.Error(t, err)
	assert.True(t, clause.IsParameterMismatch(err))
	assert.Empty(t, ex.runs, "no I/O attempted")

	p, err := s.Prepare(context.Background(), ex)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ParameterCount())
	assert.Equal(t, []string{"INSERT INTO T (a) VALUES (?)"}, ex.prepares)
}

func TestRunAndPrepareValidateFirst(t *testing.T) {
	ex := &fakeExecutor{dialect: clause.SQLite}
	s, err := SelectColumns(users.Column("id"))
	require.NoError(t, err)

	_, err = s.Run(context.Background(), ex)
	assert.True(t, clause.IsIncomplete(err))
	_, err = s.Prepare(context.Background(), ex)
	assert.True(t, clause.IsIncomplete(err))
	assert.Empty(t, ex.runs)
	assert.Empty(t, ex.prepares)

	s, err = s.From(users)
	require.NoError(t, err)
	n, err := s.Run(context.Background(), ex)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDynamicStatementDialectMustMatchExecutor(t *testing.T) {
	s, err := BeginDynamic(Delete, clause.Postgres)
	require.NoError(t, err)
	s, err = s.From(users)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), &fakeExecutor{dialect: clause.SQLite})
	require.Error(t, err)
	assert.ErrorIs(t, err, clause.ErrDialectMismatch)
	assert.Contains(t, err.Error(), "built for postgres cannot run on sqlite")

	_, err = s.Prepare(context.Background(), &fakeExecutor{dialect: clause.MySQL})
	assert.True(t, clause.IsDialectMismatch(err))

	_, err = s.Run(context.Background(), &fakeExecutor{dialect: clause.Postgres})
	assert.NoError(t, err)
}
