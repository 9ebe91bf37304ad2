package looker_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/semanticbi/looker-sql-agent/pkg/logging"
	"github.com/semanticbi/looker-sql-agent/pkg/looker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	pingErr    error
	pingCalls  int
	queries    []string
	queryFn    func(query string) (*looker.Result, error)
	tables     []string
	tablesErr  error
	fields     map[string][]looker.Field
	columnsErr error
	closeErr   error
	closeCalls int
}

func (c *fakeConn) Ping(ctx context.Context) error {
	c.pingCalls++
	return c.pingErr
}

func (c *fakeConn) Query(ctx context.Context, query string) (*looker.Result, error) {
	c.queries = append(c.queries, query)
	if c.queryFn != nil {
		return c.queryFn(query)
	}
	return &looker.Result{RowsAffected: -1}, nil
}

func (c *fakeConn) Tables(ctx context.Context, schemaPattern string) ([]string, error) {
	if c.tablesErr != nil {
		return nil, c.tablesErr
	}
	return c.tables, nil
}

func (c *fakeConn) Columns(ctx context.Context, schema, table string) ([]looker.Field, error) {
	if c.columnsErr != nil {
		return nil, c.columnsErr
	}
	return c.fields[table], nil
}

func (c *fakeConn) Close() error {
	c.closeCalls++
	return c.closeErr
}

type fakeConnector struct {
	conns []looker.Conn
	err   error
	calls int
}

func (f *fakeConnector) Connect(ctx context.Context) (looker.Conn, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.conns) == 0 {
		return nil, errors.New("fakeConnector: no connections left")
	}
	conn := f.conns[0]
	f.conns = f.conns[1:]
	return conn, nil
}

func boolPtr(b bool) *bool { return &b }

func testConfig() looker.Config {
	return looker.Config{
		InstanceURL:  "https://test.looker.com",
		ModelName:    "test_model",
		ClientID:     "test_id",
		ClientSecret: "test_secret",
	}
}

func newTestDB(t *testing.T, conn *fakeConn, cfg looker.Config) (*looker.Database, *logging.Logger) {
	t.Helper()
	logger := logging.NewTestLogger()
	db, err := looker.NewDatabase(context.Background(), &fakeConnector{conns: []looker.Conn{conn}}, cfg, logger)
	require.NoError(t, err)
	return db, logger
}

func exploreOneFields() []looker.Field {
	return []looker.Field{
		{
			Name: "view1.fieldA", Type: "VARCHAR", Hidden: boolPtr(false),
			Label: "Field A Label", Alias: "AliasA", Category: "DIMENSION",
			Description: "Description for Field A",
		},
		{
			Name: "view1.fieldB_measure", Type: "MEASURE<DOUBLE>", Hidden: boolPtr(false),
			Label: "Field B Measure", Category: "MEASURE", Description: "Desc for Field B",
		},
		{
			Name: "view1.hidden_field", Type: "VARCHAR", Hidden: boolPtr(true),
			Label: "A Hidden Field", Category: "DIMENSION", Description: "This is hidden",
		},
	}
}

func TestNewDatabaseConnects(t *testing.T) {
	conn := &fakeConn{}
	connector := &fakeConnector{conns: []looker.Conn{conn}}
	db, err := looker.NewDatabase(context.Background(), connector, testConfig(), logging.NewTestLogger())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, connector.calls)
	assert.Equal(t, "calcite", db.Dialect())
}

func TestNewDatabaseConnectFailure(t *testing.T) {
	connector := &fakeConnector{err: errors.New("dial tcp: connection refused")}
	_, err := looker.NewDatabase(context.Background(), connector, testConfig(), logging.NewTestLogger())
	require.Error(t, err)

	var connErr *looker.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "https://test.looker.com", connErr.URL)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewDatabaseInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ClientSecret = ""
	_, err := looker.NewDatabase(context.Background(), &fakeConnector{}, cfg, logging.NewTestLogger())
	require.Error(t, err)
}

func TestDeadConnectionIsReplaced(t *testing.T) {
	dead := &fakeConn{tables: []string{"explore_one"}}
	replacement := &fakeConn{tables: []string{"explore_one"}}
	connector := &fakeConnector{conns: []looker.Conn{dead, replacement}}
	logger := logging.NewTestLogger()

	db, err := looker.NewDatabase(context.Background(), connector, testConfig(), logger)
	require.NoError(t, err)

	// First use probes the existing handle; make the probe fail.
	dead.pingErr = errors.New("connection reset")
	names, err := db.UsableTableNames(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"explore_one"}, names)
	assert.Equal(t, 2, connector.calls)
	assert.Equal(t, 1, dead.closeCalls)
	assert.Contains(t, logger.GetOutput(), "reconnecting")
}

func TestCloseIsIdempotentAndSwallowsErrors(t *testing.T) {
	conn := &fakeConn{closeErr: errors.New("already closed")}
	db, logger := newTestDB(t, conn, testConfig())

	db.Close()
	db.Close()

	assert.Equal(t, 1, conn.closeCalls)
	assert.Contains(t, logger.GetOutput(), "error closing Looker connection")
}

func TestUsableTableNamesSortedAndDistinct(t *testing.T) {
	conn := &fakeConn{tables: []string{"explore_two", "explore_one", "explore_two", ""}}
	db, _ := newTestDB(t, conn, testConfig())

	names, err := db.UsableTableNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"explore_one", "explore_two"}, names)
}

func TestUsableTableNamesHonorsIncludeList(t *testing.T) {
	conn := &fakeConn{tables: []string{"explore_one", "explore_two", "explore_three"}}
	cfg := testConfig()
	cfg.IncludeTables = []string{"explore_two", "not_a_real_explore"}
	db, _ := newTestDB(t, conn, cfg)

	names, err := db.UsableTableNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"explore_two"}, names)
}

func TestUsableTableNamesMetadataFailureDegrades(t *testing.T) {
	conn := &fakeConn{tablesErr: errors.New("metadata unavailable")}
	db, logger := newTestDB(t, conn, testConfig())

	names, err := db.UsableTableNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Contains(t, logger.GetOutput(), "failed to list Explores")
}

func TestTableInfoRendersSchemaWithMetadata(t *testing.T) {
	conn := &fakeConn{
		tables: []string{"explore_one", "explore_two"},
		fields: map[string][]looker.Field{"explore_one": exploreOneFields()},
		queryFn: func(query string) (*looker.Result, error) {
			return &looker.Result{
				Columns:      []string{"view1.fieldA", "view1.fieldB_measure"},
				Rows:         [][]any{{"SampleA_Value", 123.45}},
				RowsAffected: -1,
			}, nil
		},
	}
	cfg := testConfig()
	cfg.SampleRows = 1
	db, _ := newTestDB(t, conn, cfg)

	info, err := db.TableInfo(context.Background(), []string{"explore_one"})
	require.NoError(t, err)

	assert.Contains(t, info, "CREATE TABLE `test_model`.`explore_one` (")
	assert.Contains(t, info,
		"    `view1.fieldA` VARCHAR -- label: 'Field A Label'; alias: 'AliasA'; category: DIMENSION; description: 'Description for Field A'")
	assert.Contains(t, info,
		"    `view1.fieldB_measure` MEASURE<DOUBLE> -- label: 'Field B Measure'; category: MEASURE; description: 'Desc for Field B'")
	assert.NotContains(t, info, "hidden_field")
	assert.Contains(t, info, ");")

	// Sample rows block.
	assert.Contains(t, info, "/*\n1 example rows from Explore `test_model`.`explore_one` (selected columns: `view1.fieldA`, `view1.fieldB_measure`):")
	assert.Contains(t, info, "(`view1.fieldA`, `view1.fieldB_measure`)")
	assert.Contains(t, info, "('SampleA_Value', '123.45')")
	assert.Contains(t, conn.queries,
		"SELECT `view1.fieldA`, `view1.fieldB_measure` FROM `test_model`.`explore_one` LIMIT 1")
}

func TestTableInfoNilRendersAllUsableExplores(t *testing.T) {
	conn := &fakeConn{
		tables: []string{"explore_two", "explore_one"},
		fields: map[string][]looker.Field{
			"explore_one": {{Name: "v.a", Type: "VARCHAR"}},
			"explore_two": {{Name: "v.b", Type: "DATE"}},
		},
	}
	db, _ := newTestDB(t, conn, testConfig())

	info, err := db.TableInfo(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, info, "CREATE TABLE `test_model`.`explore_one` (")
	assert.Contains(t, info, "CREATE TABLE `test_model`.`explore_two` (")
	// Lexicographic order.
	assert.Less(t, strings.Index(info, "explore_one"), strings.Index(info, "explore_two"))
}

func TestTableInfoNoExploresAccessible(t *testing.T) {
	conn := &fakeConn{}
	db, _ := newTestDB(t, conn, testConfig())

	info, err := db.TableInfo(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "No Explores found or specified Explores are not accessible.", info)
}

func TestTableInfoUnknownNamesDroppedWithWarning(t *testing.T) {
	conn := &fakeConn{
		tables: []string{"explore_one"},
		fields: map[string][]looker.Field{"explore_one": {{Name: "v.a", Type: "VARCHAR"}}},
	}
	db, logger := newTestDB(t, conn, testConfig())

	info, err := db.TableInfo(context.Background(), []string{"explore_one", "no_such_explore"})
	require.NoError(t, err)
	assert.Contains(t, info, "CREATE TABLE `test_model`.`explore_one` (")
	assert.NotContains(t, info, "no_such_explore")
	assert.Contains(t, logger.GetOutput(), "requested Explores not found")
}

func TestTableInfoColumnsFailureRendersPlaceholder(t *testing.T) {
	conn := &fakeConn{
		tables:     []string{"explore_one"},
		columnsErr: errors.New("metadata timeout"),
	}
	cfg := testConfig()
	cfg.SampleRows = 3
	db, _ := newTestDB(t, conn, cfg)

	info, err := db.TableInfo(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, info, "CREATE TABLE `test_model`.`explore_one` (")
	assert.Contains(t, info, "-- Error retrieving full column details --")
	// No sample query is attempted for a failed Explore.
	assert.Empty(t, conn.queries)
}

func TestTableInfoNoVisibleFields(t *testing.T) {
	conn := &fakeConn{
		tables: []string{"explore_one"},
		fields: map[string][]looker.Field{
			"explore_one": {{Name: "v.secret", Type: "VARCHAR", Hidden: boolPtr(true)}},
		},
	}
	db, _ := newTestDB(t, conn, testConfig())

	info, err := db.TableInfo(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, info, "-- No column definitions retrieved --")
}

func TestTableInfoSampleRowFailureInlined(t *testing.T) {
	conn := &fakeConn{
		tables: []string{"explore_one"},
		fields: map[string][]looker.Field{"explore_one": {{Name: "v.a", Type: "VARCHAR"}}},
		queryFn: func(query string) (*looker.Result, error) {
			return nil, errors.New("sample query rejected")
		},
	}
	cfg := testConfig()
	cfg.SampleRows = 2
	db, _ := newTestDB(t, conn, cfg)

	info, err := db.TableInfo(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, info, "/* Could not fetch sample rows for `test_model`.`explore_one`. */")
	assert.Contains(t, info, "CREATE TABLE `test_model`.`explore_one` (")
}

func TestTableInfoSampleSelectsAtMostFiveFields(t *testing.T) {
	fields := make([]looker.Field, 0, 7)
	for i := 0; i < 7; i++ {
		fields = append(fields, looker.Field{Name: fmt.Sprintf("v.f%d", i), Type: "VARCHAR"})
	}
	conn := &fakeConn{
		tables: []string{"explore_one"},
		fields: map[string][]looker.Field{"explore_one": fields},
		queryFn: func(query string) (*looker.Result, error) {
			return &looker.Result{RowsAffected: -1}, nil
		},
	}
	cfg := testConfig()
	cfg.SampleRows = 3
	db, _ := newTestDB(t, conn, cfg)

	_, err := db.TableInfo(context.Background(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, conn.queries)
	assert.Equal(t,
		"SELECT `v.f0`, `v.f1`, `v.f2`, `v.f3`, `v.f4` FROM `test_model`.`explore_one` LIMIT 3",
		conn.queries[0])
}

func TestQuerySanitizesBeforeExecuting(t *testing.T) {
	conn := &fakeConn{queryFn: func(query string) (*looker.Result, error) {
		return &looker.Result{Columns: []string{"c"}, Rows: [][]any{{1}}, RowsAffected: -1}, nil
	}}
	db, _ := newTestDB(t, conn, testConfig())

	_, err := db.Query(context.Background(), "SELECT 1;;;  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1"}, conn.queries)
}

func TestQueryNoColumnsSynthesizesStatusRow(t *testing.T) {
	conn := &fakeConn{queryFn: func(query string) (*looker.Result, error) {
		return &looker.Result{RowsAffected: 7}, nil
	}}
	db, _ := newTestDB(t, conn, testConfig())

	res, err := db.Query(context.Background(), "UPDATE nothing")
	require.NoError(t, err)
	assert.Empty(t, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Query executed successfully. 7 rows affected.", res.Rows[0][0])
}

func TestQueryFailureWrapsQueryError(t *testing.T) {
	conn := &fakeConn{queryFn: func(query string) (*looker.Result, error) {
		return nil, errors.New("Unknown column 'view.nope'")
	}}
	db, _ := newTestDB(t, conn, testConfig())

	_, err := db.Query(context.Background(), "SELECT `view.nope` FROM `m`.`e`;")
	require.Error(t, err)

	var qErr *looker.QueryError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "SELECT `view.nope` FROM `m`.`e`", qErr.Query)
	assert.Contains(t, err.Error(), "Unknown column")
	assert.Contains(t, err.Error(), "Query: SELECT `view.nope` FROM `m`.`e`")
}

func TestRunRejectsUnknownFetchModeWithoutRemoteCall(t *testing.T) {
	conn := &fakeConn{}
	db, _ := newTestDB(t, conn, testConfig())

	got := db.Run(context.Background(), "SELECT 1", "bogus")
	assert.Equal(t, "Error: fetch parameter must be 'all' or 'one', got bogus", got)
	assert.Empty(t, conn.queries)
}

func TestRunScalarShortcut(t *testing.T) {
	conn := &fakeConn{queryFn: func(query string) (*looker.Result, error) {
		return &looker.Result{Rows: [][]any{{42}}, RowsAffected: -1}, nil
	}}
	db, _ := newTestDB(t, conn, testConfig())

	assert.Equal(t, "42", db.Run(context.Background(), "SELECT COUNT(*) FROM `m`.`e`", "all"))
}

func TestRunNoResults(t *testing.T) {
	conn := &fakeConn{queryFn: func(query string) (*looker.Result, error) {
		return &looker.Result{Columns: []string{"col_a", "col_b"}, RowsAffected: -1}, nil
	}}
	db, _ := newTestDB(t, conn, testConfig())

	got := db.Run(context.Background(), "SELECT `v.a`, `v.b` FROM `m`.`e`", "all")
	assert.Equal(t, "Columns: [`col_a`, `col_b`]\nQuery executed successfully. No results returned.", got)
}

func TestRunAllRows(t *testing.T) {
	conn := &fakeConn{queryFn: func(query string) (*looker.Result, error) {
		return &looker.Result{
			Columns:      []string{"result_col"},
			Rows:         [][]any{{"val1"}, {"val2"}},
			RowsAffected: -1,
		}, nil
	}}
	db, _ := newTestDB(t, conn, testConfig())

	got := db.Run(context.Background(), "SELECT `view.some_field` FROM `m`.`e`", "all")
	assert.Equal(t, "Columns: [`result_col`]\nResults:\n('val1')\n('val2')", got)
}

func TestRunFetchOne(t *testing.T) {
	conn := &fakeConn{queryFn: func(query string) (*looker.Result, error) {
		return &looker.Result{
			Columns:      []string{"col_a", "col_b"},
			Rows:         [][]any{{"val1", 100}, {"val2", 200}},
			RowsAffected: -1,
		}, nil
	}}
	db, _ := newTestDB(t, conn, testConfig())

	got := db.Run(context.Background(), "SELECT `v.a`, `v.b` FROM `m`.`e`", "one")
	assert.Equal(t, "Columns: [`col_a`, `col_b`]\nResult: ('val1', '100')", got)
}

func TestRunConvertsErrorsToStrings(t *testing.T) {
	conn := &fakeConn{queryFn: func(query string) (*looker.Result, error) {
		return nil, errors.New("Object 'bad_explore' not found")
	}}
	db, _ := newTestDB(t, conn, testConfig())

	got := db.Run(context.Background(), "SELECT 1 FROM `m`.`bad_explore`", "all")
	assert.True(t, strings.HasPrefix(got, "Error: "))
	assert.Contains(t, got, "Object 'bad_explore' not found")
}
