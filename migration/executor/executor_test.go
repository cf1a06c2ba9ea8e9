package executor_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"unicode/utf8"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/changekit/change"
	"github.com/stokaro/changekit/change/custom"
	"github.com/stokaro/changekit/changelog"
	"github.com/stokaro/changekit/config"
	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/dbschema"
	"github.com/stokaro/changekit/migration/executor"
)

// auditTask writes to the audit table through the connection instead of
// returning statements.
type auditTask struct {
	Message string `param:"message"`
}

func (a *auditTask) ConfirmationMessage() string                         { return "audited " + a.Message }
func (a *auditTask) SetUp() error                                        { return nil }
func (a *auditTask) SetResourceAccessor(fs.FS)                           {}
func (a *auditTask) Validate(database.Database) *change.ValidationErrors { return nil }

func (a *auditTask) Execute(ctx context.Context, db database.Database) error {
	return a.exec(ctx, db, "insert into audit (message) values (?)")
}

func (a *auditTask) Rollback(ctx context.Context, db database.Database) error {
	return a.exec(ctx, db, "delete from audit where message = ?")
}

func (a *auditTask) exec(ctx context.Context, db database.Database, query string) error {
	execer, ok := db.Connection().(database.Execer)
	if !ok {
		return errors.New("connection cannot execute statements")
	}
	_, err := execer.ExecContext(ctx, query, a.Message)
	return err
}

func loadOptions() changelog.LoadOptions {
	registry := custom.NewRegistry()
	registry.Register("com.example.Audit", func() custom.CustomChange { return &auditTask{} })
	opts := changelog.DefaultLoadOptions()
	opts.Loader = registry
	return opts
}

func connect(c *qt.C) *dbschema.DatabaseConnection {
	conn, err := dbschema.ConnectToDatabase(context.Background(), "sqlite::memory:")
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = conn.Close() })
	return conn
}

func load(c *qt.C, changeSets string) *changelog.ChangeLog {
	fsys := fstest.MapFS{
		"changelog.xml": {Data: []byte("<databaseChangeLog>\n" + changeSets + "\n</databaseChangeLog>")},
	}
	cl, err := changelog.Load(fsys, "changelog.xml", loadOptions())
	c.Assert(err, qt.IsNil)
	return cl
}

func newExecutor(c *qt.C, conn *dbschema.DatabaseConnection, cl *changelog.ChangeLog, opts *config.ExecutorOptions) *executor.Executor {
	e, err := executor.NewExecutor(conn, cl, opts)
	c.Assert(err, qt.IsNil)
	return e.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ranChangeSets(c *qt.C, e *executor.Executor) []executor.RanChangeSet {
	ran, err := e.History().RanChangeSets(context.Background())
	c.Assert(err, qt.IsNil)
	return ran
}

func count(c *qt.C, conn *dbschema.DatabaseConnection, table string) int {
	var n int
	err := conn.QueryRowContext(context.Background(), "SELECT count(*) FROM "+table).Scan(&n)
	c.Assert(err, qt.IsNil)
	return n
}

func tableExists(c *qt.C, conn *dbschema.DatabaseConnection, table string) bool {
	exists, err := conn.TableExists(context.Background(), "", table)
	c.Assert(err, qt.IsNil)
	return exists
}

const personChangeSets = `
<changeSet id="1" author="dev">
    <createTable tableName="person">
        <column name="id" type="integer">
            <constraints primaryKey="true"/>
        </column>
        <column name="name" type="varchar(50)"/>
    </createTable>
</changeSet>
<changeSet id="2" author="dev">
    <sql>
        insert into person (id, name) values (1, 'ada');
        insert into person (id, name) values (2, 'grace');
    </sql>
    <rollback>delete from person</rollback>
</changeSet>`

func TestNewExecutor_InvalidHistoryTable(t *testing.T) {
	c := qt.New(t)

	conn := connect(c)
	_, err := executor.NewExecutor(conn, &changelog.ChangeLog{}, config.WithHistoryTable("changes; drop table person"))
	c.Assert(err, qt.ErrorMatches, `invalid tracking table name "changes; drop table person"`)
}

func TestExecutor_WithLogger(t *testing.T) {
	c := qt.New(t)

	conn := connect(c)
	e, err := executor.NewExecutor(conn, &changelog.ChangeLog{}, nil)
	c.Assert(err, qt.IsNil)

	e2 := e.WithLogger(slog.Default())
	c.Assert(e2, qt.Not(qt.Equals), e)
	c.Assert(e2.History(), qt.Equals, e.History())
	c.Assert(e.History().Table(), qt.Equals, "databasechangelog")
}

func TestExecutor_Update(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	cl := load(c, personChangeSets)
	e := newExecutor(c, conn, cl, nil)

	c.Assert(e.Update(ctx), qt.IsNil)
	c.Assert(count(c, conn, "person"), qt.Equals, 2)

	ran := ranChangeSets(c, e)
	c.Assert(ran, qt.HasLen, 2)
	for i, r := range ran {
		cs := cl.ChangeSets[i]
		c.Assert(r.Key(), qt.Equals, cs.Key())
		c.Assert(r.OrderExecuted, qt.Equals, i+1)
		c.Assert(r.ExecType, qt.Equals, executor.ExecTypeExecuted)
		c.Assert(r.CheckSum, qt.Equals, cs.CheckSum())
		c.Assert(r.Description, qt.Equals, cs.Description())
		c.Assert(r.DeploymentID, qt.HasLen, 10)
		c.Assert(r.DateExecuted.IsZero(), qt.IsFalse)
	}
	c.Assert(ran[0].Description, qt.Equals, "createTable")
	c.Assert(ran[1].Description, qt.Equals, "sql")

	// a second update has nothing to do
	c.Assert(e.Update(ctx), qt.IsNil)
	c.Assert(count(c, conn, "person"), qt.Equals, 2)
	c.Assert(ranChangeSets(c, e), qt.HasLen, 2)
}

func TestExecutor_UpdateAppendsNewChangeSets(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	c.Assert(newExecutor(c, conn, load(c, personChangeSets), nil).Update(ctx), qt.IsNil)

	cl := load(c, personChangeSets+`
<changeSet id="3" author="dev">
    <sql>insert into person (id, name) values (3, 'barbara')</sql>
</changeSet>`)
	e := newExecutor(c, conn, cl, nil)
	c.Assert(e.Update(ctx), qt.IsNil)

	ran := ranChangeSets(c, e)
	c.Assert(ran, qt.HasLen, 3)
	c.Assert(ran[2].ID, qt.Equals, "3")
	c.Assert(ran[2].OrderExecuted, qt.Equals, 3)
	c.Assert(count(c, conn, "person"), qt.Equals, 3)
}

func TestExecutor_FailedChangeSetIsRolledBack(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	cl := load(c, personChangeSets+`
<changeSet id="broken" author="dev">
    <sql>
        insert into person (id, name) values (3, 'barbara');
        insert into missing (id) values (1);
    </sql>
</changeSet>`)
	e := newExecutor(c, conn, cl, nil)

	err := e.Update(ctx)
	c.Assert(err, qt.ErrorMatches, `failed to apply change set changelog.xml::broken::dev: sql: failed to execute SQL: .*missing.*`)
	c.Assert(count(c, conn, "person"), qt.Equals, 2)
	c.Assert(ranChangeSets(c, e), qt.HasLen, 2)
	c.Assert(conn.Writer().InTransaction(), qt.IsFalse)
}

func TestExecutor_ChecksumChanges(t *testing.T) {
	tests := []struct {
		name        string
		attrs       string
		wantErr     bool
		wantExec    executor.ExecType
		wantPersons int
	}{
		{
			name:    "edited change set is rejected",
			wantErr: true,
		},
		{
			name:        "runOnChange reruns edited change set",
			attrs:       `runOnChange="true"`,
			wantExec:    executor.ExecTypeReran,
			wantPersons: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			ctx := context.Background()

			conn := connect(c)
			c.Assert(newExecutor(c, conn, load(c, personChangeSets), nil).Update(ctx), qt.IsNil)

			cl := load(c, fmt.Sprintf(`
<changeSet id="1" author="dev">
    <createTable tableName="person">
        <column name="id" type="integer">
            <constraints primaryKey="true"/>
        </column>
        <column name="name" type="varchar(50)"/>
    </createTable>
</changeSet>
<changeSet id="2" author="dev" %s>
    <sql>insert into person (id, name) values (3, 'barbara')</sql>
</changeSet>`, tt.attrs))
			e := newExecutor(c, conn, cl, nil)

			err := e.Update(ctx)
			if tt.wantErr {
				c.Assert(errors.Is(err, executor.ErrChecksumMismatch), qt.IsTrue, qt.Commentf("%v", err))
				c.Assert(err, qt.ErrorMatches, `checksum mismatch: change set changelog.xml::2::dev was 7:\w+ but is now 7:\w+`)
				c.Assert(count(c, conn, "person"), qt.Equals, 2)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Assert(count(c, conn, "person"), qt.Equals, tt.wantPersons)

			ran := ranChangeSets(c, e)
			c.Assert(ran, qt.HasLen, 2)
			c.Assert(ran[1].ExecType, qt.Equals, tt.wantExec)
			c.Assert(ran[1].CheckSum, qt.Equals, cl.ChangeSets[1].CheckSum())
			c.Assert(ran[1].OrderExecuted, qt.Equals, 2)
		})
	}
}

func TestExecutor_RunAlways(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	cl := load(c, `
<changeSet id="counter" author="dev">
    <sql>create table runs (id integer)</sql>
</changeSet>
<changeSet id="tick" author="dev" runAlways="true">
    <sql>insert into runs (id) values (1)</sql>
</changeSet>`)

	for range 3 {
		c.Assert(newExecutor(c, conn, cl, nil).Update(ctx), qt.IsNil)
	}
	c.Assert(count(c, conn, "runs"), qt.Equals, 3)

	ran := ranChangeSets(c, newExecutor(c, conn, cl, nil))
	c.Assert(ran, qt.HasLen, 2)
	c.Assert(ran[1].ExecType, qt.Equals, executor.ExecTypeReran)
}

func TestExecutor_OldChecksumVersionIsUpgraded(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	cl := load(c, personChangeSets)
	e := newExecutor(c, conn, cl, nil)
	c.Assert(e.Update(ctx), qt.IsNil)

	_, err := conn.ExecContext(ctx, "UPDATE databasechangelog SET md5sum = '1:0123456789abcdef' WHERE id = '2'")
	c.Assert(err, qt.IsNil)

	c.Assert(e.Update(ctx), qt.IsNil)
	c.Assert(count(c, conn, "person"), qt.Equals, 2)
	ran := ranChangeSets(c, e)
	c.Assert(ran[1].CheckSum, qt.Equals, cl.ChangeSets[1].CheckSum())
	c.Assert(ran[1].ExecType, qt.Equals, executor.ExecTypeExecuted)
}

func TestExecutor_Preconditions(t *testing.T) {
	tests := []struct {
		name       string
		onFail     string
		wantErr    string
		wantTable  bool
		wantRan    bool
		wantExec   executor.ExecType
		wantNoRows bool
	}{
		{
			name:    "halt",
			onFail:  "HALT",
			wantErr: `failed to apply change set changelog.xml::guarded::dev: precondition tableExists failed: table person does not exist`,
		},
		{
			name:   "continue",
			onFail: "CONTINUE",
		},
		{
			name:     "mark ran",
			onFail:   "MARK_RAN",
			wantRan:  true,
			wantExec: executor.ExecTypeMarkRan,
		},
		{
			name:      "warn",
			onFail:    "WARN",
			wantTable: true,
			wantRan:   true,
			wantExec:  executor.ExecTypeExecuted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			ctx := context.Background()

			conn := connect(c)
			cl := load(c, fmt.Sprintf(`
<changeSet id="guarded" author="dev">
    <preConditions onFail="%s">
        <tableExists tableName="person"/>
    </preConditions>
    <sql>create table guarded (id integer)</sql>
</changeSet>`, tt.onFail))
			e := newExecutor(c, conn, cl, nil)

			err := e.Update(ctx)
			if tt.wantErr != "" {
				c.Assert(err, qt.ErrorMatches, tt.wantErr)
				c.Assert(errors.Is(err, changelog.ErrPreconditionFailed), qt.IsTrue)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Assert(tableExists(c, conn, "guarded"), qt.Equals, tt.wantTable)

			ran := ranChangeSets(c, e)
			if !tt.wantRan {
				c.Assert(ran, qt.HasLen, 0)
				return
			}
			c.Assert(ran, qt.HasLen, 1)
			c.Assert(ran[0].ExecType, qt.Equals, tt.wantExec)
		})
	}
}

func TestExecutor_ChangeLogPreconditions(t *testing.T) {
	tests := []struct {
		name      string
		onFail    string
		wantErr   string
		wantTable bool
	}{
		{
			name:    "halt",
			onFail:  "HALT",
			wantErr: `changelog changelog.xml: precondition dbms failed: database sqlite is not postgres`,
		},
		{
			name:   "continue",
			onFail: "CONTINUE",
		},
		{
			name:      "warn",
			onFail:    "WARN",
			wantTable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			conn := connect(c)
			cl := load(c, fmt.Sprintf(`
<preConditions onFail="%s">
    <dbms type="postgres"/>
</preConditions>
<changeSet id="1" author="dev">
    <sql>create table things (id integer)</sql>
</changeSet>`, tt.onFail))

			err := newExecutor(c, conn, cl, nil).Update(context.Background())
			if tt.wantErr != "" {
				c.Assert(err, qt.ErrorMatches, tt.wantErr)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Assert(tableExists(c, conn, "things"), qt.Equals, tt.wantTable)
		})
	}
}

func TestExecutor_DbmsFilter(t *testing.T) {
	c := qt.New(t)

	conn := connect(c)
	cl := load(c, `
<changeSet id="pg" author="dev" dbms="postgres">
    <sql>create table pg_only (id integer)</sql>
</changeSet>
<changeSet id="lite" author="dev" dbms="sqlite">
    <sql>create table lite_only (id integer)</sql>
</changeSet>`)
	e := newExecutor(c, conn, cl, nil)

	c.Assert(e.Update(context.Background()), qt.IsNil)
	c.Assert(tableExists(c, conn, "pg_only"), qt.IsFalse)
	c.Assert(tableExists(c, conn, "lite_only"), qt.IsTrue)

	ran := ranChangeSets(c, e)
	c.Assert(ran, qt.HasLen, 1)
	c.Assert(ran[0].ID, qt.Equals, "lite")
}

func TestExecutor_InvalidChangeLog(t *testing.T) {
	c := qt.New(t)

	conn := connect(c)
	cl := load(c, `
<changeSet id="1" author="dev">
    <createTable tableName="person"/>
</changeSet>`)

	err := newExecutor(c, conn, cl, nil).Update(context.Background())
	c.Assert(err, qt.ErrorMatches, `changelog changelog.xml is invalid: .*columns is required.*`)
	c.Assert(tableExists(c, conn, "databasechangelog"), qt.IsFalse)
}

func TestExecutor_CustomTaskChange(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	cl := load(c, `
<changeSet id="audit" author="dev">
    <sql>create table audit (message varchar(100))</sql>
</changeSet>
<changeSet id="seed" author="dev">
    <customChange class="com.example.Audit" message="seeded"/>
</changeSet>`)
	e := newExecutor(c, conn, cl, nil)

	c.Assert(e.Update(ctx), qt.IsNil)
	c.Assert(count(c, conn, "audit"), qt.Equals, 1)

	c.Assert(e.Rollback(ctx, 1), qt.IsNil)
	c.Assert(count(c, conn, "audit"), qt.Equals, 0)
	c.Assert(ranChangeSets(c, e), qt.HasLen, 1)
}

func TestExecutor_Rollback(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	cl := load(c, personChangeSets)
	e := newExecutor(c, conn, cl, nil)
	c.Assert(e.Update(ctx), qt.IsNil)

	// explicit rollback of change set 2
	c.Assert(e.Rollback(ctx, 1), qt.IsNil)
	c.Assert(count(c, conn, "person"), qt.Equals, 0)
	c.Assert(ranChangeSets(c, e), qt.HasLen, 1)

	// createTable rolls back with its own inverse
	c.Assert(e.Rollback(ctx, 5), qt.IsNil)
	c.Assert(tableExists(c, conn, "person"), qt.IsFalse)
	c.Assert(ranChangeSets(c, e), qt.HasLen, 0)

	c.Assert(e.Rollback(ctx, 1), qt.IsNil)
	c.Assert(e.Rollback(ctx, 0), qt.ErrorMatches, "rollback count must be positive, got 0")

	// and everything applies again
	c.Assert(e.Update(ctx), qt.IsNil)
	c.Assert(count(c, conn, "person"), qt.Equals, 2)
}

func TestExecutor_RollbackImpossible(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	cl := load(c, `
<changeSet id="1" author="dev">
    <sql>create table things (id integer)</sql>
</changeSet>`)
	e := newExecutor(c, conn, cl, nil)
	c.Assert(e.Update(ctx), qt.IsNil)

	err := e.Rollback(ctx, 1)
	c.Assert(errors.Is(err, change.ErrRollbackImpossible), qt.IsTrue, qt.Commentf("%v", err))
	c.Assert(err, qt.ErrorMatches, "failed to roll back change set changelog.xml::1::dev: no inverse to sql defined")
	c.Assert(tableExists(c, conn, "things"), qt.IsTrue)
	c.Assert(ranChangeSets(c, e), qt.HasLen, 1)
}

func TestExecutor_RollbackMarkRanOnlyRemovesRow(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	cl := load(c, `
<changeSet id="1" author="dev">
    <preConditions onFail="MARK_RAN">
        <tableExists tableName="person"/>
    </preConditions>
    <sql>create table things (id integer)</sql>
</changeSet>`)
	e := newExecutor(c, conn, cl, nil)
	c.Assert(e.Update(ctx), qt.IsNil)
	c.Assert(ranChangeSets(c, e), qt.HasLen, 1)

	c.Assert(e.Rollback(ctx, 1), qt.IsNil)
	c.Assert(ranChangeSets(c, e), qt.HasLen, 0)
}

func TestExecutor_RollbackUnknownChangeSet(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	c.Assert(newExecutor(c, conn, load(c, personChangeSets), nil).Update(ctx), qt.IsNil)

	e := newExecutor(c, conn, load(c, ""), nil)
	err := e.Rollback(ctx, 1)
	c.Assert(err, qt.ErrorMatches, "cannot roll back changelog.xml::2::dev: change set not found in changelog")
}

func TestExecutor_DryRun(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	var out bytes.Buffer
	conn.Writer().SetOutput(&out)

	cl := load(c, personChangeSets+`
<changeSet id="audit" author="dev">
    <customChange class="com.example.Audit" message="seeded"/>
</changeSet>`)
	e := newExecutor(c, conn, cl, config.DefaultExecutorOptions().WithDryRun(true))

	c.Assert(e.Update(ctx), qt.IsNil)
	c.Assert(tableExists(c, conn, "person"), qt.IsFalse)
	c.Assert(tableExists(c, conn, "databasechangelog"), qt.IsFalse)

	sql := out.String()
	c.Assert(sql, qt.Contains, "CREATE TABLE IF NOT EXISTS databasechangelog")
	c.Assert(sql, qt.Contains, "-- Changeset changelog.xml::1::dev\nCREATE TABLE person")
	c.Assert(sql, qt.Contains, `CREATE TABLE person (id integer PRIMARY KEY, name varchar(50));`)
	c.Assert(sql, qt.Contains, "insert into person (id, name) values (1, 'ada');")
	c.Assert(sql, qt.Contains, "'EXECUTED'")
	c.Assert(sql, qt.Not(qt.Contains), "insert into audit")
}

func TestExecutor_QuotingStrategyFixture(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	cl, err := changelog.Load(os.DirFS("../../changelog/testdata"), "quoting-strategy.changelog.xml", changelog.DefaultLoadOptions())
	c.Assert(err, qt.IsNil)

	conn := connect(c)
	var out bytes.Buffer
	conn.Writer().SetOutput(&out)
	dry := newExecutor(c, conn, cl, config.DefaultExecutorOptions().WithDryRun(true))
	c.Assert(dry.Update(ctx), qt.IsNil)
	c.Assert(out.String(), qt.Contains, `CREATE TABLE "quoted_table" ("id" int PRIMARY KEY);`)
	c.Assert(out.String(), qt.Contains, `CREATE TABLE legacy_table (id int PRIMARY KEY);`)

	e := newExecutor(c, conn, cl, nil)
	c.Assert(e.Update(ctx), qt.IsNil)
	c.Assert(tableExists(c, conn, "quoted_table"), qt.IsTrue)
	c.Assert(tableExists(c, conn, "legacy_table"), qt.IsTrue)
	c.Assert(ranChangeSets(c, e), qt.HasLen, 3)
}

func TestExecutor_CustomHistoryTable(t *testing.T) {
	c := qt.New(t)

	conn := connect(c)
	e := newExecutor(c, conn, load(c, personChangeSets), config.WithHistoryTable("app_changes"))

	c.Assert(e.Update(context.Background()), qt.IsNil)
	c.Assert(tableExists(c, conn, "app_changes"), qt.IsTrue)
	c.Assert(tableExists(c, conn, "databasechangelog"), qt.IsFalse)
	c.Assert(count(c, conn, "app_changes"), qt.Equals, 2)
}

func TestExecutor_Status(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	c.Assert(newExecutor(c, conn, load(c, personChangeSets+`
<changeSet id="retired" author="dev">
    <sql>create table retired (id integer)</sql>
</changeSet>`), nil).Update(ctx), qt.IsNil)

	cl := load(c, `
<changeSet id="1" author="dev">
    <createTable tableName="person">
        <column name="id" type="integer">
            <constraints primaryKey="true"/>
        </column>
        <column name="name" type="varchar(50)"/>
    </createTable>
</changeSet>
<changeSet id="2" author="dev">
    <sql>insert into person (id, name) values (3, 'barbara')</sql>
</changeSet>
<changeSet id="pg" author="dev" dbms="postgres">
    <sql>create table pg_only (id integer)</sql>
</changeSet>
<changeSet id="3" author="dev">
    <sql>create table address (id integer)</sql>
</changeSet>`)
	e := newExecutor(c, conn, cl, nil)

	status, err := e.Status(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(status.HasPendingChanges, qt.IsTrue)

	want := []struct {
		id      string
		state   executor.State
		willRun bool
		ran     bool
	}{
		{id: "1", state: executor.StateRan, ran: true},
		{id: "2", state: executor.StateChanged, ran: true},
		{id: "pg", state: executor.StateSkipped},
		{id: "3", state: executor.StatePending, willRun: true},
	}
	c.Assert(status.ChangeSets, qt.HasLen, len(want))
	for i, w := range want {
		got := status.ChangeSets[i]
		c.Assert(got.ChangeSet.ID, qt.Equals, w.id)
		c.Assert(got.State, qt.Equals, w.state, qt.Commentf("change set %s", w.id))
		c.Assert(got.WillRun, qt.Equals, w.willRun, qt.Commentf("change set %s", w.id))
		c.Assert(got.Ran != nil, qt.Equals, w.ran, qt.Commentf("change set %s", w.id))
	}

	c.Assert(status.Unknown, qt.HasLen, 1)
	c.Assert(status.Unknown[0].Key(), qt.Equals, "changelog.xml::retired::dev")

	pending := status.Pending()
	c.Assert(pending, qt.HasLen, 1)
	c.Assert(pending[0].ID, qt.Equals, "3")

	errs, err := e.Validate(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(errs.Errors(), qt.HasLen, 1)
	c.Assert(errs.Errors()[0], qt.Matches, `checksum mismatch: change set changelog.xml::2::dev was 7:\w+ but is now 7:\w+`)
}

func TestExecutor_StatusBeforeInitialize(t *testing.T) {
	c := qt.New(t)

	conn := connect(c)
	status, err := newExecutor(c, conn, load(c, personChangeSets), nil).Status(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(status.HasPendingChanges, qt.IsTrue)
	c.Assert(status.Unknown, qt.HasLen, 0)
	c.Assert(status.Pending(), qt.HasLen, 2)
	c.Assert(tableExists(c, conn, "databasechangelog"), qt.IsFalse)
}

func TestExecutor_LongCommentIsTruncatedByCharacter(t *testing.T) {
	c := qt.New(t)

	conn := connect(c)
	comment := strings.Repeat("a", 254) + strings.Repeat("é", 10)
	e := newExecutor(c, conn, load(c, `
<changeSet id="1" author="dev">
    <comment>`+comment+`</comment>
    <sql>create table notes (id integer)</sql>
</changeSet>`), nil)

	c.Assert(e.Update(context.Background()), qt.IsNil)

	ran := ranChangeSets(c, e)
	c.Assert(ran, qt.HasLen, 1)
	c.Assert(ran[0].Comments, qt.Equals, strings.Repeat("a", 254)+"é")
	c.Assert(utf8.ValidString(ran[0].Comments), qt.IsTrue)
}
