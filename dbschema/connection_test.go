package dbschema_test

import (
	"bytes"
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/changekit/dbschema"
	"github.com/stokaro/changekit/dbschema/types"
)

func connect(c *qt.C) *dbschema.DatabaseConnection {
	conn, err := dbschema.ConnectToDatabase(context.Background(), "sqlite::memory:")
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = conn.Close() })
	return conn
}

func count(c *qt.C, conn *dbschema.DatabaseConnection, query string) int {
	var n int
	c.Assert(conn.QueryRowContext(context.Background(), query).Scan(&n), qt.IsNil)
	return n
}

func TestConnectToDatabase_SQLite(t *testing.T) {
	c := qt.New(t)

	conn := connect(c)
	info := conn.Info()
	c.Assert(info.Dialect, qt.Equals, "sqlite")
	c.Assert(info.Schema, qt.Equals, "main")
	c.Assert(info.Version, qt.Not(qt.Equals), "")
	c.Assert(info.URL, qt.Equals, "sqlite::memory:")
	c.Assert(conn.Database().ShortName(), qt.Equals, "sqlite")
	c.Assert(conn.Database().Connection(), qt.Equals, conn)
}

func TestConnectToDatabase_UnsupportedScheme(t *testing.T) {
	c := qt.New(t)

	_, err := dbschema.ConnectToDatabase(context.Background(), "db2://localhost/sample")
	c.Assert(err, qt.ErrorMatches, `unsupported database URL scheme "db2"`)
}

func TestWriter_Transactions(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	w := conn.Writer()
	c.Assert(w.ExecuteSQL(ctx, "CREATE TABLE person (id INTEGER PRIMARY KEY)"), qt.IsNil)

	c.Assert(w.BeginTransaction(ctx), qt.IsNil)
	c.Assert(w.InTransaction(), qt.IsTrue)
	c.Assert(w.BeginTransaction(ctx), qt.ErrorMatches, "transaction already in progress")
	c.Assert(w.ExecuteSQL(ctx, "INSERT INTO person (id) VALUES (1)"), qt.IsNil)
	// reads see the open transaction's writes
	c.Assert(count(c, conn, "SELECT count(*) FROM person"), qt.Equals, 1)
	c.Assert(w.RollbackTransaction(), qt.IsNil)
	c.Assert(w.InTransaction(), qt.IsFalse)
	c.Assert(count(c, conn, "SELECT count(*) FROM person"), qt.Equals, 0)

	c.Assert(w.BeginTransaction(ctx), qt.IsNil)
	c.Assert(w.ExecuteSQL(ctx, "INSERT INTO person (id) VALUES (2)"), qt.IsNil)
	c.Assert(w.CommitTransaction(), qt.IsNil)
	c.Assert(count(c, conn, "SELECT count(*) FROM person"), qt.Equals, 1)

	c.Assert(w.CommitTransaction(), qt.IsNil)
	c.Assert(w.RollbackTransaction(), qt.IsNil)

	err := w.ExecuteSQL(ctx, "INSERT INTO missing VALUES (1)")
	c.Assert(err, qt.ErrorMatches, "failed to execute SQL: .*no such table: missing.*")
}

func TestWriter_DryRun(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	var out bytes.Buffer
	w := conn.Writer()
	w.SetOutput(&out)
	w.SetDryRun(true)
	c.Assert(w.IsDryRun(), qt.IsTrue)

	c.Assert(w.WriteComment("Changeset people"), qt.IsNil)
	c.Assert(w.BeginTransaction(ctx), qt.IsNil)
	c.Assert(w.InTransaction(), qt.IsFalse)
	c.Assert(w.ExecuteSQL(ctx, "CREATE TABLE person (id INTEGER)"), qt.IsNil)
	c.Assert(w.ExecuteSQL(ctx, "  DELETE FROM person;\n"), qt.IsNil)
	c.Assert(w.CommitTransaction(), qt.IsNil)

	c.Assert(out.String(), qt.Equals, "-- Changeset people\nCREATE TABLE person (id INTEGER);\n\nDELETE FROM person;\n\n")

	tables, err := conn.Reader().ReadTables(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(tables, qt.HasLen, 0)
}

func TestReader_Tables(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	conn := connect(c)
	c.Assert(conn.Writer().ExecuteSQL(ctx, "CREATE TABLE person (id INTEGER)"), qt.IsNil)
	c.Assert(conn.Writer().ExecuteSQL(ctx, "CREATE VIEW adults AS SELECT id FROM person"), qt.IsNil)

	tables, err := conn.Reader().ReadTables(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(tables, qt.DeepEquals, []types.DBTable{
		{Schema: "main", Name: "adults", Type: "VIEW"},
		{Schema: "main", Name: "person", Type: "TABLE"},
	})

	exists, err := conn.TableExists(ctx, "", "PERSON")
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsTrue)

	exists, err = conn.TableExists(ctx, "", "address")
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsFalse)
}

func TestDatabaseConnection_NativeSQL(t *testing.T) {
	c := qt.New(t)

	conn := connect(c)
	got, err := conn.NativeSQL(context.Background(), "SELECT {fn UCASE(name)} FROM person")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "SELECT UCASE(name) FROM person")
}
