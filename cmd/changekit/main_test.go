package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

const testChangeLog = `<?xml version="1.0" encoding="UTF-8"?>
<databaseChangeLog>
    <changeSet id="1" author="dev">
        <createTable tableName="person">
            <column name="id" type="integer">
                <constraints primaryKey="true"/>
            </column>
            <column name="name" type="varchar(50)"/>
        </createTable>
    </changeSet>
    <changeSet id="2" author="dev">
        <sql>insert into person (id, name) values (1, 'ada')</sql>
        <rollback>delete from person where id = 1</rollback>
    </changeSet>
</databaseChangeLog>
`

type project struct {
	changeLog string
	url       string
	dir       string
}

func newProject(c *qt.C) project {
	dir := c.TempDir()
	changeLog := filepath.Join(dir, "changelog.xml")
	c.Assert(os.WriteFile(changeLog, []byte(testChangeLog), 0o600), qt.IsNil)
	return project{
		changeLog: changeLog,
		url:       "sqlite://" + filepath.Join(dir, "app.db"),
		dir:       dir,
	}
}

func run(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_Lifecycle(t *testing.T) {
	c := qt.New(t)

	p := newProject(c)
	common := []string{"--changelog", p.changeLog, "--url", p.url}
	with := func(args ...string) []string {
		return append(args, common...)
	}

	out, err := run(with("status")...)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "2 change set(s), 2 to apply")
	c.Assert(out, qt.Contains, "  pending  changelog.xml::1::dev\n")
	c.Assert(out, qt.Contains, "Database needs an update")

	out, err = run(with("update", "--dry-run")...)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "CREATE TABLE person (id integer PRIMARY KEY, name varchar(50));")
	c.Assert(out, qt.Contains, "insert into person (id, name) values (1, 'ada');")
	c.Assert(out, qt.Not(qt.Contains), "Database is up to date")

	out, err = run(with("status")...)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "2 to apply")

	out, err = run(with("update")...)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "Database is up to date\n")

	out, err = run(with("status")...)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "  ran      changelog.xml::2::dev\n")
	c.Assert(out, qt.Contains, "Database is up to date")

	out, err = run(with("validate")...)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "No validation errors found\n")

	out, err = run(with("rollback", "1")...)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "Rolled back 1 change set(s)\n")

	out, err = run(with("status")...)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "  ran      changelog.xml::1::dev\n")
	c.Assert(out, qt.Contains, "  pending  changelog.xml::2::dev\n")
}

func TestCommands_ChecksumMismatchIsReported(t *testing.T) {
	c := qt.New(t)

	p := newProject(c)
	_, err := run("update", "--changelog", p.changeLog, "--url", p.url)
	c.Assert(err, qt.IsNil)

	edited := bytes.Replace([]byte(testChangeLog), []byte("'ada'"), []byte("'grace'"), 1)
	c.Assert(os.WriteFile(p.changeLog, edited, 0o600), qt.IsNil)

	out, err := run("validate", "--changelog", p.changeLog, "--url", p.url)
	c.Assert(err, qt.ErrorMatches, "changelog changelog.xml has 1 validation error\\(s\\)")
	c.Assert(out, qt.Contains, "checksum mismatch: change set changelog.xml::2::dev")

	out, err = run("status", "--changelog", p.changeLog, "--url", p.url)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "  changed  changelog.xml::2::dev (checksum mismatch)\n")

	_, err = run("update", "--changelog", p.changeLog, "--url", p.url)
	c.Assert(err, qt.ErrorMatches, "error updating database: checksum mismatch: .*")
}

func TestCommands_Checksum(t *testing.T) {
	c := qt.New(t)

	p := newProject(c)

	out, err := run("checksum", "--changelog", p.changeLog)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Matches, `(?s)7:[0-9a-f]{32} changelog.xml::1::dev\n7:[0-9a-f]{32} changelog.xml::2::dev\n`)

	out, err = run("checksum", "changelog.xml::2::dev", "--changelog", p.changeLog)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Matches, `7:[0-9a-f]{32} changelog.xml::2::dev\n`)

	_, err = run("checksum", "changelog.xml::9::dev", "--changelog", p.changeLog)
	c.Assert(err, qt.ErrorMatches, "change set changelog.xml::9::dev not found in changelog.xml")
}

func TestCommands_ConfigFile(t *testing.T) {
	c := qt.New(t)

	p := newProject(c)
	configFile := filepath.Join(p.dir, "changekit.yaml")
	content := "changelog: " + p.changeLog + "\nurl: " + p.url + "\nhistory_table: app_changes\n"
	c.Assert(os.WriteFile(configFile, []byte(content), 0o600), qt.IsNil)

	out, err := run("update", "--config", configFile)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "Database is up to date\n")

	// the flag wins over the file
	out, err = run("status", "--config", configFile, "--history-table", "other_changes")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "2 to apply")

	out, err = run("status", "--config", configFile)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "0 to apply")
}

func TestCommands_Errors(t *testing.T) {
	c := qt.New(t)

	p := newProject(c)
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing changelog",
			args:    []string{"status", "--url", p.url},
			wantErr: `changelog file is required \(use --changelog flag\)`,
		},
		{
			name:    "missing url",
			args:    []string{"update", "--changelog", p.changeLog},
			wantErr: `database URL is required \(use --url flag\)`,
		},
		{
			name:    "unsupported url",
			args:    []string{"update", "--changelog", p.changeLog, "--url", "db2://localhost/sample"},
			wantErr: `error connecting to database: unsupported database URL scheme "db2"`,
		},
		{
			name:    "invalid rollback count",
			args:    []string{"rollback", "none", "--changelog", p.changeLog, "--url", p.url},
			wantErr: `count must be a positive number, got "none"`,
		},
		{
			name:    "invalid log level",
			args:    []string{"status", "--changelog", p.changeLog, "--url", p.url, "--log-level", "loud"},
			wantErr: `invalid log level "loud": .*`,
		},
		{
			name:    "missing changelog file",
			args:    []string{"checksum", "--changelog", filepath.Join(p.dir, "missing.xml")},
			wantErr: `error loading changelog: failed to read changelog: .*`,
		},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			_, err := run(tt.args...)
			c.Assert(err, qt.ErrorMatches, tt.wantErr)
		})
	}
}
