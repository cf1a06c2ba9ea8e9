package dbschema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stokaro/changekit/dbschema/types"
)

var (
	_ types.SchemaWriter = (*Writer)(nil)
)

// Writer executes statements against the connection, or prints them in dry-run mode.
type Writer struct {
	conn   *DatabaseConnection
	tx     *sql.Tx
	dryRun bool
	out    io.Writer
}

// ExecuteSQL executes a single statement. In dry-run mode the statement is
// written to the output instead, terminated with ";".
func (w *Writer) ExecuteSQL(ctx context.Context, sql string) error {
	if w.dryRun {
		sql = strings.TrimSpace(sql)
		if !strings.HasSuffix(sql, ";") {
			sql += ";"
		}
		_, err := fmt.Fprintf(w.out, "%s\n\n", sql)
		return err
	}
	if _, err := w.conn.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// WriteComment writes a "--" comment line to the dry-run output. It does
// nothing when statements are executed.
func (w *Writer) WriteComment(text string) error {
	if !w.dryRun {
		return nil
	}
	_, err := fmt.Fprintf(w.out, "-- %s\n", text)
	return err
}

// BeginTransaction starts the transaction subsequent statements run in.
// It is a no-op in dry-run mode.
func (w *Writer) BeginTransaction(ctx context.Context) error {
	if w.dryRun {
		return nil
	}
	if w.tx != nil {
		return errors.New("transaction already in progress")
	}
	tx, err := w.conn.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	w.tx = tx
	return nil
}

// CommitTransaction commits the open transaction, if any.
func (w *Writer) CommitTransaction() error {
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the open transaction, if any.
func (w *Writer) RollbackTransaction() error {
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// InTransaction reports whether a transaction is open.
func (w *Writer) InTransaction() bool {
	return w.tx != nil
}

// SetDryRun switches dry-run mode.
func (w *Writer) SetDryRun(dryRun bool) {
	w.dryRun = dryRun
}

func (w *Writer) IsDryRun() bool {
	return w.dryRun
}

// SetOutput sets where dry-run statements are written. The default is os.Stdout.
func (w *Writer) SetOutput(out io.Writer) {
	w.out = out
}
