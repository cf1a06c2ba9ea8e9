// Package executor applies the change sets of a changelog to a database and
// records them in a tracking table.
//
// Each change set runs in its own transaction together with the tracking row
// that records it. Change sets that already ran are skipped unless their
// checksum changed and they are marked runOnChange, or they are marked
// runAlways. A changed checksum on any other change set stops the update with
// ErrChecksumMismatch.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stokaro/changekit/change"
	"github.com/stokaro/changekit/changelog"
	"github.com/stokaro/changekit/config"
	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/statement"
	"github.com/stokaro/changekit/dbschema"
)

// ErrChecksumMismatch is returned when a change set that already ran was edited.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// directExecutor is implemented by changes that do their work while generating
// statements. They are skipped in dry-run mode.
type directExecutor interface {
	ExecutesDirectly() bool
}

// Executor applies and rolls back the change sets of one changelog.
type Executor struct {
	conn        *dbschema.DatabaseConnection
	changeLog   *changelog.ChangeLog
	history     *History
	db          database.Database
	dryRun      bool
	initialized bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewExecutor creates an executor for cl. Nil options mean
// config.DefaultExecutorOptions. The options' dry-run flag is applied to the
// connection's writer.
func NewExecutor(conn *dbschema.DatabaseConnection, cl *changelog.ChangeLog, opts *config.ExecutorOptions) (*Executor, error) {
	if opts == nil {
		opts = config.DefaultExecutorOptions()
	}
	history, err := NewHistory(conn, opts.HistoryTable)
	if err != nil {
		return nil, err
	}
	conn.Writer().SetDryRun(opts.DryRun)
	return &Executor{
		conn:      conn,
		changeLog: cl,
		history:   history,
		db:        conn.Database(),
		dryRun:    opts.DryRun,
		logger:    slog.Default(),
		now:       time.Now,
	}, nil
}

// WithLogger sets the logger for the executor
func (e *Executor) WithLogger(l *slog.Logger) *Executor {
	tmp := *e
	tmp.logger = l
	return &tmp
}

// History returns the tracking table.
func (e *Executor) History() *History {
	return e.history
}

// Initialize creates the tracking table if it doesn't exist
func (e *Executor) Initialize(ctx context.Context) error {
	if e.initialized {
		return nil
	}
	if err := e.history.Create(ctx); err != nil {
		return err
	}
	e.initialized = true
	return nil
}

// Update applies every pending change set in changelog order.
func (e *Executor) Update(ctx context.Context) error {
	if errs := e.changeLog.Validate(e.db); errs.HasErrors() {
		return fmt.Errorf("changelog %s is invalid: %w", e.changeLog.PhysicalPath, errs.Err())
	}
	if err := e.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracking table: %w", err)
	}

	proceed, err := e.checkChangeLogPreconditions(ctx)
	if err != nil || !proceed {
		return err
	}

	ran, err := e.history.RanChangeSets(ctx)
	if err != nil {
		return err
	}
	ranByKey := make(map[string]RanChangeSet, len(ran))
	order := 0
	for _, r := range ran {
		ranByKey[r.Key()] = r
		order = max(order, r.OrderExecuted)
	}
	deploymentID := e.deploymentID()

	e.logger.Info("Updating database", "changelog", e.changeLog.PhysicalPath,
		"changeSets", len(e.changeLog.ChangeSets), "ran", len(ran))

	applied := 0
	for _, cs := range e.changeLog.ChangeSets {
		if !cs.AppliesTo(e.db) {
			e.logger.Debug("Skipping change set for another database", "changeSet", cs.Key(), "dbms", cs.Dbms)
			continue
		}

		execType := ExecTypeExecuted
		if r, ok := ranByKey[cs.Key()]; ok {
			rerun, err := e.needsRerun(ctx, cs, r)
			if err != nil {
				return err
			}
			if !rerun {
				e.logger.Debug("Skipping change set that already ran", "changeSet", cs.Key())
				continue
			}
			execType = ExecTypeReran
		}

		if err := cs.Preconditions.Check(ctx, changelog.CheckContext{DB: e.db, ChangeLog: e.changeLog, ChangeSet: cs}); err != nil {
			var pe *changelog.PreconditionError
			if !errors.As(err, &pe) {
				return err
			}
			switch pe.OnFail {
			case changelog.OnFailWarn:
				e.logger.Warn("Precondition failed, applying change set anyway", "changeSet", cs.Key(), "reason", pe.Message)
			case changelog.OnFailContinue:
				e.logger.Info("Skipping change set, precondition failed", "changeSet", cs.Key(), "reason", pe.Message)
				continue
			case changelog.OnFailMarkRan:
				e.logger.Info("Marking change set as ran, precondition failed", "changeSet", cs.Key(), "reason", pe.Message)
				order++
				if err := e.markRan(ctx, cs, execType, order, deploymentID); err != nil {
					return err
				}
				continue
			default:
				return fmt.Errorf("failed to apply change set %s: %w", cs.Key(), err)
			}
		}

		if execType == ExecTypeExecuted {
			order++
		}
		if err := e.apply(ctx, cs, ranFrom(cs, execType, order, deploymentID, e.now())); err != nil {
			return err
		}
		applied++
	}

	e.logger.Info("Database is up to date", "applied", applied)
	return nil
}

// checkChangeLogPreconditions reports whether the update may proceed.
func (e *Executor) checkChangeLogPreconditions(ctx context.Context) (bool, error) {
	err := e.changeLog.Preconditions.Check(ctx, changelog.CheckContext{DB: e.db, ChangeLog: e.changeLog})
	if err == nil {
		return true, nil
	}
	var pe *changelog.PreconditionError
	if !errors.As(err, &pe) {
		return false, err
	}
	switch pe.OnFail {
	case changelog.OnFailWarn:
		e.logger.Warn("Changelog precondition failed, continuing", "reason", pe.Message)
		return true, nil
	case changelog.OnFailContinue, changelog.OnFailMarkRan:
		e.logger.Info("Changelog precondition failed, nothing applied", "reason", pe.Message)
		return false, nil
	default:
		return false, fmt.Errorf("changelog %s: %w", e.changeLog.PhysicalPath, err)
	}
}

// needsRerun decides what to do with a change set that already ran.
func (e *Executor) needsRerun(ctx context.Context, cs *changelog.ChangeSet, r RanChangeSet) (bool, error) {
	sum := cs.CheckSum()
	changed := !r.CheckSum.Equal(sum)
	if changed && (r.CheckSum.IsZero() || r.CheckSum.Version() != sum.Version()) {
		// Sums of an older algorithm cannot be compared, store the current one.
		e.logger.Info("Updating stored checksum", "changeSet", cs.Key(), "from", r.CheckSum.String(), "to", sum.String())
		r.CheckSum = sum
		if err := e.history.UpdateCheckSum(ctx, r); err != nil {
			return false, err
		}
		changed = false
	}
	switch {
	case changed && !cs.RunOnChange:
		return false, fmt.Errorf("%w: change set %s was %s but is now %s", ErrChecksumMismatch, cs.Key(), r.CheckSum, sum)
	case changed:
		return true, nil
	default:
		return cs.RunAlways, nil
	}
}

func (e *Executor) apply(ctx context.Context, cs *changelog.ChangeSet, r RanChangeSet) error {
	e.logger.Info("Applying change set", "id", cs.ID, "author", cs.Author, "file", cs.FilePath, "execType", r.ExecType)

	w := e.conn.Writer()
	if err := w.WriteComment("Changeset " + cs.Key()); err != nil {
		return err
	}
	if err := w.BeginTransaction(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction for change set %s: %w", cs.Key(), err)
	}

	if err := e.execute(ctx, cs, cs.Changes, generateForward); err != nil {
		_ = w.RollbackTransaction()
		return fmt.Errorf("failed to apply change set %s: %w", cs.Key(), err)
	}

	var err error
	if r.ExecType == ExecTypeReran {
		err = e.history.Rerecord(ctx, r)
	} else {
		err = e.history.Record(ctx, r)
	}
	if err != nil {
		_ = w.RollbackTransaction()
		return err
	}

	if err := w.CommitTransaction(); err != nil {
		return fmt.Errorf("failed to commit transaction for change set %s: %w", cs.Key(), err)
	}

	e.logger.Info("Applied change set", "id", cs.ID, "author", cs.Author, "file", cs.FilePath)
	return nil
}

func (e *Executor) markRan(ctx context.Context, cs *changelog.ChangeSet, execType ExecType, order int, deploymentID string) error {
	r := ranFrom(cs, ExecTypeMarkRan, order, deploymentID, e.now())
	if execType == ExecTypeReran {
		return e.history.Rerecord(ctx, r)
	}
	return e.history.Record(ctx, r)
}

type generateFunc func(ctx context.Context, c change.Change, db database.Database) ([]statement.SQLStatement, error)

func generateForward(ctx context.Context, c change.Change, db database.Database) ([]statement.SQLStatement, error) {
	return c.GenerateStatements(ctx, db)
}

func generateRollback(ctx context.Context, c change.Change, db database.Database) ([]statement.SQLStatement, error) {
	return c.GenerateRollbackStatements(ctx, db)
}

// execute renders the statements of changes with the change set's quoting
// strategy and runs them through the writer.
func (e *Executor) execute(ctx context.Context, cs *changelog.ChangeSet, changes []change.Change, generate generateFunc) error {
	renderer := statement.NewRenderer(e.db, cs.ObjectQuotingStrategy)
	for _, c := range changes {
		name := c.MetaData().Name
		if d, ok := c.(directExecutor); ok && d.ExecutesDirectly() && e.dryRun {
			e.logger.Warn("Skipping change that executes directly in dry-run mode", "changeSet", cs.Key(), "change", name)
			continue
		}

		stmts, err := generate(ctx, c, e.db)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		sqls, err := renderer.RenderAll(stmts)
		if err != nil {
			return fmt.Errorf("%s: failed to render statements: %w", name, err)
		}
		for _, sql := range sqls {
			e.logger.Debug("Executing statement", "changeSet", cs.Key(), "sql", sql)
			if err := e.conn.Writer().ExecuteSQL(ctx, sql); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		if msg := c.ConfirmationMessage(); msg != "" {
			e.logger.Info(msg, "changeSet", cs.Key())
		}
	}
	return nil
}

// Rollback undoes the last count applied change sets, most recent first.
// Change sets recorded as MARK_RAN only lose their tracking row.
func (e *Executor) Rollback(ctx context.Context, count int) error {
	if count < 1 {
		return fmt.Errorf("rollback count must be positive, got %d", count)
	}
	if err := e.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracking table: %w", err)
	}

	ran, err := e.history.RanChangeSets(ctx)
	if err != nil {
		return err
	}
	count = min(count, len(ran))

	e.logger.Info("Rolling back", "changelog", e.changeLog.PhysicalPath, "count", count)

	for i := len(ran) - 1; i >= len(ran)-count; i-- {
		r := ran[i]
		cs := e.changeLog.ChangeSet(r.FileName, r.ID, r.Author)
		if cs == nil {
			return fmt.Errorf("cannot roll back %s: change set not found in changelog", r.Key())
		}
		if err := e.rollbackChangeSet(ctx, cs, r); err != nil {
			return err
		}
	}

	e.logger.Info("Rollback complete", "rolledBack", count)
	return nil
}

func (e *Executor) rollbackChangeSet(ctx context.Context, cs *changelog.ChangeSet, r RanChangeSet) error {
	var changes []change.Change
	generate := generateForward
	if r.ExecType != ExecTypeMarkRan {
		var err error
		changes, generate, err = e.rollbackChanges(cs)
		if err != nil {
			return fmt.Errorf("failed to roll back change set %s: %w", cs.Key(), err)
		}
	}

	e.logger.Info("Rolling back change set", "id", cs.ID, "author", cs.Author, "file", cs.FilePath)

	w := e.conn.Writer()
	if err := w.WriteComment("Rolling back Changeset " + cs.Key()); err != nil {
		return err
	}
	if err := w.BeginTransaction(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction for change set %s: %w", cs.Key(), err)
	}
	if err := e.execute(ctx, cs, changes, generate); err != nil {
		_ = w.RollbackTransaction()
		return fmt.Errorf("failed to roll back change set %s: %w", cs.Key(), err)
	}
	if err := e.history.Remove(ctx, r); err != nil {
		_ = w.RollbackTransaction()
		return err
	}
	if err := w.CommitTransaction(); err != nil {
		return fmt.Errorf("failed to commit transaction for change set %s: %w", cs.Key(), err)
	}

	e.logger.Info("Rolled back change set", "id", cs.ID, "author", cs.Author, "file", cs.FilePath)
	return nil
}

// rollbackChanges returns the explicit rollback changes, or the change set's
// own changes in reverse order when every one of them can be undone.
func (e *Executor) rollbackChanges(cs *changelog.ChangeSet) ([]change.Change, generateFunc, error) {
	if cs.HasRollback {
		return cs.Rollback, generateForward, nil
	}
	changes := make([]change.Change, 0, len(cs.Changes))
	for i := len(cs.Changes) - 1; i >= 0; i-- {
		c := cs.Changes[i]
		if !c.SupportsRollback(e.db) {
			return nil, nil, change.RollbackImpossible("no inverse to %s defined", c.MetaData().Name)
		}
		changes = append(changes, c)
	}
	return changes, generateRollback, nil
}

// deploymentID groups the change sets of one update.
func (e *Executor) deploymentID() string {
	return fmt.Sprintf("%010d", e.now().Unix()%10_000_000_000)
}
