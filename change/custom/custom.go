// Package custom lets user-supplied types run as changes.
//
// A plugin type is registered under a name with a Factory and implements
// CustomChange plus at least one of SQLChange or TaskChange. Rollback support
// comes from SQLRollback or TaskRollback. Parameters from the changelog are
// applied right before each execution, either through ParamSetter or by
// decoding them into the plugin's `param`-tagged fields.
package custom

import (
	"context"
	"io/fs"

	"github.com/stokaro/changekit/change"
	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/statement"
)

// CustomChange is the contract every plugin implements.
type CustomChange interface {
	// ConfirmationMessage is logged after the change was applied.
	ConfirmationMessage() string
	// SetUp is called after parameters were applied and before execution.
	SetUp() error
	// SetResourceAccessor provides the changelog's file system.
	SetResourceAccessor(fsys fs.FS)
	// Validate reports configuration problems for the target database.
	Validate(db database.Database) *change.ValidationErrors
}

// SQLChange is implemented by plugins that generate statements.
type SQLChange interface {
	CustomChange
	GenerateStatements(ctx context.Context, db database.Database) ([]statement.SQLStatement, error)
}

// TaskChange is implemented by plugins that do their work directly.
type TaskChange interface {
	CustomChange
	Execute(ctx context.Context, db database.Database) error
}

// SQLRollback is implemented by plugins that generate rollback statements.
type SQLRollback interface {
	CustomChange
	GenerateRollbackStatements(ctx context.Context, db database.Database) ([]statement.SQLStatement, error)
}

// TaskRollback is implemented by plugins that roll back directly.
type TaskRollback interface {
	CustomChange
	Rollback(ctx context.Context, db database.Database) error
}

// ParamSetter is implemented by plugins that take parameters themselves
// instead of having them decoded into their fields.
type ParamSetter interface {
	SetParam(name, value string) error
}
