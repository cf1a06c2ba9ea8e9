// Package change defines the units of work a change set applies to a database.
//
// Every change describes itself with ChangeMetaData, validates against a target
// database, generates the statements to execute and contributes a checksum that
// lets the executor detect edits to change sets that already ran.
package change

import (
	"context"
	"io/fs"

	"github.com/stokaro/changekit/core/checksum"
	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/statement"
)

// PriorityDefault is the priority of the built-in changes.
const PriorityDefault = 1

// Change is a single operation inside a change set.
type Change interface {
	// MetaData describes the change and its parameters.
	MetaData() ChangeMetaData
	// Validate reports configuration problems for the target database.
	Validate(db database.Database) *ValidationErrors
	// Warn reports non-fatal remarks for the target database.
	Warn(db database.Database) *Warnings
	// GenerateStatements returns the statements that apply the change.
	GenerateStatements(ctx context.Context, db database.Database) ([]statement.SQLStatement, error)
	// SupportsRollback reports whether GenerateRollbackStatements can succeed.
	SupportsRollback(db database.Database) bool
	// GenerateRollbackStatements returns the statements that undo the change.
	// It fails with ErrRollbackImpossible when the change cannot be undone.
	GenerateRollbackStatements(ctx context.Context, db database.Database) ([]statement.SQLStatement, error)
	// GenerateCheckSum returns the checksum of the change's definition.
	GenerateCheckSum() checksum.CheckSum
	// ConfirmationMessage is logged after the change was applied.
	ConfirmationMessage() string
	// SetResourceAccessor provides the file system changelog resources are read from.
	SetResourceAccessor(fsys fs.FS)
}

// ChangeMetaData describes a change type.
type ChangeMetaData struct {
	Name        string
	Description string
	Priority    int
	Parameters  []*ParameterMetaData
}

// Parameter returns the named parameter or nil.
func (m ChangeMetaData) Parameter(name string) *ParameterMetaData {
	for _, p := range m.Parameters {
		if p.ParameterName() == name {
			return p
		}
	}
	return nil
}

// Base provides the parts of Change shared by most implementations.
type Base struct {
	resourceAccessor fs.FS
}

func (b *Base) SetResourceAccessor(fsys fs.FS) {
	b.resourceAccessor = fsys
}

// ResourceAccessor returns the file system set by SetResourceAccessor, or nil.
func (b *Base) ResourceAccessor() fs.FS {
	return b.resourceAccessor
}

func (b *Base) Warn(database.Database) *Warnings {
	return NewWarnings()
}

func (b *Base) SupportsRollback(database.Database) bool {
	return false
}

func (b *Base) GenerateRollbackStatements(context.Context, database.Database) ([]statement.SQLStatement, error) {
	return nil, RollbackImpossible("no inverse defined for this change")
}

// ValidateRequired checks that every parameter required for db is set on c.
func ValidateRequired(c Change, db database.Database) *ValidationErrors {
	errs := NewValidationErrors()
	for _, p := range c.MetaData().Parameters {
		if !p.IsRequiredFor(db) {
			continue
		}
		value, err := p.CurrentValue(c)
		if err != nil {
			errs.AddError(err.Error())
			continue
		}
		errs.CheckRequiredField(p.ParameterName(), value)
	}
	return errs
}
