// Package changelog loads changelogs and models their change sets.
//
// A changelog is an XML or YAML document listing change sets in the order they
// are applied. Each change set is identified by id, author and file path and
// carries its changes, optional explicit rollback changes and preconditions.
// The object quoting strategy declared on the changelog applies to every change
// set that does not override it.
package changelog

import (
	"fmt"
	"strings"

	"github.com/stokaro/changekit/change"
	"github.com/stokaro/changekit/core/checksum"
	"github.com/stokaro/changekit/core/database"
)

// ChangeLog is a loaded changelog with its included changelogs flattened in.
type ChangeLog struct {
	// PhysicalPath is the path the changelog was loaded from.
	PhysicalPath string
	// ObjectQuotingStrategy applies to change sets that do not declare their own.
	ObjectQuotingStrategy database.ObjectQuotingStrategy
	// Preconditions are checked once before any change set runs.
	Preconditions *Preconditions
	// ChangeSets in execution order.
	ChangeSets []*ChangeSet
}

// ChangeSet is the unit the executor applies and tracks.
type ChangeSet struct {
	ID       string
	Author   string
	FilePath string

	// ObjectQuotingStrategy is the effective strategy, inherited from the changelog unless overridden.
	ObjectQuotingStrategy database.ObjectQuotingStrategy
	// RunOnChange re-applies the change set when its checksum changes.
	RunOnChange bool
	// RunAlways applies the change set on every update.
	RunAlways bool
	// Dbms limits the change set to the listed databases.
	Dbms     string
	Comments string

	Preconditions *Preconditions
	Changes       []change.Change

	// Rollback holds explicit rollback changes. It is only consulted when HasRollback is set;
	// an explicit empty rollback means nothing needs to be undone.
	Rollback    []change.Change
	HasRollback bool
}

// Key identifies the change set in the tracking table.
func (cs *ChangeSet) Key() string {
	return cs.FilePath + "::" + cs.ID + "::" + cs.Author
}

func (cs *ChangeSet) String() string {
	return cs.Key()
}

// CheckSum combines the checksums of the change set's changes.
func (cs *ChangeSet) CheckSum() checksum.CheckSum {
	parts := make([]string, len(cs.Changes))
	for i, c := range cs.Changes {
		parts[i] = c.GenerateCheckSum().String()
	}
	return checksum.Compute(strings.Join(parts, ":"))
}

// Description lists the change types of the change set, e.g. "createTable, sql".
func (cs *ChangeSet) Description() string {
	names := make([]string, len(cs.Changes))
	for i, c := range cs.Changes {
		names[i] = c.MetaData().Name
	}
	if len(names) == 0 {
		return "empty"
	}
	return strings.Join(names, ", ")
}

// AppliesTo reports whether the change set's dbms filter admits db.
func (cs *ChangeSet) AppliesTo(db database.Database) bool {
	return database.MatchesList(db, cs.Dbms)
}

// ChangeSet returns the change set with the given identity, or nil.
func (cl *ChangeLog) ChangeSet(filePath, id, author string) *ChangeSet {
	for _, cs := range cl.ChangeSets {
		if cs.FilePath == filePath && cs.ID == id && cs.Author == author {
			return cs
		}
	}
	return nil
}

// Validate checks identities and every applicable change against db.
func (cl *ChangeLog) Validate(db database.Database) *change.ValidationErrors {
	errs := change.NewValidationErrors()
	seen := map[string]bool{}
	for i, cs := range cl.ChangeSets {
		if cs.ID == "" || cs.Author == "" {
			errs.AddError(fmt.Sprintf("change set #%d in %s requires an id and an author", i+1, cs.FilePath))
			continue
		}
		if seen[cs.Key()] {
			errs.AddError("change set " + cs.Key() + " is defined more than once")
		}
		seen[cs.Key()] = true

		if !cs.AppliesTo(db) {
			continue
		}
		for _, c := range append(cs.Changes[:len(cs.Changes):len(cs.Changes)], cs.Rollback...) {
			for _, msg := range c.Validate(db).Errors() {
				errs.AddError(cs.Key() + ": " + msg)
			}
		}
	}
	return errs
}
