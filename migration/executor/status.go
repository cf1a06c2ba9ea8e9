package executor

import (
	"context"
	"fmt"

	"github.com/stokaro/changekit/change"
	"github.com/stokaro/changekit/changelog"
)

// State is the state of a change set relative to the tracking table.
type State string

const (
	// StatePending change sets have not run yet.
	StatePending State = "pending"
	// StateRan change sets ran with their current checksum.
	StateRan State = "ran"
	// StateChanged change sets ran but have been edited since.
	StateChanged State = "changed"
	// StateSkipped change sets do not apply to the connected database.
	StateSkipped State = "skipped"
)

// ChangeSetStatus describes one change set of the changelog.
type ChangeSetStatus struct {
	ChangeSet *changelog.ChangeSet
	State     State
	// Ran is the tracking row, nil for pending and skipped change sets.
	Ran *RanChangeSet
	// WillRun reports whether the next update applies the change set,
	// ignoring preconditions.
	WillRun bool
}

// Status compares the changelog with the tracking table.
type Status struct {
	ChangeSets []ChangeSetStatus
	// Unknown are tracking rows without a change set in the changelog.
	Unknown           []RanChangeSet
	HasPendingChanges bool
}

// Pending returns the change sets the next update applies.
func (s *Status) Pending() []*changelog.ChangeSet {
	var pending []*changelog.ChangeSet
	for _, cs := range s.ChangeSets {
		if cs.WillRun {
			pending = append(pending, cs.ChangeSet)
		}
	}
	return pending
}

// Status reports the state of every change set without changing the database.
func (e *Executor) Status(ctx context.Context) (*Status, error) {
	ran, err := e.history.RanChangeSets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ran change sets: %w", err)
	}
	ranByKey := make(map[string]RanChangeSet, len(ran))
	for _, r := range ran {
		ranByKey[r.Key()] = r
	}

	status := &Status{}
	known := make(map[string]bool, len(e.changeLog.ChangeSets))
	for _, cs := range e.changeLog.ChangeSets {
		known[cs.Key()] = true
		entry := ChangeSetStatus{ChangeSet: cs}
		r, ok := ranByKey[cs.Key()]
		switch {
		case !cs.AppliesTo(e.db):
			entry.State = StateSkipped
		case !ok:
			entry.State = StatePending
			entry.WillRun = true
		case checksumChanged(cs, r):
			entry.State = StateChanged
			entry.WillRun = cs.RunOnChange || cs.RunAlways
		default:
			entry.State = StateRan
			entry.WillRun = cs.RunAlways
		}
		if ok {
			entry.Ran = &r
		}
		status.HasPendingChanges = status.HasPendingChanges || entry.WillRun
		status.ChangeSets = append(status.ChangeSets, entry)
	}
	for _, r := range ran {
		if !known[r.Key()] {
			status.Unknown = append(status.Unknown, r)
		}
	}
	return status, nil
}

// Validate checks the changelog against the connected database and reports
// change sets that were edited after they ran.
func (e *Executor) Validate(ctx context.Context) (*change.ValidationErrors, error) {
	errs := e.changeLog.Validate(e.db)

	ran, err := e.history.RanChangeSets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ran change sets: %w", err)
	}
	for _, r := range ran {
		cs := e.changeLog.ChangeSet(r.FileName, r.ID, r.Author)
		if cs == nil || cs.RunOnChange || !checksumChanged(cs, r) {
			continue
		}
		errs.AddError(fmt.Sprintf("%s: change set %s was %s but is now %s", ErrChecksumMismatch, cs.Key(), r.CheckSum, cs.CheckSum()))
	}
	return errs, nil
}

// checksumChanged reports a difference only when both sums use the same algorithm.
func checksumChanged(cs *changelog.ChangeSet, r RanChangeSet) bool {
	sum := cs.CheckSum()
	if r.CheckSum.IsZero() || r.CheckSum.Version() != sum.Version() {
		return false
	}
	return !r.CheckSum.Equal(sum)
}
