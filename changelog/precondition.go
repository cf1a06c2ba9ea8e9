package changelog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stokaro/changekit/core/database"
)

var (
	// ErrPreconditionFailed is returned when a precondition does not hold.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrConditionNotMet is matched by errors of conditions that were
	// evaluated and do not hold. Other errors mean the condition could not
	// be evaluated.
	ErrConditionNotMet = errors.New("condition not met")
)

// NotMet returns an error reporting that a condition does not hold.
func NotMet(format string, args ...any) error {
	return &notMetError{msg: fmt.Sprintf(format, args...)}
}

type notMetError struct {
	msg string
}

func (e *notMetError) Error() string {
	return e.msg
}

func (e *notMetError) Is(target error) bool {
	return target == ErrConditionNotMet
}

// OnFail selects what happens when preconditions fail.
type OnFail string

const (
	// OnFailHalt stops the update. It is the default.
	OnFailHalt OnFail = "HALT"
	// OnFailContinue skips the change set and retries it on the next update.
	OnFailContinue OnFail = "CONTINUE"
	// OnFailMarkRan skips the change set and records it as ran.
	OnFailMarkRan OnFail = "MARK_RAN"
	// OnFailWarn logs a warning and applies the change set anyway.
	OnFailWarn OnFail = "WARN"
)

// ParseOnFail parses an onFail value. An empty value yields OnFailHalt.
func ParseOnFail(s string) (OnFail, error) {
	switch v := OnFail(strings.ToUpper(strings.TrimSpace(s))); v {
	case "":
		return OnFailHalt, nil
	case OnFailHalt, OnFailContinue, OnFailMarkRan, OnFailWarn:
		return v, nil
	default:
		return "", fmt.Errorf("unknown onFail value %q", s)
	}
}

// CheckContext is what preconditions are evaluated against.
type CheckContext struct {
	DB        database.Database
	ChangeLog *ChangeLog
	// ChangeSet is nil for changelog-level preconditions.
	ChangeSet *ChangeSet
}

// Precondition is a single assertion.
type Precondition interface {
	Name() string
	// Check returns nil when the assertion holds, an error matching
	// ErrConditionNotMet when it does not, and any other error when it
	// could not be evaluated.
	Check(ctx context.Context, cc CheckContext) error
}

// Preconditions must all hold for a change set to run.
type Preconditions struct {
	OnFail        OnFail
	OnFailMessage string
	Conditions    []Precondition
}

// PreconditionError describes a failed precondition.
type PreconditionError struct {
	OnFail    OnFail
	Condition string
	Message   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition %s failed: %s", e.Condition, e.Message)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}

// Check evaluates the conditions in order and returns a *PreconditionError for
// the first one that does not hold. A condition that cannot be evaluated stops
// the check with its error, whatever OnFail says.
func (p *Preconditions) Check(ctx context.Context, cc CheckContext) error {
	if p == nil {
		return nil
	}
	for _, cond := range p.Conditions {
		err := cond.Check(ctx, cc)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrConditionNotMet) {
			return fmt.Errorf("failed to check precondition %s: %w", cond.Name(), err)
		}
		msg := err.Error()
		if p.OnFailMessage != "" {
			msg = p.OnFailMessage
		}
		onFail := p.OnFail
		if onFail == "" {
			onFail = OnFailHalt
		}
		return &PreconditionError{OnFail: onFail, Condition: cond.Name(), Message: msg}
	}
	return nil
}

// ExpectedQuotingStrategy asserts the object quoting strategy in effect for the change set.
type ExpectedQuotingStrategy struct {
	Strategy database.ObjectQuotingStrategy
}

func (p *ExpectedQuotingStrategy) Name() string {
	return "expectedQuotingStrategy"
}

func (p *ExpectedQuotingStrategy) Check(_ context.Context, cc CheckContext) error {
	var actual database.ObjectQuotingStrategy
	switch {
	case cc.ChangeSet != nil:
		actual = cc.ChangeSet.ObjectQuotingStrategy
	case cc.ChangeLog != nil:
		actual = cc.ChangeLog.ObjectQuotingStrategy
	}
	if actual == "" {
		actual = database.Legacy
	}
	if actual != p.Strategy {
		return NotMet("expected %s but found %s", p.Strategy, actual)
	}
	return nil
}

// DBMS asserts the target database against a dbms list such as "postgres, mysql".
type DBMS struct {
	Type string
}

func (p *DBMS) Name() string {
	return "dbms"
}

func (p *DBMS) Check(_ context.Context, cc CheckContext) error {
	if !database.MatchesList(cc.DB, p.Type) {
		name := "<none>"
		if cc.DB != nil {
			name = cc.DB.ShortName()
		}
		return NotMet("database %s is not %s", name, p.Type)
	}
	return nil
}

// TableExists asserts that a table exists. It needs a connection that can read tables.
type TableExists struct {
	SchemaName string
	TableName  string
}

type tableChecker interface {
	TableExists(ctx context.Context, schema, table string) (bool, error)
}

func (p *TableExists) Name() string {
	return "tableExists"
}

func (p *TableExists) Check(ctx context.Context, cc CheckContext) error {
	var checker tableChecker
	if cc.DB != nil {
		checker, _ = cc.DB.Connection().(tableChecker)
	}
	if checker == nil {
		return fmt.Errorf("cannot look up table %s without a database connection", p.TableName)
	}
	exists, err := checker.TableExists(ctx, p.SchemaName, p.TableName)
	if err != nil {
		return fmt.Errorf("failed to look up table %s: %w", p.TableName, err)
	}
	if !exists {
		return NotMet("table %s does not exist", p.TableName)
	}
	return nil
}

// Not holds when none of its conditions hold.
type Not struct {
	Conditions []Precondition
}

func (p *Not) Name() string {
	return "not"
}

func (p *Not) Check(ctx context.Context, cc CheckContext) error {
	for _, cond := range p.Conditions {
		err := cond.Check(ctx, cc)
		switch {
		case err == nil:
			return NotMet("%s holds", cond.Name())
		case !errors.Is(err, ErrConditionNotMet):
			return err
		}
	}
	return nil
}
