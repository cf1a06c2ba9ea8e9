package custom

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-extras/go-kit/must"
	"github.com/go-viper/mapstructure/v2"

	"github.com/stokaro/changekit/change"
	"github.com/stokaro/changekit/core/checksum"
	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/statement"
)

var (
	_ change.Change       = (*Wrapper)(nil)
	_ change.Serializable = (*Wrapper)(nil)
)

const (
	fieldClass = "class"
	fieldParam = "param"
)

var wrapperMetaData = change.ChangeMetaData{
	Name:        "customChange",
	Description: "Custom Change",
	Priority:    change.PriorityDefault,
}

// Wrapper adapts a plugin to change.Change.
//
// SetLoader must be called before SetClass. The plugin is created by SetClass
// but receives its parameters only right before each call that executes it.
type Wrapper struct {
	change.Base

	customChange CustomChange
	className    string
	loader       Loader
	params       []string
	paramValues  map[string]string
}

// NewWrapper creates a wrapper resolving classes through loader.
func NewWrapper(loader Loader) *Wrapper {
	return &Wrapper{loader: loader}
}

func (w *Wrapper) MetaData() change.ChangeMetaData {
	return wrapperMetaData
}

// CustomChange returns the plugin created by SetClass, or nil.
func (w *Wrapper) CustomChange() CustomChange {
	return w.customChange
}

func (w *Wrapper) Loader() Loader {
	return w.loader
}

func (w *Wrapper) SetLoader(loader Loader) {
	w.loader = loader
}

// SetClass creates the plugin registered under className.
//
// The wrapper's loader is tried first, then DefaultRegistry, then DefaultRegistry
// with the part of className after its last ".". No parameters are applied yet.
func (w *Wrapper) SetClass(className string) (*Wrapper, error) {
	if w.loader == nil {
		return w, change.Unexpected("custom change wrapper loader not set")
	}
	w.className = className

	cc, err := w.loader.Load(className)
	if err == nil && cc == nil {
		err = fmt.Errorf("%w: %s", ErrNotRegistered, className)
	}
	if err != nil {
		var fallbackErr error
		cc, fallbackErr = DefaultRegistry.Load(className)
		if fallbackErr != nil {
			if i := strings.LastIndex(className, "."); i >= 0 {
				cc, fallbackErr = DefaultRegistry.Load(className[i+1:])
			}
		}
		if fallbackErr != nil {
			return w, change.WrapUnexpected(fmt.Errorf("failed to load custom change %s: %w", className, err))
		}
	}

	w.customChange = cc
	return w, nil
}

// ClassName returns the name passed to SetClass.
func (w *Wrapper) ClassName() string {
	return w.className
}

// SetParam records a parameter to apply before the plugin executes.
func (w *Wrapper) SetParam(name, value string) {
	if w.paramValues == nil {
		w.paramValues = map[string]string{}
	}
	if i, found := slices.BinarySearch(w.params, name); !found {
		w.params = slices.Insert(w.params, i, name)
	}
	w.paramValues[name] = value
}

// Params returns the names passed to SetParam in sorted order.
func (w *Wrapper) Params() []string {
	return slices.Clone(w.params)
}

// ParamValue returns the value recorded for name, or "" when none was set.
func (w *Wrapper) ParamValue(name string) string {
	return w.paramValues[name]
}

// Validate applies the parameters and returns the plugin's validation result.
// Failures and panics become a single validation error.
func (w *Wrapper) Validate(db database.Database) *change.ValidationErrors {
	var result *change.ValidationErrors
	err := w.call("validate", func() error {
		if err := w.applyParams(); err != nil {
			return err
		}
		result = w.customChange.Validate(db)
		return nil
	})
	if err != nil {
		return change.NewValidationErrors().AddError("Exception thrown calling " + w.className + ".validate():" + err.Error())
	}
	if result == nil {
		return change.NewValidationErrors()
	}
	return result
}

// GenerateStatements configures the plugin and runs it. Statement plugins return
// their statements; task plugins do their work and return none.
func (w *Wrapper) GenerateStatements(ctx context.Context, db database.Database) ([]statement.SQLStatement, error) {
	if err := w.configure(); err != nil {
		return nil, err
	}

	var stmts []statement.SQLStatement
	err := w.call("generateStatements", func() error {
		switch cc := w.customChange.(type) {
		case SQLChange:
			var err error
			stmts, err = cc.GenerateStatements(ctx, db)
			return err
		case TaskChange:
			return cc.Execute(ctx, db)
		default:
			return change.Unexpected("%T does not implement custom.SQLChange or custom.TaskChange", w.customChange)
		}
	})
	if err != nil {
		return nil, change.WrapUnexpected(err)
	}
	if stmts == nil {
		stmts = []statement.SQLStatement{}
	}
	return stmts, nil
}

// GenerateRollbackStatements configures the plugin and rolls it back.
// ErrRollbackImpossible from the plugin is returned as is.
func (w *Wrapper) GenerateRollbackStatements(ctx context.Context, db database.Database) ([]statement.SQLStatement, error) {
	if err := w.configure(); err != nil {
		return nil, err
	}

	var stmts []statement.SQLStatement
	err := w.call("generateRollbackStatements", func() error {
		switch cc := w.customChange.(type) {
		case SQLRollback:
			var err error
			stmts, err = cc.GenerateRollbackStatements(ctx, db)
			return err
		case TaskRollback:
			return cc.Rollback(ctx, db)
		default:
			return change.RollbackImpossible("Unknown rollback type: %T", w.customChange)
		}
	})
	if err != nil {
		return nil, change.WrapUnexpected(err)
	}
	if stmts == nil {
		stmts = []statement.SQLStatement{}
	}
	return stmts, nil
}

// SupportsRollback reports whether the plugin implements a rollback capability.
// Rolling back may still fail with ErrRollbackImpossible.
func (w *Wrapper) SupportsRollback(database.Database) bool {
	switch w.customChange.(type) {
	case SQLRollback, TaskRollback:
		return true
	}
	return false
}

// ExecutesDirectly reports whether running the change does the work itself
// instead of returning statements.
func (w *Wrapper) ExecutesDirectly() bool {
	if _, ok := w.customChange.(SQLChange); ok {
		return false
	}
	_, ok := w.customChange.(TaskChange)
	return ok
}

func (w *Wrapper) ConfirmationMessage() string {
	if w.customChange == nil {
		return ""
	}
	return w.customChange.ConfirmationMessage()
}

// GenerateCheckSum hashes the class name and parameters.
func (w *Wrapper) GenerateCheckSum() checksum.CheckSum {
	return must.Must(change.ComputeCheckSum(w))
}

func (w *Wrapper) SerializableFields() []string {
	return []string{fieldClass, fieldParam}
}

func (w *Wrapper) SerializableFieldType(field string) (change.SerializationType, error) {
	switch field {
	case fieldClass:
		return change.NamedField, nil
	case fieldParam:
		return change.NestedObject, nil
	}
	return "", change.Unexpected("unexpected custom change field %s", field)
}

func (w *Wrapper) SerializableFieldValue(field string) (any, error) {
	switch field {
	case fieldClass:
		return w.className, nil
	case fieldParam:
		return maps.Clone(w.paramValues), nil
	}
	return nil, change.Unexpected("unexpected custom change field %s", field)
}

// configure applies parameters, the resource accessor and SetUp, in that order.
func (w *Wrapper) configure() error {
	err := w.call("setUp", func() error {
		if err := w.applyParams(); err != nil {
			return err
		}
		w.customChange.SetResourceAccessor(w.ResourceAccessor())
		return w.customChange.SetUp()
	})
	if err != nil {
		return change.WrapUnexpected(fmt.Errorf("failed to configure custom change %s: %w", w.className, err))
	}
	return nil
}

func (w *Wrapper) applyParams() error {
	if len(w.params) == 0 {
		return nil
	}
	if setter, ok := w.customChange.(ParamSetter); ok {
		for _, name := range w.params {
			if err := setter.SetParam(name, w.paramValues[name]); err != nil {
				return fmt.Errorf("failed to set parameter %s: %w", name, err)
			}
		}
		return nil
	}

	input := make(map[string]any, len(w.params))
	for _, name := range w.params {
		input[name] = w.paramValues[name]
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           w.customChange,
		TagName:          "param",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to set parameters: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to set parameters: %w", err)
	}
	return nil
}

// call runs fn against the plugin, turning a missing plugin and panics into errors.
func (w *Wrapper) call(method string, fn func() error) (err error) {
	if w.customChange == nil {
		return change.Unexpected("custom change class not set")
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%s.%s panicked: %w", w.className, method, e)
				return
			}
			err = fmt.Errorf("%s.%s panicked: %v", w.className, method, r)
		}
	}()
	return fn()
}
