package change

import (
	"reflect"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stokaro/changekit/core/database"
)

// SerializationType describes how a change property is written out.
type SerializationType string

const (
	NamedField   SerializationType = "NAMED_FIELD"
	NestedObject SerializationType = "NESTED_OBJECT"
	DirectValue  SerializationType = "DIRECT_VALUE"
)

const (
	requiredForAll  = "all"
	requiredForNone = "none"
)

// ParameterDefinition holds the arguments of NewParameterMetaData.
// Empty strings stand for absent values.
type ParameterDefinition struct {
	Name                string
	DisplayName         string
	Description         string
	ExampleValue        string
	DataType            reflect.Type
	RequiredForDatabase []string
	MustEqualExisting   string
	SerializationType   SerializationType
}

// ParameterMetaData describes one property of a change.
type ParameterMetaData struct {
	name              string
	displayName       string
	description       string
	exampleValue      string
	dataType          string
	requiredFor       []string
	mustEqualExisting string
	serializationType SerializationType
}

// NewParameterMetaData validates def and builds the descriptor.
func NewParameterMetaData(def ParameterDefinition) (*ParameterMetaData, error) {
	if def.Name == "" {
		return nil, Unexpected("Unexpected null parameterName")
	}
	if strings.ContainsFunc(def.Name, unicode.IsSpace) {
		return nil, Unexpected("Unexpected space in parameterName")
	}
	if def.DisplayName == "" {
		return nil, Unexpected("Unexpected null displayName")
	}
	if def.DataType == nil {
		return nil, Unexpected("Unexpected null dataType")
	}

	required := def.RequiredForDatabase
	if len(required) == 1 && required[0] == requiredForNone {
		required = nil
	}
	set := make([]string, 0, len(required))
	for _, name := range required {
		if !slices.Contains(set, name) {
			set = append(set, name)
		}
	}
	slices.Sort(set)

	return &ParameterMetaData{
		name:              def.Name,
		displayName:       def.DisplayName,
		description:       def.Description,
		exampleValue:      def.ExampleValue,
		dataType:          typeName(def.DataType),
		requiredFor:       set,
		mustEqualExisting: def.MustEqualExisting,
		serializationType: def.SerializationType,
	}, nil
}

func (p *ParameterMetaData) ParameterName() string {
	return p.name
}

func (p *ParameterMetaData) DisplayName() string {
	return p.displayName
}

func (p *ParameterMetaData) Description() string {
	return p.description
}

func (p *ParameterMetaData) ExampleValue() string {
	return p.exampleValue
}

// DataType returns the human-readable name of the declared type, e.g. "integer" or "list of string".
func (p *ParameterMetaData) DataType() string {
	return p.dataType
}

func (p *ParameterMetaData) MustEqualExisting() string {
	return p.mustEqualExisting
}

func (p *ParameterMetaData) SerializationType() SerializationType {
	return p.serializationType
}

// RequiredForDatabase returns a sorted copy of the databases the parameter is required for.
func (p *ParameterMetaData) RequiredForDatabase() []string {
	return slices.Clone(p.requiredFor)
}

// IsRequiredFor reports whether the parameter must be set when targeting db.
func (p *ParameterMetaData) IsRequiredFor(db database.Database) bool {
	if slices.Contains(p.requiredFor, requiredForAll) {
		return true
	}
	return database.MatchesAny(db, p.requiredFor...)
}

// CurrentValue reads the property named like the parameter from change.
//
// A zero-argument method whose name matches case-insensitively wins; otherwise an
// exported field whose `change` tag or name matches is read. Unset values
// (nil pointers, empty strings, nil slices and maps) are reported as nil.
func (p *ParameterMetaData) CurrentValue(change any) (any, error) {
	v := reflect.ValueOf(change)
	if !v.IsValid() {
		return nil, Unexpected("cannot read %s from a nil change", p.name)
	}

	for i := range v.NumMethod() {
		if !strings.EqualFold(v.Type().Method(i).Name, p.name) {
			continue
		}
		m := v.Method(i)
		if m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
			return normalizeValue(m.Call(nil)[0]), nil
		}
	}

	s := v
	for s.Kind() == reflect.Pointer || s.Kind() == reflect.Interface {
		if s.IsNil() {
			return nil, Unexpected("cannot read %s from a nil change", p.name)
		}
		s = s.Elem()
	}
	if s.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(s.Type()) {
			if !f.IsExported() || f.Anonymous {
				continue
			}
			tag, _, _ := strings.Cut(f.Tag.Get("change"), ",")
			if tag == p.name || (tag == "" && strings.EqualFold(f.Name, p.name)) {
				fv, err := s.FieldByIndexErr(f.Index)
				if err != nil {
					return nil, nil
				}
				return normalizeValue(fv), nil
			}
		}
	}

	return nil, Unexpected("could not find property %s on %T", p.name, change)
}

func normalizeValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return normalizeValue(v.Elem())
	case reflect.String:
		if v.Len() == 0 {
			return nil
		}
	case reflect.Slice, reflect.Map:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return lowerFirst(t.Name())
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "list of " + typeName(t.Elem())
	case reflect.Map:
		return "map of " + typeName(t.Key()) + " to " + typeName(t.Elem())
	}
	return lowerFirst(t.String())
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
