package change

import (
	"fmt"
	"slices"
	"strings"

	"github.com/stokaro/changekit/core/checksum"
)

// Serializable is implemented by changes that define their own serialized form
// instead of the one derived from their parameter metadata.
type Serializable interface {
	SerializableFields() []string
	SerializableFieldType(field string) (SerializationType, error)
	SerializableFieldValue(field string) (any, error)
}

// Serialize returns the set fields of c keyed by field name.
func Serialize(c Change) (map[string]any, error) {
	out := map[string]any{}
	if s, ok := c.(Serializable); ok {
		for _, field := range s.SerializableFields() {
			v, err := s.SerializableFieldValue(field)
			if err != nil {
				return nil, err
			}
			if !isUnset(v) {
				out[field] = v
			}
		}
		return out, nil
	}

	for _, p := range c.MetaData().Parameters {
		v, err := p.CurrentValue(c)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[p.ParameterName()] = v
		}
	}
	return out, nil
}

// ComputeCheckSum hashes the serialized form of c, fields in name order.
func ComputeCheckSum(c Change) (checksum.CheckSum, error) {
	fields, err := Serialize(c)
	if err != nil {
		return checksum.CheckSum{}, fmt.Errorf("failed to serialize %s: %w", c.MetaData().Name, err)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s=%v;", name, fields[name])
	}
	return checksum.Compute(sb.String()), nil
}
