package entity

import (
	"reflect"

	"github.com/go-openapi/inflect"
)

// AccessorName returns the method name looked up as the accessor of a
// field: "Get" followed by the camelized field name (created_at → GetCreatedAt).
func AccessorName(field string) string {
	return "Get" + inflect.Camelize(field)
}

// MutatorName returns the method name looked up as the mutator of a field:
// "Set" followed by the camelized field name (created_at → SetCreatedAt).
func MutatorName(field string) string {
	return "Set" + inflect.Camelize(field)
}

// discover registers the convention methods of owner for every field of
// the schema. Methods whose signature does not match Accessor or Mutator
// are ignored.
func discover(e *Entity, owner any) {
	v := reflect.ValueOf(owner)
	for _, name := range e.schema.fields {
		if m := v.MethodByName(AccessorName(name)); m.IsValid() {
			if fn, ok := m.Interface().(func() (any, error)); ok {
				e.accessors[name] = fn
			}
		}
		if m := v.MethodByName(MutatorName(name)); m.IsValid() {
			if fn, ok := m.Interface().(func(any) error); ok {
				e.mutators[name] = fn
			}
		}
	}
}
