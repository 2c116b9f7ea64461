package entity

import (
	"errors"
	"fmt"
	"maps"
	"sort"

	"github.com/syssam/dbabstraction"
)

// ErrFieldNotAllowed is wrapped by the ValidationError returned for any
// access to a field outside an entity's schema.
var ErrFieldNotAllowed = errors.New("field is not allowed for this entity")

// Schema is the fixed, ordered allow-list of field names of an entity type.
// A Schema is immutable and safe to share between entities.
type Schema struct {
	fields []string
	index  map[string]int
}

// NewSchema returns the allow-list for the given field names, in order.
// It panics on an empty or duplicate name, since schemas are declared once
// per entity type.
func NewSchema(fields ...string) *Schema {
	s := &Schema{
		fields: make([]string, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f == "" {
			panic("entity: empty field name in schema")
		}
		if _, ok := s.index[f]; ok {
			panic(fmt.Sprintf("entity: duplicate field %q in schema", f))
		}
		s.fields[i] = f
		s.index[f] = i
	}
	return s
}

// Fields returns a copy of the allowed field names, in declaration order.
func (s *Schema) Fields() []string {
	return append([]string(nil), s.fields...)
}

// Allows reports whether name is on the allow-list.
func (s *Schema) Allows(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Accessor computes the value returned by Get for one field.
type Accessor func() (any, error)

// Mutator replaces the default storage performed by Set for one field.
// It typically validates or transforms the value and calls Store.
type Mutator func(value any) error

// Entity is a dynamic record whose fields are restricted to a Schema.
//
// Concrete types embed Entity and call Init from their constructor:
//
//	var productSchema = entity.NewSchema("id", "brand", "code")
//
//	type Product struct{ entity.Entity }
//
//	func NewProduct(fields map[string]any) (*Product, error) {
//	    p := &Product{}
//	    return p, p.Init(p, productSchema, fields)
//	}
//
//	// SetCode is picked up as the mutator of "code".
//	func (p *Product) SetCode(v any) error {
//	    s, ok := v.(string)
//	    if !ok {
//	        return fmt.Errorf("code must be a string, got %T", v)
//	    }
//	    return p.Store("code", strings.ToUpper(s))
//	}
type Entity struct {
	schema    *Schema
	values    map[string]any
	accessors map[string]Accessor
	mutators  map[string]Mutator
}

// Option configures an Entity at initialisation.
type Option func(*Entity)

// WithAccessor registers fn as the accessor of field name, overriding any
// convention method.
func WithAccessor(name string, fn Accessor) Option {
	return func(e *Entity) {
		e.accessors[name] = fn
	}
}

// WithMutator registers fn as the mutator of field name, overriding any
// convention method.
func WithMutator(name string, fn Mutator) Option {
	return func(e *Entity) {
		e.mutators[name] = fn
	}
}

// New returns a plain entity of schema holding fields. Every initial value
// goes through Set.
func New(schema *Schema, fields map[string]any, opts ...Option) (*Entity, error) {
	e := &Entity{}
	if err := e.Init(nil, schema, fields, opts...); err != nil {
		return nil, err
	}
	return e, nil
}

// Init prepares an embedded Entity. owner is the value embedding it; its
// Get<Field> and Set<Field> methods are registered as accessors and
// mutators (see AccessorName and MutatorName). owner may be nil.
// The initial fields are then assigned through Set in name order.
func (e *Entity) Init(owner any, schema *Schema, fields map[string]any, opts ...Option) error {
	if schema == nil {
		return errors.New("entity: nil schema")
	}
	e.schema = schema
	e.values = make(map[string]any, len(fields))
	e.accessors = make(map[string]Accessor)
	e.mutators = make(map[string]Mutator)
	if owner != nil {
		discover(e, owner)
	}
	for _, opt := range opts {
		opt(e)
	}
	for name, fn := range e.accessors {
		if !schema.Allows(name) {
			return notAllowed("accessor", name)
		}
		if fn == nil {
			delete(e.accessors, name)
		}
	}
	for name, fn := range e.mutators {
		if !schema.Allows(name) {
			return notAllowed("mutator", name)
		}
		if fn == nil {
			delete(e.mutators, name)
		}
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.Set(name, fields[name]); err != nil {
			return err
		}
	}
	return nil
}

// Schema returns the allow-list of the entity.
func (e *Entity) Schema() *Schema { return e.schema }

// Allowed returns the allowed field names in schema order.
func (e *Entity) Allowed() []string {
	if e.schema == nil {
		return nil
	}
	return e.schema.Fields()
}

// Set assigns value to the field name via its mutator if one is
// registered, or directly otherwise.
func (e *Entity) Set(name string, value any) error {
	if err := e.check("setting", name); err != nil {
		return err
	}
	if fn, ok := e.mutators[name]; ok {
		return fn(value)
	}
	e.values[name] = value
	return nil
}

// Get returns the value of the field name via its accessor if one is
// registered, or the stored value otherwise.
func (e *Entity) Get(name string) (any, error) {
	if err := e.check("getting", name); err != nil {
		return nil, err
	}
	if fn, ok := e.accessors[name]; ok {
		return fn()
	}
	v, ok := e.values[name]
	if !ok {
		return nil, dbabstraction.NewNotSetError(name)
	}
	return v, nil
}

// Has reports whether a value is stored for the field name. Accessors
// are not consulted.
func (e *Entity) Has(name string) (bool, error) {
	if err := e.check("checking", name); err != nil {
		return false, err
	}
	_, ok := e.values[name]
	return ok, nil
}

// Unset removes the stored value of the field name.
func (e *Entity) Unset(name string) error {
	if err := e.check("unsetting", name); err != nil {
		return err
	}
	if _, ok := e.values[name]; !ok {
		return dbabstraction.NewNotSetError(name)
	}
	delete(e.values, name)
	return nil
}

// Store writes value directly to storage, bypassing any mutator. It is
// meant for mutators that need to save the transformed value.
func (e *Entity) Store(name string, value any) error {
	if err := e.check("setting", name); err != nil {
		return err
	}
	e.values[name] = value
	return nil
}

// Load reads the stored value of a field, bypassing any accessor.
// It returns false for fields that are unset or not allowed.
func (e *Entity) Load(name string) (any, bool) {
	if e.schema == nil || !e.schema.Allows(name) {
		return nil, false
	}
	v, ok := e.values[name]
	return v, ok
}

// ToMap returns a copy of the stored values. Accessors are not consulted.
func (e *Entity) ToMap() map[string]any {
	return maps.Clone(e.values)
}

// Fields returns the stored values in schema order, ready for
// Adapter.Insert and Adapter.Update.
func (e *Entity) Fields() dbabstraction.Fields {
	if e.schema == nil {
		return nil
	}
	fs := make(dbabstraction.Fields, 0, len(e.values))
	for _, name := range e.schema.fields {
		if v, ok := e.values[name]; ok {
			fs = append(fs, dbabstraction.Field{Name: name, Value: v})
		}
	}
	return fs
}

func (e *Entity) check(op, name string) error {
	if e.schema == nil || !e.schema.Allows(name) {
		return notAllowed(op, name)
	}
	return nil
}

func notAllowed(op, name string) error {
	return dbabstraction.NewValidationError(fmt.Sprintf("field %q", name), fmt.Errorf("%s: %w", op, ErrFieldNotAllowed))
}
