// Package entity provides a dynamic record type whose fields are checked
// against a fixed allow-list.
//
// A Schema is declared once per entity type and every Get, Set, Has and
// Unset on a name outside of it fails with a *dbabstraction.ValidationError
// wrapping ErrFieldNotAllowed, so a typo never creates a phantom field.
//
// A field may be served by custom code instead of plain storage. Types that
// embed Entity can declare methods following the naming convention
//
//	func (p *Product) GetCode() (any, error)  // accessor of "code"
//	func (p *Product) SetCode(v any) error    // mutator of "code"
//
// or register functions explicitly with WithAccessor and WithMutator.
// Accessors and mutators use Load and Store to reach the underlying
// storage. Has and ToMap always report raw storage.
package entity
