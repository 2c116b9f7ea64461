// Package dbabstraction is a minimal relational database access layer.
//
// It is made of two independent pieces:
//
//   - An [Adapter] contract implemented by the SQL adapter in dialect/sql.
//     The adapter builds SELECT/INSERT/UPDATE/DELETE statements, runs every
//     statement inside its own transaction and exposes row iteration,
//     row counts and the last inserted id.
//   - The entity package, a dynamic record type whose fields are checked
//     against a fixed allow-list on every access.
//
// # Basic usage
//
//	cfg := sql.NewConfig("localhost", "app", "secret", "shop")
//	err := sql.WithAdapter(ctx, cfg, func(a *sql.Adapter) error {
//	    id, err := a.Insert(ctx, "products", product.Fields())
//	    if err != nil {
//	        return err
//	    }
//	    n, err := a.Select(ctx, "products", dbabstraction.Where(fmt.Sprintf("id=%d", id)))
//	    ...
//	})
//
// # Errors
//
// Every failure is one of the typed errors defined in this package and can
// be inspected with errors.As or the IsXxx helpers:
//
//   - ValidationError: disallowed entity field, empty statement, bad config.
//   - ConnectionError: the driver could not connect.
//   - ExecutionError: a statement failed and was rolled back.
//   - NotSetError: an allowed entity field holds no value.
//
// Result exhaustion and disconnecting twice are not errors.
package dbabstraction
