// Package sql provides the database/sql implementation of the
// dbabstraction.Adapter contract.
//
// The adapter builds SQL text for the CRUD helpers, runs every statement
// inside its own transaction (begin, prepare, execute, commit, or rollback
// on any failure) and keeps the result of the last statement for Fetch,
// CountRows and AffectedRows.
//
// # Connecting
//
//	cfg := sql.NewConfig("localhost:3306", "app", "secret", "shop")
//	a, err := sql.New(cfg, sql.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
// The connection is opened lazily by the first statement. WithAdapter
// scopes an adapter to a function and always disconnects it:
//
//	err := sql.WithAdapter(ctx, cfg, func(a *sql.Adapter) error {
//	    _, err := a.Delete(ctx, "sessions", "expires_at < NOW()")
//	    return err
//	})
//
// Configs can be read from YAML:
//
//	driver: postgres
//	host: db.internal
//	username: app
//	password: ${DB_PASSWORD}
//	database: shop
//	options:
//	  sslmode: disable
//
// # CRUD helpers
//
//	n, err := a.Select(ctx, "products",
//	    dbabstraction.Where("brand = 'acme'"),
//	    dbabstraction.OrderBy("id"),
//	    dbabstraction.Limit(10),
//	    dbabstraction.Offset(20),
//	)
//	// SELECT * FROM products WHERE brand = 'acme' ORDER BY id LIMIT 10 OFFSET 20;
//	for row, ok := a.Fetch(); ok; row, ok = a.Fetch() {
//	    fmt.Println(row["id"])
//	}
//
//	id, err := a.Insert(ctx, "products", dbabstraction.Fields{
//	    {Name: "brand", Value: "acme"},
//	    {Name: "code", Value: 42},
//	})
//	// INSERT INTO products (brand,code) VALUES (:value1,:value2);
//
// Where, Columns, OrderBy and the conditions of Update and Delete are raw
// SQL and are not escaped. Table and column names must be plain
// identifiers.
//
// # Parameter binding
//
// Named placeholders (":name") are rewritten to the positional style of
// the dialect before the statement is prepared: "?" for MySQL and SQLite,
// "$1, $2, ..." for PostgreSQL. By default every value is bound as text
// (bool as "1"/"0", time.Time in UTC as "2006-01-02 15:04:05.999999");
// nil binds as NULL. WithTypedParams binds native values instead.
//
// # Statistics
//
// Every adapter counts its statements and reports slow ones:
//
//	a, _ := sql.New(cfg, sql.WithSlowThreshold(200*time.Millisecond), sql.WithSlowQueryLog())
//	...
//	fmt.Println(a.Stats().Stats())
package sql
