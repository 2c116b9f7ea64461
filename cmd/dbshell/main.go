// dbshell checks database configurations and runs ad-hoc statements through
// the dbabstraction SQL adapter.
//
//	dbshell [flags] ping [config.yaml ...]
//	dbshell [flags] query "<sql>"
//
// Configurations are YAML files as read by sql.LoadConfig. The -driver and
// -dsn flags bypass the file for quick use:
//
//	dbshell -driver sqlite -dsn shop.db query "SELECT * FROM products"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	dbsql "github.com/syssam/dbabstraction/dialect/sql"
)

const (
	defaultConfig = "dbshell.yaml"
	pingParallel  = 4
)

var errUsage = errors.New("usage")

type options struct {
	config  string
	driver  string
	dsn     string
	timeout time.Duration
	slow    time.Duration
	typed   bool
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one dbshell invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dbshell", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: dbshell [flags] ping [config.yaml ...]")
		fmt.Fprintln(stderr, `       dbshell [flags] query "<sql>"`)
		fs.PrintDefaults()
	}

	var opts options
	config := os.Getenv("DBSHELL_CONFIG")
	if config == "" {
		config = defaultConfig
	}
	fs.StringVar(&opts.config, "config", config, "configuration file (env DBSHELL_CONFIG)")
	fs.StringVar(&opts.driver, "driver", "", "driver name, used with -dsn")
	fs.StringVar(&opts.dsn, "dsn", "", "data source name, overrides -config")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout of the whole command")
	fs.DurationVar(&opts.slow, "slow", dbsql.DefaultSlowThreshold, "log statements slower than this")
	fs.BoolVar(&opts.typed, "typed", false, "bind parameters with their native types")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	var err error
	switch cmd, rest := fs.Arg(0), fs.Args(); cmd {
	case "ping":
		err = ping(ctx, opts, logger, rest[1:], stdout)
	case "query":
		if len(rest) != 2 || strings.TrimSpace(rest[1]) == "" {
			err = errUsage
			break
		}
		err = query(ctx, opts, logger, rest[1], stdout)
	default:
		err = errUsage
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fs.Usage()
		return 2
	default:
		fmt.Fprintf(stderr, "dbshell: %v\n", err)
		return 1
	}
}

func (o options) adapterOptions(logger *slog.Logger) []dbsql.Option {
	opts := []dbsql.Option{
		dbsql.WithLogger(logger),
		dbsql.WithSlowThreshold(o.slow),
		dbsql.WithSlowQueryLog(),
	}
	if o.typed {
		opts = append(opts, dbsql.WithTypedParams())
	}
	return opts
}

// loadConfig resolves the configuration from -dsn or from a file.
func (o options) loadConfig(path string) (dbsql.Config, error) {
	if o.dsn == "" {
		return dbsql.LoadConfig(path)
	}
	cfg := dbsql.DefaultConfig()
	if o.driver != "" {
		cfg.Driver = o.driver
	}
	cfg.DSN = o.dsn
	return cfg, cfg.Validate()
}

// ping connects to every configuration concurrently and reports one line
// per configuration, in argument order.
func ping(ctx context.Context, opts options, logger *slog.Logger, paths []string, w io.Writer) error {
	if len(paths) == 0 {
		paths = []string{opts.config}
	}
	errs := make([]error, len(paths))
	names := make([]string, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pingParallel)
	for i, path := range paths {
		g.Go(func() error {
			cfg, err := opts.loadConfig(path)
			if err != nil {
				errs[i] = err
				return nil
			}
			names[i] = cfg.String()
			start := time.Now()
			errs[i] = dbsql.WithAdapter(ctx, cfg, func(a *dbsql.Adapter) error {
				logger.DebugContext(ctx, "ping", "config", path, "duration", time.Since(start))
				return nil
			}, opts.adapterOptions(logger)...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var failed int
	for i, path := range paths {
		if errs[i] != nil {
			failed++
			fmt.Fprintf(w, "FAIL\t%s\t%v\n", path, errs[i])
			continue
		}
		fmt.Fprintf(w, "ok\t%s\t%s\n", path, names[i])
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d databases unreachable", failed, len(paths))
	}
	return nil
}

// query runs one statement and prints its rows as a table, or its
// affected row count.
func query(ctx context.Context, opts options, logger *slog.Logger, statement string, w io.Writer) error {
	cfg, err := opts.loadConfig(opts.config)
	if err != nil {
		return err
	}
	return dbsql.WithAdapter(ctx, cfg, func(a *dbsql.Adapter) error {
		cur, err := a.Query(ctx, statement, nil)
		if err != nil {
			return err
		}
		defer cur.Close()
		if opts.verbose {
			defer func() {
				logger.DebugContext(ctx, "stats", "stats", a.Stats().Stats().String())
			}()
		}

		columns := cur.Columns()
		if len(columns) == 0 {
			_, err := fmt.Fprintf(w, "%d row(s) affected, last insert id %d\n", cur.RowCount(), cur.LastInsertID())
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(columns, "\t"))
		for row, ok := cur.Next(); ok; row, ok = cur.Next() {
			cells := make([]string, len(columns))
			for i, c := range columns {
				cells[i] = formatValue(row[c])
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "(%d row(s))\n", cur.RowCount())
		return err
	}, opts.adapterOptions(logger)...)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
