package sql

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/syssam/dbabstraction"
	"github.com/syssam/dbabstraction/dialect"
)

// Default connection parameters.
const (
	DefaultDriver  = dialect.MySQL
	DefaultCharset = "utf8"
)

// validCharsetRe matches charset names such as utf8, utf8mb4 or UTF-8.
var validCharsetRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config holds the connection parameters of an Adapter.
// Use NewConfig or DefaultConfig so that defaults are applied.
type Config struct {
	Host       string `yaml:"host"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	Driver     string `yaml:"driver"`
	Charset    string `yaml:"charset"`
	Persistent bool   `yaml:"persistent"`

	// DSN, if set, is passed to the driver verbatim and the fields above
	// are only used for logging and dialect resolution.
	DSN string `yaml:"dsn,omitempty"`

	// Options holds extra driver parameters appended to the built DSN,
	// e.g. sslmode for postgres or parseTime for mysql.
	Options map[string]string `yaml:"options,omitempty"`
}

// DefaultConfig returns a Config with the default driver, charset and
// persistence flag.
func DefaultConfig() Config {
	return Config{
		Driver:     DefaultDriver,
		Charset:    DefaultCharset,
		Persistent: true,
	}
}

// NewConfig returns a Config for the given server and database with the
// defaults applied.
func NewConfig(host, username, password, database string) Config {
	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Username = username
	cfg.Password = password
	cfg.Database = database
	return cfg
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
// ${VAR} references in values are expanded from the environment.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("dialect/sql: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, dbabstraction.NewValidationError("config", fmt.Errorf("%w: %v", dbabstraction.ErrInvalidConfig, err))
	}
	return cfg, cfg.Validate()
}

// Dialect returns the dialect of the configured driver.
func (c Config) Dialect() string {
	return dialect.FromDriver(c.Driver)
}

// Validate reports malformed connection parameters.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Driver) == "" {
		return configError("driver", "driver name is required")
	}
	if c.DSN != "" {
		return nil
	}
	if c.Database == "" {
		return configError("database", "database name is required")
	}
	if c.Charset != "" && !validCharsetRe.MatchString(c.Charset) {
		return configError("charset", fmt.Sprintf("malformed charset %q", c.Charset))
	}
	if c.Dialect() == dialect.Postgres && c.Charset != "" && !isUTF8(c.Charset) {
		return configError("charset", fmt.Sprintf("postgres only supports UTF-8 client encoding, got %q", c.Charset))
	}
	return nil
}

// FormatDSN builds the driver data source name from the parameters.
func (c Config) FormatDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Dialect() {
	case dialect.Postgres:
		return c.postgresDSN()
	case dialect.SQLite:
		return c.sqliteDSN()
	default:
		return c.mysqlDSN()
	}
}

func (c Config) mysqlDSN() string {
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.DBName = c.Database
	if c.Host != "" {
		mc.Net = "tcp"
		mc.Addr = c.Host
	}
	params := make(map[string]string, len(c.Options)+1)
	for k, v := range c.Options {
		params[k] = v
	}
	if c.Charset != "" {
		params["charset"] = c.Charset
	}
	mc.Params = params
	return mc.FormatDSN()
}

func (c Config) postgresDSN() string {
	kv := map[string]string{
		"host":     c.Host,
		"user":     c.Username,
		"password": c.Password,
		"dbname":   c.Database,
	}
	if c.Charset != "" {
		kv["client_encoding"] = "UTF8"
	}
	for k, v := range c.Options {
		kv[k] = v
	}
	keys := make([]string, 0, len(kv))
	for k, v := range kv {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + quotePostgresValue(kv[k])
	}
	return strings.Join(parts, " ")
}

func (c Config) sqliteDSN() string {
	if len(c.Options) == 0 {
		return c.Database
	}
	keys := make([]string, 0, len(c.Options))
	for k := range c.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + c.Options[k]
	}
	sep := "?"
	if strings.Contains(c.Database, "?") {
		sep = "&"
	}
	return c.Database + sep + strings.Join(parts, "&")
}

// quotePostgresValue quotes a keyword/value connection string value if it
// contains spaces, quotes or backslashes, or is empty.
func quotePostgresValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// String returns the DSN with the password masked.
func (c Config) String() string {
	masked := c
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}
	if c.DSN != "" {
		return fmt.Sprintf("%s(dsn)", c.Driver)
	}
	return fmt.Sprintf("%s(%s)", c.Driver, masked.FormatDSN())
}

func isUTF8(charset string) bool {
	switch strings.ToLower(strings.ReplaceAll(charset, "-", "")) {
	case "utf8", "utf8mb4", "unicode":
		return true
	}
	return false
}

func configError(name, msg string) error {
	return dbabstraction.NewValidationError(name, fmt.Errorf("%w: %s", dbabstraction.ErrInvalidConfig, msg))
}
