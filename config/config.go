package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/guttosm/taylorpnl/internal/delimited"
)

// DateLayout is the layout of every date accepted on the command line.
const DateLayout = "2006-01-02"

// Execution modes.
const (
	ModeExpand = "expand"
	ModeAPI    = "api"
)

// Market sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config holds the full application configuration resolved by Load.
//
// Example ENV equivalent:
//
//	TAYLOR_TODAY=market_today.csv
//	TAYLOR_YESTERDAY=market_yesterday.csv
//	TAYLOR_RISK=risk.csv
//	TAYLOR_OUTPUT=pnl.csv
//	TAYLOR_MAX_ERRORS=50
//	SERVER_PORT=8080
//	POSTGRES_HOST=localhost
type Config struct {
	Mode      string
	Files     FilesConfig
	Market    MarketConfig
	Risk      RiskConfig
	Output    OutputConfig
	MaxErrors int // row errors tolerated before a run is aborted
	Server    ServerConfig
	Postgres  PostgresConfig
}

// FilesConfig names the files of an expand run.
type FilesConfig struct {
	Today     string
	Yesterday string
	Risk      string
	Output    string
}

// MarketConfig describes the market snapshots and where they come from.
//
// Fields:
//   - Source: "file" reads Files.Today/Files.Yesterday, "postgres" reads
//     market_levels for TodayDate/YesterdayDate.
//   - YesterdayDate: zero means the business day before TodayDate.
//   - Holidays: dates skipped when resolving the previous business day.
type MarketConfig struct {
	Source        string
	KeyColumns    []string
	ValueColumn   string
	Dialect       delimited.Dialect
	TodayDate     time.Time
	YesterdayDate time.Time
	Holidays      []time.Time
}

// RiskConfig describes the risk-sensitivity file.
type RiskConfig struct {
	KeyColumns  []string
	ValueColumn string
	TypeColumn  string
	Dialect     delimited.Dialect
}

// OutputConfig describes the P&L file.
type OutputConfig struct {
	Headers       []string
	ValueColumn   string
	MeasureColumn string
	Delimiter     rune
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
	RateLimit      int // requests per client IP per minute
	MaxUploadBytes int64
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host: hostname of the database server.
//   - Port: port number of the database server (default 5432).
//   - User: username for authentication.
//   - Password: password for authentication.
//   - DBName: target database name.
//   - SSLMode: SSL mode (e.g., "disable", "require").
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// Enabled reports whether a Postgres host is configured.
func (p PostgresConfig) Enabled() bool { return p.Host != "" }

// ValidationError lists every invalid or missing setting found by Load.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// viper keys and the flag each one is bound to.
const (
	keyConfig         = "config"
	keyMode           = "mode"
	keyToday          = "today"
	keyYesterday      = "yesterday"
	keyRisk           = "risk"
	keyOutput         = "output"
	keyRiskKey        = "risk_key"
	keyMarketKey      = "market_key"
	keyOutputHeaders  = "output_headers"
	keyOutputValue    = "output_value_column"
	keyOutputMeasure  = "output_measure_column"
	keyRiskValue      = "risk_value"
	keyMarketValue    = "market_value"
	keyRiskType       = "risk_type_column"
	keyMaxErrors      = "max_errors"
	keyMarketDelim    = "market_delimiter"
	keyRiskDelim      = "risk_delimiter"
	keyOutputDelim    = "output_delimiter"
	keyMarketQuote    = "market_quote_char"
	keyRiskQuote      = "risk_quote_char"
	keyMarketSource   = "market_source"
	keyTodayDate      = "today_date"
	keyYesterdayDate  = "yesterday_date"
	keyHolidays       = "holidays"
	keyPort           = "server_port"
	keyRequestTimeout = "request_timeout"
	keyRateLimit      = "rate_limit"
	keyMaxUpload      = "max_upload_bytes"
	keyPGHost         = "postgres_host"
	keyPGPort         = "postgres_port"
	keyPGUser         = "postgres_user"
	keyPGPassword     = "postgres_password"
	keyPGDB           = "postgres_db"
	keyPGSSLMode      = "postgres_sslmode"
)

// NewFlagSet declares every command-line flag with its default value.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.String("config", "", "Config file (yaml, json, toml or .env); defaults to ./.env when present")
	fs.String("mode", ModeExpand, "Mode: expand or api")

	fs.StringP("today", "t", "", "Today's market snapshot file")
	fs.StringP("yesterday", "y", "", "Yesterday's market snapshot file")
	fs.StringP("risk", "r", "", "Risk-sensitivity file")
	fs.StringP("output", "o", "", "Output P&L file")

	fs.String("risk-key", "Factor,Tenor", "Comma-separated key columns of the risk file")
	fs.String("market-key", "Factor,Tenor", "Comma-separated key columns of the market files")
	fs.String("output-headers", "Tenor,Currency,Factor,Value,Measure", "Comma-separated output columns")
	fs.String("output-value-column", "Value", "Output column receiving the P&L value")
	fs.String("output-measure-column", "Measure", "Output column receiving the measure label")
	fs.String("risk-value", "Value", "Sensitivity column of the risk file")
	fs.String("market-value", "Value", "Level column of the market files")
	fs.String("risk-type-column", "Risk Type", "Risk type column of the risk file")
	fs.IntP("max-errors", "e", 50, "Row errors tolerated before the run is aborted")

	fs.String("market-delimiter", "|", "Delimiter of the market files")
	fs.String("risk-delimiter", "|", "Delimiter of the risk file")
	fs.String("output-delimiter", ",", "Delimiter of the output file")
	fs.String("market-quote-char", `"`, "Quote character of the market files")
	fs.String("risk-quote-char", `"`, "Quote character of the risk file")

	fs.String("market-source", SourceFile, "Market source: file or postgres")
	fs.String("today-date", "", "Today's date (YYYY-MM-DD) for the postgres market source")
	fs.String("yesterday-date", "", "Yesterday's date (YYYY-MM-DD); defaults to the previous business day")
	fs.String("holidays", "", "Comma-separated holidays (YYYY-MM-DD) skipped by the business calendar")

	fs.String("port", "8080", "Port for API mode")
	fs.Duration("request-timeout", 60*time.Second, "Per-request timeout in API mode")
	fs.Int("rate-limit", 60, "Requests per client IP per minute in API mode")
	fs.Int64("max-upload-bytes", 64<<20, "Maximum size of an upload in API mode")

	fs.String("postgres-host", "", "PostgreSQL host")
	fs.Int("postgres-port", 5432, "PostgreSQL port")
	fs.String("postgres-user", "postgres", "PostgreSQL user")
	fs.String("postgres-password", "", "PostgreSQL password")
	fs.String("postgres-db", "taylorpnl", "PostgreSQL database")
	fs.String("postgres-sslmode", "disable", "PostgreSQL SSL mode")

	fs.BoolP("help", "h", false, "Show this help")
	return fs
}

// Load resolves the configuration from args, the environment and an optional
// config file.
//
// Precedence (from lowest to highest):
//  1. Flag defaults.
//  2. Config file given with --config, or ./.env if present.
//  3. Environment variables (TAYLOR_ prefix; POSTGRES_* and SERVER_PORT
//     are also read unprefixed).
//  4. Flags set explicitly in args.
//
// Returns pflag.ErrHelp when -h/--help is given, and a *ValidationError
// listing every problem when the result is unusable.
func Load(args []string) (Config, error) {
	fs := NewFlagSet("taylorpnl")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if help, _ := fs.GetBool("help"); help {
		return Config{}, pflag.ErrHelp
	}

	v, err := newViper(fs)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v)
}

func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("TAYLOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if f.Name == "port" {
			key = keyPort
		}
		_ = v.BindPFlag(key, f)
	})

	// Unprefixed names kept for compatibility with existing .env files.
	_ = v.BindEnv(keyPort, "TAYLOR_PORT", "SERVER_PORT")
	for _, k := range []string{keyPGHost, keyPGPort, keyPGUser, keyPGPassword, keyPGDB, keyPGSSLMode} {
		name := strings.ToUpper(k)
		_ = v.BindEnv(k, "TAYLOR_"+name, name)
	}

	if path := v.GetString(keyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(".env")
		_ = v.ReadInConfig() // ignore error if no .env
	}
	return v, nil
}

func fromViper(v *viper.Viper) (Config, error) {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	cfg := Config{
		Mode: strings.ToLower(strings.TrimSpace(v.GetString(keyMode))),
		Files: FilesConfig{
			Today:     v.GetString(keyToday),
			Yesterday: v.GetString(keyYesterday),
			Risk:      v.GetString(keyRisk),
			Output:    v.GetString(keyOutput),
		},
		Market: MarketConfig{
			Source:      strings.ToLower(strings.TrimSpace(v.GetString(keyMarketSource))),
			KeyColumns:  SplitList(v.GetString(keyMarketKey)),
			ValueColumn: strings.TrimSpace(v.GetString(keyMarketValue)),
		},
		Risk: RiskConfig{
			KeyColumns:  SplitList(v.GetString(keyRiskKey)),
			ValueColumn: strings.TrimSpace(v.GetString(keyRiskValue)),
			TypeColumn:  strings.TrimSpace(v.GetString(keyRiskType)),
		},
		Output: OutputConfig{
			Headers:       SplitList(v.GetString(keyOutputHeaders)),
			ValueColumn:   strings.TrimSpace(v.GetString(keyOutputValue)),
			MeasureColumn: strings.TrimSpace(v.GetString(keyOutputMeasure)),
		},
		MaxErrors: v.GetInt(keyMaxErrors),
		Server: ServerConfig{
			Port:           v.GetString(keyPort),
			RequestTimeout: v.GetDuration(keyRequestTimeout),
			RateLimit:      v.GetInt(keyRateLimit),
			MaxUploadBytes: v.GetInt64(keyMaxUpload),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString(keyPGHost),
			Port:     v.GetInt(keyPGPort),
			User:     v.GetString(keyPGUser),
			Password: v.GetString(keyPGPassword),
			DBName:   v.GetString(keyPGDB),
			SSLMode:  v.GetString(keyPGSSLMode),
		},
	}

	var err error
	if cfg.Market.Dialect, err = dialect(v, keyMarketDelim, keyMarketQuote); err != nil {
		addf("market: %v", err)
	}
	if cfg.Risk.Dialect, err = dialect(v, keyRiskDelim, keyRiskQuote); err != nil {
		addf("risk: %v", err)
	}
	if cfg.Output.Delimiter, err = delimited.ParseRune(v.GetString(keyOutputDelim)); err != nil {
		addf("output-delimiter: %v", err)
	} else if err := (delimited.Dialect{Delimiter: cfg.Output.Delimiter, Quote: '"'}).Validate(); err != nil {
		addf("output-delimiter: %v", err)
	}

	if cfg.Market.TodayDate, err = parseDate(v.GetString(keyTodayDate)); err != nil {
		addf("today-date: %v", err)
	}
	if cfg.Market.YesterdayDate, err = parseDate(v.GetString(keyYesterdayDate)); err != nil {
		addf("yesterday-date: %v", err)
	}
	for _, s := range SplitList(v.GetString(keyHolidays)) {
		d, err := parseDate(s)
		if err != nil {
			addf("holidays: %v", err)
			continue
		}
		cfg.Market.Holidays = append(cfg.Market.Holidays, d)
	}

	cfg.Postgres.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)

	problems = append(problems, validateConfig(cfg)...)
	if len(problems) > 0 {
		return cfg, &ValidationError{Problems: problems}
	}
	return cfg, nil
}

// validateConfig checks the cross-field rules of a parsed configuration and
// returns every problem found.
func validateConfig(cfg Config) []string {
	var missing, invalid []string

	switch cfg.Mode {
	case ModeExpand:
		switch cfg.Market.Source {
		case SourceFile:
			if cfg.Files.Today == "" {
				missing = append(missing, "today")
			}
			if cfg.Files.Yesterday == "" {
				missing = append(missing, "yesterday")
			}
		case SourcePostgres:
			if cfg.Market.TodayDate.IsZero() {
				missing = append(missing, "today-date")
			}
		}
		if cfg.Files.Risk == "" {
			missing = append(missing, "risk")
		}
		if cfg.Files.Output == "" {
			missing = append(missing, "output")
		}
	case ModeAPI:
		if cfg.Server.Port == "" {
			missing = append(missing, "port")
		}
		if cfg.Server.RateLimit <= 0 {
			invalid = append(invalid, fmt.Sprintf("rate-limit must be positive, got %d", cfg.Server.RateLimit))
		}
		if cfg.Server.MaxUploadBytes <= 0 {
			invalid = append(invalid, fmt.Sprintf("max-upload-bytes must be positive, got %d", cfg.Server.MaxUploadBytes))
		}
	default:
		invalid = append(invalid, fmt.Sprintf("unknown mode %q", cfg.Mode))
	}

	switch cfg.Market.Source {
	case SourceFile:
	case SourcePostgres:
		if cfg.Postgres.Host == "" {
			missing = append(missing, "postgres-host")
		}
		if cfg.Postgres.Port == 0 {
			missing = append(missing, "postgres-port")
		}
		if cfg.Postgres.User == "" {
			missing = append(missing, "postgres-user")
		}
		if cfg.Postgres.DBName == "" {
			missing = append(missing, "postgres-db")
		}
		if n := len(cfg.Risk.KeyColumns); n > 0 && n != 2 {
			invalid = append(invalid, fmt.Sprintf("postgres market levels are keyed by factor and tenor, risk-key has %d columns", n))
		}
	default:
		invalid = append(invalid, fmt.Sprintf("unknown market-source %q", cfg.Market.Source))
	}

	if len(cfg.Market.KeyColumns) == 0 {
		missing = append(missing, "market-key")
	}
	if len(cfg.Risk.KeyColumns) == 0 {
		missing = append(missing, "risk-key")
	}
	if n, m := len(cfg.Market.KeyColumns), len(cfg.Risk.KeyColumns); n > 0 && m > 0 && n != m {
		invalid = append(invalid, fmt.Sprintf("market-key has %d columns but risk-key has %d", n, m))
	}
	if cfg.Market.ValueColumn == "" {
		missing = append(missing, "market-value")
	}
	if cfg.Risk.ValueColumn == "" {
		missing = append(missing, "risk-value")
	}
	if cfg.Risk.TypeColumn == "" {
		missing = append(missing, "risk-type-column")
	}
	if len(cfg.Output.Headers) == 0 {
		missing = append(missing, "output-headers")
	}
	if cfg.Output.ValueColumn != "" && cfg.Output.ValueColumn == cfg.Output.MeasureColumn {
		invalid = append(invalid, "output-value-column and output-measure-column must differ")
	}
	if cfg.MaxErrors < 0 {
		invalid = append(invalid, fmt.Sprintf("max-errors must not be negative, got %d", cfg.MaxErrors))
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required settings: "+strings.Join(missing, ", "))
	}
	return append(problems, invalid...)
}

func dialect(v *viper.Viper, delimKey, quoteKey string) (delimited.Dialect, error) {
	delim, err := delimited.ParseRune(v.GetString(delimKey))
	if err != nil {
		return delimited.Dialect{}, fmt.Errorf("delimiter: %w", err)
	}
	quote, err := delimited.ParseRune(v.GetString(quoteKey))
	if err != nil {
		return delimited.Dialect{}, fmt.Errorf("quote char: %w", err)
	}
	d := delimited.Dialect{Delimiter: delim, Quote: quote}
	return d, d.Validate()
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

// SplitList splits a comma-separated list, trimming blanks and dropping
// empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IsHelp reports whether err asks for the usage text.
func IsHelp(err error) bool { return errors.Is(err, pflag.ErrHelp) }
