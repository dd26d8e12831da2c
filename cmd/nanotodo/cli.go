package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arthur-debert/nanotodo/nanotodo"
	"github.com/arthur-debert/nanotodo/nanotodo/store"
)

// Configuration keys. Each is also a persistent flag and a NANOTODO_* variable.
const (
	keyBackend         = "backend"
	keyDB              = "db"
	keyMongoURI        = "mongo-uri"
	keyMongoDatabase   = "mongo-database"
	keyMongoCollection = "mongo-collection"
	keyOwner           = "owner"
	keyRequireOwner    = "require-owner"
	keyDueDateRequired = "due-date-required"
	keyFormat          = "format"
	keyLogLevel        = "log-level"
	keyVerbose         = "verbose"
)

var configKeys = []string{
	keyBackend, keyDB, keyMongoURI, keyMongoDatabase, keyMongoCollection, keyOwner,
	keyRequireOwner, keyDueDateRequired, keyFormat, keyLogLevel, keyVerbose,
}

// CLI is the nanotodo command line: a thin transport over nanotodo.Service.
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
	configErr error

	logger  *slog.Logger
	logFile io.Closer
}

// NewCLI creates the command tree with configuration loaded.
func NewCLI() *CLI {
	cli := &CLI{
		viperInst: viper.New(),
		logger:    slog.New(slog.DiscardHandler),
	}

	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()

	return cli
}

// Execute runs the root command and releases the log file.
func (cli *CLI) Execute() error {
	err := cli.rootCmd.Execute()
	if cli.logFile != nil {
		_ = cli.logFile.Close()
		cli.logFile = nil
	}
	return err
}

// setupViperConfig wires environment variables and config file discovery.
func (cli *CLI) setupViperConfig() {
	v := cli.viperInst

	if configFile := os.Getenv("NANOTODO_CONFIG"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("nanotodo")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.nanotodo")
		v.AddConfigPath("/etc/nanotodo")
	}

	v.SetEnvPrefix("NANOTODO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyBackend, store.BackendFile)
	v.SetDefault(keyMongoDatabase, store.DefaultDatabase)
	v.SetDefault(keyMongoCollection, store.DefaultCollection)
	v.SetDefault(keyDueDateRequired, true)
	v.SetDefault(keyFormat, "table")
	v.SetDefault(keyLogLevel, "warn")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			cli.configErr = err
		}
	}
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "nanotodo",
		Short: "Manage todos in a local file, SQLite or MongoDB",
		Long: `nanotodo creates, lists, updates and deletes todos scoped by an owner key.

Configuration Sources (in order of precedence):
1. Command line flags
2. Environment variables (NANOTODO_*)
3. Configuration file (NANOTODO_CONFIG, or nanotodo.{json,yaml,toml} in
   ., ~/.nanotodo, /etc/nanotodo)
4. Defaults

Examples:
  nanotodo add "Buy milk" --due 2030-01-01
  nanotodo --backend sqlite --db todos.db list
  NANOTODO_OWNER=browser-1 nanotodo update <id> --done
  nanotodo add --data '{"title": "Water plants", "dueDate": "2030-05-01"}'`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cli.configErr != nil {
				return NewConfigError(cmd.Name(), cli.configErr.Error(), "Check the file named by NANOTODO_CONFIG")
			}
			logger, logFile, err := initLogging(cli.viperInst.GetString(keyLogLevel), cli.viperInst.GetBool(keyVerbose), cmd.ErrOrStderr())
			if err != nil {
				// Logging is best effort.
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				return nil
			}
			cli.logger = logger
			cli.logFile = logFile
			return nil
		},
	}

	cli.addGlobalFlags()
}

func (cli *CLI) addGlobalFlags() {
	flags := cli.rootCmd.PersistentFlags()

	flags.StringP(keyBackend, "b", store.BackendFile, "Storage backend (file|sqlite|mongo)")
	flags.StringP(keyDB, "d", "", "Data file for file/sqlite backends (default todos.json or todos.db)")
	flags.String(keyMongoURI, "", "MongoDB connection string")
	flags.String(keyMongoDatabase, store.DefaultDatabase, "MongoDB database")
	flags.String(keyMongoCollection, store.DefaultCollection, "MongoDB collection")
	flags.StringP(keyOwner, "o", "", "Owner key that scopes every operation")
	flags.Bool(keyRequireOwner, false, "Reject calls without an owner key")
	flags.Bool(keyDueDateRequired, true, "Require a due date when adding")
	flags.StringP(keyFormat, "f", "table", "Output format (table|json|yaml)")
	flags.String(keyLogLevel, "warn", "Log level (debug|info|warn|error)")
	flags.BoolP(keyVerbose, "v", false, "Log to stderr and show error details")

	for _, key := range configKeys {
		_ = cli.viperInst.BindPFlag(key, flags.Lookup(key))
	}
}

func (cli *CLI) addCommands() {
	cli.addListCommand()
	cli.addGetCommand()
	cli.addAddCommand()
	cli.addUpdateCommand()
	cli.addToggleCommand()
	cli.addDeleteCommand()
	cli.addConfigCommand()
}

// storeConfig resolves the backend selection from configuration.
func (cli *CLI) storeConfig() store.Config {
	v := cli.viperInst
	cfg := store.Config{
		Backend:    strings.ToLower(v.GetString(keyBackend)),
		Path:       v.GetString(keyDB),
		URI:        v.GetString(keyMongoURI),
		Database:   v.GetString(keyMongoDatabase),
		Collection: v.GetString(keyMongoCollection),
	}
	if cfg.Path == "" {
		switch cfg.Backend {
		case store.BackendSQLite:
			cfg.Path = "todos.db"
		default:
			cfg.Path = "todos.json"
		}
	}
	return cfg
}

// openService opens the configured backend and wraps it in a Service.
// The caller closes the service.
func (cli *CLI) openService(ctx context.Context, operation string) (*nanotodo.Service, error) {
	cfg := cli.storeConfig()
	backend, err := store.Open(ctx, cfg, store.WithLogger(cli.logger))
	if err != nil {
		cli.logger.Error("failed to open backend", "backend", cfg.Backend, "error", err)
		details := ""
		if cli.viperInst.GetBool(keyVerbose) {
			details = err.Error()
		}
		return nil, &CLIError{
			Operation:   operation,
			Cause:       fmt.Sprintf("could not open %s backend", cfg.Backend),
			Details:     details,
			Suggestions: []string{CommonSuggestions.CheckDB, CommonSuggestions.Verbose},
			Underlying:  err,
		}
	}

	svc := nanotodo.New(backend,
		nanotodo.WithRules(nanotodo.Rules{DueDateRequired: cli.viperInst.GetBool(keyDueDateRequired)}),
		nanotodo.WithOwnerRequired(cli.viperInst.GetBool(keyRequireOwner)),
		nanotodo.WithLogger(cli.logger),
	)
	return svc, nil
}

// withService runs fn against a freshly opened service and maps its error.
func (cli *CLI) withService(cmd *cobra.Command, operation string, fn func(ctx context.Context, svc *nanotodo.Service, owner string) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := cli.openService(ctx, operation)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	owner := cli.viperInst.GetString(keyOwner)
	return WrapError(operation, fn(ctx, svc, owner), cli.viperInst.GetBool(keyVerbose))
}

func (cli *CLI) formatter(cmd *cobra.Command) *OutputFormatter {
	return NewOutputFormatter(cli.viperInst.GetString(keyFormat), cmd.OutOrStdout())
}
