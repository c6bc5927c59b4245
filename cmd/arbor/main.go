// cmd/arbor/main.go
package main

import (
	"fmt"
	"os"

	"arbor/internal/config"
	apperrors "arbor/internal/errors"
	"arbor/internal/logging"
	"arbor/internal/repo"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

// app carries the state shared by all subcommands once the root command
// has loaded the configuration.
type app struct {
	configPath string
	repoPath   string
	logLevel   string

	config *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "arbor",
		Short: "arbor is a content-addressed tree repository",
		Long: `arbor stores directory snapshots as content-addressed trees.
Every write happens inside a repository transaction that is either
committed as a whole or rolled back.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (.json, .yaml or .yml)")
	flags.StringVar(&a.repoPath, "repo", "", "repository directory (overrides the config file)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		a.initCmd(),
		a.commitCmd(),
		a.lsCmd(),
		a.catCmd(),
		a.diffCmd(),
		a.refsCmd(),
		a.branchCmd(),
		a.showCmd(),
		appIDCmd(),
	)
	return rootCmd
}

// setup resolves the configuration (defaults, config file, environment,
// flags in that order) and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv()
	}

	if a.repoPath != "" {
		cfg.Repository.Path = a.repoPath
		cfg.Repository.InMemory = false
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment == "development")
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	a.config = cfg
	a.logger = logger
	return nil
}

func (a *app) openRepo() (*repo.Repo, error) {
	r, err := repo.Open(repo.Options{
		Path:        a.config.Repository.Path,
		InMemory:    a.config.Repository.InMemory,
		CacheSize:   a.config.Cache.Size,
		Compression: a.config.CompressionOptions(),
		Logger:      a.logger.ForRepository(a.config.Repository.Path),
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return r, nil
}

// exitCode maps err to the process exit status: 2 for invalid input, 3 when
// the requested object does not exist and 1 for everything else.
func exitCode(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeEmptyPath:
		return 2
	case apperrors.ErrorTypeNotFound, apperrors.ErrorTypeFileNotFound, apperrors.ErrorTypeSubdirectoryNotFound:
		return 3
	}
	return 1
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
