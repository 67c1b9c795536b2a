package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/utils"
	"github.com/VersBinarii/thesamo/internal/version"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configName = "thesamo"

var (
	home, _ = os.UserHomeDir()

	// closed on exit when logging to a file
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "thesamo",
	Short: "Keep tagged blocks of text files in sync between a master and its minions",
	Long: `thesamo keeps the regions between an open and a close tag in sync.

A master polls its files and pushes the blocks of every changed file to a
minion, which splices them into its own copy of the file. Text outside the
tags is never touched.`,
	Version:       version.Detailed(),
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")
}

func main() {
	slog.SetDefault(slog.New(stdoutHandler(slog.LevelInfo)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

func stdoutHandler(level slog.Level) slog.Handler {
	return tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
}

// setupLogging replaces the default logger once the configuration is known.
// Flags win over the log_file configuration key.
func setupLogging(cmd *cobra.Command, cfg *config.Config) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := utils.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q", levelName)
	}

	logFile, _ := cmd.Flags().GetString("log-file")
	if logFile == "" && cfg != nil {
		logFile = cfg.LogFile
	}

	handler := stdoutHandler(level)
	if logFile != "" {
		path, err := utils.ResolvePath(logFile)
		if err != nil {
			return err
		}
		if err := utils.EnsureParent(path); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logCloser = file

		fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})
		handler = utils.NewFanoutHandler(handler, fileHandler)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads the configuration file, a .env file in the working
// directory, and THESAMO_ prefixed environment variables, in increasing order
// of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	config.SetDefaults(v)

	if flag := cmd.Flag("config"); flag != nil && flag.Changed {
		path, err := utils.ResolvePath(flag.Value.String())
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
	} else if env := os.Getenv(config.EnvPrefix + "_CONFIG"); env != "" {
		v.SetConfigFile(env)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", configName))
		v.AddConfigPath(filepath.Join("/etc", configName))
		v.SetConfigName(configName)
		v.SetConfigType("toml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound) {
			return nil, fmt.Errorf("no configuration file found, pass one with --config")
		}
		return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", cfg.Path, err)
	}
	return cfg, nil
}
