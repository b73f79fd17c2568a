// Package main provides the entry point for the jarvis CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/jarvis-go/jarvis/internal/config"
	"github.com/jarvis-go/jarvis/internal/logging"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool

	// cfg is loaded before any subcommand runs.
	cfg       config.Config
	logCloser = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "jarvis",
		Short: "A voice for your assistant's responses",
		Long: paragraph(
			fmt.Sprintf("\nSpeak responses aloud, %s, and print them as they are spoken.", keyword("a few words at a time")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadConfig()
		},
	}
)

func loadConfig() error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	c, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if debug {
		c.Log.Level = "debug"
	}

	_, closer, err := logging.Setup(c.Logging(), os.Stderr)
	if err != nil {
		return err
	}
	logCloser = closer
	cfg = c

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_ = logCloser()
		os.Exit(1)
	}
	_ = logCloser()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output")

	rootCmd.AddCommand(sayCmd, chatCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "jarvis")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "jarvis")}, dirs...)
	}

	if c := os.Getenv("JARVIS_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("jarvis")
	viper.SetConfigType("yaml")
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		return
	}

	configFile = filepath.Join(dirs[0], "jarvis.yml")
	defer func() { configFile = "" }()
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
		return
	}
	if err := viper.ReadInConfig(); err != nil {
		log.Warn("Could not parse configuration file", "err", err)
	}
}
