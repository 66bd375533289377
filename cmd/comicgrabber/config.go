package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"comicgrabber/pkg/config"
	"comicgrabber/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage comicgrabber configuration files.

Configuration is loaded from, in order of priority:
  - Command line flags
  - Environment variables (COMICGRABBER_*)
  - .env files
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration as YAML.

Without a path the file is created at $HOME/.config/comicgrabber/config.yaml,
or at the --config path when one is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and check its paths",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "comicgrabber", "config.yaml")
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration written to " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Adjust the download directory and fetch settings")
	fmt.Println("2. Run 'comicgrabber config validate'")
	fmt.Println("3. Store site cookies with 'comicgrabber auth set <site>' if needed")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(appConfig)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Load already ran Validate in PersistentPreRunE
	var problems []error

	if err := os.MkdirAll(appConfig.Download.Directory, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create download directory: %w", err))
	}
	if appConfig.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(appConfig.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if err := errors.Join(problems...); err != nil {
		return err
	}

	if appConfig.Fetch.RequestsPerMinute == 0 {
		ui.PrintWarning("Rate limiting is disabled (requests_per_minute: 0)")
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Download directory: %s\n", appConfig.Download.Directory)
	fmt.Printf("  Conflict policy: %s\n", appConfig.Download.ConflictPolicy)
	fmt.Printf("  Concurrent fetches: %d\n", appConfig.Fetch.Concurrency)
	fmt.Printf("  Rate limit: %d requests/minute\n", appConfig.Fetch.RequestsPerMinute)
	fmt.Printf("  Max attempts: %d\n", appConfig.Fetch.MaxAttempts)
	fmt.Printf("  Archive numbering: %s\n", appConfig.Archive.Numbering)
	fmt.Printf("  Log level: %s\n", appConfig.Logging.Level)
	return nil
}
