package main

import (
	"fmt"
	"os"
	"runtime"

	"comicgrabber/pkg/config"
	"comicgrabber/pkg/logger"
	"comicgrabber/pkg/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	noNotify   bool
	quiet      bool

	// Set by PersistentPreRunE
	appConfig *config.Config
	appLogger logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "comicgrabber",
	Short: "Download web comic episodes as zip archives",
	Long: `comicgrabber scrapes an episode page of a supported web comic site,
fetches every page image concurrently and bundles them into a single zip
archive named after the series and episode.

Features:
  - Site adapters for 11toon, KakaoPage and marumaru
  - Per-site session cookies kept in the system keychain
  - Failed images become warnings, never a failed archive
  - A JSON message port for driving downloads from another process`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetColor(!noColor)
		if quiet {
			ui.SetQuietMode(true)
		}

		cfg, err := config.Load(configFile, collectFlags(cmd.Flags()))
		if err != nil {
			return err
		}
		if noNotify {
			cfg.Notifications.Enabled = false
		}
		if err := logger.Initialize(&cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		appConfig = cfg
		appLogger = logger.GetLogger()

		// serve speaks JSON on stdout
		if cmd.Name() == "grab" && !quiet {
			ui.PrintLogo()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

// collectFlags turns the changed flags config.MergeCommandLineFlags knows
// about into its map form
func collectFlags(fs *pflag.FlagSet) map[string]interface{} {
	flags := make(map[string]interface{})
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "output", "conflict", "numbering", "log-level":
			flags[f.Name] = f.Value.String()
		case "concurrent":
			if n, err := fs.GetInt(f.Name); err == nil {
				flags[f.Name] = n
			}
		}
	})
	return flags
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/comicgrabber/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noNotify, "no-notify", false, "disable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`comicgrabber {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
