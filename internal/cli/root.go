// Package cli implements the cobra-based CLI commands for tap-publish.
//
// Each subcommand (publish, version, check, setup-ssh) is defined in its
// own file within this package. This file defines the root command that
// serves as the parent for all subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1930sc/espanso/internal/config"
	"github.com/1930sc/espanso/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When false (default), output uses human-readable text format.
	jsonOutput bool

	// verbose enables detailed logging output for debugging.
	// When true, each pipeline step is reported on stderr.
	verbose bool

	// configPath is the path to the tap-publish config file.
	// configPathSet records whether the user passed --config explicitly,
	// which makes a missing file an error instead of a silent default.
	configPath    string
	configPathSet bool
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action — it only provides
// help text and global flags. Actual functionality is provided by
// subcommands (publish, version, check, setup-ssh).
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tap-publish",
		Short: "Publish Homebrew formula version bumps to a tap repository",
		Long: `tap-publish automates the release step that pushes a Homebrew formula
version bump to a tap repository.

It extracts the release version from the project manifest, clones the tap
over SSH, replaces the formula file with the one from the current checkout,
and commits and pushes the result. Publishing is gated on the build's
source branch, so CI can run it unconditionally on every build.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// PersistentPreRun records whether --config was set explicitly,
		// so the loader can treat the default path as optional.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configPathSet = cmd.Flags().Changed("config")
		},
	}

	// PersistentFlags are inherited by all subcommands.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the config file")

	// Register subcommands. Each subcommand is defined in its own file
	// (publish.go, version.go, etc.) and returns a *cobra.Command.
	rootCmd.AddCommand(NewPublishCommand())
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewSetupSSHCommand())

	return rootCmd
}

// Execute runs the root command, called from main.go. A CLIError maps
// to its own exit code so CI can tell a failed clone (4) from a bad
// config (2) or rejected key material (5); anything else exits 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError writes an error to stderr, as JSON when --json is set.
// Stdout stays clean in both modes: a CI step capturing the publish
// result must never see error objects mixed into it.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog prints to stderr when --verbose is set. Every pipeline
// step reports through it, so a verbose run reads like a step-by-step
// trace of the release.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput reports whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
