// Package cli — publish.go implements the "tap-publish publish" command.
//
// The publish command is the primary operation: it runs the release
// pipeline end to end. Orchestration steps:
//  1. Load config and merge command-line flags
//  2. Resolve the build's source branch and apply the branch gate
//  3. Extract the release version from the manifest
//  4. Clone the tap, replace the formula, commit, push
//  5. Output the result (text or JSON)
//
// The branch gate makes the command safe to run unconditionally from CI:
// on any branch other than the required one, the command performs no
// clone, commit, or push and exits successfully.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/1930sc/espanso/internal/config"
	"github.com/1930sc/espanso/internal/manifest"
	"github.com/1930sc/espanso/internal/model"
	"github.com/1930sc/espanso/internal/sshsetup"
	"github.com/1930sc/espanso/internal/tap"
)

// publishFlags holds the flag values for the publish command.
// Every flag overrides the corresponding config file field.
type publishFlags struct {
	tapRepo     string // --tap: tap repository URL
	formula     string // --formula: formula source path
	formulaName string // --formula-name: file name inside the tap
	manifest    string // --manifest: manifest path
	branch      string // --branch: required branch for the gate
	userName    string // --user-name: commit identity name
	userEmail   string // --user-email: commit identity email
	dryRun      bool   // --dry-run: commit locally, never push
	requireGate bool   // --require-branch-match: failing the gate is an error
}

// NewPublishCommand creates the "publish" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewPublishCommand() *cobra.Command {
	flags := &publishFlags{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the formula version bump to the tap",
		Long: `Publish the current formula to the tap repository as a version bump.

The command extracts the version from the manifest, clones the tap,
replaces the formula file, and commits and pushes the result with the
message "Update to version: <VER>". When the build's source branch does
not match the required branch, nothing is cloned or pushed and the
command exits successfully.

Examples:
  tap-publish publish
  tap-publish publish --dry-run
  tap-publish publish --tap git@github.com:owner/homebrew-tap.git --formula espanso.rb --manifest Cargo.toml --branch master`,

		Args: cobra.NoArgs,

		// RunE is used instead of Run so we can return errors. Cobra will
		// pass them to the Execute error handler in root.go.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.tapRepo, "tap", "", "Tap repository URL (e.g., git@github.com:owner/homebrew-tap.git)")
	cmd.Flags().StringVar(&flags.formula, "formula", "", "Path to the formula file in the checkout")
	cmd.Flags().StringVar(&flags.formulaName, "formula-name", "", "File name the formula takes inside the tap (default: base name of --formula)")
	cmd.Flags().StringVar(&flags.manifest, "manifest", "", "Path to the project manifest holding the version")
	cmd.Flags().StringVar(&flags.branch, "branch", "", "Branch the build must originate from (default: from config)")
	cmd.Flags().StringVar(&flags.userName, "user-name", "", "Commit identity name")
	cmd.Flags().StringVar(&flags.userEmail, "user-email", "", "Commit identity email")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Clone and commit but do not push")
	cmd.Flags().BoolVar(&flags.requireGate, "require-branch-match", false, "Treat a failing branch gate as an error instead of a no-op")

	return cmd
}

// runPublish is the main orchestration function for the publish command.
func runPublish(ctx context.Context, flags *publishFlags) error {
	// Step 1: Load the config file and merge flags over it.
	cfg, err := config.Load(configPath, configPathSet)
	if err != nil {
		return err
	}
	spec := mergeSpec(cfg, flags)
	if err := spec.Validate(); err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid publish configuration", err)
	}
	VerboseLog("Tap: %s, formula: %s -> %s", spec.TapRepo, spec.FormulaSource, spec.FormulaName)

	// Step 2: Resolve the source branch and apply the gate.
	branch, err := config.DetectBranch(ctx, ".")
	if err != nil {
		return err
	}
	VerboseLog("Source branch: %s (required: %s)", branch, spec.RequiredBranch)

	if skip, reason := branchGate(branch, spec.RequiredBranch); skip {
		if flags.requireGate {
			return model.NewCLIError(model.ExitBranchGate, reason)
		}
		result := &model.PublishResult{Branch: branch, Skipped: reason}
		return outputResult(result)
	}

	// Step 3: Extract the release version. An empty or missing version
	// aborts here, before any network operation, so the tap never
	// receives a commit with a malformed message.
	version, err := manifest.Extract(spec.ManifestPath)
	if err != nil {
		return err
	}
	VerboseLog("Release version: %s", version)

	// Step 4: Run the publish flow.
	publisher := tap.NewPublisher()
	publisher.DryRun = flags.dryRun
	publisher.Logf = VerboseLog
	publisher.GitSSHCommand = resolveGitSSHCommand(cfg)

	result, err := publisher.Publish(ctx, spec, version)
	if err != nil {
		return err
	}
	result.Branch = branch

	// Step 5: Output.
	return outputResult(result)
}

// mergeSpec builds the effective PublishSpec: config file values with
// non-empty flags layered on top.
func mergeSpec(cfg *config.File, flags *publishFlags) *model.PublishSpec {
	spec := cfg.Spec()
	if flags.tapRepo != "" {
		spec.TapRepo = flags.tapRepo
	}
	if flags.formula != "" {
		spec.FormulaSource = flags.formula
	}
	if flags.formulaName != "" {
		spec.FormulaName = flags.formulaName
	}
	if flags.manifest != "" {
		spec.ManifestPath = flags.manifest
	}
	if flags.branch != "" {
		spec.RequiredBranch = flags.branch
	}
	if flags.userName != "" {
		spec.Identity.Name = flags.userName
	}
	if flags.userEmail != "" {
		spec.Identity.Email = flags.userEmail
	}
	return spec
}

// branchGate decides whether the run must be skipped. An empty required
// branch disables the gate entirely (local usage), matching the behavior
// of running the publish step by hand.
func branchGate(branch, required string) (skip bool, reason string) {
	if required == "" || branch == required {
		return false, ""
	}
	return true, fmt.Sprintf("branch %q is not the publish branch %q", branch, required)
}

// resolveGitSSHCommand derives the GIT_SSH_COMMAND override from the
// config's SSH section when a previously installed credential is found.
// Without one, git falls back to the agent's ambient SSH configuration.
func resolveGitSSHCommand(cfg *config.File) string {
	dir := sshDir(cfg)
	layout := &sshsetup.Layout{
		Dir:            dir,
		KnownHostsPath: filepath.Join(dir, "known_hosts"),
		KeyPath:        filepath.Join(dir, "id_tap_publish"),
	}
	if _, err := os.Stat(layout.KeyPath); err != nil {
		return ""
	}
	if _, err := os.Stat(layout.KnownHostsPath); err != nil {
		return ""
	}
	VerboseLog("Using provisioned SSH credential in %s", dir)
	return layout.GitSSHCommand()
}

// sshDir resolves the SSH directory: config value first, then ~/.ssh.
func sshDir(cfg *config.File) string {
	if cfg.SSH.Dir != "" {
		return cfg.SSH.Dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ssh"
	}
	return filepath.Join(home, ".ssh")
}

// outputResult prints a PublishResult as text or JSON.
func outputResult(result *model.PublishResult) error {
	if IsJSONOutput() {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to encode result", err)
		}
		fmt.Println(string(data))
		return nil
	}

	switch {
	case result.Skipped != "":
		fmt.Printf("Skipped: %s\n", result.Skipped)
	case result.Pushed:
		fmt.Printf("Published version %s (%s)\n", result.Version, result.CommitMessage)
	default:
		fmt.Printf("Nothing published for version %s\n", result.Version)
	}
	return nil
}
