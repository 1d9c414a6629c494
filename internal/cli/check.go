// Package cli — check.go implements the "tap-publish check" command.
//
// The check command is a read-only diagnostic: it reports what a publish
// run would do — resolved branch and gate outcome, extracted version,
// formula presence, commit identity, and whether a provisioned SSH
// credential was found — without cloning or pushing anything. It
// replaces the ad-hoc `cat known_hosts` style debugging the publish
// step used to rely on.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1930sc/espanso/internal/config"
	"github.com/1930sc/espanso/internal/manifest"
	"github.com/1930sc/espanso/internal/model"
)

// checkReport is the output schema of the check command.
type checkReport struct {
	Branch         string `json:"branch"`
	RequiredBranch string `json:"requiredBranch,omitempty"`
	GateOpen       bool   `json:"gateOpen"`
	Version        string `json:"version,omitempty"`
	VersionError   string `json:"versionError,omitempty"`
	FormulaSource  string `json:"formulaSource,omitempty"`
	FormulaFound   bool   `json:"formulaFound"`
	IdentitySet    bool   `json:"identitySet"`
	SSHProvisioned bool   `json:"sshProvisioned"`
	ConfigValid    bool   `json:"configValid"`
	ConfigError    string `json:"configError,omitempty"`
}

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report what a publish run would do, without publishing",
		Long: `Inspect the publish configuration and environment and report:

  - the resolved source branch and whether the branch gate would open
  - the version that would be extracted from the manifest
  - whether the formula source file exists
  - whether a commit identity is configured
  - whether a provisioned SSH credential was found

The command never clones or pushes. It exits zero even when the report
contains problems, so CI can run it for visibility without failing.`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context())
		},
	}

	return cmd
}

// runCheck assembles and prints the diagnostic report.
func runCheck(ctx context.Context) error {
	cfg, err := config.Load(configPath, configPathSet)
	if err != nil {
		return err
	}
	spec := cfg.Spec()

	report := &checkReport{
		RequiredBranch: spec.RequiredBranch,
		FormulaSource:  spec.FormulaSource,
		IdentitySet:    !spec.Identity.IsZero(),
	}

	if err := spec.Validate(); err != nil {
		report.ConfigError = err.Error()
	} else {
		report.ConfigValid = true
	}

	branch, err := config.DetectBranch(ctx, ".")
	if err != nil {
		// Branch detection failing (not a git checkout, no CI metadata)
		// is itself a finding, not a reason to abort the report.
		report.Branch = ""
	} else {
		report.Branch = branch
	}
	skip, _ := branchGate(report.Branch, spec.RequiredBranch)
	report.GateOpen = !skip && report.Branch != ""

	if spec.ManifestPath != "" {
		version, err := manifest.Extract(spec.ManifestPath)
		if err != nil {
			report.VersionError = err.Error()
		} else {
			report.Version = version
		}
	}

	if spec.FormulaSource != "" {
		_, statErr := os.Stat(spec.FormulaSource)
		report.FormulaFound = statErr == nil
	}

	report.SSHProvisioned = resolveGitSSHCommand(cfg) != ""

	return outputCheck(report)
}

// outputCheck prints the report as text or JSON.
func outputCheck(report *checkReport) error {
	if IsJSONOutput() {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to encode report", err)
		}
		fmt.Println(string(data))
		return nil
	}

	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}

	fmt.Printf("branch:          %s\n", orDash(report.Branch))
	fmt.Printf("required branch: %s\n", orDash(report.RequiredBranch))
	fmt.Printf("gate open:       %s\n", yesNo(report.GateOpen))
	if report.VersionError != "" {
		fmt.Printf("version:         error: %s\n", report.VersionError)
	} else {
		fmt.Printf("version:         %s\n", orDash(report.Version))
	}
	fmt.Printf("formula found:   %s\n", yesNo(report.FormulaFound))
	fmt.Printf("identity set:    %s\n", yesNo(report.IdentitySet))
	fmt.Printf("ssh provisioned: %s\n", yesNo(report.SSHProvisioned))
	if report.ConfigError != "" {
		fmt.Printf("config:          invalid: %s\n", report.ConfigError)
	} else {
		fmt.Printf("config:          valid\n")
	}
	return nil
}

// orDash substitutes "-" for empty values in text output.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
