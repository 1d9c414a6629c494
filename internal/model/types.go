// Package model defines the domain types for the tap-publish CLI.
//
// All entities in this package are transient: a publish run reads its
// inputs from flags, environment, and an optional config file, performs
// the release in a throwaway clone, and discards all state when the
// process exits. Nothing here is persisted.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// PublishSpec describes a single tap publish operation: which tap
// repository to push to, which formula file to install into it, and
// where the release version comes from.
//
// A PublishSpec is assembled from the config file and command-line flags
// (flags win) and validated once before any external command runs.
type PublishSpec struct {
	// TapRepo is the git URL of the Homebrew tap repository,
	// typically an SSH URL (e.g., "git@github.com:owner/homebrew-tap.git").
	TapRepo string `json:"tapRepo"`

	// FormulaSource is the path to the formula file in the current
	// checkout that will replace the one in the tap (e.g., "espanso.rb").
	FormulaSource string `json:"formulaSource"`

	// FormulaName is the file name the formula takes inside the tap.
	// Defaults to the base name of FormulaSource.
	FormulaName string `json:"formulaName,omitempty"`

	// ManifestPath is the path to the project manifest holding the
	// version field (e.g., "Cargo.toml").
	ManifestPath string `json:"manifestPath"`

	// RequiredBranch is the branch the build must originate from for the
	// publish to proceed. Publishing from any other branch is a no-op.
	RequiredBranch string `json:"requiredBranch"`

	// Identity is the git author/committer identity for the bump commit.
	Identity Identity `json:"identity"`
}

// Identity is the git user configuration applied to the tap clone
// before committing.
type Identity struct {
	// Name is the value for git config user.name.
	Name string `json:"name"`

	// Email is the value for git config user.email.
	Email string `json:"email"`
}

// IsZero reports whether neither name nor email is set.
func (id Identity) IsZero() bool {
	return id.Name == "" && id.Email == ""
}

// Validate checks that both fields of the identity are present. Git
// refuses to commit without a complete identity, so we fail before
// cloning rather than after.
func (id Identity) Validate() error {
	if id.Name == "" {
		return fmt.Errorf("commit identity: name must not be empty")
	}
	if id.Email == "" {
		return fmt.Errorf("commit identity: email must not be empty")
	}
	if !strings.Contains(id.Email, "@") {
		return fmt.Errorf("commit identity: email %q is not an address", id.Email)
	}
	return nil
}

// formulaNameRegex validates formula file names: a Ruby file whose base
// name uses the characters Homebrew accepts for formula names, including
// @ for versioned formulas (python@3.11.rb).
var formulaNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+@-]*\.rb$`)

// ValidateFormulaName checks that name is a plausible Homebrew formula
// file name (a bare *.rb file name, no directory components).
func ValidateFormulaName(name string) error {
	if name == "" {
		return fmt.Errorf("formula name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("formula name %q must not contain path separators", name)
	}
	if !formulaNameRegex.MatchString(name) {
		return fmt.Errorf("invalid formula name %q: must be a .rb file name", name)
	}
	return nil
}

// Validate checks the spec for the fields every publish run needs.
// It also fills FormulaName from FormulaSource when unset, so callers
// can rely on FormulaName afterwards.
func (s *PublishSpec) Validate() error {
	if s.TapRepo == "" {
		return fmt.Errorf("tap repository URL must not be empty")
	}
	if s.FormulaSource == "" {
		return fmt.Errorf("formula source path must not be empty")
	}
	if s.ManifestPath == "" {
		return fmt.Errorf("manifest path must not be empty")
	}
	if s.FormulaName == "" {
		// Default to the base name of the source file. Formula sources are
		// repo-relative paths, so both separators are handled.
		name := s.FormulaSource
		if i := strings.LastIndexAny(name, `/\`); i >= 0 {
			name = name[i+1:]
		}
		s.FormulaName = name
	}
	if err := ValidateFormulaName(s.FormulaName); err != nil {
		return err
	}
	if !s.Identity.IsZero() {
		if err := s.Identity.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CommitMessage builds the bump commit message for the given version.
// The format matches what the tap's history already contains, so it is
// deliberately not configurable.
func CommitMessage(version string) string {
	return fmt.Sprintf("Update to version: %s", version)
}

// PublishResult summarizes the outcome of a publish run for output
// (text or JSON).
type PublishResult struct {
	// Version is the release version extracted from the manifest.
	Version string `json:"version"`

	// Branch is the branch the run was triggered from.
	Branch string `json:"branch"`

	// CommitMessage is the message of the bump commit, empty when no
	// commit was made.
	CommitMessage string `json:"commitMessage,omitempty"`

	// Pushed reports whether a commit was pushed to the tap.
	Pushed bool `json:"pushed"`

	// Skipped holds the human-readable reason when the run was a no-op
	// (branch gate not met, or the tap already carried the formula).
	Skipped string `json:"skipped,omitempty"`
}

// ExitCode defines the CLI exit codes. They let CI systems distinguish
// failure classes without parsing error text.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the config file or flags were invalid.
	ExitConfigError ExitCode = 2

	// ExitManifestError indicates the version could not be extracted
	// from the manifest.
	ExitManifestError ExitCode = 3

	// ExitGitError indicates a git operation (clone, commit, push) failed.
	ExitGitError ExitCode = 4

	// ExitSSHError indicates SSH credential material was invalid or
	// could not be installed.
	ExitSSHError ExitCode = 5

	// ExitBranchGate indicates the branch gate failed while
	// --require-branch-match was set.
	ExitBranchGate ExitCode = 6
)

// CLIError is a custom error type that carries an exit code, allowing
// the CLI layer to translate domain errors into process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
