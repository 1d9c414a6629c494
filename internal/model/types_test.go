package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateFormulaName verifies formula file name validation against
// names Homebrew accepts and common mistakes (paths, missing extension).
func TestValidateFormulaName(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		wantErr bool
	}{
		{"simple name", "espanso.rb", false},
		{"hyphenated name", "some-tool.rb", false},
		{"versioned name", "python@3.11.rb", false},
		{"dotted name", "tool.cli.rb", false},
		{"plus in name", "gcc+10.rb", false},
		{"empty", "", true},
		{"missing extension", "espanso", true},
		{"wrong extension", "espanso.py", true},
		{"path separator", "Formula/espanso.rb", true},
		{"backslash separator", `Formula\espanso.rb`, true},
		{"leading dot", ".espanso.rb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFormulaName(tt.formula)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestPublishSpecValidate covers required-field checks and the
// FormulaName defaulting behavior.
func TestPublishSpecValidate(t *testing.T) {
	valid := func() *PublishSpec {
		return &PublishSpec{
			TapRepo:        "git@github.com:owner/homebrew-tap.git",
			FormulaSource:  "espanso.rb",
			ManifestPath:   "Cargo.toml",
			RequiredBranch: "master",
		}
	}

	t.Run("valid spec passes", func(t *testing.T) {
		s := valid()
		require.NoError(t, s.Validate())
		// FormulaName defaults to the source base name.
		assert.Equal(t, "espanso.rb", s.FormulaName)
	})

	t.Run("formula name defaults from nested source path", func(t *testing.T) {
		s := valid()
		s.FormulaSource = "packaging/homebrew/espanso.rb"
		require.NoError(t, s.Validate())
		assert.Equal(t, "espanso.rb", s.FormulaName)
	})

	t.Run("explicit formula name wins", func(t *testing.T) {
		s := valid()
		s.FormulaName = "espanso-beta.rb"
		require.NoError(t, s.Validate())
		assert.Equal(t, "espanso-beta.rb", s.FormulaName)
	})

	t.Run("missing tap repo", func(t *testing.T) {
		s := valid()
		s.TapRepo = ""
		assert.Error(t, s.Validate())
	})

	t.Run("missing formula source", func(t *testing.T) {
		s := valid()
		s.FormulaSource = ""
		assert.Error(t, s.Validate())
	})

	t.Run("missing manifest", func(t *testing.T) {
		s := valid()
		s.ManifestPath = ""
		assert.Error(t, s.Validate())
	})

	t.Run("partial identity rejected", func(t *testing.T) {
		s := valid()
		s.Identity = Identity{Name: "Release Bot"}
		assert.Error(t, s.Validate())
	})

	t.Run("complete identity accepted", func(t *testing.T) {
		s := valid()
		s.Identity = Identity{Name: "Release Bot", Email: "bot@example.com"}
		assert.NoError(t, s.Validate())
	})

	t.Run("bad email rejected", func(t *testing.T) {
		s := valid()
		s.Identity = Identity{Name: "Release Bot", Email: "not-an-address"}
		assert.Error(t, s.Validate())
	})
}

// TestCommitMessage pins the commit message format the tap history uses.
func TestCommitMessage(t *testing.T) {
	assert.Equal(t, "Update to version: 1.2.3", CommitMessage("1.2.3"))
	assert.Equal(t, "Update to version: 0.7.2-beta", CommitMessage("0.7.2-beta"))
}

// TestCLIError verifies error formatting, unwrapping, and the
// constructors used throughout the CLI.
func TestCLIError(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		err := NewCLIError(ExitGitError, "clone failed")
		assert.Equal(t, "clone failed", err.Error())
		assert.Equal(t, ExitGitError, err.Code)
		assert.Nil(t, err.Unwrap())
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := errors.New("exit status 128")
		err := WrapCLIError(ExitGitError, "clone failed", inner)
		assert.Equal(t, "clone failed: exit status 128", err.Error())
		assert.ErrorIs(t, err, inner)
	})

	t.Run("errors.As finds CLIError", func(t *testing.T) {
		var cliErr *CLIError
		wrapped := WrapCLIError(ExitManifestError, "no version", nil)
		require.ErrorAs(t, error(wrapped), &cliErr)
		assert.Equal(t, ExitManifestError, cliErr.Code)
	})
}
