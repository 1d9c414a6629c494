package tap

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1930sc/espanso/internal/model"
)

// testIdentity is the commit identity used by all publisher tests so
// that `git commit` works in CI environments without a global config.
var testIdentity = model.Identity{Name: "Test Bot", Email: "bot@example.com"}

// runTestGit runs a git command in the specified directory and fails the
// test immediately on a non-zero exit. This keeps test setup concise.
func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

// setupTapRemote creates a bare repository seeded with one commit that
// contains an initial formula file. The bare repo stands in for the
// remote tap; local paths are valid git URLs, so the Publisher clones
// and pushes to it exactly as it would over SSH.
//
// Returns the path to the bare repository.
func setupTapRemote(t *testing.T, formulaName, formulaContent string) string {
	t.Helper()

	base := t.TempDir()
	remote := filepath.Join(base, "homebrew-tap.git")
	seed := filepath.Join(base, "seed")

	runTestGit(t, base, "init", "--bare", remote)

	// Seed the remote through a working clone: bare repos cannot hold
	// a working tree themselves.
	runTestGit(t, base, "clone", remote, seed)
	runTestGit(t, seed, "config", "user.email", testIdentity.Email)
	runTestGit(t, seed, "config", "user.name", testIdentity.Name)

	formulaPath := filepath.Join(seed, formulaName)
	require.NoError(t, os.WriteFile(formulaPath, []byte(formulaContent), 0644))

	runTestGit(t, seed, "add", ".")
	runTestGit(t, seed, "commit", "-m", "initial formula")
	runTestGit(t, seed, "push", "origin", "HEAD")

	return remote
}

// writeFormulaSource drops a local formula file (the one the publisher
// installs into the tap) and returns its path.
func writeFormulaSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "espanso.rb")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// cloneRemote makes a fresh clone of the bare remote for assertions.
func cloneRemote(t *testing.T, remote string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "verify")
	runTestGit(t, filepath.Dir(dir), "clone", remote, dir)
	return dir
}

func testSpec(remote, formulaSource string) *model.PublishSpec {
	return &model.PublishSpec{
		TapRepo:        remote,
		FormulaSource:  formulaSource,
		FormulaName:    "espanso.rb",
		ManifestPath:   "Cargo.toml",
		RequiredBranch: "master",
		Identity:       testIdentity,
	}
}

// TestPublish verifies the full clone → replace → commit → push flow
// against a local bare remote.
func TestPublish(t *testing.T) {
	remote := setupTapRemote(t, "espanso.rb", "class Espanso < Formula\n  version \"0.7.1\"\nend\n")
	source := writeFormulaSource(t, "class Espanso < Formula\n  version \"0.7.2\"\nend\n")

	p := NewPublisher()
	result, err := p.Publish(context.Background(), testSpec(remote, source), "0.7.2")
	require.NoError(t, err)

	assert.True(t, result.Pushed)
	assert.Equal(t, "0.7.2", result.Version)
	assert.Equal(t, "Update to version: 0.7.2", result.CommitMessage)
	assert.Empty(t, result.Skipped)

	// The remote must carry the new formula and the bump commit.
	verify := cloneRemote(t, remote)
	content, err := os.ReadFile(filepath.Join(verify, "espanso.rb"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `version "0.7.2"`)

	subject := strings.TrimSpace(runTestGit(t, verify, "log", "-1", "--format=%s"))
	assert.Equal(t, "Update to version: 0.7.2", subject)

	author := strings.TrimSpace(runTestGit(t, verify, "log", "-1", "--format=%an <%ae>"))
	assert.Equal(t, "Test Bot <bot@example.com>", author)
}

// TestPublishNewFormula verifies publishing into a tap that does not yet
// contain the formula file: it is added rather than replaced.
func TestPublishNewFormula(t *testing.T) {
	remote := setupTapRemote(t, "other.rb", "class Other < Formula\nend\n")
	source := writeFormulaSource(t, "class Espanso < Formula\n  version \"1.0.0\"\nend\n")

	p := NewPublisher()
	result, err := p.Publish(context.Background(), testSpec(remote, source), "1.0.0")
	require.NoError(t, err)
	assert.True(t, result.Pushed)

	verify := cloneRemote(t, remote)
	assert.FileExists(t, filepath.Join(verify, "espanso.rb"))
	assert.FileExists(t, filepath.Join(verify, "other.rb"))
}

// TestPublishNoChanges verifies that re-publishing an identical formula
// is a reported no-op rather than a failure.
func TestPublishNoChanges(t *testing.T) {
	content := "class Espanso < Formula\n  version \"0.7.2\"\nend\n"
	remote := setupTapRemote(t, "espanso.rb", content)
	source := writeFormulaSource(t, content)

	p := NewPublisher()
	result, err := p.Publish(context.Background(), testSpec(remote, source), "0.7.2")
	require.NoError(t, err)

	assert.False(t, result.Pushed)
	assert.Contains(t, result.Skipped, "already contains")
	assert.Empty(t, result.CommitMessage)

	// The remote still has only its initial commit.
	verify := cloneRemote(t, remote)
	subject := strings.TrimSpace(runTestGit(t, verify, "log", "-1", "--format=%s"))
	assert.Equal(t, "initial formula", subject)
}

// TestPublishDryRun verifies that a dry run commits locally but never
// touches the remote.
func TestPublishDryRun(t *testing.T) {
	remote := setupTapRemote(t, "espanso.rb", "old\n")
	source := writeFormulaSource(t, "new\n")

	p := NewPublisher()
	p.DryRun = true
	result, err := p.Publish(context.Background(), testSpec(remote, source), "0.7.2")
	require.NoError(t, err)

	assert.False(t, result.Pushed)
	assert.Contains(t, result.Skipped, "dry run")

	verify := cloneRemote(t, remote)
	subject := strings.TrimSpace(runTestGit(t, verify, "log", "-1", "--format=%s"))
	assert.Equal(t, "initial formula", subject)
}

// TestPublishEmptyVersion verifies the guard against publishing without
// a version: it fails before any clone happens.
func TestPublishEmptyVersion(t *testing.T) {
	source := writeFormulaSource(t, "content\n")

	p := NewPublisher()
	_, err := p.Publish(context.Background(), testSpec("git@example.com:nowhere.git", source), "")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitManifestError, cliErr.Code)
}

// TestPublishMissingSource verifies the flow halts before cloning when
// the local formula file does not exist.
func TestPublishMissingSource(t *testing.T) {
	spec := testSpec("git@example.com:nowhere.git", filepath.Join(t.TempDir(), "missing.rb"))

	p := NewPublisher()
	_, err := p.Publish(context.Background(), spec, "0.7.2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "formula source not found")
}

// TestPublishCloneFailure verifies a failing clone aborts the run with a
// git error and nothing further happens.
func TestPublishCloneFailure(t *testing.T) {
	source := writeFormulaSource(t, "content\n")
	spec := testSpec(filepath.Join(t.TempDir(), "no-such-repo"), source)

	p := NewPublisher()
	_, err := p.Publish(context.Background(), spec, "0.7.2")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitGitError, cliErr.Code)
}

// TestCurrentBranch verifies branch detection in a scratch repository.
func TestCurrentBranch(t *testing.T) {
	dir := t.TempDir()
	runTestGit(t, dir, "init", "-b", "main")
	runTestGit(t, dir, "config", "user.email", testIdentity.Email)
	runTestGit(t, dir, "config", "user.name", testIdentity.Name)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# tap\n"), 0644))
	runTestGit(t, dir, "add", ".")
	runTestGit(t, dir, "commit", "-m", "initial commit")

	branch, err := CurrentBranch(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	runTestGit(t, dir, "checkout", "-b", "release")
	branch, err = CurrentBranch(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "release", branch)
}
