// Package tap publishes formula version bumps to a Homebrew tap
// repository.
//
// The Publisher wraps the git CLI (via os/exec) to clone the tap,
// replace the formula file with the one from the current checkout, and
// commit and push the result. We shell out to `git` rather than using a
// Go git library because the publish flow must honor the exact SSH and
// credential configuration of the build agent, and the CLI is the one
// tool guaranteed to do that.
//
// All errors from git commands are wrapped in model.CLIError with
// ExitGitError to enable proper CLI exit code handling.
package tap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/1930sc/espanso/internal/model"
)

// Publisher performs the clone → replace → commit → push flow against
// a tap repository.
type Publisher struct {
	// GitSSHCommand, when non-empty, is exported as GIT_SSH_COMMAND for
	// every git invocation so clone and push use the provisioned key and
	// known-hosts file instead of the ambient SSH configuration.
	GitSSHCommand string

	// DryRun stops the flow after the commit: nothing is pushed.
	DryRun bool

	// Logf receives verbose progress messages. Nil disables logging.
	Logf func(format string, args ...interface{})
}

// NewPublisher creates a Publisher with no SSH override and logging
// disabled.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// logf forwards to the configured logger, if any.
func (p *Publisher) logf(format string, args ...interface{}) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

// runner builds the gitRunner carrying the SSH override.
func (p *Publisher) runner() *gitRunner {
	g := &gitRunner{}
	if p.GitSSHCommand != "" {
		g.extraEnv = []string{"GIT_SSH_COMMAND=" + p.GitSSHCommand}
	}
	return g
}

// Publish runs the full bump flow for the given spec and version.
//
// The tap is cloned (depth 1) into a throwaway temp directory that is
// removed when Publish returns, so a failure at any step leaves no
// partial state behind — the remote is only touched by the final push.
//
// When replacing the formula produces no change (the tap already holds
// an identical file), the commit and push are skipped and the result
// reports the run as skipped rather than failing; re-running a publish
// for an already-released version must not break the pipeline.
func (p *Publisher) Publish(ctx context.Context, spec *model.PublishSpec, version string) (*model.PublishResult, error) {
	if version == "" {
		return nil, model.NewCLIError(model.ExitManifestError, "refusing to publish an empty version")
	}

	// Verify the replacement formula exists before any network work.
	if _, err := os.Stat(spec.FormulaSource); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("formula source not found: %s", spec.FormulaSource), err)
	}

	workDir, err := os.MkdirTemp("", "tap-publish-")
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to create temp directory", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	g := p.runner()

	// Step 1: clone the tap. Depth 1 is enough — we only append one commit.
	p.logf("Cloning tap repository %s", spec.TapRepo)
	cloneDir := filepath.Join(workDir, "tap")
	if _, err := g.run(ctx, workDir, "clone", "--depth", "1", spec.TapRepo, cloneDir); err != nil {
		return nil, err
	}

	// Step 2: configure the commit identity on the clone. Repo-local
	// config avoids mutating the agent's global git configuration.
	if !spec.Identity.IsZero() {
		p.logf("Configuring commit identity %s <%s>", spec.Identity.Name, spec.Identity.Email)
		if err := p.configureIdentity(ctx, g, cloneDir, spec.Identity); err != nil {
			return nil, err
		}
	}

	// Step 3: replace the formula file.
	p.logf("Replacing formula %s", spec.FormulaName)
	if err := replaceFormula(spec.FormulaSource, filepath.Join(cloneDir, spec.FormulaName)); err != nil {
		return nil, err
	}

	message := model.CommitMessage(version)
	result := &model.PublishResult{
		Version:       version,
		CommitMessage: message,
	}

	// Step 4: stage and inspect. An identical formula produces an empty
	// status, which means there is nothing to release.
	if _, err := g.run(ctx, cloneDir, "add", "-A"); err != nil {
		return nil, err
	}
	status, err := g.run(ctx, cloneDir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(status) == "" {
		p.logf("Tap already up to date for version %s", version)
		result.CommitMessage = ""
		result.Skipped = fmt.Sprintf("tap already contains formula for version %s", version)
		return result, nil
	}

	// Step 5: commit.
	p.logf("Committing: %s", message)
	if _, err := g.run(ctx, cloneDir, "commit", "-m", message); err != nil {
		return nil, err
	}

	if p.DryRun {
		p.logf("Dry run: skipping push")
		result.Skipped = "dry run: commit created but not pushed"
		return result, nil
	}

	// Step 6: push to the tap's default branch. "HEAD" pushes whatever
	// branch the clone checked out, so the tap's default branch name
	// (main, master, ...) never needs to be known here.
	p.logf("Pushing to %s", spec.TapRepo)
	if _, err := g.run(ctx, cloneDir, "push", "origin", "HEAD"); err != nil {
		return nil, err
	}

	result.Pushed = true
	return result, nil
}

// configureIdentity sets user.name and user.email on the clone.
func (p *Publisher) configureIdentity(ctx context.Context, g *gitRunner, dir string, id model.Identity) error {
	if _, err := g.run(ctx, dir, "config", "user.name", id.Name); err != nil {
		return err
	}
	if _, err := g.run(ctx, dir, "config", "user.email", id.Email); err != nil {
		return err
	}
	return nil
}

// replaceFormula deletes dst if present and copies src into its place.
// The delete-then-copy mirrors the release flow this tool replaces; the
// destructive step only ever touches the throwaway clone.
func replaceFormula(src, dst string) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to remove formula %s", dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to open formula source %s", src), err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to create formula %s", dst), err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to copy formula to %s", dst), err)
	}
	if err := out.Close(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to write formula %s", dst), err)
	}
	return nil
}
