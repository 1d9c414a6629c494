package tap

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/1930sc/espanso/internal/model"
)

// gitRunner executes git commands for a Publisher. It exists as a
// struct so the SSH command override travels with every invocation
// instead of being threaded through each call site.
type gitRunner struct {
	// extraEnv is appended to the inherited environment for every git
	// command (e.g., GIT_SSH_COMMAND pointing at the provisioned key).
	extraEnv []string
}

// run executes a git command with the given arguments in the specified
// directory.
//
// It captures stdout and stderr separately. On success it returns the
// stdout output. On failure it returns a model.CLIError with
// ExitGitError, folding the stderr output into the message for
// diagnostics.
//
// The dir parameter is passed to git via the -C flag, which causes git
// to change to that directory before doing anything else. This avoids
// mutating the process working directory.
func (g *gitRunner) run(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 — args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	if len(g.extraEnv) > 0 {
		cmd.Env = append(cmd.Environ(), g.extraEnv...)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}

// CurrentBranch returns the name of the branch checked out at dir.
//
// Uses `git rev-parse --abbrev-ref HEAD`, which returns the short branch
// name (e.g., "master" instead of "refs/heads/master") and the literal
// "HEAD" in a detached state.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	g := &gitRunner{}
	output, err := g.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}
