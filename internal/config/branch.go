package config

import (
	"context"
	"os"
	"strings"

	"github.com/1930sc/espanso/internal/tap"
)

// branchEnvVars are the CI build-metadata variables consulted for the
// source branch, in priority order. Each CI system exposes exactly one
// of them, so order only matters when a variable is set to an empty
// string; empty values are skipped.
var branchEnvVars = []string{
	"TAP_PUBLISH_BRANCH",      // explicit override, highest priority
	"BUILD_SOURCEBRANCHNAME",  // Azure Pipelines (short name)
	"BUILD_SOURCEBRANCH",      // Azure Pipelines (full ref)
	"GITHUB_REF_NAME",         // GitHub Actions (short name)
	"GITHUB_REF",              // GitHub Actions (full ref)
	"CI_COMMIT_BRANCH",        // GitLab CI
	"BUILDKITE_BRANCH",        // Buildkite
	"CIRCLE_BRANCH",           // CircleCI
	"TRAVIS_BRANCH",           // Travis CI
}

// DetectBranch resolves the branch the current build was triggered
// from: CI build metadata first, then `git rev-parse` in dir as a
// fallback for local runs. Full refs (refs/heads/master) are reduced to
// their short name.
func DetectBranch(ctx context.Context, dir string) (string, error) {
	for _, name := range branchEnvVars {
		if value := os.Getenv(name); value != "" {
			return ShortBranch(value), nil
		}
	}
	branch, err := tap.CurrentBranch(ctx, dir)
	if err != nil {
		return "", err
	}
	return ShortBranch(branch), nil
}

// ShortBranch strips a refs/heads/ or refs/tags/ prefix, leaving plain
// branch names untouched. Other ref namespaces (refs/pull/...) are
// returned as-is minus nothing; they never match a branch gate, which
// is the desired behavior for PR builds.
func ShortBranch(ref string) string {
	if name, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
		return name
	}
	if name, ok := strings.CutPrefix(ref, "refs/tags/"); ok {
		return name
	}
	return ref
}
