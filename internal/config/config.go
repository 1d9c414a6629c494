// Package config loads the tap-publish configuration file and resolves
// the branch a build was triggered from.
//
// The config file (tap-publish.json by default) is JSONC: comments and
// trailing commas are accepted, since the file lives next to other
// tooling configs that allow them. Command-line flags override any
// value from the file; the merge happens in the CLI layer.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/1930sc/espanso/internal/model"
)

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = "tap-publish.json"

// File is the on-disk configuration schema. It maps one-to-one onto
// model.PublishSpec plus the SSH material references that setup-ssh
// consumes.
type File struct {
	// TapRepo is the git URL of the tap repository.
	TapRepo string `json:"tapRepo"`

	// FormulaSource is the path to the formula file in the checkout.
	FormulaSource string `json:"formulaSource"`

	// FormulaName overrides the file name inside the tap.
	FormulaName string `json:"formulaName,omitempty"`

	// ManifestPath is the project manifest holding the version field.
	ManifestPath string `json:"manifestPath"`

	// RequiredBranch gates publishing to builds from this branch.
	RequiredBranch string `json:"requiredBranch"`

	// Identity is the commit identity for the bump commit.
	Identity model.Identity `json:"identity"`

	// SSH references the credential material for setup-ssh.
	SSH SSHFile `json:"ssh,omitempty"`
}

// SSHFile holds the credential references from the config file.
// Key material itself never lives in the config: KnownHosts and
// PublicKey are non-secret, the private key is referenced by path.
type SSHFile struct {
	// KnownHosts is the known_hosts entry for the tap host.
	KnownHosts string `json:"knownHosts,omitempty"`

	// PublicKey is the deploy key in authorized-keys form.
	PublicKey string `json:"publicKey,omitempty"`

	// PrivateKeyPath points at the securely stored private key file,
	// typically materialized by the CI system's secure-file facility.
	PrivateKeyPath string `json:"privateKeyPath,omitempty"`

	// Dir is the SSH directory to install into. Defaults to ~/.ssh
	// in the CLI layer when empty.
	Dir string `json:"dir,omitempty"`
}

// Spec converts the file into a PublishSpec for validation and use.
func (f *File) Spec() *model.PublishSpec {
	return &model.PublishSpec{
		TapRepo:        f.TapRepo,
		FormulaSource:  f.FormulaSource,
		FormulaName:    f.FormulaName,
		ManifestPath:   f.ManifestPath,
		RequiredBranch: f.RequiredBranch,
		Identity:       f.Identity,
	}
}

// Load reads and parses the config file at path.
//
// A missing file is only an error when the caller asked for a specific
// path: the default path is optional, and its absence yields an empty
// File so flag-only invocations work.
func Load(path string, explicit bool) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &File{}, nil
		}
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read config %s", path), err)
	}

	// Strip JSONC syntax (comments, trailing commas) before handing the
	// bytes to encoding/json.
	var f File
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to parse config %s", path), err)
	}
	return &f, nil
}
