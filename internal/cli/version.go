// Package cli — version.go implements the "tap-publish version" command.
//
// The version command extracts the release version from the project
// manifest and prints it. It exists so the same extraction the publish
// pipeline uses is available to other build steps (tagging, artifact
// naming) without re-implementing it in shell.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1930sc/espanso/internal/config"
	"github.com/1930sc/espanso/internal/manifest"
	"github.com/1930sc/espanso/internal/model"
)

// versionFlags holds the flag values for the version command.
type versionFlags struct {
	manifest string // --manifest: manifest path override
}

// NewVersionCommand creates the "version" cobra command.
func NewVersionCommand() *cobra.Command {
	flags := &versionFlags{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Extract and print the release version from the manifest",
		Long: `Extract the release version from the project manifest and print it.

The manifest format is detected from the file name (Cargo.toml,
package.json, pubspec.yaml, ...). Unknown formats fall back to reading
the first quoted value on the first line containing "version".

Examples:
  tap-publish version
  tap-publish version --manifest Cargo.toml`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(flags)
		},
	}

	cmd.Flags().StringVar(&flags.manifest, "manifest", "", "Path to the project manifest holding the version")

	return cmd
}

// runVersion resolves the manifest path and prints the extracted version.
func runVersion(flags *versionFlags) error {
	cfg, err := config.Load(configPath, configPathSet)
	if err != nil {
		return err
	}

	path := cfg.ManifestPath
	if flags.manifest != "" {
		path = flags.manifest
	}
	if path == "" {
		return model.NewCLIError(model.ExitConfigError,
			"no manifest configured: pass --manifest or set manifestPath in the config")
	}

	version, err := manifest.Extract(path)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.Marshal(map[string]string{"version": version})
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(version)
	return nil
}
