// Package cli — setup.go implements the "tap-publish setup-ssh" command.
//
// The setup-ssh command provisions the SSH credential the publish step
// needs: it validates the known-hosts entry, public key, and private key
// material, then installs them into the SSH directory with the
// permissions git's ssh transport requires. Subsequent publish runs pick
// the installed credential up automatically.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1930sc/espanso/internal/config"
	"github.com/1930sc/espanso/internal/model"
	"github.com/1930sc/espanso/internal/sshsetup"
)

// setupSSHFlags holds the flag values for the setup-ssh command.
type setupSSHFlags struct {
	knownHosts string // --known-hosts: known_hosts entry text
	publicKey  string // --public-key: deploy key in authorized-keys form
	keyPath    string // --key: path to the securely stored private key
	dir        string // --dir: SSH directory to install into
}

// NewSetupSSHCommand creates the "setup-ssh" cobra command.
func NewSetupSSHCommand() *cobra.Command {
	flags := &setupSSHFlags{}

	cmd := &cobra.Command{
		Use:   "setup-ssh",
		Short: "Install the SSH credential for publishing",
		Long: `Validate and install the SSH credential used to push to the tap.

The known-hosts entry, public key, and private key are validated before
anything is written; malformed material fails the command without
touching the SSH directory. Installation is idempotent: re-running on a
reused agent rewrites the key files and appends only missing known-hosts
lines.

Examples:
  tap-publish setup-ssh --key /secure/deploy_key --known-hosts "$(ssh-keyscan github.com)"
  tap-publish setup-ssh   # material from the ssh section of the config file`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetupSSH(flags)
		},
	}

	cmd.Flags().StringVar(&flags.knownHosts, "known-hosts", "", "known_hosts entry for the tap host")
	cmd.Flags().StringVar(&flags.publicKey, "public-key", "", "Deploy key in authorized-keys form")
	cmd.Flags().StringVar(&flags.keyPath, "key", "", "Path to the securely stored private key")
	cmd.Flags().StringVar(&flags.dir, "dir", "", "SSH directory to install into (default: ~/.ssh)")

	return cmd
}

// runSetupSSH merges config and flags into a credential and installs it.
func runSetupSSH(flags *setupSSHFlags) error {
	cfg, err := config.Load(configPath, configPathSet)
	if err != nil {
		return err
	}

	cred := &sshsetup.Credential{
		KnownHosts:     cfg.SSH.KnownHosts,
		PublicKey:      cfg.SSH.PublicKey,
		PrivateKeyPath: cfg.SSH.PrivateKeyPath,
	}
	if flags.knownHosts != "" {
		cred.KnownHosts = flags.knownHosts
	}
	if flags.publicKey != "" {
		cred.PublicKey = flags.publicKey
	}
	if flags.keyPath != "" {
		cred.PrivateKeyPath = flags.keyPath
	}

	dir := flags.dir
	if dir == "" {
		dir = sshDir(cfg)
	}

	VerboseLog("Installing SSH credential into %s", dir)
	layout, err := sshsetup.Install(dir, cred)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		out := map[string]string{
			"dir":        layout.Dir,
			"key":        layout.KeyPath,
			"knownHosts": layout.KnownHostsPath,
		}
		if layout.PublicKeyPath != "" {
			out["publicKey"] = layout.PublicKeyPath
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to encode result", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("SSH credential installed in %s\n", layout.Dir)
	fmt.Printf("  key:         %s\n", layout.KeyPath)
	fmt.Printf("  known_hosts: %s\n", layout.KnownHostsPath)
	if layout.PublicKeyPath != "" {
		fmt.Printf("  public key:  %s\n", layout.PublicKeyPath)
	}
	return nil
}
