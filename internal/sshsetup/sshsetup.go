// Package sshsetup provisions the SSH credential a publish run needs:
// a known-hosts entry for the tap host, a key pair, and the file
// permissions git's ssh transport insists on.
//
// The build agent hands us the credential material (known-hosts text,
// public key text, and a path to the securely stored private key); this
// package validates each piece with golang.org/x/crypto/ssh before
// writing anything, so a malformed secret fails the job with a clear
// message instead of an interactive ssh prompt deep inside a clone.
package sshsetup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/1930sc/espanso/internal/model"
)

// Credential bundles the material installed into the SSH directory.
// It mirrors what CI systems hand a job: inline known-hosts and public
// key text, plus a reference to the securely stored private key file.
type Credential struct {
	// KnownHosts is one or more known_hosts lines for the tap host
	// (e.g., the output of `ssh-keyscan github.com`).
	KnownHosts string

	// PublicKey is the authorized-keys form of the deploy key
	// ("ssh-ed25519 AAAA... comment").
	PublicKey string

	// PrivateKeyPath points at the securely stored private key file.
	// Exactly one of PrivateKeyPath and PrivateKey is set.
	PrivateKeyPath string

	// PrivateKey is the PEM-encoded private key material, for callers
	// that receive the secret inline rather than as a file.
	PrivateKey []byte
}

// privateKeyMaterial returns the key bytes, reading PrivateKeyPath when
// the material was not provided inline.
func (c *Credential) privateKeyMaterial() ([]byte, error) {
	if len(c.PrivateKey) > 0 {
		return c.PrivateKey, nil
	}
	if c.PrivateKeyPath == "" {
		return nil, fmt.Errorf("no private key provided")
	}
	data, err := os.ReadFile(c.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", c.PrivateKeyPath, err)
	}
	return data, nil
}

// Validate parses every piece of the credential and rejects anything
// ssh itself would choke on. Passphrase-protected private keys are
// rejected: the publish run is non-interactive and could never unlock
// them.
func (c *Credential) Validate() error {
	if strings.TrimSpace(c.KnownHosts) == "" {
		return model.NewCLIError(model.ExitSSHError, "known-hosts entry must not be empty")
	}
	for _, line := range strings.Split(c.KnownHosts, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, _, _, _, _, err := ssh.ParseKnownHosts([]byte(line + "\n")); err != nil {
			return model.WrapCLIError(model.ExitSSHError,
				fmt.Sprintf("invalid known-hosts line %q", line), err)
		}
	}

	if strings.TrimSpace(c.PublicKey) != "" {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(c.PublicKey)); err != nil {
			return model.WrapCLIError(model.ExitSSHError, "invalid public key", err)
		}
	}

	material, err := c.privateKeyMaterial()
	if err != nil {
		return model.WrapCLIError(model.ExitSSHError, "private key unavailable", err)
	}
	if _, err := ssh.ParsePrivateKey(material); err != nil {
		var passErr *ssh.PassphraseMissingError
		if errors.As(err, &passErr) {
			return model.NewCLIError(model.ExitSSHError,
				"private key is passphrase-protected; publish runs are non-interactive")
		}
		return model.WrapCLIError(model.ExitSSHError, "invalid private key", err)
	}
	return nil
}

// Layout names the files Install writes under the SSH directory.
type Layout struct {
	// Dir is the SSH directory (0700).
	Dir string

	// KnownHostsPath is the known_hosts file (0644).
	KnownHostsPath string

	// KeyPath is the private key file (0600).
	KeyPath string

	// PublicKeyPath is the public key file (0644). Empty when the
	// credential carried no public key.
	PublicKeyPath string
}

// Install validates the credential and writes it under dir, creating
// the directory with mode 0700 when missing.
//
// Installation is idempotent: the key files are rewritten in place and
// known-hosts lines already present in the file are not appended again,
// so re-running setup on a reused agent does not grow known_hosts.
func Install(dir string, cred *Credential) (*Layout, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, model.WrapCLIError(model.ExitSSHError,
			fmt.Sprintf("failed to create SSH directory %s", dir), err)
	}

	layout := &Layout{
		Dir:            dir,
		KnownHostsPath: filepath.Join(dir, "known_hosts"),
		KeyPath:        filepath.Join(dir, "id_tap_publish"),
	}

	if err := appendKnownHosts(layout.KnownHostsPath, cred.KnownHosts); err != nil {
		return nil, err
	}

	material, err := cred.privateKeyMaterial()
	if err != nil {
		// Unreachable after Validate, but kept so Install stays safe
		// when called directly.
		return nil, model.WrapCLIError(model.ExitSSHError, "private key unavailable", err)
	}
	if err := os.WriteFile(layout.KeyPath, material, 0600); err != nil {
		return nil, model.WrapCLIError(model.ExitSSHError, "failed to write private key", err)
	}

	if strings.TrimSpace(cred.PublicKey) != "" {
		layout.PublicKeyPath = layout.KeyPath + ".pub"
		pub := strings.TrimSpace(cred.PublicKey) + "\n"
		if err := os.WriteFile(layout.PublicKeyPath, []byte(pub), 0644); err != nil {
			return nil, model.WrapCLIError(model.ExitSSHError, "failed to write public key", err)
		}
	}

	return layout, nil
}

// GitSSHCommand returns the GIT_SSH_COMMAND value that makes git use
// the installed credential: the provisioned identity only, verified
// against the provisioned known_hosts file.
func (l *Layout) GitSSHCommand() string {
	return fmt.Sprintf("ssh -i %s -o IdentitiesOnly=yes -o UserKnownHostsFile=%s -o StrictHostKeyChecking=yes",
		l.KeyPath, l.KnownHostsPath)
}

// appendKnownHosts appends the lines of entry to the known_hosts file,
// skipping lines the file already contains.
func appendKnownHosts(path, entry string) error {
	existing := map[string]bool{}
	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				existing[line] = true
			}
		}
	}

	var fresh []string
	for _, line := range strings.Split(entry, "\n") {
		if line = strings.TrimSpace(line); line != "" && !existing[line] {
			fresh = append(fresh, line)
			existing[line] = true
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return model.WrapCLIError(model.ExitSSHError, "failed to open known_hosts", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(strings.Join(fresh, "\n") + "\n"); err != nil {
		return model.WrapCLIError(model.ExitSSHError, "failed to append to known_hosts", err)
	}
	return nil
}
