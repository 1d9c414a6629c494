// Package manifest extracts the release version from a project manifest.
//
// The historical extraction was a line scan: take the first line of the
// manifest that contains "version" and read the value between the first
// pair of double quotes. ScanVersion preserves those exact semantics.
// On top of it, Extract recognizes common manifest formats by file name
// (Cargo.toml, package.json, pubspec.yaml, ...) and parses the version
// field properly, falling back to the line scan when the format is
// unknown or carries no version field.
package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/1930sc/espanso/internal/model"
)

// Format identifies how a manifest file is parsed.
type Format string

const (
	// FormatTOML covers Cargo.toml, pyproject.toml and friends.
	FormatTOML Format = "toml"

	// FormatJSON covers package.json and other JSON manifests.
	// JSONC (comments, trailing commas) is accepted.
	FormatJSON Format = "json"

	// FormatYAML covers pubspec.yaml, Chart.yaml, snapcraft.yaml.
	FormatYAML Format = "yaml"

	// FormatScan is the fallback: the first-quoted-value line scan.
	FormatScan Format = "scan"
)

// DetectFormat picks a Format from the manifest file name extension.
// Unknown extensions get FormatScan.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatScan
	}
}

// ScanVersion reads the manifest line by line and returns the value
// between the first pair of double quotes on the first line containing
// the substring "version".
//
// This mirrors the original pipeline extraction
// (grep version | head -1 | awk -F'"' '{print $2}'): a line such as
//
//	version = "1.2.3"
//
// yields "1.2.3". A matching line without quotes, or a manifest with no
// matching line at all, yields the empty string. Callers treat an empty
// result as "no version"; ScanVersion itself does not error on it.
func ScanVersion(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "version") {
			continue
		}
		// First line wins, even when it has no quoted value.
		parts := strings.Split(line, `"`)
		if len(parts) >= 3 {
			return parts[1], nil
		}
		return "", nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to scan manifest: %w", err)
	}
	return "", nil
}

// versionDoc matches the top-level version field of JSON and YAML
// manifests (package.json, pubspec.yaml, Chart.yaml).
type versionDoc struct {
	Version string `json:"version" yaml:"version"`
}

// cargoDoc matches the layouts TOML manifests keep their version in:
// top-level (pyproject-style tool tables aside), under [package]
// (Cargo.toml), or under [project] (pyproject.toml).
type cargoDoc struct {
	Version string `toml:"version"`
	Package struct {
		Version string `toml:"version"`
	} `toml:"package"`
	Project struct {
		Version string `toml:"version"`
	} `toml:"project"`
}

// Extract reads the manifest at path and returns its version string.
//
// The format is detected from the file name. Format-aware parsing is
// attempted first; when the parsed document has no version field (or the
// parse fails), Extract falls back to ScanVersion so that loosely
// formatted manifests keep working. A manifest that yields no version
// either way produces an ExitManifestError.
func Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", model.WrapCLIError(model.ExitManifestError,
				fmt.Sprintf("manifest not found: %s", path), err)
		}
		return "", model.WrapCLIError(model.ExitManifestError,
			fmt.Sprintf("failed to read manifest %s", path), err)
	}

	version := parseVersion(DetectFormat(path), data)
	if version == "" {
		// Fall back to the line scan for manifests the format parser
		// could not handle.
		version, err = ScanVersion(bytes.NewReader(data))
		if err != nil {
			return "", model.WrapCLIError(model.ExitManifestError,
				fmt.Sprintf("failed to scan manifest %s", path), err)
		}
	}

	if version == "" {
		return "", model.NewCLIError(model.ExitManifestError,
			fmt.Sprintf("no version found in manifest %s", path))
	}
	return version, nil
}

// parseVersion applies the format-specific parser. It returns "" when
// the format is FormatScan, when parsing fails, or when the document has
// no version field; the caller falls back to ScanVersion in all three
// cases.
func parseVersion(format Format, data []byte) string {
	switch format {
	case FormatTOML:
		var doc cargoDoc
		if err := toml.Unmarshal(data, &doc); err != nil {
			return ""
		}
		if doc.Package.Version != "" {
			return doc.Package.Version
		}
		if doc.Project.Version != "" {
			return doc.Project.Version
		}
		return doc.Version
	case FormatJSON:
		// Manifests in the wild frequently carry comments and trailing
		// commas (tsconfig-style), so strip JSONC syntax first.
		var doc versionDoc
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return ""
		}
		return doc.Version
	case FormatYAML:
		var doc versionDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return ""
		}
		return doc.Version
	default:
		return ""
	}
}
