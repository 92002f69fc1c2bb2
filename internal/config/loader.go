package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the current
// and home directories.
const DefaultConfigFile = ".jsfinder"

// xdgConfigFile is the configuration file name inside XDGConfigDir.
const xdgConfigFile = "config.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFile is returned when the configuration file cannot be
	// decoded or names a site that cannot be matched against a domain.
	ErrInvalidConfigFile = errors.New("invalid configuration file")
)

// LoadConfigFile loads defaults and per-domain settings from a YAML file.
// A missing file yields ErrConfigNotFound; callers decide whether that is
// fatal based on whether the path came from the user.
//
// Unknown keys and negative limits are errors wrapping ErrInvalidConfigFile.
// Site keys are reduced to their host, e.g. "https://Example.com/app"
// becomes "example.com".
func LoadConfigFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	defer f.Close()

	cf, err := decodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}
	return cf, nil
}

// decodeConfig reads one YAML document. An empty document is an empty File.
func decodeConfig(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cf File
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := validateSite("defaults", cf.Defaults); err != nil {
		return nil, err
	}

	sites := make(map[string]SiteConfig, len(cf.Sites))
	for key, site := range cf.Sites {
		domain := normalizeSiteKey(key)
		if domain == "" {
			return nil, fmt.Errorf("site %q has no host", key)
		}
		if _, dup := sites[domain]; dup {
			return nil, fmt.Errorf("site %s is configured more than once", domain)
		}
		if err := validateSite(domain, site); err != nil {
			return nil, err
		}
		sites[domain] = site
	}
	cf.Sites = sites

	return &cf, nil
}

// validateSite rejects negative limits. Zero keeps the global value.
func validateSite(name string, site SiteConfig) error {
	if site.MaxCandidates < 0 {
		return fmt.Errorf("%s: %w", name, ErrInvalidMaxCandidates)
	}
	if site.MaxDepth < 0 {
		return fmt.Errorf("%s: %w", name, ErrInvalidMaxDepth)
	}
	return nil
}

// FindConfigFile returns the first configuration file that exists, or an
// empty string. An explicit configPath is the only candidate when set;
// otherwise the lookup order is:
//  1. .jsfinder in the current directory
//  2. config.yaml in XDGConfigDir()
//  3. .jsfinder in the user's home directory
func FindConfigFile(configPath string) string {
	for _, candidate := range configCandidates(configPath) {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// configCandidates lists the paths FindConfigFile checks, in order.
func configCandidates(configPath string) []string {
	if configPath != "" {
		return []string{configPath}
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), xdgConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	return candidates
}
