package config

import (
	"maps"
	"strings"
)

// SiteConfig holds per-domain settings.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to the domain.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request to the domain.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Seeds are extra page URLs fetched as seeds in addition to the
	// domain root, e.g. a login page that loads a different bundle.
	Seeds []string `yaml:"seeds,omitempty"`

	// Plugins overrides the global plugin list for the domain.
	Plugins []string `yaml:"plugins,omitempty"`

	// MaxCandidates overrides the global candidate cap. 0 keeps it.
	MaxCandidates int `yaml:"maxCandidates,omitempty"`

	// MaxDepth overrides the global depth cap. 0 keeps it.
	MaxDepth int `yaml:"maxDepth,omitempty"`
}

// File represents the structure of the .jsfinder configuration file.
type File struct {
	// Sites maps domains (e.g., "example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every domain unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for domain, merged over Defaults.
// Headers are merged key by key; the other fields replace the default when
// set. Seeds of both levels are kept.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)
	result.Seeds = append([]string(nil), cf.Defaults.Seeds...)

	site, ok := cf.Sites[normalizeSiteKey(domain)]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	result.Seeds = append(result.Seeds, site.Seeds...)
	if len(site.Plugins) > 0 {
		result.Plugins = site.Plugins
	}
	if site.MaxCandidates != 0 {
		result.MaxCandidates = site.MaxCandidates
	}
	if site.MaxDepth != 0 {
		result.MaxDepth = site.MaxDepth
	}

	return result
}

// normalizeSiteKey lowercases a domain key and strips a scheme and path.
func normalizeSiteKey(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	if i := strings.IndexByte(domain, '/'); i >= 0 {
		domain = domain[:i]
	}
	return domain
}
