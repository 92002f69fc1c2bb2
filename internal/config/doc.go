// Package config provides the configuration of jsfinder: request and pool
// limits, plugin selection, report preferences and per-domain settings
// loaded from the .jsfinder YAML file.
package config
